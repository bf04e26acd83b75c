package controllers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/JulienFabre/TenderWatch/app/models"
	"github.com/JulienFabre/TenderWatch/app/repository"
	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
	"github.com/JulienFabre/TenderWatch/internal/pkg/mail"
	"github.com/JulienFabre/TenderWatch/internal/pkg/syncer"
)

// newSyncService builds the sync service; swappable in tests.
var newSyncService = syncer.NewServiceFromDB

// HandleRunSync triggers one synchronization run over HTTP. The same routine
// also runs on the cron schedule; both paths share the syncer service.
func HandleRunSync(c *fiber.Ctx) error {
	opts := syncer.Options{
		Departement: c.Query("departement", env.GetEnv("BOAMP_DEPARTEMENT", "")),
	}
	if pageSize, err := strconv.Atoi(c.Query("page_size", "")); err == nil && pageSize > 0 {
		opts.PageSize = pageSize
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	svc := newSyncService()
	result, err := svc.Run(ctx, opts)
	NotifySyncOutcome(result)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "sync_failed", err.Error())
	}

	status := fiber.StatusOK
	if result.Status == models.SyncStatusPartial {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(fiber.Map{
		"run_id":   result.RunID,
		"status":   result.Status,
		"found":    result.Found,
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"errors":   result.Errors,
	})
}

// HandleListSyncRuns serves the run log history for operators.
func HandleListSyncRuns(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetSyncRunRepository()
	offset, limit := paginationParams(c)

	runs, err := repo.List(offset, limit)
	if err != nil {
		log.Printf("sync run list failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Run log query failed")
	}
	return c.JSON(fiber.Map{"results": runs})
}

// NotifySyncOutcome sends a best-effort summary mail for non-clean runs when
// an alert address is configured. A failed send is only logged.
func NotifySyncOutcome(result *syncer.Result) {
	if result == nil || result.Status == models.SyncStatusSuccess {
		return
	}
	alertTo := env.GetEnv("ALERT_EMAIL", "")
	if alertTo == "" {
		return
	}

	body, err := mail.RenderSyncSummary(mail.SyncSummaryView{
		RunID:    result.RunID,
		Status:   result.Status,
		Found:    result.Found,
		Inserted: result.Inserted,
		Updated:  result.Updated,
		Errors:   result.Errors,
		Duration: result.Duration,
		RunAt:    time.Now(),
	})
	if err != nil {
		log.Printf("sync run %s: failed to render summary mail: %v", result.RunID, err)
		return
	}
	if err := mail.SendMail([]string{alertTo}, "Synchronisation BOAMP : "+result.Status, body); err != nil {
		log.Printf("sync run %s: failed to send summary mail: %v", result.RunID, err)
	}
}
