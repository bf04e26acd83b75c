package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"

	"github.com/JulienFabre/TenderWatch/app/controllers"
	"github.com/JulienFabre/TenderWatch/app/repository"
	"github.com/JulienFabre/TenderWatch/internal/pkg/cache"
	"github.com/JulienFabre/TenderWatch/internal/pkg/database"
	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
	"github.com/JulienFabre/TenderWatch/internal/pkg/metrics/counter"
	"github.com/JulienFabre/TenderWatch/internal/pkg/router"
	"github.com/JulienFabre/TenderWatch/internal/pkg/syncer"
)

func main() {
	app := NewApplication()

	scheduler := startSyncSchedule()
	if scheduler != nil {
		defer scheduler.Stop()
	}

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20, // 1 MiB, JSON bodies only
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}

// startSyncSchedule runs the feed synchronization on the configured cron
// expression. Set SYNC_SCHEDULE to empty to disable scheduled runs and rely
// on the HTTP trigger alone.
func startSyncSchedule() *cron.Cron {
	schedule := env.GetEnv("SYNC_SCHEDULE", "0 */6 * * *")
	if schedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		svc := syncer.NewServiceFromDB()
		result, err := svc.Run(context.Background(), syncer.Options{
			Departement: env.GetEnv("BOAMP_DEPARTEMENT", ""),
		})
		controllers.NotifySyncOutcome(result)
		if err != nil {
			log.Printf("scheduled sync failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("invalid SYNC_SCHEDULE %q: %v", schedule, err)
		return nil
	}

	if _, err := c.AddFunc("*/5 * * * *", func() {
		if err := counter.FlushAll(); err != nil {
			log.Printf("view counter flush failed: %v", err)
		}
	}); err != nil {
		log.Printf("failed to schedule counter flush: %v", err)
	}

	c.Start()
	log.Printf("sync schedule started: %s", schedule)
	return c
}
