package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/JulienFabre/TenderWatch/app/models"
	"github.com/JulienFabre/TenderWatch/app/repository"
	"github.com/JulienFabre/TenderWatch/internal/pkg/boamp"
	"github.com/JulienFabre/TenderWatch/internal/pkg/cache"
	"github.com/JulienFabre/TenderWatch/internal/pkg/database"
)

const sourceBOAMP = "boamp"

// LastStatusCacheKey holds the status of the most recent run for the health
// endpoint.
const LastStatusCacheKey = "sync:last_status"

// FeedClient is the slice of the feed API the sync routine consumes.
type FeedClient interface {
	FetchRecent(ctx context.Context, departement string, deadlineAfter time.Time, limit int) (*boamp.FeedResponse, error)
}

// Options selects which slice of the feed one run reconciles.
type Options struct {
	Departement   string
	DeadlineAfter time.Time
	PageSize      int
}

// Result aggregates the outcome of one synchronization run.
type Result struct {
	RunID    string
	Status   string
	Found    int
	Inserted int
	Updated  int
	Errors   []string
	Duration time.Duration
}

// Service reconciles feed records into the listings table and writes one run
// log per execution.
type Service struct {
	feed     FeedClient
	listings repository.ListingRepository
	runs     repository.SyncRunRepository
}

// NewService creates a sync service from injected dependencies.
func NewService(feed FeedClient, listings repository.ListingRepository, runs repository.SyncRunRepository) *Service {
	return &Service{feed: feed, listings: listings, runs: runs}
}

// NewServiceFromDB creates a sync service wired to the shared DB and the
// environment-configured feed client.
func NewServiceFromDB() *Service {
	db := database.GetDB()
	return NewService(
		boamp.NewClientFromEnv(),
		repository.NewListingRepository(db),
		repository.NewSyncRunRepository(db),
	)
}

// Run fetches one page of feed records and upserts each into the listings
// table. Records are processed strictly sequentially; a store error on one
// record is collected and does not abort the rest. A run log row is written
// in every case, including a feed fetch failure before any record was read.
func (s *Service) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	result := &Result{
		RunID:  uuid.NewString(),
		Status: models.SyncStatusError,
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	deadlineAfter := opts.DeadlineAfter
	if deadlineAfter.IsZero() {
		deadlineAfter = time.Now()
	}

	feedResp, err := s.feed.FetchRecent(ctx, opts.Departement, deadlineAfter, pageSize)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Duration = time.Since(start)
		s.writeRunLog(result)
		return result, fmt.Errorf("feed fetch failed: %w", err)
	}

	result.Found = len(feedResp.Results)
	for i := range feedResp.Results {
		record := &feedResp.Results[i]
		ref := record.ExternalRef()
		if ref == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: missing external reference", i))
			continue
		}

		inserted, err := s.reconcileRecord(ref, record)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record %s: %v", ref, err))
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	switch {
	case len(result.Errors) == 0:
		result.Status = models.SyncStatusSuccess
	case result.Inserted+result.Updated > 0:
		result.Status = models.SyncStatusPartial
	default:
		result.Status = models.SyncStatusError
	}

	result.Duration = time.Since(start)
	s.writeRunLog(result)

	log.Printf("sync run %s finished: status=%s found=%d inserted=%d updated=%d errors=%d in %s",
		result.RunID, result.Status, result.Found, result.Inserted, result.Updated, len(result.Errors), result.Duration)
	return result, nil
}

// reconcileRecord upserts one feed record; returns true when a new row was
// inserted, false when an existing row was replaced.
func (s *Service) reconcileRecord(ref string, record *boamp.Record) (bool, error) {
	mapped := MapRecord(record)

	existing, err := s.listings.GetByExternalRef(ref)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}
		mapped.Visible = true
		if err := s.listings.Create(mapped); err != nil {
			return false, err
		}
		return true, nil
	}

	// Full replace of all mapped fields, keyed by row id. Visibility and the
	// accumulated view count are kept as stored so operator archival and
	// flushed counters survive re-syncs.
	mapped.ID = existing.ID
	mapped.Visible = existing.Visible
	mapped.ViewCount = existing.ViewCount
	mapped.CreatedAt = existing.CreatedAt
	if err := s.listings.Update(mapped); err != nil {
		return false, err
	}
	return false, nil
}

// MapRecord maps external feed field names onto the local listing schema.
// Missing optional fields get the documented fallback placeholders.
func MapRecord(record *boamp.Record) *models.Listing {
	title := strings.TrimSpace(record.Objet)
	if title == "" {
		title = models.ListingFallbackTitle
	}
	client := strings.TrimSpace(record.NomAcheteur)
	if client == "" {
		client = models.ListingFallbackClient
	}

	return &models.Listing{
		ExternalRef:    record.ExternalRef(),
		Title:          title,
		ClientName:     client,
		Description:    strings.TrimSpace(record.Resume),
		Deadline:       boamp.ParseDate(record.DateLimiteReponse),
		Amount:         record.Montant,
		Location:       strings.TrimSpace(record.CodeDepartement),
		PublishedAt:    boamp.ParseDate(record.DateParution),
		ProcedureType:  strings.TrimSpace(record.TypeMarche),
		CategoryCode:   strings.TrimSpace(record.CodeDepartement),
		SourceURL:      strings.TrimSpace(record.URLAvis),
		RawPayloadJSON: string(record.Raw),
	}
}

// writeRunLog persists the run record best-effort; a failed log write must not
// mask the run outcome.
func (s *Service) writeRunLog(result *Result) {
	errorsJSON := ""
	if len(result.Errors) > 0 {
		if b, err := json.Marshal(result.Errors); err == nil {
			errorsJSON = string(b)
		}
	}

	run := &models.SyncRun{
		RunID:      result.RunID,
		Source:     sourceBOAMP,
		Found:      result.Found,
		Inserted:   result.Inserted,
		Updated:    result.Updated,
		ErrorsJSON: errorsJSON,
		Status:     result.Status,
		DurationMS: result.Duration.Milliseconds(),
	}
	if err := s.runs.Create(run); err != nil {
		log.Printf("sync run %s: failed to write run log: %v", result.RunID, err)
	}

	if err := cache.Set(LastStatusCacheKey, result.Status, 24*time.Hour); err != nil {
		log.Printf("sync run %s: failed to cache run status: %v", result.RunID, err)
	}
}
