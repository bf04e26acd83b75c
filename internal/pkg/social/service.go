package social

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"github.com/JulienFabre/TenderWatch/app/models"
	"github.com/JulienFabre/TenderWatch/app/repository"
	"github.com/JulienFabre/TenderWatch/internal/pkg/database"
	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
	"github.com/JulienFabre/TenderWatch/internal/pkg/mail"
)

// Publisher is the slice of the posting client the fan-out service uses.
type Publisher interface {
	Publish(ctx context.Context, platform, text string, mediaUrls []string, target PostTarget) (json.RawMessage, error)
}

// PlatformResult reports one platform attempt of a fan-out.
type PlatformResult struct {
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// FanOutResult aggregates a multi-platform publish attempt.
type FanOutResult struct {
	PostID  string                    `json:"post_id"`
	Results map[string]PlatformResult `json:"results"`
}

// AllSucceeded reports whether every attempted platform accepted the post.
func (r *FanOutResult) AllSucceeded() bool {
	for _, res := range r.Results {
		if !res.Success {
			return false
		}
	}
	return true
}

// AnySucceeded reports whether at least one platform accepted the post.
func (r *FanOutResult) AnySucceeded() bool {
	for _, res := range r.Results {
		if res.Success {
			return true
		}
	}
	return false
}

// Service fans one text out to several platforms and appends each attempt to
// the post log.
type Service struct {
	client Publisher
	posts  repository.SocialPostRepository
}

// NewService creates a fan-out service from injected dependencies.
func NewService(client Publisher, posts repository.SocialPostRepository) *Service {
	return &Service{client: client, posts: posts}
}

// NewServiceFromDB creates a fan-out service wired to the shared DB and the
// environment-configured posting client.
func NewServiceFromDB() *Service {
	return NewService(NewClientFromEnv(), repository.NewSocialPostRepository(database.GetDB()))
}

// PublishToAll attempts each platform independently in sequence; one failure
// does not prevent the others. Every attempt is appended to the post log, and
// a best-effort alert mail goes out when any platform failed.
func (s *Service) PublishToAll(ctx context.Context, text string, mediaUrls []string, platforms []string, target PostTarget) *FanOutResult {
	result := &FanOutResult{
		PostID:  uuid.NewString(),
		Results: make(map[string]PlatformResult, len(platforms)),
	}

	for _, platform := range platforms {
		response, err := s.client.Publish(ctx, platform, text, mediaUrls, target)
		if err != nil {
			log.Printf("social post %s: %s failed: %v", result.PostID, platform, err)
			result.Results[platform] = PlatformResult{Success: false, Error: err.Error()}
			continue
		}
		result.Results[platform] = PlatformResult{Success: true, Response: response}
	}

	s.logAttempt(text, result)

	if !result.AllSucceeded() {
		s.alertFailures(text, result)
	}
	return result
}

// logAttempt appends the attempt to the append-only post log; a failed log
// write is only logged.
func (s *Service) logAttempt(text string, result *FanOutResult) {
	resultsJSON := ""
	if b, err := json.Marshal(result.Results); err == nil {
		resultsJSON = string(b)
	}

	post := &models.SocialPost{
		PostID:              result.PostID,
		Text:                text,
		PlatformResultsJSON: resultsJSON,
		Success:             result.AllSucceeded(),
	}
	if err := s.posts.Create(post); err != nil {
		log.Printf("social post %s: failed to write post log: %v", result.PostID, err)
	}
}

// alertFailures sends a best-effort failure mail when an alert address is
// configured; a failed alert send is swallowed.
func (s *Service) alertFailures(text string, result *FanOutResult) {
	alertTo := env.GetEnv("ALERT_EMAIL", "")
	if alertTo == "" {
		return
	}

	failures := make(map[string]string)
	for platform, res := range result.Results {
		if !res.Success {
			failures[platform] = res.Error
		}
	}

	body, err := mail.RenderPostFailureAlert(mail.PostFailureAlertView{
		PostID:   result.PostID,
		Text:     text,
		Failures: failures,
	})
	if err != nil {
		log.Printf("social post %s: failed to render alert mail: %v", result.PostID, err)
		return
	}
	if err := mail.SendMail([]string{alertTo}, "Échec de publication sociale", body); err != nil {
		log.Printf("social post %s: failed to send alert mail: %v", result.PostID, err)
	}
}
