package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
)

const defaultMailAPIBaseURL = "https://api.resend.com"

// APIMailer posts mails to a transactional email HTTP API.
type APIMailer struct {
	BaseURL string
	APIKey  string
	Sender  string

	HTTPClient *http.Client
}

type apiMailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// NewAPIMailerFromEnv builds an API mailer from environment configuration.
// APIKey stays empty when MAIL_API_KEY is not set; SendMail then falls back
// to SMTP.
func NewAPIMailerFromEnv() *APIMailer {
	return &APIMailer{
		BaseURL: strings.TrimRight(env.GetEnv("MAIL_API_BASE_URL", defaultMailAPIBaseURL), "/"),
		APIKey:  strings.TrimSpace(env.GetEnv("MAIL_API_KEY", "")),
		Sender:  strings.TrimSpace(env.GetEnv("MAIL_SENDER", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Send posts one HTML mail to the API.
func (m *APIMailer) Send(ctx context.Context, to []string, subject string, html string) error {
	if m.APIKey == "" {
		return fmt.Errorf("MAIL_API_KEY is not configured")
	}
	if m.Sender == "" {
		return fmt.Errorf("MAIL_SENDER is not configured")
	}

	payload, err := json.Marshal(apiMailRequest{
		From:    m.Sender,
		To:      to,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail API send failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}

// SendMail delivers an HTML mail to the recipients, preferring the HTTP API
// and falling back to direct SMTP submission when no API key is configured.
func SendMail(to []string, subject string, html string) error {
	mailer := NewAPIMailerFromEnv()
	if mailer.APIKey != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		return mailer.Send(ctx, to, subject, html)
	}

	sender := mailer.Sender
	if sender == "" {
		sender = "no-reply@localhost"
	}
	return sendViaSMTP(sender, to, subject, html)
}
