package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/JulienFabre/TenderWatch/internal/pkg/env"
)

// sendViaSMTP submits an HTML mail directly to the configured relay. Used as
// the fallback path when no transactional API key is configured.
func sendViaSMTP(from string, to []string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")

	if host == "" || port == "" {
		return fmt.Errorf("SMTP_HOST/SMTP_PORT are not configured")
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, strings.Join(to, ", "), subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, from, to, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", strings.Join(to, ", "), addr)
	}
	return err
}
