// Package mail delivers outbound club email. Delivery runs behind the
// Sender interface so the auth service can fire-and-forget sends and tests
// can observe them.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/danskode/mulle-i-hulen/pkg/config"
)

// Sender delivers club email. Implementations must be safe for concurrent
// use; callers treat failures as non-fatal and only log them.
type Sender interface {
	SendWelcomeEmail(ctx context.Context, username, email string) error
	SendPasswordResetEmail(ctx context.Context, username, email, token string) error
}

// Message is a single outbound email.
type Message struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// New selects a Sender from configuration: the Resend API when a key is
// configured, otherwise a file sink for development.
func New(cfg config.APIConfig, logger *slog.Logger) Sender {
	sink := &fileSender{dir: cfg.EmailDir, logger: logger}
	if strings.TrimSpace(cfg.ResendAPIKey) == "" {
		logger.Info("no RESEND_API_KEY configured, logging email to files", "dir", cfg.EmailDir)
		return &templateSender{delivery: sink, clientURL: cfg.ClientURL, from: cfg.EmailFrom}
	}
	r := &resendSender{
		apiKey:   cfg.ResendAPIKey,
		allowed:  strings.TrimSpace(cfg.ResendAllowedEmail),
		client:   &http.Client{Timeout: 10 * time.Second},
		fallback: sink,
		logger:   logger,
	}
	return &templateSender{delivery: r, clientURL: cfg.ClientURL, from: cfg.EmailFrom}
}

// delivery is the transport half of a Sender.
type delivery interface {
	deliver(ctx context.Context, msg Message) error
}

// templateSender renders the two club emails and hands them to a transport.
type templateSender struct {
	delivery  delivery
	clientURL string
	from      string
}

const welcomeTemplate = `Hi %s!

Welcome to the secret society around Zappa.

This is your first login, and we are glad to have you with us. You now have
access to exclusive content and can see our members.

Best regards,
Zappa Klubben`

const resetTemplate = `Hi %s!

A password reset was requested for your account. Use the link below within
the next hour to choose a new password:

%s/reset-password?token=%s

If you did not request this, you can ignore this email.

Best regards,
Zappa Klubben`

func (s *templateSender) SendWelcomeEmail(ctx context.Context, username, email string) error {
	return s.delivery.deliver(ctx, Message{
		To:      email,
		From:    s.from,
		Subject: fmt.Sprintf("Welcome to the club, %s!", username),
		Text:    fmt.Sprintf(welcomeTemplate, username),
	})
}

func (s *templateSender) SendPasswordResetEmail(ctx context.Context, username, email, token string) error {
	return s.delivery.deliver(ctx, Message{
		To:      email,
		From:    s.from,
		Subject: "Password reset requested",
		Text:    fmt.Sprintf(resetTemplate, username, strings.TrimRight(s.clientURL, "/"), token),
	})
}

const resendEndpoint = "https://api.resend.com/emails"

// resendSender posts messages to the Resend REST API. Recipients outside
// the configured allow-list (free tier restriction) fall back to the file
// sink instead of failing.
type resendSender struct {
	apiKey   string
	allowed  string
	client   *http.Client
	fallback *fileSender
	logger   *slog.Logger
}

func (s *resendSender) deliver(ctx context.Context, msg Message) error {
	if s.allowed != "" && !strings.EqualFold(msg.To, s.allowed) {
		s.logger.Warn("recipient not on resend allow-list, writing to file", "to", msg.To)
		return s.fallback.deliver(ctx, msg)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend returned %d: %s", resp.StatusCode, payload)
	}
	s.logger.Info("email sent via resend", "to", msg.To, "subject", msg.Subject)
	return nil
}

// fileSender writes messages to a directory, one file per email. This is
// the development transport and the fallback when Resend cannot be used.
type fileSender struct {
	dir    string
	logger *slog.Logger
}

func (s *fileSender) deliver(_ context.Context, msg Message) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%d_%s.txt", time.Now().UnixNano(), strings.ReplaceAll(msg.To, "@", "_at_"))
	content := fmt.Sprintf("To: %s\nSubject: %s\nSent: %s\n\n%s\n",
		msg.To, msg.Subject, time.Now().UTC().Format(time.RFC3339), msg.Text)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return err
	}
	s.logger.Info("email written to file", "to", msg.To, "path", path)
	return nil
}
