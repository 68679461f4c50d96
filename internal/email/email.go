// Package email renders registration notices and sends them through Resend.
package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/config"
	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/notifications"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[events.NoticeKind]string{
	events.NoticeRegistered: "You're registered: %s",
	events.NoticeWaitlisted: "You're on the waitlist: %s",
	events.NoticePromoted:   "A spot opened up: %s",
	events.NoticeCancelled:  "Registration cancelled: %s",
}

var _ notifications.Sender = (*Service)(nil)

// Service sends notice emails. When email is disabled in config every
// notice is skipped, so the outbox settles instead of retrying.
type Service struct {
	config    config.EmailConfig
	siteName  string
	client    *resend.Client
	templates *template.Template
	logger    zerolog.Logger
	now       func() time.Time
}

// NoticeData is what the notice templates render.
type NoticeData struct {
	Subject    string
	SiteName   string
	Name       string
	EventTitle string
	EventStart string
	EventURL   string
	Year       int
}

func NewService(cfg config.EmailConfig, siteName string, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
	}
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	s := &Service{
		config:    cfg,
		siteName:  siteName,
		templates: templates,
		logger:    logger.With().Str("component", "email").Logger(),
		now:       time.Now,
	}
	if cfg.Enabled {
		s.client = resend.NewClient(cfg.APIKey)
	}
	return s, nil
}

// SendNotice renders the template for notice.Kind and sends it to recipient.
func (s *Service) SendNotice(ctx context.Context, recipient, name string, notice events.Notice) error {
	if err := validateAddress(recipient); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}
	format, ok := subjects[notice.Kind]
	if !ok {
		return fmt.Errorf("unknown notice kind %q", notice.Kind)
	}

	if !s.config.Enabled {
		s.logger.Debug().
			Str("kind", string(notice.Kind)).
			Str("event_id", notice.EventID).
			Msg("email disabled, skipping notice")
		return notifications.ErrSkipped
	}

	subject := fmt.Sprintf(format, notice.EventTitle)
	body, err := s.Render(notice, name, subject)
	if err != nil {
		return err
	}
	return s.send(ctx, recipient, subject, body)
}

// Render produces the HTML body for notice.
func (s *Service) Render(notice events.Notice, name, subject string) (string, error) {
	data := NoticeData{
		Subject:    subject,
		SiteName:   s.siteName,
		Name:       name,
		EventTitle: notice.EventTitle,
		EventURL:   strings.TrimRight(s.config.BaseURL, "/") + "/events/" + notice.EventID,
		Year:       s.now().Year(),
	}
	if !notice.EventStart.IsZero() {
		data.EventStart = notice.EventStart.UTC().Format("Monday, January 2, 2006 at 15:04 MST")
	}
	if data.Name == "" {
		data.Name = "there"
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, string(notice.Kind)+".html", data); err != nil {
		return "", fmt.Errorf("render %s: %w", notice.Kind, err)
	}
	return buf.String(), nil
}

// send posts one message to Resend. Rate limit responses are reported with
// their reset hint and left for the outbox to retry.
func (s *Service) send(ctx context.Context, to, subject, htmlBody string) error {
	if s.client == nil {
		return fmt.Errorf("resend client not initialized")
	}

	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.config.From,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	})
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			s.logger.Warn().
				Str("limit", rateLimitErr.Limit).
				Str("remaining", rateLimitErr.Remaining).
				Str("reset", rateLimitErr.Reset).
				Msg("resend rate limit exceeded")
			return fmt.Errorf("email rate limit exceeded (resets in %s seconds): %w", rateLimitErr.Reset, err)
		}
		return fmt.Errorf("resend API error: %w", err)
	}

	s.logger.Info().Str("email_id", sent.Id).Msg("notice email sent")
	return nil
}

// validateAddress rejects malformed addresses and header injection attempts.
func validateAddress(address string) error {
	addr, err := mail.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}
