package services

import (
	"context"
	"sync"

	"campusfix/internal/config"
	"campusfix/internal/observability"
	"campusfix/internal/services/mailer"

	"go.opentelemetry.io/otel/attribute"
)

// SentEmail is one message captured by TestEmailService
type SentEmail struct {
	To       string
	Subject  string
	Template string
	Body     string
}

// TestEmailService implements the Mailer interface for testing purposes.
// It renders messages but keeps them in memory instead of sending them.
type TestEmailService struct {
	cfg    *config.Config
	logger *observability.Logger

	mu   sync.Mutex
	sent []SentEmail
}

var _ mailer.Mailer = (*TestEmailService)(nil)

// NewTestEmailService creates a new TestEmailService instance
func NewTestEmailService(cfg *config.Config, logger *observability.Logger) *TestEmailService {
	return &TestEmailService{
		cfg:    cfg,
		logger: logger,
	}
}

// SendEmail renders the message and records it
func (e *TestEmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) (err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "test_send_email",
		attribute.String("email.template", templateName),
	)
	defer observability.FinishSpan(span, &err)

	body, err := renderEmail(templateName, data)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.sent = append(e.sent, SentEmail{To: to, Subject: subject, Template: templateName, Body: body})
	e.mu.Unlock()

	e.logger.Info(ctx, "TEST MODE: Would send email", map[string]interface{}{
		"to":       to,
		"subject":  subject,
		"template": templateName,
	})
	return nil
}

// IsEnabled mirrors the configured flag so callers behave as in production
func (e *TestEmailService) IsEnabled() bool {
	return e.cfg.Email.Enabled
}

// Sent returns a copy of the captured messages
func (e *TestEmailService) Sent() []SentEmail {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]SentEmail(nil), e.sent...)
}
