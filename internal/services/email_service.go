// Package services provides business logic services for the campusfix backend.
package services

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"campusfix/internal/config"
	"campusfix/internal/observability"
	"campusfix/internal/services/mailer"
	contextutils "campusfix/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/mail.v2"
)

// EmailService implements mailer.Mailer using gomail
type EmailService struct {
	cfg    *config.Config
	logger *observability.Logger
	dialer *mail.Dialer
}

// Ensure EmailService implements the Mailer interface
var _ mailer.Mailer = (*EmailService)(nil)

// NewEmailService creates a new EmailService instance
func NewEmailService(cfg *config.Config, logger *observability.Logger) *EmailService {
	var dialer *mail.Dialer
	if cfg.Email.Enabled && cfg.Email.SMTP.Host != "" {
		dialer = mail.NewDialer(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
		)
	}

	return &EmailService{
		cfg:    cfg,
		logger: logger,
		dialer: dialer,
	}
}

// SendEmail sends a generic email with the given parameters
func (e *EmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) (err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "send_email",
		attribute.String("email.subject", subject),
		attribute.String("email.template", templateName),
	)
	defer observability.FinishSpan(span, &err)

	if !e.IsEnabled() {
		e.logger.Info(ctx, "Email disabled, skipping email send", map[string]interface{}{
			"template": templateName,
		})
		return nil
	}

	if e.dialer == nil {
		return contextutils.ErrorWithContextf("email service not properly configured")
	}

	m := mail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", e.cfg.Email.SMTP.FromName, e.cfg.Email.SMTP.FromAddress))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	content, err := renderEmail(templateName, data)
	if err != nil {
		return contextutils.WrapError(err, "failed to generate email content")
	}
	m.SetBody("text/html", content)

	if err = e.dialer.DialAndSend(m); err != nil {
		e.logger.Error(ctx, "Failed to send email", err, map[string]interface{}{
			"to":       to,
			"template": templateName,
		})
		return contextutils.WrapError(err, "failed to send email")
	}

	e.logger.Info(ctx, "Email sent successfully", map[string]interface{}{
		"to":       to,
		"template": templateName,
	})
	return nil
}

// IsEnabled returns whether email functionality is enabled
func (e *EmailService) IsEnabled() bool {
	return e.cfg.Email.Enabled && e.cfg.Email.SMTP.Host != ""
}

const emailLayout = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{template "title" .}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #c62828; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 20px; }
        .button { display: inline-block; background-color: #c62828; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; margin: 20px 0; }
        .footer { background-color: #eee; padding: 15px; text-align: center; font-size: 12px; color: #666; border-radius: 0 0 5px 5px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>{{template "title" .}}</h1></div>
        <div class="content">{{template "content" .}}</div>
        <div class="footer"><p>Sent by CampusFix to campus administrators.</p></div>
    </div>
</body>
</html>`

var emailTemplates = map[string]string{
	"safety_report": `
{{define "title"}}New safety report{{end}}
{{define "content"}}
<p>A safety report was filed at <strong>{{.Location}}</strong>.</p>
<p>{{.Description}}</p>
{{if .IncidentTime}}<p><strong>Incident time:</strong> {{.IncidentTime}}</p>{{end}}
{{if .HasMedia}}<p>Media evidence is attached to the report{{if .IsNSFW}} and was flagged as sensitive{{end}}.</p>{{end}}
<div style="text-align: center;"><a href="{{.ReviewURL}}" class="button">Review reports</a></div>
{{end}}`,
	"test_email": `
{{define "title"}}Test Email{{end}}
{{define "content"}}
<p>This is a test email to verify that your email settings are working correctly.</p>
<p><strong>Message:</strong> {{.Message}}</p>
{{end}}`,
}

// renderEmail executes a named template inside the shared layout
func renderEmail(templateName string, data map[string]interface{}) (string, error) {
	body, ok := emailTemplates[templateName]
	if !ok {
		return "", contextutils.ErrorWithContextf("unknown template: %s", templateName)
	}

	tmpl, err := template.New("layout").Parse(emailLayout)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to parse template")
	}
	if _, err := tmpl.Parse(body); err != nil {
		return "", contextutils.WrapError(err, "failed to parse template")
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", contextutils.WrapError(err, "failed to execute template")
	}
	return buf.String(), nil
}
