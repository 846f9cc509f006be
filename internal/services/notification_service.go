package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"campusfix/internal/config"
	"campusfix/internal/models"
	"campusfix/internal/observability"
	"campusfix/internal/serviceinterfaces"
	"campusfix/internal/services/mailer"

	"go.opentelemetry.io/otel/attribute"
)

var _ serviceinterfaces.NotificationService = (*NotificationService)(nil)

// NotificationService tells admins about new safety reports
type NotificationService struct {
	cfg    *config.Config
	mailer mailer.Mailer
	logger *observability.Logger
}

// NewNotificationService creates a NotificationService that delivers through m
func NewNotificationService(cfg *config.Config, m mailer.Mailer, logger *observability.Logger) *NotificationService {
	return &NotificationService{cfg: cfg, mailer: m, logger: logger}
}

// IsEnabled returns whether email functionality is enabled
func (n *NotificationService) IsEnabled() bool {
	return n.mailer != nil && n.mailer.IsEnabled() && len(n.cfg.Auth.AdminEmails) > 0
}

// NotifySafetyReport sends one mail per admin. Every admin is attempted even when
// an earlier send fails; the failures are joined into the returned error.
func (n *NotificationService) NotifySafetyReport(ctx context.Context, report *models.SafetyReport) (err error) {
	ctx, span := observability.TraceNotificationFunction(ctx, "notify_safety_report",
		observability.AttributeReportID(report.ID),
		attribute.Int("notification.recipients", len(n.cfg.Auth.AdminEmails)),
	)
	defer observability.FinishSpan(span, &err)

	if !n.IsEnabled() {
		return nil
	}

	data := map[string]interface{}{
		"Location":    report.Location,
		"Description": report.Description,
		"HasMedia":    report.MediaURL.Valid,
		"IsNSFW":      report.IsNSFW,
		"ReviewURL":   strings.TrimRight(n.cfg.Server.FrontendURL, "/") + "/admin/safety",
	}
	if report.IncidentTime.Valid {
		data["IncidentTime"] = report.IncidentTime.Time.Format(time.RFC1123)
	}

	var errs []error
	for _, admin := range n.cfg.Auth.AdminEmails {
		if sendErr := n.mailer.SendEmail(ctx, admin, "CampusFix: new safety report", "safety_report", data); sendErr != nil {
			n.logger.Warn(ctx, "Failed to notify admin about safety report", map[string]interface{}{
				"report_id": report.ID,
				"error":     sendErr.Error(),
			})
			errs = append(errs, sendErr)
		}
	}
	return errors.Join(errs...)
}
