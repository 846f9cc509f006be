package serviceinterfaces

import (
	"context"

	"campusfix/internal/models"
)

// NotificationService defines the interface for admin notifications
type NotificationService interface {
	// NotifySafetyReport mails every admin about a new safety report
	NotifySafetyReport(ctx context.Context, report *models.SafetyReport) error

	// IsEnabled returns whether email functionality is enabled
	IsEnabled() bool
}
