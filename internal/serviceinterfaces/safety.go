package serviceinterfaces

import (
	"context"

	"campusfix/internal/models"
)

// SafetyService defines the anonymous safety report store
type SafetyService interface {
	CreateReport(ctx context.Context, in models.NewSafetyReport) (*models.SafetyReport, error)
	// ListReports returns newest first; limit <= 0 returns every report
	ListReports(ctx context.Context, limit int) ([]models.SafetyReport, error)
	ListCommunityReports(ctx context.Context) ([]models.SafetyReport, error)
	UpdateReportStatus(ctx context.Context, id int64, status string) (*models.SafetyReport, error)
}
