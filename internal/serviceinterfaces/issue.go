// Package serviceinterfaces defines service interfaces for dependency injection and testing.
package serviceinterfaces

import (
	"context"

	"campusfix/internal/models"
)

// IssueService defines the issue store and lifecycle operations
type IssueService interface {
	// CreateIssue classifies, scores and persists a new issue
	CreateIssue(ctx context.Context, in models.NewIssue) (*models.Issue, error)

	// GetIssue returns one issue or ErrRecordNotFound
	GetIssue(ctx context.Context, id int64) (*models.Issue, error)

	// ListIssues returns a page of issues in the requested order
	ListIssues(ctx context.Context, skip, limit int, sortBy models.IssueSort) ([]models.Issue, error)

	// UpvoteIssue adds one upvote and recomputes the priority score atomically
	UpvoteIssue(ctx context.Context, id int64) (*models.Issue, error)

	// UpdateIssueStatus sets the status and, when given, the resolution image
	UpdateIssueStatus(ctx context.Context, id int64, status string, resolutionImageURL *string) (*models.Issue, error)

	GetAnalytics(ctx context.Context) (*models.Analytics, error)
	GetHeatmap(ctx context.Context) ([]models.HeatmapPoint, error)
}
