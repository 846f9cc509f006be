package models

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// Severity is the urgency assigned by the classifier
type Severity string

// Severities, from least to most urgent
const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Category is the facility area an issue belongs to
type Category string

// Categories produced by the classifier
const (
	CategoryPlumbing    Category = "Plumbing"
	CategoryElectrical  Category = "Electrical"
	CategoryIT          Category = "IT"
	CategoryCleanliness Category = "Cleanliness"
	CategoryMessFood    Category = "Mess/Food"
	CategoryGeneral     Category = "General"
)

// IssueStatus is the lifecycle state of an issue
type IssueStatus string

// Issue statuses. Any transition between them is allowed.
const (
	IssueStatusNew        IssueStatus = "New"
	IssueStatusInProgress IssueStatus = "In Progress"
	IssueStatusResolved   IssueStatus = "Resolved"
)

// ParseIssueStatus normalizes user input into a canonical status.
// Aliases: pending/new, in_progress/"in progress", resolved (case-insensitive).
func ParseIssueStatus(s string) (IssueStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new", "pending":
		return IssueStatusNew, true
	case "in progress", "in_progress", "in-progress":
		return IssueStatusInProgress, true
	case "resolved":
		return IssueStatusResolved, true
	}
	return "", false
}

// Issue is a maintenance problem reported by a campus member
type Issue struct {
	ID                 int64          `json:"id"`
	Description        string         `json:"description"`
	Location           string         `json:"location"`
	ImageURL           sql.NullString `json:"image_url"`
	Category           Category       `json:"category"`
	Severity           Severity       `json:"severity"`
	Summary            string         `json:"summary"`
	Upvotes            int            `json:"upvotes"`
	PriorityScore      float64        `json:"priority_score"`
	Status             IssueStatus    `json:"status"`
	ResolutionImageURL sql.NullString `json:"resolution_image_url"`
	ReporterID         sql.NullString `json:"-"`
	ReporterName       sql.NullString `json:"reporter_name"`
	ReporterEmail      sql.NullString `json:"-"`
	CreatedAt          time.Time      `json:"created_at"`
}

// MarshalJSON customizes JSON marshaling for Issue to handle sql.NullString properly
func (i Issue) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID                 int64       `json:"id"`
		Description        string      `json:"description"`
		Location           string      `json:"location"`
		ImageURL           *string     `json:"image_url"`
		Category           Category    `json:"category"`
		Severity           Severity    `json:"severity"`
		Summary            string      `json:"summary"`
		Upvotes            int         `json:"upvotes"`
		PriorityScore      float64     `json:"priority_score"`
		Status             IssueStatus `json:"status"`
		ResolutionImageURL *string     `json:"resolution_image_url"`
		ReporterName       *string     `json:"reporter_name"`
		CreatedAt          time.Time   `json:"created_at"`
	}{
		ID:                 i.ID,
		Description:        i.Description,
		Location:           i.Location,
		ImageURL:           nullStringToPointer(i.ImageURL),
		Category:           i.Category,
		Severity:           i.Severity,
		Summary:            i.Summary,
		Upvotes:            i.Upvotes,
		PriorityScore:      i.PriorityScore,
		Status:             i.Status,
		ResolutionImageURL: nullStringToPointer(i.ResolutionImageURL),
		ReporterName:       nullStringToPointer(i.ReporterName),
		CreatedAt:          i.CreatedAt,
	})
}

// NewIssue is the input for creating an issue
type NewIssue struct {
	Description string
	Location    string
	ImageURL    string
	// Reporter is nil when issues do not require a login
	Reporter *Identity
}

// IssueSort selects the ordering of an issue listing
type IssueSort string

// Supported orderings. Anything unrecognised falls back to newest first.
const (
	IssueSortNewest   IssueSort = "newest"
	IssueSortPriority IssueSort = "priority"
)

// ParseIssueSort maps the sort_by query parameter onto an ordering
func ParseIssueSort(s string) IssueSort {
	if strings.EqualFold(strings.TrimSpace(s), string(IssueSortPriority)) {
		return IssueSortPriority
	}
	return IssueSortNewest
}

// Analytics summarises the issue table at a single point in time
type Analytics struct {
	TotalIssues      int64            `json:"total_issues"`
	ResolvedIssues   int64            `json:"resolved_issues"`
	PendingIssues    int64            `json:"pending_issues"`
	InProgressIssues int64            `json:"in_progress_issues"`
	ByCategory       map[string]int64 `json:"by_category"`
}

// HeatmapPoint is the minimal projection used by the campus map
type HeatmapPoint struct {
	ID       int64    `json:"id"`
	Location string   `json:"location"`
	Severity Severity `json:"severity"`
}
