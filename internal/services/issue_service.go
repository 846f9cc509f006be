package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"campusfix/internal/models"
	"campusfix/internal/observability"
	"campusfix/internal/serviceinterfaces"
	"campusfix/internal/triage"
	contextutils "campusfix/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

const issueColumns = `id, description, location, image_url, category, severity, summary, upvotes, priority_score,
	status, resolution_image_url, reporter_id, reporter_name, reporter_email, created_at`

var _ serviceinterfaces.IssueService = (*IssueService)(nil)

// IssueService stores issues in Postgres and keeps priority_score in step with upvotes.
type IssueService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewIssueService creates a new IssueService instance.
func NewIssueService(db *sql.DB, logger *observability.Logger) *IssueService {
	if db == nil {
		panic("NewIssueService: db is nil")
	}
	if logger == nil {
		panic("NewIssueService: logger is nil")
	}
	return &IssueService{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row rowScanner) (*models.Issue, error) {
	var issue models.Issue
	err := row.Scan(&issue.ID, &issue.Description, &issue.Location, &issue.ImageURL, &issue.Category,
		&issue.Severity, &issue.Summary, &issue.Upvotes, &issue.PriorityScore, &issue.Status,
		&issue.ResolutionImageURL, &issue.ReporterID, &issue.ReporterName, &issue.ReporterEmail, &issue.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// CreateIssue validates the input, classifies the description and inserts the issue with zero upvotes.
func (s *IssueService) CreateIssue(ctx context.Context, in models.NewIssue) (result0 *models.Issue, err error) {
	ctx, span := observability.TraceIssueFunction(ctx, "create_issue")
	defer observability.FinishSpan(span, &err)

	description := strings.TrimSpace(in.Description)
	location := strings.TrimSpace(in.Location)
	if description == "" {
		return nil, contextutils.NewValidationError("description", "description is required")
	}
	if location == "" {
		return nil, contextutils.NewValidationError("location", "location is required")
	}

	category, severity, summary := triage.Classify(description)
	score := triage.PriorityScore(0, severity)

	var reporterID, reporterName, reporterEmail sql.NullString
	if !in.Reporter.IsZero() {
		reporterID = models.NullString(in.Reporter.Sub)
		reporterName = models.NullString(in.Reporter.Name)
		reporterEmail = models.NullString(in.Reporter.Email)
	}

	query := `INSERT INTO issues (description, location, image_url, category, severity, summary, upvotes,
			priority_score, status, reporter_id, reporter_name, reporter_email)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10, $11)
		RETURNING ` + issueColumns

	issue, err := scanIssue(s.db.QueryRowContext(ctx, query, description, location, models.NullString(in.ImageURL),
		category, severity, summary, score, models.IssueStatusNew, reporterID, reporterName, reporterEmail))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert issue")
	}

	span.SetAttributes(
		observability.AttributeIssueID(issue.ID),
		attribute.String("issue.category", string(issue.Category)),
		attribute.String("issue.severity", string(issue.Severity)),
	)
	observability.RecordIssueCreated(ctx, string(issue.Category), string(issue.Severity))
	s.logger.Info(ctx, "Issue created", map[string]interface{}{
		"issue_id": issue.ID,
		"category": issue.Category,
		"severity": issue.Severity,
	})
	return issue, nil
}

// GetIssue fetches a single issue.
func (s *IssueService) GetIssue(ctx context.Context, id int64) (result0 *models.Issue, err error) {
	ctx, span := observability.TraceIssueFunction(ctx, "get_issue", observability.AttributeIssueID(id))
	defer observability.FinishSpan(span, &err)

	issue, err := scanIssue(s.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "issue %d not found", id)
		}
		return nil, contextutils.WrapError(err, "failed to get issue")
	}
	return issue, nil
}

// ListIssues returns limit issues after skipping skip rows. The id tie-break keeps
// consecutive pages disjoint when scores or timestamps collide.
func (s *IssueService) ListIssues(ctx context.Context, skip, limit int, sortBy models.IssueSort) (result0 []models.Issue, err error) {
	ctx, span := observability.TraceIssueFunction(ctx, "list_issues",
		observability.AttributeSkip(skip),
		observability.AttributeLimit(limit),
		observability.AttributeSortBy(string(sortBy)),
	)
	defer observability.FinishSpan(span, &err)

	if skip < 0 {
		return nil, contextutils.NewValidationError("skip", "skip must not be negative")
	}
	if limit <= 0 {
		return nil, contextutils.NewValidationError("limit", "limit must be positive")
	}

	orderBy := "created_at DESC, id DESC"
	if sortBy == models.IssueSortPriority {
		orderBy = "priority_score DESC, id DESC"
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues ORDER BY `+orderBy+` LIMIT $1 OFFSET $2`, limit, skip)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query issues")
	}
	defer func() {
		_ = rows.Close()
	}()

	issues := []models.Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan issue")
		}
		issues = append(issues, *issue)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate issues")
	}
	return issues, nil
}

// UpvoteIssue increments upvotes and rewrites priority_score inside one transaction.
// The row lock serializes concurrent upvotes on the same issue.
func (s *IssueService) UpvoteIssue(ctx context.Context, id int64) (result0 *models.Issue, err error) {
	ctx, span := observability.TraceIssueFunction(ctx, "upvote_issue", observability.AttributeIssueID(id))
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Warn(ctx, "Failed to rollback transaction", map[string]interface{}{
					"issue_id": id,
					"error":    rollbackErr.Error(),
				})
			}
		}
	}()

	var upvotes int
	var severity models.Severity
	err = tx.QueryRowContext(ctx, `SELECT upvotes, severity FROM issues WHERE id = $1 FOR UPDATE`, id).Scan(&upvotes, &severity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "issue %d not found", id)
		}
		return nil, contextutils.WrapError(err, "failed to lock issue")
	}

	upvotes++
	score := triage.PriorityScore(upvotes, severity)

	issue, err := scanIssue(tx.QueryRowContext(ctx,
		`UPDATE issues SET upvotes = $2, priority_score = $3 WHERE id = $1 RETURNING `+issueColumns,
		id, upvotes, score))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to update upvotes")
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit upvote")
	}

	span.SetAttributes(attribute.Int("issue.upvotes", issue.Upvotes), attribute.Float64("issue.priority_score", issue.PriorityScore))
	observability.RecordIssueUpvote(ctx)
	return issue, nil
}

// UpdateIssueStatus sets a new status. A nil or empty resolution URL keeps the stored one.
func (s *IssueService) UpdateIssueStatus(ctx context.Context, id int64, status string, resolutionImageURL *string) (result0 *models.Issue, err error) {
	ctx, span := observability.TraceIssueFunction(ctx, "update_issue_status",
		observability.AttributeIssueID(id),
		observability.AttributeStatus(status),
	)
	defer observability.FinishSpan(span, &err)

	normalized, ok := models.ParseIssueStatus(status)
	if !ok {
		return nil, contextutils.NewValidationError("status", "status must be one of New, In Progress, Resolved")
	}

	var resolution sql.NullString
	if resolutionImageURL != nil && strings.TrimSpace(*resolutionImageURL) != "" {
		resolution = models.NullString(strings.TrimSpace(*resolutionImageURL))
	}

	issue, err := scanIssue(s.db.QueryRowContext(ctx,
		`UPDATE issues SET status = $2, resolution_image_url = COALESCE($3, resolution_image_url)
		WHERE id = $1 RETURNING `+issueColumns,
		id, normalized, resolution))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "issue %d not found", id)
		}
		return nil, contextutils.WrapError(err, "failed to update issue status")
	}

	s.logger.Info(ctx, "Issue status updated", map[string]interface{}{
		"issue_id": id,
		"status":   issue.Status,
	})
	return issue, nil
}

// GetAnalytics reads the totals and the per-category breakdown from one snapshot.
func (s *IssueService) GetAnalytics(ctx context.Context) (result0 *models.Analytics, err error) {
	ctx, span := observability.TraceIssueFunction(ctx, "get_analytics")
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin analytics transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	analytics := &models.Analytics{ByCategory: map[string]int64{}}
	err = tx.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3)
		FROM issues`,
		models.IssueStatusResolved, models.IssueStatusNew, models.IssueStatusInProgress,
	).Scan(&analytics.TotalIssues, &analytics.ResolvedIssues, &analytics.PendingIssues, &analytics.InProgressIssues)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to count issues")
	}

	rows, err := tx.QueryContext(ctx, `SELECT category, COUNT(*) FROM issues GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to group issues by category")
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan category count")
		}
		analytics.ByCategory[category] = count
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate category counts")
	}

	span.SetAttributes(attribute.Int64("issues.total", analytics.TotalIssues))
	return analytics, nil
}

// GetHeatmap returns the id, location and severity of every issue ordered by id.
func (s *IssueService) GetHeatmap(ctx context.Context) (result0 []models.HeatmapPoint, err error) {
	ctx, span := observability.TraceIssueFunction(ctx, "get_heatmap")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `SELECT id, location, severity FROM issues ORDER BY id`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query heatmap")
	}
	defer func() {
		_ = rows.Close()
	}()

	points := []models.HeatmapPoint{}
	for rows.Next() {
		var p models.HeatmapPoint
		if err := rows.Scan(&p.ID, &p.Location, &p.Severity); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan heatmap point")
		}
		points = append(points, p)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate heatmap")
	}
	return points, nil
}
