package handlers

import (
	"net/http"
	"strings"

	"campusfix/internal/config"
	"campusfix/internal/middleware"
	"campusfix/internal/models"
	"campusfix/internal/observability"
	"campusfix/internal/serviceinterfaces"
	"campusfix/internal/storage"
	contextutils "campusfix/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// IssueHandler serves the maintenance issue endpoints
type IssueHandler struct {
	issueService serviceinterfaces.IssueService
	sink         storage.MediaSink
	cfg          *config.Config
	logger       *observability.Logger
}

// NewIssueHandler creates a new issue handler
func NewIssueHandler(issueService serviceinterfaces.IssueService, sink storage.MediaSink, cfg *config.Config, logger *observability.Logger) *IssueHandler {
	return &IssueHandler{
		issueService: issueService,
		sink:         sink,
		cfg:          cfg,
		logger:       logger,
	}
}

// UpdateIssueStatusRequest is the body of PATCH|PUT /issues/{id}/status
type UpdateIssueStatusRequest struct {
	Status             string  `json:"status"`
	ResolutionImageURL *string `json:"resolution_image_url"`
}

// CreateIssue handles POST /issues (multipart: description, location, image)
func (h *IssueHandler) CreateIssue(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_issue")
	defer observability.FinishSpan(span, nil)

	image, err := readUpload(c, "image", h.cfg.Media.MaxUploadBytes)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	in := models.NewIssue{
		Description: c.PostForm("description"),
		Location:    c.PostForm("location"),
		Reporter:    middleware.CurrentIdentity(c),
	}
	span.SetAttributes(attribute.Bool("issue.has_image", image != nil))

	// Validate before touching storage
	if err := requireFields("description", in.Description, "location", in.Location); err != nil {
		HandleAppError(c, err)
		return
	}

	in.ImageURL = saveMedia(ctx, h.sink, image, false, h.logger)

	issue, err := h.issueService.CreateIssue(ctx, in)
	if err != nil {
		h.logger.Error(ctx, "Failed to create issue", err, nil)
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, issue)
}

// ListIssues handles GET /issues?skip&limit&sort_by
func (h *IssueHandler) ListIssues(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_issues")
	defer observability.FinishSpan(span, nil)

	skip, limit, err := ParseSkipLimit(c, config.DefaultIssueListLimit, config.MaxIssueListLimit)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	sortBy := models.ParseIssueSort(c.DefaultQuery("sort_by", string(models.IssueSortPriority)))

	issues, err := h.issueService.ListIssues(ctx, skip, limit, sortBy)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, issues)
}

// GetIssue handles GET /issues/{id}
func (h *IssueHandler) GetIssue(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_issue")
	defer observability.FinishSpan(span, nil)

	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}

	issue, err := h.issueService.GetIssue(ctx, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, issue)
}

// UpvoteIssue handles POST /issues/{id}/upvote
func (h *IssueHandler) UpvoteIssue(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "upvote_issue")
	defer observability.FinishSpan(span, nil)

	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}

	issue, err := h.issueService.UpvoteIssue(ctx, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Upvoted successfully",
		"upvotes":      issue.Upvotes,
		"new_priority": issue.PriorityScore,
	})
}

// UpdateIssueStatus handles PATCH and PUT /issues/{id}/status. An absent or
// empty resolution_image_url keeps the stored one.
func (h *IssueHandler) UpdateIssueStatus(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_issue_status")
	defer observability.FinishSpan(span, nil)

	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateIssueStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", err.Error())
		return
	}

	issue, err := h.issueService.UpdateIssueStatus(ctx, id, req.Status, req.ResolutionImageURL)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(ctx, "Issue status updated", map[string]interface{}{
		"issue_id": issue.ID,
		"status":   string(issue.Status),
	})
	c.JSON(http.StatusOK, gin.H{
		"message": "Status updated",
		"status":  issue.Status,
		"issue":   issue,
	})
}

// GetAnalytics handles GET /analytics
func (h *IssueHandler) GetAnalytics(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_analytics")
	defer observability.FinishSpan(span, nil)

	analytics, err := h.issueService.GetAnalytics(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, analytics)
}

// GetHeatmap handles GET /heatmap
func (h *IssueHandler) GetHeatmap(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_heatmap")
	defer observability.FinishSpan(span, nil)

	points, err := h.issueService.GetHeatmap(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, points)
}

// requireFields takes name/value pairs and rejects the first blank value
func requireFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return contextutils.NewValidationError(pairs[i], pairs[i]+" is required")
		}
	}
	return nil
}
