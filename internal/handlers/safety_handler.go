package handlers

import (
	"net/http"
	"strings"
	"time"

	"campusfix/internal/config"
	"campusfix/internal/models"
	"campusfix/internal/observability"
	"campusfix/internal/serviceinterfaces"
	"campusfix/internal/storage"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// SafetyHandler serves the anonymous safety report endpoints
type SafetyHandler struct {
	safetyService serviceinterfaces.SafetyService
	sink          storage.MediaSink
	inspector     serviceinterfaces.MediaInspector
	notifier      serviceinterfaces.NotificationService
	cfg           *config.Config
	logger        *observability.Logger
}

// NewSafetyHandler creates a new safety handler. inspector and notifier may be nil.
func NewSafetyHandler(
	safetyService serviceinterfaces.SafetyService,
	sink storage.MediaSink,
	inspector serviceinterfaces.MediaInspector,
	notifier serviceinterfaces.NotificationService,
	cfg *config.Config,
	logger *observability.Logger,
) *SafetyHandler {
	return &SafetyHandler{
		safetyService: safetyService,
		sink:          sink,
		inspector:     inspector,
		notifier:      notifier,
		cfg:           cfg,
		logger:        logger,
	}
}

// UpdateSafetyStatusRequest is the body of PATCH /safety/reports/{id}/status
type UpdateSafetyStatusRequest struct {
	Status string `json:"status"`
}

// CreateReport handles POST /safety/reports. No login is required and no
// reporter identity is stored even when the caller has a session.
func (h *SafetyHandler) CreateReport(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_safety_report")
	defer observability.FinishSpan(span, nil)

	media, err := readUpload(c, "media", h.cfg.Media.MaxUploadBytes)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	in := models.NewSafetyReport{
		Description: c.PostForm("description"),
		Location:    c.PostForm("location"),
	}
	if err := requireFields("description", in.Description, "location", in.Location); err != nil {
		HandleAppError(c, err)
		return
	}

	if raw := strings.TrimSpace(c.PostForm("incident_time")); raw != "" {
		incidentTime, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			HandleValidationError(c, "incident_time", "must be an RFC3339 timestamp")
			return
		}
		in.IncidentTime = &incidentTime
	}

	if media != nil {
		in.IsNSFW = h.inspect(c, media)
		in.MediaURL = saveMedia(ctx, h.sink, media, true, h.logger)
	}
	span.SetAttributes(
		attribute.Bool("report.has_media", in.MediaURL != ""),
		attribute.Bool("report.nsfw", in.IsNSFW),
	)

	report, err := h.safetyService.CreateReport(ctx, in)
	if err != nil {
		h.logger.Error(ctx, "Failed to create safety report", err, nil)
		HandleAppError(c, err)
		return
	}

	if h.notifier != nil && h.notifier.IsEnabled() {
		if err := h.notifier.NotifySafetyReport(ctx, report); err != nil {
			h.logger.Error(ctx, "Failed to notify admins about safety report", err, map[string]interface{}{
				"report_id": report.ID,
			})
		}
	}

	c.JSON(http.StatusCreated, report)
}

// inspect runs the media inspector; undecodable media counts as not explicit
func (h *SafetyHandler) inspect(c *gin.Context, media *upload) bool {
	if h.inspector == nil {
		return false
	}
	ctx := c.Request.Context()
	nsfw, err := h.inspector.Inspect(ctx, media.Data)
	if err != nil {
		h.logger.Warn(ctx, "Media inspection failed, storing report as not explicit", map[string]interface{}{
			"content_type": media.ContentType,
			"size":         len(media.Data),
			"error":        err.Error(),
		})
		return false
	}
	return nsfw
}

// ListReports handles GET /safety/reports (admin only)
func (h *SafetyHandler) ListReports(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_safety_reports")
	defer observability.FinishSpan(span, nil)

	reports, err := h.safetyService.ListReports(ctx, 0)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, reports)
}

// ListCommunityReports handles GET /safety/community
func (h *SafetyHandler) ListCommunityReports(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_community_reports")
	defer observability.FinishSpan(span, nil)

	reports, err := h.safetyService.ListCommunityReports(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, reports)
}

// UpdateReportStatus handles PATCH /safety/reports/{id}/status (admin only)
func (h *SafetyHandler) UpdateReportStatus(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_safety_report_status")
	defer observability.FinishSpan(span, nil)

	id, ok := ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateSafetyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", err.Error())
		return
	}

	report, err := h.safetyService.UpdateReportStatus(ctx, id, req.Status)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
