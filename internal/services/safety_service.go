package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"campusfix/internal/config"
	"campusfix/internal/models"
	"campusfix/internal/observability"
	"campusfix/internal/serviceinterfaces"
	contextutils "campusfix/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

const safetyColumns = `id, description, location, media_url, is_nsfw, is_critical, incident_time, status, created_at`

var _ serviceinterfaces.SafetyService = (*SafetyService)(nil)

// SafetyService stores anonymous safety reports
type SafetyService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewSafetyService creates a new SafetyService instance.
func NewSafetyService(db *sql.DB, logger *observability.Logger) *SafetyService {
	if db == nil {
		panic("NewSafetyService: db is nil")
	}
	if logger == nil {
		panic("NewSafetyService: logger is nil")
	}
	return &SafetyService{db: db, logger: logger}
}

func scanSafetyReport(row rowScanner) (*models.SafetyReport, error) {
	var r models.SafetyReport
	if err := row.Scan(&r.ID, &r.Description, &r.Location, &r.MediaURL, &r.IsNSFW, &r.IsCritical,
		&r.IncidentTime, &r.Status, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReport inserts a report. Every report is critical and starts as received.
func (s *SafetyService) CreateReport(ctx context.Context, in models.NewSafetyReport) (result0 *models.SafetyReport, err error) {
	ctx, span := observability.TraceSafetyFunction(ctx, "create_report")
	defer observability.FinishSpan(span, &err)

	description := strings.TrimSpace(in.Description)
	location := strings.TrimSpace(in.Location)
	if description == "" {
		return nil, contextutils.NewValidationError("description", "description is required")
	}
	if location == "" {
		return nil, contextutils.NewValidationError("location", "location is required")
	}

	query := `INSERT INTO safety_reports (description, location, media_url, is_nsfw, is_critical, incident_time, status)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6)
		RETURNING ` + safetyColumns

	report, err := scanSafetyReport(s.db.QueryRowContext(ctx, query, description, location,
		models.NullString(in.MediaURL), in.IsNSFW, models.NullTimePtr(in.IncidentTime), models.SafetyStatusReceived))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert safety report")
	}

	span.SetAttributes(observability.AttributeReportID(report.ID), attribute.Bool("report.nsfw", report.IsNSFW))
	observability.RecordSafetyReportCreated(ctx, report.IsNSFW)
	s.logger.Info(ctx, "Safety report received", map[string]interface{}{
		"report_id": report.ID,
		"has_media": report.MediaURL.Valid,
		"is_nsfw":   report.IsNSFW,
	})
	return report, nil
}

// ListReports returns reports newest first. limit <= 0 returns all of them.
func (s *SafetyService) ListReports(ctx context.Context, limit int) (result0 []models.SafetyReport, err error) {
	ctx, span := observability.TraceSafetyFunction(ctx, "list_reports", observability.AttributeLimit(limit))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + safetyColumns + ` FROM safety_reports ORDER BY created_at DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query safety reports")
	}
	defer func() {
		_ = rows.Close()
	}()

	reports := []models.SafetyReport{}
	for rows.Next() {
		r, err := scanSafetyReport(rows)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan safety report")
		}
		reports = append(reports, *r)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate safety reports")
	}
	return reports, nil
}

// ListCommunityReports returns the public feed of the most recent reports
func (s *SafetyService) ListCommunityReports(ctx context.Context) ([]models.SafetyReport, error) {
	return s.ListReports(ctx, config.CommunityFeedLimit)
}

// UpdateReportStatus moves a report to received, investigating or resolved.
func (s *SafetyService) UpdateReportStatus(ctx context.Context, id int64, status string) (result0 *models.SafetyReport, err error) {
	ctx, span := observability.TraceSafetyFunction(ctx, "update_report_status",
		observability.AttributeReportID(id),
		observability.AttributeStatus(status),
	)
	defer observability.FinishSpan(span, &err)

	normalized, ok := models.ParseSafetyStatus(status)
	if !ok {
		return nil, contextutils.NewValidationError("status", "status must be one of received, investigating, resolved")
	}

	report, err := scanSafetyReport(s.db.QueryRowContext(ctx,
		`UPDATE safety_reports SET status = $2 WHERE id = $1 RETURNING `+safetyColumns, id, normalized))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "safety report %d not found", id)
		}
		return nil, contextutils.WrapError(err, "failed to update safety report status")
	}
	return report, nil
}
