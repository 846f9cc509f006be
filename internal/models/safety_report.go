package models

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// SafetyStatus is the review state of a safety report
type SafetyStatus string

// Safety report statuses
const (
	SafetyStatusReceived      SafetyStatus = "received"
	SafetyStatusInvestigating SafetyStatus = "investigating"
	SafetyStatusResolved      SafetyStatus = "resolved"
)

// ParseSafetyStatus validates a safety report status (case-insensitive)
func ParseSafetyStatus(s string) (SafetyStatus, bool) {
	switch SafetyStatus(strings.ToLower(strings.TrimSpace(s))) {
	case SafetyStatusReceived:
		return SafetyStatusReceived, true
	case SafetyStatusInvestigating:
		return SafetyStatusInvestigating, true
	case SafetyStatusResolved:
		return SafetyStatusResolved, true
	}
	return "", false
}

// SafetyReport is an anonymous report of a safety concern. It never carries reporter identity.
type SafetyReport struct {
	ID           int64          `json:"id"`
	Description  string         `json:"description"`
	Location     string         `json:"location"`
	MediaURL     sql.NullString `json:"media_url"`
	IsNSFW       bool           `json:"is_nsfw"`
	IsCritical   bool           `json:"is_critical"`
	IncidentTime sql.NullTime   `json:"incident_time"`
	Status       SafetyStatus   `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// MarshalJSON customizes JSON marshaling for SafetyReport to handle sql.Null types properly
func (r SafetyReport) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID           int64        `json:"id"`
		Description  string       `json:"description"`
		Location     string       `json:"location"`
		MediaURL     *string      `json:"media_url"`
		IsNSFW       bool         `json:"is_nsfw"`
		IsCritical   bool         `json:"is_critical"`
		IncidentTime *time.Time   `json:"incident_time"`
		Status       SafetyStatus `json:"status"`
		CreatedAt    time.Time    `json:"created_at"`
	}{
		ID:           r.ID,
		Description:  r.Description,
		Location:     r.Location,
		MediaURL:     nullStringToPointer(r.MediaURL),
		IsNSFW:       r.IsNSFW,
		IsCritical:   r.IsCritical,
		IncidentTime: nullTimeToPointer(r.IncidentTime),
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
	})
}

// NewSafetyReport is the input for creating a safety report
type NewSafetyReport struct {
	Description  string
	Location     string
	MediaURL     string
	IsNSFW       bool
	IncidentTime *time.Time
}
