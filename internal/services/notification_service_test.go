package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"campusfix/internal/models"
	"campusfix/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingMailer struct {
	failFor map[string]bool
	calls   []string
}

func (f *failingMailer) SendEmail(_ context.Context, to, _, _ string, _ map[string]interface{}) error {
	f.calls = append(f.calls, to)
	if f.failFor[to] {
		return errors.New("smtp refused")
	}
	return nil
}

func (f *failingMailer) IsEnabled() bool { return true }

func testSafetyReport() *models.SafetyReport {
	return &models.SafetyReport{
		ID:           7,
		Description:  "Exposed wiring in corridor",
		Location:     "Hostel B",
		MediaURL:     sql.NullString{String: "/static/images/safety_x.jpg", Valid: true},
		IncidentTime: sql.NullTime{Time: time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC), Valid: true},
		IsCritical:   true,
		Status:       models.SafetyStatusReceived,
	}
}

func TestNotifySafetyReport_MailsEveryAdmin(t *testing.T) {
	cfg := newEmailTestConfig(true)
	cfg.Auth.AdminEmails = []string{"warden@campus.edu", "dean@campus.edu"}
	m := NewTestEmailService(cfg, observability.NewNopLogger())
	service := NewNotificationService(cfg, m, observability.NewNopLogger())

	require.True(t, service.IsEnabled())
	require.NoError(t, service.NotifySafetyReport(context.Background(), testSafetyReport()))

	sent := m.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "warden@campus.edu", sent[0].To)
	assert.Equal(t, "dean@campus.edu", sent[1].To)
	assert.Contains(t, sent[0].Body, "Hostel B")
	assert.Contains(t, sent[0].Body, "Incident time")
}

func TestNotifySafetyReport_Disabled(t *testing.T) {
	cfg := newEmailTestConfig(false)
	cfg.Auth.AdminEmails = []string{"warden@campus.edu"}
	m := NewTestEmailService(cfg, observability.NewNopLogger())
	service := NewNotificationService(cfg, m, observability.NewNopLogger())

	assert.False(t, service.IsEnabled())
	require.NoError(t, service.NotifySafetyReport(context.Background(), testSafetyReport()))
	assert.Empty(t, m.Sent())
}

func TestNotifySafetyReport_NoAdmins(t *testing.T) {
	cfg := newEmailTestConfig(true)
	m := &failingMailer{}
	service := NewNotificationService(cfg, m, observability.NewNopLogger())

	assert.False(t, service.IsEnabled())
	require.NoError(t, service.NotifySafetyReport(context.Background(), testSafetyReport()))
	assert.Empty(t, m.calls)
}

func TestNotifySafetyReport_ContinuesAfterFailure(t *testing.T) {
	cfg := newEmailTestConfig(true)
	cfg.Auth.AdminEmails = []string{"a@campus.edu", "b@campus.edu"}
	m := &failingMailer{failFor: map[string]bool{"a@campus.edu": true}}
	service := NewNotificationService(cfg, m, observability.NewNopLogger())

	err := service.NotifySafetyReport(context.Background(), testSafetyReport())
	require.Error(t, err)
	assert.Equal(t, []string{"a@campus.edu", "b@campus.edu"}, m.calls)
}
