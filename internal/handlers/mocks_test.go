package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"campusfix/internal/config"
	"campusfix/internal/models"
	"campusfix/internal/observability"
	"campusfix/internal/tokencache"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	anyCtx = mock.Anything
	anyArg = mock.Anything
)

// MockIssueService implements serviceinterfaces.IssueService
type MockIssueService struct {
	mock.Mock
}

func (m *MockIssueService) CreateIssue(ctx context.Context, in models.NewIssue) (*models.Issue, error) {
	args := m.Called(ctx, in)
	issue, _ := args.Get(0).(*models.Issue)
	return issue, args.Error(1)
}

func (m *MockIssueService) GetIssue(ctx context.Context, id int64) (*models.Issue, error) {
	args := m.Called(ctx, id)
	issue, _ := args.Get(0).(*models.Issue)
	return issue, args.Error(1)
}

func (m *MockIssueService) ListIssues(ctx context.Context, skip, limit int, sortBy models.IssueSort) ([]models.Issue, error) {
	args := m.Called(ctx, skip, limit, sortBy)
	issues, _ := args.Get(0).([]models.Issue)
	return issues, args.Error(1)
}

func (m *MockIssueService) UpvoteIssue(ctx context.Context, id int64) (*models.Issue, error) {
	args := m.Called(ctx, id)
	issue, _ := args.Get(0).(*models.Issue)
	return issue, args.Error(1)
}

func (m *MockIssueService) UpdateIssueStatus(ctx context.Context, id int64, status string, resolutionImageURL *string) (*models.Issue, error) {
	args := m.Called(ctx, id, status, resolutionImageURL)
	issue, _ := args.Get(0).(*models.Issue)
	return issue, args.Error(1)
}

func (m *MockIssueService) GetAnalytics(ctx context.Context) (*models.Analytics, error) {
	args := m.Called(ctx)
	analytics, _ := args.Get(0).(*models.Analytics)
	return analytics, args.Error(1)
}

func (m *MockIssueService) GetHeatmap(ctx context.Context) ([]models.HeatmapPoint, error) {
	args := m.Called(ctx)
	points, _ := args.Get(0).([]models.HeatmapPoint)
	return points, args.Error(1)
}

// MockSafetyService implements serviceinterfaces.SafetyService
type MockSafetyService struct {
	mock.Mock
}

func (m *MockSafetyService) CreateReport(ctx context.Context, in models.NewSafetyReport) (*models.SafetyReport, error) {
	args := m.Called(ctx, in)
	report, _ := args.Get(0).(*models.SafetyReport)
	return report, args.Error(1)
}

func (m *MockSafetyService) ListReports(ctx context.Context, limit int) ([]models.SafetyReport, error) {
	args := m.Called(ctx, limit)
	reports, _ := args.Get(0).([]models.SafetyReport)
	return reports, args.Error(1)
}

func (m *MockSafetyService) ListCommunityReports(ctx context.Context) ([]models.SafetyReport, error) {
	args := m.Called(ctx)
	reports, _ := args.Get(0).([]models.SafetyReport)
	return reports, args.Error(1)
}

func (m *MockSafetyService) UpdateReportStatus(ctx context.Context, id int64, status string) (*models.SafetyReport, error) {
	args := m.Called(ctx, id, status)
	report, _ := args.Get(0).(*models.SafetyReport)
	return report, args.Error(1)
}

// MockOAuthService implements serviceinterfaces.OAuthService
type MockOAuthService struct {
	mock.Mock
}

func (m *MockOAuthService) AuthCodeURL(provider, state string) (string, error) {
	args := m.Called(provider, state)
	return args.String(0), args.Error(1)
}

func (m *MockOAuthService) Authenticate(ctx context.Context, provider, code string) (*models.Identity, error) {
	args := m.Called(ctx, provider, code)
	identity, _ := args.Get(0).(*models.Identity)
	return identity, args.Error(1)
}

func (m *MockOAuthService) EnabledProviders() []string {
	args := m.Called()
	providers, _ := args.Get(0).([]string)
	return providers
}

// MockNotifier implements serviceinterfaces.NotificationService
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifySafetyReport(ctx context.Context, report *models.SafetyReport) error {
	return m.Called(ctx, report).Error(0)
}

func (m *MockNotifier) IsEnabled() bool {
	return m.Called().Bool(0)
}

// MockInspector implements serviceinterfaces.MediaInspector
type MockInspector struct {
	mock.Mock
}

func (m *MockInspector) Inspect(ctx context.Context, data []byte) (bool, error) {
	args := m.Called(ctx, data)
	return args.Bool(0), args.Error(1)
}

// fakeSink records saved objects and fails when err is set
type fakeSink struct {
	err   error
	saved map[string][]byte
}

func (s *fakeSink) Save(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[name] = data
	return "http://media.test/" + name, nil
}

func (s *fakeSink) Backend() string { return "fake" }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.IsTest = true
	cfg.Server.SessionSecret = "test-secret"
	cfg.Server.FrontendURL = "http://frontend.test"
	cfg.Auth.AdminEmails = []string{"admin@campus.edu"}
	cfg.RateLimit.RequestsPerMinute = 0
	return cfg
}

func newMemoryTokens() tokencache.Store {
	return tokencache.NewMemoryStore(0, observability.NewNopLogger())
}

func do(router http.Handler, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == config.SessionName {
			return c
		}
	}
	require.FailNow(t, "no session cookie in response")
	return nil
}

type testFile struct {
	field    string
	filename string
	data     []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, file *testFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		part, err := mw.CreateFormFile(file.field, file.filename)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
