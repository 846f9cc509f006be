package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"campusfix/internal/config"
	"campusfix/internal/middleware"
	"campusfix/internal/models"
	"campusfix/internal/observability"
	"campusfix/internal/tokencache"
	"campusfix/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	cfg       *config.Config
	router    *gin.Engine
	issues    *MockIssueService
	safety    *MockSafetyService
	oauth     *MockOAuthService
	inspector *MockInspector
	notifier  *MockNotifier
	sink      *fakeSink
	tokens    tokencache.Store
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	s := &testServer{
		cfg:       cfg,
		issues:    &MockIssueService{},
		safety:    &MockSafetyService{},
		oauth:     &MockOAuthService{},
		inspector: &MockInspector{},
		notifier:  &MockNotifier{},
		sink:      &fakeSink{},
		tokens:    newMemoryTokens(),
	}
	s.router = NewRouter(cfg, s.issues, s.safety, s.oauth, s.tokens, s.sink, s.inspector, s.notifier,
		middleware.NewRateLimiter(cfg.RateLimit), observability.NewNopLogger())

	t.Cleanup(func() {
		s.issues.AssertExpectations(t)
		s.safety.AssertExpectations(t)
		s.oauth.AssertExpectations(t)
	})
	return s
}

// login signs identity in through the mobile token exchange and returns the session cookie
func (s *testServer) login(t *testing.T, identity *models.Identity) *http.Cookie {
	t.Helper()
	payload, err := json.Marshal(identity)
	require.NoError(t, err)
	token := "tok-" + identity.Sub
	require.NoError(t, s.tokens.Put(t.Context(), mobileTokenKeyPrefix+token, string(payload), s.cfg.Auth.MobileTokenTTL))

	req := httptest.NewRequest(http.MethodPost, "/auth/exchange-token", strings.NewReader(`{"token":"`+token+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(s.router, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return sessionCookie(t, w)
}

var (
	student = &models.Identity{Sub: "g-42", Name: "Ravi Kumar", Email: "ravi@campus.edu", Provider: "google"}
	warden  = &models.Identity{Sub: "gh-7", Name: "Meera Iyer", Email: "Admin@Campus.edu", Provider: "github"}
)

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	w := do(s.router, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, version.Version, body["version"])
	assert.Equal(t, version.Commit, body["commit"])
}

func TestRouter_UnknownRoute(t *testing.T) {
	s := newTestServer(t)

	w := do(s.router, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Not found")
}

func TestRouter_IssuesRequireLoginByDefault(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/issues", "/issues/1", "/analytics", "/heatmap"} {
		w := do(s.router, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouter_IssuesOpenWhenLoginNotRequired(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Features.RequireAuthForIssues = false })
	s.issues.On("GetHeatmap", anyCtx).Return([]models.HeatmapPoint{{ID: 1, Location: "Block A", Severity: models.SeverityHigh}}, nil)

	w := do(s.router, httptest.NewRequest(http.MethodGet, "/heatmap", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":1,"location":"Block A","severity":"High"}]`, w.Body.String())
}

func TestRouter_SafetyAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	s.safety.On("ListReports", anyCtx, 0).Return([]models.SafetyReport{}, nil).Once()

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		w := do(s.router, httptest.NewRequest(http.MethodGet, "/safety/reports", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		cookie := s.login(t, student)
		w := do(s.router, httptest.NewRequest(http.MethodGet, "/safety/reports", nil), cookie)
		assert.Equal(t, http.StatusForbidden, w.Code)

		req := httptest.NewRequest(http.MethodPatch, "/safety/reports/3/status", strings.NewReader(`{"status":"Resolved"}`))
		req.Header.Set("Content-Type", "application/json")
		w = do(s.router, req, cookie)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin lists every report", func(t *testing.T) {
		cookie := s.login(t, warden)
		w := do(s.router, httptest.NewRequest(http.MethodGet, "/safety/reports", nil), cookie)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})
}

func TestRouter_CommunityFeedIsPublic(t *testing.T) {
	s := newTestServer(t)
	s.safety.On("ListCommunityReports", anyCtx).Return([]models.SafetyReport{}, nil)

	w := do(s.router, httptest.NewRequest(http.MethodGet, "/safety/community", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_StatusBodiesAreSchemaValidated(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, warden)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"issue status missing", http.MethodPatch, "/issues/1/status", `{}`},
		{"issue status empty", http.MethodPut, "/issues/1/status", `{"status":""}`},
		{"safety status wrong type", http.MethodPatch, "/safety/reports/1/status", `{"status":5}`},
		{"exchange token extra field", http.MethodPost, "/auth/exchange-token", `{"token":"x","user":"admin"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := do(s.router, req, cookie)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
		})
	}
}

func TestRouter_RateLimitsReportSubmission(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.RateLimit.RequestsPerMinute = 1
		c.RateLimit.Burst = 1
	})
	s.safety.On("CreateReport", anyCtx, anyArg).Return(&models.SafetyReport{ID: 1}, nil).Once()
	s.notifier.On("IsEnabled").Return(false)

	first := do(s.router, multipartRequest(t, "/safety/reports", map[string]string{"description": "broken lock", "location": "Hostel B"}, nil))
	second := do(s.router, multipartRequest(t, "/safety/reports", map[string]string{"description": "broken lock", "location": "Hostel B"}, nil))

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestRouter_ForwardedForDoesNotEvadeRateLimit(t *testing.T) {
	limited := func(c *config.Config) {
		c.RateLimit.RequestsPerMinute = 1
		c.RateLimit.Burst = 1
	}
	fields := map[string]string{"description": "broken lock", "location": "Hostel B"}
	send := func(s *testServer, forwardedFor string) int {
		req := multipartRequest(t, "/safety/reports", fields, nil)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		return do(s.router, req).Code
	}

	t.Run("no trusted proxies", func(t *testing.T) {
		s := newTestServer(t, limited)
		s.safety.On("CreateReport", anyCtx, anyArg).Return(&models.SafetyReport{ID: 1}, nil).Once()
		s.notifier.On("IsEnabled").Return(false)

		assert.Equal(t, http.StatusCreated, send(s, "203.0.113.1"))
		assert.Equal(t, http.StatusTooManyRequests, send(s, "203.0.113.2"))
	})

	t.Run("behind a trusted proxy", func(t *testing.T) {
		s := newTestServer(t, limited, func(c *config.Config) {
			c.Server.TrustedProxies = []string{"192.0.2.0/24"}
		})
		s.safety.On("CreateReport", anyCtx, anyArg).Return(&models.SafetyReport{ID: 1}, nil).Twice()
		s.notifier.On("IsEnabled").Return(false)

		assert.Equal(t, http.StatusCreated, send(s, "203.0.113.1"))
		assert.Equal(t, http.StatusCreated, send(s, "203.0.113.2"))
		assert.Equal(t, http.StatusTooManyRequests, send(s, "203.0.113.1"))
	})
}
