package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"campusfix/internal/config"
	"campusfix/internal/models"
	"campusfix/internal/storage"
	contextutils "campusfix/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleIssue(id int64) *models.Issue {
	return &models.Issue{
		ID:            id,
		Description:   "Water leaking from the ceiling",
		Location:      "Library 2F",
		Category:      models.CategoryPlumbing,
		Severity:      models.SeverityHigh,
		Summary:       "Water leaking from the ceiling",
		PriorityScore: 30,
		Status:        models.IssueStatusNew,
	}
}

func TestIssueHandler_CreateIssue(t *testing.T) {
	t.Run("stores image and reporter", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, student)
		s.issues.On("CreateIssue", anyCtx, mock.MatchedBy(func(in models.NewIssue) bool {
			return in.Description == "Water leaking from the ceiling" &&
				in.Location == "Library 2F" &&
				strings.HasPrefix(in.ImageURL, "http://media.test/") &&
				strings.HasSuffix(in.ImageURL, ".jpg") &&
				in.Reporter != nil && in.Reporter.Sub == student.Sub
		})).Return(sampleIssue(1), nil)

		req := multipartRequest(t, "/issues",
			map[string]string{"description": "Water leaking from the ceiling", "location": "Library 2F"},
			&testFile{field: "image", filename: "leak.JPG", data: []byte("jpeg-bytes")})
		w := do(s.router, req, cookie)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Len(t, s.sink.saved, 1)
		for name, data := range s.sink.saved {
			assert.False(t, strings.HasPrefix(name, storage.SafetyPrefix))
			assert.Equal(t, []byte("jpeg-bytes"), data)
		}

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Plumbing", body["category"])
		assert.Equal(t, "New", body["status"])
	})

	t.Run("failed upload still creates the issue", func(t *testing.T) {
		s := newTestServer(t)
		s.sink.err = errors.New("bucket unreachable")
		cookie := s.login(t, student)
		s.issues.On("CreateIssue", anyCtx, mock.MatchedBy(func(in models.NewIssue) bool {
			return in.ImageURL == ""
		})).Return(sampleIssue(2), nil)

		req := multipartRequest(t, "/issues",
			map[string]string{"description": "Broken fan", "location": "Room 101"},
			&testFile{field: "image", filename: "fan.png", data: []byte("png")})
		w := do(s.router, req, cookie)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("missing description", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, student)

		req := multipartRequest(t, "/issues", map[string]string{"location": "Room 101"}, nil)
		w := do(s.router, req, cookie)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid description")
		assert.Empty(t, s.sink.saved)
	})

	t.Run("oversized image", func(t *testing.T) {
		s := newTestServer(t, func(c *config.Config) { c.Media.MaxUploadBytes = 4 })
		cookie := s.login(t, student)

		req := multipartRequest(t, "/issues",
			map[string]string{"description": "Broken fan", "location": "Room 101"},
			&testFile{field: "image", filename: "fan.png", data: []byte("too large")})
		w := do(s.router, req, cookie)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid image")
	})

	t.Run("anonymous when login is not required", func(t *testing.T) {
		s := newTestServer(t, func(c *config.Config) { c.Features.RequireAuthForIssues = false })
		s.issues.On("CreateIssue", anyCtx, mock.MatchedBy(func(in models.NewIssue) bool {
			return in.Reporter == nil
		})).Return(sampleIssue(3), nil)

		req := multipartRequest(t, "/issues", map[string]string{"description": "Dirty floor", "location": "Canteen"}, nil)
		w := do(s.router, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestIssueHandler_ListIssues(t *testing.T) {
	t.Run("defaults to priority order", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, student)
		s.issues.On("ListIssues", anyCtx, 0, config.DefaultIssueListLimit, models.IssueSortPriority).
			Return([]models.Issue{*sampleIssue(1)}, nil)

		w := do(s.router, httptest.NewRequest(http.MethodGet, "/issues", nil), cookie)

		require.Equal(t, http.StatusOK, w.Code)
		var body []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body, 1)
	})

	t.Run("unknown sort falls back to newest and limit is capped", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, student)
		s.issues.On("ListIssues", anyCtx, 10, config.MaxIssueListLimit, models.IssueSortNewest).
			Return([]models.Issue{}, nil)

		w := do(s.router, httptest.NewRequest(http.MethodGet, "/issues?skip=10&limit=9999&sort_by=oldest", nil), cookie)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("negative skip", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, student)

		w := do(s.router, httptest.NewRequest(http.MethodGet, "/issues?skip=-1", nil), cookie)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestIssueHandler_GetIssue(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, student)
	s.issues.On("GetIssue", anyCtx, int64(1)).Return(sampleIssue(1), nil)
	s.issues.On("GetIssue", anyCtx, int64(99)).Return(nil, contextutils.ErrRecordNotFound)

	w := do(s.router, httptest.NewRequest(http.MethodGet, "/issues/1", nil), cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(s.router, httptest.NewRequest(http.MethodGet, "/issues/99", nil), cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "RECORD_NOT_FOUND")

	w = do(s.router, httptest.NewRequest(http.MethodGet, "/issues/abc", nil), cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueHandler_UpvoteIssue(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, student)
	upvoted := sampleIssue(1)
	upvoted.Upvotes = 1
	upvoted.PriorityScore = 32
	s.issues.On("UpvoteIssue", anyCtx, int64(1)).Return(upvoted, nil)
	s.issues.On("UpvoteIssue", anyCtx, int64(2)).Return(nil, contextutils.ErrRecordNotFound)

	w := do(s.router, httptest.NewRequest(http.MethodPost, "/issues/1/upvote", nil), cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Upvoted successfully","upvotes":1,"new_priority":32}`, w.Body.String())

	w = do(s.router, httptest.NewRequest(http.MethodPost, "/issues/2/upvote", nil), cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIssueHandler_UpdateIssueStatus(t *testing.T) {
	statusRequest := func(method, path, body string) *http.Request {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	t.Run("resolution image is passed through", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, student)
		resolved := sampleIssue(1)
		resolved.Status = models.IssueStatusResolved
		resolved.ResolutionImageURL = sql.NullString{String: "http://media.test/fixed.jpg", Valid: true}
		s.issues.On("UpdateIssueStatus", anyCtx, int64(1), "Resolved", mock.MatchedBy(func(u *string) bool {
			return u != nil && *u == "http://media.test/fixed.jpg"
		})).Return(resolved, nil)

		w := do(s.router, statusRequest(http.MethodPatch, "/issues/1/status",
			`{"status":"Resolved","resolution_image_url":"http://media.test/fixed.jpg"}`), cookie)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Status updated", body["message"])
		assert.Equal(t, "Resolved", body["status"])
		issue := body["issue"].(map[string]interface{})
		assert.Equal(t, "http://media.test/fixed.jpg", issue["resolution_image_url"])
	})

	t.Run("absent resolution image keeps the stored one", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, student)
		s.issues.On("UpdateIssueStatus", anyCtx, int64(1), "in_progress", (*string)(nil)).Return(sampleIssue(1), nil)

		w := do(s.router, statusRequest(http.MethodPut, "/issues/1/status", `{"status":"in_progress"}`), cookie)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, student)
		s.issues.On("UpdateIssueStatus", anyCtx, int64(1), "Closed", (*string)(nil)).
			Return(nil, contextutils.NewValidationError("status", "unknown status"))

		w := do(s.router, statusRequest(http.MethodPatch, "/issues/1/status", `{"status":"Closed"}`), cookie)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing issue", func(t *testing.T) {
		s := newTestServer(t)
		cookie := s.login(t, student)
		s.issues.On("UpdateIssueStatus", anyCtx, int64(7), "Resolved", (*string)(nil)).Return(nil, contextutils.ErrRecordNotFound)

		w := do(s.router, statusRequest(http.MethodPatch, "/issues/7/status", `{"status":"Resolved"}`), cookie)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestIssueHandler_GetAnalytics(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, student)
	s.issues.On("GetAnalytics", anyCtx).Return(&models.Analytics{
		TotalIssues:    3,
		ResolvedIssues: 1,
		PendingIssues:  2,
		ByCategory:     map[string]int64{"Plumbing": 2, "IT": 1},
	}, nil)

	w := do(s.router, httptest.NewRequest(http.MethodGet, "/analytics", nil), cookie)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_issues":3,"resolved_issues":1,"pending_issues":2,"in_progress_issues":0,"by_category":{"Plumbing":2,"IT":1}}`, w.Body.String())
}

func TestIssueHandler_ServiceFailureHidesDetails(t *testing.T) {
	s := newTestServer(t)
	cookie := s.login(t, student)
	s.issues.On("GetHeatmap", anyCtx).Return(nil, contextutils.WrapError(errors.New("pq: connection refused"), "failed to load heatmap"))

	w := do(s.router, httptest.NewRequest(http.MethodGet, "/heatmap", nil), cookie)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
