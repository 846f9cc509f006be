package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	contextutils "campusfix/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchemaLoader_LoadsEmbeddedSchemas(t *testing.T) {
	loader := DefaultSchemaLoader()
	assert.Equal(t, []string{SchemaExchangeTokenRequest, SchemaIssueStatusUpdate, SchemaSafetyStatusUpdate}, loader.Names())
}

func TestSchemaLoader_ValidateBytes(t *testing.T) {
	loader := DefaultSchemaLoader()

	tests := []struct {
		name   string
		schema string
		body   string
		valid  bool
	}{
		{"status only", SchemaIssueStatusUpdate, `{"status":"Resolved"}`, true},
		{"status with image", SchemaIssueStatusUpdate, `{"status":"resolved","resolution_image_url":"https://x/y.png"}`, true},
		{"null image", SchemaIssueStatusUpdate, `{"status":"resolved","resolution_image_url":null}`, true},
		{"missing status", SchemaIssueStatusUpdate, `{"resolution_image_url":"a"}`, false},
		{"empty status", SchemaIssueStatusUpdate, `{"status":""}`, false},
		{"numeric status", SchemaSafetyStatusUpdate, `{"status":3}`, false},
		{"token", SchemaExchangeTokenRequest, `{"token":"abc"}`, true},
		{"extra field", SchemaExchangeTokenRequest, `{"token":"abc","admin":true}`, false},
		{"not json", SchemaExchangeTokenRequest, `{token`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loader.ValidateBytes([]byte(tt.body), tt.schema)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, contextutils.ErrorCodeValidationFailed, contextutils.GetErrorCode(err))
		})
	}
}

func TestSchemaLoader_UnknownSchema(t *testing.T) {
	err := DefaultSchemaLoader().ValidateBytes([]byte(`{}`), "Nope")
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeInternalError, contextutils.GetErrorCode(err))
}

func TestSchemaLoader_LoadSchemasRejectsBadDocuments(t *testing.T) {
	assert.Error(t, NewSchemaLoader().LoadSchemas([]byte("paths: {}")))
	assert.Error(t, NewSchemaLoader().LoadSchemas([]byte("components:\n  other: 1")))
	assert.Error(t, NewSchemaLoader().LoadSchemas([]byte("components: [unclosed")))
}

func TestValidateJSONBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.PATCH("/issues/:id/status", ValidateJSONBody(SchemaIssueStatusUpdate), func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		require.NoError(t, err)
		c.String(http.StatusOK, string(body))
	})

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("PATCH", "/issues/1/status", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := send(`{"status":"in_progress"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"status":"in_progress"}`, w.Body.String())

	w = send(`{"resolution_image_url":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
	assert.Contains(t, w.Body.String(), "status")

	w = send("")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateJSONBody_UnknownSchemaPanics(t *testing.T) {
	assert.Panics(t, func() { ValidateJSONBody("Missing") })
}
