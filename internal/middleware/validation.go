package middleware

import (
	"bytes"
	"io"

	contextutils "campusfix/internal/utils"

	"github.com/gin-gonic/gin"
)

// ValidateJSONBody validates the request body against one of the embedded
// request schemas and restores it for the handler.
func ValidateJSONBody(schemaName string) gin.HandlerFunc {
	return DefaultSchemaLoader().ValidateJSONBody(schemaName)
}

// ValidateJSONBody returns middleware validating bodies against schemaName
func (sl *SchemaLoader) ValidateJSONBody(schemaName string) gin.HandlerFunc {
	if _, ok := sl.schemas[schemaName]; !ok {
		panic("ValidateJSONBody: unknown schema " + schemaName)
	}

	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			abortWith(c, contextutils.NewValidationError("request body", "failed to read body"))
			return
		}
		if len(bytes.TrimSpace(body)) == 0 {
			abortWith(c, contextutils.NewValidationError("request body", "a JSON body is required"))
			return
		}

		if err := sl.ValidateBytes(body, schemaName); err != nil {
			HandleAppError(c, err)
			c.Abort()
			return
		}

		// Restore the request body so handlers can read it
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}
