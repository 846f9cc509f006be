package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"campusfix/internal/observability"
	contextutils "campusfix/internal/utils"

	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into the standard 500 body. The panic value
// and stack are logged, never returned.
func Recovery(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			panicErr, ok := rec.(error)
			if !ok {
				panicErr = fmt.Errorf("panic: %v", rec)
			}
			if logger != nil {
				logger.Error(c.Request.Context(), "Panic recovered", panicErr, map[string]interface{}{
					"method":      c.Request.Method,
					"path":        c.FullPath(),
					"stack_trace": string(debug.Stack()),
				})
			}
			HandleAppError(c, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeInternalError,
				contextutils.SeverityFatal, "Internal server error", "", panicErr))
			c.Abort()
		}()
		c.Next()
	}
}

// HandleAppError writes the first AppError in err's chain; anything else is a 500
func HandleAppError(c *gin.Context, err error) {
	appErr, ok := contextutils.AsAppError(err)
	if !ok {
		appErr = contextutils.NewAppErrorWithCause(contextutils.ErrorCodeInternalError,
			contextutils.SeverityError, "Internal server error", "", err)
	}
	StandardizeAppError(c, appErr)
}

// StandardizeAppError writes err as JSON with the status its code maps to.
// 5xx bodies never carry details, whatever severity the error was tagged with.
func StandardizeAppError(c *gin.Context, err *contextutils.AppError) {
	status := HTTPStatusForCode(err.Code)
	body := err.ToJSON()
	if status >= http.StatusInternalServerError {
		delete(body, "details")
	}
	c.JSON(status, body)
}

var codeStatus = map[contextutils.ErrorCode]int{
	contextutils.ErrorCodeInvalidInput:       http.StatusBadRequest,
	contextutils.ErrorCodeMissingRequired:    http.StatusBadRequest,
	contextutils.ErrorCodeInvalidFormat:      http.StatusBadRequest,
	contextutils.ErrorCodeValidationFailed:   http.StatusBadRequest,
	contextutils.ErrorCodeOAuthStateMismatch: http.StatusBadRequest,
	contextutils.ErrorCodeUnauthorized:       http.StatusUnauthorized,
	contextutils.ErrorCodeOAuthCodeExpired:   http.StatusUnauthorized,
	contextutils.ErrorCodeForbidden:          http.StatusForbidden,
	contextutils.ErrorCodeRecordNotFound:     http.StatusNotFound,
	contextutils.ErrorCodeRateLimit:          http.StatusTooManyRequests,
	contextutils.ErrorCodeOAuthProviderError: http.StatusBadGateway,
	contextutils.ErrorCodeStorageUnavailable: http.StatusBadGateway,
	contextutils.ErrorCodeServiceUnavailable: http.StatusServiceUnavailable,
	contextutils.ErrorCodeDatabaseConnection: http.StatusServiceUnavailable,
}

// HTTPStatusForCode maps an error code to its response status; unknown codes are 500
func HTTPStatusForCode(code contextutils.ErrorCode) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
