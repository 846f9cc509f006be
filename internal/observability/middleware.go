package observability

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	contextutils "campusfix/internal/utils"
)

// GinMiddleware traces every request with otelgin. The second handler runs
// inside the server span and annotates 4xx and 5xx responses, attaching the
// AppError code when a handler recorded one with c.Error. otelgin itself
// records c.Errors and sets the final status for 5xx.
func GinMiddleware(serviceName string) gin.HandlersChain {
	return gin.HandlersChain{otelgin.Middleware(serviceName), annotateFailedRequest}
}

func annotateFailedRequest(c *gin.Context) {
	c.Next()

	status := c.Writer.Status()
	if status < http.StatusBadRequest {
		return
	}
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return
	}

	appErr := firstAppError(c.Errors)
	message := http.StatusText(status)
	if appErr != nil {
		message = appErr.Message
	}
	span.SetStatus(codes.Error, message)
	span.SetAttributes(
		attribute.Int("http.status_code", status),
		attribute.String("error.severity", string(determineErrorSeverity(status, appErr))),
		attribute.Bool("error.server_error", status >= http.StatusInternalServerError),
	)
	if appErr != nil {
		span.SetAttributes(
			attribute.String("error.code", string(appErr.Code)),
			attribute.Bool("error.retryable", contextutils.IsRetryable(appErr)),
		)
	}
	if c.Request.ContentLength > 0 {
		span.SetAttributes(attribute.Int64("error.request_size", c.Request.ContentLength))
	}

	// The session middleware may not be installed, so avoid sessions.Default
	if v, ok := c.Get(sessions.DefaultKey); ok {
		if session, ok := v.(sessions.Session); ok {
			if provider, ok := session.Get("provider").(string); ok && provider != "" {
				span.SetAttributes(attribute.String("error.identity_provider", provider))
			}
		}
	}
}

func firstAppError(errs []*gin.Error) *contextutils.AppError {
	for _, e := range errs {
		if appErr, ok := contextutils.AsAppError(e.Err); ok {
			return appErr
		}
	}
	return nil
}

// determineErrorSeverity prefers the AppError's own severity over the status class
func determineErrorSeverity(status int, appErr *contextutils.AppError) contextutils.SeverityLevel {
	switch {
	case appErr != nil:
		return appErr.Severity
	case status >= http.StatusInternalServerError:
		return contextutils.SeverityError
	case status >= http.StatusBadRequest:
		return contextutils.SeverityWarn
	default:
		return contextutils.SeverityInfo
	}
}
