package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"campusfix/internal/config"
	"campusfix/internal/middleware"
	"campusfix/internal/observability"
	"campusfix/internal/serviceinterfaces"
	"campusfix/internal/storage"
	"campusfix/internal/tokencache"
	"campusfix/internal/version"
)

// ServiceName identifies the backend in health checks and telemetry
const ServiceName = "campusfix-backend"

// NewRouter creates a new router with all the necessary middleware and routes.
// inspector, notifier and rateLimiter may be nil.
func NewRouter(
	cfg *config.Config,
	issueService serviceinterfaces.IssueService,
	safetyService serviceinterfaces.SafetyService,
	oauthService serviceinterfaces.OAuthService,
	tokens tokencache.Store,
	sink storage.MediaSink,
	inspector serviceinterfaces.MediaInspector,
	notifier serviceinterfaces.NotificationService,
	rateLimiter *middleware.RateLimiter,
	logger *observability.Logger,
) *gin.Engine {
	// Setup Gin mode
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}
	if cfg.IsTest {
		gin.SetMode(gin.TestMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Error(context.Background(), "Invalid trusted proxies, ignoring forwarded headers", err, map[string]interface{}{
			"trusted_proxies": cfg.Server.TrustedProxies,
		})
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(middleware.Recovery(logger))
	router.Use(requestLogger(logger))

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName, "version": version.Version, "commit": version.Commit})
	})

	// Add OpenTelemetry middleware for HTTP tracing and context propagation with automatic error attributes
	router.Use(observability.GinMiddleware(ServiceName)...)

	router.RedirectTrailingSlash = false

	// Setup CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{cfg.Server.FrontendURL}
	}
	router.Use(cors.New(corsConfig))

	// Setup session middleware
	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	// Security middleware
	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	if cfg.Features.MediaBackend == config.MediaBackendLocal {
		router.Static(cfg.Media.LocalURLPrefix, cfg.Media.LocalDir)
	}

	// Initialize handlers
	issueHandler := NewIssueHandler(issueService, sink, cfg, logger)
	safetyHandler := NewSafetyHandler(safetyService, sink, inspector, notifier, cfg, logger)
	authHandler := NewAuthHandler(oauthService, tokens, cfg, logger)

	issues := router.Group("/", middleware.IssueAccess(cfg))
	{
		issues.POST("/issues", rateLimiter.Middleware(), issueHandler.CreateIssue)
		issues.GET("/issues", issueHandler.ListIssues)
		issues.GET("/issues/:id", issueHandler.GetIssue)
		issues.POST("/issues/:id/upvote", issueHandler.UpvoteIssue)
		issues.PATCH("/issues/:id/status", middleware.ValidateJSONBody(middleware.SchemaIssueStatusUpdate), issueHandler.UpdateIssueStatus)
		issues.PUT("/issues/:id/status", middleware.ValidateJSONBody(middleware.SchemaIssueStatusUpdate), issueHandler.UpdateIssueStatus)
		issues.GET("/analytics", issueHandler.GetAnalytics)
		issues.GET("/heatmap", issueHandler.GetHeatmap)
	}

	safety := router.Group("/safety")
	{
		safety.POST("/reports", rateLimiter.Middleware(), safetyHandler.CreateReport)
		safety.GET("/community", safetyHandler.ListCommunityReports)

		admin := safety.Group("/reports", middleware.RequireAdmin(cfg))
		admin.GET("", safetyHandler.ListReports)
		admin.PATCH("/:id/status", middleware.ValidateJSONBody(middleware.SchemaSafetyStatusUpdate), safetyHandler.UpdateReportStatus)
	}

	auth := router.Group("/auth")
	{
		auth.GET("/providers", authHandler.Providers)
		auth.GET("/login/:provider", authHandler.Login)
		auth.GET("/callback/:provider", authHandler.Callback)
		auth.GET("/me", authHandler.Me)
		auth.GET("/logout", authHandler.Logout)
		auth.POST("/exchange-token", middleware.ValidateJSONBody(middleware.SchemaExchangeTokenRequest), authHandler.ExchangeToken)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}

// requestLogger logs every request at a level matching its status code
func requestLogger(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			fields["http.error_type"] = "server_error"
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			fields["http.error_type"] = "client_error"
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	}
}
