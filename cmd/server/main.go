// Package main provides the main entry point for the campusfix backend server.
// It sets up the HTTP server, database connections, middleware, and API routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusfix/internal/config"
	"campusfix/internal/di"
	"campusfix/internal/handlers"
	"campusfix/internal/observability"
	contextutils "campusfix/internal/utils"
	"campusfix/internal/version"

	"github.com/joho/godotenv"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	server    *http.Server
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	issueService, err := container.GetIssueService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get issue service")
	}

	safetyService, err := container.GetSafetyService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get safety service")
	}

	oauthService, err := container.GetOAuthService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get OAuth service")
	}

	tokens, err := container.GetTokenStore()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get token store")
	}

	sink, err := container.GetMediaSink()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get media sink")
	}

	inspector, err := container.GetMediaInspector()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get media inspector")
	}

	notifier, err := container.GetNotifier()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get notifier")
	}

	cfg := container.GetConfig()
	router := handlers.NewRouter(
		cfg,
		issueService,
		safetyService,
		oauthService,
		tokens,
		sink,
		inspector,
		notifier,
		container.GetRateLimiter(),
		container.GetLogger(),
	)

	return &Application{
		container: container,
		server: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: config.ServerReadTimeout,
			ReadTimeout:       config.ServerReadTimeout,
		},
	}, nil
}

// Run serves until the server is shut down or fails
func (a *Application) Run() error {
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return contextutils.WrapError(err, "server failed")
	}
	return nil
}

// Shutdown drains in-flight requests, then stops the services
func (a *Application) Shutdown(ctx context.Context) error {
	serverErr := a.server.Shutdown(ctx)
	containerErr := a.container.Shutdown(ctx)
	return errors.Join(serverErr, containerErr)
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to read .env file: %v\n", err)
	}

	// Setup graceful shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.OpenTelemetry.ServiceVersion = version.Version

	// Setup observability (tracing/metrics/logging)
	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, handlers.ServiceName, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if tp != nil {
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
		_ = logger.Sync()
	}()

	logger.Info(ctx, "Starting campusfix backend service", map[string]interface{}{
		"port":          cfg.Server.Port,
		"logLevel":      cfg.Server.LogLevel,
		"version":       version.Version,
		"commit":        version.Commit,
		"build_time":    version.BuildTime,
		"media_backend": cfg.Features.MediaBackend,
		"token_cache":   cfg.TokenCache.Backend,
	})

	// Initialize dependency injection container
	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		_ = container.Shutdown(ctx)
		os.Exit(1)
	}

	appErr := make(chan error, 1)
	go func() {
		appErr <- app.Run()
	}()

	// Wait for shutdown signal or application error
	select {
	case sig := <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, shutting down gracefully", map[string]interface{}{"signal": sig.String()})
	case err := <-appErr:
		logger.Error(ctx, "Application failed", err, nil)
		_ = container.Shutdown(ctx)
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during application shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info(ctx, "Shutdown completed successfully", nil)
}
