// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"campusfix/internal/config"
	"campusfix/internal/database"
	"campusfix/internal/inspection"
	"campusfix/internal/middleware"
	"campusfix/internal/observability"
	"campusfix/internal/serviceinterfaces"
	"campusfix/internal/services"
	"campusfix/internal/storage"
	"campusfix/internal/tokencache"
	contextutils "campusfix/internal/utils"
)

// Service names registered in the container
const (
	ServiceIssue     = "issue"
	ServiceSafety    = "safety"
	ServiceOAuth     = "oauth"
	ServiceTokens    = "tokens"
	ServiceMedia     = "media"
	ServiceInspector = "inspector"
	ServiceNotifier  = "notifier"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetIssueService() (serviceinterfaces.IssueService, error)
	GetSafetyService() (serviceinterfaces.SafetyService, error)
	GetOAuthService() (serviceinterfaces.OAuthService, error)
	GetTokenStore() (tokencache.Store, error)
	GetMediaSink() (storage.MediaSink, error)
	GetMediaInspector() (serviceinterfaces.MediaInspector, error)
	GetNotifier() (serviceinterfaces.NotificationService, error)
	GetRateLimiter() *middleware.RateLimiter
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	order         []string
	started       []string
	rateLimiter   *middleware.RateLimiter
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

var _ ServiceContainerInterface = (*ServiceContainer)(nil)

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize connects to the database, migrates it and starts every service
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.mu.Lock()
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})
	sc.mu.Unlock()

	return sc.InitializeWithDB(ctx, db)
}

// InitializeWithDB builds the services on top of an already opened database
func (sc *ServiceContainer) InitializeWithDB(ctx context.Context, db *sql.DB) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.db = db

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return err
	}

	// Startup lifecycle services
	if err := sc.startupServices(ctx); err != nil {
		// Cleanup on failure
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to startup services")
	}

	return nil
}

func (sc *ServiceContainer) register(name string, service interface{}) {
	sc.services[name] = service
	sc.order = append(sc.order, name)
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) error {
	sc.register(ServiceIssue, services.NewIssueService(sc.db, sc.logger))
	sc.register(ServiceSafety, services.NewSafetyService(sc.db, sc.logger))
	sc.register(ServiceOAuth, services.NewOAuthServiceWithLogger(sc.cfg, sc.logger))

	tokens, err := tokencache.New(sc.cfg.TokenCache, sc.logger)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to create token cache")
	}
	sc.register(ServiceTokens, tokens)

	sink, err := storage.NewMediaSink(sc.cfg, sc.logger)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to create media sink")
	}
	sc.register(ServiceMedia, sink)

	sc.register(ServiceInspector, inspection.NewSkinInspector(sc.cfg.Inspection.SkinRatioThreshold, sc.cfg.Inspection.MaxPixels))

	mailer := services.CreateEmailService(sc.cfg, sc.logger)
	sc.register(ServiceNotifier, services.NewNotificationService(sc.cfg, mailer, sc.logger))

	sc.rateLimiter = middleware.NewRateLimiter(sc.cfg.RateLimit)
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetIssueService returns the issue service
func (sc *ServiceContainer) GetIssueService() (serviceinterfaces.IssueService, error) {
	return GetServiceAs[serviceinterfaces.IssueService](sc, ServiceIssue)
}

// GetSafetyService returns the safety report service
func (sc *ServiceContainer) GetSafetyService() (serviceinterfaces.SafetyService, error) {
	return GetServiceAs[serviceinterfaces.SafetyService](sc, ServiceSafety)
}

// GetOAuthService returns the OAuth service
func (sc *ServiceContainer) GetOAuthService() (serviceinterfaces.OAuthService, error) {
	return GetServiceAs[serviceinterfaces.OAuthService](sc, ServiceOAuth)
}

// GetTokenStore returns the one-time token cache
func (sc *ServiceContainer) GetTokenStore() (tokencache.Store, error) {
	return GetServiceAs[tokencache.Store](sc, ServiceTokens)
}

// GetMediaSink returns the configured media backend
func (sc *ServiceContainer) GetMediaSink() (storage.MediaSink, error) {
	return GetServiceAs[storage.MediaSink](sc, ServiceMedia)
}

// GetMediaInspector returns the explicit image detector
func (sc *ServiceContainer) GetMediaInspector() (serviceinterfaces.MediaInspector, error) {
	return GetServiceAs[serviceinterfaces.MediaInspector](sc, ServiceInspector)
}

// GetNotifier returns the admin notification service
func (sc *ServiceContainer) GetNotifier() (serviceinterfaces.NotificationService, error) {
	return GetServiceAs[serviceinterfaces.NotificationService](sc, ServiceNotifier)
}

// GetRateLimiter returns the submission rate limiter, nil when disabled
func (sc *ServiceContainer) GetRateLimiter() *middleware.RateLimiter {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.rateLimiter
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// startupServices starts the services implementing Lifecycle in registration order
func (sc *ServiceContainer) startupServices(ctx context.Context) error {
	for _, name := range sc.order {
		lifecycleService, ok := sc.services[name].(serviceinterfaces.Lifecycle)
		if !ok {
			continue
		}
		sc.logger.Info(ctx, "Starting service", map[string]interface{}{"service": name})
		if err := lifecycleService.Startup(ctx); err != nil {
			return contextutils.WrapErrorf(err, "failed to startup service %s", name)
		}
		sc.started = append(sc.started, name)
		sc.logger.Info(ctx, "Service started successfully", map[string]interface{}{"service": name})
	}
	return nil
}

// cleanup stops started services in reverse order, then runs the shutdown funcs
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errs []error

	for i := len(sc.started) - 1; i >= 0; i-- {
		name := sc.started[i]
		lifecycleService := sc.services[name].(serviceinterfaces.Lifecycle)
		sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
		if err := lifecycleService.Shutdown(ctx); err != nil {
			sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
			errs = append(errs, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
		}
	}
	sc.started = nil

	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errs) > 0 {
		return contextutils.WrapError(errors.Join(errs...), "shutdown errors")
	}
	return nil
}
