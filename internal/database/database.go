// Package database opens the instrumented PostgreSQL pool and keeps the
// campusfix schema current.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"net/url"
	"strings"
	"sync"

	"campusfix/internal/config"
	"campusfix/internal/observability"
	contextutils "campusfix/internal/utils"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// schemaSQL creates the base tables. Every statement is idempotent and the
// whole file runs on each start, before the versioned migrations.
//
//go:embed schema.sql
var schemaSQL string

//go:embed migrations/*.sql
var migrationFiles embed.FS

const defaultDatabaseName = "campusfix"

var (
	otelDriverName string
	otelDriverOnce sync.Once
	otelDriverErr  error
)

// Manager opens connections and applies migrations
type Manager struct {
	logger *observability.Logger
}

// NewManager creates a new database manager with the provided logger
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{logger: logger}
}

// InitDB connects to databaseURL with the default pool settings and migrates it
func (dm *Manager) InitDB(databaseURL string) (*sql.DB, error) {
	cfg := config.Default().Database
	cfg.URL = databaseURL
	return dm.InitDBWithConfig(cfg)
}

// InitDBWithConfig connects with cfg and migrates the database
func (dm *Manager) InitDBWithConfig(cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(context.Background(), "InitDBWithConfig",
		attribute.String("db.name", databaseName(cfg.URL)),
		attribute.Int("db.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", cfg.MaxIdleConns),
	)
	defer observability.FinishSpan(span, &err)

	db, err := dm.InitDBWithoutMigrations(cfg)
	if err != nil {
		return nil, err
	}
	if err := dm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// InitDBWithoutMigrations opens and pings the pool without touching the schema
func (dm *Manager) InitDBWithoutMigrations(cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(context.Background(), "InitDBWithoutMigrations",
		attribute.String("db.name", databaseName(cfg.URL)),
	)
	defer observability.FinishSpan(span, &err)

	// otelsql refuses to register the same driver name twice
	otelDriverOnce.Do(func() {
		otelDriverName, otelDriverErr = otelsql.Register("postgres",
			otelsql.WithDatabaseName(databaseName(cfg.URL)),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
			otelsql.TraceQueryWithArgs(),
			otelsql.TraceRowsAffected(),
		)
	})
	if otelDriverErr != nil {
		return nil, contextutils.WrapError(otelDriverErr, "failed to register otelsql driver")
	}

	db, err := sql.Open(otelDriverName, cfg.URL)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to open database connection")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database after ping failure", closeErr)
		}
		return nil, contextutils.WrapError(err, "failed to ping database")
	}

	dm.logger.Info(ctx, "Database connection established", map[string]interface{}{
		"db_name":           databaseName(cfg.URL),
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})
	return db, nil
}

// RunMigrations applies schema.sql and then every pending versioned migration.
// Any failing statement aborts startup.
func (dm *Manager) RunMigrations(ctx context.Context, db *sql.DB) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "RunMigrations")
	defer observability.FinishSpan(span, &err)

	if err := applySchema(ctx, db); err != nil {
		return err
	}

	version, dirty, changed, err := migrateUp(ctx, db)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.Int64("migration.version", int64(version)),
		attribute.Bool("migration.changed", changed),
	)
	dm.logger.Info(ctx, "Database schema is current", map[string]interface{}{
		"migration_version": version,
		"dirty":             dirty,
		"applied_new":       changed,
	})
	return nil
}

// applySchema runs the embedded schema as one multi-statement exec
func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to apply schema.sql: %v", err)
	}
	return nil
}

// migrateUp runs the embedded migrations on a dedicated pooled connection.
// Closing the migrator releases the connection back to db.
func migrateUp(ctx context.Context, db *sql.DB) (version uint, dirty bool, changed bool, err error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return 0, false, false, contextutils.WrapError(err, "failed to read embedded migrations")
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = src.Close()
		return 0, false, false, contextutils.WrapError(err, "failed to reserve migration connection")
	}
	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		_ = src.Close()
		_ = conn.Close()
		return 0, false, false, contextutils.WrapError(err, "failed to prepare migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return 0, false, false, contextutils.WrapError(err, "failed to initialize golang-migrate")
	}
	defer m.Close()

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return 0, false, false, contextutils.WrapError(err, "golang-migrate up failed")
	default:
		changed = true
	}

	version, dirty, err = m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, changed, contextutils.WrapError(err, "failed to read migration version")
	}
	return version, dirty, changed, nil
}

// databaseName returns the path segment of a postgres URL, used to label spans
func databaseName(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return defaultDatabaseName
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		return name
	}
	return defaultDatabaseName
}
