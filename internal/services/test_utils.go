//go:build integration

package services

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"campusfix/internal/database"
	"campusfix/internal/observability"

	"github.com/stretchr/testify/require"
)

// SharedTestDBSetup provides a clean database for each integration test
func SharedTestDBSetup(t *testing.T) *sql.DB {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Fatal("TEST_DATABASE_URL environment variable must be set for integration tests")
	}

	dbManager := database.NewManager(observability.NewNopLogger())
	db, err := dbManager.InitDB(databaseURL)
	require.NoError(t, err)

	CleanupTestDatabase(db, t)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// CleanupTestDatabase empties every application table and resets identities
func CleanupTestDatabase(db *sql.DB, t *testing.T) {
	t.Helper()
	require.NoError(t, database.TruncateAll(context.Background(), db))
}
