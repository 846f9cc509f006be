package database

import (
	"context"
	"database/sql"
	"fmt"

	"campusfix/internal/observability"
	contextutils "campusfix/internal/utils"
)

// ApplicationTables lists the tables owned by the application, in truncation order
var ApplicationTables = []string{"issues", "safety_reports"}

// TableCounts returns the row count of every application table
func TableCounts(ctx context.Context, db *sql.DB) (result map[string]int64, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "TableCounts")
	defer observability.FinishSpan(span, &err)

	result = make(map[string]int64, len(ApplicationTables))
	for _, table := range ApplicationTables {
		var n int64
		// Table names come from the fixed list above
		if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count %s: %v", table, err)
		}
		result[table] = n
	}
	return result, nil
}

// TruncateAll removes every row from the application tables and resets their id sequences
func TruncateAll(ctx context.Context, db *sql.DB) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "TruncateAll")
	defer observability.FinishSpan(span, &err)

	if _, err := db.ExecContext(ctx, "TRUNCATE TABLE issues, safety_reports RESTART IDENTITY"); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to truncate tables: %v", err)
	}
	return nil
}
