package commands

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
)

// maskDatabaseURL hides the credentials of a connection URL
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.UserPassword("***", "***")
	return u.String()
}

// getDatabaseInfo describes the database the tool is connected to
func getDatabaseInfo(db *sql.DB) string {
	if db == nil {
		return "Not connected"
	}
	ctx := context.Background()

	var dbName string
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		return "Connected (unknown database)"
	}

	var host sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT inet_server_addr()::text").Scan(&host); err != nil || !host.Valid {
		return fmt.Sprintf("Connected to %s", dbName)
	}

	return fmt.Sprintf("Connected to %s on %s", dbName, host.String)
}
