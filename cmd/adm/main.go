// Package main provides the main entry point for the campusfix admin CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"campusfix/cmd/adm/commands"
	"campusfix/internal/config"
	"campusfix/internal/database"
	"campusfix/internal/observability"
	"campusfix/internal/services"
	"campusfix/internal/version"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to read .env file: %v\n", err)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Disable all OpenTelemetry features for admin CLI to avoid connection errors
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "campusfix-admin", "error")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	// No migrations: the admin tool works against whatever schema the server created
	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, nil)
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	issueService := services.NewIssueService(db, logger)
	safetyService := services.NewSafetyService(db, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "CampusFix Administration Tool",
		Long: `CampusFix Administration Tool

Inspect, seed and reset the issue and safety report database.`,
		Version:      version.Current().String(),
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.DatabaseCommands(issueService, safetyService, logger, db, cfg.Database.URL))
	rootCmd.AddCommand(commands.IssueCommands(issueService, logger))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
