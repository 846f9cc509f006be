// Package commands provides CLI commands for the admin tool
package commands

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"campusfix/internal/database"
	"campusfix/internal/models"
	"campusfix/internal/observability"
	"campusfix/internal/serviceinterfaces"
	contextutils "campusfix/internal/utils"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(issueService serviceinterfaces.IssueService, safetyService serviceinterfaces.SafetyService, logger *observability.Logger, db *sql.DB, databaseURL string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the campusfix backend.

Available commands:
  stats     - Show table counts and the issue status breakdown
  seed      - Insert demo issues and safety reports
  reset     - Remove every issue and safety report`,
	}

	dbCmd.AddCommand(statsCmd(issueService, logger, db, databaseURL))
	dbCmd.AddCommand(seedCmd(issueService, safetyService, logger))
	dbCmd.AddCommand(resetCmd(logger, db, os.Stdin, stdinIsTerminal))

	return dbCmd
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// statsCmd returns the stats command
func statsCmd(issueService serviceinterfaces.IssueService, logger *observability.Logger, db *sql.DB, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show the connection, the row count of every table and how many issues are in each status.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			out := cmd.OutOrStdout()

			logger.Info(ctx, "Diagnostic info", map[string]interface{}{
				"config_file":  os.Getenv("CAMPUSFIX_CONFIG_FILE"),
				"database_url": maskDatabaseURL(databaseURL),
			})
			fmt.Fprintf(out, "Database: %s\n\n", getDatabaseInfo(db))

			counts, err := database.TableCounts(ctx, db)
			if err != nil {
				logger.Error(ctx, "Failed to count tables", err, nil)
				return err
			}
			for _, table := range database.ApplicationTables {
				fmt.Fprintf(out, "%-16s %8d\n", table, counts[table])
			}

			analytics, err := issueService.GetAnalytics(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to load issue analytics", err, nil)
				return err
			}
			printAnalytics(out, analytics)
			return nil
		},
	}
}

func printAnalytics(out io.Writer, a *models.Analytics) {
	fmt.Fprintf(out, "\nIssues by status\n")
	fmt.Fprintf(out, "  %-14s %6d\n", models.IssueStatusNew, a.PendingIssues)
	fmt.Fprintf(out, "  %-14s %6d\n", models.IssueStatusInProgress, a.InProgressIssues)
	fmt.Fprintf(out, "  %-14s %6d\n", models.IssueStatusResolved, a.ResolvedIssues)

	if len(a.ByCategory) == 0 {
		return
	}
	categories := make([]string, 0, len(a.ByCategory))
	for c := range a.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	fmt.Fprintf(out, "\nIssues by category\n")
	for _, c := range categories {
		fmt.Fprintf(out, "  %-14s %6d\n", c, a.ByCategory[c])
	}
}

var demoIssues = []models.NewIssue{
	{Description: "Water is leaking from the ceiling near the stairs", Location: "Library, 2nd floor"},
	{Description: "Sparks coming out of the socket next to bench 4", Location: "Physics Lab"},
	{Description: "Projector not working and the wifi keeps dropping", Location: "Lecture Hall B"},
	{Description: "Garbage has not been collected for three days, it smells", Location: "Hostel C corridor"},
	{Description: "Food served at lunch was stale", Location: "Main Mess"},
	{Description: "Broken chair in the reading room", Location: "Library, ground floor"},
}

var demoReports = []models.NewSafetyReport{
	{Description: "Street light is out on the path behind the hostel", Location: "Hostel B back gate"},
	{Description: "Someone has been following students after 9pm", Location: "North Gate"},
	{Description: "Fire extinguisher missing from its bracket", Location: "Chemistry block"},
}

// seedCmd returns the seed command
func seedCmd(issueService serviceinterfaces.IssueService, safetyService serviceinterfaces.SafetyService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo issues and safety reports",
		Long:  `Insert a small set of demo issues and safety reports. Issues go through the classifier like any other submission.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			out := cmd.OutOrStdout()

			for _, in := range demoIssues {
				issue, err := issueService.CreateIssue(ctx, in)
				if err != nil {
					logger.Error(ctx, "Failed to seed issue", err, map[string]interface{}{"location": in.Location})
					return contextutils.WrapError(err, "failed to seed issues")
				}
				fmt.Fprintf(out, "issue  #%-4d %-12s %-9s %s\n", issue.ID, issue.Category, issue.Severity, issue.Location)
			}
			for _, in := range demoReports {
				report, err := safetyService.CreateReport(ctx, in)
				if err != nil {
					logger.Error(ctx, "Failed to seed safety report", err, map[string]interface{}{"location": in.Location})
					return contextutils.WrapError(err, "failed to seed safety reports")
				}
				fmt.Fprintf(out, "report #%-4d %s\n", report.ID, report.Location)
			}

			fmt.Fprintf(out, "\nSeeded %d issues and %d safety reports\n", len(demoIssues), len(demoReports))
			return nil
		},
	}
}

// resetCmd returns the reset command
func resetCmd(logger *observability.Logger, db *sql.DB, stdin io.Reader, isTerminal func() bool) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove every issue and safety report",
		Long: `Truncate the issues and safety_reports tables and restart their ids.

Asks for confirmation when run from a terminal. Without a terminal --yes is required.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			out := cmd.OutOrStdout()

			if !yes {
				if !isTerminal() {
					return contextutils.WrapError(contextutils.ErrMissingRequired, "refusing to reset without --yes when stdin is not a terminal")
				}
				ok, err := confirm(stdin, out, "This deletes every issue and safety report. Type 'yes' to continue: ")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Aborted")
					return nil
				}
			}

			if db == nil {
				return contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "database connection not available")
			}
			if err := database.TruncateAll(ctx, db); err != nil {
				logger.Error(ctx, "Reset failed", err, nil)
				return err
			}

			logger.Info(ctx, "Database reset", map[string]interface{}{"tables": database.ApplicationTables})
			fmt.Fprintln(out, "All issues and safety reports removed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")

	return cmd
}

// confirm asks prompt and reports whether the answer was "yes"
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, contextutils.WrapError(err, "failed to read confirmation")
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes"), nil
}
