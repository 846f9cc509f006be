package commands

import (
	"context"
	"fmt"
	"strings"

	"campusfix/internal/config"
	"campusfix/internal/models"
	"campusfix/internal/observability"
	"campusfix/internal/serviceinterfaces"
	contextutils "campusfix/internal/utils"

	"github.com/spf13/cobra"
)

// IssueCommands returns the issue commands
func IssueCommands(issueService serviceinterfaces.IssueService, logger *observability.Logger) *cobra.Command {
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue commands",
		Long: `Issue commands for the campusfix backend.

Available commands:
  list     - List issues by priority or age`,
	}

	issueCmd.AddCommand(issueListCmd(issueService, logger))

	return issueCmd
}

func issueListCmd(issueService serviceinterfaces.IssueService, logger *observability.Logger) *cobra.Command {
	var sortBy string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		Long:  `List issues ordered by priority score (default) or newest first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()

			if sortBy != string(models.IssueSortPriority) && sortBy != string(models.IssueSortNewest) {
				return contextutils.NewValidationError("sort", "must be priority or newest")
			}
			if limit < 1 || limit > config.MaxIssueListLimit {
				return contextutils.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", config.MaxIssueListLimit))
			}

			issues, err := issueService.ListIssues(ctx, 0, limit, models.ParseIssueSort(sortBy))
			if err != nil {
				logger.Error(ctx, "Failed to list issues", err, map[string]interface{}{"sort": sortBy})
				return contextutils.WrapError(err, "failed to list issues")
			}

			out := cmd.OutOrStdout()
			if len(issues) == 0 {
				fmt.Fprintln(out, "No issues found")
				return nil
			}

			fmt.Fprintf(out, "%-5s %-9s %-12s %-9s %-7s %-12s %-24s %s\n", "ID", "Priority", "Category", "Severity", "Votes", "Status", "Location", "Summary")
			fmt.Fprintln(out, strings.Repeat("-", 110))
			for _, issue := range issues {
				fmt.Fprintf(out, "%-5d %-9.1f %-12s %-9s %-7d %-12s %-24s %s\n",
					issue.ID,
					issue.PriorityScore,
					issue.Category,
					issue.Severity,
					issue.Upvotes,
					issue.Status,
					truncate(issue.Location, 24),
					issue.Summary,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", string(models.IssueSortPriority), "Order: priority or newest")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of issues to show")

	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
