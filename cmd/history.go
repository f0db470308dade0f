package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/planreview/internal/models"
	"github.com/joescharf/planreview/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past plan reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRun()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one review in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyShowRun(args[0])
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of reviews to list")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func historyRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	records, err := s.ListReviews(rootCmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}
	if len(records) == 0 {
		ui.Info("No reviews recorded yet")
		return nil
	}

	table := ui.Table([]string{"ID", "When", "Decision", "Plan"})
	for _, r := range records {
		table.Append([]string{
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			output.DecisionColor(string(r.Decision)),
			r.PlanTitle,
		})
	}
	return table.Render()
}

func historyShowRun(id string) error {
	rec, err := findReview(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.DecisionColor(string(rec.Decision)), rec.PlanTitle)
	fmt.Fprintf(ui.Out, "ID:      %s\n", rec.ID)
	if rec.SessionID != "" {
		fmt.Fprintf(ui.Out, "Session: %s\n", rec.SessionID)
	}
	if rec.PlanPath != "" {
		fmt.Fprintf(ui.Out, "Plan:    %s\n", rec.PlanPath)
	}
	fmt.Fprintf(ui.Out, "When:    %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(ui.Out, "Reason:  %s\n", rec.Reason)
	if rec.Feedback != "" {
		fmt.Fprintf(ui.Out, "\n%s\n", rec.Feedback)
	}

	if len(rec.Verdicts) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Model", "Decision", "Reason"})
		for _, v := range rec.Verdicts {
			table.Append([]string{v.ModelName, output.DecisionColor(string(v.Decision)), v.Reason})
		}
		return table.Render()
	}
	return nil
}

// findReview resolves a review by full ID or unambiguous prefix.
func findReview(id string) (*models.ReviewRecord, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}

	if r, err := s.GetReview(rootCmd.Context(), id); err == nil {
		return r, nil
	}

	all, err := s.ListReviews(rootCmd.Context(), 0)
	if err != nil {
		return nil, err
	}
	var matches []*models.ReviewRecord
	for _, r := range all {
		if id != "" && strings.HasPrefix(r.ID, id) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("review not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous review ID %s: matches %d reviews", id, len(matches))
	}
}

// shortID trims a ULID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
