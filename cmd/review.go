package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/planreview/internal/output"
	"github.com/joescharf/planreview/internal/plan"
	"github.com/joescharf/planreview/internal/report"
)

var (
	reviewPlanFile string
	reviewJSON     bool
)

var reviewCmd = &cobra.Command{
	Use:   "review [plan text]",
	Short: "Review a plan with all configured models",
	Long: `Review an implementation plan and print the consensus decision.

The plan is taken from --plan-file if given, else from the positional
arguments, else from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(args)
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewPlanFile, "plan-file", "f", "", "Read the plan from a file")
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "Emit the full result as JSON")
	rootCmd.AddCommand(reviewCmd)
}

func reviewRun(args []string) error {
	in, err := reviewInput(args)
	if err != nil {
		return err
	}
	if in.Text == "" {
		return fmt.Errorf("no plan content: pass text, --plan-file, or pipe to stdin")
	}

	runner, err := getRunner()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would review plan %q", in.Title())
		return nil
	}

	res, err := runner.Run(rootCmd.Context(), in)
	if err != nil {
		return err
	}

	if reviewJSON {
		data, err := report.ResultJSON(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, string(data))
		return nil
	}

	fmt.Fprint(ui.Out, report.Markdown(res))

	table := ui.Table([]string{"Model", "Decision", "Time"})
	for _, v := range res.Verdicts {
		table.Append([]string{v.ModelName, output.DecisionColor(string(v.Decision)), fmt.Sprintf("%.1fs", v.Elapsed)})
	}
	if err := table.Render(); err != nil {
		ui.VerboseLog("render table: %v", err)
	}
	fmt.Fprintln(ui.Out)

	if res.Consensus.Allowed() {
		ui.Success("Consensus: %s — %s", res.Consensus.Decision, res.Consensus.Reason)
	} else {
		ui.Error("Consensus: %s — %s", res.Consensus.Decision, res.Consensus.Reason)
	}
	return nil
}

// reviewInput resolves the plan source: file flag, args, then stdin.
func reviewInput(args []string) (*plan.Input, error) {
	if reviewPlanFile != "" {
		return plan.FromFile(reviewPlanFile)
	}
	if len(args) > 0 {
		return plan.FromText(strings.Join(args, " ")), nil
	}

	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return plan.FromStdin(data), nil
	}
	return plan.FromText(""), nil
}
