package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joescharf/planreview/internal/plan"
	"github.com/joescharf/planreview/internal/report"
)

// Hook exit codes understood by the host runtime: 0 allows the tool call,
// 2 blocks it and feeds stderr back to the caller.
const hookExitDeny = 2

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Run as a PreToolUse permission hook",
	Long: `Read a PreToolUse payload from stdin, review the plan it carries, and
emit a permission decision.

Exits 0 to allow and 2 to deny. Set PLANREVIEW_OFF=1 to bypass the gate
entirely.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hookRun()
	},
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func hookRun() error {
	// Kill switch: never block the host when explicitly disabled.
	if os.Getenv("PLANREVIEW_OFF") == "1" {
		return nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "planreview hook: read stdin: %v\n", err)
		return nil
	}

	payload, err := plan.ParsePayload(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "planreview hook: bad payload: %v\n", err)
		return nil
	}

	// Only gate plan-approval tool calls; everything else passes.
	if payload.ToolName != "ExitPlanMode" {
		return nil
	}
	if payload.SessionID == "" {
		return nil
	}

	in := plan.FromPayload(payload)
	if in.Text == "" {
		// The payload sometimes omits the plan body; fall back to the
		// most recently written plan document.
		in.Text = latestPlanFallback()
	}
	if in.Text == "" {
		fmt.Fprintln(os.Stderr, "planreview hook: no plan content, allowing")
		return nil
	}

	runner, err := getRunner()
	if err != nil {
		// Misconfiguration must not wedge the host's plan flow.
		fmt.Fprintf(os.Stderr, "planreview hook: %v (allowing)\n", err)
		return nil
	}

	res, err := runner.Run(rootCmd.Context(), in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "planreview hook: review failed: %v (allowing)\n", err)
		return nil
	}

	out, err := report.HookOutput(res.Consensus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "planreview hook: encode output: %v (allowing)\n", err)
		return nil
	}
	fmt.Fprintln(os.Stdout, string(out))

	if !res.Consensus.Allowed() {
		fmt.Fprintf(os.Stderr, "Plan review: %s — %s\n", res.Consensus.Decision, res.Consensus.Reason)
		if res.Consensus.Feedback != "" {
			fmt.Fprintln(os.Stderr, res.Consensus.Feedback)
		}
		os.Exit(hookExitDeny)
	}
	return nil
}

// latestPlanFallback returns the content of the most recently modified plan
// document under ~/.claude/plans, or "".
func latestPlanFallback() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	pattern := filepath.Join(home, ".claude", "plans", "*.md")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return ""
	}

	var newest string
	var newestMod int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = m, mod
		}
	}
	if newest == "" {
		return ""
	}
	data, err := os.ReadFile(newest)
	if err != nil {
		return ""
	}
	return string(data)
}
