// Package report renders review results for the two consumers: humans
// reading a terminal or a file, and the host runtime's permission hook.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/planreview/internal/models"
	"github.com/joescharf/planreview/internal/review"
)

// Markdown renders the full review result as a markdown document: the
// consensus verdict first, then each model's individual verdict.
func Markdown(res *review.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Plan Review: %s\n\n", res.PlanTitle)
	fmt.Fprintf(&b, "Reviewed %s with %d model(s) in %.1fs.\n\n",
		time.Now().UTC().Format("2006-01-02 15:04 UTC"),
		len(res.Verdicts),
		res.Elapsed.Seconds())

	fmt.Fprintf(&b, "## Consensus: %s\n\n", res.Consensus.Decision)
	fmt.Fprintf(&b, "%s\n\n", res.Consensus.Reason)
	if res.Consensus.Feedback != "" {
		b.WriteString("### Feedback\n\n")
		fmt.Fprintf(&b, "%s\n\n", res.Consensus.Feedback)
	}

	b.WriteString("## Model Verdicts\n\n")
	for _, v := range res.Verdicts {
		fmt.Fprintf(&b, "### %s — %s\n\n", v.ModelName, v.Decision)
		if !v.Succeeded {
			fmt.Fprintf(&b, "_Call failed: %s_\n\n", v.Reason)
			continue
		}
		if v.Reason != "" {
			fmt.Fprintf(&b, "%s\n\n", v.Reason)
		}
		if v.Feedback != "" && v.Feedback != v.Reason {
			fmt.Fprintf(&b, "%s\n\n", v.Feedback)
		}
		if v.Elapsed > 0 {
			fmt.Fprintf(&b, "_%.1fs_\n\n", v.Elapsed)
		}
	}

	return b.String()
}

// ResultJSON serializes the full result for machine consumers.
func ResultJSON(res *review.Result) ([]byte, error) {
	return json.MarshalIndent(res, "", "  ")
}

// hookSpecificOutput is the permission-decision shape the host runtime
// expects from a PreToolUse hook.
type hookSpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason"`
}

type hookOutput struct {
	HookSpecificOutput hookSpecificOutput `json:"hookSpecificOutput"`
}

// HookOutput serializes the consensus as the host's permission-decision
// JSON: allow for gate-passing decisions, deny otherwise. The reason
// carries the consensus text so the caller sees why.
func HookOutput(c models.ConsensusVerdict) ([]byte, error) {
	decision := "deny"
	if c.Allowed() {
		decision = "allow"
	}

	reason := c.Reason
	if c.Feedback != "" && c.Feedback != c.Reason {
		reason = reason + "\n\n" + c.Feedback
	}

	out := hookOutput{
		HookSpecificOutput: hookSpecificOutput{
			HookEventName:            "PreToolUse",
			PermissionDecision:       decision,
			PermissionDecisionReason: reason,
		},
	}
	return json.Marshal(out)
}
