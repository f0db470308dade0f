package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/joescharf/planreview/internal/models"
	"github.com/joescharf/planreview/internal/review"
)

func TestMarkdown(t *testing.T) {
	res := &review.Result{
		PlanTitle: "Migrate database",
		Verdicts: []models.ModelVerdict{
			{ModelName: "claude", Succeeded: true, Decision: models.DecisionApprove, Reason: "looks good", Elapsed: 2.3},
			{ModelName: "gemini", Succeeded: false, Decision: models.DecisionConcerns, Reason: "model call timed out"},
		},
		Consensus: models.ConsensusVerdict{
			Decision:          models.DecisionApprove,
			Reason:            "approved with warnings",
			Feedback:          "gemini: unreachable",
			ContributingModel: "claude",
		},
		Elapsed: 3 * time.Second,
	}

	md := Markdown(res)
	for _, want := range []string{
		"# Plan Review: Migrate database",
		"## Consensus: APPROVE",
		"approved with warnings",
		"### claude — APPROVE",
		"### gemini — CONCERNS",
		"_Call failed: model call timed out_",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestHookOutput_Allow(t *testing.T) {
	data, err := HookOutput(models.ConsensusVerdict{
		Decision: models.DecisionApprove,
		Reason:   "all models approved",
	})
	if err != nil {
		t.Fatalf("hook output: %v", err)
	}

	var out struct {
		HookSpecificOutput struct {
			HookEventName            string `json:"hookEventName"`
			PermissionDecision       string `json:"permissionDecision"`
			PermissionDecisionReason string `json:"permissionDecisionReason"`
		} `json:"hookSpecificOutput"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.HookSpecificOutput.HookEventName != "PreToolUse" {
		t.Errorf("hookEventName = %q", out.HookSpecificOutput.HookEventName)
	}
	if out.HookSpecificOutput.PermissionDecision != "allow" {
		t.Errorf("permissionDecision = %q, want allow", out.HookSpecificOutput.PermissionDecision)
	}
	if out.HookSpecificOutput.PermissionDecisionReason != "all models approved" {
		t.Errorf("reason = %q", out.HookSpecificOutput.PermissionDecisionReason)
	}
}

func TestHookOutput_DenyWithFeedback(t *testing.T) {
	data, err := HookOutput(models.ConsensusVerdict{
		Decision: models.DecisionReject,
		Reason:   "plan rejected",
		Feedback: "drops the users table",
	})
	if err != nil {
		t.Fatalf("hook output: %v", err)
	}

	s := string(data)
	if !strings.Contains(s, `"permissionDecision":"deny"`) {
		t.Errorf("expected deny decision: %s", s)
	}
	if !strings.Contains(s, "drops the users table") {
		t.Errorf("expected feedback in reason: %s", s)
	}
}
