package models

import (
	"strings"
	"time"
)

// Decision is a review outcome, from a single model or from consensus.
type Decision string

const (
	DecisionApprove  Decision = "APPROVE"
	DecisionConcerns Decision = "CONCERNS"
	DecisionReject   Decision = "REJECT"
)

// ParseDecision normalizes a token to a Decision. ok is false for anything
// that is not one of the three valid tokens.
func ParseDecision(s string) (Decision, bool) {
	switch Decision(strings.ToUpper(strings.TrimSpace(s))) {
	case DecisionApprove:
		return DecisionApprove, true
	case DecisionConcerns:
		return DecisionConcerns, true
	case DecisionReject:
		return DecisionReject, true
	}
	return "", false
}

// ModelVerdict is one reviewer model's judgment of a plan.
//
// Succeeded reports transport/parse success. A failed invocation always
// carries DecisionConcerns: infrastructure failure must never approve a
// plan, and must never masquerade as a content rejection either.
type ModelVerdict struct {
	ModelName string   `json:"model_name"`
	Succeeded bool     `json:"succeeded"`
	Decision  Decision `json:"decision"`
	Reason    string   `json:"reason"`
	Feedback  string   `json:"feedback,omitempty"`
	Elapsed   float64  `json:"elapsed_seconds,omitempty"`
}

// FailedVerdict builds the conservative verdict for a reviewer whose call
// never produced a usable reply.
func FailedVerdict(model, reason string) ModelVerdict {
	return ModelVerdict{
		ModelName: model,
		Succeeded: false,
		Decision:  DecisionConcerns,
		Reason:    reason,
	}
}

// ConsensusVerdict is the single final outcome of a review run.
type ConsensusVerdict struct {
	Decision          Decision `json:"decision"`
	Reason            string   `json:"reason"`
	Feedback          string   `json:"feedback,omitempty"`
	ContributingModel string   `json:"model"`
}

// Allowed reports whether the gated plan may proceed.
func (c ConsensusVerdict) Allowed() bool {
	return c.Decision == DecisionApprove
}

// ReviewRecord is one completed review run as persisted in the history store.
type ReviewRecord struct {
	ID        string
	SessionID string
	PlanPath  string
	PlanTitle string
	Decision  Decision
	Reason    string
	Feedback  string
	Verdicts  []ModelVerdict
	CreatedAt time.Time
}
