package verdict

import (
	"fmt"
	"strings"

	"github.com/joescharf/planreview/internal/models"
)

// Reduce applies the consensus decision table over per-model verdicts, in
// configuration order. The policy is fail-closed: a failed invocation
// votes CONCERNS, never REJECT and never APPROVE.
//
//   - any REJECT            -> REJECT (first rejecting model's text)
//   - all APPROVE           -> APPROVE
//   - all CONCERNS (N >= 2) -> REJECT (name-prefixed reasons concatenated)
//   - APPROVE + CONCERNS    -> APPROVE with warnings
//   - N == 1                -> the sole verdict passes through
func Reduce(verdicts []models.ModelVerdict) models.ConsensusVerdict {
	if len(verdicts) == 0 {
		return models.ConsensusVerdict{
			Decision:          models.DecisionConcerns,
			Reason:            "no model verdicts",
			ContributingModel: "none",
		}
	}

	// A transport failure is a CONCERNS vote regardless of what the
	// verdict carries.
	effective := make([]models.Decision, len(verdicts))
	for i, v := range verdicts {
		if !v.Succeeded {
			effective[i] = models.DecisionConcerns
			continue
		}
		effective[i] = v.Decision
	}

	// Any REJECT wins; the first in configuration order supplies the text.
	for i, d := range effective {
		if d == models.DecisionReject {
			return models.ConsensusVerdict{
				Decision:          models.DecisionReject,
				Reason:            verdicts[i].Reason,
				Feedback:          verdicts[i].Feedback,
				ContributingModel: verdicts[i].ModelName,
			}
		}
	}

	var approved, concerned []models.ModelVerdict
	for i, d := range effective {
		if d == models.DecisionApprove {
			approved = append(approved, verdicts[i])
		} else {
			concerned = append(concerned, verdicts[i])
		}
	}

	// Unanimous approval.
	if len(concerned) == 0 {
		return models.ConsensusVerdict{
			Decision:          models.DecisionApprove,
			Reason:            firstReason(approved, "all models approved"),
			ContributingModel: contributor(approved),
		}
	}

	// Sole verdict passes through unchanged.
	if len(verdicts) == 1 {
		v := verdicts[0]
		return models.ConsensusVerdict{
			Decision:          models.DecisionConcerns,
			Reason:            v.Reason,
			Feedback:          v.Feedback,
			ContributingModel: v.ModelName,
		}
	}

	// Shared reservations across every model block the plan.
	if len(approved) == 0 {
		return models.ConsensusVerdict{
			Decision:          models.DecisionReject,
			Reason:            "all models have concerns",
			Feedback:          concatReasons(concerned),
			ContributingModel: contributor(concerned),
		}
	}

	// Mixed: approve, but surface the reservations.
	return models.ConsensusVerdict{
		Decision:          models.DecisionApprove,
		Reason:            "approved with warnings",
		Feedback:          concatConcerns(concerned),
		ContributingModel: contributor(concerned),
	}
}

// firstReason returns the first non-empty reason, or the fallback.
func firstReason(verdicts []models.ModelVerdict, fallback string) string {
	for _, v := range verdicts {
		if v.Reason != "" {
			return v.Reason
		}
	}
	return fallback
}

// concatReasons joins each concerned model's reason, prefixed by its name.
func concatReasons(concerned []models.ModelVerdict) string {
	var parts []string
	for _, v := range concerned {
		text := v.Reason
		if text == "" {
			text = v.Feedback
		}
		parts = append(parts, fmt.Sprintf("%s: %s", v.ModelName, text))
	}
	return strings.Join(parts, "\n")
}

// concatConcerns joins each concerned model's long-form feedback, prefixed
// by its name, falling back to the short reason.
func concatConcerns(concerned []models.ModelVerdict) string {
	var parts []string
	for _, v := range concerned {
		text := v.Feedback
		if text == "" {
			text = v.Reason
		}
		parts = append(parts, fmt.Sprintf("%s: %s", v.ModelName, text))
	}
	return strings.Join(parts, "\n")
}

// contributor names the model(s) whose text is echoed in the consensus.
func contributor(verdicts []models.ModelVerdict) string {
	switch len(verdicts) {
	case 1:
		return verdicts[0].ModelName
	case 2:
		return "both"
	default:
		return "all"
	}
}
