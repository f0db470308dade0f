// Package verdict extracts per-model decisions from raw replies and reduces
// them into a single consensus.
package verdict

import (
	"encoding/json"
	"strings"

	"github.com/joescharf/planreview/internal/models"
)

// decisionReply is the structured object models are asked to emit.
type decisionReply struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
	Feedback string `json:"feedback"`
}

// ParseReply extracts a ModelVerdict from a model's raw reply text. It is
// total: malformed input yields a valid, conservative CONCERNS verdict,
// never an error. Parsing preference, in order: an embedded JSON object
// with a valid decision key, then a leading APPROVE/CONCERNS/REJECT token,
// then the CONCERNS default with the raw reply preserved as feedback.
func ParseReply(model, raw string) models.ModelVerdict {
	trimmed := strings.TrimSpace(raw)

	if v, ok := parseStructured(model, trimmed); ok {
		return v
	}
	if v, ok := parseLeadingToken(model, trimmed); ok {
		return v
	}

	return models.ModelVerdict{
		ModelName: model,
		Succeeded: true,
		Decision:  models.DecisionConcerns,
		Reason:    "unable to parse decision",
		Feedback:  raw,
	}
}

// parseStructured tries the reply as a JSON decision object: the whole
// text, a fenced code block, or the outermost braces of an embedded object.
func parseStructured(model, trimmed string) (models.ModelVerdict, bool) {
	for _, candidate := range jsonCandidates(trimmed) {
		var reply decisionReply
		if err := json.Unmarshal([]byte(candidate), &reply); err != nil {
			continue
		}
		decision, ok := models.ParseDecision(reply.Decision)
		if !ok {
			continue
		}
		return models.ModelVerdict{
			ModelName: model,
			Succeeded: true,
			Decision:  decision,
			Reason:    reply.Reason,
			Feedback:  reply.Feedback,
		}, true
	}
	return models.ModelVerdict{}, false
}

// jsonCandidates yields substrings of the reply worth attempting as JSON.
func jsonCandidates(trimmed string) []string {
	candidates := []string{trimmed}

	if stripped := stripFence(trimmed); stripped != trimmed {
		candidates = append(candidates, stripped)
	}

	// Embedded object: models often wrap the JSON in prose or lead with
	// the decision token.
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			candidates = append(candidates, trimmed[start:end+1])
		}
	}
	return candidates
}

// stripFence removes a surrounding markdown code fence, if present.
func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) > 1 {
		text = lines[1]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// parseLeadingToken checks whether the reply's first token is a valid
// decision. CONCERNS and REJECT replies keep the full text as feedback so
// a human can inspect the model's reservations.
func parseLeadingToken(model, trimmed string) (models.ModelVerdict, bool) {
	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == ':' || r == '.' || r == ','
	})
	if len(fields) == 0 {
		return models.ModelVerdict{}, false
	}
	decision, ok := models.ParseDecision(fields[0])
	if !ok {
		return models.ModelVerdict{}, false
	}

	v := models.ModelVerdict{
		ModelName: model,
		Succeeded: true,
		Decision:  decision,
	}
	switch decision {
	case models.DecisionApprove:
		v.Reason = "model approved"
	case models.DecisionConcerns:
		v.Reason = "model has concerns"
		v.Feedback = trimmed
	case models.DecisionReject:
		v.Reason = "model rejected"
		v.Feedback = trimmed
	}
	return v, true
}
