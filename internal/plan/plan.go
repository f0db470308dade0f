// Package plan constructs the immutable input for a single review run.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Input is the plan under review plus its correlation metadata. It is
// built once at process entry and read-only afterward.
type Input struct {
	Text           string
	Path           string
	SessionID      string
	Cwd            string
	TranscriptPath string
}

// Payload is the structured shape delivered on stdin by the host runtime.
type Payload struct {
	ToolName       string `json:"tool_name"`
	SessionID      string `json:"session_id"`
	Cwd            string `json:"cwd"`
	TranscriptPath string `json:"transcript_path"`
	Plan           string `json:"plan"`
	ToolInput      struct {
		Plan string `json:"plan"`
	} `json:"tool_input"`
}

// PlanText returns the plan content, preferring the top-level field over
// the nested tool-invocation field.
func (p *Payload) PlanText() string {
	if p.Plan != "" {
		return p.Plan
	}
	return p.ToolInput.Plan
}

// FromFile reads a plan document from disk. The working directory defaults
// to the plan's parent directory so project context resolves relative to it.
func FromFile(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Input{
		Text:           string(data),
		Path:           abs,
		Cwd:            filepath.Dir(abs),
		TranscriptPath: os.Getenv("CLAUDE_TRANSCRIPT"),
	}, nil
}

// FromStdin interprets raw stdin content: a JSON payload when it parses as
// one, otherwise the bytes are the plan text itself.
func FromStdin(data []byte) *Input {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return &Input{}
	}

	var payload Payload
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && payload.PlanText() != "" {
		return FromPayload(&payload)
	}
	return &Input{Text: trimmed}
}

// ParsePayload decodes a raw PreToolUse payload. Unlike FromStdin it does
// not fall back to treating the bytes as plan text: hook callers need the
// tool name and session fields even when the plan body is absent.
func ParsePayload(data []byte) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &payload, nil
}

// FromPayload builds an Input from a parsed host payload.
func FromPayload(p *Payload) *Input {
	return &Input{
		Text:           p.PlanText(),
		SessionID:      p.SessionID,
		Cwd:            p.Cwd,
		TranscriptPath: p.TranscriptPath,
	}
}

// FromText treats freeform text (e.g. joined command-line arguments) as
// the plan content directly.
func FromText(text string) *Input {
	return &Input{Text: strings.TrimSpace(text)}
}

// Title returns the first markdown heading or non-empty line of the plan,
// for report headers and history records.
func (in *Input) Title() string {
	for _, line := range strings.Split(in.Text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			if len(line) > 80 {
				line = line[:80]
			}
			return line
		}
	}
	return "(untitled plan)"
}

const notesSuffix = "-review-notes.md"

// ResolveNotesPath derives the companion review-notes path for a plan
// document: same directory, same base name plus the notes suffix. The
// resolved path must stay inside root; anything that escapes it (absolute
// trickery, ".." segments, symlink-free lexical traversal) is rejected.
// Returns ok=false when the plan has no on-disk path or the path escapes.
func ResolveNotesPath(planPath, root string) (string, bool) {
	if planPath == "" || root == "" {
		return "", false
	}

	abs, err := filepath.Abs(planPath)
	if err != nil {
		return "", false
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}

	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	ext := filepath.Ext(abs)
	stem := strings.TrimSuffix(abs, ext)
	return stem + notesSuffix, true
}
