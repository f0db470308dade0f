// Package assemble gathers optional review context for a plan. Context is
// an enrichment, never a requirement: every lookup failure degrades to an
// empty fragment so a review is always attemptable.
package assemble

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joescharf/planreview/internal/plan"
)

const (
	// policyCap bounds each policy document's contribution to the prompt.
	policyCap = 8000
	// feedbackCap bounds prior review notes.
	feedbackCap = 2000
	// transcriptTail is how many trailing transcript lines are scanned.
	transcriptTail = 30
	// messageLimit is how many recent user messages are kept.
	messageLimit = 5
)

// Context holds the four named text fragments fed into the prompt. A
// fragment is either empty (absent) or truncated text; there is no
// separate missing state.
type Context struct {
	GlobalPolicy   string
	ProjectPolicy  string
	RecentMessages string
	PriorFeedback  string
}

// Assembler builds a Context from a plan input. The zero value is not
// usable; construct with New.
type Assembler struct {
	homeDir   string
	notesRoot string
}

// New creates an assembler. notesRoot is the allowed root for review-notes
// resolution; empty disables prior-feedback lookup.
func New(notesRoot string) *Assembler {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return &Assembler{homeDir: home, notesRoot: notesRoot}
}

// Assemble builds the review context. It never fails: each fragment that
// cannot be gathered is the empty string.
func (a *Assembler) Assemble(in *plan.Input) Context {
	ctx := Context{
		GlobalPolicy:   a.globalPolicy(),
		ProjectPolicy:  a.projectPolicy(in.Cwd),
		RecentMessages: a.recentMessages(in.TranscriptPath),
		PriorFeedback:  a.priorFeedback(in.Path),
	}
	slog.Debug("context assembled",
		"global", len(ctx.GlobalPolicy),
		"project", len(ctx.ProjectPolicy),
		"messages", len(ctx.RecentMessages),
		"prior_feedback", len(ctx.PriorFeedback))
	return ctx
}

// globalPolicy reads the user-level CLAUDE.md policy document.
func (a *Assembler) globalPolicy() string {
	if a.homeDir == "" {
		return ""
	}
	return readCapped(filepath.Join(a.homeDir, ".claude", "CLAUDE.md"), policyCap)
}

// projectPolicy walks up from cwd looking for the nearest CLAUDE.md.
func (a *Assembler) projectPolicy(cwd string) string {
	if cwd == "" {
		return ""
	}
	dir := filepath.Clean(cwd)
	for {
		if text := readCapped(filepath.Join(dir, "CLAUDE.md"), policyCap); text != "" {
			return text
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// transcriptEntry is the subset of a transcript line we care about.
type transcriptEntry struct {
	Type    string `json:"type"`
	Message struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

// recentMessages extracts the last few user-authored messages from a
// line-delimited JSON transcript, in chronological order. Malformed lines
// are skipped, never fatal.
func (a *Assembler) recentMessages(transcriptPath string) string {
	if transcriptPath == "" {
		return ""
	}
	f, err := os.Open(transcriptPath)
	if err != nil {
		slog.Debug("transcript not readable", "path", transcriptPath, "error", err)
		return ""
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > transcriptTail {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Debug("transcript scan failed", "path", transcriptPath, "error", err)
		return ""
	}

	var msgs []string
	for _, line := range lines {
		var entry transcriptEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.Type != "user" {
			continue
		}
		if text := messageText(entry.Message.Content); text != "" {
			msgs = append(msgs, text)
		}
	}
	if len(msgs) > messageLimit {
		msgs = msgs[len(msgs)-messageLimit:]
	}
	return strings.Join(msgs, "\n")
}

// messageText extracts plain text from a message content field, which is
// either a string, an object with a text field, or a list of typed blocks.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Text != "" {
		return obj.Text
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// priorFeedback loads the companion review-notes document for the plan.
// Absence is the normal first-round case.
func (a *Assembler) priorFeedback(planPath string) string {
	notesPath, ok := plan.ResolveNotesPath(planPath, a.notesRoot)
	if !ok {
		if planPath != "" {
			slog.Debug("review notes path rejected", "plan", planPath, "root", a.notesRoot)
		}
		return ""
	}
	text := readCapped(notesPath, feedbackCap)
	if text == "" {
		slog.Debug("no review notes found", "path", notesPath)
	}
	return text
}

// readCapped reads a file's text up to limit characters. Any error yields "".
func readCapped(path string, limit int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(string(data))
	if len(text) > limit {
		text = text[:limit]
	}
	return text
}
