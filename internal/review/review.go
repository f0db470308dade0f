package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joescharf/planreview/internal/assemble"
	"github.com/joescharf/planreview/internal/models"
	"github.com/joescharf/planreview/internal/plan"
	"github.com/joescharf/planreview/internal/prompt"
	"github.com/joescharf/planreview/internal/reviewer"
	"github.com/joescharf/planreview/internal/store"
	"github.com/joescharf/planreview/internal/verdict"
)

// Result holds everything a single review run produced.
type Result struct {
	Plan      *plan.Input             `json:"-"`
	PlanTitle string                  `json:"plan_title"`
	Context   assemble.Context        `json:"-"`
	Verdicts  []models.ModelVerdict   `json:"verdicts"`
	Consensus models.ConsensusVerdict `json:"consensus"`
	RecordID  string                  `json:"record_id,omitempty"`
	Elapsed   time.Duration           `json:"-"`
}

// Runner orchestrates a full review: context assembly, model fan-out,
// consensus reduction, and history persistence.
type Runner struct {
	assembler *assemble.Assembler
	reviewers []reviewer.Reviewer
	store     store.Store
	cfg       reviewer.Config
}

// NewRunner creates a runner. The store may be nil, in which case results
// are not persisted.
func NewRunner(a *assemble.Assembler, revs []reviewer.Reviewer, s store.Store, cfg reviewer.Config) *Runner {
	return &Runner{assembler: a, reviewers: revs, store: s, cfg: cfg}
}

// Run reviews the given plan and returns the consensus result. Failures in
// individual model calls are folded into the consensus; Run only errors when
// no review could be attempted at all.
func (r *Runner) Run(ctx context.Context, in *plan.Input) (*Result, error) {
	if in == nil || in.Text == "" {
		return nil, fmt.Errorf("no plan content to review")
	}
	if len(r.reviewers) == 0 {
		return nil, fmt.Errorf("no reviewer models configured")
	}

	start := time.Now()

	rctx := r.assembler.Assemble(in)
	p := prompt.Build(in.Text, rctx)

	slog.Debug("starting review",
		"models", len(r.reviewers),
		"prompt_bytes", len(p),
		"timeout", r.cfg.Timeout)

	verdicts := reviewer.Invoke(ctx, r.reviewers, p, r.cfg.Timeout)
	consensus := verdict.Reduce(verdicts)

	res := &Result{
		Plan:      in,
		PlanTitle: in.Title(),
		Context:   rctx,
		Verdicts:  verdicts,
		Consensus: consensus,
		Elapsed:   time.Since(start),
	}

	// Persistence is best-effort: a broken history DB must never block
	// the gating decision.
	if r.store != nil {
		rec := &models.ReviewRecord{
			SessionID: in.SessionID,
			PlanPath:  in.Path,
			PlanTitle: res.PlanTitle,
			Decision:  consensus.Decision,
			Reason:    consensus.Reason,
			Feedback:  consensus.Feedback,
			Verdicts:  verdicts,
		}
		if err := r.store.CreateReview(ctx, rec); err != nil {
			slog.Debug("persist review record", "error", err)
		} else {
			res.RecordID = rec.ID
		}
	}

	return res, nil
}
