package review

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/joescharf/planreview/internal/assemble"
	"github.com/joescharf/planreview/internal/models"
	"github.com/joescharf/planreview/internal/plan"
	"github.com/joescharf/planreview/internal/reviewer"
	"github.com/joescharf/planreview/internal/store"
)

type fakeReviewer struct {
	name  string
	reply string
	err   error
}

func (f fakeReviewer) Name() string { return f.name }

func (f fakeReviewer) Review(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "reviews.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRun_ConsensusAndPersistence(t *testing.T) {
	s := testStore(t)
	revs := []reviewer.Reviewer{
		fakeReviewer{name: "claude", reply: "APPROVE: plan looks solid"},
		fakeReviewer{name: "gemini", reply: "APPROVE"},
	}
	r := NewRunner(assemble.New(""), revs, s, reviewer.Config{Timeout: 5 * time.Second})

	in := plan.FromText("# Add retry logic\n\nWrap the client in a retry loop.")
	res, err := r.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Consensus.Decision != models.DecisionApprove {
		t.Errorf("Decision = %q, want APPROVE", res.Consensus.Decision)
	}
	if len(res.Verdicts) != 2 {
		t.Fatalf("Verdicts len = %d, want 2", len(res.Verdicts))
	}
	if res.PlanTitle != "Add retry logic" {
		t.Errorf("PlanTitle = %q", res.PlanTitle)
	}
	if res.RecordID == "" {
		t.Fatal("expected persisted record ID")
	}

	rec, err := s.GetReview(context.Background(), res.RecordID)
	if err != nil {
		t.Fatalf("get persisted record: %v", err)
	}
	if rec.Decision != models.DecisionApprove {
		t.Errorf("persisted Decision = %q", rec.Decision)
	}
	if len(rec.Verdicts) != 2 {
		t.Errorf("persisted Verdicts len = %d", len(rec.Verdicts))
	}
}

func TestRun_RejectWinsOverApprove(t *testing.T) {
	revs := []reviewer.Reviewer{
		fakeReviewer{name: "claude", reply: "APPROVE"},
		fakeReviewer{name: "gemini", reply: "REJECT: deletes the production database"},
	}
	r := NewRunner(assemble.New(""), revs, nil, reviewer.Config{Timeout: 5 * time.Second})

	res, err := r.Run(context.Background(), plan.FromText("drop everything"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Consensus.Decision != models.DecisionReject {
		t.Errorf("Decision = %q, want REJECT", res.Consensus.Decision)
	}
	if res.Consensus.Allowed() {
		t.Error("rejected plan must not be allowed")
	}
}

func TestRun_FailedModelFoldsToConcerns(t *testing.T) {
	revs := []reviewer.Reviewer{
		fakeReviewer{name: "claude", reply: "", err: fmt.Errorf("connection refused")},
	}
	r := NewRunner(assemble.New(""), revs, nil, reviewer.Config{Timeout: 5 * time.Second})

	res, err := r.Run(context.Background(), plan.FromText("some plan"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Consensus.Decision != models.DecisionConcerns {
		t.Errorf("Decision = %q, want CONCERNS", res.Consensus.Decision)
	}
	if res.Verdicts[0].Succeeded {
		t.Error("verdict should record the failure")
	}
}

func TestRun_EmptyPlan(t *testing.T) {
	r := NewRunner(assemble.New(""), []reviewer.Reviewer{fakeReviewer{name: "claude"}}, nil, reviewer.Config{})
	if _, err := r.Run(context.Background(), plan.FromText("")); err == nil {
		t.Fatal("expected error for empty plan")
	}
}

func TestRun_NoReviewers(t *testing.T) {
	r := NewRunner(assemble.New(""), nil, nil, reviewer.Config{})
	if _, err := r.Run(context.Background(), plan.FromText("a plan")); err == nil {
		t.Fatal("expected error with no reviewers")
	}
}
