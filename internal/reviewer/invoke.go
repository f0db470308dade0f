package reviewer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joescharf/planreview/internal/models"
	"github.com/joescharf/planreview/internal/verdict"
)

// Invoke calls every reviewer concurrently with the same prompt. Each call
// is failure-isolated: a timeout, transport error, or panic in one backend
// yields a failed verdict for that model and never disturbs the others.
// Results come back in reviewer order; the call returns only after every
// invocation has completed or timed out. No retries.
func Invoke(ctx context.Context, reviewers []Reviewer, prompt string, timeout time.Duration) []models.ModelVerdict {
	results := make([]models.ModelVerdict, len(reviewers))

	var wg sync.WaitGroup
	for i, r := range reviewers {
		wg.Add(1)
		go func(i int, r Reviewer) {
			defer wg.Done()
			// Each goroutine writes only its own slot.
			results[i] = invokeOne(ctx, r, prompt, timeout)
		}(i, r)
	}
	wg.Wait()

	return results
}

// invokeOne runs a single reviewer call with its own deadline and converts
// the outcome to a verdict.
func invokeOne(ctx context.Context, r Reviewer, prompt string, timeout time.Duration) (v models.ModelVerdict) {
	requestID := newRequestID()
	start := time.Now()

	defer func() {
		// A misbehaving backend must cost one vote, not the run.
		if p := recover(); p != nil {
			slog.Error("reviewer panicked", "model", r.Name(), "request", requestID, "panic", p)
			v = models.FailedVerdict(r.Name(), "internal reviewer error")
			v.Elapsed = time.Since(start).Seconds()
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.Info("calling reviewer", "model", r.Name(), "request", requestID, "timeout", timeout)

	raw, err := r.Review(callCtx, prompt)
	elapsed := time.Since(start)

	if err != nil {
		reason := "model call failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "model call timed out"
		}
		slog.Warn("reviewer call failed", "model", r.Name(), "request", requestID, "elapsed", elapsed, "error", err)
		v = models.FailedVerdict(r.Name(), reason)
		v.Elapsed = elapsed.Seconds()
		return v
	}

	slog.Info("reviewer call completed", "model", r.Name(), "request", requestID, "elapsed", elapsed)
	slog.Debug("reviewer reply", "model", r.Name(), "request", requestID, "reply", raw)

	v = verdict.ParseReply(r.Name(), raw)
	v.Elapsed = elapsed.Seconds()
	return v
}

// newRequestID returns a short random correlation ID for log lines.
func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
