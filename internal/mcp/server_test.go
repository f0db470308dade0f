package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/planreview/internal/assemble"
	"github.com/joescharf/planreview/internal/models"
	"github.com/joescharf/planreview/internal/review"
	"github.com/joescharf/planreview/internal/reviewer"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockStore implements store.Store for testing.
type mockStore struct {
	records []*models.ReviewRecord

	createErr error
	listErr   error
}

func (m *mockStore) CreateReview(_ context.Context, r *models.ReviewRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	if r.ID == "" {
		r.ID = fmt.Sprintf("rec-%d", len(m.records)+1)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.records = append(m.records, r)
	return nil
}

func (m *mockStore) GetReview(_ context.Context, id string) (*models.ReviewRecord, error) {
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("review not found: %s", id)
}

func (m *mockStore) ListReviews(_ context.Context, limit int) ([]*models.ReviewRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*models.ReviewRecord, len(m.records))
	copy(out, m.records)
	// Newest first, matching the SQL store's ordering.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) Migrate(_ context.Context) error { return nil }
func (m *mockStore) Close() error                    { return nil }

// stubReviewer is a canned reviewer endpoint.
type stubReviewer struct {
	name  string
	reply string
	err   error
}

func (s stubReviewer) Name() string { return s.name }
func (s stubReviewer) Review(_ context.Context, _ string) (string, error) {
	return s.reply, s.err
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T, replies ...stubReviewer) (*Server, *mockStore) {
	t.Helper()
	ms := &mockStore{}

	revs := make([]reviewer.Reviewer, len(replies))
	for i, r := range replies {
		revs[i] = r
	}
	runner := review.NewRunner(assemble.New(""), revs, ms, reviewer.Config{Timeout: 5 * time.Second})

	srv := NewServer(runner, ms)
	require.NotNil(t, srv)
	return srv, ms
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv, _ := newTestServer(t, stubReviewer{name: "claude", reply: "APPROVE"})
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv, "MCPServer() should return non-nil")
}

func TestReviewPlan_Approve(t *testing.T) {
	srv, ms := newTestServer(t,
		stubReviewer{name: "claude", reply: "APPROVE: solid plan"},
		stubReviewer{name: "gemini", reply: "APPROVE"},
	)

	result, err := srv.handleReviewPlan(context.Background(), callToolReq("planreview_review_plan", map[string]any{
		"plan": "# Add caching\n\nCache API responses for 60s.",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		Decision string                `json:"decision"`
		Allowed  bool                  `json:"allowed"`
		Verdicts []models.ModelVerdict `json:"verdicts"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "APPROVE", out.Decision)
	assert.True(t, out.Allowed)
	assert.Len(t, out.Verdicts, 2)

	// The run is persisted to the history store.
	require.Len(t, ms.records, 1)
	assert.Equal(t, models.DecisionApprove, ms.records[0].Decision)
}

func TestReviewPlan_Reject(t *testing.T) {
	srv, _ := newTestServer(t,
		stubReviewer{name: "claude", reply: "REJECT: removes auth checks"},
	)

	result, err := srv.handleReviewPlan(context.Background(), callToolReq("planreview_review_plan", map[string]any{
		"plan": "disable login",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out struct {
		Decision string `json:"decision"`
		Allowed  bool   `json:"allowed"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "REJECT", out.Decision)
	assert.False(t, out.Allowed)
}

func TestReviewPlan_MissingPlan(t *testing.T) {
	srv, _ := newTestServer(t, stubReviewer{name: "claude", reply: "APPROVE"})

	result, err := srv.handleReviewPlan(context.Background(), callToolReq("planreview_review_plan", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "plan")
}

func TestReviewPlan_NoReviewers(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleReviewPlan(context.Background(), callToolReq("planreview_review_plan", map[string]any{
		"plan": "do things",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestListReviews(t *testing.T) {
	srv, ms := newTestServer(t)
	for i := 1; i <= 3; i++ {
		_ = ms.CreateReview(context.Background(), &models.ReviewRecord{
			PlanTitle: fmt.Sprintf("plan %d", i),
			Decision:  models.DecisionApprove,
			Reason:    "all models approved",
		})
	}

	result, err := srv.handleListReviews(context.Background(), callToolReq("planreview_list_reviews", map[string]any{
		"limit": 2,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out []struct {
		ID        string `json:"id"`
		PlanTitle string `json:"plan_title"`
		Decision  string `json:"decision"`
	}
	resultJSON(t, result, &out)
	require.Len(t, out, 2)
	assert.Equal(t, "plan 3", out[0].PlanTitle)
	assert.Equal(t, "APPROVE", out[0].Decision)
}

func TestListReviews_StoreError(t *testing.T) {
	srv, ms := newTestServer(t)
	ms.listErr = fmt.Errorf("db locked")

	result, err := srv.handleListReviews(context.Background(), callToolReq("planreview_list_reviews", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "db locked")
}
