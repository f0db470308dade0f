package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/planreview/internal/plan"
	"github.com/joescharf/planreview/internal/review"
	"github.com/joescharf/planreview/internal/store"
)

// Server wraps the review pipeline and history store as MCP tools.
type Server struct {
	runner *review.Runner
	store  store.Store
}

// NewServer creates the MCP server wrapper. The store may be nil, in which
// case the history tool reports an error result.
func NewServer(r *review.Runner, s store.Store) *Server {
	return &Server{runner: r, store: s}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("planreview", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.reviewPlanTool())
	srv.AddTool(s.listReviewsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// planreview_review_plan
func (s *Server) reviewPlanTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("planreview_review_plan",
		mcp.WithDescription("Review an implementation plan with the configured reviewer models and return the consensus decision (APPROVE/CONCERNS/REJECT) plus each model's verdict as JSON."),
		mcp.WithString("plan", mcp.Required(), mcp.Description("The plan text to review")),
		mcp.WithString("cwd", mcp.Description("Project directory the plan applies to, used to locate project policy")),
	)
	return tool, s.handleReviewPlan
}

func (s *Server) handleReviewPlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planText, err := request.RequireString("plan")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: plan"), nil
	}

	in := plan.FromText(planText)
	in.Cwd = request.GetString("cwd", "")

	res, err := s.runner.Run(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review failed: %v", err)), nil
	}

	result := map[string]any{
		"decision": res.Consensus.Decision,
		"reason":   res.Consensus.Reason,
		"feedback": res.Consensus.Feedback,
		"allowed":  res.Consensus.Allowed(),
		"verdicts": res.Verdicts,
	}
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// planreview_list_reviews
func (s *Server) listReviewsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("planreview_list_reviews",
		mcp.WithDescription("List past plan reviews from the history store, newest first. Returns a JSON array with id, plan title, decision, reason, and timestamp."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of reviews to return (default 20)")),
	)
	return tool, s.handleListReviews
}

func (s *Server) handleListReviews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("history store not configured"), nil
	}

	limit := request.GetInt("limit", 20)
	if limit < 0 {
		limit = 0
	}

	records, err := s.store.ListReviews(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reviews: %v", err)), nil
	}

	type reviewOut struct {
		ID        string `json:"id"`
		PlanTitle string `json:"plan_title"`
		PlanPath  string `json:"plan_path,omitempty"`
		Decision  string `json:"decision"`
		Reason    string `json:"reason"`
		CreatedAt string `json:"created_at"`
	}

	out := make([]reviewOut, len(records))
	for i, r := range records {
		out[i] = reviewOut{
			ID:        r.ID,
			PlanTitle: r.PlanTitle,
			PlanPath:  r.PlanPath,
			Decision:  string(r.Decision),
			Reason:    r.Reason,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal reviews: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
