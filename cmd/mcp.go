package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/planreview/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets Claude Code request plan reviews and browse review history
natively. Configure in Claude Code with:

  {
    "mcpServers": {
      "planreview": { "command": "planreview", "args": ["mcp"] }
    }
  }

Available tools: planreview_review_plan, planreview_list_reviews`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := getRunner()
		if err != nil {
			return err
		}

		// The store may be nil when the history db is unavailable; the
		// server degrades the history tool rather than refusing to start.
		srv := mcp.NewServer(runner, dataStore)
		ui.VerboseLog("starting MCP stdio server")
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
