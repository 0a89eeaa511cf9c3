package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rosettalab/xlate/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for coding-agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets a coding agent drive translation sessions natively. Configure
in the agent's MCP settings with:

  {
    "mcpServers": {
      "xlate": { "command": "xlate", "args": ["mcp"] }
    }
  }

Available tools: xlate_open, xlate_advance, xlate_feedback,
xlate_rollback, xlate_state, xlate_close, xlate_list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd)
		if err != nil {
			return err
		}
		srv := mcp.NewServer(eng, logger)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
