package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/k7lim/claude-run/cmd/claude-run/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server that lets Claude Code
search and retrieve information from your session history.

Configure in Claude Desktop's config file (~/.config/claude/config.json):
  {
    "mcpServers": {
      "claude-run": {
        "command": "claude-run",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := mcp.StartServer(cfg); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
