package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/k7lim/claude-run/internal/core/config"
)

var (
	claudeDir   string
	serverPort  int
	versionInfo string
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "claude-run",
	Short: "Local web viewer for Claude Code sessions",
	Long: `claude-run - browse, search, and export your Claude Code sessions

Serves a local web UI over the JSONL logs under ~/.claude with live
updates, transcript search, markdown export, and resume commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to the web server when no subcommand is given
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&claudeDir, "claude-dir", "", "Claude data directory (default ~/.claude)")
	rootCmd.PersistentFlags().IntVar(&serverPort, "port", 0, "HTTP port (default from config, then 3456)")
}

// loadConfig reads the config files and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if claudeDir != "" {
		cfg.ClaudeDir = claudeDir
	}
	if serverPort > 0 {
		cfg.Port = serverPort
	}
	return cfg, nil
}
