package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/k7lim/claude-run/internal/core/export"
	"github.com/k7lim/claude-run/internal/core/models"
	"github.com/k7lim/claude-run/internal/core/sessions"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session to markdown",
	Long: `Export a session transcript to a markdown file.

By default exports to the current directory as session-<id>.md.

Examples:
  claude-run export 0ccfddc4-00e7-443a-bb82-58ede5936619
  claude-run export 0ccfddc4 --output ~/exported-session.md`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: session-<id>.md in current directory)")
}

func runExport(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	manager := sessions.NewManager(cfg)

	msgs, ok := manager.Conversation(sessionID)
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	session := models.Session{ID: sessionID}
	for _, s := range manager.ListSessions(true) {
		if s.ID == sessionID {
			session = s
			break
		}
	}

	md, err := export.Markdown(cfg.ExportTemplate, session, msgs)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	outputPath := exportOutput
	if outputPath == "" {
		shortID := sessionID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}
		outputPath = filepath.Join(cwd, fmt.Sprintf("session-%s.md", shortID))
	} else if !filepath.IsAbs(outputPath) {
		outputPath = filepath.Join(cwd, outputPath)
	}

	if err := os.WriteFile(outputPath, []byte(md), 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Printf("Exported to %s\n", outputPath)
	return nil
}
