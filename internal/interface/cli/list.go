package cli

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/k7lim/claude-run/internal/core/sessions"
)

var (
	listLimit    int
	listArchived bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List Claude Code sessions",
	Long: `List sessions from the history log in reverse chronological order.

Examples:
  claude-run list
  claude-run list --limit 10
  claude-run list --archived`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of sessions to display")
	listCmd.Flags().BoolVar(&listArchived, "archived", false, "Include archived sessions")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	manager := sessions.NewManager(cfg)

	list := manager.ListSessions(listArchived)
	if len(list) > listLimit {
		list = list[:listLimit]
	}

	if len(list) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	for _, s := range list {
		age := humanize.Time(time.UnixMilli(s.Timestamp))
		marker := ""
		if s.Archived {
			marker = " [archived]"
		}
		fmt.Printf("%s  %s%s\n", s.ID, age, marker)
		fmt.Printf("    %s\n", truncate(s.Display, 100))
		fmt.Printf("    %s\n\n", s.Project)
	}
	return nil
}

// truncate shortens s to at most max runes, never splitting a multi-byte
// character.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
