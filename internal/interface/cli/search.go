package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/k7lim/claude-run/internal/core/sessions"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search session transcripts",
	Long: `Search transcript text for a case-insensitive substring.

Filter tokens narrow the candidates before any transcript is read:
  project:<path>          restrict to one project
  after:<date>            sessions after a date ("yesterday" works)
  before:<date>           sessions before a date

Examples:
  claude-run search goroutine leak
  claude-run search project:/home/me/app after:last-week deploy`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum number of sessions to return (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	manager := sessions.NewManager(cfg)

	results := manager.Search(strings.Join(args, " "), searchLimit)
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for _, r := range results {
		age := humanize.Time(time.UnixMilli(r.Session.Timestamp))
		fmt.Printf("%s  %s  (%s)\n", r.Session.ID, r.Session.ProjectName, age)
		for _, snippet := range r.Snippets {
			fmt.Printf("    %s\n", snippet)
		}
		fmt.Println()
	}
	return nil
}
