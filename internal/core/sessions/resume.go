package sessions

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/dustin/go-humanize"
)

// ResumeCommand builds a shell command that resumes the session in claude,
// with the configured extra flags and a rendered context prompt. The prompt
// goes through a temp file so its content never needs shell escaping; the
// caller owns cleanup of that file.
func (m *Manager) ResumeCommand(id string, fork bool) (string, error) {
	var project string
	var updated time.Time
	for _, s := range m.ListSessions(true) {
		if s.ID == id {
			project = s.Project
			updated = time.UnixMilli(s.Timestamp)
			break
		}
	}
	if project == "" {
		return "", fmt.Errorf("unknown session %s", id)
	}

	cwd, _ := os.Getwd()
	timeSince := "unknown"
	if !updated.IsZero() {
		timeSince = humanize.Time(updated)
	}

	data := map[string]any{
		"last_updated":        updated.Format(time.RFC3339),
		"time_since":          timeSince,
		"project_path":        project,
		"same_directory":      cwd == project,
		"different_directory": cwd != project,
	}

	prompt, err := mustache.Render(m.cfg.ResumePromptTemplate, data)
	if err != nil {
		prompt = fmt.Sprintf("Resuming session. The project directory is: %s", project)
	}

	tmp, err := os.CreateTemp("", "claude-run-prompt-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create prompt file: %w", err)
	}
	if _, err := tmp.WriteString(prompt); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write prompt file: %w", err)
	}
	_ = tmp.Close()

	flags := ""
	if len(m.cfg.ClaudeFlags) > 0 {
		flags = " " + strings.Join(m.cfg.ClaudeFlags, " ")
	}

	if fork {
		return fmt.Sprintf("claude%s --resume %s --fork-session \"$(cat %s)\"", flags, id, tmp.Name()), nil
	}
	return fmt.Sprintf("claude%s --resume %s \"$(cat %s)\"", flags, id, tmp.Name()), nil
}
