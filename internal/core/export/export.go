// Package export renders a session transcript as a markdown document.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/dustin/go-humanize"

	"github.com/k7lim/claude-run/internal/core/models"
)

// DefaultTemplate is the built-in markdown layout. A file named
// export_template.md in the config dir replaces it.
const DefaultTemplate = `# {{title}}

- **Project:** {{project}}
- **Session:** {{session_id}}
- **Last activity:** {{last_updated}} ({{time_since}})

{{#summaries}}
> {{text}}
{{/summaries}}

{{#messages}}
## {{role}}{{#time}} ({{time}}){{/time}}

{{{text}}}

{{/messages}}
`

// Markdown renders the session and its messages through the given mustache
// template, or the built-in one when template is empty. Summary entries
// become blockquotes ahead of the turns; user and assistant turns render as
// sections in file order.
func Markdown(template string, session models.Session, messages []models.ConversationMessage) (string, error) {
	if template == "" {
		template = DefaultTemplate
	}

	var summaries []map[string]any
	var turns []map[string]any
	for _, msg := range messages {
		switch {
		case msg.Type == models.MessageTypeSummary:
			if msg.Summary != "" {
				summaries = append(summaries, map[string]any{"text": msg.Summary})
			}
		case msg.IsConversational():
			turn := map[string]any{
				"role": roleLabel(msg),
				"text": msg.Text(),
			}
			if t := msg.Time(); !t.IsZero() {
				turn["time"] = t.Local().Format("2006-01-02 15:04")
			}
			turns = append(turns, turn)
		}
	}

	title := session.Display
	if title == "" {
		title = "Session " + session.ID
	}

	lastUpdated := ""
	timeSince := ""
	if session.Timestamp > 0 {
		t := time.UnixMilli(session.Timestamp)
		lastUpdated = t.Local().Format("2006-01-02 15:04")
		timeSince = humanize.Time(t)
	}

	data := map[string]any{
		"title":        title,
		"project":      session.Project,
		"project_name": session.ProjectName,
		"session_id":   session.ID,
		"last_updated": lastUpdated,
		"time_since":   timeSince,
		"summaries":    summaries,
		"messages":     turns,
	}

	out, err := mustache.Render(template, data)
	if err != nil {
		return "", fmt.Errorf("failed to render export template: %w", err)
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}

func roleLabel(msg models.ConversationMessage) string {
	if msg.Type == models.MessageTypeAssistant {
		return "Assistant"
	}
	return "User"
}
