package sessions

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Filters are the structured constraints parsed out of a search query.
type Filters struct {
	Text      string // remaining free-text query
	Project   string // substring match against the project path
	After     time.Time
	Before    time.Time
	HasAfter  bool
	HasBefore bool
}

// ParseQuery splits filter tokens out of a raw query string.
// Supported tokens:
//   - project:<path> to restrict to one project
//   - after:<date>, before:<date> with natural-language dates
//     ("yesterday", "last week") or common formats (2024-11-01)
func ParseQuery(query string) Filters {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	var filters Filters
	var textParts []string

	for _, token := range strings.Fields(query) {
		switch {
		case strings.HasPrefix(token, "project:"):
			filters.Project = strings.TrimPrefix(token, "project:")

		case strings.HasPrefix(token, "after:"):
			if t, ok := parseDate(w, strings.TrimPrefix(token, "after:")); ok {
				filters.After = t
				filters.HasAfter = true
			}

		case strings.HasPrefix(token, "before:"):
			if t, ok := parseDate(w, strings.TrimPrefix(token, "before:")); ok {
				filters.Before = t
				filters.HasBefore = true
			}

		default:
			textParts = append(textParts, token)
		}
	}

	filters.Text = strings.Join(textParts, " ")
	return filters
}

// matches applies the non-text constraints to a session timestamp (epoch
// milliseconds) and project path.
func (f Filters) matches(project string, timestampMS int64) bool {
	if f.Project != "" && !strings.Contains(strings.ToLower(project), strings.ToLower(f.Project)) {
		return false
	}
	t := time.UnixMilli(timestampMS)
	if f.HasAfter && t.Before(f.After) {
		return false
	}
	if f.HasBefore && t.After(f.Before) {
		return false
	}
	return true
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
}

func parseDate(w *when.Parser, s string) (time.Time, bool) {
	if result, err := w.Parse(s, time.Now()); err == nil && result != nil {
		return result.Time, true
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
