package sessions

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/k7lim/claude-run/internal/core/conversation"
	"github.com/k7lim/claude-run/internal/core/models"
)

const maxSnippetsPerSession = 3

// snippetContext is how many characters of surrounding text a snippet keeps
// on each side of the hit.
const snippetContext = 60

// SearchResult pairs a matching session with up to three example snippets.
type SearchResult struct {
	Session  models.Session `json:"session"`
	Snippets []string       `json:"snippets"`
}

// Search scans non-archived session transcripts for a case-insensitive
// substring of the query's free text. Free text shorter than three
// characters returns nothing; two characters match too much to be useful.
// Results keep the listing's descending-timestamp order and are
// capped at limit (the configured default when limit is not positive).
// project:, after: and before: tokens in the query narrow the candidate
// sessions before any transcript is read.
func (m *Manager) Search(query string, limit int) []SearchResult {
	filters := ParseQuery(query)
	if len(filters.Text) < 3 {
		return nil
	}
	if limit <= 0 {
		limit = m.cfg.SearchLimit
	}
	needle := strings.ToLower(filters.Text)

	var results []SearchResult
	for _, session := range m.ListSessions(false) {
		if len(results) >= limit {
			break
		}
		if !filters.matches(session.Project, session.Timestamp) {
			continue
		}
		path, ok := m.index.Lookup(session.ID)
		if !ok {
			continue
		}

		var snippets []string
		for _, msg := range conversation.ReadAll(path) {
			text := msg.Text()
			if text == "" {
				continue
			}
			start, end, ok := matchIndex(text, needle)
			if !ok {
				continue
			}
			snippets = append(snippets, snippet(text, start, end-start))
			if len(snippets) >= maxSnippetsPerSession {
				break
			}
		}
		if len(snippets) > 0 {
			results = append(results, SearchResult{Session: session, Snippets: snippets})
		}
	}
	return results
}

// matchIndex locates the first case-insensitive occurrence of needle in
// text and returns its byte window in text's own coordinates. needle must
// already be lowercased. Indexing a lowered copy instead would not work:
// lowering can change a rune's encoded length, so offsets into the lowered
// string do not line up with the original.
func matchIndex(text, needle string) (start, end int, ok bool) {
	want := []rune(needle)
	for i := 0; i < len(text); {
		j, k := i, 0
		for k < len(want) && j < len(text) {
			r, size := utf8.DecodeRuneInString(text[j:])
			if unicode.ToLower(r) != want[k] {
				break
			}
			j += size
			k++
		}
		if k == len(want) {
			return i, j, true
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return 0, 0, false
}

// snippet trims the matched message text to a window of snippetContext
// runes around the hit, collapsing newlines so snippets render on one line.
// The window grows rune by rune so multi-byte characters are never split.
func snippet(text string, idx, matchLen int) string {
	start := idx
	for n := 0; n < snippetContext && start > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
	}
	end := idx + matchLen
	for n := 0; n < snippetContext && end < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}

	s := text[start:end]
	s = strings.Join(strings.Fields(s), " ")
	if start > 0 {
		s = "…" + s
	}
	if end < len(text) {
		s += "…"
	}
	return s
}
