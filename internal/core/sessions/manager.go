// Package sessions is the facade over the history log, the transcript files,
// and the archive sidecar. Everything the HTTP and CLI surfaces show comes
// through here.
package sessions

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/k7lim/claude-run/internal/core/config"
	"github.com/k7lim/claude-run/internal/core/conversation"
	"github.com/k7lim/claude-run/internal/core/history"
	"github.com/k7lim/claude-run/internal/core/index"
	"github.com/k7lim/claude-run/internal/core/models"
	"github.com/k7lim/claude-run/internal/core/paths"
	"github.com/k7lim/claude-run/internal/core/tokens"
)

// Manager aggregates session data from the history log, the encoded project
// directories, and the archive sidecar. Concurrent identical reads are
// coalesced into one underlying execution.
type Manager struct {
	cfg         *config.Config
	claudeDir   string
	projectsDir string

	history *history.Log
	index   *index.Index
	tokens  *tokens.Accountant
	archive *ArchiveStore

	group singleflight.Group

	// first transcript timestamps never change once written
	firstSeen sync.Map // session id -> int64 epoch ms
}

// NewManager wires the facade from configuration.
func NewManager(cfg *config.Config) *Manager {
	claudeDir := paths.ClaudeDir(cfg.ClaudeDir)
	ix := index.New(paths.ProjectsDir(claudeDir))

	return &Manager{
		cfg:         cfg,
		claudeDir:   claudeDir,
		projectsDir: paths.ProjectsDir(claudeDir),
		history:     history.New(paths.HistoryPath(claudeDir), cfg.HistoryTTL),
		index:       ix,
		tokens:      tokens.New(ix),
		archive:     NewArchiveStore(cfg.ArchivePath),
	}
}

// ListSessions returns sessions ordered by descending timestamp. Two history
// entries resolving to the same session id collapse into one Session carrying
// the earliest entry's metadata. Archived sessions are omitted unless asked
// for.
func (m *Manager) ListSessions(includeArchived bool) []models.Session {
	key := fmt.Sprintf("sessions:arch=%t", includeArchived)
	v, _, _ := m.group.Do(key, func() (any, error) {
		return m.listSessions(includeArchived), nil
	})
	return v.([]models.Session)
}

func (m *Manager) listSessions(includeArchived bool) []models.Session {
	archived := m.archive.IDs()
	seen := make(map[string]bool)
	sessions := make([]models.Session, 0)

	for _, entry := range m.history.Entries() {
		id := entry.SessionID
		if id == "" {
			id = m.resolveByModTime(entry)
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		if archived[id] && !includeArchived {
			continue
		}

		s := models.Session{
			ID:          id,
			Display:     entry.Display,
			Timestamp:   entry.Timestamp,
			Project:     entry.Project,
			ProjectName: filepath.Base(entry.Project),
			Archived:    archived[id],
		}
		if ts, ok := m.firstTimestamp(id); ok {
			s.FirstTimestamp = ts
		}
		sessions = append(sessions, s)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Timestamp > sessions[j].Timestamp
	})
	return sessions
}

// resolveByModTime guesses the session for a pre-sessionId history entry by
// picking the transcript in the entry's encoded project directory whose
// mtime is closest to the entry timestamp. This is a best-effort fallback
// inherited from the original log format, not a guaranteed mapping; ties go
// to the first file in directory order.
func (m *Manager) resolveByModTime(entry models.HistoryEntry) string {
	dir := filepath.Join(m.projectsDir, paths.Encode(entry.Project))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var bestPath string
	var bestDelta int64 = -1
	for _, de := range entries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".jsonl" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		delta := info.ModTime().UnixMilli() - entry.Timestamp
		if delta < 0 {
			delta = -delta
		}
		if bestDelta < 0 || delta < bestDelta {
			bestDelta = delta
			bestPath = filepath.Join(dir, de.Name())
		}
	}
	if bestPath == "" {
		return ""
	}

	id := paths.SessionIDFromPath(bestPath)
	m.index.Seed(id, bestPath)
	return id
}

func (m *Manager) firstTimestamp(id string) (int64, bool) {
	if v, ok := m.firstSeen.Load(id); ok {
		return v.(int64), true
	}
	path, ok := m.index.Lookup(id)
	if !ok {
		return 0, false
	}
	ts, ok := conversation.FirstTimestamp(path)
	if !ok {
		return 0, false
	}
	m.firstSeen.Store(id, ts)
	return ts, true
}

// ListProjects returns the distinct projects seen in history, each with its
// latest activity timestamp, ordered most recent first.
func (m *Manager) ListProjects() []models.Project {
	v, _, _ := m.group.Do("projects", func() (any, error) {
		latest := make(map[string]int64)
		for _, entry := range m.history.Entries() {
			if entry.Project == "" {
				continue
			}
			if entry.Timestamp > latest[entry.Project] {
				latest[entry.Project] = entry.Timestamp
			}
		}

		projects := make([]models.Project, 0, len(latest))
		for path, ts := range latest {
			projects = append(projects, models.NewProject(path, ts))
		}
		sort.Slice(projects, func(i, j int) bool {
			return projects[i].Timestamp > projects[j].Timestamp
		})
		return projects, nil
	})
	return v.([]models.Project)
}

// Conversation returns the full transcript for a session, summaries first.
// Unknown session ids report ok=false.
func (m *Manager) Conversation(id string) ([]models.ConversationMessage, bool) {
	v, _, _ := m.group.Do("conversation:"+id, func() (any, error) {
		path, ok := m.index.Lookup(id)
		if !ok {
			return []models.ConversationMessage(nil), nil
		}
		return conversation.ReadAll(path), nil
	})
	msgs := v.([]models.ConversationMessage)
	if msgs == nil {
		return nil, false
	}
	return msgs, true
}

// ConversationFrom reads only transcript bytes past offset, for incremental
// refresh after a change notification. nextOffset feeds the following call.
func (m *Manager) ConversationFrom(id string, offset int64) ([]models.ConversationMessage, int64, bool) {
	path, ok := m.index.Lookup(id)
	if !ok {
		return nil, offset, false
	}
	msgs, next := conversation.ReadFrom(path, offset)
	return msgs, next, true
}

// BranchView resolves the transcript down to a single linear branch, summary
// entries first, following recorded choices at fork points.
func (m *Manager) BranchView(id string, choices map[string]string) ([]models.ConversationMessage, bool) {
	msgs, ok := m.Conversation(id)
	if !ok {
		return nil, false
	}
	return conversation.Branch(msgs, choices), true
}

// Tokens returns the session's token totals, or ok=false when the session is
// unknown or its transcript is missing.
func (m *Manager) Tokens(id string) (models.SessionTokens, bool) {
	return m.tokens.Get(id)
}

// Archive marks a session archived in the sidecar.
func (m *Manager) Archive(id string) error {
	return m.archive.Archive(id)
}

// Unarchive clears a session's archived mark.
func (m *Manager) Unarchive(id string) error {
	return m.archive.Unarchive(id)
}

// SessionPathFor exposes the resolved transcript path for a session id.
func (m *Manager) SessionPathFor(id string) (string, bool) {
	return m.index.Lookup(id)
}

// InvalidateHistory drops the history cache so the next listing re-reads the
// log. Called when the watcher reports a history change.
func (m *Manager) InvalidateHistory() {
	m.history.Invalidate()
}

// NoteSessionChange registers a changed transcript: the file index learns the
// path and the token cache forgets its totals. Called when the watcher
// reports a transcript change.
func (m *Manager) NoteSessionChange(id, path string) {
	if id == "" {
		return
	}
	if path != "" {
		m.index.Seed(id, path)
	}
	m.tokens.Invalidate(id)
}
