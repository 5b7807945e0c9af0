// Package history reads the append-only history log of user-initiated
// turns, the authoritative source of project paths.
package history

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/k7lim/claude-run/internal/core/models"
	"github.com/k7lim/claude-run/internal/core/vcache"
)

// maxLineSize bounds a single history line; prompts can embed pasted
// content but never legitimately exceed this.
const maxLineSize = 10 * 1024 * 1024

// Log serves the history entries through a time-bounded cache. A read
// within the TTL window returns the cached slice; a stale or absent cache
// re-reads the whole file.
type Log struct {
	path  string
	cache *vcache.TTL[[]models.HistoryEntry]
}

// New creates a history log reader with the given cache TTL.
func New(path string, ttl time.Duration) *Log {
	return &Log{
		path:  path,
		cache: vcache.NewTTL[[]models.HistoryEntry](ttl),
	}
}

// Entries returns every history entry in file order (append order).
// Malformed lines are skipped; a missing or unreadable file yields an
// empty slice, never an error.
func (l *Log) Entries() []models.HistoryEntry {
	if entries, ok := l.cache.Get(); ok {
		return entries
	}

	entries := l.read()
	l.cache.Put(entries)
	return entries
}

// Invalidate clears the cache immediately; the watcher calls this when the
// history file changes.
func (l *Log) Invalidate() {
	l.cache.Invalidate()
}

func (l *Log) read() []models.HistoryEntry {
	file, err := os.Open(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("history log unreadable", "path", l.path, "err", err)
		}
		return []models.HistoryEntry{}
	}
	defer func() { _ = file.Close() }()

	entries := make([]models.HistoryEntry, 0, 64)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry models.HistoryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("history log read aborted", "path", l.path, "err", err)
	}

	return entries
}
