// Package tokens computes per-session token accounting from transcript
// files, cached against the file's size and modification time.
package tokens

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/k7lim/claude-run/internal/core/models"
	"github.com/k7lim/claude-run/internal/core/vcache"
)

const maxLineSize = 10 * 1024 * 1024

// Locator resolves a session id to its transcript path.
type Locator interface {
	Lookup(sessionID string) (string, bool)
}

// Accountant serves SessionTokens per session. A cache hit requires the
// file's current size and mtime to both match the cached stamp; anything
// else recomputes by streaming the file line by line, so memory stays
// bounded for large transcripts.
type Accountant struct {
	locator Locator
	cache   *vcache.Stat[models.SessionTokens]
}

// New creates an accountant backed by the given path locator.
func New(locator Locator) *Accountant {
	return &Accountant{
		locator: locator,
		cache:   vcache.NewStat[models.SessionTokens](),
	}
}

// Get returns the token accounting for a session, or absent when the
// transcript cannot be located. Absence is not an error.
func (a *Accountant) Get(sessionID string) (models.SessionTokens, bool) {
	path, ok := a.locator.Lookup(sessionID)
	if !ok {
		return models.SessionTokens{}, false
	}

	info, err := os.Stat(path)
	if err != nil {
		return models.SessionTokens{}, false
	}
	stamp := vcache.Stamp{Size: info.Size(), MTime: info.ModTime()}

	if cached, ok := a.cache.Get(sessionID, stamp); ok {
		return cached, true
	}

	totals, ok := sum(path)
	if !ok {
		return models.SessionTokens{}, false
	}
	a.cache.Put(sessionID, stamp, totals)
	return totals, true
}

// Invalidate drops the cached accounting for a session; the watcher calls
// this when the transcript changes.
func (a *Accountant) Invalidate(sessionID string) {
	a.cache.Invalidate(sessionID)
}

// sum streams the transcript retaining only the most recent usage record
// and a running output sum. InputTokens reflects the last usage's input
// plus cache-creation and cache-read tokens: the context currently
// occupied, not a lifetime total.
func sum(path string) (models.SessionTokens, bool) {
	file, err := os.Open(path)
	if err != nil {
		return models.SessionTokens{}, false
	}
	defer func() { _ = file.Close() }()

	var last *models.TokenUsage
	outputTotal := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		var line struct {
			Message struct {
				Usage *models.TokenUsage `json:"usage"`
			} `json:"message"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Message.Usage == nil {
			continue
		}
		last = line.Message.Usage
		outputTotal += line.Message.Usage.OutputTokens
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("token scan aborted", "path", path, "err", err)
	}

	totals := models.SessionTokens{OutputTokens: outputTotal}
	if last != nil {
		totals.InputTokens = last.InputTokens + last.CacheCreationInputTokens + last.CacheReadInputTokens
	}
	return totals, true
}
