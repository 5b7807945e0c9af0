package models

import (
	"errors"
	"path/filepath"
)

// HistoryEntry is one user-initiated turn from the append-only history log.
// Timestamps are epoch milliseconds. Project is the authoritative absolute
// path; SessionID is absent in older log formats.
type HistoryEntry struct {
	Display   string `json:"display"`
	Timestamp int64  `json:"timestamp"`
	Project   string `json:"project"`
	SessionID string `json:"sessionId,omitempty"`
}

// Session represents a Claude Code conversation session as surfaced by the
// listing. The id is derived from the JSONL filename and is the only stable
// identifier; everything else is metadata from the history log or the
// transcript itself.
type Session struct {
	ID             string `json:"id"`
	Display        string `json:"display"`
	Timestamp      int64  `json:"timestamp"`
	FirstTimestamp int64  `json:"firstTimestamp,omitempty"`
	Project        string `json:"project"`
	ProjectName    string `json:"projectName"`
	Archived       bool   `json:"archived"`
}

// Project is a distinct project path with its latest-known activity time.
type Project struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

// NewProject derives the display name from the last path segment.
func NewProject(path string, timestamp int64) Project {
	return Project{Path: path, Name: filepath.Base(path), Timestamp: timestamp}
}

// Validate checks if the session has required fields
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.Project == "" {
		return errors.New("project path is required")
	}
	return nil
}
