package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// ArchiveStore persists the set of archived session ids as a JSON array in a
// sidecar file. Transcript files are never touched. Writes rewrite the whole
// file and are serialized; concurrent archive calls are last-writer-wins.
type ArchiveStore struct {
	path string
	mu   sync.Mutex
}

// NewArchiveStore creates a store backed by the given sidecar path.
func NewArchiveStore(path string) *ArchiveStore {
	return &ArchiveStore{path: path}
}

// IDs returns the archived session ids as a set. A missing sidecar means
// nothing is archived.
func (s *ArchiveStore) IDs() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Contains reports whether the session id is archived.
func (s *ArchiveStore) Contains(id string) bool {
	return s.IDs()[id]
}

// Archive marks a session id as archived. Archiving an already-archived id
// is a no-op.
func (s *ArchiveStore) Archive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.readLocked()
	if ids[id] {
		return nil
	}
	ids[id] = true
	return s.writeLocked(ids)
}

// Unarchive removes a session id from the archived set. Unarchiving an id
// that is not archived is a no-op.
func (s *ArchiveStore) Unarchive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.readLocked()
	if !ids[id] {
		return nil
	}
	delete(ids, id)
	return s.writeLocked(ids)
}

func (s *ArchiveStore) readLocked() map[string]bool {
	ids := make(map[string]bool)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to read archive sidecar", "path", s.path, "err", err)
		}
		return ids
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		slog.Warn("archive sidecar is not a JSON array, ignoring", "path", s.path, "err", err)
		return ids
	}
	for _, id := range list {
		ids[id] = true
	}
	return ids
}

func (s *ArchiveStore) writeLocked(ids map[string]bool) error {
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode archive list: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write archive sidecar: %w", err)
	}
	return nil
}
