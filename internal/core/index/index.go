// Package index maintains the mapping from session id to transcript path.
package index

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Index maps session ids to absolute transcript paths. Entries live for the
// process lifetime; a lookup miss triggers one scan of every project
// directory. Concurrent scans are safe: last writer wins on duplicate ids,
// which is acceptable because the id-to-path mapping is stable.
type Index struct {
	projectsDir string

	mu    sync.RWMutex
	paths map[string]string
}

// New creates an index over the given projects directory.
func New(projectsDir string) *Index {
	return &Index{
		projectsDir: projectsDir,
		paths:       make(map[string]string),
	}
}

// Lookup returns the transcript path for a session id. On a miss it scans
// all project directories once and re-checks.
func (ix *Index) Lookup(sessionID string) (string, bool) {
	ix.mu.RLock()
	path, ok := ix.paths[sessionID]
	ix.mu.RUnlock()
	if ok {
		return path, true
	}

	ix.scan()

	ix.mu.RLock()
	path, ok = ix.paths[sessionID]
	ix.mu.RUnlock()
	return path, ok
}

// Seed registers a freshly observed file without a full re-scan. The
// watcher calls this when a new transcript appears.
func (ix *Index) Seed(sessionID, path string) {
	ix.mu.Lock()
	ix.paths[sessionID] = path
	ix.mu.Unlock()
}

// scan walks every project directory and indexes each *.jsonl file by its
// basename sans extension. A missing projects directory indexes nothing.
func (ix *Index) scan() {
	projects, err := os.ReadDir(ix.projectsDir)
	if err != nil {
		return
	}

	found := make(map[string]string)
	for _, project := range projects {
		if !project.IsDir() {
			continue
		}
		dir := filepath.Join(ix.projectsDir, project.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !strings.HasSuffix(name, ".jsonl") {
				continue
			}
			id := strings.TrimSuffix(name, ".jsonl")
			found[id] = filepath.Join(dir, name)
		}
	}

	ix.mu.Lock()
	for id, path := range found {
		ix.paths[id] = path
	}
	ix.mu.Unlock()
}
