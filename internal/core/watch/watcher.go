// Package watch observes the history log and the projects tree, collapsing
// bursts of filesystem events into debounced change notifications.
package watch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/k7lim/claude-run/internal/core/paths"
)

// Kind classifies a change notification.
type Kind int

const (
	// KindHistory means the history log changed.
	KindHistory Kind = iota
	// KindSession means a transcript file changed.
	KindSession
)

// Event is one debounced change notification. SessionID and ProjectDir are
// set only for KindSession.
type Event struct {
	Kind       Kind
	SessionID  string
	ProjectDir string
	Path       string
}

// Watcher debounces raw fsnotify events per distinct path. Session files
// live exactly two levels below the projects root (project directory, then
// file), so only the projects root and its immediate subdirectories are
// watched.
type Watcher struct {
	fs          *fsnotify.Watcher
	historyPath string
	projectsDir string
	debounce    time.Duration
	events      chan Event

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool

	wg sync.WaitGroup
}

// New creates a watcher over the given history file and projects root.
func New(historyPath, projectsDir string, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		fs:          fs,
		historyPath: historyPath,
		projectsDir: projectsDir,
		debounce:    debounce,
		events:      make(chan Event, 64),
		timers:      make(map[string]*time.Timer),
	}, nil
}

// Events returns the debounced notification channel. It is closed after
// Stop returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start adds the watches and begins processing events. The history file's
// parent directory is watched rather than the file itself so the watch
// survives atomic rewrites.
func (w *Watcher) Start() error {
	if err := w.fs.Add(filepath.Dir(w.historyPath)); err != nil {
		return fmt.Errorf("failed to watch history dir: %w", err)
	}

	// The projects tree may not exist yet (no sessions recorded); watch
	// whatever is there and pick up new directories from Create events.
	if err := w.fs.Add(w.projectsDir); err == nil {
		if entries, err := os.ReadDir(w.projectsDir); err == nil {
			for _, entry := range entries {
				if !entry.IsDir() {
					continue
				}
				dir := filepath.Join(w.projectsDir, entry.Name())
				if err := w.fs.Add(dir); err != nil {
					slog.Warn("failed to watch project dir", "dir", dir, "err", err)
				}
			}
		}
	}

	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop cancels all pending debounce timers and releases the underlying
// watch handles. No event is delivered after Stop returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	_ = w.fs.Close()
	w.wg.Wait()
	close(w.events)
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", "err", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	// A new project directory appears when a first session starts there.
	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == w.projectsDir {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fs.Add(event.Name); err != nil {
				slog.Warn("failed to watch new project dir", "dir", event.Name, "err", err)
			}
			return
		}
	}

	if event.Name != w.historyPath && !w.isTranscript(event.Name) {
		return
	}
	w.schedule(event.Name)
}

func (w *Watcher) isTranscript(path string) bool {
	if !strings.HasSuffix(path, ".jsonl") {
		return false
	}
	rel, err := filepath.Rel(w.projectsDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	// project directory, then file: exactly one separator
	return strings.Count(rel, string(filepath.Separator)) == 1
}

// schedule arms (or re-arms) the debounce timer for a path, so a burst of
// writes to the same file collapses into one notification.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.fire(path)
	})
}

// fire delivers the settled notification. The send happens under the same
// mutex that Stop takes before closing the channel, which is what
// guarantees no event fires after Stop returns; delivery is non-blocking
// and drops on a full buffer since the next change will re-notify anyway.
func (w *Watcher) fire(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	delete(w.timers, path)

	ev := Event{Path: path}
	if path == w.historyPath {
		ev.Kind = KindHistory
	} else {
		ev.Kind = KindSession
		ev.SessionID = paths.SessionIDFromPath(path)
		ev.ProjectDir = filepath.Base(filepath.Dir(path))
	}

	select {
	case w.events <- ev:
	default:
		slog.Debug("dropping change event, buffer full", "path", path)
	}
}
