package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) (*Watcher, string, string) {
	t.Helper()
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.jsonl")
	projectsDir := filepath.Join(dir, "projects")
	if err := os.MkdirAll(projectsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(historyPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(historyPath, projectsDir, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return w, historyPath, projectsDir
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestWatcher_HistoryChange(t *testing.T) {
	w, historyPath, _ := newTestWatcher(t)
	defer w.Stop()

	if err := os.WriteFile(historyPath, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, w)
	if ev.Kind != KindHistory {
		t.Errorf("Kind = %v, want KindHistory", ev.Kind)
	}
	if ev.Path != historyPath {
		t.Errorf("Path = %q, want %q", ev.Path, historyPath)
	}
}

func TestWatcher_SessionChange(t *testing.T) {
	w, _, projectsDir := newTestWatcher(t)
	defer w.Stop()

	projectDir := filepath.Join(projectsDir, "-home-user-app")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher time to register the new project directory.
	time.Sleep(100 * time.Millisecond)

	transcript := filepath.Join(projectDir, "sess-123.jsonl")
	if err := os.WriteFile(transcript, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, w)
	if ev.Kind != KindSession {
		t.Fatalf("Kind = %v, want KindSession", ev.Kind)
	}
	if ev.SessionID != "sess-123" {
		t.Errorf("SessionID = %q, want %q", ev.SessionID, "sess-123")
	}
	if ev.ProjectDir != "-home-user-app" {
		t.Errorf("ProjectDir = %q, want %q", ev.ProjectDir, "-home-user-app")
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	w, historyPath, _ := newTestWatcher(t)
	defer w.Stop()

	f, err := os.OpenFile(historyPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if _, err := f.WriteString("{}\n"); err != nil {
			t.Fatal(err)
		}
		if err := f.Sync(); err != nil {
			t.Fatal(err)
		}
	}
	f.Close()

	waitEvent(t, w)

	// The burst settled into one notification; nothing else should follow.
	select {
	case ev := <-w.Events():
		t.Errorf("unexpected second event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_IgnoresNonTranscripts(t *testing.T) {
	w, historyPath, projectsDir := newTestWatcher(t)
	defer w.Stop()

	projectDir := filepath.Join(projectsDir, "-home-user-app")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(projectDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A real change afterwards proves the .txt write was dropped rather
	// than still pending.
	if err := os.WriteFile(historyPath, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, w)
	if ev.Kind != KindHistory {
		t.Errorf("Kind = %v, want KindHistory (txt file should be ignored)", ev.Kind)
	}
}

func TestWatcher_StopDeliversNothingAfterReturn(t *testing.T) {
	w, historyPath, _ := newTestWatcher(t)

	if err := os.WriteFile(historyPath, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.Stop()

	// The channel is closed after Stop; drain whatever was delivered
	// before the stop and confirm it terminates.
	for range w.Events() {
	}
}
