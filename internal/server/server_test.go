package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k7lim/claude-run/internal/core/config"
	"github.com/k7lim/claude-run/internal/core/models"
	"github.com/k7lim/claude-run/internal/core/paths"
	"github.com/k7lim/claude-run/internal/core/sessions"
)

type env struct {
	t         *testing.T
	claudeDir string
	router    *echo.Echo
	hub       *Hub
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	claudeDir := filepath.Join(dir, ".claude")
	require.NoError(t, os.MkdirAll(paths.ProjectsDir(claudeDir), 0o755))

	cfg := &config.Config{
		ClaudeDir:            claudeDir,
		HistoryTTL:           time.Millisecond, // served fresh per request in tests
		SearchLimit:          config.DefaultSearchLimit,
		ResumePromptTemplate: config.DefaultResumePrompt,
		ArchivePath:          filepath.Join(dir, "archived.json"),
	}
	manager := sessions.NewManager(cfg)
	hub := NewHub()
	srv := New(cfg, manager, hub)
	return &env{t: t, claudeDir: claudeDir, router: srv.Echo(), hub: hub}
}

func (e *env) seedSession(project, id string, lines ...string) {
	e.t.Helper()
	path := paths.SessionPath(e.claudeDir, project, id)
	require.NoError(e.t, os.MkdirAll(filepath.Dir(path), 0o755))

	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o644))

	entry := fmt.Sprintf(`{"display":"turn in %s","timestamp":%d,"project":%q,"sessionId":%q}`,
		id, time.Now().UnixMilli(), project, id)
	histPath := paths.HistoryPath(e.claudeDir)
	f, err := os.OpenFile(histPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(e.t, err)
	defer f.Close()
	_, err = f.WriteString(entry + "\n")
	require.NoError(e.t, err)

	// outlive the 1ms history TTL so the next request re-reads
	time.Sleep(5 * time.Millisecond)
}

func userLine(text, ts string) string {
	return fmt.Sprintf(`{"type":"user","uuid":"u-%s","timestamp":%q,"message":{"role":"user","content":%q}}`, ts, ts, text)
}

func (e *env) do(method, target string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestListSessionsEndpoint(t *testing.T) {
	e := newEnv(t)
	e.seedSession("/home/user/app", "sess-a", userLine("hello", "2024-11-01T10:00:00Z"))

	rec := e.do(http.MethodGet, "/api/sessions")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "sess-a", got[0].ID)
	assert.Equal(t, "app", got[0].ProjectName)
}

func TestConversationEndpoint(t *testing.T) {
	e := newEnv(t)
	e.seedSession("/home/user/app", "sess-a",
		userLine("first", "2024-11-01T10:00:00Z"),
		userLine("second", "2024-11-01T10:01:00Z"))

	rec := e.do(http.MethodGet, "/api/sessions/sess-a")
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []models.ConversationMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text())
}

func TestConversationEndpoint_NotFound(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/api/sessions/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationEndpoint_IncrementalOffset(t *testing.T) {
	e := newEnv(t)
	e.seedSession("/home/user/app", "sess-a", userLine("first", "2024-11-01T10:00:00Z"))

	rec := e.do(http.MethodGet, "/api/sessions/sess-a?offset=0")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages   []models.ConversationMessage `json:"messages"`
		NextOffset int64                        `json:"nextOffset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	require.Greater(t, resp.NextOffset, int64(0))

	// nothing new yet
	rec = e.do(http.MethodGet, fmt.Sprintf("/api/sessions/sess-a?offset=%d", resp.NextOffset))
	require.Equal(t, http.StatusOK, rec.Code)
	var again struct {
		Messages   []models.ConversationMessage `json:"messages"`
		NextOffset int64                        `json:"nextOffset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Empty(t, again.Messages)
	assert.Equal(t, resp.NextOffset, again.NextOffset)
}

func TestConversationEndpoint_BadOffset(t *testing.T) {
	e := newEnv(t)
	e.seedSession("/home/user/app", "sess-a", userLine("x", "2024-11-01T10:00:00Z"))

	for _, target := range []string{
		"/api/sessions/sess-a?offset=-1",
		"/api/sessions/sess-a?offset=abc",
	} {
		rec := e.do(http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestTokensEndpoint(t *testing.T) {
	e := newEnv(t)
	line := `{"type":"assistant","uuid":"a1","timestamp":"2024-11-01T10:00:00Z","message":{"role":"assistant","content":"ok","usage":{"input_tokens":100,"output_tokens":25,"cache_creation_input_tokens":10,"cache_read_input_tokens":5}}}`
	e.seedSession("/home/user/app", "sess-a", line)

	rec := e.do(http.MethodGet, "/api/sessions/sess-a/tokens")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.SessionTokens
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 115, got.InputTokens)
	assert.Equal(t, 25, got.OutputTokens)
}

func TestArchiveEndpoints(t *testing.T) {
	e := newEnv(t)
	e.seedSession("/home/user/app", "sess-a", userLine("x", "2024-11-01T10:00:00Z"))

	rec := e.do(http.MethodPost, "/api/sessions/sess-a/archive")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(http.MethodGet, "/api/sessions")
	var visible []models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &visible))
	assert.Empty(t, visible)

	rec = e.do(http.MethodGet, "/api/sessions?archived=1")
	var all []models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 1)
	assert.True(t, all[0].Archived)

	rec = e.do(http.MethodDelete, "/api/sessions/sess-a/archive")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(http.MethodGet, "/api/sessions")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &visible))
	assert.Len(t, visible, 1)
}

func TestSearchEndpoint(t *testing.T) {
	e := newEnv(t)
	e.seedSession("/home/user/app", "sess-a", userLine("the quick brown fox", "2024-11-01T10:00:00Z"))

	rec := e.do(http.MethodGet, "/api/search?q=quick+brown")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []sessions.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "sess-a", results[0].Session.ID)
	require.NotEmpty(t, results[0].Snippets)
	assert.Contains(t, results[0].Snippets[0], "quick brown")

	// short queries return an empty array, not null
	rec = e.do(http.MethodGet, "/api/search?q=q")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestExportEndpoint(t *testing.T) {
	e := newEnv(t)
	e.seedSession("/home/user/app", "sess-a", userLine("export me", "2024-11-01T10:00:00Z"))

	rec := e.do(http.MethodGet, "/api/sessions/sess-a/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "export me")
	assert.Contains(t, rec.Body.String(), "sess-a")
}

func TestResumeEndpoint(t *testing.T) {
	e := newEnv(t)
	e.seedSession("/home/user/app", "sess-a", userLine("x", "2024-11-01T10:00:00Z"))

	rec := e.do(http.MethodGet, "/api/sessions/sess-a/resume")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["command"], "--resume sess-a")

	rec = e.do(http.MethodGet, "/api/sessions/nope/resume")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndexPage(t *testing.T) {
	e := newEnv(t)
	e.seedSession("/home/user/app", "sess-a", userLine("x", "2024-11-01T10:00:00Z"))

	rec := e.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "claude-run")
}

func TestConversationEndpoint_BranchView(t *testing.T) {
	e := newEnv(t)
	root := `{"type":"user","uuid":"u1","timestamp":"2024-11-01T10:00:00Z","message":{"role":"user","content":"root"}}`
	first := `{"type":"assistant","uuid":"a1","parentUuid":"u1","timestamp":"2024-11-01T10:00:10Z","message":{"role":"assistant","content":"first answer"}}`
	second := `{"type":"assistant","uuid":"a2","parentUuid":"u1","timestamp":"2024-11-01T10:00:20Z","message":{"role":"assistant","content":"second answer"}}`
	e.seedSession("/home/user/app", "sess-a", root, first, second)

	// default branch follows the last-listed child
	rec := e.do(http.MethodGet, "/api/sessions/sess-a?view=branch")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []models.ConversationMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "second answer", msgs[1].Text())

	// a recorded choice redirects the branch
	rec = e.do(http.MethodGet, "/api/sessions/sess-a?view=branch&choice=u1:a1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "first answer", msgs[1].Text())
}

func TestEventsEndpoint_StreamsPublishedEvents(t *testing.T) {
	e := newEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		e.router.ServeHTTP(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return e.hub.SubscriberCount() == 1 },
		time.Second, 5*time.Millisecond)
	e.hub.Publish(ChangeEvent{Type: "session", SessionID: "sess-a"})

	// give the handler a moment to flush, then disconnect
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, body, `"type":"connected"`)
	assert.Contains(t, body, `"sessionId":"sess-a"`)
}

func TestHubPublishSubscribe(t *testing.T) {
	hub := NewHub()
	id, ch := hub.Subscribe()
	require.Equal(t, 1, hub.SubscriberCount())

	hub.Publish(ChangeEvent{Type: "session", SessionID: "sess-a"})
	select {
	case ev := <-ch:
		assert.Equal(t, "sess-a", ev.SessionID)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	hub.Unsubscribe(id)
	assert.Equal(t, 0, hub.SubscriberCount())
	_, open := <-ch
	assert.False(t, open)
}

func TestHubDoesNotBlockOnSlowSubscriber(t *testing.T) {
	hub := NewHub()
	id, _ := hub.Subscribe()
	defer hub.Unsubscribe(id)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(ChangeEvent{Type: "history"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on an undrained subscriber")
	}
}
