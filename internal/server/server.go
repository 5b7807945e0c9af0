// Package server exposes the REST+SSE surface over the session facade.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/k7lim/claude-run/internal/core/config"
	"github.com/k7lim/claude-run/internal/core/export"
	"github.com/k7lim/claude-run/internal/core/models"
	"github.com/k7lim/claude-run/internal/core/sessions"
)

// Server holds the handlers for the local viewer API.
type Server struct {
	cfg     *config.Config
	manager *sessions.Manager
	hub     *Hub
}

// New creates the server around an already-wired facade.
func New(cfg *config.Config, manager *sessions.Manager, hub *Hub) *Server {
	return &Server{cfg: cfg, manager: manager, hub: hub}
}

// Echo builds the router with every route registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	s.registerRoutes(e)
	return e
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/", s.indexPage)

	g := e.Group("/api")
	g.GET("/sessions", s.listSessions)
	g.GET("/projects", s.listProjects)
	g.GET("/sessions/:id", s.getConversation)
	g.GET("/sessions/:id/tokens", s.getTokens)
	g.GET("/sessions/:id/export", s.exportSession)
	g.GET("/sessions/:id/resume", s.resumeSession)
	g.POST("/sessions/:id/archive", s.archiveSession)
	g.DELETE("/sessions/:id/archive", s.unarchiveSession)
	g.GET("/search", s.search)
	g.GET("/events", s.events)
}

func (s *Server) listSessions(c *echo.Context) error {
	includeArchived := c.Request().URL.Query().Get("archived") == "1"
	return c.JSON(http.StatusOK, s.manager.ListSessions(includeArchived))
}

func (s *Server) listProjects(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.ListProjects())
}

// conversationResponse is the incremental-read shape: nextOffset feeds the
// client's next poll after an SSE change notification.
type conversationResponse struct {
	Messages   []models.ConversationMessage `json:"messages"`
	NextOffset int64                        `json:"nextOffset"`
}

func (s *Server) getConversation(c *echo.Context) error {
	id := c.Param("id")
	query := c.Request().URL.Query()

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || offset < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
		msgs, next, ok := s.manager.ConversationFrom(id, offset)
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		if msgs == nil {
			msgs = []models.ConversationMessage{}
		}
		return c.JSON(http.StatusOK, conversationResponse{Messages: msgs, NextOffset: next})
	}

	if query.Get("view") == "branch" {
		msgs, ok := s.manager.BranchView(id, parseChoices(query["choice"]))
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return c.JSON(http.StatusOK, msgs)
	}

	msgs, ok := s.manager.Conversation(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, msgs)
}

// parseChoices decodes repeated choice=parentUuid:childUuid params into the
// fork-selection map.
func parseChoices(raw []string) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	choices := make(map[string]string, len(raw))
	for _, pair := range raw {
		parent, child, ok := strings.Cut(pair, ":")
		if ok && parent != "" && child != "" {
			choices[parent] = child
		}
	}
	return choices
}

func (s *Server) getTokens(c *echo.Context) error {
	tokens, ok := s.manager.Tokens(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, tokens)
}

func (s *Server) exportSession(c *echo.Context) error {
	id := c.Param("id")
	msgs, ok := s.manager.Conversation(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	session := s.sessionByID(id)
	md, err := export.Markdown(s.cfg.ExportTemplate, session, msgs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	rw := c.Response()
	rw.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	rw.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".md"))
	rw.WriteHeader(http.StatusOK)
	_, err = rw.Write([]byte(md))
	return err
}

// sessionByID finds listing metadata for an id, falling back to a bare
// session when the history log has no entry for it.
func (s *Server) sessionByID(id string) models.Session {
	for _, session := range s.manager.ListSessions(true) {
		if session.ID == id {
			return session
		}
	}
	return models.Session{ID: id}
}

func (s *Server) resumeSession(c *echo.Context) error {
	fork := c.Request().URL.Query().Get("fork") == "1"
	cmd, err := s.manager.ResumeCommand(c.Param("id"), fork)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"command": cmd})
}

func (s *Server) archiveSession(c *echo.Context) error {
	if err := s.manager.Archive(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) unarchiveSession(c *echo.Context) error {
	if err := s.manager.Unarchive(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) search(c *echo.Context) error {
	query := c.Request().URL.Query()
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	results := s.manager.Search(query.Get("q"), limit)
	if results == nil {
		results = []sessions.SearchResult{}
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) events(c *echo.Context) error {
	rw := c.Response()
	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.Header().Set("X-Accel-Buffering", "no")
	rw.WriteHeader(http.StatusOK)

	id, ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	emit := func(ev ChangeEvent) {
		data, _ := json.Marshal(ev)
		fmt.Fprintf(rw, "data: %s\n\n", data)
		if f, ok := rw.(http.Flusher); ok {
			f.Flush()
		}
	}
	// an initial event so clients know the stream is live
	emit(ChangeEvent{Type: "connected"})

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			emit(ev)
		}
	}
}
