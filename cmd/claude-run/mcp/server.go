// Package mcp exposes the session facade to Claude Code over the Model
// Context Protocol on stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/k7lim/claude-run/internal/core/config"
	"github.com/k7lim/claude-run/internal/core/sessions"
)

// SearchSessionsArgs defines arguments for the search_sessions tool
type SearchSessionsArgs struct {
	Query   string `json:"query"`
	Limit   int    `json:"limit,omitempty"`
	Project string `json:"project,omitempty"`
}

// GetSessionDetailArgs defines arguments for the get_session_detail tool
type GetSessionDetailArgs struct {
	SessionID   string `json:"session_id"`
	SearchQuery string `json:"search_query,omitempty"`
}

// ListRecentSessionsArgs defines arguments for the list_recent_sessions tool
type ListRecentSessionsArgs struct {
	Limit   int    `json:"limit,omitempty"`
	Project string `json:"project,omitempty"`
}

// SessionMatch is a search hit with its snippets.
type SessionMatch struct {
	SessionID string   `json:"session_id"`
	Display   string   `json:"display"`
	Project   string   `json:"project"`
	UpdatedAt string   `json:"updated_at"`
	Snippets  []string `json:"snippets"`
}

// SessionDetail is a session with its first, last, and optionally matching
// messages; never the full transcript.
type SessionDetail struct {
	SessionID        string          `json:"session_id"`
	Display          string          `json:"display"`
	Project          string          `json:"project"`
	UpdatedAt        string          `json:"updated_at"`
	MessageCount     int             `json:"message_count"`
	FirstMessage     *MessageDetail  `json:"first_message,omitempty"`
	LastMessage      *MessageDetail  `json:"last_message,omitempty"`
	MatchingMessages []MessageDetail `json:"matching_messages,omitempty"`
}

// MessageDetail is one transcript turn in tool output.
type MessageDetail struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Sequence  int    `json:"sequence"`
}

// SessionSummary is one row of the recent-sessions list.
type SessionSummary struct {
	SessionID string `json:"session_id"`
	Display   string `json:"display"`
	Project   string `json:"project"`
	UpdatedAt string `json:"updated_at"`
}

// StartServer runs the MCP stdio server until the client disconnects.
func StartServer(cfg *config.Config) error {
	manager := sessions.NewManager(cfg)

	s := server.NewMCPServer(
		"claude-run",
		"1.0.0",
	)

	searchTool := mcp.NewTool("search_sessions",
		mcp.WithDescription("Search Claude Code session transcripts for a query string. Supports project: / after: / before: filter tokens inside the query."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term to match against message content")),
		mcp.WithNumber("limit",
			mcp.Description("Max number of sessions to return (default: 10)")),
		mcp.WithString("project",
			mcp.Description("Filter by project path")),
	)
	s.AddTool(searchTool, makeSearchSessionsHandler(manager))

	detailTool := mcp.NewTool("get_session_detail",
		mcp.WithDescription("Retrieve session info with first message, last message, and optionally matching messages for a specific Claude Code session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id to retrieve")),
		mcp.WithString("search_query",
			mcp.Description("Optional search term to find matching messages in the session")),
	)
	s.AddTool(detailTool, makeGetSessionDetailHandler(manager))

	listTool := mcp.NewTool("list_recent_sessions",
		mcp.WithDescription("Get recent Claude Code sessions, optionally filtered by project"),
		mcp.WithNumber("limit",
			mcp.Description("Max sessions to return (default: 20)")),
		mcp.WithString("project",
			mcp.Description("Filter by project path")),
	)
	s.AddTool(listTool, makeListRecentSessionsHandler(manager))

	return server.ServeStdio(s)
}

func makeSearchSessionsHandler(manager *sessions.Manager) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args SearchSessionsArgs
		argsBytes, _ := json.Marshal(request.Params.Arguments)
		if err := json.Unmarshal(argsBytes, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		limit := args.Limit
		if limit == 0 {
			limit = 10
		}
		query := args.Query
		if args.Project != "" {
			query = "project:" + args.Project + " " + query
		}

		var results []SessionMatch
		for _, r := range manager.Search(query, limit) {
			results = append(results, SessionMatch{
				SessionID: r.Session.ID,
				Display:   r.Session.Display,
				Project:   r.Session.Project,
				UpdatedAt: formatMillis(r.Session.Timestamp),
				Snippets:  r.Snippets,
			})
		}

		resultJSON, err := json.Marshal(map[string]any{"sessions": results})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func makeGetSessionDetailHandler(manager *sessions.Manager) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetSessionDetailArgs
		argsBytes, _ := json.Marshal(request.Params.Arguments)
		if err := json.Unmarshal(argsBytes, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		msgs, ok := manager.Conversation(args.SessionID)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("session not found: %s", args.SessionID)), nil
		}

		detail := SessionDetail{SessionID: args.SessionID}
		for _, s := range manager.ListSessions(true) {
			if s.ID == args.SessionID {
				detail.Display = s.Display
				detail.Project = s.Project
				detail.UpdatedAt = formatMillis(s.Timestamp)
				break
			}
		}

		var turns []MessageDetail
		for i, msg := range msgs {
			if !msg.IsConversational() {
				continue
			}
			turns = append(turns, MessageDetail{
				Type:      string(msg.Type),
				Content:   msg.Text(),
				Timestamp: msg.Timestamp,
				Sequence:  i,
			})
		}
		detail.MessageCount = len(turns)
		if len(turns) > 0 {
			detail.FirstMessage = &turns[0]
			detail.LastMessage = &turns[len(turns)-1]
		}

		if args.SearchQuery != "" {
			needle := strings.ToLower(args.SearchQuery)
			for _, turn := range turns {
				if strings.Contains(strings.ToLower(turn.Content), needle) {
					detail.MatchingMessages = append(detail.MatchingMessages, turn)
					if len(detail.MatchingMessages) >= 5 {
						break
					}
				}
			}
		}

		resultJSON, err := json.Marshal(detail)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func makeListRecentSessionsHandler(manager *sessions.Manager) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListRecentSessionsArgs
		argsBytes, _ := json.Marshal(request.Params.Arguments)
		if err := json.Unmarshal(argsBytes, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		limit := args.Limit
		if limit == 0 {
			limit = 20
		}

		var list []SessionSummary
		for _, s := range manager.ListSessions(false) {
			if args.Project != "" && !strings.Contains(s.Project, args.Project) {
				continue
			}
			list = append(list, SessionSummary{
				SessionID: s.ID,
				Display:   s.Display,
				Project:   s.Project,
				UpdatedAt: formatMillis(s.Timestamp),
			})
			if len(list) >= limit {
				break
			}
		}

		resultJSON, err := json.Marshal(map[string]any{"sessions": list})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}
