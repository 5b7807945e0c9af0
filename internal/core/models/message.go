package models

import (
	"encoding/json"
	"strings"
	"time"
)

// MessageType represents the type of JSONL entry
type MessageType string

const (
	MessageTypeSummary             MessageType = "summary"
	MessageTypeUser                MessageType = "user"
	MessageTypeAssistant           MessageType = "assistant"
	MessageTypeSystem              MessageType = "system"
	MessageTypeFileHistorySnapshot MessageType = "file-history-snapshot"
)

// ConversationMessage represents a single line of a session transcript file.
// Lines are append-only and never rewritten; the incremental reader relies
// on that.
type ConversationMessage struct {
	Type       MessageType     `json:"type"`
	UUID       string          `json:"uuid,omitempty"`
	ParentUUID string          `json:"parentUuid,omitempty"`
	SessionID  string          `json:"sessionId,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Summary    string          `json:"summary,omitempty"`
	LeafUUID   string          `json:"leafUuid,omitempty"`
	CWD        string          `json:"cwd,omitempty"`
	GitBranch  string          `json:"gitBranch,omitempty"`
	Message    *MessagePayload `json:"message,omitempty"`
}

// MessagePayload carries the role, content, and usage of a user or
// assistant entry.
type MessagePayload struct {
	Role    string         `json:"role,omitempty"`
	Model   string         `json:"model,omitempty"`
	Content MessageContent `json:"content,omitempty"`
	Usage   *TokenUsage    `json:"usage,omitempty"`
}

// MessageContent is either a plain string (older format) or an ordered
// list of content blocks (newer format with tool_use/tool_result).
type MessageContent struct {
	Text   string
	Blocks []ContentBlock
}

// UnmarshalJSON accepts both the string and the block-array encodings.
func (mc *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		mc.Text = s
		mc.Blocks = nil
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	mc.Text = ""
	mc.Blocks = blocks
	return nil
}

// MarshalJSON preserves the original shape: string content stays a string.
func (mc MessageContent) MarshalJSON() ([]byte, error) {
	if mc.Blocks == nil {
		return json.Marshal(mc.Text)
	}
	return json.Marshal(mc.Blocks)
}

// PlainText returns the concatenated text of the content: the string form
// as-is, or every text block joined by newlines.
func (mc MessageContent) PlainText() string {
	if mc.Blocks == nil {
		return mc.Text
	}
	var parts []string
	for _, block := range mc.Blocks {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ContentBlock represents a polymorphic node within message content:
// "text", "thinking", "tool_use", or "tool_result".
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// TokenUsage tracks API token usage as recorded on assistant messages
type TokenUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// SessionTokens aggregates usage across a transcript. InputTokens is the
// last recorded usage's input plus cache-creation and cache-read tokens
// (current context occupancy, not a cumulative sum); OutputTokens is the
// sum of every message's output tokens.
type SessionTokens struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Text returns the extractable text content of the message, or "" for
// types without one.
func (m *ConversationMessage) Text() string {
	if m.Message == nil {
		return ""
	}
	return m.Message.Content.PlainText()
}

// Time parses the entry timestamp, returning the zero time when absent or
// malformed.
func (m *ConversationMessage) Time() time.Time {
	if m.Timestamp == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, m.Timestamp)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

// IsConversational reports whether the entry is a user or assistant turn.
func (m *ConversationMessage) IsConversational() bool {
	return m.Type == MessageTypeUser || m.Type == MessageTypeAssistant
}
