package models

import (
	"encoding/json"
	"testing"
)

func TestMessageContent_StringForm(t *testing.T) {
	var mc MessageContent
	if err := json.Unmarshal([]byte(`"just text"`), &mc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if mc.PlainText() != "just text" {
		t.Errorf("PlainText() = %q", mc.PlainText())
	}
}

func TestMessageContent_BlockForm(t *testing.T) {
	raw := `[
		{"type":"thinking","thinking":"hm"},
		{"type":"text","text":"part one"},
		{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"ls"}},
		{"type":"tool_result","tool_use_id":"t1","is_error":true},
		{"type":"text","text":"part two"}
	]`
	var mc MessageContent
	if err := json.Unmarshal([]byte(raw), &mc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	// Only text blocks contribute to the plain text.
	if got := mc.PlainText(); got != "part one\npart two" {
		t.Errorf("PlainText() = %q", got)
	}
	if len(mc.Blocks) != 5 {
		t.Fatalf("Blocks = %d, want 5", len(mc.Blocks))
	}
	if !mc.Blocks[3].IsError || mc.Blocks[3].ToolUseID != "t1" {
		t.Errorf("tool_result block = %+v", mc.Blocks[3])
	}
}

func TestConversationMessage_Time(t *testing.T) {
	m := ConversationMessage{Timestamp: "2024-11-01T10:00:00Z"}
	if m.Time().IsZero() {
		t.Error("Time() zero for valid RFC3339 timestamp")
	}
	for _, bad := range []string{"", "not a time"} {
		if got := (&ConversationMessage{Timestamp: bad}).Time(); !got.IsZero() {
			t.Errorf("Time(%q) = %v, want zero", bad, got)
		}
	}
}
