// Package conversation reads session transcript files: full reads,
// incremental offset-resumable reads for live tailing, and branch
// reconstruction over the parentUuid tree.
package conversation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/k7lim/claude-run/internal/core/models"
)

// Transcript lines can carry base64 images; 10MB covers the worst observed.
const maxLineSize = 10 * 1024 * 1024

// ReadAll parses every line of a transcript. User and assistant lines keep
// file order; summary lines are moved to the front, since a summary
// conceptually precedes the conversation it summarizes regardless of where
// the writer placed it. Malformed lines are skipped; a missing file yields
// an empty slice, never an error.
func ReadAll(path string) []models.ConversationMessage {
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("transcript unreadable", "path", path, "err", err)
		}
		return []models.ConversationMessage{}
	}
	defer func() { _ = file.Close() }()

	var summaries, messages []models.ConversationMessage
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var msg models.ConversationMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case models.MessageTypeSummary:
			summaries = append(summaries, msg)
		case models.MessageTypeUser, models.MessageTypeAssistant:
			messages = append(messages, msg)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("transcript read aborted", "path", path, "err", err)
	}

	result := make([]models.ConversationMessage, 0, len(summaries)+len(messages))
	result = append(result, summaries...)
	result = append(result, messages...)
	return result
}

// ReadFrom reads only the byte range [offset, size) of the transcript and
// returns the user/assistant messages found there plus the next offset to
// resume from. The offset advances only past lines that decode cleanly: the
// first undecodable line is taken as evidence that the external writer has
// not finished flushing it, and consumption stops there without discarding
// what was already parsed. If offset is at or beyond the current file size
// the result is empty and the offset comes back unchanged.
//
// Transcript lines are immutable once fully written, so re-reading the same
// byte range is idempotent.
func ReadFrom(path string, offset int64) ([]models.ConversationMessage, int64) {
	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("transcript unreadable", "path", path, "err", err)
		}
		return []models.ConversationMessage{}, offset
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return []models.ConversationMessage{}, offset
	}
	size := info.Size()
	if offset >= size {
		return []models.ConversationMessage{}, offset
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return []models.ConversationMessage{}, offset
	}

	// The size observed above caps the read so bytes appended mid-call are
	// left for the next resume.
	data, err := io.ReadAll(io.LimitReader(file, size-offset))
	if err != nil {
		slog.Warn("transcript tail read failed", "path", path, "err", err)
		return []models.ConversationMessage{}, offset
	}

	messages := make([]models.ConversationMessage, 0, 4)
	consumed := int64(0)
	rest := data
	for len(rest) > 0 {
		line := rest
		lineLen := len(rest)
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line = rest[:i]
			lineLen = i + 1
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			var msg models.ConversationMessage
			if err := json.Unmarshal(trimmed, &msg); err != nil {
				// Likely a partially flushed line; resume here next call.
				break
			}
			if msg.IsConversational() {
				messages = append(messages, msg)
			}
		}

		consumed += int64(lineLen)
		rest = rest[lineLen:]
	}

	return messages, offset + consumed
}

// FirstTimestamp reads only the first line of a transcript and returns its
// timestamp as epoch milliseconds. The first line is immutable once
// written, so callers may cache the result for the process lifetime.
func FirstTimestamp(path string) (int64, bool) {
	file, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	if !scanner.Scan() {
		return 0, false
	}

	var msg models.ConversationMessage
	if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
		return 0, false
	}
	t := msg.Time()
	if t.IsZero() {
		return 0, false
	}
	return t.UnixMilli(), true
}
