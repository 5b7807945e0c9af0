// Package paths locates the Claude Code data directories and implements the
// encoding between project paths and on-disk directory names.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// Encode converts an absolute project path into the directory name Claude
// Code uses under ~/.claude/projects: every "/" and "." becomes "-".
//
// The encoding is lossy ("app.name" and "app/name" collide), so decoding
// alone can never be trusted to recover an exact path.
func Encode(path string) string {
	encoded := strings.ReplaceAll(path, "/", "-")
	return strings.ReplaceAll(encoded, ".", "-")
}

// DecodeNaive reverses Encode by treating every "-" as a path separator.
// It is a documented last resort: directory names that contained "." or "-"
// decode incorrectly. Callers should corroborate with the history log or a
// cwd field from inside the session file first.
func DecodeNaive(dirName string) string {
	decoded := strings.TrimPrefix(dirName, "-")
	return "/" + strings.ReplaceAll(decoded, "-", "/")
}

// ClaudeDir returns the Claude Code data directory, honoring an override
// (used by tests and the --claude-dir flag).
func ClaudeDir(override string) string {
	if override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return filepath.Join(home, ".claude")
}

// ProjectsDir returns the directory holding one subdirectory per project.
func ProjectsDir(claudeDir string) string {
	return filepath.Join(claudeDir, "projects")
}

// HistoryPath returns the append-only history log path.
func HistoryPath(claudeDir string) string {
	return filepath.Join(claudeDir, "history.jsonl")
}

// SessionPath builds the transcript path for a session within a project.
func SessionPath(claudeDir, project, sessionID string) string {
	return filepath.Join(ProjectsDir(claudeDir), Encode(project), sessionID+".jsonl")
}

// SessionIDFromPath extracts the session id from a transcript filename.
func SessionIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, ".jsonl")
}
