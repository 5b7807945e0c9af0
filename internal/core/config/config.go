package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultResumePrompt is rendered with mustache when building a resume
// command for a session.
const DefaultResumePrompt = `Resuming session from {{last_updated}}. It has been inactive for {{time_since}}; you were working in {{project_path}}. Check git status and look around before changing anything.`

// Defaults mirrored into Config when no file overrides them.
const (
	DefaultPort        = 3456
	DefaultHistoryTTL  = 5 * time.Second
	DefaultDebounce    = 75 * time.Millisecond
	DefaultSearchLimit = 50
)

type Config struct {
	Port                 int
	ClaudeDir            string // empty means ~/.claude
	HistoryTTL           time.Duration
	Debounce             time.Duration
	SearchLimit          int
	ClaudeFlags          []string // extra flags for claude --resume
	ResumePromptTemplate string
	ExportTemplate       string // empty means the embedded default
	ArchivePath          string
}

type tomlConfig struct {
	Port         int      `toml:"port"`
	ClaudeDir    string   `toml:"claude_dir"`
	HistoryTTLMs int      `toml:"history_ttl_ms"`
	DebounceMs   int      `toml:"debounce_ms"`
	SearchLimit  int      `toml:"search_limit"`
	ClaudeFlags  []string `toml:"claude_flags"`
}

// Load reads config from ~/.config/claude-run/. Every failure falls back to
// defaults; a viewer should never refuse to start over a bad config file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 DefaultPort,
		HistoryTTL:           DefaultHistoryTTL,
		Debounce:             DefaultDebounce,
		SearchLimit:          DefaultSearchLimit,
		ResumePromptTemplate: DefaultResumePrompt,
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil // Use defaults
	}

	configDir := filepath.Join(home, ".config", "claude-run")
	cfg.ArchivePath = filepath.Join(configDir, "archived.json")

	tomlPath := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		var tc tomlConfig
		if _, err := toml.DecodeFile(tomlPath, &tc); err == nil {
			applyFile(cfg, tc)
		}
	}

	// Optional template overrides, one file each
	if data, err := os.ReadFile(filepath.Join(configDir, "resume_prompt.txt")); err == nil {
		cfg.ResumePromptTemplate = string(data)
	}
	if data, err := os.ReadFile(filepath.Join(configDir, "export_template.md")); err == nil {
		cfg.ExportTemplate = string(data)
	}

	return cfg, nil
}

func applyFile(cfg *Config, tc tomlConfig) {
	if tc.Port > 0 {
		cfg.Port = tc.Port
	}
	if tc.ClaudeDir != "" {
		cfg.ClaudeDir = tc.ClaudeDir
	}
	if tc.HistoryTTLMs > 0 {
		cfg.HistoryTTL = time.Duration(tc.HistoryTTLMs) * time.Millisecond
	}
	if tc.DebounceMs > 0 {
		cfg.Debounce = time.Duration(tc.DebounceMs) * time.Millisecond
	}
	if tc.SearchLimit > 0 {
		cfg.SearchLimit = tc.SearchLimit
	}
	cfg.ClaudeFlags = tc.ClaudeFlags
}
