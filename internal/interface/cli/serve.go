package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/k7lim/claude-run/internal/core/paths"
	"github.com/k7lim/claude-run/internal/core/sessions"
	"github.com/k7lim/claude-run/internal/core/watch"
	"github.com/k7lim/claude-run/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web viewer",
	Long: `Start the local web server over your Claude Code logs.

The server watches the log files and pushes live updates to connected
browsers over SSE. It binds to localhost only.

Examples:
  claude-run serve
  claude-run serve --port 8080
  claude-run serve --claude-dir /tmp/claude-test`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager := sessions.NewManager(cfg)
	hub := server.NewHub()
	srv := server.New(cfg, manager, hub)

	claudeDir := paths.ClaudeDir(cfg.ClaudeDir)
	watcher, err := watch.New(paths.HistoryPath(claudeDir), paths.ProjectsDir(claudeDir), cfg.Debounce)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Stop()

	go func() {
		for ev := range watcher.Events() {
			switch ev.Kind {
			case watch.KindHistory:
				manager.InvalidateHistory()
				hub.Publish(server.ChangeEvent{Type: "history"})
			case watch.KindSession:
				manager.NoteSessionChange(ev.SessionID, ev.Path)
				hub.Publish(server.ChangeEvent{Type: "session", SessionID: ev.SessionID})
				hub.Publish(server.ChangeEvent{Type: "project", Project: ev.ProjectDir})
			}
		}
	}()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler: srv.Echo(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving", "addr", httpServer.Addr)
		fmt.Printf("claude-run listening on http://%s\n", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
