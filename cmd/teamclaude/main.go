// Teamclaude sprint observer: watches the host runtime's team files,
// maintains the sprint state machine, and serves the dashboard API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albertnahas/teamclaude/pkg/api"
	"github.com/albertnahas/teamclaude/pkg/config"
	"github.com/albertnahas/teamclaude/pkg/events"
	"github.com/albertnahas/teamclaude/pkg/learning"
	"github.com/albertnahas/teamclaude/pkg/memory"
	"github.com/albertnahas/teamclaude/pkg/models"
	"github.com/albertnahas/teamclaude/pkg/paths"
	"github.com/albertnahas/teamclaude/pkg/persist"
	"github.com/albertnahas/teamclaude/pkg/plugin"
	"github.com/albertnahas/teamclaude/pkg/replay"
	"github.com/albertnahas/teamclaude/pkg/runner"
	"github.com/albertnahas/teamclaude/pkg/sprint"
	"github.com/albertnahas/teamclaude/pkg/state"
	"github.com/albertnahas/teamclaude/pkg/verify"
	"github.com/albertnahas/teamclaude/pkg/version"
	"github.com/albertnahas/teamclaude/pkg/watcher"
	"github.com/albertnahas/teamclaude/pkg/webhook"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	// Parse command-line flags
	projectRoot := flag.String("project",
		getEnv("TEAMCLAUDE_PROJECT", "."),
		"Project root directory (holds .sprint.yml and .teamclaude/)")
	watchRoot := flag.String("watch-root", "",
		"Override for the host runtime data directory")
	port := flag.Int("port", 0,
		"Listener port (overrides server.port from .sprint.yml)")
	flag.Parse()

	// Load .env from the project root before reading LOG_LEVEL
	envPath := filepath.Join(*projectRoot, ".env")
	envLoaded := godotenv.Load(envPath) == nil

	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if envLoaded {
		slog.Info("Loaded environment", "path", envPath)
	}
	slog.Info("Starting teamclaude",
		"version", version.Full(),
		"project", *projectRoot)

	// 1. Load configuration
	cfg, err := config.Load(*projectRoot)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *watchRoot != "" {
		cfg.Watch.Root = *watchRoot
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// 2. Open the project data root
	project := paths.NewProject(*projectRoot)
	if err := persist.EnsureProjectRoot(project); err != nil {
		slog.Error("Failed to open project data directory", "error", err)
		os.Exit(1)
	}

	// 3. Core state, broadcast bus, and stores
	store := state.NewStore()
	broadcaster := events.NewBroadcaster(0)
	persister := persist.NewPersister(project, store.Snapshot)
	memories := memory.NewStore(project.MemoriesFile())
	learnings := learning.NewStore(project.LearningsFile())

	// 4. Sprint coordinator
	coordinator := sprint.New(sprint.Deps{
		Store:     store,
		Bus:       broadcaster,
		Project:   project,
		Config:    cfg,
		Persister: persister,
		Verifier:  verify.NewRunner(cfg.Verification.Commands, *projectRoot),
		Notifier:  webhook.NewNotifier(cfg.Notifications, broadcaster.Broadcast),
		Plugins:   plugin.NewRunner(cfg.Plugins, *projectRoot),
		Memories:  memories,
		Learnings: learnings,
	})

	// 5. Host runtime launcher; seed the runtime-only state fields
	run := runner.New(cfg.Launch, *projectRoot, broadcaster)
	absRoot, err := filepath.Abs(*projectRoot)
	if err != nil {
		absRoot = *projectRoot
	}
	store.Update(func(st *models.SprintState) {
		st.ProjectName = filepath.Base(absRoot)
		st.TmuxAvailable = run.TmuxAvailable()
		st.TmuxSessionName = run.TmuxSessionName()
	})

	// 6. Broadcaster hooks: init snapshot, persistence debounce, replay
	broadcaster.SetInitSource(func() events.Event {
		return events.InitPayload{State: store.Snapshot()}
	})
	broadcaster.SetPersistHook(persister.Schedule)
	broadcaster.SetReplayer(replay.NewPlayer(project))

	// 7. Restore a previous sprint if one was persisted
	if coordinator.Resume() {
		slog.Info("Previous sprint restored")
	}

	// 8. Start the filesystem watcher
	w := watcher.New(paths.NewWatchRoot(cfg.Watch.Root), coordinator)
	if err := w.Start(); err != nil {
		slog.Error("Failed to start watcher", "root", cfg.Watch.Root, "error", err)
		os.Exit(1)
	}

	// 9. Create HTTP server
	httpServer := api.NewServer(cfg, project, store, coordinator, broadcaster)
	httpServer.SetRunner(run)
	httpServer.SetMemories(memories)
	httpServer.SetLearnings(learnings)

	// 10. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(cfg.Server.Port)
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Teamclaude started",
		"port", cfg.Server.Port,
		"watch_root", cfg.Watch.Root,
		"tmux", run.TmuxAvailable())

	// 11. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 12. Graceful shutdown: stop event sources, then flush, then drain
	w.Stop()
	run.Stop()

	if err := persister.Flush(); err != nil {
		slog.Error("Final state flush failed", "error", err)
	}

	httpShutdownCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
