// Package api exposes the control HTTP surface and the dashboard
// WebSocket endpoint over the sprint core. Handlers stay thin: bind,
// validate, call into the coordinator or a store, map errors.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/albertnahas/teamclaude/pkg/config"
	"github.com/albertnahas/teamclaude/pkg/events"
	"github.com/albertnahas/teamclaude/pkg/learning"
	"github.com/albertnahas/teamclaude/pkg/memory"
	"github.com/albertnahas/teamclaude/pkg/paths"
	"github.com/albertnahas/teamclaude/pkg/runner"
	"github.com/albertnahas/teamclaude/pkg/sprint"
	"github.com/albertnahas/teamclaude/pkg/state"
)

// Server is the control API server.
type Server struct {
	cfg         *config.Config
	project     *paths.Project
	store       *state.Store
	coordinator *sprint.Coordinator
	broadcaster *events.Broadcaster

	// Optional components, injected via Set* after construction.
	runner    *runner.Runner
	memories  *memory.Store
	learnings *learning.Store

	echo    *echo.Echo
	httpSrv *http.Server
}

// NewServer creates the API server over the core components and
// registers all routes.
func NewServer(cfg *config.Config, project *paths.Project, store *state.Store, coordinator *sprint.Coordinator, broadcaster *events.Broadcaster) *Server {
	s := &Server{
		cfg:         cfg,
		project:     project,
		store:       store,
		coordinator: coordinator,
		broadcaster: broadcaster,
		echo:        echo.New(),
	}
	s.setupRoutes()
	s.httpSrv = &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetRunner injects the host runtime launcher.
func (s *Server) SetRunner(r *runner.Runner) {
	s.runner = r
}

// SetMemories injects the agent memory store.
func (s *Server) SetMemories(m *memory.Store) {
	s.memories = m
}

// SetLearnings injects the process learnings store.
func (s *Server) SetLearnings(l *learning.Store) {
	s.learnings = l
}

func (s *Server) setupRoutes() {
	e := s.echo
	e.Use(securityHeaders())
	e.Use(requestLogger())

	e.GET("/api/health", s.healthHandler)
	e.GET("/api/state", s.stateHandler)

	e.POST("/api/pause", s.pauseHandler)
	e.POST("/api/stop", s.stopHandler)
	e.POST("/api/checkpoint", s.addCheckpointHandler)
	e.POST("/api/checkpoint/release", s.releaseCheckpointHandler)
	e.POST("/api/dismiss-escalation", s.dismissEscalationHandler)
	e.POST("/api/dismiss-merge-conflict", s.dismissMergeConflictHandler)
	e.POST("/api/resume", s.resumeHandler)
	e.POST("/api/launch", s.launchHandler)

	e.GET("/api/memories", s.listMemoriesHandler)
	e.POST("/api/memories", s.createMemoryHandler)
	e.DELETE("/api/memories/:id", s.deleteMemoryHandler)

	e.GET("/api/process-learnings", s.listLearningsHandler)
	e.DELETE("/api/process-learnings/:id", s.deleteLearningHandler)

	e.GET("/api/recordings", s.listRecordingsHandler)

	e.GET("/ws", s.wsHandler)
}

// Start listens on addr and serves until Shutdown. Returns
// http.ErrServerClosed after a clean shutdown, like net/http.
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server, draining in-flight
// requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
