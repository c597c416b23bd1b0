package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"streamline-hq/streamline/pkg/config"
	"streamline-hq/streamline/pkg/events"
	"streamline-hq/streamline/pkg/jobs"
	"streamline-hq/streamline/pkg/pipeline"
	"streamline-hq/streamline/pkg/sources"
	"streamline-hq/streamline/pkg/telemetry/metrics"
)

// Deps carries the server's collaborators.
type Deps struct {
	Config       *config.Config
	Orchestrator *pipeline.Orchestrator
	Jobs         *jobs.Registry
	Store        *sources.Store
	Bus          *events.Bus
	RunLog       *events.RunLog
	Metrics      *metrics.Collector
	// Reload re-reads configuration; nil disables /api/config/reload.
	Reload func() error
	// DisableArtifacts turns off static artifact serving (API-only mode).
	DisableArtifacts bool
	Logger           *slog.Logger
}

// Server is the external HTTP interface: health, metrics, artifact
// downloads, run control, and the live event stream.
type Server struct {
	deps       Deps
	logger     *slog.Logger
	httpServer *http.Server
	hub        *sseHub

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	runInFlight  bool
}

// New creates a server. The event bus subscription for the live stream
// is registered immediately so no events are missed between construction
// and Start.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		deps:         deps,
		logger:       logger.With("component", "server"),
		hub:          newSSEHub(),
		shutdownChan: make(chan struct{}),
	}

	if deps.Bus != nil {
		aggregator := events.NewAggregator(0, s.hub.broadcast)
		deps.Bus.Subscribe(aggregator.Handle)
	}

	return s
}

// Start starts the HTTP server and blocks until shutdown: context
// cancellation, SIGINT/SIGTERM, a Stop call, or a listen error.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	cfg := &s.deps.Config.Server
	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		return s.Shutdown(context.Background())
	}
}

// Stop requests shutdown from another goroutine.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })
}

// Shutdown gracefully drains the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	s.logger.Info("initiating graceful shutdown",
		"timeout", s.deps.Config.Server.ShutdownTimeout.String(),
	)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.deps.Config.Server.ShutdownTimeout)
	defer cancel()

	s.hub.closeAll()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler builds the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJob)
	mux.HandleFunc("GET /api/sources", s.handleSources)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("POST /api/config/reload", s.handleReload)

	if s.deps.Metrics != nil {
		path := s.deps.Config.Telemetry.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, s.deps.Metrics.Handler())
	}

	// Artifact downloads straight from the output directory.
	if !s.deps.DisableArtifacts {
		artifacts := http.FileServer(http.Dir(s.deps.Config.Output.Dir))
		mux.Handle("GET /artifacts/", http.StripPrefix("/artifacts/", artifacts))
	}

	var handler http.Handler = mux
	handler = loggingMiddleware(s.logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(s.logger)(handler)
	return handler
}
