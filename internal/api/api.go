// Package api provides the optional HTTP diagnostics server for baraholka-watch.
//
// It exposes a health check, dedup state statistics, and a check endpoint
// that triggers a single polling run on demand. The server is only started
// when an address is configured; the bot itself never depends on it.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
	"github.com/baraholka-watch/baraholka-watch/internal/pipeline"
	"github.com/baraholka-watch/baraholka-watch/internal/store"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"
	// DefaultReadHeaderTimeout bounds how long a client may take to send
	// request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
)

// Runner triggers a single polling run. Implemented by pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context) (models.RunReport, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address, e.g. ":8080" or "127.0.0.1:9090".
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server exposes diagnostics endpoints over HTTP.
type Server struct {
	runner  Runner
	st      store.Store
	httpSrv *http.Server
}

// NewServer creates a diagnostics server around a run trigger and a dedup
// store.
func NewServer(runner Runner, st store.Store, opts ...Option) *Server {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{
		runner: runner,
		st:     st,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.HandleFunc("/v1/stats", s.statsHandler)
	mux.HandleFunc("/v1/check", s.checkHandler)

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}

	slog.Debug("API server configured", "addr", cfg.Addr)
	return s
}

// Start begins serving in a background goroutine. Listen errors other than
// a graceful shutdown are logged, not returned: the diagnostics server is
// auxiliary and must not take the bot down with it.
func (s *Server) Start() {
	slog.Info("API server starting", "addr", s.httpSrv.Addr)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server terminated unexpectedly", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server, waiting for in-flight requests up
// to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Debug("API server shutting down")
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the underlying HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// healthHandler provides a health check endpoint for monitoring (GET /healthz).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}

// statsHandler returns dedup state statistics (GET /v1/stats).
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.statsHandler: processing stats request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.statsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.st.Stats()
	if err != nil {
		slog.Error("Server.statsHandler: failed to collect state statistics", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to collect state statistics"))
		return
	}
	slog.Debug("Server.statsHandler: stats collected", "total_records", stats.TotalRecords)
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// checkHandler triggers a single polling run and reports its counters
// (GET /v1/check). A 409 is returned when a scheduled run is already in
// progress so the caller can retry later.
func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.checkHandler: processing check request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.checkHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	report, err := s.runner.Run(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			slog.Warn("Server.checkHandler: run already in progress")
			writeJSONResponse(w, http.StatusConflict, models.Error("A polling run is already in progress"))
			return
		}
		slog.Error("Server.checkHandler: run failed", "error", err, "run_id", report.RunID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Polling run failed: "+err.Error()))
		return
	}

	slog.Info("Server.checkHandler: run completed", "run_id", report.RunID, "sent", report.Sent, "duplicates", report.Duplicates)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Run completed", report))
}
