package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"querymesh/internal/metrics"
)

const maxBodySize = 1 << 20 // 1MB

// ServerConfig configures the mesh HTTP server.
type ServerConfig struct {
	Bind            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
	Metrics         *metrics.Collector
}

// Server hosts every agent of the process on one listener. Each agent's
// dispatcher is mounted at POST /agents/<name>/a2a; liveness probes and
// metrics ride alongside.
type Server struct {
	cfg    ServerConfig
	server *http.Server
	logger *slog.Logger

	mu     sync.RWMutex
	agents map[string]*Dispatcher
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "rpc_server"),
		agents: make(map[string]*Dispatcher),
	}
}

// Mount registers an agent's dispatcher under its name. Mount before
// Start; remounting a name replaces it.
func (s *Server) Mount(d *Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[d.Agent()] = d
}

// AgentNames lists mounted agents, sorted.
func (s *Server) AgentNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.agents))
	for n := range s.agents {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Handler builds the routing mux. Exposed separately so tests can drive
// the server through httptest without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /agents/{agent}/a2a", s.handleEnvelope)
	mux.HandleFunc("GET /agents/{agent}/health", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealthAll)
	if s.cfg.Metrics != nil {
		mux.HandleFunc("GET /status", s.handleStatus)
		mux.HandleFunc("GET /metrics", s.cfg.Metrics.Handler())
	}
	return mux
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully within the configured budget.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Bind,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("mesh server started", "addr", "http://"+s.cfg.Bind, "agents", s.AgentNames())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	agent := r.PathValue("agent")

	s.mu.RLock()
	d, ok := s.agents[agent]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": fmt.Sprintf("unknown agent: %s", agent)})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeEnvelope(w, Failure(nil, InvalidRequest("cannot read request body: %v", err)))
		return
	}

	req, id, envErr := DecodeRequest(body)
	if envErr != nil {
		writeEnvelope(w, Failure(id, envErr))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	writeEnvelope(w, d.Dispatch(ctx, req))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	agent := r.PathValue("agent")
	s.mu.RLock()
	_, ok := s.agents[agent]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": fmt.Sprintf("unknown agent: %s", agent)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"agent":  agent,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealthAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"agents": s.AgentNames(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int64(s.cfg.Metrics.Uptime().Seconds()),
		"agents":         s.AgentNames(),
		"metrics":        s.cfg.Metrics.Snapshot(),
	})
}

// writeEnvelope answers with HTTP 200 regardless of the envelope
// outcome; transport status codes are reserved for transport problems.
func writeEnvelope(w http.ResponseWriter, resp Response) {
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
