// Package httpserver exposes the relayer's health and metrics surface.
// Unlike the proof/batch/bundle APIs this is adapted from, there are no
// customer-facing discovery endpoints here — the relayer has no database
// of artifacts for third parties to query, only its own liveness and
// Prometheus counters.
package httpserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rofl-hashi/relayer/pkg/processor"
)

// StatsProvider is the subset of *processor.Processor the health handler
// needs; defined as an interface so handler tests don't need a full
// Processor wired up.
type StatsProvider interface {
	GetStats() processor.Stats
}

// Server serves /healthz and /metrics on its own listener, independent
// of the relayer's chain-facing goroutines.
type Server struct {
	addr    string
	stats   StatsProvider
	logger  *log.Logger
	httpSrv *http.Server
	ready   atomic.Bool
}

// New constructs a Server. addr is the listen address (e.g. ":8090");
// an empty addr means the caller should not start this server at all.
// The server reports ready until told otherwise, so a caller that never
// calls SetReady (as in tests) sees the pre-existing 200 behavior; the
// relayer's own main sets it false until both listeners complete their
// initial sync, per the observability contract.
func New(addr string, stats StatsProvider, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[httpserver] ", log.LstdFlags)
	}

	mux := http.NewServeMux()
	s := &Server{addr: addr, stats: stats, logger: logger}
	s.ready.Store(true)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// SetReady controls whether /healthz reports 200 or 503. The relayer's
// orchestrator calls this once both listeners have completed their
// initial lookback sync, and again with false as shutdown begins.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// ListenAndServe blocks until the server is shut down or fails to bind.
// It returns nil on a clean Shutdown, matching net/http's own contract.
func (s *Server) ListenAndServe() error {
	s.logger.Printf("listening on %s", s.addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// to finish or ctx to expire, whichever comes first.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Only GET is allowed")
		return
	}
	if !s.ready.Load() {
		s.writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}

	stats := s.stats.GetStats()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"pending":    stats.Pending,
		"processed":  stats.Processed,
		"stored":     stats.Stored,
		"filtered":   stats.Filtered,
		"duplicated": stats.Duplicated,
		"invalid":    stats.Invalid,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("error encoding response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
