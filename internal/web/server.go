// Package web exposes the controller's read-only HTTP surface: the snapshot
// consumed by the aggregation service, a health probe, and Prometheus
// metrics.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hglynn/labclimate/internal/catalog"
	"github.com/hglynn/labclimate/internal/mqtt"
	"github.com/hglynn/labclimate/internal/state"
)

// Source yields the current catalog and state memory.
type Source func() (*catalog.Catalog, *state.Memory)

// Server serves the snapshot and metrics endpoints.
type Server struct {
	httpServer *http.Server
	source     Source
	broker     mqtt.ConnectionStatus
	staleAfter time.Duration
	now        func() time.Time
}

// New creates a Server. The gatherer is the process's metrics registry;
// broker may be nil when transport status is not interesting (tests).
func New(addr string, source Source, broker mqtt.ConnectionStatus, staleAfter time.Duration,
	gatherer prometheus.Gatherer) *Server {
	s := &Server{
		source:     source,
		broker:     broker,
		staleAfter: staleAfter,
		now:        time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStatus)
	mux.HandleFunc("/status.json", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/status.json" {
		http.NotFound(w, r)
		return
	}

	cat, mem := s.source()
	connected := false
	if s.broker != nil {
		connected = s.broker.IsConnected()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(formatStatus(cat, mem.Snapshot(), s.now(), s.staleAfter, connected))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}
