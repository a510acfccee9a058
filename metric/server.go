package metric

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sawyersec/uds-tcp-graphql/errors"
	"github.com/sawyersec/uds-tcp-graphql/health"
)

// HealthSource reports the aggregate health served on /health.
type HealthSource interface {
	AggregateHealth(component string) health.Status
}

// Server exposes the registry over HTTP for Prometheus scraping, plus
// a /health endpoint fed by an optional HealthSource.
type Server struct {
	port     int
	path     string
	server   *http.Server
	registry *Registry
	health   HealthSource
	mu       sync.Mutex // protects server field
}

// NewServer creates a metrics server over the provided registry.
func NewServer(port int, path string, registry *Registry) *Server {
	if path == "" {
		path = "/metrics"
	}
	if port == 0 {
		port = 9090
	}

	return &Server{
		port:     port,
		path:     path,
		registry: registry,
	}
}

// Handler returns the scrape handler for mounting into an existing mux.
func (s *Server) Handler() http.Handler {
	return promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
}

// SetHealthSource wires the monitor whose aggregate /health reports.
// Call before Start.
func (s *Server) SetHealthSource(src HealthSource) {
	s.mu.Lock()
	s.health = src
	s.mu.Unlock()
}

// handleHealth reports the aggregate system health. Without a source it
// answers healthy; with one, an unhealthy aggregate answers 503 so
// orchestrators take the gateway out of rotation.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s.mu.Lock()
	src := s.health
	s.mu.Unlock()

	if src == nil {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
		return
	}

	status := src.AggregateHealth("gateway")
	if status.IsUnhealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Start starts the metrics HTTP server. It blocks until the server
// stops.
func (s *Server) Start() error {
	s.mu.Lock()

	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("server already running"),
			"Server", "Start", "cannot start server that is already running")
	}
	if s.registry == nil {
		s.mu.Unlock()
		return errors.WrapFatal(
			fmt.Errorf("nil registry"),
			"Server", "Start", "metrics registry not provided")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, s.Handler())
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}
	server := s.server
	s.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("failed to start server on port %d", s.port))
	}
	return nil
}

// Stop stops the metrics server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		err := s.server.Close()
		s.server = nil // reset to allow restart
		if err != nil {
			return errors.WrapTransient(err, "Server", "Stop",
				"failed to stop HTTP server")
		}
	}
	return nil
}

// Address returns the scrape URL.
func (s *Server) Address() string {
	return fmt.Sprintf("http://localhost:%d%s", s.port, s.path)
}
