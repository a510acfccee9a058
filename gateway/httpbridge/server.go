package httpbridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"

	"github.com/sawyersec/uds-tcp-graphql/errors"
	"github.com/sawyersec/uds-tcp-graphql/metric"
)

// Server manages the HTTP side of the bridge: one stateless handler
// translating HTTP requests into single-shot gateway connections.
type Server struct {
	config     Config
	relay      *Relay
	logger     *slog.Logger
	metrics    *metric.Metrics
	promServer *metric.Server
	httpServer *http.Server
	mux        *http.ServeMux

	// Lifecycle
	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once // Ensures stopChan is closed exactly once
}

// NewServer creates the bridge HTTP server. metrics and promServer may
// be nil.
func NewServer(config Config, logger *slog.Logger, metrics *metric.Metrics, promServer *metric.Server) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Server", "NewServer", "config validation")
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "httpbridge")

	return &Server{
		config:     config,
		relay:      NewRelay(config, logger, metrics),
		logger:     logger,
		metrics:    metrics,
		promServer: promServer,
		mux:        http.NewServeMux(),
		stopChan:   make(chan struct{}),
	}, nil
}

// Setup configures routes and the HTTP server.
func (s *Server) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mux.HandleFunc(s.config.Path, s.relay.ServeHTTP)
	s.mux.HandleFunc("/health", s.handleHealth)

	if s.promServer != nil {
		s.mux.Handle("/metrics", s.promServer.Handler())
	}

	if s.config.EnablePlayground {
		s.mux.Handle("/", playground.Handler("GraphQL Gateway", s.config.Path))
		s.logger.Info("playground enabled",
			"url", fmt.Sprintf("http://%s/", s.config.BindAddress))
	}

	var handler http.Handler = s.mux
	if s.config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}

	s.httpServer = &http.Server{
		Addr:         s.config.BindAddress,
		Handler:      handler,
		ReadTimeout:  s.config.Timeout(),
		WriteTimeout: s.config.Timeout(),
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("bridge configured",
		"address", s.config.BindAddress,
		"path", s.config.Path,
		"gateway", s.config.GatewayAddr)

	return nil
}

// Handler returns the configured handler for tests and embedding.
// Valid after Setup.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Handler
}

// Start starts the HTTP server. The ready channel is closed when the
// server is about to accept connections.
func (s *Server) Start(ctx context.Context, ready chan<- struct{}) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Server", "Start", "server already running")
	}
	if s.httpServer == nil {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrNotStarted, "Server", "Start", "Setup must be called first")
	}
	s.running = true
	server := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.logger.Info("bridge starting", "address", s.config.BindAddress)

		if ready != nil {
			close(ready)
		}

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
			select {
			case errChan <- err:
			case <-ctx.Done():
			case <-s.stopChan:
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("bridge context cancelled, shutting down")
		return s.Stop(30 * time.Second)

	case <-s.stopChan:
		s.logger.Info("bridge stop requested")
		return nil

	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		if err == nil {
			return nil
		}
		return errors.WrapFatal(err, "Server", "Start", "HTTP server failed")
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.httpServer
	s.mu.Unlock()

	s.logger.Info("bridge stopping")

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		s.logger.Error("graceful shutdown failed", "error", err)
		return errors.WrapTransient(err, "Server", "Stop", "graceful shutdown failed")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("bridge stopped")
	return nil
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !running {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// corsMiddleware adds CORS headers to responses.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range s.config.CORSOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, api-key")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
