package socket

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sawyersec/uds-tcp-graphql/errors"
	"github.com/sawyersec/uds-tcp-graphql/metric"
)

// Server owns the single listening socket and fans accepted connections
// out to the pipeline. Exactly one address is bound at a time: a unix
// socket path or a tcp host:port, per configuration.
type Server struct {
	config   Config
	pipeline *Pipeline
	logger   *slog.Logger
	metrics  *metric.Metrics

	listener net.Listener
	// release undoes listener acquisition: it closes the listener and,
	// in unix mode, removes the socket file. Set by Setup, called on
	// every exit path.
	release func()

	// Lifecycle
	running  bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once // Ensures stopChan is closed exactly once
}

// NewServer creates a gateway socket server. metrics may be nil.
func NewServer(config Config, pipeline *Pipeline, logger *slog.Logger, metrics *metric.Metrics) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Server", "NewServer", "config validation")
	}

	if pipeline == nil {
		return nil, errors.WrapFatal(fmt.Errorf("pipeline is nil"), "Server", "NewServer",
			"pipeline is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:   config,
		pipeline: pipeline,
		logger:   logger.With("component", "socket-server"),
		metrics:  metrics,
		stopChan: make(chan struct{}),
	}, nil
}

// Setup binds the listening socket. A bind failure is the only startup
// error that terminates the process; everything after Setup is answered
// on the wire.
func (s *Server) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listener, release, err := s.bind()
	if err != nil {
		return err
	}
	s.listener = listener
	s.release = release

	s.logger.Info("listener bound",
		"network", s.config.Network,
		"address", listener.Addr().String())
	return nil
}

// bind acquires the listener. The returned release func is the single
// owner of listener teardown, socket file removal included, so cleanup
// happens on every exit path rather than at scattered call sites.
func (s *Server) bind() (net.Listener, func(), error) {
	switch s.config.Network {
	case NetworkUnix:
		// A stale file from an unclean previous shutdown blocks the
		// bind; remove it first.
		if err := os.Remove(s.config.SocketPath); err != nil && !os.IsNotExist(err) {
			return nil, nil, errors.WrapFatal(err, "Server", "bind", "remove stale socket file")
		}

		listener, err := net.Listen(NetworkUnix, s.config.SocketPath)
		if err != nil {
			return nil, nil, errors.WrapFatal(errors.ErrBindFailed, "Server", "bind",
				fmt.Sprintf("listen on %s: %v", s.config.SocketPath, err))
		}

		// World read/write: access control is the containing
		// directory's job, not the socket's.
		if err := os.Chmod(s.config.SocketPath, 0o666); err != nil {
			listener.Close()
			_ = os.Remove(s.config.SocketPath)
			return nil, nil, errors.WrapFatal(err, "Server", "bind", "chmod socket file")
		}

		path := s.config.SocketPath
		release := func() {
			listener.Close()
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("socket file removal failed", "path", path, "error", err)
			}
		}
		return listener, release, nil

	case NetworkTCP:
		listener, err := net.Listen(NetworkTCP, s.config.Addr)
		if err != nil {
			return nil, nil, errors.WrapFatal(errors.ErrBindFailed, "Server", "bind",
				fmt.Sprintf("listen on %s: %v", s.config.Addr, err))
		}
		return listener, func() { listener.Close() }, nil

	default:
		return nil, nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Server", "bind",
			fmt.Sprintf("unknown network %q", s.config.Network))
	}
}

// Addr returns the bound address. Valid after Setup.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start runs the accept loop until ctx is cancelled or Stop is called.
// The ready channel is closed once the loop is accepting connections.
func (s *Server) Start(ctx context.Context, ready chan<- struct{}) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Server", "Start", "server already running")
	}
	if s.listener == nil {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrNotStarted, "Server", "Start", "Setup must be called first")
	}
	s.running = true
	listener := s.listener
	s.mu.Unlock()

	connCtx, cancelConns := context.WithCancel(ctx)
	defer cancelConns()

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.logger.Info("server starting", "address", listener.Addr().String())

		if ready != nil {
			close(ready)
		}

		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.stopChan:
					return
				case <-ctx.Done():
					return
				default:
				}
				// Accept failures are answered by retrying; only a
				// closed listener ends the loop.
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				select {
				case errChan <- err:
				default:
				}
				return
			}

			if s.metrics != nil {
				s.metrics.ConnectionsTotal.WithLabelValues(s.config.Network).Inc()
				s.metrics.ConnectionsActive.WithLabelValues(s.config.Network).Inc()
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer func() {
					if s.metrics != nil {
						s.metrics.ConnectionsActive.WithLabelValues(s.config.Network).Dec()
					}
				}()

				// Unblock any in-flight read when shutdown begins.
				done := make(chan struct{})
				defer close(done)
				go func() {
					select {
					case <-connCtx.Done():
						conn.Close()
					case <-done:
					}
				}()

				s.pipeline.ServeConn(connCtx, conn, s.config.Network)
			}()
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("server context cancelled, shutting down")
		cancelConns()
		return s.Stop(30 * time.Second)

	case <-s.stopChan:
		s.logger.Info("server stop requested")
		return nil

	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		if err == nil {
			return nil
		}
		s.releaseListener()
		return errors.WrapFatal(err, "Server", "Start", "accept loop failed")
	}
}

// Stop closes the listener, stops accepting, and waits up to timeout for
// in-flight connections to drain. The socket file is removed here in
// unix mode.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.releaseListener()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info("server stopping")

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	s.releaseListener()

	// Wait for connection handlers, bounded by timeout.
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = errors.WrapTransient(errors.ErrConnectionTimeout, "Server", "Stop",
			"connections did not drain before timeout")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("server stopped")
	return err
}

// releaseListener runs the bind release exactly once.
func (s *Server) releaseListener() {
	s.mu.Lock()
	release := s.release
	s.release = nil
	s.mu.Unlock()

	if release != nil {
		release()
	}
}
