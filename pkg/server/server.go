// Package server orchestrates the DittoStore listeners: the REST API
// server and, when enabled, the Prometheus metrics server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/metrics"
)

// Config controls the server's listeners and shutdown behavior.
type Config struct {
	// ListenAddress is the address:port the REST API listens on
	ListenAddress string

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds how long a client may take to send headers
	ReadHeaderTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = ":8080"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
}

// Server manages the lifecycle of the REST listener and the optional
// metrics listener, which run concurrently and shut down together.
//
// Lifecycle:
//  1. Creation: New() with the REST handler and optional metrics server
//  2. Startup: Serve() starts all listeners concurrently
//  3. Shutdown: context cancellation triggers graceful shutdown
//
// Thread safety: Serve() must only be called once per instance.
type Server struct {
	cfg     Config
	rest    *http.Server
	metrics *metrics.Server

	serveOnce sync.Once
}

// New creates a server in a stopped state.
//
// Parameters:
//   - cfg: Listener configuration
//   - handler: The REST API handler (required)
//   - metricsServer: The metrics listener (nil when metrics are disabled)
//
// Panics if handler is nil (programmer error).
func New(cfg Config, handler http.Handler, metricsServer *metrics.Server) *Server {
	if handler == nil {
		panic("rest handler cannot be nil")
	}
	cfg.applyDefaults()

	return &Server{
		cfg: cfg,
		rest: &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		metrics: metricsServer,
	}
}

// Serve starts all listeners and blocks until the context is cancelled or
// a listener fails.
//
// Shutdown behavior:
// When the context is cancelled or a listener fails, all listeners receive
// a graceful shutdown bounded by ShutdownTimeout; in-flight requests get
// that long to drain before connections are closed.
//
// Returns:
//   - context.Canceled when shutdown was triggered by cancellation
//   - the listener's error when one failed
func (s *Server) Serve(ctx context.Context) error {
	var err error
	s.serveOnce.Do(func() {
		err = s.serve(ctx)
	})
	return err
}

func (s *Server) serve(ctx context.Context) error {
	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("REST server listening on %s", s.cfg.ListenAddress)
		if serveErr := s.rest.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			errChan <- fmt.Errorf("rest server failed: %w", serveErr)
		}
	}()

	if s.metrics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if serveErr := s.metrics.Start(); serveErr != nil {
				errChan <- serveErr
			}
		}()
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case listenerErr := <-errChan:
		logger.Error("Listener failed: %v - initiating shutdown", listenerErr)
		shutdownErr = listenerErr
	}

	s.shutdown()
	wg.Wait()

	logger.Info("Server stopped gracefully")
	return shutdownErr
}

// shutdown drains all listeners, bounded by ShutdownTimeout.
func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.rest.Shutdown(ctx); err != nil {
		logger.Error("Error shutting down REST server: %v", err)
	}
	if s.metrics != nil {
		if err := s.metrics.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down metrics server: %v", err)
		}
	}
}
