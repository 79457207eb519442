package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dittostore/dittostore/internal/logger"
)

// Server wraps an http.Server with idempotent, context-respecting
// start/stop semantics.
type Server struct {
	server       *http.Server
	shutdownOnce sync.Once
}

// NewServer builds a Server bound to host:port, serving handler.
func NewServer(host string, port int, handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:         net.JoinHostPort(host, fmt.Sprintf("%d", port)),
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // streaming downloads/archives can run long
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start runs the server in a goroutine and blocks until ctx is cancelled
// or the server exits with an error.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case err := <-errCh:
		return err
	}
}

// Stop gracefully shuts down the server. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		logger.Info("http server shutting down")
		err = s.server.Shutdown(ctx)
	})
	return err
}

// Addr returns the configured host:port address.
func (s *Server) Addr() string {
	return s.server.Addr
}
