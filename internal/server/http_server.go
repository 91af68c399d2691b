// Package server constructs and starts the signaling HTTP service with
// helpers that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartHub starts the hub loop in a separate goroutine. This should be called
// before starting the HTTP server.
func (s *Server) StartHub() {
	go s.hub.Run()
	logrus.Info("Hub started and ready to manage WebSocket connections")
}

// StartServer starts the HTTP server and blocks until it exits. A server closed
// through Shutdown is not reported as an error.
func StartServer(server *http.Server) error {
	logrus.Infof("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	logrus.Infof("Shutting down HTTP server on %s...", server.Addr)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
		return err
	}

	logrus.Info("HTTP server shutdown completed")
	return nil
}

// Shutdown stops the given HTTP servers and then the hub. Every step runs even
// if an earlier one fails; the failures are combined.
func (s *Server) Shutdown(servers ...*http.Server) error {
	var err error
	for _, httpServer := range servers {
		if httpServer == nil {
			continue
		}
		err = multierr.Append(err, ShutdownServer(httpServer, s.cfg.ShutdownTimeout))
	}
	return multierr.Append(err, s.hub.Shutdown(s.cfg.ShutdownTimeout))
}
