package api

import (
	"context"
	"net/http"
	"time"
)

// Server wraps the gin engine in an http.Server with the teacher's
// timeout defaults (pkg/api/health.go's HealthServer.Start, generalized
// from a bare ServeMux to the full router).
type Server struct {
	httpServer *http.Server
}

// NewServer builds a Server listening on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 0, // streaming /events holds the connection open indefinitely
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start blocks serving HTTP until the server is shut down or fails.
func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests, including open SSE
// connections, within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
