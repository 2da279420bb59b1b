// Package loopback runs the short-lived local HTTP server that receives
// authorization responses from the system browser.
package loopback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dgellow/socialsign/internal/log"
)

// Server manages a local HTTP server lifecycle.
type Server struct {
	server   *http.Server
	listener net.Listener
	done     chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// Listen binds addr and returns a server that is not yet serving.
// Use port 0 to let the kernel choose a free port.
func Listen(addr string, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", addr, err)
	}
	return &Server{
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: ln,
		done:     make(chan struct{}),
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// URL returns the http URL for path on the bound address.
func (s *Server) URL(path string) string {
	return "http://" + s.Addr() + path
}

// Start serves in the background until Stop is called.
func (s *Server) Start() {
	log.LogDebugWithFields("loopback", "Loopback server starting", map[string]any{
		"addr": s.Addr(),
	})

	go func() {
		defer close(s.done)
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogErrorWithFields("loopback", "Loopback server failed", map[string]any{
				"addr":  s.Addr(),
				"error": err.Error(),
			})
		}
	}()
}

// Stop gracefully stops the server. It is safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.stopErr = err
		}
		log.LogDebugWithFields("loopback", "Loopback server stopped", map[string]any{
			"addr": s.Addr(),
		})
	})
	return s.stopErr
}

// Done is closed once the serve loop exits.
func (s *Server) Done() <-chan struct{} {
	return s.done
}
