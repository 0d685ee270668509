package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"go.uber.org/zap"
)

type Server struct {
	name       string
	httpServer *http.Server
}

// New builds an HTTP server. Read and write deadlines of upgraded websocket
// connections are managed by the gateway, so only the header read is bounded
// here.
func New(name, addr string, handler http.Handler) *Server {
	return &Server{
		name: name,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

func (s *Server) Addr() string { return s.httpServer.Addr }

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	observability.Log.Info("starting server", zap.String("server", s.name), zap.String("addr", lis.Addr().String()))
	if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	observability.Log.Info("shutting down server", zap.String("server", s.name))
	return s.httpServer.Shutdown(ctx)
}
