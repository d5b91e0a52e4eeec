package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ersonp/raices-core/internal/application/handlers"
	"github.com/ersonp/raices-core/internal/infrastructure/config"
)

// ShutdownTimeout bounds how long in-flight requests may run after stop.
const ShutdownTimeout = 5 * time.Second

// Server serves the API until its context is cancelled.
type Server struct {
	srv *http.Server
	log *zap.Logger
}

// NewServer creates a Server for tree on cfg.Port. Release mode is used in
// production.
func NewServer(cfg config.ServerConfig, tree *handlers.TreeHandler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{
		srv: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           NewRouter(tree, log),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Run listens on the configured address and shuts down gracefully when ctx
// is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	s.log.Info("Server started", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	s.log.Info("Server exited")
	return nil
}
