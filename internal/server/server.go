package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/at-ishikawa/pictomap/internal/config"
)

type Server struct {
	httpServer *http.Server
	certFile   string
	keyFile    string
}

func New(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		certFile: cfg.CertFile,
		keyFile:  cfg.KeyFile,
	}
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until Shutdown is called.
func (s *Server) Run(_ context.Context) error {
	slog.Default().Info("Starting server", "addr", s.httpServer.Addr, "tls", s.certFile != "")

	var err error
	if s.certFile != "" {
		err = s.httpServer.ListenAndServeTLS(s.certFile, s.keyFile)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("httpServer.ListenAndServe > %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpServer.Shutdown > %w", err)
	}
	return nil
}
