package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bundlesync/bundlesync/internal/server/blob"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Server distributes the published platform roots held by a blob backend
type Server struct {
	config  *Config
	backend blob.Backend
	server  *http.Server
}

func New(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	backend, err := blob.NewBackend(&config.Blob)
	if err != nil {
		return nil, fmt.Errorf("blob backend: %w", err)
	}

	return NewWithBackend(config, backend)
}

// NewWithBackend builds the server around an existing backend
func NewWithBackend(config *Config, backend blob.Backend) (*Server, error) {
	httpHandler, err := SetupRoutes(backend, &RouteConfig{
		RateLimit: config.RateLimit,
		TLS:       config.Http.TLS(),
	})
	if err != nil {
		return nil, err
	}

	return &Server{
		config:  config,
		backend: backend,
		server: &http.Server{
			Addr:              config.Http.Addr,
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}, nil
}

func (s *Server) Backend() blob.Backend {
	return s.backend
}

// Start serves until ctx is done, then shuts the http server down
func (s *Server) Start(ctx context.Context) error {
	slog.Info("bundleserver start", "backend", s.config.Blob.Backend)
	defer slog.Info("bundleserver stop")

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := s.runHttpServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server start error", "error", err)
			return err
		}
		slog.Info("http server stopped")
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("bundleserver shutdown signal")
		return s.Stop(context.Background())
	})

	return eg.Wait()
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) runHttpServer() error {
	if s.config.Http.TLS() {
		slog.Info("server start tls", "addr", s.config.Http.Addr, "cert", s.config.Http.CertFile, "key", s.config.Http.KeyFile)
		return s.server.ListenAndServeTLS(s.config.Http.CertFile, s.config.Http.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.Http.Addr)
	return s.server.ListenAndServe()
}
