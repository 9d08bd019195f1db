package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bundlesync/bundlesync/internal/client/config"
	"github.com/bundlesync/bundlesync/internal/client/handlers"
	"github.com/bundlesync/bundlesync/internal/client/middleware"
	"github.com/bundlesync/bundlesync/internal/utils"
)

// ControlPlaneServer is the local HTTP API of a running client
type ControlPlaneServer struct {
	config *config.ControlPlaneConfig
	server *http.Server
}

func NewControlPlaneServer(cfg *config.ControlPlaneConfig, client handlers.Client) (*ControlPlaneServer, error) {
	if _, err := addrToURL(cfg.Addr); err != nil {
		return nil, err
	}

	routes, err := SetupRoutes(client, &RouteConfig{
		Auth: middleware.TokenAuthConfig{
			Token: cfg.Token,
		},
		RateLimit: middleware.DefaultRate,
	})
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: routes,
		// Timeouts to prevent slow client attacks
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Connection control
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	return &ControlPlaneServer{
		config: cfg,
		server: httpServer,
	}, nil
}

// Start serves until Stop is called
func (s *ControlPlaneServer) Start(ctx context.Context) error {
	url, _ := addrToURL(s.config.Addr)
	slog.Info("control plane start", "addr", url, "token", utils.MaskSecret(s.config.Token))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (s *ControlPlaneServer) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}

// addrToURL turns a listen address into the URL local tools use to reach it
func addrToURL(addr string) (string, error) {
	if addr == "" || strings.Contains(addr, "://") {
		return "", fmt.Errorf("invalid control plane addr %q", addr)
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid control plane addr %q: %w", addr, err)
	}
	if port == "" {
		return "", fmt.Errorf("invalid control plane addr %q: missing port", addr)
	}
	if host == "" {
		host = "0.0.0.0"
	}

	return "http://" + net.JoinHostPort(host, port), nil
}
