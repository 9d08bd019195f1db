package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bundlesync/bundlesync/internal/client/config"
	"golang.org/x/sync/errgroup"
)

// ClientDaemon runs the client together with its control plane
type ClientDaemon struct {
	client *Client
	cps    *ControlPlaneServer
}

func NewClientDaemon(cfg *config.Config) (*ClientDaemon, error) {
	client, err := New(cfg)
	if err != nil {
		return nil, err
	}

	var cps *ControlPlaneServer
	if cfg.ControlPlane.Addr != "" {
		cps, err = NewControlPlaneServer(&cfg.ControlPlane, client)
		if err != nil {
			client.Close()
			return nil, err
		}
	}

	return &ClientDaemon{
		client: client,
		cps:    cps,
	}, nil
}

func (d *ClientDaemon) Client() *Client {
	return d.client
}

func (d *ClientDaemon) Start(ctx context.Context) error {
	slog.Info("client daemon start")

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return d.client.Run(egCtx)
	})

	if d.cps != nil {
		eg.Go(func() error {
			if err := d.cps.Start(egCtx); err != nil {
				return fmt.Errorf("failed to start control plane: %w", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("received interrupt signal, stopping daemon")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return d.Stop(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("client daemon failure", "error", err)
		return err
	}

	slog.Info("client daemon stopped")
	return nil
}

func (d *ClientDaemon) Stop(ctx context.Context) error {
	if d.cps != nil {
		if err := d.cps.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop control plane: %w", err)
		}
	}
	return d.client.Close()
}
