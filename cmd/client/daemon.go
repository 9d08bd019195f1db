package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bundlesync/bundlesync/internal/client"
	"github.com/bundlesync/bundlesync/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	var addr string
	var authToken string
	var interval time.Duration

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Sync on start, re-sync periodically and serve the local control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flag("http-addr").Changed {
				cfg.ControlPlane.Addr = addr
			}
			if cmd.Flag("http-token").Changed {
				cfg.ControlPlane.Token = authToken
			}
			if cmd.Flag("interval").Changed {
				cfg.SyncInterval = interval
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			cmd.SilenceUsage = true
			slog.Info("bundlesync", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)
			slog.Info("daemon using config", "path", cfg.Path)

			daemon, err := client.NewClientDaemon(cfg)
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			if err := daemon.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("daemon start", "error", err)
				return err
			}
			return nil
		},
	}

	daemonCmd.Flags().StringVarP(&addr, "http-addr", "a", "localhost:7938", "Address to bind the control plane, empty disables it")
	daemonCmd.Flags().StringVarP(&authToken, "http-token", "t", "", "Access token for the control plane")
	daemonCmd.Flags().DurationVarP(&interval, "interval", "n", 15*time.Minute, "Re-sync interval, 0 syncs only on start")

	return daemonCmd
}
