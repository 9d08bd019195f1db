package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newWatchStatusCmd())
}

func newWatchStatusCmd() *cobra.Command {
	var interval time.Duration
	var raw bool

	cmd := &cobra.Command{
		Use:   "watch-status",
		Short: "Continuously poll the daemon control plane /v1/status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.ControlPlane.Addr == "" {
				return fmt.Errorf("control plane not configured; set control_plane.addr or %s_CONTROL_PLANE_ADDR", envPrefix)
			}
			cmd.SilenceUsage = true

			statusURL := controlPlaneURL(cfg.ControlPlane.Addr) + "/v1/status"
			client := req.C().SetTimeout(5 * time.Second)
			if cfg.ControlPlane.Token != "" {
				client.SetCommonBearerAuthToken(cfg.ControlPlane.Token)
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
					resp, err := client.R().SetContext(cmd.Context()).Get(statusURL)
					if err != nil {
						if cmd.Context().Err() != nil {
							return nil
						}
						fmt.Fprintf(os.Stderr, "%s %s %v\n", time.Now().UTC().Format(time.RFC3339), red("ERROR"), err)
						continue
					}
					body := resp.Bytes()

					if raw {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\n", body)
						continue
					}

					var v any
					if err := json.Unmarshal(body, &v); err != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\n", body)
						continue
					}
					pretty, _ := json.MarshalIndent(v, "", "  ")
					fmt.Fprintf(cmd.OutOrStdout(), "%s\n", pretty)
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 1*time.Second, "poll interval")
	cmd.Flags().BoolVar(&raw, "raw", false, "print raw json without pretty formatting")
	return cmd
}

// controlPlaneURL turns a listen address into a url a local client can dial
func controlPlaneURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
