package main

import (
	"context"
	"fmt"

	"github.com/bundlesync/bundlesync/internal/bundlesdk"
	"github.com/bundlesync/bundlesync/internal/client"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local version tags, the published tag and the last sync round",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			c, err := client.New(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			inner, outer := c.LocalTags()
			fmt.Fprintf(out, "Server:   %s\n", cyan(cfg.ServerURL+"/"+cfg.Platform))
			fmt.Fprintf(out, "Inner:    %s\n", cyan(orNone(inner.String())))
			fmt.Fprintf(out, "Outer:    %s\n", cyan(orNone(outer.String())))

			if !offline {
				remote, err := fetchRemoteTag(cmd.Context(), cfg.ServerURL, cfg.Platform)
				switch {
				case err != nil:
					fmt.Fprintf(out, "Remote:   %s %s\n", red("unreachable"), gray(err.Error()))
				case remote == outer:
					fmt.Fprintf(out, "Remote:   %s %s\n", cyan(remote.String()), green("up to date"))
				default:
					fmt.Fprintf(out, "Remote:   %s %s\n", cyan(remote.String()), yellow("update available"))
				}
			}

			rounds, err := c.History(1)
			if err == nil && len(rounds) > 0 {
				last := rounds[0]
				fmt.Fprintf(out, "Last:     %s %s, %s downloaded, %s\n",
					last.State,
					humanize.Time(last.FinishedAt),
					humanize.Bytes(uint64(last.Bytes)),
					gray(last.ID),
				)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "do not contact the server")
	return cmd
}

func fetchRemoteTag(ctx context.Context, serverURL, platform string) (manifest.VersionTag, error) {
	sdk, err := bundlesdk.New(&bundlesdk.Config{BaseURL: serverURL, Platform: platform})
	if err != nil {
		return "", err
	}
	defer sdk.Close()
	return sdk.FetchVersionTag(ctx)
}
