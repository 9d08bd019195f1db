package main

import (
	"fmt"

	"github.com/bundlesync/bundlesync/internal/bundlesdk"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newVersionsCmd())
}

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List the versions the server publishes for the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			sdk, err := bundlesdk.New(&bundlesdk.Config{
				BaseURL:    cfg.ServerURL,
				Platform:   cfg.Platform,
				RetryCount: cfg.RetryCount,
			})
			if err != nil {
				return err
			}
			defer sdk.Close()

			versions, err := sdk.ListVersions(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, v := range versions {
				marker := " "
				name := v.Version
				if v.Current {
					marker = green("*")
					name = green(name)
				}
				fmt.Fprintf(out, "%s %-12s %6d files %10s  %s\n", marker, name, v.Files, humanize.Bytes(uint64(v.TotalSize)), gray(v.FileList))
			}
			return nil
		},
	}
}
