package main

import (
	"fmt"

	"github.com/bundlesync/bundlesync/internal/server"
	"github.com/bundlesync/bundlesync/internal/server/blob"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newPublishCmd())
}

func newPublishCmd() *cobra.Command {
	var platform string
	var opts server.PublishOptions

	cmd := &cobra.Command{
		Use:   "publish DIR",
		Short: "Upload a distribution root to the configured blob backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			backend, err := blob.NewBackend(&cfg.Blob)
			if err != nil {
				return err
			}

			res, err := server.Publish(cmd.Context(), backend, args[0], platform, &opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Published %s to %s/%s: %d uploaded (%s), %d unchanged\n",
				green(res.Tag),
				cyan(cfg.Blob.Backend),
				cyan(platform),
				len(res.Uploaded),
				humanize.Bytes(uint64(res.Bytes)),
				len(res.Skipped),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "platform root on the server")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "j", server.DefaultPublishConcurrency, "parallel uploads")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "upload objects the backend already holds")
	cmd.MarkFlagRequired("platform")
	return cmd
}
