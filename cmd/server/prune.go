package main

import (
	"fmt"

	"github.com/bundlesync/bundlesync/internal/builder"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newPruneCmd())
}

func newPruneCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune DIR VERSION...",
		Short: "Remove old versions from a platform distribution root, with the files only they reference",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := builder.Prune(args[0], args[1:], dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			verb := "Removed"
			if res.DryRun {
				verb = "Would remove"
			}
			for _, name := range res.Manifests {
				fmt.Fprintf(out, "%s %s\n", red("-"), name)
			}
			for _, name := range res.Files {
				fmt.Fprintf(out, "%s %s\n", red("-"), gray(name))
			}
			fmt.Fprintf(out, "%s %d manifests, %d files, %s\n", verb, len(res.Manifests), len(res.Files), humanize.Bytes(uint64(res.FreedBytes)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "only report what would be removed")
	return cmd
}
