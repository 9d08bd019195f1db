package main

import (
	"fmt"

	"github.com/bundlesync/bundlesync/internal/builder"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newVersionsCmd())
}

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions DIR",
		Short: "List the versions published in a platform distribution root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]

			versions, err := builder.ListVersions(root)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				return fmt.Errorf("nothing published in %s", root)
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
