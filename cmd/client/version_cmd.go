package main

import (
	"fmt"

	"github.com/bundlesync/bundlesync/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print BundleSync version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := version.Detailed()
			if short {
				v = version.Short()
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), v)
			return err
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print the short version")
	return cmd
}
