package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newConfigPathCmd())
}

func newConfigPathCmd() *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "config-path",
		Short: "Print the resolved config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !show {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath(cmd))
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n", cfg.Path, data)
			return err
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "also print the effective config")
	return cmd
}
