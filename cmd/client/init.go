package main

import (
	"fmt"
	"strings"

	"github.com/bundlesync/bundlesync/internal/client/config"
	"github.com/bundlesync/bundlesync/internal/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file from the given flags and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if utils.FileExists(cfg.Path) && !force {
				fmt.Fprintln(out, "BundleSync already initialized")
				printConfig(cmd, cfg)
				return nil
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.ControlPlane.Token == "" {
				cfg.ControlPlane.Token = strings.ReplaceAll(uuid.NewString(), "-", "")
			}
			if err := cfg.Save(); err != nil {
				return err
			}

			fmt.Fprintln(out, "BundleSync initialized")
			printConfig(cmd, cfg)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config")
	return cmd
}

func printConfig(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config Path: %s\n", green(cfg.Path))
	fmt.Fprintf(out, "Server:      %s\n", cyan(cfg.ServerURL))
	fmt.Fprintf(out, "Platform:    %s\n", cyan(cfg.Platform))
	fmt.Fprintf(out, "Inner Dir:   %s\n", cyan(cfg.InnerDir))
	fmt.Fprintf(out, "Data Dir:    %s\n", cyan(cfg.DataDir))
}
