package main

import (
	"fmt"

	"github.com/bundlesync/bundlesync/internal/client"
	"github.com/bundlesync/bundlesync/internal/client/resolver"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newResolveCmd())
}

func newResolveCmd() *cobra.Command {
	var asJSON bool
	var catalog bool

	cmd := &cobra.Command{
		Use:   "resolve [ID...]",
		Short: "Print where each resource id loads from, without syncing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !catalog {
				return fmt.Errorf("at least one id or --catalog is required")
			}

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

			var locations []resolver.Location
			if catalog {
				loc, ok := c.Catalog()
				if !ok {
					return fmt.Errorf("no catalog in the local stores")
				}
				locations = append(locations, loc)
			}
			for _, id := range args {
				locations = append(locations, c.Resolve(id))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(locations, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			for _, loc := range locations {
				fmt.Fprintf(out, "%s %s\n", gray(fmt.Sprintf("%-11s", loc.Source)), loc.URI())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full locations as json")
	cmd.Flags().BoolVar(&catalog, "catalog", false, "resolve the active catalog first")
	return cmd
}
