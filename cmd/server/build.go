package main

import (
	"fmt"
	"path/filepath"

	"github.com/bundlesync/bundlesync/internal/builder"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newBuildCmd())
}

func newBuildCmd() *cobra.Command {
	var cfg builder.Config
	var bump string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate the release manifests of a bundle build output",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.BundledDir == "" {
				cfg.BundledDir = filepath.Join(cfg.OutputDir, manifest.BundledDirName)
			}
			if bump != "" {
				if cfg.Version != "" {
					return fmt.Errorf("--version and --bump are exclusive")
				}
				next, err := builder.NextVersion(cfg.OutputDir, bump)
				if err != nil {
					return err
				}
				cfg.Version = next
			}

			res, err := builder.Build(&cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tag:      %s\n", green(res.Tag))
			fmt.Fprintf(out, "Catalog:  %s\n", cyan(res.Catalog))
			fmt.Fprintf(out, "Release:  %d files, %s\n", res.Full.Len(), humanize.Bytes(uint64(res.Full.TotalSize())))
			fmt.Fprintf(out, "Built-in: %d files, %s\n", res.BuiltIn.Len(), humanize.Bytes(uint64(res.BuiltIn.TotalSize())))
			fmt.Fprintf(out, "FileList: %s\n", gray(res.FileList))
			for _, name := range res.Missing {
				fmt.Fprintf(out, "%s %s\n", red("MISSING"), name)
			}
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&cfg.OutputDir, "output", "o", "", "Build output, also the platform distribution root")
	cmd.Flags().StringVar(&cfg.BundledDir, "bundled", "", "Bundled store directory (default {output}/Bundles)")
	cmd.Flags().StringVarP(&cfg.Version, "version", "v", "", "Release version, major.minor.patch")
	cmd.Flags().StringVar(&bump, "bump", "", "Bump the published version: major, minor or patch")
	cmd.Flags().StringSliceVar(&cfg.Keywords, "keyword", nil, "Built-in keyword, repeatable (default resbuildin, addressableassetsdata, catalog_)")
	cmd.MarkFlagRequired("output")

	return cmd
}
