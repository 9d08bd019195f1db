package main

import (
	"os"
	"path/filepath"

	"github.com/bundlesync/bundlesync/internal/client/config"
	"github.com/bundlesync/bundlesync/internal/utils"
	"github.com/spf13/cobra"
)

const configPathEnv = envPrefix + "_CONFIG_PATH"

// resolveConfigPath picks the config file: an explicit --config, then
// BUNDLESYNC_CONFIG_PATH, then the first existing candidate, else the default.
func resolveConfigPath(cmd *cobra.Command) string {
	if f := cmd.Flag("config"); f != nil && f.Changed {
		return f.Value.String()
	}

	if p := os.Getenv(configPathEnv); p != "" {
		return p
	}

	for _, candidate := range configCandidates() {
		if utils.FileExists(candidate) {
			return candidate
		}
	}
	return config.DefaultConfigPath
}

func configCandidates() []string {
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		xdg = filepath.Join(home, ".config")
	}
	return []string{
		config.DefaultConfigPath,
		filepath.Join(xdg, "bundlesync", "config.json"),
	}
}
