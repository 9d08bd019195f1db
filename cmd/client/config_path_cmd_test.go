package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bundlesync/bundlesync/internal/client/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runConfigPath(t *testing.T, args ...string) string {
	t.Helper()
	root := &cobra.Command{Use: "bundlesync"}
	root.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "path to config file")
	root.AddCommand(newConfigPathCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"config-path"}, args...))
	require.NoError(t, root.Execute())
	return strings.TrimSpace(out.String())
}

func TestConfigPathCommand(t *testing.T) {
	withHome(t)

	t.Setenv(configPathEnv, "")
	assert.Equal(t, config.DefaultConfigPath, runConfigPath(t))

	envPath := filepath.Join(t.TempDir(), "bundlesync.json")
	t.Setenv(configPathEnv, envPath)
	assert.Equal(t, envPath, runConfigPath(t))

	flagPath := filepath.Join(t.TempDir(), "flag.json")
	assert.Equal(t, flagPath, runConfigPath(t, "--config", flagPath))
}
