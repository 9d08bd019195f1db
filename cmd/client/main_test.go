package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bundlesync/bundlesync/internal/client/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfigFlag(t *testing.T) {
	t.Cleanup(func() {
		f := rootCmd.PersistentFlags().Lookup("config")
		f.Value.Set(config.DefaultConfigPath)
		f.Changed = false
	})
}

func TestLoadConfigEnv(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("BUNDLESYNC_CONFIG_PATH", filepath.Join(tmp, "missing.json"))
	t.Setenv("BUNDLESYNC_SERVER_URL", "https://cdn.example.com")
	t.Setenv("BUNDLESYNC_PLATFORM", "iOS")
	t.Setenv("BUNDLESYNC_INNER_DIR", filepath.Join(tmp, "app"))
	t.Setenv("BUNDLESYNC_DATA_DIR", filepath.Join(tmp, "data"))
	t.Setenv("BUNDLESYNC_APP_VERSION", "3.1.4")
	t.Setenv("BUNDLESYNC_VERSION_TIMEOUT", "2s")
	t.Setenv("BUNDLESYNC_SYNC_INTERVAL", "10m")
	t.Setenv("BUNDLESYNC_CONTROL_PLANE_ADDR", "127.0.0.1:9999")
	t.Setenv("BUNDLESYNC_CONTROL_PLANE_TOKEN", "tok")

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join(tmp, "missing.json"), cfg.Path)
	assert.Equal(t, "https://cdn.example.com", cfg.ServerURL)
	assert.Equal(t, "iOS", cfg.Platform)
	assert.Equal(t, "3.1.4", cfg.AppVersion)
	assert.Equal(t, 2*time.Second, cfg.VersionTimeout)
	assert.Equal(t, 10*time.Minute, cfg.SyncInterval)
	assert.Equal(t, config.DefaultRetryCount, cfg.RetryCount)
	assert.Equal(t, "127.0.0.1:9999", cfg.ControlPlane.Addr)
	assert.Equal(t, "tok", cfg.ControlPlane.Token)
}

func TestLoadConfigJSON(t *testing.T) {
	resetConfigFlag(t)
	tmp := t.TempDir()

	saved := &config.Config{
		ServerURL:      "https://json.example.com",
		Platform:       "WebGL",
		InnerDir:       filepath.Join(tmp, "app"),
		DataDir:        filepath.Join(tmp, "data"),
		AppVersion:     "2.0.0",
		VersionTimeout: 3 * time.Second,
		RetryCount:     1,
		ControlPlane:   config.ControlPlaneConfig{Addr: "localhost:7000", Token: "json-token"},
		Path:           filepath.Join(tmp, "config.json"),
	}
	require.NoError(t, saved.Save())

	require.NoError(t, rootCmd.PersistentFlags().Set("config", saved.Path))

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, saved.Path, cfg.Path)
	assert.Equal(t, saved.ServerURL, cfg.ServerURL)
	assert.Equal(t, saved.Platform, cfg.Platform)
	assert.Equal(t, saved.InnerDir, cfg.InnerDir)
	assert.Equal(t, saved.DataDir, cfg.DataDir)
	assert.Equal(t, 3*time.Second, cfg.VersionTimeout)
	assert.Equal(t, 1, cfg.RetryCount)
	assert.Equal(t, saved.ControlPlane, cfg.ControlPlane)
}

func TestLoadConfigEnvBeatsFile(t *testing.T) {
	resetConfigFlag(t)
	tmp := t.TempDir()

	path := filepath.Join(tmp, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"platform":"WebGL","server_url":"https://file.example.com"}`), 0o644))
	require.NoError(t, rootCmd.PersistentFlags().Set("config", path))
	t.Setenv("BUNDLESYNC_PLATFORM", "Android")

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "Android", cfg.Platform)
	assert.Equal(t, "https://file.example.com", cfg.ServerURL)
}

func TestLoadConfigBadFile(t *testing.T) {
	resetConfigFlag(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	require.NoError(t, rootCmd.PersistentFlags().Set("config", path))

	_, err := loadConfig(rootCmd)
	assert.ErrorContains(t, err, "config read")
}

func TestDebugRequested(t *testing.T) {
	assert.True(t, debugRequested([]string{"daemon", "--debug"}))
	assert.True(t, debugRequested([]string{"--debug=true"}))
	assert.False(t, debugRequested([]string{"daemon"}))
}

func TestControlPlaneURL(t *testing.T) {
	assert.Equal(t, "http://localhost:7938", controlPlaneURL("localhost:7938"))
	assert.Equal(t, "http://localhost:7938", controlPlaneURL("0.0.0.0:7938"))
	assert.Equal(t, "http://localhost:7938", controlPlaneURL(":7938"))
	assert.Equal(t, "http://127.0.0.1:80", controlPlaneURL("127.0.0.1:80"))
}
