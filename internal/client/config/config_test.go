package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	tmp := t.TempDir()
	return &Config{
		ServerURL: "http://127.0.0.1:8080/",
		Platform:  "/Android/",
		InnerDir:  filepath.Join(tmp, "app", "StreamingAssets"),
		DataDir:   filepath.Join(tmp, "data"),
		Path:      filepath.Join(tmp, "config.json"),
	}
}

func TestConfig_Validate_NormalizesAndDefaults(t *testing.T) {
	cfg := validConfig(t)

	require.NoError(t, cfg.Validate())
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.True(t, filepath.IsAbs(cfg.InnerDir))
	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
	assert.Equal(t, "Android", cfg.Platform)
	assert.Equal(t, DefaultAppVersion, cfg.AppVersion)
	assert.Equal(t, DefaultVersionTimeout, cfg.VersionTimeout)
	assert.Equal(t, filepath.Join(cfg.DataDir, "Bundles"), cfg.OuterDir())
	assert.Equal(t, filepath.Join(cfg.DataDir, ".data", "history.db"), cfg.HistoryPath())
}

func TestConfig_Validate_ErrorsOnInvalidInputs(t *testing.T) {
	t.Run("no data dir", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.DataDir = ""
		assert.ErrorIs(t, cfg.Validate(), ErrNoDataDir)
	})

	t.Run("no inner dir", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.InnerDir = ""
		assert.ErrorIs(t, cfg.Validate(), ErrNoInnerDir)
	})

	t.Run("inner is outer", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.InnerDir = filepath.Join(cfg.DataDir, "Bundles")
		assert.ErrorContains(t, cfg.Validate(), "inner dir")
	})

	t.Run("bad server url", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.ServerURL = "ftp://bad.example.com"
		assert.ErrorContains(t, cfg.Validate(), "server url")
	})

	t.Run("no platform", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Platform = "/"
		assert.ErrorIs(t, cfg.Validate(), ErrNoPlatform)
	})

	t.Run("nested platform", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Platform = "a/b"
		assert.ErrorContains(t, cfg.Validate(), "platform")
	})

	t.Run("bad app version", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.AppVersion = "1.0"
		assert.ErrorContains(t, cfg.Validate(), "app version")
	})
}

func TestConfig_SaveAndLoad_Roundtrip(t *testing.T) {
	cfg := validConfig(t)
	cfg.AppVersion = "2.1.0"
	cfg.SyncInterval = 10 * time.Minute
	cfg.ControlPlane = ControlPlaneConfig{Addr: "localhost:9000", Token: "tok"}

	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.Save())

	loaded, err := LoadFromFile(cfg.Path)
	require.NoError(t, err)

	assert.Equal(t, cfg.DataDir, loaded.DataDir)
	assert.Equal(t, cfg.InnerDir, loaded.InnerDir)
	assert.Equal(t, cfg.ServerURL, loaded.ServerURL)
	assert.Equal(t, cfg.Platform, loaded.Platform)
	assert.Equal(t, "2.1.0", loaded.AppVersion)
	assert.Equal(t, 10*time.Minute, loaded.SyncInterval)
	assert.Equal(t, cfg.ControlPlane, loaded.ControlPlane)
	assert.Equal(t, cfg.Path, loaded.Path)

	_, statErr := os.Stat(cfg.Path)
	require.NoError(t, statErr)
}

func TestConfig_SaveRequiresPath(t *testing.T) {
	cfg := validConfig(t)
	cfg.Path = ""
	assert.Error(t, cfg.Save())
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadFromFile(bad)
	assert.ErrorContains(t, err, "parse")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultControlAddr, cfg.ControlPlane.Addr)
	assert.Equal(t, DefaultConfigPath, cfg.Path)
	assert.Equal(t, DefaultRetryCount, cfg.RetryCount)
}
