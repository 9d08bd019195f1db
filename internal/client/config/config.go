package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/bundlesync/bundlesync/internal/utils"
	"github.com/goccy/go-json"
)

const (
	outerDirName = "Bundles"
	metaDirName  = ".data"
	historyName  = "history.db"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".bundlesync", "config.json")
	DefaultDataDir     = filepath.Join(home, "BundleSync")
	DefaultServerURL   = "http://localhost:8080"
	DefaultPlatform    = "StandaloneLinux64"
	DefaultControlAddr = "localhost:7938"
	DefaultAppVersion  = "1.0.0"

	DefaultVersionTimeout  = 5 * time.Second
	DefaultDownloadTimeout = 5 * time.Minute
	DefaultRetryCount      = 3
)

var (
	ErrNoDataDir  = errors.New("config: `data_dir` is required")
	ErrNoInnerDir = errors.New("config: `inner_dir` is required")
	ErrNoPlatform = errors.New("config: `platform` is required")
)

type ControlPlaneConfig struct {
	Addr  string `json:"addr" mapstructure:"addr"`
	Token string `json:"token,omitempty" mapstructure:"token"`
}

type Config struct {
	ServerURL       string             `json:"server_url" mapstructure:"server_url"`
	Platform        string             `json:"platform" mapstructure:"platform"`
	InnerDir        string             `json:"inner_dir" mapstructure:"inner_dir"`
	DataDir         string             `json:"data_dir" mapstructure:"data_dir"`
	AppVersion      string             `json:"app_version" mapstructure:"app_version"`
	VersionTimeout  time.Duration      `json:"version_timeout" mapstructure:"version_timeout"`
	DownloadTimeout time.Duration      `json:"download_timeout" mapstructure:"download_timeout"`
	RetryCount      int                `json:"retry_count" mapstructure:"retry_count"`
	SyncInterval    time.Duration      `json:"sync_interval" mapstructure:"sync_interval"`
	ControlPlane    ControlPlaneConfig `json:"control_plane" mapstructure:"control_plane"`
	Path            string             `json:"-" mapstructure:"config_path"`
}

// Validate normalizes paths and fills defaults
func (c *Config) Validate() error {
	var err error

	if c.DataDir == "" {
		return ErrNoDataDir
	}
	if c.DataDir, err = utils.ResolvePath(c.DataDir); err != nil {
		return fmt.Errorf("config: data dir: %w", err)
	}

	if c.InnerDir == "" {
		return ErrNoInnerDir
	}
	if c.InnerDir, err = utils.ResolvePath(c.InnerDir); err != nil {
		return fmt.Errorf("config: inner dir: %w", err)
	}
	if c.InnerDir == c.OuterDir() {
		return fmt.Errorf("config: inner dir must differ from %q", c.OuterDir())
	}

	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	if !utils.IsValidURL(c.ServerURL) {
		return fmt.Errorf("config: invalid server url %q", c.ServerURL)
	}

	c.Platform = strings.Trim(c.Platform, "/")
	if c.Platform == "" {
		return ErrNoPlatform
	}
	if strings.ContainsAny(c.Platform, `/\`) {
		return fmt.Errorf("config: invalid platform %q", c.Platform)
	}

	if c.AppVersion == "" {
		c.AppVersion = DefaultAppVersion
	} else if !manifest.ValidVersion(c.AppVersion) {
		return fmt.Errorf("config: app version %q is not x.y.z", c.AppVersion)
	}

	if c.VersionTimeout <= 0 {
		c.VersionTimeout = DefaultVersionTimeout
	}
	if c.DownloadTimeout < 0 {
		c.DownloadTimeout = 0
	}
	if c.RetryCount < 0 {
		c.RetryCount = 0
	}
	if c.SyncInterval < 0 {
		c.SyncInterval = 0
	}

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config: path: %w", err)
		}
	}
	return nil
}

// OuterDir is the writable store, `{data}/Bundles`
func (c *Config) OuterDir() string {
	return filepath.Join(c.DataDir, outerDirName)
}

// MetaDir holds client state that is not content, `{data}/.data`
func (c *Config) MetaDir() string {
	return filepath.Join(c.DataDir, metaDirName)
}

func (c *Config) HistoryPath() string {
	return filepath.Join(c.MetaDir(), historyName)
}

// Save writes the config to its Path
func (c *Config) Save() error {
	if c.Path == "" {
		return fmt.Errorf("config: path not set")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}
	return utils.WriteFileAtomic(c.Path, data, 0o644)
}

// LoadFromFile reads a saved config. The result is not validated.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Path = path
	return &cfg, nil
}

// Default is an unvalidated config with every default applied
func Default() *Config {
	return &Config{
		ServerURL:       DefaultServerURL,
		Platform:        DefaultPlatform,
		DataDir:         DefaultDataDir,
		AppVersion:      DefaultAppVersion,
		VersionTimeout:  DefaultVersionTimeout,
		DownloadTimeout: DefaultDownloadTimeout,
		RetryCount:      DefaultRetryCount,
		ControlPlane:    ControlPlaneConfig{Addr: DefaultControlAddr},
		Path:            DefaultConfigPath,
	}
}
