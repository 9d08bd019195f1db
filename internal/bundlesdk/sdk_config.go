package bundlesdk

import (
	"errors"
	"time"

	"github.com/bundlesync/bundlesync/internal/utils"
)

const (
	DefaultVersionTimeout = 5 * time.Second
	DefaultRetryInterval  = time.Second
)

var (
	ErrNoServerURL  = errors.New("sdk: server url missing")
	ErrBadServerURL = errors.New("sdk: server url must be http(s)")
	ErrNoPlatform   = errors.New("sdk: platform missing")
)

// Config is the configuration for the SDK
type Config struct {
	BaseURL         string        // BaseURL is required
	Platform        string        // Platform is required, remote root is {BaseURL}/{Platform}/
	AppVersion      string        // AppVersion is optional, sent as a header
	VersionTimeout  time.Duration // bound for the version tag request
	DownloadTimeout time.Duration // per file bound, zero means none
	RetryCount      int           // retries for manifest and file requests, zero disables them
	RetryInterval   time.Duration
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}
	if !utils.IsValidURL(c.BaseURL) {
		return ErrBadServerURL
	}
	if c.Platform == "" {
		return ErrNoPlatform
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.VersionTimeout <= 0 {
		c.VersionTimeout = DefaultVersionTimeout
	}
	if c.RetryCount < 0 {
		c.RetryCount = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
}
