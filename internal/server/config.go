package server

import (
	"fmt"

	"github.com/bundlesync/bundlesync/internal/server/blob"
	"github.com/ulule/limiter/v3"
)

const (
	DefaultAddr      = "127.0.0.1:8080"
	DefaultRateLimit = "100-S"
)

type Config struct {
	Http      HttpServerConfig `mapstructure:"http"`
	Blob      blob.Config      `mapstructure:"blob"`
	RateLimit string           `mapstructure:"rate_limit"`
}

type HttpServerConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

func (c *HttpServerConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *Config) Validate() error {
	if c.Http.Addr == "" {
		c.Http.Addr = DefaultAddr
	}
	if (c.Http.CertFile == "") != (c.Http.KeyFile == "") {
		return fmt.Errorf("http: both `cert_file` and `key_file` are required for tls")
	}
	if c.RateLimit == "" {
		c.RateLimit = DefaultRateLimit
	}
	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		return fmt.Errorf("invalid rate limit %q: %w", c.RateLimit, err)
	}
	if err := c.Blob.Validate(); err != nil {
		return fmt.Errorf("blob: %w", err)
	}
	return nil
}
