package blob

import (
	"fmt"

	"github.com/bundlesync/bundlesync/internal/utils"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

type Config struct {
	// Backend is `local` (default) or `s3`
	Backend string `mapstructure:"backend"`
	// Root is the directory served by the local backend
	Root string   `mapstructure:"root"`
	S3   S3Config `mapstructure:"s3"`
}

func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendLocal:
		c.Backend = BackendLocal
		if c.Root == "" {
			return fmt.Errorf("blob `root` required for the local backend")
		}
		root, err := utils.ResolvePath(c.Root)
		if err != nil {
			return fmt.Errorf("blob root: %w", err)
		}
		c.Root = root
		return nil
	case BackendS3:
		return c.S3.Validate()
	default:
		return fmt.Errorf("unknown blob backend %q", c.Backend)
	}
}

// NewBackend creates the backend named by the config
func NewBackend(c *Config) (Backend, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Backend == BackendS3 {
		return NewS3BackendWithConfig(&c.S3)
	}
	return NewLocalBackend(c.Root)
}

type S3Config struct {
	BucketName    string `mapstructure:"bucket_name"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Endpoint      string `mapstructure:"endpoint"`
	UseAccelerate bool   `mapstructure:"use_accelerate"`
}

func (c *S3Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("bucket_name required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("access_key required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key required")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
	}
	return nil
}
