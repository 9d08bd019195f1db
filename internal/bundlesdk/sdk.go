// Package bundlesdk talks to the distribution server: it fetches the published
// version tag and manifests of one platform and downloads content files.
package bundlesdk

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/bundlesync/bundlesync/internal/utils"
	"github.com/imroc/req/v3"
)

// SDK is the client for one platform root of a distribution server
type SDK struct {
	client *req.Client
	config *Config
	root   string
}

// New creates a new SDK client
func New(config *Config) (*SDK, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	client := HTTPClient.Clone().
		SetCommonRetryCount(config.RetryCount).
		SetCommonRetryFixedInterval(config.RetryInterval)
	if config.AppVersion != "" {
		client.SetCommonHeader(HeaderAppVersion, config.AppVersion)
	}

	return &SDK{
		client: client,
		config: config,
		root:   utils.JoinURL(config.BaseURL, url.PathEscape(config.Platform)),
	}, nil
}

// Close releases idle connections
func (s *SDK) Close() {
	s.client.GetClient().CloseIdleConnections()
}

// Client exposes the underlying HTTP client, mainly for tests
func (s *SDK) Client() *req.Client {
	return s.client
}

// Root is the platform root URL, `{base}/{platform}`
func (s *SDK) Root() string {
	return s.root
}

// URL returns the remote URL of a slash separated content name
func (s *SDK) URL(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.root + "/" + strings.Join(parts, "/")
}

// FetchVersionTag fetches the published tag. It is bounded by the version timeout and never retried.
func (s *SDK) FetchVersionTag(ctx context.Context) (manifest.VersionTag, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.VersionTimeout)
	defer cancel()

	u := s.URL(manifest.VersionFileName)
	resp, err := s.client.R().
		SetContext(ctx).
		SetRetryCount(0).
		SetHeader("Cache-Control", "no-cache").
		Get(u)
	if err := handleAPIError(resp, err, "fetch version", u); err != nil {
		return "", err
	}

	tag := manifest.ParseVersionTag(resp.String())
	if tag.IsZero() {
		return "", &TransportError{Code: CodeEmpty, Op: "fetch version", URL: u, Err: fmt.Errorf("empty version tag")}
	}
	return tag, nil
}

// FetchManifest fetches the manifest published for version.
// The raw bytes are returned too so the caller can check them against the tag digest.
func (s *SDK) FetchManifest(ctx context.Context, version string) (*manifest.Manifest, []byte, error) {
	u := s.URL(manifest.RemoteFileListName(version))
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Cache-Control", "no-cache").
		Get(u)
	if err := handleAPIError(resp, err, "fetch manifest", u); err != nil {
		return nil, nil, err
	}

	raw := resp.Bytes()
	m, err := manifest.Decode(raw)
	if err != nil {
		return nil, raw, &TransportError{Code: CodeBadContent, Op: "fetch manifest", URL: u, Err: err}
	}
	return m, raw, nil
}

// Download streams the named content file into dest and returns the bytes written.
// dest is removed again if the request fails.
func (s *SDK) Download(ctx context.Context, name, dest string, progress ProgressFunc) (int64, error) {
	if err := utils.EnsureParent(dest); err != nil {
		return 0, fmt.Errorf("sdk: download %q: %w", name, err)
	}

	if s.config.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.DownloadTimeout)
		defer cancel()
	}

	u := s.URL(name)
	resp, err := s.client.R().
		SetContext(ctx).
		SetOutputFile(dest).
		SetDownloadCallbackWithInterval(func(info req.DownloadInfo) {
			if info.Response.Response != nil && progress != nil {
				progress(info.DownloadedSize, info.Response.ContentLength)
			}
		}, 200*time.Millisecond).
		Get(u)

	if err := handleAPIError(resp, err, "download", u); err != nil {
		// the error body is dumped into dest because of SetOutputFile
		if rmErr := os.Remove(dest); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("sdk download cleanup", "path", dest, "error", rmErr)
		}
		return 0, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, fmt.Errorf("sdk: download %q: %w", name, err)
	}
	if progress != nil {
		progress(info.Size(), info.Size())
	}
	return info.Size(), nil
}

// ListVersions asks the distribution server for the versions it publishes for this platform
func (s *SDK) ListVersions(ctx context.Context) ([]*VersionInfo, error) {
	u := utils.JoinURL(s.config.BaseURL, "api/v1", url.PathEscape(s.config.Platform), "versions")
	var versions []*VersionInfo
	resp, err := s.client.R().
		SetContext(ctx).
		SetSuccessResult(&versions).
		Get(u)
	if err := handleAPIError(resp, err, "list versions", u); err != nil {
		return nil, err
	}
	return versions, nil
}
