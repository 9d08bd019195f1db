package bundlesdk

import (
	"github.com/bundlesync/bundlesync/internal/utils"
	"github.com/bundlesync/bundlesync/internal/version"
	"github.com/imroc/req/v3"
)

const (
	HeaderUserAgent     = "User-Agent"
	HeaderClientVersion = "X-Bundle-Client-Version"
	HeaderDeviceId      = "X-Bundle-Device-Id"
	HeaderAppVersion    = "X-Bundle-App-Version"
)

// A simple HTTP client with some common values set.
// Timeouts come from the request context so large downloads are not cut off.
var HTTPClient = req.C().
	SetTimeout(0).
	SetUserAgent(version.UserAgent()).
	SetCommonHeader(HeaderClientVersion, version.Version).
	SetCommonHeader(HeaderDeviceId, utils.HWID).
	SetJsonMarshal(jsonMarshal).
	SetJsonUnmarshal(jsonUnmarshal)

// ProgressFunc receives the bytes downloaded so far and the expected total (-1 when unknown).
type ProgressFunc func(downloaded, total int64)

// VersionInfo is one published version as reported by the distribution server.
type VersionInfo struct {
	Version   string `json:"version"`
	FileList  string `json:"fileList"`
	Current   bool   `json:"current"`
	Files     int    `json:"files"`
	TotalSize int64  `json:"totalSize"`
}
