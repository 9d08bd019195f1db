package handlers

import (
	"context"

	"github.com/bundlesync/bundlesync/internal/client/resolver"
	bsync "github.com/bundlesync/bundlesync/internal/client/sync"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

const (
	CodeOk                 string = "OK"
	ErrCodeBadRequest      string = "ERR_BAD_REQUEST"
	ErrCodeNotFound        string = "ERR_NOT_FOUND"
	ErrCodeUnknownError    string = "ERR_UNKNOWN_ERROR"
	ErrCodeSyncRunning     string = "ERR_SYNC_RUNNING"
	ErrCodeForceUpgrade    string = "ERR_FORCE_UPGRADE_REQUIRED"
	ErrCodeHistoryDisabled string = "ERR_HISTORY_DISABLED"
	ErrCodeClientNotReady  string = "ERR_CLIENT_NOT_READY"
)

// Client is the part of the sync client the control plane drives
type Client interface {
	Platform() string
	State() bsync.State
	LastResult() *bsync.Result
	LocalTags() (inner, outer manifest.VersionTag)
	Sync(ctx context.Context) (*bsync.Result, error)
	SyncAsync() <-chan singleflight.Result
	Resolve(id string) resolver.Location
	Catalog() (resolver.Location, bool)
	History(limit int) ([]*bsync.HistoryEntry, error)
}

type ControlPlaneResponse struct {
	Code string `json:"code"`
}

type ControlPlaneError struct {
	ErrorCode string `json:"code"`
	Error     string `json:"error"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	c.Error(err)
	c.PureJSON(status, ControlPlaneError{
		ErrorCode: code,
		Error:     err.Error(),
	})
}
