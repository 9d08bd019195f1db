package handlers

import (
	"errors"
	"net/http"

	bsync "github.com/bundlesync/bundlesync/internal/client/sync"
	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	client Client
}

func NewSyncHandler(client Client) *SyncHandler {
	return &SyncHandler{client: client}
}

// Now starts a sync round bound to the client lifetime. With `?wait=true` the response
// carries the round result, otherwise it is 202 right away.
func (h *SyncHandler) Now(c *gin.Context) {
	ch := h.client.SyncAsync()

	if c.Query("wait") != "true" {
		c.PureJSON(http.StatusAccepted, &SyncTriggerResponse{
			Code:  CodeOk,
			State: h.client.State(),
		})
		return
	}

	select {
	case <-c.Request.Context().Done():
		return
	case r := <-ch:
		res, _ := r.Val.(*bsync.Result)
		if r.Err != nil {
			status, code := syncErrorStatus(r.Err)
			if res == nil {
				AbortWithError(c, status, code, r.Err)
				return
			}
			c.Error(r.Err)
			c.PureJSON(status, &SyncResultResponse{Code: code, Shared: r.Shared, Result: res})
			return
		}
		c.PureJSON(http.StatusOK, &SyncResultResponse{Code: CodeOk, Shared: r.Shared, Result: res})
	}
}

func syncErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, bsync.ErrSyncAlreadyRunning):
		return http.StatusConflict, ErrCodeSyncRunning
	case errors.Is(err, bsync.ErrForceUpgradeRequired):
		return http.StatusConflict, ErrCodeForceUpgrade
	default:
		return http.StatusInternalServerError, ErrCodeUnknownError
	}
}
