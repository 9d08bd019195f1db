package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/bundlesync/bundlesync/internal/version"
	"github.com/gin-gonic/gin"
)

// StatusHandler handles status-related endpoints
type StatusHandler struct {
	client Client
}

func NewStatusHandler(client Client) *StatusHandler {
	return &StatusHandler{client: client}
}

// Status returns the client version, the local tags and the last round
func (h *StatusHandler) Status(c *gin.Context) {
	if h.client == nil {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeClientNotReady, errors.New("client not initialized"))
		return
	}

	inner, outer := h.client.LocalTags()
	resp := &StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
		Revision:  version.Revision,
		BuildDate: version.BuildDate,
		Platform:  h.client.Platform(),
		State:     h.client.State(),
		InnerTag:  inner,
		OuterTag:  outer,
		LastSync:  h.client.LastResult(),
	}
	if loc, ok := h.client.Catalog(); ok {
		resp.Catalog = loc.URI()
	}

	c.PureJSON(http.StatusOK, resp)
}
