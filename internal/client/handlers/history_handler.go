package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	bsync "github.com/bundlesync/bundlesync/internal/client/sync"
	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

type HistoryResponse struct {
	Rounds []*bsync.HistoryEntry `json:"rounds"`
}

type HistoryHandler struct {
	client Client
}

func NewHistoryHandler(client Client) *HistoryHandler {
	return &HistoryHandler{client: client}
}

// History lists recorded rounds, newest first. `?limit=` defaults to 20.
func (h *HistoryHandler) History(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Errorf("limit must be between 1 and %d", maxHistoryLimit))
			return
		}
		limit = n
	}

	rounds, err := h.client.History(limit)
	if errors.Is(err, bsync.ErrHistoryNotOpen) {
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeHistoryDisabled, err)
		return
	} else if err != nil {
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
		return
	}

	if rounds == nil {
		rounds = []*bsync.HistoryEntry{}
	}
	c.PureJSON(http.StatusOK, &HistoryResponse{Rounds: rounds})
}
