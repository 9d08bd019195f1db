package handlers

import (
	"errors"
	"net/http"

	"github.com/bundlesync/bundlesync/internal/client/resolver"
	"github.com/gin-gonic/gin"
)

type ResolveResponse struct {
	resolver.Location
	URI string `json:"uri"`
}

type ResolveHandler struct {
	client Client
}

func NewResolveHandler(client Client) *ResolveHandler {
	return &ResolveHandler{client: client}
}

// Resolve maps `?id=` to the location the application should load it from
func (h *ResolveHandler) Resolve(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("query `id` is required"))
		return
	}

	loc := h.client.Resolve(id)
	c.PureJSON(http.StatusOK, &ResolveResponse{Location: loc, URI: loc.URI()})
}

// Catalog returns the location of the active catalog
func (h *ResolveHandler) Catalog(c *gin.Context) {
	loc, ok := h.client.Catalog()
	if !ok {
		AbortWithError(c, http.StatusNotFound, ErrCodeNotFound, errors.New("no catalog in either store"))
		return
	}
	c.PureJSON(http.StatusOK, &ResolveResponse{Location: loc, URI: loc.URI()})
}
