package dist

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/bundlesync/bundlesync/internal/server/blob"
	"github.com/bundlesync/bundlesync/internal/server/handlers/api"
	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
)

const manifestCacheSize = 256

// DistHandler serves the published platform roots
type DistHandler struct {
	backend   blob.Backend
	manifests *lru.Cache[string, *manifest.Manifest]
}

func New(backend blob.Backend) *DistHandler {
	manifests, _ := lru.New[string, *manifest.Manifest](manifestCacheSize)
	return &DistHandler{backend: backend, manifests: manifests}
}

// File streams `/{platform}/{name}` with its ETag. The version tag is never cached by clients.
func (h *DistHandler) File(ctx *gin.Context) {
	platform := ctx.Param("platform")
	name := strings.TrimPrefix(ctx.Param("file"), "/")
	key := blob.Key(platform, name)
	if !blob.ValidateKey(name) || !blob.ValidateKey(key) {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidPath, fmt.Errorf("invalid path %q", ctx.Request.URL.Path))
		return
	}

	if ctx.Request.Method == http.MethodHead {
		info, err := h.backend.HeadObject(ctx.Request.Context(), key)
		if err != nil {
			abortWithBlobError(ctx, key, err)
			return
		}
		setObjectHeaders(ctx, name, info.ETag)
		ctx.Header("Content-Length", fmt.Sprint(info.Size))
		ctx.Header("Content-Type", contentType(name))
		ctx.Status(http.StatusOK)
		return
	}

	obj, err := h.backend.GetObject(ctx.Request.Context(), key)
	if err != nil {
		abortWithBlobError(ctx, key, err)
		return
	}
	defer obj.Body.Close()

	setObjectHeaders(ctx, name, obj.ETag)
	if !obj.LastModified.IsZero() {
		ctx.Header("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}
	if match := ctx.GetHeader("If-None-Match"); match != "" && match == quote(obj.ETag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.DataFromReader(http.StatusOK, obj.Size, contentType(name), obj.Body, nil)
}

func (h *DistHandler) readManifest(ctx *gin.Context, info *blob.BlobInfo) (*manifest.Manifest, error) {
	cacheKey := info.Key + "@" + info.ETag
	if m, ok := h.manifests.Get(cacheKey); ok {
		return m, nil
	}

	obj, err := h.backend.GetObject(ctx.Request.Context(), info.Key)
	if err != nil {
		return nil, err
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Decode(data)
	if err != nil {
		return nil, err
	}
	h.manifests.Add(cacheKey, m)
	return m, nil
}

func (h *DistHandler) currentTag(ctx *gin.Context, platform string) (manifest.VersionTag, error) {
	obj, err := h.backend.GetObject(ctx.Request.Context(), blob.Key(platform, manifest.VersionFileName))
	if err != nil {
		return "", err
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(io.LimitReader(obj.Body, 1024))
	if err != nil {
		return "", err
	}
	return manifest.ParseVersionTag(string(data)), nil
}

func setObjectHeaders(ctx *gin.Context, name, etag string) {
	if etag != "" {
		ctx.Header("ETag", quote(etag))
	}
	if path.Base(name) == manifest.VersionFileName {
		ctx.Header("Cache-Control", "no-cache")
	} else {
		ctx.Header("Cache-Control", "public, max-age=60")
	}
}

func abortWithBlobError(ctx *gin.Context, key string, err error) {
	switch {
	case errors.Is(err, blob.ErrNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeFileNotFound, fmt.Errorf("%s not found", key))
	case errors.Is(err, blob.ErrInvalidKey):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidPath, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeBlobGetFailed, err)
	}
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".json":
		return "application/json"
	case ".txt", ".hash":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func quote(etag string) string {
	return `"` + etag + `"`
}
