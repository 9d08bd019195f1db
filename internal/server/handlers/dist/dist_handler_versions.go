package dist

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/bundlesync/bundlesync/internal/bundlesdk"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/bundlesync/bundlesync/internal/server/blob"
	"github.com/bundlesync/bundlesync/internal/server/handlers/api"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const manifestReadConcurrency = 8

// Versions lists the manifests published for a platform, oldest first
func (h *DistHandler) Versions(ctx *gin.Context) {
	platform := ctx.Param("platform")
	if platform == "" || !blob.ValidateKey(platform) || strings.Contains(platform, "/") {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid platform %q", platform))
		return
	}

	objects, err := h.backend.ListObjects(ctx.Request.Context(), platform+"/")
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeBlobListFailed, err)
		return
	}

	current := ""
	if tag, err := h.currentTag(ctx, platform); err == nil {
		current = tag.Version()
	} else if !errors.Is(err, blob.ErrNotFound) {
		slog.Warn("versions read tag", "platform", platform, "error", err)
	}

	var mu sync.Mutex
	versions := make([]*bundlesdk.VersionInfo, 0)
	eg, _ := errgroup.WithContext(ctx.Request.Context())
	eg.SetLimit(manifestReadConcurrency)

	for _, obj := range objects {
		name := strings.TrimPrefix(obj.Key, platform+"/")
		v, ok := manifest.VersionFromFileListName(name)
		if !ok || strings.Contains(name, "/") {
			continue
		}

		eg.Go(func() error {
			info := &bundlesdk.VersionInfo{Version: v, FileList: name, Current: v == current}
			if m, err := h.readManifest(ctx, obj); err != nil {
				slog.Warn("versions unreadable manifest", "key", obj.Key, "error", err)
			} else {
				info.Files = m.Len()
				info.TotalSize = m.TotalSize()
			}

			mu.Lock()
			versions = append(versions, info)
			mu.Unlock()
			return nil
		})
	}
	eg.Wait()

	if len(versions) == 0 && current == "" {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodePlatformNotFound, fmt.Errorf("nothing published for %q", platform))
		return
	}

	sort.Slice(versions, func(i, j int) bool {
		a, b := manifest.ParseSemVer(versions[i].Version), manifest.ParseSemVer(versions[j].Version)
		if c := a.Compare(b); c != 0 {
			return c < 0
		}
		return versions[i].Version < versions[j].Version
	})

	ctx.PureJSON(http.StatusOK, versions)
}
