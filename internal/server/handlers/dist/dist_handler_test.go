package dist

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bundlesync/bundlesync/internal/server/blob"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	root := t.TempDir()
	backend, err := blob.NewLocalBackend(root)
	require.NoError(t, err)

	h := New(backend)
	r := gin.New()
	r.GET("/api/v1/:platform/versions", h.Versions)
	r.GET("/:platform/*file", h.File)
	return r, root
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"filelist_1.0.0.json", "application/json"},
		{"version.txt", "text/plain; charset=utf-8"},
		{"catalog_main.hash", "text/plain; charset=utf-8"},
		{"a.bundle", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, contentType(tt.name), tt.name)
	}
}

func TestFile_CacheControl(t *testing.T) {
	r, root := newRouter(t)
	dir := filepath.Join(root, "Android", "sub")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.bundle"), []byte("x"), 0o644))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/Android/sub/x.bundle", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("Last-Modified"))
}

func TestVersions_SkipsNestedAndEmpty(t *testing.T) {
	r, root := newRouter(t)
	dir := filepath.Join(root, "Android", "old")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "filelist_0.9.0.json"), []byte(`{"version":"0.9.0","files":[]}`), 0o644))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/Android/versions", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, os.WriteFile(filepath.Join(root, "Android", "filelist_1.0.0.json"), []byte("not json"), 0o644))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/Android/versions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"version":"1.0.0","fileList":"filelist_1.0.0.json","current":false,"files":0,"totalSize":0}]`, w.Body.String())
}
