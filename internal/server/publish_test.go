package server

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/bundlesync/bundlesync/internal/server/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBackend remembers the order objects were put in
type recordingBackend struct {
	blob.Backend
	mu   sync.Mutex
	puts []string
}

func (r *recordingBackend) PutObject(ctx context.Context, params *blob.PutObjectParams) (*blob.PutObjectResponse, error) {
	r.mu.Lock()
	r.puts = append(r.puts, params.Key)
	r.mu.Unlock()
	return r.Backend.PutObject(ctx, params)
}

func newPublishBackend(t *testing.T) (*recordingBackend, string) {
	t.Helper()
	root := t.TempDir()
	local, err := blob.NewLocalBackend(root)
	require.NoError(t, err)
	return &recordingBackend{Backend: local}, root
}

func TestPublish_UploadsTagLast(t *testing.T) {
	src := t.TempDir()
	tag := writeRelease(t, src, "1.0.0", map[string]string{
		"a.bundle":          "aaaa",
		"b.bundle":          "bb",
		"catalog_main.json": "{}",
	})
	backend, root := newPublishBackend(t)

	res, err := Publish(context.Background(), backend, src, testPlatform, &PublishOptions{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, tag, res.Tag)
	assert.Len(t, res.Uploaded, 5)
	assert.Empty(t, res.Skipped)

	require.Len(t, backend.puts, 5)
	assert.Equal(t, "Android/version.txt", backend.puts[4])
	assert.Equal(t, "Android/filelist_1.0.0.json", backend.puts[3])

	data, err := os.ReadFile(filepath.Join(root, testPlatform, manifest.VersionFileName))
	require.NoError(t, err)
	assert.Equal(t, tag.String(), string(data))

	obj, err := backend.GetObject(context.Background(), "Android/a.bundle")
	require.NoError(t, err)
	body, _ := io.ReadAll(obj.Body)
	obj.Body.Close()
	assert.Equal(t, "aaaa", string(body))
}

func TestPublish_SkipsUnchanged(t *testing.T) {
	src := t.TempDir()
	writeRelease(t, src, "1.0.0", map[string]string{"a.bundle": "aaaa"})
	backend, _ := newPublishBackend(t)

	_, err := Publish(context.Background(), backend, src, testPlatform, nil)
	require.NoError(t, err)

	tag := writeRelease(t, src, "1.1.0", map[string]string{"a.bundle": "aaaa", "b.bundle": "new"})
	backend.puts = nil

	res, err := Publish(context.Background(), backend, src, testPlatform, nil)
	require.NoError(t, err)
	assert.Equal(t, tag, res.Tag)
	assert.Equal(t, []string{"b.bundle", "filelist_1.1.0.json", "version.txt"}, res.Uploaded)
	assert.Equal(t, []string{"a.bundle", "filelist_1.0.0.json"}, res.Skipped)
	assert.Equal(t, "Android/version.txt", backend.puts[len(backend.puts)-1])

	res, err = Publish(context.Background(), backend, src, testPlatform, &PublishOptions{Force: true})
	require.NoError(t, err)
	assert.Len(t, res.Uploaded, 5)
}

func TestPublish_SkipsBundledDir(t *testing.T) {
	src := t.TempDir()
	writeRelease(t, src, "1.0.0", map[string]string{"a.bundle": "aaaa"})
	bundled := filepath.Join(src, manifest.BundledDirName)
	require.NoError(t, os.MkdirAll(bundled, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundled, "a.bundle"), []byte("aaaa"), 0o644))
	backend, _ := newPublishBackend(t)

	res, err := Publish(context.Background(), backend, src, testPlatform, nil)
	require.NoError(t, err)
	assert.NotContains(t, res.Uploaded, "Bundles/a.bundle")
	assert.Len(t, res.Uploaded, 3)
}

func TestPublish_RejectsInconsistentRoot(t *testing.T) {
	backend, _ := newPublishBackend(t)

	_, err := Publish(context.Background(), backend, t.TempDir(), testPlatform, nil)
	assert.ErrorIs(t, err, ErrNotPublished)

	src := t.TempDir()
	writeRelease(t, src, "1.0.0", map[string]string{"a.bundle": "aaaa"})
	require.NoError(t, os.WriteFile(filepath.Join(src, manifest.RemoteFileListName("1.0.0")), []byte(`{"version":"1.0.0","files":[]}`), 0o644))

	_, err = Publish(context.Background(), backend, src, testPlatform, nil)
	assert.ErrorIs(t, err, ErrTagMismatch)
	assert.Empty(t, backend.puts)
}
