package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bundlesync/bundlesync/internal/bundlesdk"
	"github.com/bundlesync/bundlesync/internal/checksum"
	"github.com/bundlesync/bundlesync/internal/client/store"
	bsync "github.com/bundlesync/bundlesync/internal/client/sync"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.LocalStore {
	t.Helper()
	root := t.TempDir()
	st, err := store.New(filepath.Join(root, "inner"), filepath.Join(root, "outer"))
	require.NoError(t, err)
	return st
}

func writeStore(t *testing.T, st *store.LocalStore, d store.Domain, files map[string]string, withManifest bool) {
	t.Helper()
	m := manifest.New("1.0.0")
	for name, content := range files {
		p := filepath.Join(st.Dir(d), filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		m.Put(manifest.FileEntry{Name: name, Hash: checksum.DigestBytes([]byte(content)), Size: int64(len(content))})
	}
	if withManifest {
		raw, err := m.Encode()
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(st.Dir(d), manifest.FileListName), raw, 0o644))
	}
}

func TestResolve_Precedence(t *testing.T) {
	st := newStore(t)
	writeStore(t, st, store.Inner, map[string]string{"both.bundle": "inner", "inner.bundle": "i"}, true)
	writeStore(t, st, store.Outer, map[string]string{"both.bundle": "outer", "outer.bundle": "o"}, false)

	r, err := New(st, "Android", 0)
	require.NoError(t, err)

	loc := r.Resolve("both.bundle")
	assert.Equal(t, SourceOuter, loc.Source)
	assert.Equal(t, filepath.Join(st.Dir(store.Outer), "both.bundle"), loc.Path)

	loc = r.Resolve("inner.bundle")
	assert.Equal(t, SourceInner, loc.Source)
	assert.Equal(t, filepath.Join(st.Dir(store.Inner), "inner.bundle"), loc.Path)

	loc = r.Resolve("outer.bundle")
	assert.Equal(t, SourceOuter, loc.Source)

	loc = r.Resolve("unknown.bundle")
	assert.Equal(t, SourcePassThrough, loc.Source)
	assert.Equal(t, "unknown.bundle", loc.Path)
	assert.False(t, loc.Local())
}

func TestResolve_InnerRequiresManifestEntry(t *testing.T) {
	st := newStore(t)
	writeStore(t, st, store.Inner, map[string]string{"listed.bundle": "l"}, true)
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(store.Inner), "unlisted.bundle"), []byte("u"), 0o644))

	r, err := New(st, "Android", 0)
	require.NoError(t, err)

	assert.Equal(t, SourceInner, r.Resolve("listed.bundle").Source)
	assert.Equal(t, SourcePassThrough, r.Resolve("unlisted.bundle").Source)
}

func TestResolve_RemoteURLs(t *testing.T) {
	st := newStore(t)
	writeStore(t, st, store.Outer, map[string]string{"sub/level.bundle": "x", "flat.bundle": "y"}, false)

	r, err := New(st, "Android", 0)
	require.NoError(t, err)

	loc := r.Resolve("https://cdn.example.com/ServerData/Android/sub/level.bundle")
	assert.Equal(t, SourceOuter, loc.Source)
	assert.Equal(t, "sub/level.bundle", loc.Name)

	loc = r.Resolve("http://cdn.example.com/other/flat.bundle")
	assert.Equal(t, SourceOuter, loc.Source, "falls back to the base name")

	id := "https://cdn.example.com/Android/missing.bundle"
	loc = r.Resolve(id)
	assert.Equal(t, SourcePassThrough, loc.Source)
	assert.Equal(t, id, loc.URI(), "remote ids stream directly")
}

func TestName(t *testing.T) {
	r, err := New(newStore(t), "iOS", 0)
	require.NoError(t, err)

	cases := []struct{ id, want string }{
		{"a.bundle", "a.bundle"},
		{`dir\a.bundle`, "dir/a.bundle"},
		{"ftp://host/root/iOS/x/y.bundle", "x/y.bundle"},
		{"HTTPS://host/iOS/iOS/z.bundle", "z.bundle"},
		{"https://host/files/w.bundle?token=abc", "w.bundle"},
		{"https://host/iOS/with%20space.bundle", "with space.bundle"},
	}
	for _, c := range cases {
		got, ok := r.Name(c.id)
		assert.True(t, ok, c.id)
		assert.Equal(t, c.want, got, c.id)
	}

	for _, id := range []string{"", "../escape.bundle", "/abs/a.bundle", manifest.FileListName, "https://host/"} {
		_, ok := r.Name(id)
		assert.False(t, ok, id)
	}
}

func TestResolve_CacheFollowsStoreChanges(t *testing.T) {
	st := newStore(t)
	writeStore(t, st, store.Inner, map[string]string{"a.bundle": "inner"}, true)

	r, err := New(st, "Android", 8)
	require.NoError(t, err)
	assert.Equal(t, SourceInner, r.Resolve("a.bundle").Source)

	tmp, err := st.TempPath("a.bundle")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tmp, []byte("outer"), 0o644))
	require.NoError(t, st.CommitFile(tmp, "a.bundle"))

	assert.Equal(t, SourceOuter, r.Resolve("a.bundle").Source, "cached answer invalidated by the commit")

	require.NoError(t, st.RemoveFile("a.bundle"))
	assert.Equal(t, SourceInner, r.Resolve("a.bundle").Source)
}

func TestCatalog(t *testing.T) {
	st := newStore(t)
	writeStore(t, st, store.Inner, map[string]string{"catalog_1.json": "{}"}, true)

	r, err := New(st, "Android", 0)
	require.NoError(t, err)

	_, ok := r.Catalog()
	assert.False(t, ok, "nothing recorded yet")

	st.SetCatalog("catalog_1.json")
	loc, ok := r.Catalog()
	require.True(t, ok)
	assert.Equal(t, SourceInner, loc.Source)
	assert.Contains(t, loc.URI(), "file://")
}

// remote serving one published version for the end-to-end scenario
type staticRemote struct {
	tag   manifest.VersionTag
	raw   []byte
	files map[string]string
}

func (s *staticRemote) FetchVersionTag(context.Context) (manifest.VersionTag, error) {
	return s.tag, nil
}

func (s *staticRemote) FetchManifest(_ context.Context, version string) (*manifest.Manifest, []byte, error) {
	m, err := manifest.Decode(s.raw)
	return m, s.raw, err
}

func (s *staticRemote) Download(_ context.Context, name, dest string, _ bundlesdk.ProgressFunc) (int64, error) {
	data := []byte(s.files[name])
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	return int64(len(data)), os.WriteFile(dest, data, 0o644)
}

func TestEndToEnd_SyncThenResolve(t *testing.T) {
	st := newStore(t)
	writeStore(t, st, store.Inner, map[string]string{"A.bundle": "hash a"}, true)

	files := map[string]string{"A.bundle": "hash a", "B.bundle": "hash b"}
	remoteManifest := manifest.New("1.0.0")
	for name, content := range files {
		remoteManifest.Put(manifest.FileEntry{Name: name, Hash: checksum.DigestBytes([]byte(content)), Size: int64(len(content))})
	}
	remoteManifest.Sort()
	raw, err := remoteManifest.Encode()
	require.NoError(t, err)
	remote := &staticRemote{tag: manifest.NewVersionTag("1.0.0", checksum.DigestBytes(raw)), raw: raw, files: files}

	engine, err := bsync.NewEngine(st, remote, &bsync.Options{AppVersion: "1.0.0"})
	require.NoError(t, err)
	r, err := New(st, "Android", 0)
	require.NoError(t, err)

	// before sync B streams from the remote
	assert.Equal(t, SourcePassThrough, r.Resolve("https://cdn.example.com/Android/B.bundle").Source)

	res, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"B.bundle"}, res.Downloaded)
	assert.Equal(t, []string{"A.bundle", "B.bundle"}, st.ReadManifest(store.Outer).Names())

	assert.Equal(t, SourceInner, r.Resolve("A.bundle").Source)
	assert.Equal(t, SourceOuter, r.Resolve("B.bundle").Source)
	assert.Equal(t, SourceOuter, r.Resolve("https://cdn.example.com/Android/B.bundle").Source)
}
