package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publish(t *testing.T, root, version string, entries ...manifest.FileEntry) {
	t.Helper()
	data, err := manifest.New(version, entries...).Encode()
	require.NoError(t, err)
	writeFile(t, root, manifest.RemoteFileListName(version), string(data))
}

func newPublishedRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	publish(t, root, "1.0.0",
		manifest.FileEntry{Name: "catalog_1.json", Hash: "c1", Size: 2},
		manifest.FileEntry{Name: "shared.bundle", Hash: "s", Size: 3},
		manifest.FileEntry{Name: "old.bundle", Hash: "o", Size: 4},
	)
	publish(t, root, "1.10.0",
		manifest.FileEntry{Name: "catalog_3.json", Hash: "c3", Size: 2},
		manifest.FileEntry{Name: "shared.bundle", Hash: "s", Size: 3},
	)
	publish(t, root, "1.2.0",
		manifest.FileEntry{Name: "catalog_2.json", Hash: "c2", Size: 2},
		manifest.FileEntry{Name: "shared.bundle", Hash: "s", Size: 3},
		manifest.FileEntry{Name: "mid.bundle", Hash: "m", Size: 5},
	)
	for _, name := range []string{"catalog_1.json", "catalog_1.hash", "catalog_2.json", "catalog_3.json", "shared.bundle", "old.bundle", "mid.bundle", "orphan.bundle"} {
		writeFile(t, root, name, name)
	}
	writeFile(t, root, manifest.VersionFileName, "1.10.0_abcdef")
	return root
}

func TestListVersions_SortedBySemVer(t *testing.T) {
	root := newPublishedRoot(t)

	versions, err := ListVersions(root)
	require.NoError(t, err)
	require.Len(t, versions, 3)

	assert.Equal(t, "1.0.0", versions[0].Version)
	assert.Equal(t, "1.2.0", versions[1].Version)
	assert.Equal(t, "1.10.0", versions[2].Version)
	assert.True(t, versions[2].Current)
	assert.False(t, versions[0].Current)
	assert.Equal(t, 3, versions[0].Files)
	assert.Equal(t, int64(9), versions[0].TotalSize)
}

func TestPrune_RemovesUnreferencedFiles(t *testing.T) {
	root := newPublishedRoot(t)

	res, err := Prune(root, []string{"1.0.0"}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"filelist_1.0.0.json"}, res.Manifests)
	assert.Equal(t, []string{"catalog_1.hash", "catalog_1.json", "old.bundle", "orphan.bundle"}, res.Files)

	assert.NoFileExists(t, filepath.Join(root, "filelist_1.0.0.json"))
	assert.NoFileExists(t, filepath.Join(root, "old.bundle"))
	assert.NoFileExists(t, filepath.Join(root, "catalog_1.json"))
	assert.FileExists(t, filepath.Join(root, "shared.bundle"))
	assert.FileExists(t, filepath.Join(root, "mid.bundle"))
	assert.FileExists(t, filepath.Join(root, "catalog_2.json"))
	assert.FileExists(t, filepath.Join(root, manifest.VersionFileName))
}

func TestPrune_DryRunKeepsEverything(t *testing.T) {
	root := newPublishedRoot(t)

	res, err := Prune(root, []string{"1.0.0", "1.2.0"}, true)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Contains(t, res.Files, "mid.bundle")
	assert.NotContains(t, res.Files, "shared.bundle")
	assert.Positive(t, res.FreedBytes)

	assert.FileExists(t, filepath.Join(root, "mid.bundle"))
	assert.FileExists(t, filepath.Join(root, "filelist_1.2.0.json"))
}

func TestPrune_RefusesCurrentAndUnknown(t *testing.T) {
	root := newPublishedRoot(t)

	_, err := Prune(root, []string{"1.10.0"}, false)
	assert.ErrorIs(t, err, ErrPruneCurrent)

	_, err = Prune(root, []string{"9.9.9"}, false)
	assert.ErrorIs(t, err, ErrUnknownVersion)

	assert.FileExists(t, filepath.Join(root, "filelist_1.10.0.json"))
}

func TestNextVersion(t *testing.T) {
	root := newPublishedRoot(t)

	v, err := NextVersion(root, "patch")
	require.NoError(t, err)
	assert.Equal(t, "1.10.1", v)

	v, err = NextVersion(root, "major")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v)

	v, err = NextVersion(t.TempDir(), "minor")
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", v)

	_, err = NextVersion(root, "nightly")
	assert.Error(t, err)
}

func TestBuild_ThenListVersions(t *testing.T) {
	out := newBuildOutput(t)
	_, err := Build(&Config{OutputDir: out, BundledDir: filepath.Join(t.TempDir(), "Bundles"), Version: "2.0.0"})
	require.NoError(t, err)

	versions, err := ListVersions(out)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.True(t, versions[0].Current)

	_, err = os.Stat(filepath.Join(out, versions[0].FileList))
	assert.NoError(t, err)
}
