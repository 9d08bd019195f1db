package builder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bundlesync/bundlesync/internal/checksum"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// newBuildOutput lays out a typical bundle build with one catalog.
func newBuildOutput(t *testing.T) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "ServerData", "Android")
	writeFile(t, out, "catalog_2024.json", `{"m_InternalIds":[
		"{Runtime}/Android/resbuildin_ui_abc.bundle",
		"http://cdn.example.com/Android/level1_def.bundle",
		"http://cdn.example.com/Android/level2_ghi.bundle",
		"{Runtime}\\Android\\AddressableAssetsData_shaders.bundle",
		"Assets/Prefabs/Hero.prefab"
	]}`)
	writeFile(t, out, "catalog_2024.hash", "cafebabe")
	writeFile(t, out, "resbuildin_ui_abc.bundle", "ui")
	writeFile(t, out, "level1_def.bundle", "level one")
	writeFile(t, out, "level2_ghi.bundle", "level two")
	writeFile(t, out, "AddressableAssetsData_shaders.bundle", "shaders")
	return out
}

func TestBuild_WritesFullAndBuiltInManifests(t *testing.T) {
	out := newBuildOutput(t)
	bundled := filepath.Join(t.TempDir(), "StreamingAssets", "Bundles")
	writeFile(t, bundled, "stale.bundle", "from an older build")

	res, err := Build(&Config{OutputDir: out, BundledDir: bundled, Version: "1.2.0"})
	require.NoError(t, err)

	assert.Equal(t, "catalog_2024.json", res.Catalog)
	assert.Equal(t, []string{
		"AddressableAssetsData_shaders.bundle",
		"catalog_2024.hash",
		"catalog_2024.json",
		"level1_def.bundle",
		"level2_ghi.bundle",
		"resbuildin_ui_abc.bundle",
	}, res.Full.Names())
	assert.Equal(t, []string{
		"AddressableAssetsData_shaders.bundle",
		"catalog_2024.hash",
		"catalog_2024.json",
		"resbuildin_ui_abc.bundle",
	}, res.BuiltIn.Names())

	// distribution root
	fullData, err := os.ReadFile(filepath.Join(out, "filelist_1.2.0.json"))
	require.NoError(t, err)
	tagData, err := os.ReadFile(filepath.Join(out, manifest.VersionFileName))
	require.NoError(t, err)
	tag := manifest.ParseVersionTag(string(tagData))
	assert.Equal(t, res.Tag, tag)
	assert.Equal(t, "1.2.0", tag.Version())
	assert.Equal(t, checksum.DigestBytes(fullData), tag.Digest(), "tag digest covers the published bytes")

	full, err := manifest.Decode(fullData)
	require.NoError(t, err)
	e, ok := full.Get("level1_def.bundle")
	require.True(t, ok)
	assert.Equal(t, checksum.DigestBytes([]byte("level one")), e.Hash)
	assert.Equal(t, int64(len("level one")), e.Size)

	// bundled store replaced wholesale and self consistent
	assert.NoFileExists(t, filepath.Join(bundled, "stale.bundle"))
	innerData, err := os.ReadFile(filepath.Join(bundled, manifest.FileListName))
	require.NoError(t, err)
	inner, err := manifest.Decode(innerData)
	require.NoError(t, err)
	assert.Equal(t, res.BuiltIn.Names(), inner.Names())
	for _, f := range inner.Files() {
		assert.Equal(t, f.Hash, checksum.FileDigest(filepath.Join(bundled, f.Name)), f.Name)
	}
	innerTag, err := os.ReadFile(filepath.Join(bundled, manifest.VersionFileName))
	require.NoError(t, err)
	assert.Equal(t, string(res.Tag), string(innerTag))
	assert.NoFileExists(t, filepath.Join(bundled, "level1_def.bundle"))

	// staging dir cleaned up
	siblings, err := os.ReadDir(filepath.Dir(bundled))
	require.NoError(t, err)
	assert.Len(t, siblings, 1)
}

func TestBuild_PicksMostRecentCatalog(t *testing.T) {
	out := newBuildOutput(t)
	writeFile(t, out, "catalog_2023.json", `{"m_InternalIds":["old.bundle"]}`)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(out, "catalog_2023.json"), old, old))

	res, err := Build(&Config{OutputDir: out, BundledDir: filepath.Join(t.TempDir(), "Bundles"), Version: "1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, "catalog_2024.json", res.Catalog)
	assert.False(t, res.Full.Has("catalog_2023.json"))
}

func TestBuild_MissingFilesAreSkipped(t *testing.T) {
	out := newBuildOutput(t)
	require.NoError(t, os.Remove(filepath.Join(out, "level2_ghi.bundle")))

	res, err := Build(&Config{OutputDir: out, BundledDir: filepath.Join(t.TempDir(), "Bundles"), Version: "1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"level2_ghi.bundle"}, res.Missing)
	assert.False(t, res.Full.Has("level2_ghi.bundle"))
}

func TestBuild_NoCatalogWritesNothing(t *testing.T) {
	out := t.TempDir()
	writeFile(t, out, "level1.bundle", "x")
	bundled := filepath.Join(t.TempDir(), "Bundles")
	writeFile(t, bundled, "keep.bundle", "y")

	_, err := Build(&Config{OutputDir: out, BundledDir: bundled, Version: "1.0.0"})
	require.Error(t, err)

	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, ErrNoCatalog)

	assert.NoFileExists(t, filepath.Join(out, manifest.VersionFileName))
	assert.NoFileExists(t, filepath.Join(out, "filelist_1.0.0.json"))
	assert.FileExists(t, filepath.Join(bundled, "keep.bundle"), "bundled store untouched")
}

func TestBuild_BadCatalogIsConfigurationError(t *testing.T) {
	out := t.TempDir()
	writeFile(t, out, "catalog_1.json", "{not json")

	_, err := Build(&Config{OutputDir: out, BundledDir: filepath.Join(t.TempDir(), "Bundles"), Version: "1.0.0"})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, ErrBadCatalog)
	assert.NoFileExists(t, filepath.Join(out, manifest.VersionFileName))
}

func TestBuild_InvalidVersionOnlyWarns(t *testing.T) {
	out := newBuildOutput(t)

	res, err := Build(&Config{OutputDir: out, BundledDir: filepath.Join(t.TempDir(), "Bundles"), Version: "1.2"})
	require.NoError(t, err)
	assert.Equal(t, "1.2", res.Tag.Version())
	assert.FileExists(t, filepath.Join(out, "filelist_1.2.json"))
}

func TestConfig_Validate(t *testing.T) {
	dir := t.TempDir()

	var cfgErr *ConfigurationError
	assert.ErrorAs(t, (&Config{OutputDir: dir, BundledDir: "b"}).Validate(), &cfgErr)
	assert.ErrorIs(t, (&Config{OutputDir: dir, BundledDir: "b"}).Validate(), ErrEmptyVersion)
	assert.ErrorIs(t, (&Config{OutputDir: filepath.Join(dir, "nope"), BundledDir: "b", Version: "1.0.0"}).Validate(), ErrNoOutputDir)
	assert.ErrorIs(t, (&Config{OutputDir: dir, Version: "1.0.0"}).Validate(), ErrNoBundledDir)
	assert.ErrorIs(t, (&Config{OutputDir: dir, BundledDir: dir, Version: "1.0.0"}).Validate(), ErrSameDirectory)
	assert.NoError(t, (&Config{OutputDir: dir, BundledDir: filepath.Join(dir, "Bundles"), Version: "1.0.0"}).Validate())
}

func TestClassify_KeywordsAreCaseInsensitive(t *testing.T) {
	all, builtIn := classify([]string{"ResBuildIn_a.bundle", "level.bundle", "Catalog_x.bundle"}, DefaultKeywords)
	assert.Equal(t, 3, all.Cardinality())
	assert.True(t, builtIn.Contains("ResBuildIn_a.bundle"))
	assert.True(t, builtIn.Contains("Catalog_x.bundle"))
	assert.False(t, builtIn.Contains("level.bundle"))
}
