// Package builder generates the release manifests from a bundle build output.
//
// A build writes the full manifest and the version tag to the distribution root,
// and replaces the bundled (inner) store with the built-in subset of the release.
package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bundlesync/bundlesync/internal/checksum"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/bundlesync/bundlesync/internal/utils"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const catalogPattern = "catalog_*.json"

// DefaultKeywords mark the files that ship inside the application package.
var DefaultKeywords = []string{"resbuildin", "addressableassetsdata", "catalog_"}

var (
	ErrNoCatalog     = errors.New("no catalog found")
	ErrBadCatalog    = errors.New("catalog unreadable")
	ErrNoOutputDir   = errors.New("output directory missing")
	ErrNoBundledDir  = errors.New("bundled directory not set")
	ErrEmptyVersion  = errors.New("version not set")
	ErrSameDirectory = errors.New("bundled directory must differ from output directory")
)

// ConfigurationError reports a build input problem. Nothing is written when it is returned.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("builder: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(op string, err error) error {
	return &ConfigurationError{Op: op, Err: err}
}

type Config struct {
	OutputDir  string   // build output, also the platform distribution root
	BundledDir string   // inner store shipped with the application
	Version    string   // application version, major.minor.patch
	Keywords   []string // built-in keywords, DefaultKeywords when empty
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return configError("validate", ErrEmptyVersion)
	}
	if !utils.DirExists(c.OutputDir) {
		return configError("validate", fmt.Errorf("%w: %q", ErrNoOutputDir, c.OutputDir))
	}
	if c.BundledDir == "" {
		return configError("validate", ErrNoBundledDir)
	}
	if filepath.Clean(c.BundledDir) == filepath.Clean(c.OutputDir) {
		return configError("validate", ErrSameDirectory)
	}
	return nil
}

type Result struct {
	Tag      manifest.VersionTag
	Catalog  string
	Full     *manifest.Manifest
	BuiltIn  *manifest.Manifest
	Missing  []string // listed by the catalog but not found on disk
	FileList string   // path of the published manifest
}

// catalogData is the subset of the catalog we care about
type catalogData struct {
	InternalIDs []string `json:"m_InternalIds"`
}

// Build generates the manifests for cfg. See the package doc for what is written.
func Build(cfg *Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !manifest.ValidVersion(cfg.Version) {
		slog.Warn("builder version is not major.minor.patch", "version", cfg.Version)
	}
	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	catalog, err := latestCatalog(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	slog.Info("builder catalog", "name", catalog, "version", cfg.Version)

	bundles, err := catalogBundles(filepath.Join(cfg.OutputDir, catalog))
	if err != nil {
		return nil, err
	}

	all, builtIn := classify(bundles, keywords)
	all.Add(catalog)
	builtIn.Add(catalog)
	if hashName := manifest.CatalogHashName(catalog); utils.FileExists(filepath.Join(cfg.OutputDir, hashName)) {
		all.Add(hashName)
		builtIn.Add(hashName)
	}

	full, missing, err := describe(cfg.OutputDir, cfg.Version, all)
	if err != nil {
		return nil, err
	}

	fullData, err := full.Encode()
	if err != nil {
		return nil, fmt.Errorf("builder: encode manifest: %w", err)
	}
	tag := manifest.NewVersionTag(cfg.Version, checksum.DigestBytes(fullData))
	inner := full.Filter(func(e manifest.FileEntry) bool { return builtIn.Contains(e.Name) })

	stageDir, err := stageBundled(cfg, inner, tag)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(stageDir) // gone already after a successful swap

	fileList := filepath.Join(cfg.OutputDir, manifest.RemoteFileListName(cfg.Version))
	if err := utils.WriteFileAtomic(fileList, fullData, 0o644); err != nil {
		return nil, fmt.Errorf("builder: write %s: %w", fileList, err)
	}
	if err := utils.WriteFileAtomic(filepath.Join(cfg.OutputDir, manifest.VersionFileName), []byte(tag), 0o644); err != nil {
		return nil, fmt.Errorf("builder: write version: %w", err)
	}

	if err := os.RemoveAll(cfg.BundledDir); err != nil {
		return nil, fmt.Errorf("builder: clear bundled dir: %w", err)
	}
	if err := os.Rename(stageDir, cfg.BundledDir); err != nil {
		return nil, fmt.Errorf("builder: install bundled dir: %w", err)
	}

	slog.Info("builder done",
		"tag", tag,
		"files", full.Len(),
		"size", humanize.Bytes(uint64(full.TotalSize())),
		"builtin", inner.Len(),
		"builtinSize", humanize.Bytes(uint64(inner.TotalSize())),
		"missing", len(missing),
	)

	return &Result{
		Tag:      tag,
		Catalog:  catalog,
		Full:     full,
		BuiltIn:  inner,
		Missing:  missing,
		FileList: fileList,
	}, nil
}

// latestCatalog returns the most recently written catalog at the top of root.
func latestCatalog(root string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), catalogPattern)
	if err != nil {
		return "", configError("find catalog", err)
	}

	var latest string
	var latestInfo fs.FileInfo
	for _, name := range matches {
		info, err := os.Stat(filepath.Join(root, name))
		if err != nil || info.IsDir() {
			continue
		}
		if latestInfo == nil ||
			info.ModTime().After(latestInfo.ModTime()) ||
			(info.ModTime().Equal(latestInfo.ModTime()) && name > latest) {
			latest, latestInfo = name, info
		}
	}

	if latest == "" {
		return "", configError("find catalog", fmt.Errorf("%w in %q", ErrNoCatalog, root))
	}
	return latest, nil
}

// catalogBundles lists the bundle file names referenced by a catalog.
func catalogBundles(catalogPath string) ([]string, error) {
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, configError("read catalog", fmt.Errorf("%w: %w", ErrBadCatalog, err))
	}

	var cat catalogData
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, configError("parse catalog", fmt.Errorf("%w: %w", ErrBadCatalog, err))
	}

	names := make([]string, 0, len(cat.InternalIDs))
	for _, id := range cat.InternalIDs {
		if !manifest.IsBundle(id) {
			continue
		}
		names = append(names, path.Base(strings.ReplaceAll(id, "\\", "/")))
	}
	return names, nil
}

func classify(names []string, keywords []string) (all, builtIn mapset.Set[string]) {
	all = mapset.NewThreadUnsafeSet[string]()
	builtIn = mapset.NewThreadUnsafeSet[string]()
	for _, name := range names {
		all.Add(name)
		if isBuiltIn(name, keywords) {
			builtIn.Add(name)
		}
	}
	return all, builtIn
}

func isBuiltIn(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// describe digests every listed file present under root, in name order.
func describe(root, version string, names mapset.Set[string]) (*manifest.Manifest, []string, error) {
	sorted := names.ToSlice()
	sort.Strings(sorted)

	full := manifest.New(version)
	var missing []string
	for _, name := range sorted {
		p, err := utils.LocalPath(root, name)
		if err != nil {
			slog.Warn("builder skip invalid name", "name", name)
			continue
		}
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			slog.Warn("builder file listed but missing", "name", name)
			missing = append(missing, name)
			continue
		}
		digest := checksum.FileDigest(p)
		if digest == "" {
			return nil, nil, fmt.Errorf("builder: digest %q: unreadable", name)
		}
		full.Put(manifest.FileEntry{Name: name, Hash: digest, Size: info.Size()})
	}
	return full, missing, nil
}

// stageBundled prepares the new inner store in a sibling directory so the swap is a rename.
func stageBundled(cfg *Config, inner *manifest.Manifest, tag manifest.VersionTag) (string, error) {
	parent := filepath.Dir(filepath.Clean(cfg.BundledDir))
	if err := utils.EnsureDir(parent); err != nil {
		return "", fmt.Errorf("builder: bundled parent: %w", err)
	}
	stageDir := filepath.Join(parent, "."+filepath.Base(cfg.BundledDir)+"-"+uuid.NewString())

	err := func() error {
		for _, e := range inner.Files() {
			src, _ := utils.LocalPath(cfg.OutputDir, e.Name)
			dst, _ := utils.LocalPath(stageDir, e.Name)
			if err := utils.CopyFile(src, dst); err != nil {
				return fmt.Errorf("copy %q: %w", e.Name, err)
			}
		}

		data, err := inner.Encode()
		if err != nil {
			return err
		}
		if err := utils.WriteFileAtomic(filepath.Join(stageDir, manifest.FileListName), data, 0o644); err != nil {
			return err
		}
		return utils.WriteFileAtomic(filepath.Join(stageDir, manifest.VersionFileName), []byte(tag), 0o644)
	}()
	if err != nil {
		os.RemoveAll(stageDir)
		return "", fmt.Errorf("builder: stage bundled dir: %w", err)
	}
	return stageDir, nil
}
