package builder

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/bundlesync/bundlesync/internal/utils"
	mapset "github.com/deckarep/golang-set/v2"
)

var (
	ErrPruneCurrent   = errors.New("cannot prune the current version")
	ErrUnknownVersion = errors.New("version not published")
)

// prunable content patterns at the top of a distribution root
var prunePatterns = []string{"*.bundle", "catalog_*"}

// PublishedVersion is one manifest found in a distribution root.
type PublishedVersion struct {
	Version   string `json:"version"`
	FileList  string `json:"fileList"`
	Current   bool   `json:"current"`
	Files     int    `json:"files"`
	TotalSize int64  `json:"totalSize"`
}

type PruneResult struct {
	Manifests  []string `json:"manifests"`
	Files      []string `json:"files"`
	FreedBytes int64    `json:"freedBytes"`
	DryRun     bool     `json:"dryRun"`
}

// CurrentTag reads the version tag published in root.
func CurrentTag(root string) (manifest.VersionTag, error) {
	data, err := os.ReadFile(filepath.Join(root, manifest.VersionFileName))
	if err != nil {
		return "", err
	}
	return manifest.ParseVersionTag(string(data)), nil
}

// ListVersions returns the published manifests of root ordered by version.
func ListVersions(root string) ([]*PublishedVersion, error) {
	matches, err := doublestar.Glob(os.DirFS(root), manifest.RemoteFileListName("*"))
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	current := ""
	if tag, err := CurrentTag(root); err == nil {
		current = tag.Version()
	}

	versions := make([]*PublishedVersion, 0, len(matches))
	for _, name := range matches {
		v, ok := manifest.VersionFromFileListName(name)
		if !ok {
			continue
		}
		pv := &PublishedVersion{Version: v, FileList: name, Current: v == current}
		if m, err := readManifest(filepath.Join(root, name)); err != nil {
			slog.Warn("versions unreadable manifest", "file", name, "error", err)
		} else {
			pv.Files = m.Len()
			pv.TotalSize = m.TotalSize()
		}
		versions = append(versions, pv)
	}

	sort.SliceStable(versions, func(i, j int) bool {
		a, b := manifest.ParseSemVer(versions[i].Version), manifest.ParseSemVer(versions[j].Version)
		if c := a.Compare(b); c != 0 {
			return c < 0
		}
		return versions[i].Version < versions[j].Version
	})
	return versions, nil
}

// Prune removes the given versions' manifests from root together with every bundle
// and catalog file that no retained manifest references.
func Prune(root string, remove []string, dryRun bool) (*PruneResult, error) {
	published, err := ListVersions(root)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*PublishedVersion, len(published))
	for _, pv := range published {
		byVersion[pv.Version] = pv
	}

	removeSet := mapset.NewThreadUnsafeSet[string]()
	for _, v := range remove {
		pv, ok := byVersion[v]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVersion, v)
		}
		if pv.Current {
			return nil, fmt.Errorf("%w: %s", ErrPruneCurrent, v)
		}
		removeSet.Add(v)
	}

	referenced := mapset.NewThreadUnsafeSet[string]()
	for _, pv := range published {
		if removeSet.Contains(pv.Version) {
			continue
		}
		m, err := readManifest(filepath.Join(root, pv.FileList))
		if err != nil {
			// without its file list we can't tell what it needs
			return nil, fmt.Errorf("prune: retained manifest %s: %w", pv.FileList, err)
		}
		for _, name := range m.Names() {
			referenced.Add(name)
		}
	}

	result := &PruneResult{DryRun: dryRun}
	for _, pv := range published {
		if removeSet.Contains(pv.Version) {
			result.Manifests = append(result.Manifests, pv.FileList)
		}
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	for _, pattern := range prunePatterns {
		matches, err := doublestar.Glob(os.DirFS(root), pattern)
		if err != nil {
			return nil, fmt.Errorf("prune: %w", err)
		}
		for _, name := range matches {
			if referenced.Contains(name) || !seen.Add(name) {
				continue
			}
			info, err := os.Stat(filepath.Join(root, name))
			if err != nil || info.IsDir() {
				continue
			}
			result.Files = append(result.Files, name)
			result.FreedBytes += info.Size()
		}
	}
	sort.Strings(result.Files)

	if dryRun {
		return result, nil
	}

	for _, name := range append(append([]string{}, result.Manifests...), result.Files...) {
		if err := os.Remove(filepath.Join(root, name)); err != nil && !os.IsNotExist(err) {
			return result, fmt.Errorf("prune: remove %s: %w", name, err)
		}
		slog.Debug("prune removed", "name", name)
	}
	return result, nil
}

// NextVersion bumps the version currently published in root.
// A root with nothing published starts from 0.0.0.
func NextVersion(root, part string) (string, error) {
	current := manifest.SemVer{}
	if tag, err := CurrentTag(root); err == nil {
		current = tag.SemVer()
	} else if !os.IsNotExist(err) {
		return "", err
	}

	next, err := current.Bump(part)
	if err != nil {
		return "", err
	}
	return next.String(), nil
}

func readManifest(path string) (*manifest.Manifest, error) {
	if !utils.FileExists(path) {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return manifest.Decode(data)
}
