// Package store manages the two local bundle stores: the read-only inner store
// shipped with the application and the writable outer store filled by sync.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bundlesync/bundlesync/internal/checksum"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/bundlesync/bundlesync/internal/utils"
	"github.com/gofrs/flock"
)

const (
	TempSuffix = ".tmp"
	lockSuffix = ".lock"
)

var (
	ErrReadOnly = errors.New("store: inner store is read-only")
	ErrLocked   = errors.New("store: outer store is locked by another process")
	ErrNoInner  = errors.New("store: inner dir not set")
	ErrNoOuter  = errors.New("store: outer dir not set")
)

// for tests
var (
	renameFile  = os.Rename
	runtimeGOOS = runtime.GOOS
)

// Domain selects one of the two stores.
type Domain int

const (
	Inner Domain = iota
	Outer
)

func (d Domain) String() string {
	if d == Inner {
		return "inner"
	}
	return "outer"
}

// ConsistencyError reports a manifest that exists but can't be parsed.
type ConsistencyError struct {
	Domain Domain
	Path   string
	Err    error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("store: %s manifest %s: %v", e.Domain, e.Path, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }

// Snapshot is a manifest read together with its tag.
type Snapshot struct {
	Manifest *manifest.Manifest
	Tag      manifest.VersionTag
}

// LocalStore owns both store directories and the shared runtime state that
// sync publishes for resolvers: the catalog pointer and a mutation counter.
type LocalStore struct {
	innerDir string
	outerDir string
	lock     *flock.Flock

	pairMu     sync.RWMutex // manifest+tag pairs
	catalogMu  sync.RWMutex
	catalog    string
	generation atomic.Uint64
}

// New opens the stores. The outer directory is created if missing.
func New(innerDir, outerDir string) (*LocalStore, error) {
	if innerDir == "" {
		return nil, ErrNoInner
	}
	if outerDir == "" {
		return nil, ErrNoOuter
	}
	outerDir = filepath.Clean(outerDir)
	if err := utils.EnsureDir(outerDir); err != nil {
		return nil, fmt.Errorf("store: create outer dir: %w", err)
	}

	return &LocalStore{
		innerDir: filepath.Clean(innerDir),
		outerDir: outerDir,
		lock:     flock.New(outerDir + lockSuffix),
	}, nil
}

func (s *LocalStore) Dir(d Domain) string {
	if d == Inner {
		return s.innerDir
	}
	return s.outerDir
}

// LoadManifest reads a domain's manifest. A missing file is an empty manifest, a corrupt one a ConsistencyError.
func (s *LocalStore) LoadManifest(d Domain) (*manifest.Manifest, error) {
	path := filepath.Join(s.Dir(d), manifest.FileListName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return manifest.New(""), nil
	} else if err != nil {
		return manifest.New(""), &ConsistencyError{Domain: d, Path: path, Err: err}
	}

	m, err := manifest.Decode(data)
	if err != nil {
		return manifest.New(""), &ConsistencyError{Domain: d, Path: path, Err: err}
	}
	return m, nil
}

// ReadManifest never fails: anything unreadable is logged and treated as empty.
func (s *LocalStore) ReadManifest(d Domain) *manifest.Manifest {
	s.pairMu.RLock()
	defer s.pairMu.RUnlock()
	return s.readManifest(d)
}

func (s *LocalStore) readManifest(d Domain) *manifest.Manifest {
	m, err := s.LoadManifest(d)
	if err != nil {
		slog.Warn("store manifest unusable, treating as empty", "domain", d, "error", err)
	}
	return m
}

// ReadVersionTag returns the trimmed tag or an empty tag.
func (s *LocalStore) ReadVersionTag(d Domain) manifest.VersionTag {
	s.pairMu.RLock()
	defer s.pairMu.RUnlock()
	return s.readVersionTag(d)
}

func (s *LocalStore) readVersionTag(d Domain) manifest.VersionTag {
	data, err := os.ReadFile(filepath.Join(s.Dir(d), manifest.VersionFileName))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("store version unreadable", "domain", d, "error", err)
		}
		return ""
	}
	return manifest.ParseVersionTag(string(data))
}

// Snapshot reads a domain's manifest and tag as one pair.
func (s *LocalStore) Snapshot(d Domain) *Snapshot {
	s.pairMu.RLock()
	defer s.pairMu.RUnlock()
	return &Snapshot{Manifest: s.readManifest(d), Tag: s.readVersionTag(d)}
}

// WriteManifestAndTag replaces a domain's manifest and then its tag, each through temp file and rename.
func (s *LocalStore) WriteManifestAndTag(d Domain, m *manifest.Manifest, tag manifest.VersionTag) error {
	if d == Inner {
		return ErrReadOnly
	}

	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("store: encode manifest: %w", err)
	}

	s.pairMu.Lock()
	defer s.pairMu.Unlock()
	defer s.generation.Add(1)

	if err := utils.WriteFileAtomic(filepath.Join(s.outerDir, manifest.FileListName), data, 0o644); err != nil {
		return fmt.Errorf("store: write manifest: %w", err)
	}
	if err := utils.WriteFileAtomic(filepath.Join(s.outerDir, manifest.VersionFileName), []byte(tag), 0o644); err != nil {
		return fmt.Errorf("store: write version: %w", err)
	}
	return nil
}

// FilePath returns where a named file lives in a domain.
func (s *LocalStore) FilePath(d Domain, name string) (string, error) {
	return utils.LocalPath(s.Dir(d), name)
}

// HasFile reports whether the named file physically exists in a domain.
func (s *LocalStore) HasFile(d Domain, name string) bool {
	p, err := s.FilePath(d, name)
	return err == nil && utils.FileExists(p)
}

// FileDigest digests the named file in a domain, "" if it can't be read.
func (s *LocalStore) FileDigest(d Domain, name string) string {
	p, err := s.FilePath(d, name)
	if err != nil {
		return ""
	}
	return checksum.FileDigest(p)
}

// TempPath is where a download of name is staged before it is committed.
func (s *LocalStore) TempPath(name string) (string, error) {
	p, err := s.FilePath(Outer, name)
	if err != nil {
		return "", err
	}
	return p + TempSuffix, nil
}

// CommitFile moves a verified temp file into place as name. The temp file is removed on failure.
func (s *LocalStore) CommitFile(tmpPath, name string) error {
	dst, err := s.FilePath(Outer, name)
	if err != nil {
		return err
	}

	if err := replaceFile(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: commit %q: %w", name, err)
	}
	s.generation.Add(1)
	return nil
}

func replaceFile(src, dst string) error {
	err := renameFile(src, dst)
	if err == nil {
		return nil
	}

	// windows refuses to rename over an existing file
	if runtimeGOOS == "windows" && (errors.Is(err, fs.ErrExist) || errors.Is(err, fs.ErrPermission)) {
		if rmErr := os.Remove(dst); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return fmt.Errorf("remove existing: %w", rmErr)
		}
		return renameFile(src, dst)
	}
	return err
}

// RemoveFile deletes a file from the outer store. Removing a missing file is not an error.
func (s *LocalStore) RemoveFile(name string) error {
	p, err := s.FilePath(Outer, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: remove %q: %w", name, err)
	}
	s.generation.Add(1)
	return nil
}

// ListFiles returns every regular file in the outer store as a slash separated relative name.
func (s *LocalStore) ListFiles() ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.outerDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.outerDir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list outer: %w", err)
	}
	return names, nil
}

// RemoveEmptyDirs prunes directories left empty under the outer store.
func (s *LocalStore) RemoveEmptyDirs() {
	var dirs []string
	filepath.WalkDir(s.outerDir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != s.outerDir {
			dirs = append(dirs, path)
		}
		return nil
	})
	// deepest first
	for i := len(dirs) - 1; i >= 0; i-- {
		os.Remove(dirs[i]) // fails on non-empty dirs, which is what we want
	}
}

// IsTempName reports whether name is a staged download.
func IsTempName(name string) bool {
	return strings.HasSuffix(name, TempSuffix)
}

// TryLock takes the inter-process lock on the outer store.
func (s *LocalStore) TryLock() error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("store: lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

func (s *LocalStore) Unlock() error {
	return s.lock.Unlock()
}

// SetCatalog records which file is the active resource catalog.
func (s *LocalStore) SetCatalog(name string) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	s.catalog = name
}

func (s *LocalStore) Catalog() string {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	return s.catalog
}

// Generation changes whenever the outer store is mutated.
func (s *LocalStore) Generation() uint64 {
	return s.generation.Load()
}
