// Package manifest defines the versioned file list shared by the builder, the
// distribution root and both local stores.
package manifest

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bundlesync/bundlesync/internal/checksum"
)

var (
	ErrDuplicateEntry = errors.New("manifest: duplicate entry")
	ErrInvalidEntry   = errors.New("manifest: invalid entry")
)

// FileEntry describes one content file of a release.
type FileEntry struct {
	Name string `json:"fileName"`
	Hash string `json:"md5"`
	Size int64  `json:"size"`
}

// Same reports whether both entries name the same file with the same known digest.
// Size is advisory and not compared.
func (e FileEntry) Same(other FileEntry) bool {
	return e.Name == other.Name && checksum.Match(e.Hash, other.Hash)
}

// manifestJSON is the on-disk layout
type manifestJSON struct {
	Version string      `json:"version"`
	Files   []FileEntry `json:"files"`
}

// Manifest is an ordered set of file entries keyed by name.
// Entries are only mutated through methods so the name index stays valid.
type Manifest struct {
	Version string

	files []FileEntry
	index map[string]int
	mu    sync.Mutex
}

// New returns a manifest holding the given entries. Later duplicates replace earlier ones.
func New(version string, entries ...FileEntry) *Manifest {
	m := &Manifest{Version: version}
	for _, e := range entries {
		m.Put(e)
	}
	return m
}

// lookup returns the name index, building it if a mutation dropped it. Caller holds mu.
func (m *Manifest) lookup() map[string]int {
	if m.index == nil {
		m.index = make(map[string]int, len(m.files))
		for i, f := range m.files {
			m.index[f.Name] = i
		}
	}
	return m.index
}

func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// Files returns a copy of the entries in manifest order.
func (m *Manifest) Files() []FileEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FileEntry, len(m.files))
	copy(out, m.files)
	return out
}

// Names returns the entry names in manifest order.
func (m *Manifest) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.files))
	for i, f := range m.files {
		names[i] = f.Name
	}
	return names
}

func (m *Manifest) Get(name string) (FileEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.lookup()[name]
	if !ok {
		return FileEntry{}, false
	}
	return m.files[i], true
}

func (m *Manifest) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Put inserts the entry, or replaces the entry with the same name in place.
func (m *Manifest) Put(e FileEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.lookup()[e.Name]; ok {
		m.files[i] = e
		return
	}
	m.files = append(m.files, e)
	m.index = nil
}

// Remove deletes the named entry and reports whether it existed.
func (m *Manifest) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.lookup()[name]
	if !ok {
		return false
	}
	m.files = append(m.files[:i], m.files[i+1:]...)
	m.index = nil
	return true
}

// Filter returns a new manifest with the same version holding the entries accepted by keep.
func (m *Manifest) Filter(keep func(FileEntry) bool) *Manifest {
	out := &Manifest{Version: m.Version}
	for _, f := range m.Files() {
		if keep(f) {
			out.files = append(out.files, f)
		}
	}
	return out
}

func (m *Manifest) Clone() *Manifest {
	return m.Filter(func(FileEntry) bool { return true })
}

func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, f := range m.Files() {
		total += f.Size
	}
	return total
}

// Catalog returns the first resource catalog listed in the manifest.
func (m *Manifest) Catalog() (FileEntry, bool) {
	for _, f := range m.Files() {
		if IsCatalog(f.Name) {
			return f, true
		}
	}
	return FileEntry{}, false
}

// Sort orders entries by name.
func (m *Manifest) Sort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	sort.Slice(m.files, func(i, j int) bool { return m.files[i].Name < m.files[j].Name })
	m.index = nil
}

// Encode serializes the manifest in its published, indented form.
func (m *Manifest) Encode() ([]byte, error) {
	return jsonMarshalIndent(m.wire(), "", "  ")
}

// Digest returns the content digest of the encoded manifest.
func (m *Manifest) Digest() (string, error) {
	data, err := m.Encode()
	if err != nil {
		return "", err
	}
	return checksum.DigestBytes(data), nil
}

func (m *Manifest) wire() *manifestJSON {
	files := m.Files()
	if files == nil {
		files = []FileEntry{}
	}
	return &manifestJSON{Version: m.Version, Files: files}
}

func (m *Manifest) MarshalJSON() ([]byte, error) {
	return jsonMarshal(m.wire())
}

func (m *Manifest) UnmarshalJSON(data []byte) error {
	var w manifestJSON
	if err := jsonUnmarshal(data, &w); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(w.Files))
	for _, f := range w.Files {
		if f.Name == "" {
			return fmt.Errorf("%w: empty file name", ErrInvalidEntry)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateEntry, f.Name)
		}
		seen[f.Name] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Version = w.Version
	m.files = w.Files
	m.index = nil
	return nil
}

// Decode parses a manifest. Duplicate or unnamed entries are rejected.
func Decode(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := m.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
