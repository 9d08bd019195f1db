// Package resolver maps logical content identifiers to the physical copy that should be loaded.
package resolver

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bundlesync/bundlesync/internal/client/store"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/bundlesync/bundlesync/internal/utils"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 4096

// Source names where a location points
type Source string

const (
	SourceOuter       Source = "outer"
	SourceInner       Source = "inner"
	SourcePassThrough Source = "passthrough"
)

// Location is a resolved identifier. Path is a local file path for the stores and the
// identifier itself for pass-through.
type Location struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Source Source `json:"source"`
	Path   string `json:"path"`
}

// URI is the location as a URI a loader can open
func (l Location) URI() string {
	if l.Source == SourcePassThrough {
		return l.Path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(l.Path)}).String()
}

func (l Location) Local() bool {
	return l.Source != SourcePassThrough
}

type cached struct {
	generation uint64
	loc        Location
}

// Resolver answers in priority order: an outer store file, a file the inner manifest lists, the id unchanged.
// Answers are cached until the outer store changes.
type Resolver struct {
	store    *store.LocalStore
	platform string
	cache    *lru.Cache[string, cached]
	inner    func() *manifest.Manifest
}

func New(st *store.LocalStore, platform string, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, cached](cacheSize)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		store:    st,
		platform: platform,
		cache:    cache,
		// inner store is immutable at runtime
		inner: sync.OnceValue(func() *manifest.Manifest {
			return st.ReadManifest(store.Inner)
		}),
	}, nil
}

// Resolve returns the authoritative location of id
func (r *Resolver) Resolve(id string) Location {
	gen := r.store.Generation()
	if c, ok := r.cache.Get(id); ok && c.generation == gen {
		return c.loc
	}

	loc := r.resolve(id)
	r.cache.Add(id, cached{generation: gen, loc: loc})
	return loc
}

func (r *Resolver) resolve(id string) Location {
	passThrough := Location{ID: id, Source: SourcePassThrough, Path: id}

	name, ok := r.Name(id)
	if !ok {
		return passThrough
	}

	if p, err := r.store.FilePath(store.Outer, name); err == nil && utils.FileExists(p) {
		return Location{ID: id, Name: name, Source: SourceOuter, Path: p}
	}
	if r.inner().Has(name) {
		if p, err := r.store.FilePath(store.Inner, name); err == nil {
			return Location{ID: id, Name: name, Source: SourceInner, Path: p}
		}
	}
	return passThrough
}

// Name maps an identifier to a store relative name. Remote URLs map to the part after
// "/{platform}/", or to their base name when the platform is not in the path.
func (r *Resolver) Name(id string) (string, bool) {
	if id == "" {
		return "", false
	}

	if isRemote(id) {
		u, err := url.Parse(id)
		if err != nil || u.Path == "" {
			return "", false
		}
		key := "/" + r.platform + "/"
		if i := strings.LastIndex(u.Path, key); r.platform != "" && i >= 0 {
			return validName(u.Path[i+len(key):])
		}
		return validName(path.Base(u.Path))
	}

	return validName(strings.ReplaceAll(id, `\`, "/"))
}

func validName(name string) (string, bool) {
	if name == "" || !filepath.IsLocal(filepath.FromSlash(name)) || manifest.IsReserved(name) {
		return "", false
	}
	return name, true
}

func isRemote(id string) bool {
	lower := strings.ToLower(id)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "ftp://")
}

// Catalog returns the location of the catalog recorded by the last sync round
func (r *Resolver) Catalog() (Location, bool) {
	name := r.store.Catalog()
	if name == "" {
		return Location{}, false
	}
	loc := r.Resolve(name)
	return loc, loc.Local()
}

// Purge drops every cached answer
func (r *Resolver) Purge() {
	r.cache.Purge()
}
