package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"math"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/bundlesync/bundlesync/internal/checksum"
	"github.com/bundlesync/bundlesync/internal/client/store"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/bundlesync/bundlesync/internal/queue"
	"github.com/bundlesync/bundlesync/internal/utils"
	mapset "github.com/deckarep/golang-set/v2"
)

// index entries go after all content so a round that runs out of time keeps the old catalog
const indexPriority = math.MaxInt64 / 2

type plan struct {
	// target is the remote manifest minus entries with unusable names
	target    *manifest.Manifest
	downloads []manifest.FileEntry
	adopted   []string
	rejected  map[string]error
	bytes     int64
	// staged holds verified replacements of committed outer files, name to temp path.
	// They are moved into place at commit so the previous pair stays intact until then.
	staged map[string]string
	// shadowed are outer files whose bytes differ from a remote entry the inner store satisfies.
	// They go in the post-commit sweep.
	shadowed mapset.Set[string]
}

// plan decides which remote entries must be fetched. An entry is satisfied when the outer or
// inner manifest holds the same digest, except index entries which only the outer store satisfies.
// Files already on disk in the outer store with the right digest are adopted without a download.
func (r *round) plan(remote *manifest.Manifest) *plan {
	p := &plan{
		rejected: make(map[string]error),
		staged:   make(map[string]string),
		shadowed: mapset.NewThreadUnsafeSet[string](),
	}
	st := r.engine.store

	p.target = remote.Filter(func(f manifest.FileEntry) bool {
		if _, err := utils.LocalPath(st.Dir(store.Outer), f.Name); err != nil || manifest.IsReserved(f.Name) || store.IsTempName(f.Name) {
			slog.Warn("sync skipping remote entry", "name", f.Name, "error", err)
			p.rejected[f.Name] = fmt.Errorf("%w: %q", utils.ErrInvalidName, f.Name)
			return false
		}
		return true
	})

	for _, f := range p.target.Files() {
		if prev, ok := r.outer.Manifest.Get(f.Name); ok && prev.Same(f) && st.HasFile(store.Outer, f.Name) {
			continue
		}
		if prev, ok := r.inner.Manifest.Get(f.Name); ok && prev.Same(f) && !manifest.IsIndex(f.Name) {
			if st.HasFile(store.Outer, f.Name) && !checksum.Match(st.FileDigest(store.Outer, f.Name), f.Hash) {
				p.shadowed.Add(f.Name)
			}
			continue
		}
		if st.HasFile(store.Outer, f.Name) && checksum.Match(st.FileDigest(store.Outer, f.Name), f.Hash) {
			p.adopted = append(p.adopted, f.Name)
			continue
		}
		p.downloads = append(p.downloads, f)
		p.bytes += f.Size
	}

	slog.Debug("sync plan", "remote", remote.Len(), "download", len(p.downloads), "adopted", len(p.adopted), "shadowed", p.shadowed.Cardinality(), "rejected", len(p.rejected), "bytes", p.bytes)
	return p
}

// ordered returns the planned downloads smallest first, index entries last, ties by name
func (p *plan) ordered() []manifest.FileEntry {
	sorted := make([]manifest.FileEntry, len(p.downloads))
	copy(sorted, p.downloads)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	q := queue.NewPriorityQueue[manifest.FileEntry]()
	for _, f := range sorted {
		priority := f.Size
		if manifest.IsIndex(f.Name) {
			priority = indexPriority + f.Size
		}
		q.Enqueue(f, priority)
	}
	return q.DequeueAll()
}

// download fetches the planned files one at a time. Per-file failures are recorded and skipped.
// It reports whether an index entry failed.
func (r *round) download(ctx context.Context, p *plan) (failedIndex bool, err error) {
	res := r.result

	for _, f := range p.ordered() {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		if err := r.fetch(ctx, p, f); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			slog.Warn("sync download failed", "name", f.Name, "error", err)
			res.failed(f.Name, err)
			r.engine.progress.Emit(Event{Kind: EventFile, RoundID: res.ID, State: StateDownload, Name: f.Name, Error: err.Error(), Downloaded: res.DownloadedBytes, Total: res.PlannedBytes})
			if manifest.IsIndex(f.Name) {
				failedIndex = true
			}
			continue
		}

		res.Downloaded = append(res.Downloaded, f.Name)
		res.DownloadedBytes += f.Size
		r.engine.progress.Emit(Event{Kind: EventFile, RoundID: res.ID, State: StateDownload, Name: f.Name, FileDownloaded: f.Size, FileTotal: f.Size, Downloaded: res.DownloadedBytes, Total: res.PlannedBytes})
	}
	return failedIndex, nil
}

// fetch downloads one file to its temp path and checks the digest. New files are moved
// into place right away, replacements of committed files wait for promote.
func (r *round) fetch(ctx context.Context, p *plan, f manifest.FileEntry) error {
	e := r.engine
	res := r.result

	tmp, err := e.store.TempPath(f.Name)
	if err != nil {
		return err
	}

	if e.opts.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.FileTimeout)
		defer cancel()
	}

	_, err = e.remote.Download(ctx, f.Name, tmp, func(downloaded, total int64) {
		if total <= 0 {
			total = f.Size
		}
		e.progress.Emit(Event{Kind: EventProgress, RoundID: res.ID, State: StateDownload, Name: f.Name, FileDownloaded: downloaded, FileTotal: total, Downloaded: res.DownloadedBytes, Total: res.PlannedBytes})
	})
	if err != nil {
		os.Remove(tmp)
		return err
	}

	if digest := checksum.FileDigest(tmp); !checksum.Match(digest, f.Hash) {
		os.Remove(tmp)
		return &IntegrityError{Name: f.Name, Expected: f.Hash, Actual: digest}
	}

	if r.outer.Manifest.Has(f.Name) && e.store.HasFile(store.Outer, f.Name) {
		p.staged[f.Name] = tmp
		return nil
	}
	return e.store.CommitFile(tmp, f.Name)
}

// promote moves staged replacements into place. A file that can't be moved is a failure of the round.
func (r *round) promote(p *plan) {
	for _, name := range slices.Sorted(maps.Keys(p.staged)) {
		if err := r.engine.store.CommitFile(p.staged[name], name); err != nil {
			slog.Warn("sync promote failed", "name", name, "error", err)
			r.result.failed(name, err)
			r.unrecord(p, name)
		}
	}
	clear(p.staged)
}

// discardStaged drops staged replacements of a round that ends before commit
func (r *round) discardStaged(p *plan) {
	for _, name := range slices.Sorted(maps.Keys(p.staged)) {
		if err := os.Remove(p.staged[name]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("sync discard staged", "name", name, "error", err)
		}
		r.unrecord(p, name)
	}
	clear(p.staged)
}

// unrecord takes a file that never reached its final name out of the downloaded totals
func (r *round) unrecord(p *plan, name string) {
	res := r.result
	n := len(res.Downloaded)
	res.Downloaded = slices.DeleteFunc(res.Downloaded, func(d string) bool { return d == name })
	if len(res.Downloaded) == n {
		return
	}
	if f, ok := p.target.Get(name); ok {
		res.DownloadedBytes -= f.Size
	}
}

// keepAfterCommit reports whether an outer file survives the post-commit sweep
func (p *plan) keepAfterCommit(committed *manifest.Manifest) func(string) bool {
	return func(name string) bool {
		return committed.Has(name) && !p.shadowed.Contains(name)
	}
}

// isStaged reports whether an outer file is a staged replacement
func (p *plan) isStaged(file string) bool {
	if !store.IsTempName(file) {
		return false
	}
	_, ok := p.staged[strings.TrimSuffix(file, store.TempSuffix)]
	return ok
}
