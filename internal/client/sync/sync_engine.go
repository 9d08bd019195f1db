package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/bundlesync/bundlesync/internal/checksum"
	"github.com/bundlesync/bundlesync/internal/client/store"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Engine runs sync rounds of the outer store against a remote.
// At most one round runs at a time, both within the process and across processes.
type Engine struct {
	store    *store.LocalStore
	remote   Remote
	opts     Options
	progress *Progress

	muSync sync.Mutex
	mu     sync.RWMutex
	state  State
	last   *Result
}

func NewEngine(st *store.LocalStore, remote Remote, opts *Options) (*Engine, error) {
	if st == nil {
		return nil, ErrNoStore
	}
	if remote == nil {
		return nil, ErrNoRemote
	}
	if opts == nil {
		opts = &Options{}
	}

	return &Engine{
		store:    st,
		remote:   remote,
		opts:     *opts,
		progress: NewProgress(),
		state:    StateIdle,
	}, nil
}

// Subscribe registers a progress listener for all future rounds
func (e *Engine) Subscribe(fn Listener) func() {
	return e.progress.Subscribe(fn)
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// LastResult is the result of the most recent finished round, nil before the first
func (e *Engine) LastResult() *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Run performs one sync round. Offline and partially failed rounds still return a nil
// error with a degraded result; errors are reserved for rounds that must not be treated
// as success (breaking upgrade, local write failures, cancellation).
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if !e.muSync.TryLock() {
		return nil, ErrSyncAlreadyRunning
	}
	defer e.muSync.Unlock()

	if err := e.store.TryLock(); err != nil {
		if errors.Is(err, store.ErrLocked) {
			return nil, fmt.Errorf("%w: %w", ErrSyncAlreadyRunning, err)
		}
		return nil, err
	}
	defer func() {
		if err := e.store.Unlock(); err != nil {
			slog.Warn("sync unlock store", "error", err)
		}
	}()

	r := &round{
		engine: e,
		result: &Result{ID: uuid.NewString(), StartedAt: time.Now()},
	}

	err := r.run(ctx)

	res := r.result
	res.FinishedAt = time.Now()
	if err != nil {
		res.Error = err.Error()
		if !res.State.Terminal() || res.State == StateDone {
			res.State = StateFailed
		}
	}
	e.finish(res)

	slog.Info("sync round",
		"id", res.ID,
		"state", res.State,
		"degraded", res.Degraded,
		"local", res.LocalTag.Short(),
		"remote", res.RemoteTag.Short(),
		"downloaded", len(res.Downloaded),
		"adopted", len(res.Adopted),
		"failed", len(res.Failed),
		"removed", len(res.Removed),
		"bytes", humanize.Bytes(uint64(res.DownloadedBytes)),
		"took", res.Duration(),
	)
	return res, err
}

func (e *Engine) setState(res *Result, s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()

	res.State = s
	e.progress.Emit(Event{Kind: EventState, RoundID: res.ID, State: s, Total: res.PlannedBytes, Downloaded: res.DownloadedBytes})
}

func (e *Engine) finish(res *Result) {
	e.mu.Lock()
	e.state = StateIdle
	e.last = res
	e.mu.Unlock()

	if e.opts.History != nil {
		if err := e.opts.History.Record(res); err != nil {
			slog.Warn("sync history", "id", res.ID, "error", err)
		}
	}

	e.progress.Emit(Event{
		Kind:       EventFinished,
		RoundID:    res.ID,
		State:      res.State,
		Downloaded: res.DownloadedBytes,
		Total:      res.PlannedBytes,
		Error:      res.Error,
	})
}

// round is the state of one Run
type round struct {
	engine *Engine
	result *Result
	inner  *store.Snapshot
	outer  *store.Snapshot
}

func (r *round) run(ctx context.Context) error {
	e := r.engine
	res := r.result

	// ScanLocal
	e.setState(res, StateScanLocal)
	r.inner = e.store.Snapshot(store.Inner)
	r.outer = e.store.Snapshot(store.Outer)
	res.LocalTag = r.outer.Tag
	slog.Debug("sync scan", "inner", r.inner.Tag.Short(), "innerFiles", r.inner.Manifest.Len(), "outer", r.outer.Tag.Short(), "outerFiles", r.outer.Manifest.Len())

	// CheckRemoteVersion
	e.setState(res, StateCheckRemote)
	remoteTag, err := e.remote.FetchVersionTag(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return r.offline(err)
	}
	res.RemoteTag = remoteTag

	if remoteTag == r.outer.Tag {
		e.setState(res, StateUpToDate)
		r.resolveCatalog(r.outer.Manifest)
		return nil
	}

	local := r.baseline()
	if remote := remoteTag.SemVer(); remote.Major > local.Major {
		e.setState(res, StateForceUpgrade)
		r.resolveCatalog(r.outer.Manifest)
		return &BreakingVersionError{Local: local, Remote: remote, RemoteTag: remoteTag}
	}

	// Diff
	e.setState(res, StateDiff)
	remoteManifest, raw, err := e.remote.FetchManifest(ctx, remoteTag.Version())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return r.offline(err)
	}
	if digest := checksum.DigestBytes(raw); !checksum.Match(digest, remoteTag.Digest()) {
		return r.offline(&IntegrityError{Name: manifest.RemoteFileListName(remoteTag.Version()), Expected: remoteTag.Digest(), Actual: digest})
	}

	p := r.plan(remoteManifest)
	res.Adopted = p.adopted
	res.PlannedBytes = p.bytes
	for _, f := range p.downloads {
		res.Planned = append(res.Planned, f.Name)
	}
	for _, name := range slices.Sorted(maps.Keys(p.rejected)) {
		res.failed(name, p.rejected[name])
	}

	// Download
	e.setState(res, StateDownload)
	failedIndex, err := r.download(ctx, p)
	if err != nil {
		r.discardStaged(p)
		return err
	}
	if failedIndex {
		// the previous outer pair stays authoritative
		slog.Warn("sync catalog download failed, keeping previous state", "remote", remoteTag.Short())
		r.discardStaged(p)
		res.Degraded = true
		r.resolveCatalog(r.outer.Manifest)
		e.setState(res, StateDone)
		return nil
	}

	// Cleanup
	e.setState(res, StateCleanup)
	r.cleanup(func(name string) bool {
		return p.target.Has(name) || r.outer.Manifest.Has(name) || p.isStaged(name)
	})

	// Commit
	if err := ctx.Err(); err != nil {
		r.discardStaged(p)
		return err
	}
	e.setState(res, StateCommit)
	r.promote(p)
	committed, tag, err := r.commit(remoteManifest, remoteTag, p.target)
	if err != nil {
		return err
	}
	res.CommittedTag = tag

	r.cleanup(p.keepAfterCommit(committed))
	e.store.RemoveEmptyDirs()

	r.resolveCatalog(committed)
	e.setState(res, StateDone)
	return nil
}

// baseline is the local version the remote major version is gated against
func (r *round) baseline() manifest.SemVer {
	if !r.outer.Tag.IsZero() {
		return r.outer.Tag.SemVer()
	}
	return manifest.ParseSemVer(r.engine.opts.AppVersion)
}

func (r *round) offline(cause error) error {
	slog.Warn("sync offline, using local state", "error", cause)
	r.result.Degraded = true
	r.result.Error = cause.Error()
	r.engine.setState(r.result, StateOffline)
	r.resolveCatalog(r.outer.Manifest)
	return nil
}

// commit writes the outer manifest and tag. A round where every file landed commits the
// remote pair verbatim; otherwise failed entries fall back to their previous outer entry
// and the tag is derived from what was actually committed, so it differs from the remote one.
func (r *round) commit(remote *manifest.Manifest, remoteTag manifest.VersionTag, target *manifest.Manifest) (*manifest.Manifest, manifest.VersionTag, error) {
	committed, tag := remote, remoteTag

	if len(r.result.Failed) > 0 {
		committed = target.Clone()
		for _, f := range r.result.Failed {
			prev, ok := r.outer.Manifest.Get(f.Name)
			if ok && r.engine.store.HasFile(store.Outer, f.Name) {
				committed.Put(prev)
			} else {
				committed.Remove(f.Name)
			}
		}

		digest, err := committed.Digest()
		if err != nil {
			return nil, "", fmt.Errorf("sync: digest committed manifest: %w", err)
		}
		tag = manifest.NewVersionTag(remoteTag.Version(), digest)
		r.result.Degraded = true
	}

	if err := r.engine.store.WriteManifestAndTag(store.Outer, committed, tag); err != nil {
		return nil, "", err
	}
	return committed, tag, nil
}

// resolveCatalog records the active catalog, outer first then inner
func (r *round) resolveCatalog(current *manifest.Manifest) {
	name := ""
	if f, ok := current.Catalog(); ok {
		name = f.Name
	} else if f, ok := r.inner.Manifest.Catalog(); ok {
		name = f.Name
	}
	r.result.Catalog = name
	r.engine.store.SetCatalog(name)
}
