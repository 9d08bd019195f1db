package sync

import (
	"context"
	"time"

	"github.com/bundlesync/bundlesync/internal/bundlesdk"
	"github.com/bundlesync/bundlesync/internal/manifest"
)

// State is a step of a sync round
type State string

const (
	StateIdle         State = "idle"
	StateScanLocal    State = "scan_local"
	StateCheckRemote  State = "check_remote_version"
	StateUpToDate     State = "up_to_date"
	StateForceUpgrade State = "force_upgrade_required"
	StateOffline      State = "offline_fallback"
	StateDiff         State = "diff"
	StateDownload     State = "download"
	StateCleanup      State = "cleanup"
	StateCommit       State = "commit"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Terminal reports whether a round ends in this state
func (s State) Terminal() bool {
	switch s {
	case StateUpToDate, StateForceUpgrade, StateOffline, StateDone, StateFailed:
		return true
	}
	return false
}

// Remote is the distribution endpoint a round syncs against. *bundlesdk.SDK implements it.
type Remote interface {
	FetchVersionTag(ctx context.Context) (manifest.VersionTag, error)
	FetchManifest(ctx context.Context, version string) (*manifest.Manifest, []byte, error)
	Download(ctx context.Context, name, dest string, progress bundlesdk.ProgressFunc) (int64, error)
}

var _ Remote = (*bundlesdk.SDK)(nil)

type Options struct {
	// AppVersion is the installed application version, compared against the remote
	// major version when the outer store has never been committed.
	AppVersion string
	// FileTimeout bounds each download. Zero means no bound beyond the remote's own.
	FileTimeout time.Duration
	// History records finished rounds when set.
	History *History
}

// FileFailure is a planned file that was not accepted this round
type FileFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Result describes one sync round
type Result struct {
	ID           string              `json:"id"`
	State        State               `json:"state"`
	Degraded     bool                `json:"degraded"`
	LocalTag     manifest.VersionTag `json:"localTag"`
	RemoteTag    manifest.VersionTag `json:"remoteTag,omitempty"`
	CommittedTag manifest.VersionTag `json:"committedTag,omitempty"`
	Catalog      string              `json:"catalog,omitempty"`

	Planned    []string      `json:"planned"`
	Downloaded []string      `json:"downloaded"`
	Adopted    []string      `json:"adopted"`
	Failed     []FileFailure `json:"failed"`
	Removed    []string      `json:"removed"`

	PlannedBytes    int64 `json:"plannedBytes"`
	DownloadedBytes int64 `json:"downloadedBytes"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Error      string    `json:"error,omitempty"`
}

func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Result) failed(name string, err error) {
	r.Failed = append(r.Failed, FileFailure{Name: name, Error: err.Error()})
}
