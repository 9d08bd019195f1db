package sync

import (
	"errors"
	"fmt"

	"github.com/bundlesync/bundlesync/internal/manifest"
)

var (
	ErrSyncAlreadyRunning   = errors.New("sync already running")
	ErrForceUpgradeRequired = errors.New("sync: remote version requires a full reinstall")
	ErrIntegrity            = errors.New("sync: digest mismatch")
	ErrNoStore              = errors.New("sync: store is required")
	ErrNoRemote             = errors.New("sync: remote is required")
)

// BreakingVersionError is returned when the remote major version is ahead of the local one.
// The outer store is left untouched.
type BreakingVersionError struct {
	Local     manifest.SemVer
	Remote    manifest.SemVer
	RemoteTag manifest.VersionTag
}

func (e *BreakingVersionError) Error() string {
	return fmt.Sprintf("sync: remote %s is a breaking upgrade from %s, reinstall required", e.Remote, e.Local)
}

func (e *BreakingVersionError) Is(target error) bool {
	return target == ErrForceUpgradeRequired
}

// IntegrityError is content whose digest does not match what the manifest declares
type IntegrityError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	actual := e.Actual
	if actual == "" {
		actual = "unreadable"
	}
	return fmt.Sprintf("sync: %s: digest %s, want %s", e.Name, actual, e.Expected)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}
