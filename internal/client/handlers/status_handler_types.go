package handlers

import (
	bsync "github.com/bundlesync/bundlesync/internal/client/sync"
	"github.com/bundlesync/bundlesync/internal/manifest"
)

// StatusResponse represents the health and sync status of the client.
type StatusResponse struct {
	Status    string              `json:"status"`    // health status ("ok").
	Timestamp string              `json:"ts"`        // timestamp when the status was taken.
	Version   string              `json:"version"`   // version of the client.
	Revision  string              `json:"revision"`  // revision of the client.
	BuildDate string              `json:"buildDate"` // build date of the client.
	Platform  string              `json:"platform"`
	State     bsync.State         `json:"state"` // step of the running round, idle between rounds.
	InnerTag  manifest.VersionTag `json:"innerTag"`
	OuterTag  manifest.VersionTag `json:"outerTag"`
	Catalog   string              `json:"catalog,omitempty"` // active catalog location.
	LastSync  *bsync.Result       `json:"lastSync,omitempty"`
}
