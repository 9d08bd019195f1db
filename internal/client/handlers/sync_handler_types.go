package handlers

import bsync "github.com/bundlesync/bundlesync/internal/client/sync"

// SyncTriggerResponse is returned when a round is started without waiting for it
type SyncTriggerResponse struct {
	Code  string      `json:"code"`
	State bsync.State `json:"state"`
}

// SyncResultResponse is returned when the caller waited for the round
type SyncResultResponse struct {
	Code   string        `json:"code"`
	Shared bool          `json:"shared"` // joined a round that was already running.
	Result *bsync.Result `json:"result"`
}
