package models

import "time"

// SyncError records why one entry could not be delivered during a pass.
type SyncError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SyncResult aggregates the outcome of one push/pull pass. Conflicts are
// counted separately from failures: a conflicted entry is parked for manual
// review, not retried.
type SyncResult struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Conflicts int         `json:"conflicts"`
	Total     int         `json:"total"`
	Errors    []SyncError `json:"errors,omitempty"`
}

// SyncStatus is the snapshot exposed to UI and the local status API.
type SyncStatus struct {
	IsOnline         bool       `json:"is_online"`
	QueuedOperations int        `json:"queued_operations"`
	LastSyncAt       *time.Time `json:"last_sync_at,omitempty"`
	CachedItemCount  int        `json:"cached_item_count"`
	NeedsSync        bool       `json:"needs_sync"`
}
