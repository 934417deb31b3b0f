package models

import "time"

// QueueEntry represents one queued mutation waiting for delivery to the
// warehouse service. Entries are created while the device is offline (or as
// a fallback when an online submit fails) and removed once the remote side
// confirms acceptance.
type QueueEntry struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

// SessionPayload opens a new counting session on the warehouse service.
type SessionPayload struct {
	SessionID string    `json:"session_id"`
	Warehouse string    `json:"warehouse"`
	Operator  string    `json:"operator"`
	StartedAt time.Time `json:"started_at"`
}

// CountLinePayload submits one counted line within a session.
type CountLinePayload struct {
	SessionID  string    `json:"session_id"`
	ItemCode   string    `json:"item_code"`
	CountedQty float64   `json:"counted_qty"`
	CountedAt  time.Time `json:"counted_at"`
}

// UnknownItemPayload reports a barcode that could not be matched to the
// item master.
type UnknownItemPayload struct {
	SessionID string    `json:"session_id"`
	Barcode   string    `json:"barcode"`
	Note      string    `json:"note,omitempty"`
	SeenAt    time.Time `json:"seen_at"`
}
