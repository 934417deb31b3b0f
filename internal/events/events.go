package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventSyncCompleted       = "sync_completed"
	EventEntryLocked         = "entry_locked"
	EventEntryDiscarded      = "entry_discarded"
	EventConnectivityChanged = "connectivity_changed"
)

// SyncCompletedPayload summarizes one finished pass for event consumers.
type SyncCompletedPayload struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Conflicts int `json:"conflicts"`
	Total     int `json:"total"`
}

// EntryLockedPayload describes an entry parked for manual conflict review.
type EntryLockedPayload struct {
	EntryID string `json:"entry_id"`
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
}

// EntryDiscardedPayload describes an entry dropped after exhausting retries.
type EntryDiscardedPayload struct {
	EntryID   string `json:"entry_id"`
	Kind      string `json:"kind"`
	LastError string `json:"last_error,omitempty"`
}

// ConnectivityChangedPayload carries an online/offline transition.
type ConnectivityChangedPayload struct {
	Online bool `json:"online"`
}

// Event represents a lightweight in-process event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
