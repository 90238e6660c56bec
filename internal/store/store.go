package store

import "time"

// Item is the storage representation of one bar item.
type Item struct {
	// Kind is the producer kind of the item.
	Kind string `json:"kind"`

	// Text is the rendered text including decoration.
	// nil indicates the item currently has no value.
	Text *string `json:"text"`
}

// Snapshot is the last published state of the bar, optimized for JSON
// serialization (used by the REST API and SSE). It is decoupled from the
// scheduler's internal types to allow independent evolution.
type Snapshot struct {
	// Text is the composed bar string exactly as sent to the display.
	Text string `json:"text"`

	// Items lists every configured item in display order.
	Items []Item `json:"items"`

	// Tick is the tick counter value of the pass that published.
	Tick uint64 `json:"tick"`

	// Reason says what caused the pass ("initial", "tick", "trigger", "watch").
	Reason string `json:"reason"`

	// TriggerID is the external trigger of a trigger pass, 0 otherwise.
	TriggerID int `json:"trigger_id,omitempty"`

	// PublishedAt is when the text was handed to the display.
	PublishedAt time.Time `json:"published_at"`

	// Error contains the display error if the publish failed.
	Error *string `json:"error"`
}

// Store defines the interface for storing and subscribing to bar snapshots.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Update replaces the latest snapshot and notifies all subscribers.
	Update(snap Snapshot)

	// Latest returns the most recent snapshot, or false if nothing has been
	// published yet.
	Latest() (Snapshot, bool)

	// Subscribe returns a channel that receives snapshots.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)

	// Subscribers returns the number of active subscriptions.
	Subscribers() int
}
