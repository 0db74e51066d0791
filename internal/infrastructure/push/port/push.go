package port

import (
	"context"
	"encoding/json"
)

// EventType is the change-feed event kind delivered by the backend.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

// Payload is one row-level change notification. Old is only populated for
// UPDATE events, and even then may be partial depending on the backend's
// replica identity settings. No cross-event ordering is guaranteed.
type Payload struct {
	Event EventType       `json:"event"`
	Table string          `json:"table"`
	Old   json.RawMessage `json:"old,omitempty"`
	New   json.RawMessage `json:"new"`
}

// Handler consumes a change notification. Handlers are invoked sequentially
// per subscription and must not block for long.
type Handler func(Payload)

// Subscription is a live listener on one logical channel. Close tears it
// down; closing twice is a no-op.
type Subscription interface {
	Close() error
}

// Channel is the push collaborator: subscribe-by-table with independent
// teardown per logical channel name. Adapters must deliver every payload
// published for the table after Subscribe returns, with at-least-once
// semantics; duplicates are the consumer's problem (de-dup by row id).
type Channel interface {
	Subscribe(ctx context.Context, name, table string, h Handler) (Subscription, error)
}

// Publisher is the producing side, used by the fan-out pipeline.
type Publisher interface {
	Publish(ctx context.Context, p Payload) error
}
