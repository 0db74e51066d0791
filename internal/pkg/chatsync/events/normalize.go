// Package events converts raw change-feed payloads into the engine's
// internal event kinds before any component logic runs, so the stores and
// the materializer never touch transport-specific payload shapes.
package events

import (
	"encoding/json"

	pushport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/port"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
)

// TableMessages is the change-feed table name for the message log.
const TableMessages = "message"

// Event is one normalized change notification.
type Event interface{ isEvent() }

// MessageInserted is a newly appended message.
type MessageInserted struct {
	Message domain.Message
}

// MessageUpdated is a field change on an existing message (read receipts in
// practice). Old carries the pre-image when the backend supplies one; it can
// be nil or partial and must be treated as advisory.
type MessageUpdated struct {
	Message domain.Message
	Old     *domain.Message
}

// Unhandled is anything the engine does not process incrementally:
// non-message tables, unknown event kinds, or undecodable rows.
type Unhandled struct {
	Table string
	Event pushport.EventType
}

func (MessageInserted) isEvent() {}
func (MessageUpdated) isEvent()  {}
func (Unhandled) isEvent()       {}

// Normalize maps a raw payload to exactly one Event. It never fails; rows
// that cannot be decoded degrade to Unhandled so a caller can fall back to a
// full reconciliation instead of acting on garbage.
func Normalize(p pushport.Payload) Event {
	if p.Table != TableMessages {
		return Unhandled{Table: p.Table, Event: p.Event}
	}

	var msg domain.Message
	if err := json.Unmarshal(p.New, &msg); err != nil || msg.ID == "" {
		return Unhandled{Table: p.Table, Event: p.Event}
	}

	switch p.Event {
	case pushport.EventInsert:
		return MessageInserted{Message: msg}
	case pushport.EventUpdate:
		var old *domain.Message
		if len(p.Old) > 0 {
			var o domain.Message
			if err := json.Unmarshal(p.Old, &o); err == nil && o.ID != "" {
				old = &o
			}
		}
		return MessageUpdated{Message: msg, Old: old}
	default:
		return Unhandled{Table: p.Table, Event: p.Event}
	}
}
