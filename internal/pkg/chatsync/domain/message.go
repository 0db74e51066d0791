package domain

import "time"

// Message is an append-only log entry in a conversation. Nothing is ever
// mutated after insert except IsRead, which flips false→true exactly once,
// and only by a participant who is not the sender.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	IsRead         bool      `db:"is_read" json:"is_read"`
}

// Before reports whether m sorts ahead of other in display order.
// Ordering key is CreatedAt with ID as the tie-break for same-instant inserts.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// UnreadBy reports whether m counts against participantID's unread total:
// authored by someone else and not yet read.
func (m Message) UnreadBy(participantID string) bool {
	return m.SenderID != participantID && !m.IsRead
}
