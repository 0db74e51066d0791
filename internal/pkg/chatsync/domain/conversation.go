package domain

import "time"

// Conversation is a 1:1 thread. UpdatedAt is the authoritative recency
// marker; the server bumps it whenever a message is appended. Clients hold
// a read-only, eventually-consistent projection of it.
type Conversation struct {
	ID        string    `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ParticipantLink joins a participant to a conversation. Exactly two links
// exist per conversation in this domain; they are created once at
// conversation-creation time and never change.
type ParticipantLink struct {
	ConversationID string `db:"conversation_id" json:"conversation_id"`
	ParticipantID  string `db:"participant_id" json:"participant_id"`
}
