package domain

import "time"

// ConversationView is the derived, in-memory projection published to the UI:
// the conversation, the other participant's profile, the most recent message
// (if any within the loaded window), and an unread count.
//
// UnreadCount equals the number of messages with SenderID != self and
// IsRead == false as observed within the fetched message window. When the
// window is smaller than the full history this is an approximation, accepted
// by design.
type ConversationView struct {
	Conversation Conversation `json:"conversation"`
	Other        Profile      `json:"other"`
	LastMessage  *Message     `json:"last_message,omitempty"`
	UnreadCount  int          `json:"unread_count"`
}

// LastActivityAt is the sort key for "most recent activity first": the last
// message's timestamp when one is known, otherwise the conversation's
// UpdatedAt.
func (v ConversationView) LastActivityAt() time.Time {
	if v.LastMessage != nil {
		return v.LastMessage.CreatedAt
	}
	return v.Conversation.UpdatedAt
}
