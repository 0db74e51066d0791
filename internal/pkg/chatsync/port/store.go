package port

import (
	"context"
	"time"

	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
)

// DataStore defines the query and mutation operations the sync engine needs
// from the backing store. Implementations must be concurrency-safe and
// context-aware; all failures they return are treated as transport-level.
type DataStore interface {
	// ConversationIDsFor returns the ids of every conversation the given
	// participant is linked to, in no particular order.
	ConversationIDsFor(ctx context.Context, participantID string) ([]string, error)

	// ParticipantLinks returns all links for the given conversations.
	ParticipantLinks(ctx context.Context, conversationIDs []string) ([]domain.ParticipantLink, error)

	// ConversationsByIDs returns the conversations ordered by UpdatedAt
	// descending.
	ConversationsByIDs(ctx context.Context, conversationIDs []string) ([]domain.Conversation, error)

	// RecentMessages returns up to limit messages across the given
	// conversations, newest first.
	RecentMessages(ctx context.Context, conversationIDs []string, limit int) ([]domain.Message, error)

	// MessagesWindow returns the most recent limit messages of one
	// conversation, ordered oldest→newest.
	MessagesWindow(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)

	// InsertMessage appends a new message. The caller supplies the id so the
	// push echo can be de-duplicated against it.
	InsertMessage(ctx context.Context, m domain.Message) error

	// MarkConversationRead flips IsRead on every message in the conversation
	// that was authored by someone other than readerID and is still unread,
	// in one batched update. Returns the number of rows changed.
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)

	// TouchConversation bumps the conversation's UpdatedAt recency marker.
	TouchConversation(ctx context.Context, conversationID string, at time.Time) error
}
