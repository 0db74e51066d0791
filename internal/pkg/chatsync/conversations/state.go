package conversations

import (
	"sort"

	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
)

// Named transitions on the published conversation list. Keeping them as
// plain functions makes each optimistic delta testable on its own; the
// materializer only decides which one to apply.

// applyInsert folds a newly appended message into the list: the owning
// conversation gets the message as its lastMessage, its unread count grows
// by one when the sender is someone else, and the list is re-sorted by most
// recent activity. Reports false when the conversation is not in the list
// (e.g. just created by the other party); the caller falls back to a
// debounced reconciliation for that case.
func applyInsert(views []domain.ConversationView, selfID string, m domain.Message) ([]domain.ConversationView, bool) {
	for i := range views {
		if views[i].Conversation.ID != m.ConversationID {
			continue
		}
		// Delivery is at-least-once; a redelivered insert must not count
		// twice.
		if views[i].LastMessage != nil && views[i].LastMessage.ID == m.ID {
			return views, true
		}
		msg := m
		views[i].LastMessage = &msg
		if m.UnreadBy(selfID) {
			views[i].UnreadCount++
		}
		sortByActivity(views)
		return views, true
	}
	return views, false
}

// applyReadUpdate patches a read-state change locally: the unread count
// drops by one for a message that transitioned to read, and a matching
// lastMessage is updated in place. The patch is advisory — UPDATE events can
// represent batched remote changes not fully describable from one payload —
// so callers always schedule a reconciliation afterwards.
func applyReadUpdate(views []domain.ConversationView, selfID string, m domain.Message, old *domain.Message) ([]domain.ConversationView, bool) {
	for i := range views {
		if views[i].Conversation.ID != m.ConversationID {
			continue
		}
		// Without a pre-image we assume the flag actually flipped; the
		// scheduled reconciliation corrects any overcount.
		flipped := m.IsRead && m.SenderID != selfID && (old == nil || !old.IsRead)
		if flipped && views[i].UnreadCount > 0 {
			views[i].UnreadCount--
		}
		if views[i].LastMessage != nil && views[i].LastMessage.ID == m.ID {
			msg := m
			views[i].LastMessage = &msg
		}
		return views, true
	}
	return views, false
}

// sortByActivity orders the list most-recent-activity first: last message
// time when known, conversation UpdatedAt otherwise. Conversation id breaks
// exact ties to keep the order stable across rebuilds.
func sortByActivity(views []domain.ConversationView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].LastActivityAt(), views[j].LastActivityAt()
		if a.Equal(b) {
			return views[i].Conversation.ID < views[j].Conversation.ID
		}
		return a.After(b)
	})
}

// recentBatchSize bounds the cross-conversation message fetch: it scales
// with the conversation count but is capped to bound worst-case query cost.
func recentBatchSize(conversationCount int) int {
	size := conversationCount * 10
	if size < 50 {
		size = 50
	}
	if size > 500 {
		size = 500
	}
	return size
}
