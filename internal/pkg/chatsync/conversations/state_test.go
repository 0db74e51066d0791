package conversations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
)

func view(convID string, updated time.Time, last *domain.Message, unread int) domain.ConversationView {
	return domain.ConversationView{
		Conversation: domain.Conversation{ID: convID, UpdatedAt: updated},
		Other:        domain.Profile{ParticipantID: "other-" + convID},
		LastMessage:  last,
		UnreadCount:  unread,
	}
}

func TestApplyInsertIncrementsAndResorts(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := domain.Message{ID: "a1", ConversationID: "A", SenderID: "bob", CreatedAt: t0}
	views := []domain.ConversationView{
		view("B", t0.Add(time.Hour), nil, 0),
		view("A", t0, &older, 2),
	}

	incoming := domain.Message{ID: "a2", ConversationID: "A", SenderID: "bob", CreatedAt: t0.Add(2 * time.Hour)}
	views, found := applyInsert(views, "alice", incoming)

	require.True(t, found)
	assert.Equal(t, "A", views[0].Conversation.ID, "A moves to the top")
	assert.Equal(t, 3, views[0].UnreadCount)
	assert.Equal(t, "a2", views[0].LastMessage.ID)
	assert.Equal(t, 0, views[1].UnreadCount, "B is unchanged")
}

func TestApplyInsertRedeliveryCountsOnce(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	views := []domain.ConversationView{view("A", t0, nil, 0)}

	incoming := domain.Message{ID: "a1", ConversationID: "A", SenderID: "bob", CreatedAt: t0.Add(time.Minute)}
	views, found := applyInsert(views, "alice", incoming)
	require.True(t, found)
	require.Equal(t, 1, views[0].UnreadCount)

	views, found = applyInsert(views, "alice", incoming)
	require.True(t, found)
	assert.Equal(t, 1, views[0].UnreadCount, "a redelivered insert never counts twice")
	assert.Equal(t, "a1", views[0].LastMessage.ID)
}

func TestApplyInsertFromSelfDoesNotIncrement(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	views := []domain.ConversationView{view("A", t0, nil, 1)}

	own := domain.Message{ID: "a1", ConversationID: "A", SenderID: "alice", CreatedAt: t0.Add(time.Minute)}
	views, found := applyInsert(views, "alice", own)

	require.True(t, found)
	assert.Equal(t, 1, views[0].UnreadCount)
	assert.Equal(t, "a1", views[0].LastMessage.ID)
}

func TestApplyInsertUnknownConversation(t *testing.T) {
	views := []domain.ConversationView{view("A", time.Now(), nil, 0)}
	msg := domain.Message{ID: "x1", ConversationID: "X", SenderID: "bob", CreatedAt: time.Now()}

	got, found := applyInsert(views, "alice", msg)
	assert.False(t, found)
	assert.Len(t, got, 1)
}

func TestApplyReadUpdateDecrements(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	unread := domain.Message{ID: "a1", ConversationID: "A", SenderID: "bob", CreatedAt: t0}
	views := []domain.ConversationView{view("A", t0, &unread, 2)}

	read := unread
	read.IsRead = true
	old := unread
	views, found := applyReadUpdate(views, "alice", read, &old)

	require.True(t, found)
	assert.Equal(t, 1, views[0].UnreadCount)
	assert.True(t, views[0].LastMessage.IsRead, "matching lastMessage is patched in place")
}

func TestApplyReadUpdateNeverGoesNegative(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := domain.Message{ID: "a1", ConversationID: "A", SenderID: "bob", CreatedAt: t0, IsRead: true}
	views := []domain.ConversationView{view("A", t0, nil, 0)}

	views, _ = applyReadUpdate(views, "alice", msg, nil)
	assert.Equal(t, 0, views[0].UnreadCount)
}

func TestApplyReadUpdateIgnoresAlreadyReadPreImage(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := domain.Message{ID: "a1", ConversationID: "A", SenderID: "bob", CreatedAt: t0, IsRead: true}
	old := msg // pre-image already read: a no-op update replay
	views := []domain.ConversationView{view("A", t0, nil, 2)}

	views, _ = applyReadUpdate(views, "alice", msg, &old)
	assert.Equal(t, 2, views[0].UnreadCount)
}

func TestSortByActivityFallsBackToUpdatedAt(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	last := domain.Message{ID: "b1", ConversationID: "B", SenderID: "bob", CreatedAt: t0.Add(time.Hour)}
	views := []domain.ConversationView{
		view("A", t0.Add(2*time.Hour), nil, 0), // no message, recent updatedAt
		view("B", t0, &last, 0),
	}

	sortByActivity(views)
	assert.Equal(t, "A", views[0].Conversation.ID)
}

func TestRecentBatchSizeBounds(t *testing.T) {
	assert.Equal(t, 50, recentBatchSize(0))
	assert.Equal(t, 50, recentBatchSize(3))
	assert.Equal(t, 120, recentBatchSize(12))
	assert.Equal(t, 500, recentBatchSize(80))
}
