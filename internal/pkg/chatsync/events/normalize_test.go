package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pushport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/port"
)

func rawMessage(t *testing.T, id string, isRead bool) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":              id,
		"conversation_id": "conv-1",
		"sender_id":       "alice",
		"content":         "hey",
		"created_at":      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		"is_read":         isRead,
	})
	require.NoError(t, err)
	return b
}

func TestNormalizeInsert(t *testing.T) {
	ev := Normalize(pushport.Payload{
		Event: pushport.EventInsert,
		Table: TableMessages,
		New:   rawMessage(t, "m1", false),
	})

	ins, ok := ev.(MessageInserted)
	require.True(t, ok, "expected MessageInserted, got %T", ev)
	assert.Equal(t, "m1", ins.Message.ID)
	assert.Equal(t, "conv-1", ins.Message.ConversationID)
	assert.False(t, ins.Message.IsRead)
}

func TestNormalizeUpdateCarriesOldRow(t *testing.T) {
	ev := Normalize(pushport.Payload{
		Event: pushport.EventUpdate,
		Table: TableMessages,
		Old:   rawMessage(t, "m1", false),
		New:   rawMessage(t, "m1", true),
	})

	upd, ok := ev.(MessageUpdated)
	require.True(t, ok, "expected MessageUpdated, got %T", ev)
	assert.True(t, upd.Message.IsRead)
	require.NotNil(t, upd.Old)
	assert.False(t, upd.Old.IsRead)
}

func TestNormalizeUpdateWithoutOldRow(t *testing.T) {
	ev := Normalize(pushport.Payload{
		Event: pushport.EventUpdate,
		Table: TableMessages,
		New:   rawMessage(t, "m1", true),
	})

	upd, ok := ev.(MessageUpdated)
	require.True(t, ok)
	assert.Nil(t, upd.Old)
}

func TestNormalizeForeignTableIsUnhandled(t *testing.T) {
	ev := Normalize(pushport.Payload{
		Event: pushport.EventInsert,
		Table: "conversation",
		New:   json.RawMessage(`{"id":"conv-1"}`),
	})

	un, ok := ev.(Unhandled)
	require.True(t, ok)
	assert.Equal(t, "conversation", un.Table)
}

func TestNormalizeGarbageRowIsUnhandled(t *testing.T) {
	ev := Normalize(pushport.Payload{
		Event: pushport.EventInsert,
		Table: TableMessages,
		New:   json.RawMessage(`{not json`),
	})

	_, ok := ev.(Unhandled)
	assert.True(t, ok)
}

func TestNormalizeDeleteIsUnhandled(t *testing.T) {
	ev := Normalize(pushport.Payload{
		Event: pushport.EventType("DELETE"),
		Table: TableMessages,
		New:   rawMessage(t, "m1", false),
	})

	_, ok := ev.(Unhandled)
	assert.True(t, ok)
}
