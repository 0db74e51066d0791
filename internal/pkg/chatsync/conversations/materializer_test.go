package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pushport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/port"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/clocktest"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/events"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type stubIdentity struct {
	id  string
	err error
}

func (s stubIdentity) Resolve(context.Context) (string, error) { return s.id, s.err }

type denyGuard struct{}

func (denyGuard) GuardAction(string, string) bool { return false }

// fixtureData is an in-memory backend shared by the refresh path and the
// create-or-get collaborator.
type fixtureData struct {
	mu        sync.Mutex
	links     []domain.ParticipantLink
	convs     map[string]domain.Conversation
	messages  []domain.Message
	listCalls int
	idsErr    error
	bulkErr   error
}

func newFixture() *fixtureData {
	return &fixtureData{convs: make(map[string]domain.Conversation)}
}

func (f *fixtureData) addConversation(id string, updated time.Time, a, b string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs[id] = domain.Conversation{ID: id, CreatedAt: updated, UpdatedAt: updated}
	f.links = append(f.links,
		domain.ParticipantLink{ConversationID: id, ParticipantID: a},
		domain.ParticipantLink{ConversationID: id, ParticipantID: b},
	)
}

func (f *fixtureData) addMessage(m domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
}

func (f *fixtureData) ConversationIDsFor(_ context.Context, participantID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.idsErr != nil {
		return nil, f.idsErr
	}
	var ids []string
	for _, l := range f.links {
		if l.ParticipantID == participantID {
			ids = append(ids, l.ConversationID)
		}
	}
	return ids, nil
}

func (f *fixtureData) ParticipantLinks(_ context.Context, conversationIDs []string) ([]domain.ParticipantLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	want := make(map[string]bool, len(conversationIDs))
	for _, id := range conversationIDs {
		want[id] = true
	}
	var out []domain.ParticipantLink
	for _, l := range f.links {
		if want[l.ConversationID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fixtureData) ConversationsByIDs(_ context.Context, conversationIDs []string) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	var out []domain.Conversation
	for _, id := range conversationIDs {
		if c, ok := f.convs[id]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fixtureData) RecentMessages(_ context.Context, conversationIDs []string, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	want := make(map[string]bool, len(conversationIDs))
	for _, id := range conversationIDs {
		want[id] = true
	}
	var out []domain.Message
	for _, m := range f.messages {
		if want[m.ConversationID] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Before(out[i]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fixtureData) MessagesWindow(context.Context, string, int) ([]domain.Message, error) {
	return nil, nil
}
func (f *fixtureData) InsertMessage(context.Context, domain.Message) error { return nil }
func (f *fixtureData) MarkConversationRead(context.Context, string, string) (int64, error) {
	return 0, nil
}
func (f *fixtureData) TouchConversation(context.Context, string, time.Time) error { return nil }

func (f *fixtureData) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type fixtureProfiles struct {
	missing map[string]bool
}

func (p *fixtureProfiles) ProfilesByParticipantIDs(_ context.Context, ids []string) (map[string]domain.Profile, error) {
	out := make(map[string]domain.Profile, len(ids))
	for _, id := range ids {
		if p.missing[id] {
			continue
		}
		out[id] = domain.Profile{ParticipantID: id, DisplayName: "profile " + id}
	}
	return out, nil
}

// fixtureCreator mimics the idempotent server-side create-or-get.
type fixtureCreator struct {
	mu    sync.Mutex
	data  *fixtureData
	next  int
	pairs map[string]string
	calls int
}

func newFixtureCreator(data *fixtureData) *fixtureCreator {
	return &fixtureCreator{data: data, pairs: make(map[string]string)}
}

func (c *fixtureCreator) CreateOrGet(_ context.Context, selfID, otherID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	key := selfID + "|" + otherID
	if selfID > otherID {
		key = otherID + "|" + selfID
	}
	if id, ok := c.pairs[key]; ok {
		return id, nil
	}
	c.next++
	id := fmt.Sprintf("conv-new-%d", c.next)
	c.pairs[key] = id
	c.data.addConversation(id, time.Now().UTC(), selfID, otherID)
	return id, nil
}

type fakeChannel struct {
	mu   sync.Mutex
	subs []*fakeSub
}

type fakeSub struct {
	h      pushport.Handler
	closed bool
}

func (s *fakeSub) Close() error { s.closed = true; return nil }

func (c *fakeChannel) Subscribe(_ context.Context, _, _ string, h pushport.Handler) (pushport.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := &fakeSub{h: h}
	c.subs = append(c.subs, sub)
	return sub, nil
}

func (c *fakeChannel) Emit(p pushport.Payload) {
	c.mu.Lock()
	handlers := make([]pushport.Handler, 0, len(c.subs))
	for _, s := range c.subs {
		if !s.closed {
			handlers = append(handlers, s.h)
		}
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(p)
	}
}

func insertPayload(t *testing.T, m domain.Message) pushport.Payload {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return pushport.Payload{Event: pushport.EventInsert, Table: events.TableMessages, New: b}
}

func updatePayload(t *testing.T, old, new domain.Message) pushport.Payload {
	t.Helper()
	ob, err := json.Marshal(old)
	require.NoError(t, err)
	nb, err := json.Marshal(new)
	require.NoError(t, err)
	return pushport.Payload{Event: pushport.EventUpdate, Table: events.TableMessages, Old: ob, New: nb}
}

type harness struct {
	m     *Materializer
	data  *fixtureData
	ch    *fakeChannel
	clock *clocktest.FakeClock
	cr    *fixtureCreator
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()
	data := newFixture()
	ch := &fakeChannel{}
	clock := clocktest.NewFakeClock(t0)
	cr := newFixtureCreator(data)
	cfg := Config{
		Data:     data,
		Profiles: &fixtureProfiles{},
		Creator:  cr,
		Resolver: stubIdentity{id: "alice"},
		Channel:  ch,
		Clock:    clock,
		Debounce: 400 * time.Millisecond,
	}
	for _, o := range opts {
		o(&cfg)
	}
	m := NewMaterializer(cfg)
	t.Cleanup(m.Close)
	return &harness{m: m, data: data, ch: ch, clock: clock, cr: cr}
}

func conversationIDs(views []domain.ConversationView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Conversation.ID
	}
	return out
}

func TestRefreshJoinsAndSorts(t *testing.T) {
	h := newHarness(t)
	h.data.addConversation("A", t0, "alice", "bob")
	h.data.addConversation("B", t0.Add(time.Minute), "alice", "carol")
	h.data.addMessage(domain.Message{ID: "a1", ConversationID: "A", SenderID: "bob", Content: "hi", CreatedAt: t0.Add(2 * time.Hour)})
	h.data.addMessage(domain.Message{ID: "a2", ConversationID: "A", SenderID: "bob", Content: "there", CreatedAt: t0.Add(3 * time.Hour)})
	h.data.addMessage(domain.Message{ID: "b1", ConversationID: "B", SenderID: "alice", Content: "yo", CreatedAt: t0.Add(time.Hour)})

	require.NoError(t, h.m.Refresh(context.Background()))

	views := h.m.Conversations()
	require.Equal(t, []string{"A", "B"}, conversationIDs(views))

	assert.Equal(t, "a2", views[0].LastMessage.ID, "head of the batch is the last message")
	assert.Equal(t, 2, views[0].UnreadCount)
	assert.Equal(t, "profile bob", views[0].Other.DisplayName)

	assert.Equal(t, "b1", views[1].LastMessage.ID)
	assert.Equal(t, 0, views[1].UnreadCount, "own messages never count as unread")
}

func TestRefreshWithoutIdentityPublishesEmpty(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Resolver = stubIdentity{id: ""} })
	h.data.addConversation("A", t0, "alice", "bob")

	require.NoError(t, h.m.Refresh(context.Background()))
	assert.Empty(t, h.m.Conversations())
	assert.NoError(t, h.m.Err())
}

func TestRefreshWithoutConversations(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.Refresh(context.Background()))
	assert.Empty(t, h.m.Conversations())
}

func TestRefreshExcludesDanglingProfiles(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Profiles = &fixtureProfiles{missing: map[string]bool{"ghost": true}}
	})
	h.data.addConversation("A", t0, "alice", "bob")
	h.data.addConversation("Z", t0.Add(time.Minute), "alice", "ghost")

	require.NoError(t, h.m.Refresh(context.Background()))
	assert.Equal(t, []string{"A"}, conversationIDs(h.m.Conversations()))
	assert.NoError(t, h.m.Err(), "a dangling reference is not displayable, not fatal")
}

func TestRefreshFailureKeepsPreviousList(t *testing.T) {
	h := newHarness(t)
	h.data.addConversation("A", t0, "alice", "bob")
	require.NoError(t, h.m.Refresh(context.Background()))
	require.Len(t, h.m.Conversations(), 1)

	h.data.mu.Lock()
	h.data.idsErr = errors.New("network down")
	h.data.mu.Unlock()

	err := h.m.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, h.m.Err(), domain.ErrTransport)
	assert.Len(t, h.m.Conversations(), 1, "stale data beats an empty screen")
}

func TestInsertEventBumpsUnreadAndResorts(t *testing.T) {
	h := newHarness(t)
	h.data.addConversation("A", t0, "alice", "bob")
	h.data.addConversation("B", t0.Add(time.Hour), "alice", "carol")
	h.data.addMessage(domain.Message{ID: "a1", ConversationID: "A", SenderID: "bob", CreatedAt: t0.Add(time.Minute)})
	h.data.addMessage(domain.Message{ID: "a2", ConversationID: "A", SenderID: "bob", CreatedAt: t0.Add(2 * time.Minute)})

	ctx := context.Background()
	require.NoError(t, h.m.Start(ctx))
	require.NoError(t, h.m.Refresh(ctx))

	views := h.m.Conversations()
	require.Equal(t, []string{"B", "A"}, conversationIDs(views))
	require.Equal(t, 2, views[1].UnreadCount)

	refreshesBefore := h.data.refreshCount()
	h.ch.Emit(insertPayload(t, domain.Message{
		ID: "a3", ConversationID: "A", SenderID: "bob", Content: "ping", CreatedAt: t0.Add(2 * time.Hour),
	}))

	views = h.m.Conversations()
	require.Equal(t, []string{"A", "B"}, conversationIDs(views), "A moves to the top")
	assert.Equal(t, 3, views[0].UnreadCount)
	assert.Equal(t, "a3", views[0].LastMessage.ID)
	assert.Equal(t, 0, views[1].UnreadCount, "B is unchanged")
	assert.Equal(t, refreshesBefore, h.data.refreshCount(), "the optimistic path never refetches")
}

func TestInsertEventRedeliveryDoesNotOvercount(t *testing.T) {
	h := newHarness(t)
	h.data.addConversation("A", t0, "alice", "bob")

	ctx := context.Background()
	require.NoError(t, h.m.Start(ctx))
	require.NoError(t, h.m.Refresh(ctx))

	// At-least-once delivery: the same insert arrives twice.
	msg := domain.Message{ID: "a1", ConversationID: "A", SenderID: "bob", Content: "hi", CreatedAt: t0.Add(time.Minute)}
	h.ch.Emit(insertPayload(t, msg))
	h.ch.Emit(insertPayload(t, msg))

	views := h.m.Conversations()
	require.Len(t, views, 1)
	assert.Equal(t, 1, views[0].UnreadCount, "one message, one unread")
	assert.Equal(t, "a1", views[0].LastMessage.ID)
}

func TestInsertForUnknownConversationSelfHeals(t *testing.T) {
	h := newHarness(t)
	h.data.addConversation("A", t0, "alice", "bob")

	ctx := context.Background()
	require.NoError(t, h.m.Start(ctx))
	require.NoError(t, h.m.Refresh(ctx))
	require.Len(t, h.m.Conversations(), 1)

	// The other party just created conversation N and sent the first message;
	// our list has never seen N.
	h.data.addConversation("N", t0.Add(time.Hour), "alice", "carol")
	h.ch.Emit(insertPayload(t, domain.Message{
		ID: "n1", ConversationID: "N", SenderID: "carol", Content: "hello!", CreatedAt: t0.Add(time.Hour),
	}))

	assert.Len(t, h.m.Conversations(), 1, "incremental path takes no action for unknown conversations")

	h.clock.Advance(400 * time.Millisecond)
	assert.Contains(t, conversationIDs(h.m.Conversations()), "N", "debounced reconciliation picks it up")
}

func TestUpdateBurstTriggersSingleRefresh(t *testing.T) {
	h := newHarness(t)
	h.data.addConversation("A", t0, "alice", "bob")
	for i := 0; i < 5; i++ {
		h.data.addMessage(domain.Message{
			ID: fmt.Sprintf("a%d", i), ConversationID: "A", SenderID: "bob",
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		})
	}

	ctx := context.Background()
	require.NoError(t, h.m.Start(ctx))
	require.NoError(t, h.m.Refresh(ctx))
	before := h.data.refreshCount()

	// Five read receipts within 100ms, as with a batch mark-as-read.
	for i := 0; i < 5; i++ {
		old := domain.Message{ID: fmt.Sprintf("a%d", i), ConversationID: "A", SenderID: "bob", CreatedAt: t0.Add(time.Duration(i) * time.Minute)}
		read := old
		read.IsRead = true
		h.ch.Emit(updatePayload(t, old, read))
		h.clock.Advance(20 * time.Millisecond)
	}
	assert.Equal(t, before, h.data.refreshCount(), "no refresh mid-burst")

	h.clock.Advance(400 * time.Millisecond)
	assert.Equal(t, before+1, h.data.refreshCount(), "exactly one coalesced refresh")
}

func TestUpdateEventDecrementsUnread(t *testing.T) {
	h := newHarness(t)
	h.data.addConversation("A", t0, "alice", "bob")
	unread := domain.Message{ID: "a1", ConversationID: "A", SenderID: "bob", CreatedAt: t0.Add(time.Minute)}
	h.data.addMessage(unread)

	ctx := context.Background()
	require.NoError(t, h.m.Start(ctx))
	require.NoError(t, h.m.Refresh(ctx))
	require.Equal(t, 1, h.m.Conversations()[0].UnreadCount)

	read := unread
	read.IsRead = true
	h.ch.Emit(updatePayload(t, unread, read))
	assert.Equal(t, 0, h.m.Conversations()[0].UnreadCount)
}

func TestCreateOrGetConversationIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.m.CreateOrGetConversation(ctx, "bob")
	require.NoError(t, err)
	second, err := h.m.CreateOrGetConversation(ctx, "bob")
	require.NoError(t, err)

	assert.Equal(t, first, second, "same pair yields the same conversation")
	assert.Equal(t, 2, h.cr.calls)
}

func TestCreateOrGetConversationGuarded(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Guard = denyGuard{} })
	_, err := h.m.CreateOrGetConversation(context.Background(), "bob")
	assert.ErrorIs(t, err, domain.ErrPolicyBlocked)
	assert.Zero(t, h.cr.calls)
}

func TestCreateOrGetConversationValidatesInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.m.CreateOrGetConversation(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateOrGetConversationWithoutIdentity(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Resolver = stubIdentity{id: ""} })
	_, err := h.m.CreateOrGetConversation(context.Background(), "bob")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}
