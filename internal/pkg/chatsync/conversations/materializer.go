// Package conversations materializes the caller's conversation list: each
// conversation annotated with the other participant's profile, the most
// recent message and an unread count. The list is rebuilt by Refresh and
// kept current between rebuilds by optimistic deltas from push events.
package conversations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pushport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/port"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/events"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/port"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/reconcile"
)

// Config wires a Materializer to its collaborators. Data, Profiles, Creator,
// Resolver and Channel are required; the rest have defaults.
type Config struct {
	Data     port.DataStore
	Profiles port.ProfileDirectory
	Creator  port.ConversationCreator
	Resolver port.SelfIdentity
	Guard    port.ActionGuard
	Channel  pushport.Channel
	Clock    port.Clock
	Debounce time.Duration
	Logger   *slog.Logger
}

// Materializer owns the in-memory conversation list. The list is mutated
// only by its own Refresh completion and its own push handlers — never by a
// message store — so the two components need no shared lock; they meet only
// in the backing store.
type Materializer struct {
	data     port.DataStore
	profiles port.ProfileDirectory
	creator  port.ConversationCreator
	resolver port.SelfIdentity
	guard    port.ActionGuard
	channel  pushport.Channel
	sched    *reconcile.Scheduler
	log      *slog.Logger

	// refreshMu serializes full rebuilds; mu guards the published state.
	refreshMu sync.Mutex
	mu        sync.Mutex
	views     []domain.ConversationView
	selfID    string
	loading   bool
	err       error
	sub       pushport.Subscription
}

// NewMaterializer builds an idle materializer. Call Start to attach the
// push listener, then Refresh for the initial load.
func NewMaterializer(cfg Config) *Materializer {
	if cfg.Guard == nil {
		cfg.Guard = port.AllowAll{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m := &Materializer{
		data:     cfg.Data,
		profiles: cfg.Profiles,
		creator:  cfg.Creator,
		resolver: cfg.Resolver,
		guard:    cfg.Guard,
		channel:  cfg.Channel,
		log:      cfg.Logger,
	}
	m.sched = reconcile.NewScheduler(cfg.Clock, cfg.Debounce, m.reconcile)
	return m
}

// Start subscribes the single global push listener covering every
// conversation the caller can see. Idempotent.
func (m *Materializer) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.sub != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	sub, err := m.channel.Subscribe(ctx, "conversation-updates", events.TableMessages, m.handlePush)
	if err != nil {
		return fmt.Errorf("%w: subscribe conversation updates: %v", domain.ErrTransport, err)
	}

	m.mu.Lock()
	already := m.sub != nil
	if !already {
		m.sub = sub
	}
	m.mu.Unlock()
	if already {
		_ = sub.Close()
	}
	return nil
}

// Refresh is the full-rebuild path: conversations → participant links →
// recent messages → profiles, joined in memory and published as one sorted
// list. Transport failures leave the previous list intact and surface on
// Err; an unresolvable identity publishes an empty list and is not an error.
func (m *Materializer) Refresh(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.setLoading(true)
	defer m.setLoading(false)

	selfID, err := m.resolver.Resolve(ctx)
	if err != nil {
		return m.fail(err)
	}
	if selfID == "" {
		m.publish("", nil)
		return nil
	}

	ids, err := m.data.ConversationIDsFor(ctx, selfID)
	if err != nil {
		return m.fail(fmt.Errorf("%w: list conversations: %v", domain.ErrTransport, err))
	}
	if len(ids) == 0 {
		m.publish(selfID, nil)
		return nil
	}

	// The three bulk fetches are independent; run them concurrently.
	var (
		wg       sync.WaitGroup
		links    []domain.ParticipantLink
		convs    []domain.Conversation
		recent   []domain.Message
		linksErr error
		convsErr error
		batchErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		links, linksErr = m.data.ParticipantLinks(ctx, ids)
	}()
	go func() {
		defer wg.Done()
		convs, convsErr = m.data.ConversationsByIDs(ctx, ids)
	}()
	go func() {
		defer wg.Done()
		recent, batchErr = m.data.RecentMessages(ctx, ids, recentBatchSize(len(ids)))
	}()
	wg.Wait()
	for _, err := range []error{linksErr, convsErr, batchErr} {
		if err != nil {
			return m.fail(fmt.Errorf("%w: bulk fetch: %v", domain.ErrTransport, err))
		}
	}

	otherByConv := make(map[string]string, len(ids))
	for _, l := range links {
		if l.ParticipantID != selfID {
			otherByConv[l.ConversationID] = l.ParticipantID
		}
	}
	otherIDs := make([]string, 0, len(otherByConv))
	for _, id := range otherByConv {
		otherIDs = append(otherIDs, id)
	}
	profiles, err := m.profiles.ProfilesByParticipantIDs(ctx, otherIDs)
	if err != nil {
		return m.fail(fmt.Errorf("%w: fetch profiles: %v", domain.ErrTransport, err))
	}

	byConv := make(map[string][]domain.Message)
	for _, msg := range recent {
		byConv[msg.ConversationID] = append(byConv[msg.ConversationID], msg)
	}

	views := make([]domain.ConversationView, 0, len(convs))
	for _, conv := range convs {
		otherID, ok := otherByConv[conv.ID]
		if !ok {
			// A conversation without a counterpart link is not displayable.
			m.log.Warn("conversations: skipping conversation without other participant", "conversation", conv.ID)
			continue
		}
		profile, ok := profiles[otherID]
		if !ok {
			// Dangling profile reference: exclude, don't fail.
			m.log.Warn("conversations: skipping conversation with unresolvable profile", "conversation", conv.ID, "participant", otherID)
			continue
		}

		view := domain.ConversationView{Conversation: conv, Other: profile}
		msgs := byConv[conv.ID]
		for i := range msgs {
			if view.LastMessage == nil || view.LastMessage.Before(msgs[i]) {
				view.LastMessage = &msgs[i]
			}
			if msgs[i].UnreadBy(selfID) {
				// Window-bounded approximation of the true unread total.
				view.UnreadCount++
			}
		}
		views = append(views, view)
	}
	sortByActivity(views)
	m.publish(selfID, views)
	return nil
}

// CreateOrGetConversation asks the external collaborator for the
// conversation with the given participant, creating it if absent. Idempotent
// on the collaborator side. The caller re-invokes Refresh afterwards; the
// materializer does not mutate its list here.
func (m *Materializer) CreateOrGetConversation(ctx context.Context, otherParticipantID string) (string, error) {
	if otherParticipantID == "" {
		return "", fmt.Errorf("%w: other participant id is required", domain.ErrValidation)
	}
	if !m.guard.GuardAction("conversation:create", "Start conversation") {
		return "", domain.ErrPolicyBlocked
	}
	selfID, err := m.resolver.Resolve(ctx)
	if err != nil {
		return "", err
	}
	if selfID == "" {
		return "", domain.ErrNotAuthenticated
	}
	id, err := m.creator.CreateOrGet(ctx, selfID, otherParticipantID)
	if err != nil {
		return "", fmt.Errorf("%w: create conversation: %v", domain.ErrTransport, err)
	}
	if id == "" {
		return "", fmt.Errorf("%w: conversation could not be created", domain.ErrNotFound)
	}
	return id, nil
}

// Conversations returns a copy of the published list.
func (m *Materializer) Conversations() []domain.ConversationView {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ConversationView, len(m.views))
	copy(out, m.views)
	return out
}

// Loading reports whether a rebuild is in flight.
func (m *Materializer) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Err returns the last non-fatal failure, nil after a successful rebuild.
func (m *Materializer) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Close detaches the push listener and cancels any pending reconciliation.
func (m *Materializer) Close() {
	m.sched.Stop()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sub != nil {
		_ = m.sub.Close()
		m.sub = nil
	}
}

func (m *Materializer) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}

func (m *Materializer) publish(selfID string, views []domain.ConversationView) {
	m.mu.Lock()
	m.selfID = selfID
	m.views = views
	m.err = nil
	m.mu.Unlock()
}

func (m *Materializer) fail(err error) error {
	m.log.Warn("conversations: refresh failed", "err", err)
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	return err
}

// reconcile is the debounced full-refresh invoked by the scheduler.
func (m *Materializer) reconcile() {
	if err := m.Refresh(context.Background()); err != nil {
		m.log.Warn("conversations: reconciliation failed", "err", err)
	}
}

// handlePush applies optimistic deltas from the global change feed.
//
// INSERT: patch the existing conversation in place, no refetch. A message
// for an unknown conversation (just created by the other party) cannot be
// patched; a debounced reconciliation picks it up instead.
//
// UPDATE: patch what the single payload describes, then always schedule a
// reconciliation — a batch read-receipt is not fully describable from one
// payload.
func (m *Materializer) handlePush(p pushport.Payload) {
	ev := events.Normalize(p)

	m.mu.Lock()
	selfID := m.selfID
	m.mu.Unlock()
	if selfID == "" {
		return
	}

	switch e := ev.(type) {
	case events.MessageInserted:
		m.mu.Lock()
		views, found := applyInsert(m.views, selfID, e.Message)
		m.views = views
		m.mu.Unlock()
		if !found {
			m.sched.Request()
		}
	case events.MessageUpdated:
		m.mu.Lock()
		views, _ := applyReadUpdate(m.views, selfID, e.Message, e.Old)
		m.views = views
		m.mu.Unlock()
		m.sched.Request()
	default:
		// Conversation/participant churn is out of scope for incremental
		// handling; the next rebuild covers it.
	}
}
