// Package messages maintains the per-conversation ordered message log:
// load, send and mark-as-read mutations plus a push listener scoped to the
// active conversation.
package messages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	pushport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/port"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/events"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/port"
)

// DefaultWindow bounds the recent-message fetch per conversation. The log is
// a bounded recent window, not full history.
const DefaultWindow = 100

// Phase is the store's lifecycle state for the active conversation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
)

// Store holds one conversation's message log at a time. Switching the
// active conversation tears down the previous push subscription before the
// new load begins, so a stale subscription can never deliver into the wrong
// log.
type Store struct {
	data     port.DataStore
	resolver port.SelfIdentity
	guard    port.ActionGuard
	channel  pushport.Channel
	window   int
	log      *slog.Logger

	mu             sync.Mutex
	conversationID string
	msgs           []domain.Message
	phase          Phase
	err            error
	sub            pushport.Subscription
	subToken       *struct{}
	epoch          uint64
}

// NewStore wires a message store to its collaborators. window <= 0 uses
// DefaultWindow; a nil guard allows everything; a nil logger falls back to
// slog.Default.
func NewStore(data port.DataStore, resolver port.SelfIdentity, guard port.ActionGuard, channel pushport.Channel, window int, log *slog.Logger) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	if guard == nil {
		guard = port.AllowAll{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		data:     data,
		resolver: resolver,
		guard:    guard,
		channel:  channel,
		window:   window,
		log:      log,
	}
}

// Load selects conversationID as the active conversation and fetches its
// recent window, oldest→newest. An empty id means "no conversation
// selected": the log clears, no network call is issued and no subscription
// remains active. A transport failure is recorded on Err and returned; it
// never panics into the caller.
func (s *Store) Load(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	switching := conversationID != s.conversationID
	if s.sub != nil && (switching || conversationID == "") {
		_ = s.sub.Close()
		s.sub = nil
		s.subToken = nil
	}
	s.epoch++
	epoch := s.epoch
	s.conversationID = conversationID

	if conversationID == "" {
		s.msgs = nil
		s.phase = PhaseReady
		s.err = nil
		s.mu.Unlock()
		return nil
	}

	if switching {
		s.msgs = nil
	}
	s.phase = PhaseLoading
	s.err = nil
	needSub := s.sub == nil
	s.mu.Unlock()

	// Subscribe before fetching so no insert lands in the gap between the
	// two; the ordered merge and id de-dup absorb any overlap.
	if needSub {
		token := &struct{}{}
		sub, err := s.channel.Subscribe(ctx, "messages:"+conversationID, events.TableMessages, s.handlePush(token))
		if err != nil {
			wrapped := fmt.Errorf("%w: subscribe messages: %v", domain.ErrTransport, err)
			s.fail(epoch, wrapped)
			return wrapped
		}
		s.mu.Lock()
		if epoch != s.epoch {
			// The selection moved on while we were subscribing.
			s.mu.Unlock()
			_ = sub.Close()
			return nil
		}
		s.sub = sub
		s.subToken = token
		s.mu.Unlock()
	}

	window, err := s.data.MessagesWindow(ctx, conversationID, s.window)
	if err != nil {
		s.log.Warn("messages: load failed", "conversation", conversationID, "err", err)
		wrapped := fmt.Errorf("%w: load messages: %v", domain.ErrTransport, err)
		s.fail(epoch, wrapped)
		return wrapped
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return nil
	}
	// Merge instead of replacing so push events that raced the fetch are
	// kept; both sides are de-duplicated by id.
	merged := s.msgs
	for _, m := range window {
		merged = appendIncoming(merged, m)
	}
	s.msgs = merged
	s.phase = PhaseReady
	s.err = nil
	return nil
}

// Refresh reloads the active conversation's window. A no-op when nothing is
// selected.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	id := s.conversationID
	s.mu.Unlock()
	if id == "" {
		return nil
	}
	return s.Load(ctx, id)
}

// Send validates and inserts a new message remotely, then bumps the
// conversation's recency marker. It does not append locally: the push
// channel echo is the single append path, which avoids duplicate-entry races
// between the echo and an optimistic insert. The returned message is what
// was written remotely.
func (s *Store) Send(ctx context.Context, content string) (*domain.Message, error) {
	s.mu.Lock()
	conversationID := s.conversationID
	s.mu.Unlock()

	if conversationID == "" {
		return nil, fmt.Errorf("%w: no conversation selected", domain.ErrValidation)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrValidation)
	}
	if !s.guard.GuardAction("message:send", "Send message") {
		return nil, domain.ErrPolicyBlocked
	}

	selfID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if selfID == "" {
		return nil, domain.ErrNotAuthenticated
	}

	now := time.Now().UTC()
	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       selfID,
		Content:        content,
		CreatedAt:      now,
	}
	if err := s.data.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: insert message: %v", domain.ErrTransport, err)
	}
	if err := s.data.TouchConversation(ctx, conversationID, now); err != nil {
		// The message is durable; a stale recency marker self-heals on the
		// next append or reconciliation.
		s.log.Warn("messages: touch conversation failed", "conversation", conversationID, "err", err)
	}
	return &msg, nil
}

// MarkAsRead flips every unread message authored by the other participant to
// read, in one batched remote update, and mirrors the change locally so the
// UI does not wait for the push echo. Idempotent: with no unread messages and
// a window that holds the full history it issues no remote write. A window
// at capacity may hide older unread rows, so the (itself idempotent) remote
// update is issued regardless of the local count.
func (s *Store) MarkAsRead(ctx context.Context) error {
	s.mu.Lock()
	conversationID := s.conversationID
	s.mu.Unlock()

	if conversationID == "" {
		return fmt.Errorf("%w: no conversation selected", domain.ErrValidation)
	}
	if !s.guard.GuardAction("message:mark_read", "Mark messages read") {
		return domain.ErrPolicyBlocked
	}

	selfID, err := s.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	if selfID == "" {
		return domain.ErrNotAuthenticated
	}

	s.mu.Lock()
	unread := countUnread(s.msgs, selfID)
	windowFull := len(s.msgs) >= s.window
	s.mu.Unlock()
	// Skip the remote write only when the window provably covers the whole
	// log; at capacity, unread rows may exist beyond it.
	if unread == 0 && !windowFull {
		return nil
	}

	if _, err := s.data.MarkConversationRead(ctx, conversationID, selfID); err != nil {
		return fmt.Errorf("%w: mark read: %v", domain.ErrTransport, err)
	}

	s.mu.Lock()
	markAllRead(s.msgs, selfID)
	s.mu.Unlock()
	return nil
}

// Messages returns a copy of the ordered log.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// ConversationID returns the active conversation id, "" when none.
func (s *Store) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Loading reports whether a load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseLoading
}

// Err returns the last non-fatal operation failure, nil after a success.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears down the push subscription and deselects the conversation.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		_ = s.sub.Close()
		s.sub = nil
		s.subToken = nil
	}
	s.epoch++
	s.conversationID = ""
	s.msgs = nil
	s.phase = PhaseIdle
}

func (s *Store) fail(epoch uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return
	}
	s.phase = PhaseReady
	s.err = err
}

// handlePush returns the subscription handler bound to one subscription
// token. Events from a superseded subscription or for other conversations
// are dropped.
func (s *Store) handlePush(token *struct{}) pushport.Handler {
	return func(p pushport.Payload) {
		ev := events.Normalize(p)

		s.mu.Lock()
		defer s.mu.Unlock()
		if token != s.subToken {
			return
		}

		switch e := ev.(type) {
		case events.MessageInserted:
			if e.Message.ConversationID != s.conversationID {
				return
			}
			s.msgs = appendIncoming(s.msgs, e.Message)
		case events.MessageUpdated:
			if e.Message.ConversationID != s.conversationID {
				return
			}
			s.msgs = patchMessage(s.msgs, e.Message)
		default:
			// Non-message churn is reconciled by the conversation list, not
			// here.
		}
	}
}
