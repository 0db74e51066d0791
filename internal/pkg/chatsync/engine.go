// Package chatsync is the realtime conversation synchronization engine: it
// keeps a locally consistent view of which conversations exist, what was
// last said in each and how many messages are unread, while local actions,
// an unordered push-event stream and periodic reconciliation all mutate
// state concurrently.
package chatsync

import (
	"context"
	"log/slog"
	"time"

	cacheport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/cache/port"
	pushport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/port"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/conversations"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/identity"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/messages"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/port"
)

// Options configures an Engine. Data, Profiles, Creator, Channel, Cache and
// Session are required; everything else has defaults.
type Options struct {
	Session  *domain.Session
	Data     port.DataStore
	Profiles port.ProfileDirectory
	Creator  port.ConversationCreator
	Identity port.IdentityProvider
	Guard    port.ActionGuard
	Channel  pushport.Channel
	Cache    cacheport.Cache
	Clock    port.Clock

	// Debounce is the reconciliation coalescing window; zero uses the
	// package default.
	Debounce time.Duration
	// MessageWindow bounds the per-conversation message fetch.
	MessageWindow int

	Logger *slog.Logger
}

// Engine binds the identity resolver, the conversation materializer and one
// message store behind a single session-scoped surface.
type Engine struct {
	session  *domain.Session
	resolver *identity.Resolver
	list     *conversations.Materializer
	msgs     *messages.Store
}

// New builds an engine for one session.
func New(opts Options) *Engine {
	if opts.Guard == nil {
		opts.Guard = port.AllowAll{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	resolver := identity.NewResolver(opts.Session, opts.Identity, opts.Cache, opts.Logger)
	list := conversations.NewMaterializer(conversations.Config{
		Data:     opts.Data,
		Profiles: opts.Profiles,
		Creator:  opts.Creator,
		Resolver: resolver,
		Guard:    opts.Guard,
		Channel:  opts.Channel,
		Clock:    opts.Clock,
		Debounce: opts.Debounce,
		Logger:   opts.Logger,
	})
	msgs := messages.NewStore(opts.Data, resolver, opts.Guard, opts.Channel, opts.MessageWindow, opts.Logger)

	return &Engine{session: opts.Session, resolver: resolver, list: list, msgs: msgs}
}

// Start attaches the global push listener and performs the initial rebuild.
// A transport failure on the initial rebuild is non-fatal: it is surfaced on
// Conversations().Err() and the next refresh recovers.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.list.Start(ctx); err != nil {
		return err
	}
	// The initial rebuild may fail on transport; the materializer keeps the
	// failure on Err and the next refresh recovers.
	_ = e.list.Refresh(ctx)
	return nil
}

// Conversations is the materialized conversation list surface.
func (e *Engine) Conversations() *conversations.Materializer { return e.list }

// Messages is the per-conversation message store surface.
func (e *Engine) Messages() *messages.Store { return e.msgs }

// Resolver exposes identity resolution, mainly for callers that need the
// self participant id for display decisions.
func (e *Engine) Resolver() *identity.Resolver { return e.resolver }

// Logout invalidates the session, drops the cached identity and tears
// everything down.
func (e *Engine) Logout(ctx context.Context) {
	e.session.Invalidate()
	e.resolver.Invalidate(ctx)
	e.Close()
}

// Close detaches all push listeners and cancels pending reconciliation.
func (e *Engine) Close() {
	e.msgs.Close()
	e.list.Close()
}
