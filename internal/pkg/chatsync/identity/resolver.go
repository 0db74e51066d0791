// Package identity resolves the caller's messaging participant id. The id
// is distinct from the raw auth subject: a signed-in user may not have a
// participant record yet (mid-registration), which is a soft "absent", not
// an error.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cacheport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/cache/port"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/port"
)

const cacheTTL = 12 * time.Hour

// Resolver looks up and caches the participant id for one session. The
// cached value lives for the session's lifetime; Invalidate clears it on
// logout.
type Resolver struct {
	session  *domain.Session
	provider port.IdentityProvider
	cache    cacheport.Cache
	log      *slog.Logger
}

// NewResolver wires a resolver to its session, identity collaborator and
// cache. A nil logger falls back to slog.Default.
func NewResolver(session *domain.Session, provider port.IdentityProvider, cache cacheport.Cache, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{session: session, provider: provider, cache: cache, log: log}
}

// Resolve returns the caller's participant id, or "" when the session has no
// resolvable identity. It returns a non-nil error only for transport-level
// failures, which callers treat as "temporarily unavailable, retry".
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if !r.session.Valid() {
		return "", nil
	}

	key := cacheKey(r.session.SubjectID)
	if cached, err := r.cache.Get(ctx, key); err == nil && cached != "" {
		return cached, nil
	} else if err != nil && !errors.Is(err, cacheport.ErrMiss) {
		// Degrade to a direct lookup when the cache is unreachable.
		r.log.Warn("identity: cache read failed", "err", err)
	}

	id, err := r.provider.SelfParticipantID(ctx, r.session.SubjectID)
	if err != nil {
		return "", fmt.Errorf("%w: resolve participant: %v", domain.ErrTransport, err)
	}
	if id == "" {
		return "", nil
	}

	if err := r.cache.Set(ctx, key, id, cacheTTL); err != nil {
		r.log.Warn("identity: cache write failed", "err", err)
	}
	return id, nil
}

// Invalidate drops the cached identity for this session. Called on logout.
func (r *Resolver) Invalidate(ctx context.Context) {
	if r.session == nil || r.session.SubjectID == "" {
		return
	}
	if _, err := r.cache.Del(ctx, cacheKey(r.session.SubjectID)); err != nil {
		r.log.Warn("identity: cache invalidation failed", "err", err)
	}
}

func cacheKey(subjectID string) string {
	return "chatsync:participant:" + subjectID
}
