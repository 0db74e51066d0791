package port

import (
	"context"

	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
)

// IdentityProvider resolves the messaging participant id behind an auth
// subject. An empty id with a nil error means "no linked participant yet"
// (e.g. mid-registration); a non-nil error means the lookup itself failed
// and may be retried.
type IdentityProvider interface {
	SelfParticipantID(ctx context.Context, subjectID string) (string, error)
}

// SelfIdentity yields the caller's cached participant id. An empty id with
// a nil error means "no resolvable identity"; errors are transport-level.
// Satisfied by identity.Resolver.
type SelfIdentity interface {
	Resolve(ctx context.Context) (string, error)
}

// ProfileDirectory resolves display profiles for participants. Missing
// participants are simply absent from the returned map, never an error.
type ProfileDirectory interface {
	ProfilesByParticipantIDs(ctx context.Context, participantIDs []string) (map[string]domain.Profile, error)
}

// ConversationCreator is the external create-or-get collaborator. It is
// atomic, server-validated and idempotent: requesting a conversation between
// the same pair twice returns the same id.
type ConversationCreator interface {
	CreateOrGet(ctx context.Context, selfID, otherID string) (string, error)
}

// ActionGuard is an external policy check consulted before any mutating
// action. A false return means the action must not proceed; the label is a
// human-readable description for the policy layer's own messaging.
type ActionGuard interface {
	GuardAction(action, label string) bool
}

// AllowAll is an ActionGuard that never blocks. Useful as a default and in
// tests.
type AllowAll struct{}

func (AllowAll) GuardAction(string, string) bool { return true }
