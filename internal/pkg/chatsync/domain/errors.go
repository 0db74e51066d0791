package domain

import "errors"

// Failure taxonomy for the sync engine. Operations convert internal failures
// into one of these at their boundary; nothing is allowed to propagate
// uncaught into the UI layer.
var (
	// ErrNotAuthenticated means no participant identity could be resolved.
	// Non-fatal: callers publish an empty state instead of failing.
	ErrNotAuthenticated = errors.New("chatsync: not authenticated")

	// ErrPolicyBlocked means an external policy guard rejected the action
	// (e.g. writes disabled during an impersonation session). Surfaced
	// distinctly so the UI can explain why.
	ErrPolicyBlocked = errors.New("chatsync: action blocked by policy")

	// ErrValidation means the caller's input was rejected before any remote
	// call was made (empty content, no conversation selected).
	ErrValidation = errors.New("chatsync: validation failed")

	// ErrTransport means a network or store failure. Previous state is kept;
	// stale-but-present data beats an empty screen.
	ErrTransport = errors.New("chatsync: transport failure")

	// ErrNotFound means a referenced conversation or profile is missing.
	// Treated as "exclude from view", never a crash.
	ErrNotFound = errors.New("chatsync: not found")
)
