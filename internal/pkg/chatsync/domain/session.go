package domain

import "sync/atomic"

// Session is the explicit session context threaded into every component.
// It carries the authenticated subject (the raw auth identity, distinct from
// the messaging participant id) and can be invalidated on logout, which
// clears any identity caching keyed by it.
type Session struct {
	SubjectID string

	invalid atomic.Bool
}

// NewSession returns a live session for the given auth subject. An empty
// subject represents an anonymous visitor.
func NewSession(subjectID string) *Session {
	return &Session{SubjectID: subjectID}
}

// Valid reports whether the session is still usable for identity resolution.
func (s *Session) Valid() bool {
	return s != nil && s.SubjectID != "" && !s.invalid.Load()
}

// Invalidate marks the session ended (logout). Cached identity derived from
// it must no longer be served.
func (s *Session) Invalidate() {
	if s != nil {
		s.invalid.Store(true)
	}
}
