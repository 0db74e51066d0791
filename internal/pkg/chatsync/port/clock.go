package port

import "time"

// Timer is a handle to a pending AfterFunc callback.
type Timer interface {
	// Stop cancels the callback if it has not fired yet; reports whether it
	// was still pending.
	Stop() bool
}

// Clock abstracts wall time so debounce behavior is deterministically
// testable without real delays.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
