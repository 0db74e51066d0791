// Package reconcile coalesces bursts of reconciliation requests into a
// single delayed full refresh. Read-receipt batches can fire dozens of
// change events within milliseconds; without coalescing each one would
// trigger a full rebuild of the conversation list.
package reconcile

import (
	"sync"
	"time"

	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/port"
)

// DefaultDelay is the debounce window applied when no delay is configured.
const DefaultDelay = 400 * time.Millisecond

// Scheduler owns a single debounce timer shared across all requests. Every
// Request resets the timer; when it fires uninterrupted, fn runs exactly
// once. Safe for concurrent use.
type Scheduler struct {
	clock port.Clock
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   port.Timer
	stopped bool
}

// NewScheduler builds a scheduler invoking fn after delay of quiet time.
// A zero delay falls back to DefaultDelay; a nil clock uses wall time.
func NewScheduler(clock port.Clock, delay time.Duration, fn func()) *Scheduler {
	if clock == nil {
		clock = port.RealClock()
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{clock: clock, delay: delay, fn: fn}
}

// Request schedules (or reschedules) the pending invocation. Calls arriving
// while a timer is pending push the deadline out; only the last one wins.
func (s *Scheduler) Request() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.delay, s.fire)
}

// Stop cancels any pending invocation and rejects future requests.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.fn()
}
