package reconcile

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/clocktest"
)

func TestBurstCoalescesToOneInvocation(t *testing.T) {
	clock := clocktest.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	var fired int32
	s := NewScheduler(clock, 400*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	// Five requests within 100ms, as with a batched read receipt.
	for i := 0; i < 5; i++ {
		s.Request()
		clock.Advance(20 * time.Millisecond)
	}
	assert.EqualValues(t, 0, atomic.LoadInt32(&fired), "nothing should fire mid-burst")

	clock.Advance(400 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&fired), "exactly one refresh after the last request")

	clock.Advance(time.Second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&fired), "no trailing invocations")
}

func TestEachRequestResetsTheTimer(t *testing.T) {
	clock := clocktest.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	var fired int32
	s := NewScheduler(clock, 400*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	s.Request()
	clock.Advance(399 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fired))

	s.Request()
	clock.Advance(399 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fired), "reset timer must not fire early")

	clock.Advance(time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&fired))
}

func TestRequestsAfterQuietPeriodFireAgain(t *testing.T) {
	clock := clocktest.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	var fired int32
	s := NewScheduler(clock, 400*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	s.Request()
	clock.Advance(400 * time.Millisecond)
	s.Request()
	clock.Advance(400 * time.Millisecond)

	assert.EqualValues(t, 2, atomic.LoadInt32(&fired))
}

func TestStopCancelsPendingWork(t *testing.T) {
	clock := clocktest.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	var fired int32
	s := NewScheduler(clock, 400*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	s.Request()
	s.Stop()
	clock.Advance(time.Second)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fired))

	s.Request()
	clock.Advance(time.Second)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fired), "stopped scheduler must reject new requests")
}
