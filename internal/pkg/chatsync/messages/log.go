package messages

import (
	"sort"

	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
)

// Named transitions on the ordered message log. Each one returns the new
// slice; callers hold the store lock.

// appendIncoming inserts m at its ordered position by (CreatedAt, ID),
// keeping the log monotonic regardless of arrival order versus the initial
// load. Messages already present by id are dropped, which de-duplicates the
// push echo of our own sends against a later reload.
func appendIncoming(log []domain.Message, m domain.Message) []domain.Message {
	for _, existing := range log {
		if existing.ID == m.ID {
			return log
		}
	}
	i := sort.Search(len(log), func(i int) bool { return m.Before(log[i]) })
	log = append(log, domain.Message{})
	copy(log[i+1:], log[i:])
	log[i] = m
	return log
}

// patchMessage replaces the fields of the message with m.ID in place.
// Unknown ids are ignored; an UPDATE for a message outside the loaded window
// carries no displayable information.
func patchMessage(log []domain.Message, m domain.Message) []domain.Message {
	for i := range log {
		if log[i].ID == m.ID {
			log[i] = m
			return log
		}
	}
	return log
}

// markAllRead flips IsRead on every message not authored by readerID,
// mirroring the remote batch update so the UI does not wait for the push
// echo. Returns how many messages changed.
func markAllRead(log []domain.Message, readerID string) int {
	changed := 0
	for i := range log {
		if log[i].UnreadBy(readerID) {
			log[i].IsRead = true
			changed++
		}
	}
	return changed
}

// countUnread reports the messages readerID has not read yet.
func countUnread(log []domain.Message, readerID string) int {
	n := 0
	for _, m := range log {
		if m.UnreadBy(readerID) {
			n++
		}
	}
	return n
}
