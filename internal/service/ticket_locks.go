package service

import "sync"

// ticketLocks hands out one mutex per ticket id. Entries are dropped when no
// goroutine holds or waits on them.
type ticketLocks struct {
	mu    sync.Mutex
	locks map[int64]*ticketLock
}

type ticketLock struct {
	mu   sync.Mutex
	refs int
}

func newTicketLocks() *ticketLocks {
	return &ticketLocks{locks: make(map[int64]*ticketLock)}
}

// lock blocks until the caller owns ticketID and returns the release func.
func (l *ticketLocks) lock(ticketID int64) func() {
	l.mu.Lock()
	entry, ok := l.locks[ticketID]
	if !ok {
		entry = &ticketLock{}
		l.locks[ticketID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, ticketID)
		}
		l.mu.Unlock()
	}
}

func (l *ticketLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
