package service

import "sync"

// reportLocks serializes transitions per report id so two concurrent staff
// actions cannot both read the same persisted state and race their commits.
// Entries are reference counted and removed once the last holder unlocks.
type reportLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newReportLocks() *reportLocks {
	return &reportLocks{locks: make(map[string]*lockEntry)}
}

// lock acquires the serialization scope for a report id and returns the
// matching unlock function
func (l *reportLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &lockEntry{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
