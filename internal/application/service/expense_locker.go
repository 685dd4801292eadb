package service

import "sync"

// expenseLocker serializes mutations per expense. Two approvers acting on the
// same expense concurrently both read the step list, so without this lock the
// second write could resolve a step twice or evaluate the threshold against a
// stale view.
type expenseLocker struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newExpenseLocker() *expenseLocker {
	return &expenseLocker{locks: make(map[int64]*lockEntry)}
}

// Lock acquires the mutex for one expense, creating it on first use.
func (l *expenseLocker) Lock(expenseID int64) {
	l.mu.Lock()
	entry, ok := l.locks[expenseID]
	if !ok {
		entry = &lockEntry{}
		l.locks[expenseID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the expense's mutex and frees the entry once nobody waits
// on it, keeping the map from growing with every expense ever touched.
func (l *expenseLocker) Unlock(expenseID int64) {
	l.mu.Lock()
	entry := l.locks[expenseID]
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, expenseID)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
