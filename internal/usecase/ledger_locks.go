package usecase

import "sync"

// ledgerLocks hands out one mutex per ledger ID. Mutexes are dropped once
// no goroutine holds or waits for them.
type ledgerLocks struct {
	mu    sync.Mutex
	locks map[string]*ledgerLock
}

type ledgerLock struct {
	mu   sync.Mutex
	refs int
}

func newLedgerLocks() *ledgerLocks {
	return &ledgerLocks{locks: make(map[string]*ledgerLock)}
}

// Lock blocks until the ledger is free and returns the matching unlock.
func (l *ledgerLocks) Lock(ledgerID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[ledgerID]
	if !ok {
		lock = &ledgerLock{}
		l.locks[ledgerID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, ledgerID)
		}
		l.mu.Unlock()
	}
}

func (l *ledgerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
