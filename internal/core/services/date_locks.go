package services

import "sync"

// dateLocks serializes the read-decide-write sequence per target date.
// Entries are dropped once no goroutine holds or waits on them.
type dateLocks struct {
	mu    sync.Mutex
	locks map[string]*dateLock
}

type dateLock struct {
	mu   sync.Mutex
	refs int
}

func newDateLocks() *dateLocks {
	return &dateLocks{locks: make(map[string]*dateLock)}
}

// Lock blocks until the lock for date is held and returns its release func.
func (l *dateLocks) Lock(date string) func() {
	l.mu.Lock()
	lock, ok := l.locks[date]
	if !ok {
		lock = &dateLock{}
		l.locks[date] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, date)
		}
		l.mu.Unlock()
	}
}

func (l *dateLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
