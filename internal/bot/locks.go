package bot

import "sync"

// identityLocks serializes update handling per identity. Updates from
// different identities run concurrently; two updates from the same
// identity are handled in arrival order so the dialogue state machine
// never sees interleaved input.
type identityLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: make(map[int64]*sync.Mutex)}
}

// acquire locks the identity and returns the release func. Lock entries
// are kept for the process lifetime; the population is bounded by the
// user table, which an admin-gated bot keeps small.
func (l *identityLocks) acquire(userID int64) func() {
	l.mu.Lock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
