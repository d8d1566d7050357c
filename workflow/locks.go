// workflow/locks.go
package workflow

import "sync"

// LockTable linearizes operations per key. The registry keys by tag prefix
// while generating business keys; the coordinator keys by asset tag, so
// operations on distinct assets run fully in parallel.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the key's lock is held and returns its release func.
func (t *LockTable) Acquire(key string) func() {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
