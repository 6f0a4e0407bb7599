package schedule

import "sync"

// keyedMutex serializes work per alarm id while letting distinct ids run in parallel.
type keyedMutex struct {
	// mu protects locks.
	mu sync.Mutex
	// locks holds one entry per id that is locked or waited on.
	locks map[int64]*keyedLock
}

// keyedLock is a mutex with the number of goroutines holding or waiting for it.
type keyedLock struct {
	sync.Mutex

	refs int
}

// Lock acquires the lock for id and returns the function releasing it.
func (k *keyedMutex) Lock(id int64) (unlock func()) {
	k.mu.Lock()

	if k.locks == nil {
		k.locks = make(map[int64]*keyedLock)
	}

	entry, ok := k.locks[id]
	if !ok {
		entry = new(keyedLock)
		k.locks[id] = entry
	}

	entry.refs++
	k.mu.Unlock()

	entry.Lock()

	return func() {
		entry.Unlock()

		k.mu.Lock()
		defer k.mu.Unlock()

		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, id)
		}
	}
}
