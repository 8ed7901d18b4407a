// Package keylock provides per-key mutual exclusion. It backs the
// single-writer discipline on acte records: two concurrent transitions
// against the same record serialize on its key.
package keylock

import "sync"

// KeyLock serializes access per key. Locks are created lazily and kept
// for the lifetime of the KeyLock; the expected key space (active acte
// ids) is small.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, blocking until it is available.
func (k *KeyLock) Lock(key string) {
	k.mutexFor(key).Lock()
}

// Unlock releases the mutex for key.
func (k *KeyLock) Unlock(key string) {
	k.mutexFor(key).Unlock()
}

func (k *KeyLock) mutexFor(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
