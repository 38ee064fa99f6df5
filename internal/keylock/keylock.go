// Package keylock provides a mutex per string key.
package keylock

import "sync"

// Mutex serializes holders of the same key. Different keys never block
// each other beyond the short bookkeeping section.
type Mutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func New() *Mutex {
	return &Mutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns its unlock func. Entries are
// dropped once nobody holds or waits for them.
func (k *Mutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Len returns the number of keys currently held or waited for.
func (k *Mutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
