package services

import (
	"sync"

	"livegate/internal/core/domain"
)

// keyMutex provides one mutex per stream key so independent streams and
// rooms never contend with each other. Entries are created lazily and kept
// for the process lifetime; the key space is bounded by provisioned streams.
type keyMutex struct {
	mu    sync.Mutex
	locks map[domain.StreamKey]*sync.Mutex
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: make(map[domain.StreamKey]*sync.Mutex)}
}

func (k *keyMutex) forKey(key domain.StreamKey) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

// Lock acquires the mutex for key.
func (k *keyMutex) Lock(key domain.StreamKey) {
	k.forKey(key).Lock()
}

// Unlock releases the mutex for key.
func (k *keyMutex) Unlock(key domain.StreamKey) {
	k.forKey(key).Unlock()
}
