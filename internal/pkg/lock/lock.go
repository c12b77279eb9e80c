// Package lock provides per-account locking for read-check-write sequences
// such as withdrawals, daily logins and prize pool entries.
package lock

import (
	"context"
	"sync"
)

// keyMutex is a mutex shared by every caller holding or waiting on one key.
type keyMutex struct {
	ch      chan struct{}
	waiters int
}

// KeyLock serializes work per account UUID. Entries are removed once no
// goroutine holds or waits on them, so the map stays bounded by the number
// of accounts in flight.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyMutex)}
}

func (kl *KeyLock) acquire(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{ch: make(chan struct{}, 1)}
		kl.locks[key] = m
	}
	m.waiters++
	return m
}

func (kl *KeyLock) release(key string, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m.waiters--
	if m.waiters == 0 {
		delete(kl.locks, key)
	}
}

// Lock blocks until the lock for key is held.
func (kl *KeyLock) Lock(key string) {
	m := kl.acquire(key)
	m.ch <- struct{}{}
}

// Unlock releases the lock for key. Unlocking a key that is not held panics.
func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		panic("lock: unlock of unlocked key " + key)
	}
	<-m.ch
	kl.release(key, m)
}

// TryLock acquires the lock for key without blocking.
func (kl *KeyLock) TryLock(key string) bool {
	m := kl.acquire(key)
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		kl.release(key, m)
		return false
	}
}

// LockContext acquires the lock for key or gives up when ctx is done.
func (kl *KeyLock) LockContext(ctx context.Context, key string) error {
	m := kl.acquire(key)
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		kl.release(key, m)
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// WithLock runs fn while holding the lock for key.
func (kl *KeyLock) WithLock(key string, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// WithLockContext runs fn while holding the lock for key. It returns
// ErrLockTimeout if ctx expires before the lock is acquired.
func (kl *KeyLock) WithLockContext(ctx context.Context, key string, fn func() error) error {
	if err := kl.LockContext(ctx, key); err != nil {
		return err
	}
	defer kl.Unlock(key)
	return fn()
}

// IsLocked reports whether key is currently held. The answer may be stale
// as soon as it is returned.
func (kl *KeyLock) IsLocked(key string) bool {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	return ok && len(m.ch) == 1
}

// Len returns the number of keys currently tracked.
func (kl *KeyLock) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
