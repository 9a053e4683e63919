package usecase

import (
	"context"
	"sync"
)

// EntryLocker serializes work on a single change log entry. The returned
// function releases the lock and is safe to call once.
type EntryLocker interface {
	Lock(ctx context.Context, entryID int64) (func(), error)
}

// KeyedMutex is an in-process EntryLocker. Locks for idle entries are dropped
// so the map only holds entries currently being undone.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedLock
}

type keyedLock struct {
	ch      chan struct{}
	waiters int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*keyedLock)}
}

func (k *KeyedMutex) Lock(ctx context.Context, entryID int64) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[entryID]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[entryID] = l
	}
	l.waiters++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(entryID, l, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(entryID, l, true) })
	}, nil
}

func (k *KeyedMutex) release(entryID int64, l *keyedLock, held bool) {
	if held {
		<-l.ch
	}
	k.mu.Lock()
	l.waiters--
	if l.waiters == 0 {
		delete(k.locks, entryID)
	}
	k.mu.Unlock()
}
