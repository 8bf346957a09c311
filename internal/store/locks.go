package store

import (
	"sync"

	"github.com/Aarzish/study-planner/internal/model"
)

// keyedLock serialises work on the same id and lets different ids proceed.
type keyedLock struct {
	mu    sync.Mutex
	locks map[model.ID]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[model.ID]*refLock)}
}

// Lock blocks until id is free and returns the matching unlock.
func (k *keyedLock) Lock(id model.ID) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
