/*
Package lock provides per-key locks for the booking engine.

PURPOSE:
  The booking engine takes "booking:unit:<id>" around every write so the
  overlap check and the insert it guards run one at a time per unit. The
  store's own guard (trigger or exclusion constraint) stays authoritative;
  the lock turns races into clean ConflictErrors instead of storage errors.

IMPLEMENTATIONS:
  Keyed: In-process, for a single server instance
  Redis: SET NX PX with a token, for several instances sharing one database

SEE ALSO:
  - booking/engine.go: Locker interface and call site
*/
package lock

import (
	"context"
	"sync"
)

// Keyed hands out one mutex per key. Entries are dropped once unused.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewKeyed creates an in-process keyed lock.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(key, e)
		})
	}, nil
}

func (k *Keyed) release(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// held reports how many keys have waiters or holders.
func (k *Keyed) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
