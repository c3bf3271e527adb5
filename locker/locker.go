package locker

import (
	"runtime"
	"sync"
)

func (lk *Spinlock) Init() {
	lk.locked.Store(0)
}

func (lk *Spinlock) Acquire() {
	for !lk.locked.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

func (lk *Spinlock) Release() {
	lk.locked.Store(0)
}

// Holding reports whether the lock is currently held by anyone.
func (lk *Spinlock) Holding() bool {
	return lk.locked.Load() == 1
}

func (lk *Sleeplock) Init(name string) {
	lk.name = name
	lk.cv = sync.NewCond(&lk.mu)
}

func (lk *Sleeplock) Name() string {
	return lk.name
}

// Acquire blocks until the lock is free and records owner as the holder.
// owner must be non-zero.
func (lk *Sleeplock) Acquire(owner uint64) {
	lk.mu.Lock()
	for lk.locked {
		lk.cv.Wait()
	}
	lk.locked = true
	lk.owner = owner
	lk.mu.Unlock()
}

func (lk *Sleeplock) Release() {
	lk.mu.Lock()
	lk.locked = false
	lk.owner = 0
	lk.cv.Signal()
	lk.mu.Unlock()
}

func (lk *Sleeplock) Holding(owner uint64) bool {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	return lk.locked && lk.owner == owner
}

// Locked reports whether anyone holds the lock.
func (lk *Sleeplock) Locked() bool {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	return lk.locked
}
