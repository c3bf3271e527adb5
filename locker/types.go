package locker

import (
	"sync"
	"sync/atomic"
)

// Spinlock is a busy-wait lock for short critical sections.
// It must never be held across device I/O or a Sleeplock acquire.
type Spinlock struct {
	locked atomic.Uint32
}

// Sleeplock is a blocking lock: waiters park instead of spinning.
// The holder is identified by an owner token so that callers can
// check they are the ones holding it.
type Sleeplock struct {
	mu     sync.Mutex
	cv     *sync.Cond
	locked bool
	owner  uint64
	name   string
}
