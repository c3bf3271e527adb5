package kalloc

import (
	"sync/atomic"

	"github.com/infinivision/kmem/cpu"
	"github.com/infinivision/kmem/locker"
	"github.com/infinivision/kmem/phys"
	"github.com/nnsgmsone/damrey/logger"
)

// Allocator hands out whole physical pages.
type Allocator interface {
	Start() uintptr
	End() uintptr
	Page(uintptr) []byte

	Alloc() (uintptr, error)
	Free(uintptr)

	// Retain and Release manage owner counts of shared pages.
	// Only available when reference counting is enabled.
	Retain(uintptr)
	Release(uintptr)
	Refs(uintptr) int32

	Stats() Stats
}

type Options struct {
	RefCount      bool // keep a per-page owner count
	StealUnit     int  // frames moved by one steal
	StealMultiple int  // donors keep StealMultiple*StealUnit frames before giving a batch
}

type Stats struct {
	Total     int   // managed frames
	Allocated int   // frames handed out and not yet freed
	Free      []int // free frames per core
	Steals    uint64
}

// pool is one core's free list. Links live in kmem.next, indexed by
// frame number; -1 ends the list.
type pool struct {
	lk   locker.Spinlock
	head int32
	n    int
	_    [32]byte // false sharing
}

type kmem struct {
	start, end uintptr
	unit       int
	limit      int // batches come only from pools holding more than limit
	mem        phys.Memory
	cpus       cpu.Pinner
	log        logger.Log
	next       []int32
	pools      []pool
	refs       []atomic.Int32 // nil unless reference counting
	inuse      atomic.Int64
	steals     atomic.Uint64
}
