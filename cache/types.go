package cache

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/infinivision/kmem/disk"
	"github.com/infinivision/kmem/locker"
	"github.com/nnsgmsone/damrey/logger"
)

// Buf is a cached block held under its exclusive lock.
type Buf interface {
	Dev() uint32
	Valid() bool
	Buffer() []byte
	BlockNumber() uint32
}

type Cache interface {
	Flush() error
	Dump(io.Writer)
	Stats() Stats

	Get(uint32, uint32) Buf
	Read(uint32, uint32) Buf
	Load(Buf)
	Write(Buf)
	Release(Buf)
	Pin(Buf)
	Unpin(Buf)
}

type Stats struct {
	Size   int // number of buffers
	InUse  int // buffers holding an identity
	Refs   int // sum of reference counts
	Hits   uint64
	Misses uint64
	Reads  uint64 // device reads
	Writes uint64 // device writes
}

// A slot keeps its identity and data after its last reference is
// dropped, so the block can be reclaimed without a device read until
// the slot is claimed for another block.
type buf struct {
	i     int // slot number
	dev   uint32
	bn    uint32        // block number
	key   atomic.Uint64 // dev<<32 | bn
	valid bool          // data has been read from disk
	ref   atomic.Int32  // changed only under the bucket lock
	used  atomic.Uint32
	ts    time.Time // time of last claim
	lk    locker.Sleeplock
	data  []byte
}

// handle is what Get returns: the buffer, the block it was claimed
// for and the ticket its sleeplock was acquired with.
type handle struct {
	b   *buf
	dev uint32
	bn  uint32
	t   uint64
}

// Buckets are circular lists threaded through prev and next.
// Index i < n is buffer i, index n+j is the head of bucket j.
type cache struct {
	n, m       int // buffers, buckets
	bs         []buf
	prev, next []int
	lks        []locker.Spinlock
	d          disk.Disk
	log        logger.Log
	hand       atomic.Uint64 // where the next scan for a free slot starts
	ticket     atomic.Uint64
	hits       atomic.Uint64
	misses     atomic.Uint64
	reads      atomic.Uint64
	writes     atomic.Uint64
}

func (h *handle) Dev() uint32 {
	return h.dev
}

func (h *handle) Valid() bool {
	return h.b.valid
}

func (h *handle) Buffer() []byte {
	return h.b.data
}

func (h *handle) BlockNumber() uint32 {
	return h.bn
}
