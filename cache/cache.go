package cache

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/infinivision/kmem/constant"
	"github.com/infinivision/kmem/disk"
	"github.com/infinivision/kmem/errmsg"
	"github.com/infinivision/kmem/locker"
	"github.com/nnsgmsone/damrey/logger"
)

func New(n, m int, d disk.Disk, log logger.Log) *cache {
	if n < 1 {
		n = constant.NBuf
	}
	if m < 1 {
		m = constant.NBucket
	}
	c := &cache{
		n:    n,
		m:    m,
		d:    d,
		log:  log,
		bs:   make([]buf, n),
		prev: make([]int, n+m),
		next: make([]int, n+m),
		lks:  make([]locker.Spinlock, m),
	}
	data := make([]byte, n*constant.BlockSize)
	for i := range c.bs {
		b := &c.bs[i]
		b.i = i
		b.lk.Init("buffer")
		b.data = data[i*constant.BlockSize : (i+1)*constant.BlockSize : (i+1)*constant.BlockSize]
	}
	for i := 0; i < m; i++ {
		c.lks[i].Init()
		c.prev[n+i], c.next[n+i] = n+i, n+i
	}
	return c
}

func (c *cache) Flush() error {
	return c.d.Flush()
}

// Get returns a locked buffer for block bn of device dev. A block
// that is not linked in its bucket first tries to reclaim the unused
// slot that last held it, keeping its contents, and otherwise claims
// any unused slot. It blocks while another caller holds the buffer.
func (c *cache) Get(dev, bn uint32) Buf {
	i := c.hash(dev, bn)
	lk := &c.lks[i]
	lk.Acquire()
	head := c.n + i
	for j := c.next[head]; j != head; j = c.next[j] {
		if b := &c.bs[j]; b.dev == dev && b.bn == bn {
			b.ref.Add(1)
			lk.Release()
			c.hits.Add(1)
			return c.lock(b, dev, bn)
		}
	}
	// still holding the bucket lock, so no one else can cache this block
	k := key(dev, bn)
	for j := range c.bs {
		if b := &c.bs[j]; b.key.Load() == k && b.used.CompareAndSwap(0, 1) {
			return c.claim(lk, head, b, dev, bn)
		}
	}
	s := int((c.hand.Add(1) - 1) % uint64(c.n))
	for j := 0; j < c.n; j++ {
		if b := &c.bs[(s+j)%c.n]; b.used.CompareAndSwap(0, 1) {
			return c.claim(lk, head, b, dev, bn)
		}
	}
	lk.Release()
	c.log.Errorf("bget: no buffers for dev %d block %d\n", dev, bn)
	panic(fmt.Errorf("bget: %w", errmsg.NoBuffers))
}

// Read returns a locked buffer with the contents of the block.
func (c *cache) Read(dev, bn uint32) Buf {
	b := c.Get(dev, bn)
	c.Load(b)
	return b
}

func (c *cache) Load(b Buf) {
	h := c.holding("bread", b)
	if h.b.valid {
		return
	}
	if err := c.d.Read(h); err != nil {
		c.log.Errorf("bread: dev %d block %d: %v\n", h.dev, h.bn, err)
		panic(fmt.Errorf("bread: %v: %w", err, errmsg.ReadFailed))
	}
	c.reads.Add(1)
	h.b.valid = true
}

// Write writes the buffer's contents to disk.
func (c *cache) Write(b Buf) {
	h := c.holding("bwrite", b)
	if err := c.d.Write(h); err != nil {
		c.log.Errorf("bwrite: dev %d block %d: %v\n", h.dev, h.bn, err)
		panic(fmt.Errorf("bwrite: %v: %w", err, errmsg.WriteFailed))
	}
	c.writes.Add(1)
}

// Release unlocks the buffer. The buffer must not be used afterwards.
func (c *cache) Release(b Buf) {
	h := c.holding("brelse", b)
	h.b.lk.Release()
	c.put(h, "brelse", -1)
}

// Pin keeps the buffer cached without holding its lock.
func (c *cache) Pin(b Buf) {
	c.put(b.(*handle), "bpin", 1)
}

func (c *cache) Unpin(b Buf) {
	c.put(b.(*handle), "bunpin", -1)
}

// put adds delta to the reference count of the block h was issued
// for. The buffer is unlinked and returned to the unused pool once no
// references remain.
func (c *cache) put(h *handle, op string, delta int32) {
	i := c.hash(h.dev, h.bn)
	c.lks[i].Acquire()
	b := h.b
	if b.used.Load() == 0 || b.key.Load() != key(h.dev, h.bn) || b.ref.Load() <= 0 {
		c.lks[i].Release()
		c.log.Errorf("%s: dev %d block %d is not referenced\n", op, h.dev, h.bn)
		panic(fmt.Errorf("%s: %w", op, errmsg.NotReferenced))
	}
	if b.ref.Add(delta) == 0 {
		c.unlink(b.i)
		b.used.Store(0)
	}
	c.lks[i].Release()
}

func (c *cache) Stats() Stats {
	st := Stats{
		Size:   c.n,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Reads:  c.reads.Load(),
		Writes: c.writes.Load(),
	}
	for i := 0; i < c.m; i++ {
		c.lks[i].Acquire()
		for j := c.next[c.n+i]; j != c.n+i; j = c.next[j] {
			st.InUse++
			st.Refs += int(c.bs[j].ref.Load())
		}
		c.lks[i].Release()
	}
	return st
}

// Dump prints every buffer slot, used or not.
func (c *cache) Dump(w io.Writer) {
	for i := range c.lks {
		c.lks[i].Acquire()
	}
	fmt.Fprintf(w, "no, used, dev, blockno, refcnt, timestamp\n")
	for j := range c.bs {
		b := &c.bs[j]
		fmt.Fprintf(w, "%d, %d, %d, %d, %d, %d\n", j, b.used.Load(), b.dev, b.bn, b.ref.Load(), b.ts.UnixNano())
	}
	for i := range c.lks {
		c.lks[i].Release()
	}
}

// claim gives a slot taken from the unused pool to block bn of dev,
// links it at the head of its bucket and releases the bucket lock.
// A slot that last held the same block keeps its contents.
func (c *cache) claim(lk *locker.Spinlock, head int, b *buf, dev, bn uint32) *handle {
	if k := key(dev, bn); b.key.Load() != k {
		b.key.Store(k)
		b.dev, b.bn = dev, bn
		b.valid = false
	}
	if b.valid {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	b.ref.Store(1)
	b.ts = time.Now()
	c.link(head, b.i)
	lk.Release()
	return c.lock(b, dev, bn)
}

func (c *cache) lock(b *buf, dev, bn uint32) *handle {
	t := c.ticket.Add(1)
	b.lk.Acquire(t)
	return &handle{b, dev, bn, t}
}

func (c *cache) holding(op string, b Buf) *handle {
	h, ok := b.(*handle)
	if !ok {
		c.log.Errorf("%s: foreign buffer %T\n", op, b)
		panic(fmt.Errorf("%s: %w", op, errmsg.NotHolding))
	}
	if !h.b.lk.Holding(h.t) {
		c.log.Errorf("%s: %s lock for dev %d block %d not held\n", op, h.b.lk.Name(), h.dev, h.bn)
		panic(fmt.Errorf("%s: %w", op, errmsg.NotHolding))
	}
	return h
}

func key(dev, bn uint32) uint64 {
	return uint64(dev)<<32 | uint64(bn)
}

func (c *cache) hash(dev, bn uint32) int {
	var k [8]byte

	binary.LittleEndian.PutUint32(k[:], dev)
	binary.LittleEndian.PutUint32(k[4:], bn)
	return int(xxhash.Sum64(k[:]) % uint64(c.m))
}

// link inserts buffer j after head.
func (c *cache) link(head, j int) {
	c.prev[j] = head
	c.next[j] = c.next[head]
	c.prev[c.next[head]] = j
	c.next[head] = j
}

func (c *cache) unlink(j int) {
	c.next[c.prev[j]] = c.next[j]
	c.prev[c.next[j]] = c.prev[j]
	c.prev[j], c.next[j] = j, j
}
