// Package kalloc is the physical page allocator, for user processes,
// kernel stacks, page-table pages, and pipe buffers. It allocates
// whole constant.PageSize pages.
//
// Every core owns a free list. A core allocates from its own list and
// frees onto it; when its list runs dry it steals from the other cores,
// taking a batch of StealUnit frames from any core that has plenty.
package kalloc

import (
	"fmt"
	"sync/atomic"

	"github.com/infinivision/kmem/constant"
	"github.com/infinivision/kmem/cpu"
	"github.com/infinivision/kmem/errmsg"
	"github.com/infinivision/kmem/phys"
	"github.com/nnsgmsone/damrey/logger"
)

// New takes ownership of every page in mem and places them all on the
// free list of the core New runs on.
func New(mem phys.Memory, cpus cpu.Pinner, opts Options, log logger.Log) *kmem {
	if opts.StealUnit < 1 {
		opts.StealUnit = constant.StealUnit
	}
	if opts.StealMultiple < 1 {
		opts.StealMultiple = constant.StealMultiple
	}
	start := constant.PageRoundUp(mem.Start())
	end := constant.PageRoundDown(mem.End())
	if end < start {
		end = start
	}
	n := int((end - start) / constant.PageSize)
	k := &kmem{
		start: start,
		end:   end,
		mem:   mem,
		cpus:  cpus,
		log:   log,
		unit:  opts.StealUnit,
		limit: opts.StealUnit * opts.StealMultiple,
		next:  make([]int32, n),
		pools: make([]pool, cpus.NCPU()),
	}
	for i := range k.pools {
		k.pools[i].lk.Init()
		k.pools[i].head = -1
	}
	if opts.RefCount {
		k.refs = make([]atomic.Int32, n)
	}
	k.freerange()
	return k
}

func (k *kmem) Start() uintptr {
	return k.start
}

func (k *kmem) End() uintptr {
	return k.end
}

func (k *kmem) Page(pa uintptr) []byte {
	k.frame("page", pa, errmsg.BadAddress)
	return k.mem.Page(pa)
}

// Alloc returns the address of a page filled with constant.AllocFill,
// or errmsg.OutOfMemory if no core has a free page.
func (k *kmem) Alloc() (uintptr, error) {
	g := k.cpus.Pin()
	defer g.Unpin()
	id := g.ID()
	p := &k.pools[id]
	p.lk.Acquire()
	f := p.pop(k.next)
	p.lk.Release()
	if f < 0 {
		if f = k.steal(id); f < 0 {
			return 0, errmsg.OutOfMemory
		}
	}
	if k.refs != nil {
		k.refs[f].Store(1)
	}
	k.inuse.Add(1)
	pa := k.addr(f)
	fill(k.mem.Page(pa), constant.AllocFill)
	return pa, nil
}

// Free returns a page obtained from Alloc to the calling core.
// With reference counting the page must have exactly one owner.
func (k *kmem) Free(pa uintptr) {
	f := k.frame("kfree", pa, errmsg.BadFree)
	if k.refs != nil && !k.refs[f].CompareAndSwap(1, 0) {
		r := k.refs[f].Load()
		k.log.Errorf("kfree: %#x has %d owners\n", pa, r)
		panic(fmt.Errorf("kfree: %#x has %d owners: %w", pa, r, errmsg.BadFree))
	}
	k.free(f)
}

// Retain adds an owner to an allocated page.
func (k *kmem) Retain(pa uintptr) {
	k.refcounting("kref")
	f := k.frame("kref", pa, errmsg.BadAddress)
	for {
		r := k.refs[f].Load()
		if r <= 0 {
			k.log.Errorf("kref: %#x is not allocated\n", pa)
			panic(fmt.Errorf("kref: %#x: %w", pa, errmsg.NotAllocated))
		}
		if k.refs[f].CompareAndSwap(r, r+1) {
			return
		}
	}
}

// Release drops an owner; the last owner frees the page.
func (k *kmem) Release(pa uintptr) {
	k.refcounting("kderef")
	f := k.frame("kderef", pa, errmsg.BadAddress)
	switch r := k.refs[f].Add(-1); {
	case r == 0:
		k.free(f)
	case r < 0:
		k.refs[f].Add(1)
		k.log.Errorf("kderef: %#x is not allocated\n", pa)
		panic(fmt.Errorf("kderef: %#x: %w", pa, errmsg.RefUnderflow))
	}
}

// Refs returns the owner count of the page, 0 if reference counting
// is disabled.
func (k *kmem) Refs(pa uintptr) int32 {
	f := k.frame("kgetref", pa, errmsg.BadAddress)
	if k.refs == nil {
		return 0
	}
	return k.refs[f].Load()
}

func (k *kmem) Stats() Stats {
	st := Stats{
		Total:     len(k.next),
		Allocated: int(k.inuse.Load()),
		Free:      make([]int, len(k.pools)),
		Steals:    k.steals.Load(),
	}
	for i := range k.pools {
		p := &k.pools[i]
		p.lk.Acquire()
		st.Free[i] = p.n
		p.lk.Release()
	}
	return st
}

func (k *kmem) freerange() {
	g := k.cpus.Pin()
	defer g.Unpin()
	p := &k.pools[g.ID()]
	p.lk.Acquire()
	defer p.lk.Release()
	for f := int32(len(k.next)) - 1; f >= 0; f-- {
		fill(k.mem.Page(k.addr(f)), constant.FreeFill)
		p.push(k.next, f)
	}
}

func (k *kmem) free(f int32) {
	// Fill with junk to catch dangling refs.
	fill(k.mem.Page(k.addr(f)), constant.FreeFill)
	g := k.cpus.Pin()
	p := &k.pools[g.ID()]
	p.lk.Acquire()
	p.push(k.next, f)
	p.lk.Release()
	g.Unpin()
	k.inuse.Add(-1)
}

// steal takes a frame from another core, visiting cores in order.
// A donor holding more than k.limit frames gives up k.unit of them:
// one for the caller, the rest for core id. Only one pool lock is
// held at a time.
func (k *kmem) steal(id int) int32 {
	for i := range k.pools {
		if i == id {
			continue
		}
		d := &k.pools[i]
		d.lk.Acquire()
		switch {
		case d.n == 0:
			d.lk.Release()
		case d.n > k.limit:
			head, tail := d.detach(k.next, k.unit)
			d.lk.Release()
			k.steals.Add(1)
			f := head
			if head != tail {
				head = k.next[f]
				k.next[f] = -1
				p := &k.pools[id]
				p.lk.Acquire()
				p.splice(k.next, head, tail, k.unit-1)
				p.lk.Release()
			}
			return f
		default:
			f := d.pop(k.next)
			d.lk.Release()
			return f
		}
	}
	return -1
}

func (k *kmem) frame(op string, pa uintptr, err error) int32 {
	if pa%constant.PageSize != 0 || pa < k.start || pa >= k.end {
		k.log.Errorf("%s: bad address %#x\n", op, pa)
		panic(fmt.Errorf("%s: %#x: %w", op, pa, err))
	}
	return int32((pa - k.start) / constant.PageSize)
}

func (k *kmem) refcounting(op string) {
	if k.refs == nil {
		k.log.Errorf("%s: reference counting disabled\n", op)
		panic(fmt.Errorf("%s: %w", op, errmsg.NoRefCount))
	}
}

func (k *kmem) addr(f int32) uintptr {
	return k.start + uintptr(f)*constant.PageSize
}

func (p *pool) pop(next []int32) int32 {
	f := p.head
	if f >= 0 {
		p.head = next[f]
		next[f] = -1
		p.n--
	}
	return f
}

func (p *pool) push(next []int32, f int32) {
	next[f] = p.head
	p.head = f
	p.n++
}

// detach unlinks the first n frames, n <= p.n.
func (p *pool) detach(next []int32, n int) (int32, int32) {
	head, tail := p.head, p.head
	for i := 1; i < n; i++ {
		tail = next[tail]
	}
	p.head = next[tail]
	next[tail] = -1
	p.n -= n
	return head, tail
}

// splice prepends the n-frame chain head..tail.
func (p *pool) splice(next []int32, head, tail int32, n int) {
	next[tail] = p.head
	p.head = head
	p.n += n
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
