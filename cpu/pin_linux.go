//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

type guard struct {
	id int
}

// Pin locks the goroutine to its thread. The first pin of a thread
// binds it to one CPU from its affinity mask for good and remembers
// that CPU, so later pins of the thread make no affinity calls. A
// thread whose affinity cannot be changed is identified by its tid;
// the thread lock alone keeps that id stable.
func (p *pinner) Pin() Guard {
	runtime.LockOSThread()
	tid := unix.Gettid()
	h, ok := p.threads.Load(tid)
	if !ok {
		h, _ = p.threads.LoadOrStore(tid, bind(tid))
	}
	return &guard{h % p.n}
}

func (g *guard) ID() int {
	return g.id
}

func (g *guard) Unpin() {
	runtime.UnlockOSThread()
}

// bind restricts the calling thread to a single CPU and returns it.
func bind(tid int) int {
	var old, set unix.CPUSet

	if err := unix.SchedGetaffinity(0, &old); err != nil || old.Count() == 0 {
		return tid
	}
	h := nth(&old, tid%old.Count())
	set.Set(h)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return tid
	}
	return h
}

// nth returns the k-th CPU set in s.
func nth(s *unix.CPUSet, k int) int {
	for c := 0; ; c++ {
		if s.IsSet(c) {
			if k == 0 {
				return c
			}
			k--
		}
	}
}
