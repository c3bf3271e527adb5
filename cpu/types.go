// Package cpu provides the core identity services the allocators rely on.
//
// A goroutine that needs a stable core id calls Pin. Until the returned
// guard is released the goroutine stays on its OS thread, and on linux
// the thread stays on one hardware CPU, so the id cannot go stale.
package cpu

import "github.com/puzpuzpuz/xsync/v3"

type Guard interface {
	ID() int
	Unpin()
}

type Pinner interface {
	NCPU() int
	Pin() Guard
}

type pinner struct {
	n       int
	threads *xsync.MapOf[int, int] // thread id -> hardware cpu
}

func New(n int) *pinner {
	if n < 1 {
		n = 1
	}
	return &pinner{n, xsync.NewMapOf[int, int]()}
}

func (p *pinner) NCPU() int {
	return p.n
}
