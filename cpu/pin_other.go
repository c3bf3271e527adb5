//go:build !linux

package cpu

import (
	"runtime"
	"sync/atomic"
)

var next uint32

type guard struct {
	id int
}

func (p *pinner) Pin() Guard {
	runtime.LockOSThread()
	return &guard{int(atomic.AddUint32(&next, 1)-1) % p.n}
}

func (g *guard) ID() int {
	return g.id
}

func (g *guard) Unpin() {
	runtime.UnlockOSThread()
}
