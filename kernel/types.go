package kernel

import (
	"io"

	"github.com/infinivision/kmem/cache"
	"github.com/infinivision/kmem/disk"
	"github.com/infinivision/kmem/kalloc"
	"github.com/infinivision/kmem/phys"
	"github.com/nnsgmsone/damrey/logger"
)

/*
Kernel owns the buffer cache and the page allocator and everything they
are built on. Both are safe for concurrent use.
*/
type Kernel interface {
	Close() error

	Cache() cache.Cache
	Allocator() kalloc.Allocator
}

type Config struct {
	NBuf          int    // buffers in the cache
	NBucket       int    // hash buckets, should be prime
	NCPU          int    // cores, one free list each
	MemSize       int    // bytes of physical memory
	StealUnit     int    // frames moved by one steal
	StealMultiple int    // donor surplus, in steal units
	RefCount      bool   // reference counted pages
	DirName       string // device files; empty keeps blocks in memory
	LogWriter     io.Writer
}

type kernel struct {
	d   disk.Disk
	m   phys.Memory
	c   cache.Cache
	a   kalloc.Allocator
	log logger.Log
}
