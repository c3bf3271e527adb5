package constant

const (
	BlockSize = 1024 // 1k, size of a disk block
)

const (
	MaxOpBlocks = 10              // max blocks any logical operation writes
	NBuf        = MaxOpBlocks * 3 // size of the buffer cache
	NBucket     = 13              // hash buckets, prime
)

const (
	PageSize = 4096 // 4k
)

// the kernel expects there to be RAM
// for use by the kernel and user pages
// from physical address KernBase to KernBase+MemSize.
const (
	KernBase = uintptr(0x80000000)
	MemSize  = 8 * 1024 * 1024 // 8MB
)

const (
	AllocFill = byte(5) // junk written by Alloc
	FreeFill  = byte(1) // junk written by Free
)

const (
	StealUnit     = 32 // frames moved per steal
	StealMultiple = 2  // donor keeps at least StealMultiple*StealUnit frames
)

func PageRoundUp(a uintptr) uintptr {
	return (a + PageSize - 1) &^ (PageSize - 1)
}

func PageRoundDown(a uintptr) uintptr {
	return a &^ (PageSize - 1)
}
