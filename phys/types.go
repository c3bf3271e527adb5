package phys

// Memory is the range of physical memory handed to the page allocator.
// Addresses are simulated physical addresses; Page maps one back to
// the bytes backing it.
type Memory interface {
	Close() error
	Start() uintptr
	End() uintptr
	Page(uintptr) []byte
}

type memory struct {
	base uintptr
	buf  []byte
}
