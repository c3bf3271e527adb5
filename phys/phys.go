package phys

import (
	"fmt"

	"github.com/infinivision/kmem/constant"
	"github.com/infinivision/kmem/errmsg"
	"golang.org/x/sys/unix"
)

// New maps size bytes of anonymous memory and presents them as the
// physical range [base, base+size). base must be page aligned and size
// is rounded down to whole pages.
func New(base uintptr, size int) (*memory, error) {
	if base%constant.PageSize != 0 {
		return nil, fmt.Errorf("base %#x not page aligned: %w", base, errmsg.BadConfig)
	}
	size = int(constant.PageRoundDown(uintptr(size)))
	if size == 0 {
		return nil, fmt.Errorf("memory size %d: %w", size, errmsg.BadConfig)
	}
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &memory{base: base, buf: buf}, nil
}

func (m *memory) Close() error {
	return unix.Munmap(m.buf)
}

func (m *memory) Start() uintptr {
	return m.base
}

func (m *memory) End() uintptr {
	return m.base + uintptr(len(m.buf))
}

// Page returns the page containing pa.
func (m *memory) Page(pa uintptr) []byte {
	if pa < m.Start() || pa >= m.End() {
		panic(fmt.Sprintf("phys: address %#x outside [%#x, %#x)", pa, m.Start(), m.End()))
	}
	o := constant.PageRoundDown(pa - m.base)
	return m.buf[o : o+constant.PageSize : o+constant.PageSize]
}
