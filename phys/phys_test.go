package phys

import (
	"errors"
	"testing"

	"github.com/infinivision/kmem/constant"
	"github.com/infinivision/kmem/errmsg"
)

func TestMemory(t *testing.T) {
	m, err := New(constant.KernBase, 4*constant.PageSize+100)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.Start() != constant.KernBase {
		t.Errorf("start %#x, want %#x", m.Start(), constant.KernBase)
	}
	if want := constant.KernBase + 4*constant.PageSize; m.End() != want {
		t.Errorf("end %#x, want %#x", m.End(), want)
	}
	pa := m.Start() + 2*constant.PageSize
	p := m.Page(pa)
	if len(p) != constant.PageSize || cap(p) != constant.PageSize {
		t.Fatalf("page len %d cap %d", len(p), cap(p))
	}
	p[0] = 42
	if m.Page(pa + 17)[0] != 42 {
		t.Error("unaligned address did not map to its page")
	}
	if m.Page(pa - constant.PageSize)[0] != 0 {
		t.Error("pages overlap")
	}
}

func TestMemoryOutOfRange(t *testing.T) {
	m, err := New(constant.KernBase, constant.PageSize)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	defer func() {
		if recover() == nil {
			t.Fatal("Page accepted an address past the end")
		}
	}()
	m.Page(m.End())
}

func TestMemoryBadConfig(t *testing.T) {
	if _, err := New(constant.KernBase+1, constant.PageSize); !errors.Is(err, errmsg.BadConfig) {
		t.Errorf("unaligned base: got %v", err)
	}
	if _, err := New(constant.KernBase, constant.PageSize-1); !errors.Is(err, errmsg.BadConfig) {
		t.Errorf("sub-page size: got %v", err)
	}
}
