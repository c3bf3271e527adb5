package kernel

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/infinivision/kmem/constant"
	"github.com/infinivision/kmem/errmsg"
)

func testConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.NCPU = 2
	cfg.MemSize = 64 * constant.PageSize
	cfg.StealUnit = 4
	cfg.DirName = dir
	cfg.LogWriter = io.Discard
	return cfg
}

func TestOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kmem.dev")
	k, err := Open(testConfig(dir))
	if err != nil {
		t.Fatal(err)
	}

	want := bytes.Repeat([]byte{0x5A}, constant.BlockSize)
	c := k.Cache()
	b := c.Read(1, 3)
	copy(b.Buffer(), want)
	c.Write(b)
	c.Release(b)

	a := k.Allocator()
	pa, err := a.Alloc()
	if err != nil {
		t.Fatal(err)
	}
	a.Free(pa)
	st := a.Stats()
	if st.Total != 64 || st.Allocated != 0 || len(st.Free) != 2 {
		t.Fatalf("allocator stats %+v", st)
	}
	if err := k.Close(); err != nil {
		t.Fatal(err)
	}

	// blocks survive a reboot on the same directory
	k, err = Open(testConfig(dir))
	if err != nil {
		t.Fatal(err)
	}
	defer k.Close()
	b = k.Cache().Read(1, 3)
	if !bytes.Equal(b.Buffer(), want) {
		t.Fatal("block lost across reopen")
	}
	k.Cache().Release(b)
}

func TestOpenMemory(t *testing.T) {
	cfg := testConfig("")
	cfg.RefCount = true
	k, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer k.Close()
	a := k.Allocator()
	pa, err := a.Alloc()
	if err != nil {
		t.Fatal(err)
	}
	a.Retain(pa)
	a.Release(pa)
	if r := a.Refs(pa); r != 1 {
		t.Fatalf("expected one owner, got %d", r)
	}
	a.Release(pa)
	if st := a.Stats(); st.Allocated != 0 {
		t.Fatalf("stats %+v", st)
	}
}

func TestOpenBadConfig(t *testing.T) {
	for name, f := range map[string]func(*Config){
		"buffers": func(c *Config) { c.NBuf = 0 },
		"buckets": func(c *Config) { c.NBucket = -1 },
		"cores":   func(c *Config) { c.NCPU = 0 },
		"memory":  func(c *Config) { c.MemSize = 10 },
		"log":     func(c *Config) { c.LogWriter = nil },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig("")
			f(&cfg)
			if _, err := Open(cfg); !errors.Is(err, errmsg.BadConfig) {
				t.Fatalf("expected bad config, got %v", err)
			}
		})
	}
}

func TestOpenNotDirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, nil, 0664); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(testConfig(f)); err == nil {
		t.Fatal("Open accepted a regular file as device directory")
	}
}
