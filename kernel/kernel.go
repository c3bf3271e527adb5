package kernel

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/infinivision/kmem/cache"
	"github.com/infinivision/kmem/constant"
	"github.com/infinivision/kmem/cpu"
	"github.com/infinivision/kmem/disk"
	"github.com/infinivision/kmem/errmsg"
	"github.com/infinivision/kmem/kalloc"
	"github.com/infinivision/kmem/phys"
	"github.com/nnsgmsone/damrey/logger"
)

func DefaultConfig() Config {
	return Config{
		NBuf:          constant.NBuf,
		NBucket:       constant.NBucket,
		NCPU:          runtime.NumCPU(),
		MemSize:       constant.MemSize,
		StealUnit:     constant.StealUnit,
		StealMultiple: constant.StealMultiple,
		LogWriter:     os.Stderr,
	}
}

func Open(cfg Config) (*kernel, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}
	log := logger.New(cfg.LogWriter, "kmem")
	d, err := newDisk(cfg.DirName)
	if err != nil {
		return nil, err
	}
	m, err := phys.New(constant.KernBase, cfg.MemSize)
	if err != nil {
		d.Close()
		return nil, err
	}
	a := kalloc.New(m, cpu.New(cfg.NCPU), kalloc.Options{
		RefCount:      cfg.RefCount,
		StealUnit:     cfg.StealUnit,
		StealMultiple: cfg.StealMultiple,
	}, log)
	c := cache.New(cfg.NBuf, cfg.NBucket, d, log)
	return &kernel{d, m, c, a, log}, nil
}

func (k *kernel) Close() error {
	err := k.c.Flush()
	if e := k.d.Close(); err == nil {
		err = e
	}
	if e := k.m.Close(); err == nil {
		err = e
	}
	if err != nil {
		k.log.Errorf("close failed: %v\n", err)
	}
	return err
}

func (k *kernel) Cache() cache.Cache {
	return k.c
}

func (k *kernel) Allocator() kalloc.Allocator {
	return k.a
}

func checkConfig(cfg Config) error {
	switch {
	case cfg.NBuf < 1:
		return fmt.Errorf("%d buffers: %w", cfg.NBuf, errmsg.BadConfig)
	case cfg.NBucket < 1:
		return fmt.Errorf("%d buckets: %w", cfg.NBucket, errmsg.BadConfig)
	case cfg.NCPU < 1:
		return fmt.Errorf("%d cores: %w", cfg.NCPU, errmsg.BadConfig)
	case cfg.MemSize < constant.PageSize:
		return fmt.Errorf("memory size %d: %w", cfg.MemSize, errmsg.BadConfig)
	case cfg.LogWriter == nil:
		return fmt.Errorf("no log writer: %w", errmsg.BadConfig)
	}
	return nil
}

func newDisk(dir string) (disk.Disk, error) {
	if len(dir) == 0 {
		return disk.NewMem(), nil
	}
	if err := checkDir(dir); err != nil {
		return nil, err
	}
	return disk.New(dir)
}

func checkDir(dir string) error {
	st, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return os.Mkdir(dir, os.FileMode(0775))
	}
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("'%s' is not directory", dir)
	}
	if st.Mode()&0700 != 0700 {
		return errors.New("permission denied")
	}
	return nil
}
