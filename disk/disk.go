package disk

import (
	"fmt"
	"os"

	"github.com/infinivision/kmem/constant"
	"github.com/infinivision/kmem/errmsg"
	"golang.org/x/sys/unix"
)

func New(dir string) (*disk, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("'%s' is not directory: %w", dir, errmsg.OpenFailed)
	}
	return &disk{dir: dir, fds: make(map[uint32]int)}, nil
}

func (d *disk) Close() error {
	var err error

	d.Lock()
	defer d.Unlock()
	for dev, fd := range d.fds {
		if e := unix.Close(fd); e != nil && err == nil {
			err = e
		}
		delete(d.fds, dev)
	}
	return err
}

func (d *disk) Flush() error {
	d.Lock()
	defer d.Unlock()
	for _, fd := range d.fds {
		if err := unix.Fsync(fd); err != nil {
			return err
		}
	}
	return nil
}

// Read fills b from the device. Blocks past the end of the device file
// have never been written and read back as zeros.
func (d *disk) Read(b Block) error {
	fd, err := d.open(b.Dev())
	if err != nil {
		return err
	}
	buf := b.Buffer()[:constant.BlockSize]
	n, err := unix.Pread(fd, buf, int64(b.BlockNumber())*constant.BlockSize)
	if err != nil {
		return err
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

func (d *disk) Write(b Block) error {
	fd, err := d.open(b.Dev())
	if err != nil {
		return err
	}
	n, err := unix.Pwrite(fd, b.Buffer()[:constant.BlockSize], int64(b.BlockNumber())*constant.BlockSize)
	switch {
	case err != nil:
		return err
	case n != constant.BlockSize:
		return errmsg.WriteFailed
	}
	return nil
}

func (d *disk) open(dev uint32) (int, error) {
	d.Lock()
	defer d.Unlock()
	if fd, ok := d.fds[dev]; ok {
		return fd, nil
	}
	fd, err := unix.Open(fileName(dev, d.dir), unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0664)
	if err != nil {
		return -1, err
	}
	d.fds[dev] = fd
	return fd, nil
}

func fileName(dev uint32, dir string) string {
	return fmt.Sprintf("%s%cdev%d", dir, os.PathSeparator, dev)
}
