package disk

import "github.com/infinivision/kmem/constant"

// NewMem returns a device that keeps its blocks in memory.
func NewMem() *memDisk {
	return &memDisk{mp: make(map[key][]byte)}
}

func (d *memDisk) Close() error {
	return nil
}

func (d *memDisk) Flush() error {
	return nil
}

func (d *memDisk) Read(b Block) error {
	d.Lock()
	defer d.Unlock()
	buf := b.Buffer()[:constant.BlockSize]
	if v, ok := d.mp[key{b.Dev(), b.BlockNumber()}]; ok {
		copy(buf, v)
		return nil
	}
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func (d *memDisk) Write(b Block) error {
	d.Lock()
	defer d.Unlock()
	k := key{b.Dev(), b.BlockNumber()}
	v, ok := d.mp[k]
	if !ok {
		v = make([]byte, constant.BlockSize)
		d.mp[k] = v
	}
	copy(v, b.Buffer()[:constant.BlockSize])
	return nil
}
