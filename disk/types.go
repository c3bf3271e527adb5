package disk

import "sync"

type Block interface {
	Dev() uint32
	Buffer() []byte
	BlockNumber() uint32
}

// Disk reads and writes whole blocks synchronously.
type Disk interface {
	Close() error
	Flush() error
	Read(Block) error
	Write(Block) error
}

type block struct {
	dev    uint32
	bn     uint32 // block number
	buffer []byte
}

// disk keeps one file per device id under dir.
type disk struct {
	sync.Mutex
	dir string
	fds map[uint32]int
}

type key struct {
	dev uint32
	bn  uint32
}

type memDisk struct {
	sync.Mutex
	mp map[key][]byte
}

func NewBlock(dev, bn uint32, buffer []byte) *block {
	return &block{dev, bn, buffer}
}

func (a *block) Dev() uint32 {
	return a.dev
}

func (a *block) Buffer() []byte {
	return a.buffer
}

func (a *block) BlockNumber() uint32 {
	return a.bn
}
