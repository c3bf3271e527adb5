package errmsg

import "errors"

var (
	OpenFailed    = errors.New("open failed")
	ReadFailed    = errors.New("read failed")
	WriteFailed   = errors.New("write failed")
	NoBuffers     = errors.New("no buffers")
	NotHolding    = errors.New("buffer lock not held")
	NotReferenced = errors.New("buffer not referenced")
	OutOfMemory   = errors.New("out of memory")
	BadFree       = errors.New("bad free")
	BadAddress    = errors.New("bad physical address")
	NotAllocated  = errors.New("frame not allocated")
	RefUnderflow  = errors.New("reference count underflow")
	NoRefCount    = errors.New("reference counting disabled")
	BadConfig     = errors.New("bad config")
)
