package skl

import (
	"sync/atomic"
	"unsafe"

	"github.com/corekv-io/corekv/lib/arena"
)

var (
	nodeSize = uint32(unsafe.Sizeof(node{}))
	nextSize = uint32(unsafe.Sizeof(unsafe.Pointer(nil)))
)

// node lives entirely inside arena memory: one contiguous allocation
// holds the header plus exactly height forward slots, the unused tail
// of the full tower truncated away at allocation time. The key bytes
// sit in their own arena region and are immutable after construction.
// Arena blocks are pinned by the allocator's block list, so the raw
// pointers below stay valid until Release.
type node struct {
	keyPtr  unsafe.Pointer
	keySize uint32
	height  int32
	tower   [sklMaxHeight]unsafe.Pointer
}

func newNode(alloc arena.Allocator, key []byte, height int32) *node {
	truncated := uint32(sklMaxHeight-height) * nextSize
	buf := alloc.Allocate(nodeSize - truncated)
	// Arena regions are zeroed, every forward slot starts nil.
	nd := (*node)(unsafe.Pointer(&buf[0]))
	nd.height = height
	if len(key) > 0 {
		keyBuf := alloc.Allocate(uint32(len(key)))
		copy(keyBuf, key)
		nd.keyPtr = unsafe.Pointer(&keyBuf[0])
		nd.keySize = uint32(len(key))
	}
	return nd
}

func (nd *node) key() []byte {
	if nd.keyPtr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(nd.keyPtr), nd.keySize)
}

// Synchronized access pair. The store publishes a forward link across
// the single-writer/many-reader boundary; the matching load on a
// reader observes everything the writer established before the store,
// so a node is only ever seen fully formed.

func (nd *node) atomicLoadNext(level int32) *node {
	return (*node)(atomic.LoadPointer(&nd.tower[level]))
}

func (nd *node) atomicStoreNext(level int32, next *node) {
	atomic.StorePointer(&nd.tower[level], unsafe.Pointer(next))
}

// Unsynchronized access pair. Valid only where no cross-goroutine
// visibility is required: slots of a node nothing else can reach yet,
// or reads on the one goroutine that performs all mutations.

func (nd *node) loadNext(level int32) *node {
	return (*node)(nd.tower[level])
}

func (nd *node) storeNext(level int32, next *node) {
	nd.tower[level] = unsafe.Pointer(next)
}
