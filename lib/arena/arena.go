package arena

import (
	"sync/atomic"
	"unsafe"
)

// References:
// https://github.com/google/leveldb/blob/main/util/arena.h
// https://github.com/dgraph-io/badger/tree/master/skl

const (
	// DefaultBlockSize is the granularity the arena requests memory at.
	DefaultBlockSize = 4096

	// Per block bookkeeping overhead accounted into MemoryUsage, one
	// block reference held by the arena.
	blockOverhead = int64(unsafe.Sizeof(uintptr(0)))
)

// Regions must be aligned for the widest field stored in them, pointer
// size or 8 bytes, whichever is larger. Both are powers of two.
var regionAlign = uint32(max(unsafe.Sizeof(uintptr(0)), 8))

// Allocator hands out aligned memory regions that stay valid until the
// whole pool is released. Implementations never reclaim a single
// region; Release drops everything at once.
type Allocator interface {
	// Allocate returns a region of exactly size bytes, aligned to at
	// least 8 bytes. Running out of system memory is fatal.
	Allocate(size uint32) []byte
	// Deallocate is kept for interface symmetry. The pool lifecycle is
	// bulk release only, so implementations are free to discard the
	// request entirely.
	Deallocate(region []byte)
	// MemoryUsage reports total bytes granted to blocks plus the
	// bookkeeping overhead, safe to poll from any goroutine while a
	// single goroutine allocates.
	MemoryUsage() int64
	// Release drops every block at once.
	Release()
}

var _ Allocator = (*Arena)(nil)

// Arena is a block based bump allocator. One goroutine allocates;
// any number of goroutines may poll MemoryUsage concurrently. The
// bump cursor and remaining counter are owned by the allocating
// goroutine and are deliberately not synchronized.
type Arena struct {
	current        []byte
	allocOff       uint32
	allocRemaining uint32
	blocks         [][]byte
	memoryUsage    int64
	blockSize      uint32
}

type ArenaOption func(*Arena)

// WithBlockSize overrides the standard block size. Values below the
// region alignment are ignored.
func WithBlockSize(size uint32) ArenaOption {
	return func(a *Arena) {
		if size >= regionAlign {
			a.blockSize = size
		}
	}
}

func NewArena(opts ...ArenaOption) *Arena {
	a := &Arena{
		blockSize: DefaultBlockSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Allocate carves size bytes out of the current block when the block
// still fits the request after alignment padding, otherwise falls back
// to a fresh block.
func (a *Arena) Allocate(size uint32) []byte {
	mod := a.allocOff & (regionAlign - 1)
	slop := uint32(0)
	if mod != 0 {
		slop = regionAlign - mod
	}
	needed := size + slop
	if needed <= a.allocRemaining {
		off := a.allocOff + slop
		a.allocOff += needed
		a.allocRemaining -= needed
		return a.current[off : off+size : off+size]
	}
	return a.allocateFallback(size)
}

// Deallocate is a no-op. The arena trades per-region reclamation away
// for O(1) amortized allocation and a single bulk Release.
func (a *Arena) Deallocate(region []byte) {}

func (a *Arena) MemoryUsage() int64 {
	return atomic.LoadInt64(&a.memoryUsage)
}

// Release abandons every block at once. Any region handed out before
// the call must not be used afterwards.
func (a *Arena) Release() {
	a.blocks = nil
	a.current = nil
	a.allocOff = 0
	a.allocRemaining = 0
	atomic.StoreInt64(&a.memoryUsage, 0)
}

func (a *Arena) allocateFallback(size uint32) []byte {
	if size > a.blockSize/4 {
		// Dedicated block, the current block's remainder stays usable.
		return a.allocateNewBlock(size)
	}
	// The replaced block's leftover capacity is permanently abandoned.
	// Bounded internal fragmentation per block switch is the price of
	// never tracking free holes.
	a.current = a.allocateNewBlock(a.blockSize)
	a.allocOff = size
	a.allocRemaining = a.blockSize - size
	return a.current[0:size:size]
}

func (a *Arena) allocateNewBlock(blockBytes uint32) []byte {
	// make aborts the process on OOM, which is the intended posture:
	// the memtable's memory budget is the caller's to manage and there
	// is no safe intermediate state to resume from.
	block := make([]byte, blockBytes)
	a.blocks = append(a.blocks, block)
	atomic.AddInt64(&a.memoryUsage, int64(blockBytes)+blockOverhead)
	return block
}
