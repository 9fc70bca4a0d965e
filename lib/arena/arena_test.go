package arena

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestArena_BumpAllocationAndAlignment(t *testing.T) {
	a := NewArena()
	require.EqualValues(t, 0, a.MemoryUsage())

	r1 := a.Allocate(1)
	require.Len(t, r1, 1)
	require.EqualValues(t, DefaultBlockSize+blockOverhead, a.MemoryUsage())

	// Both regions carve from the same block; padding keeps every
	// region start 8-byte aligned.
	r2 := a.Allocate(24)
	require.Len(t, r2, 24)
	require.EqualValues(t, 0, uintptr(unsafe.Pointer(&r1[0]))&uintptr(regionAlign-1))
	require.EqualValues(t, 0, uintptr(unsafe.Pointer(&r2[0]))&uintptr(regionAlign-1))
	require.EqualValues(t, DefaultBlockSize+blockOverhead, a.MemoryUsage())
}

func TestArena_ExhaustionBoundaryTriggersFreshBlocks(t *testing.T) {
	a := NewArena()

	// Both requests exceed a quarter block, so each one gets a
	// dedicated block of exactly its size instead of carving from (or
	// installing) a standard block.
	r1 := a.Allocate(3100)
	require.Len(t, r1, 3100)
	require.Len(t, a.blocks, 1)
	require.Len(t, a.blocks[0], 3100)
	require.EqualValues(t, 3100+blockOverhead, a.MemoryUsage())

	r2 := a.Allocate(1100)
	require.Len(t, r2, 1100)
	require.Len(t, a.blocks, 2)
	require.Len(t, a.blocks[1], 1100)
	// At least the sum of the two block sizes granted.
	require.GreaterOrEqual(t, a.MemoryUsage(), int64(3100+1100))
	require.EqualValues(t, 3100+1100+2*blockOverhead, a.MemoryUsage())
}

func TestArena_InsufficientRemainderTriggersFreshBlock(t *testing.T) {
	a := NewArena()

	// Fill a standard block down to a 32-byte remainder with
	// sub-quarter requests.
	for i := 0; i < 4; i++ {
		_ = a.Allocate(1016)
	}
	require.Len(t, a.blocks, 1)
	require.EqualValues(t, 32, a.allocRemaining)
	require.EqualValues(t, DefaultBlockSize+blockOverhead, a.MemoryUsage())

	// 1000 bytes neither fit the remainder nor qualify as oversized, so
	// a brand-new standard block replaces the current one and the old
	// remainder is permanently abandoned.
	r := a.Allocate(1000)
	require.Len(t, r, 1000)
	require.Len(t, a.blocks, 2)
	require.EqualValues(t, 2*(DefaultBlockSize+blockOverhead), a.MemoryUsage())
	require.EqualValues(t, DefaultBlockSize-1000, a.allocRemaining)

	// Follow-up requests carve from the replacement block, never from
	// the abandoned 32 bytes.
	next := a.Allocate(64)
	base := uintptr(unsafe.Pointer(&a.blocks[1][0]))
	p := uintptr(unsafe.Pointer(&next[0]))
	require.True(t, base <= p && p < base+DefaultBlockSize)
	require.EqualValues(t, 2*(DefaultBlockSize+blockOverhead), a.MemoryUsage())
}

func TestArena_OversizedRequestGetsDedicatedBlock(t *testing.T) {
	a := NewArena()

	// Seed a standard block and leave a remainder too small for the
	// oversized request below.
	for i := 0; i < 3; i++ {
		_ = a.Allocate(1000)
	}
	require.Len(t, a.blocks, 1)
	require.EqualValues(t, DefaultBlockSize-3000, a.allocRemaining)

	// 2000 bytes exceed both the remainder and a quarter block.
	big := a.Allocate(2000)
	require.Len(t, big, 2000)
	require.Len(t, a.blocks, 2)
	require.Len(t, a.blocks[1], 2000)
	require.EqualValues(t, DefaultBlockSize+2000+2*blockOverhead, a.MemoryUsage())

	// The standard block's remainder stays usable after the detour.
	usageBefore := a.MemoryUsage()
	small := a.Allocate(64)
	base := uintptr(unsafe.Pointer(&a.blocks[0][0]))
	p := uintptr(unsafe.Pointer(&small[0]))
	require.True(t, base <= p && p < base+DefaultBlockSize)
	require.Equal(t, usageBefore, a.MemoryUsage())
	require.Len(t, a.blocks, 2)
}

func TestArena_DeallocateIsNoOp(t *testing.T) {
	a := NewArena()
	r := a.Allocate(128)
	usage := a.MemoryUsage()
	a.Deallocate(r)
	require.Equal(t, usage, a.MemoryUsage())
	require.Len(t, a.blocks, 1)
}

func TestArena_ReleaseDropsEverything(t *testing.T) {
	a := NewArena(WithBlockSize(512))
	for i := 0; i < 64; i++ {
		_ = a.Allocate(100)
	}
	require.Positive(t, a.MemoryUsage())
	a.Release()
	require.EqualValues(t, 0, a.MemoryUsage())
	require.Nil(t, a.blocks)
	require.Nil(t, a.current)
}

func TestArena_MemoryUsageMonotonicUnderConcurrentPolling(t *testing.T) {
	a := NewArena()
	done := make(chan struct{})
	go func() {
		defer close(done)
		last := int64(0)
		for i := 0; i < 10_000; i++ {
			usage := a.MemoryUsage()
			if usage < last {
				t.Errorf("memory usage regressed: %d -> %d", last, usage)
				return
			}
			last = usage
		}
	}()
	for i := 0; i < 10_000; i++ {
		_ = a.Allocate(32)
	}
	<-done
}
