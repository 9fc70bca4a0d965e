package skl

import (
	randv2 "math/rand/v2"
)

// RandSource draws non-negative integers for height selection. Only
// its distribution modulo the branching factor matters.
type RandSource func() uint32

// Go math random (math.Float64()) contains a global mutex lock,
// math/rand/v2 avoids it.
func defaultRandSource() RandSource {
	return randv2.Uint32
}

// randomHeight draws from a geometric law: each extra level survives
// with probability 1/sklBranching, so P(height >= k) = 4^-(k-1) and
// most nodes stay at height 1. That bounds expected search cost at
// O(log n) while keeping per-node space overhead small.
func (skl *SkipList) randomHeight() int32 {
	height := int32(1)
	for height < sklMaxHeight && skl.rand()%sklBranching == 0 {
		height++
	}
	return height
}
