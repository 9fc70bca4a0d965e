package skl

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/corekv-io/corekv/lib/arena"
	"github.com/corekv-io/corekv/lib/infra"
	"github.com/corekv-io/corekv/xlog"
)

// References:
// https://github.com/google/leveldb/blob/main/db/skiplist.h
// https://www.cl.cam.ac.uk/teaching/2005/Algorithms/skiplists.pdf
// https://github.com/dgraph-io/badger/tree/master/skl
// https://github.com/andy-kimball/arenaskl

const (
	// Level 0 is the data node level every node participates in.
	sklMaxHeight = 20
	// Probability 1/sklBranching for a node to gain one more level,
	// the space/time trade-off knob.
	sklBranching = 4
)

// InsertOutcome is the structured result of an Insert. Duplicate
// rejection is caller visible here and through the diagnostic log,
// never as a hard error.
type InsertOutcome uint8

const (
	Inserted InsertOutcome = iota
	DuplicateRejected
)

func (o InsertOutcome) String() string {
	if o == DuplicateRejected {
		return "duplicate-rejected"
	}
	return "inserted"
}

// SkipList is a height randomized ordered structure over opaque byte
// keys, built entirely from arena memory.
//
// Concurrency contract: at most one goroutine calls Insert at a time;
// any number of goroutines may concurrently run Contains and the seek
// primitives while that single writer is active, without locking.
// Nodes are never deleted or updated in place; a forward slot is
// mutated exactly once per level, at insertion time.
type SkipList struct {
	head       *node
	alloc      arena.Allocator
	kcmp       infra.Comparator
	rand       RandSource
	lgr        xlog.XLogger
	curHeight  int32 // max active level, never decreases
	nodeLen    int64
	duplicates int64
}

type SklOption func(*SkipList)

// WithAllocator substitutes the arena reference implementation with
// any other bulk lifetime allocator.
func WithAllocator(alloc arena.Allocator) SklOption {
	return func(skl *SkipList) {
		skl.alloc = alloc
	}
}

func WithRandSource(rand RandSource) SklOption {
	return func(skl *SkipList) {
		skl.rand = rand
	}
}

func WithXLogger(lgr xlog.XLogger) SklOption {
	return func(skl *SkipList) {
		skl.lgr = lgr
	}
}

func New(kcmp infra.Comparator, opts ...SklOption) *SkipList {
	skl := &SkipList{
		kcmp:      kcmp,
		curHeight: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(skl)
		}
	}
	if skl.alloc == nil {
		skl.alloc = arena.NewArena()
	}
	if skl.rand == nil {
		skl.rand = defaultRandSource()
	}
	if skl.lgr == nil {
		skl.lgr = xlog.Discard()
	}
	skl.lgr = skl.lgr.Named("skl")
	skl.head = newNode(skl.alloc, nil, sklMaxHeight)
	return skl
}

// Len is the node count.
func (skl *SkipList) Len() int64 {
	return atomic.LoadInt64(&skl.nodeLen)
}

// Levels is the current max active level, in [1, sklMaxHeight].
func (skl *SkipList) Levels() int32 {
	return atomic.LoadInt32(&skl.curHeight)
}

// DuplicateRejections counts Insert calls that were rejected because
// the key was already present.
func (skl *SkipList) DuplicateRejections() int64 {
	return atomic.LoadInt64(&skl.duplicates)
}

// MemoryUsage is the arena's granted byte count, pollable from any
// goroutine.
func (skl *SkipList) MemoryUsage() int64 {
	return skl.alloc.MemoryUsage()
}

// Insert adds key to the structure. The key space is assumed unique by
// construction (the surrounding engine embeds a strictly increasing
// sequence number), so a duplicate is rejected as a logged no-op
// rather than an update.
func (skl *SkipList) Insert(key []byte) InsertOutcome {
	var prev [sklMaxHeight]*node
	if nd := skl.findGreaterOrEqual(key, &prev); nd != nil && skl.kcmp(key, nd.key()) == 0 {
		atomic.AddInt64(&skl.duplicates, 1)
		skl.lgr.Warn("duplicate key rejected", zap.ByteString("key", key))
		return DuplicateRejected
	}

	height := skl.randomHeight()
	if curMax := skl.Levels(); height > curMax {
		for l := curMax; l < height; l++ {
			// Levels above curMax have never been populated, the head
			// is always the correct predecessor there.
			prev[l] = skl.head
		}
		// A reader that hasn't observed the raise yet simply searches
		// fewer levels, which is always safe.
		atomic.StoreInt32(&skl.curHeight, height)
	}

	nd := newNode(skl.alloc, key, height)
	for l := int32(0); l < height; l++ {
		// The node is unreachable until the publishing store below,
		// its own slot needs no ordering.
		nd.storeNext(l, prev[l].loadNext(l))
		prev[l].atomicStoreNext(l, nd)
	}
	atomic.AddInt64(&skl.nodeLen, 1)
	return Inserted
}

// Contains reports whether key is present. Safe to run concurrently
// with any number of other readers and with the single writer.
func (skl *SkipList) Contains(key []byte) bool {
	nd := skl.findGreaterOrEqual(key, nil)
	return nd != nil && skl.kcmp(key, nd.key()) == 0
}

// Seek returns the smallest stored key >= key. The returned bytes
// alias arena memory and stay valid until Release.
func (skl *SkipList) Seek(key []byte) ([]byte, bool) {
	if nd := skl.findGreaterOrEqual(key, nil); nd != nil {
		return nd.key(), true
	}
	return nil, false
}

// SeekForPrev returns the largest stored key < key.
func (skl *SkipList) SeekForPrev(key []byte) ([]byte, bool) {
	if nd := skl.findLessThan(key); nd != skl.head {
		return nd.key(), true
	}
	return nil, false
}

// FirstKey returns the smallest stored key.
func (skl *SkipList) FirstKey() ([]byte, bool) {
	if nd := skl.head.atomicLoadNext(0); nd != nil {
		return nd.key(), true
	}
	return nil, false
}

// LastKey returns the largest stored key.
func (skl *SkipList) LastKey() ([]byte, bool) {
	if nd := skl.findLast(); nd != skl.head {
		return nd.key(), true
	}
	return nil, false
}

// Foreach iterates keys in comparator order at the base level. Once
// the action returns false, the iteration stops. Keys published after
// the traversal passed their position are not revisited.
func (skl *SkipList) Foreach(action func(i int64, key []byte) bool) {
	i := int64(0)
	forward := skl.head.atomicLoadNext(0)
	for forward != nil {
		if !action(i, forward.key()) {
			break
		}
		forward = forward.atomicLoadNext(0)
		i++
	}
}

// Release drops the whole structure and its arena at once. No node or
// key obtained earlier may be used afterwards.
func (skl *SkipList) Release() {
	skl.head = nil
	skl.alloc.Release()
}

// keyIsAfterNode reports whether key sorts strictly after nd's key.
func (skl *SkipList) keyIsAfterNode(key []byte, nd *node) bool {
	return nd != nil && skl.kcmp(key, nd.key()) > 0
}

// findGreaterOrEqual is the search primitive shared by Insert and the
// readers: a top level down walk landing on the first node whose key
// is >= key, nil if none. When prev is supplied it records, for every
// level, the last node strictly before the landing point, which is
// exactly the per level splice position an insert needs.
func (skl *SkipList) findGreaterOrEqual(key []byte, prev *[sklMaxHeight]*node) *node {
	cur := skl.head
	level := skl.Levels() - 1
	for {
		next := cur.atomicLoadNext(level)
		if skl.keyIsAfterNode(key, next) {
			cur = next
		} else {
			if prev != nil {
				prev[level] = cur
			}
			if level == 0 {
				return next
			}
			level--
		}
	}
}

// findLessThan returns the last node whose key is strictly less than
// key, or the head when no such node exists. Only level 0 can finalize
// the answer since heights are randomized.
func (skl *SkipList) findLessThan(key []byte) *node {
	cur := skl.head
	level := skl.Levels() - 1
	for {
		next := cur.atomicLoadNext(level)
		cmp := int64(1)
		if next != nil {
			cmp = skl.kcmp(next.key(), key)
		}
		if cmp >= 0 {
			if level == 0 {
				return cur
			}
			level--
		} else {
			cur = next
		}
	}
}

// findLast walks the base level to the tail node, head if empty.
func (skl *SkipList) findLast() *node {
	cur := skl.head
	for {
		next := cur.atomicLoadNext(0)
		if next == nil {
			return cur
		}
		cur = next
	}
}
