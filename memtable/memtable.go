package memtable

import (
	"bytes"

	"github.com/corekv-io/corekv/lib/arena"
	"github.com/corekv-io/corekv/lib/skl"
	"github.com/corekv-io/corekv/xlog"
)

// MemTable is the in-memory write buffer of the storage engine: recent
// writes packed into versioned entries held by an arena backed skip
// list until a later flush stage (out of scope here) drains them.
//
// It inherits the skip list's concurrency contract: one writer calls
// Put at a time, any number of goroutines may call Get, Contains and
// the stats accessors concurrently with it.
type MemTable struct {
	skl *skl.SkipList
	lgr xlog.XLogger
}

type memTableOptions struct {
	lgr   xlog.XLogger
	alloc arena.Allocator
	rand  skl.RandSource
}

type MemTableOption func(*memTableOptions)

func WithXLogger(lgr xlog.XLogger) MemTableOption {
	return func(o *memTableOptions) {
		o.lgr = lgr
	}
}

func WithAllocator(alloc arena.Allocator) MemTableOption {
	return func(o *memTableOptions) {
		o.alloc = alloc
	}
}

func WithRandSource(rand skl.RandSource) MemTableOption {
	return func(o *memTableOptions) {
		o.rand = rand
	}
}

func New(opts ...MemTableOption) *MemTable {
	o := &memTableOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.lgr == nil {
		o.lgr = xlog.Discard()
	}
	if o.alloc == nil {
		o.alloc = arena.NewArena()
	}
	sklOpts := []skl.SklOption{
		skl.WithAllocator(o.alloc),
		skl.WithXLogger(o.lgr),
	}
	if o.rand != nil {
		sklOpts = append(sklOpts, skl.WithRandSource(o.rand))
	}
	return &MemTable{
		skl: skl.New(EntryComparator(), sklOpts...),
		lgr: o.lgr.Named("memtable"),
	}
}

// Put records value under key at the given sequence number. Sequence
// numbers must be unique per memtable; reusing one for the same key
// makes the entry a duplicate, which the skip list rejects and logs.
func (mt *MemTable) Put(seq uint64, key, value []byte) skl.InsertOutcome {
	return mt.skl.Insert(encodeEntry(seq, key, value))
}

// Get returns the newest value written for key at a sequence number
// <= seq. The returned bytes alias arena memory and stay valid until
// Release.
func (mt *MemTable) Get(key []byte, seq uint64) ([]byte, bool) {
	entry, ok := mt.skl.Seek(encodeLookupKey(key, seq))
	if !ok {
		return nil, false
	}
	userKey, _, value, err := decodeEntry(entry)
	if err != nil || !bytes.Equal(userKey, key) {
		return nil, false
	}
	return value, true
}

// Contains reports whether any version of key at a sequence number
// <= seq is present.
func (mt *MemTable) Contains(key []byte, seq uint64) bool {
	_, ok := mt.Get(key, seq)
	return ok
}

// Foreach iterates entries in internal key order: user key ascending,
// then newest version first.
func (mt *MemTable) Foreach(action func(i int64, userKey []byte, seq uint64, value []byte) bool) {
	mt.skl.Foreach(func(i int64, entry []byte) bool {
		userKey, seq, value, err := decodeEntry(entry)
		if err != nil {
			mt.lgr.Error("skipping corrupt entry during iteration")
			return true
		}
		return action(i, userKey, seq, value)
	})
}

// Len is the number of entries, every version counted.
func (mt *MemTable) Len() int64 {
	return mt.skl.Len()
}

// ApproximateMemoryUsage reports arena bytes granted so far, the
// number the engine compares against its write buffer budget when
// deciding to rotate the memtable.
func (mt *MemTable) ApproximateMemoryUsage() int64 {
	return mt.skl.MemoryUsage()
}

// DuplicateRejections counts writes dropped by the uniqueness check.
func (mt *MemTable) DuplicateRejections() int64 {
	return mt.skl.DuplicateRejections()
}

// Release drops all entries and the arena behind them at once.
func (mt *MemTable) Release() error {
	mt.skl.Release()
	return mt.lgr.Sync()
}
