package memtable

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/corekv-io/corekv/lib/infra"
)

// A memtable entry packs user key, sequence number, value type and
// user value into the single opaque key the skip list stores:
//
// ┌───────────────┬─────────────────┬────────────────────────────┬───────────────┬───────────────┐
// │ size(varint32)│ User Key(string)│Sequence Number | kValueType│ size(varint32)│  User Value   │
// └───────────────┴─────────────────┴────────────────────────────┴───────────────┴───────────────┘
//
// The first size covers user key plus the 8 byte tag; the tag is a
// little-endian uint64 of sequence<<8 | value type.

const (
	typeValue byte = 0x1
	tagSize        = 8
)

var ErrCorruptEntry = errors.New("[memtable] corrupt entry encoding")

func packTag(seq uint64) uint64 {
	return seq<<8 | uint64(typeValue)
}

func encodeEntry(seq uint64, key, value []byte) []byte {
	entry := make([]byte, 0, 2*binary.MaxVarintLen32+len(key)+tagSize+len(value))
	entry = binary.AppendUvarint(entry, uint64(len(key)+tagSize))
	entry = append(entry, key...)
	entry = binary.LittleEndian.AppendUint64(entry, packTag(seq))
	entry = binary.AppendUvarint(entry, uint64(len(value)))
	entry = append(entry, value...)
	return entry
}

// encodeLookupKey builds just the internal key prefix of an entry. The
// entry comparator never reads past the internal key, so a lookup key
// compares against full entries as the newest admissible version of
// key at the given sequence horizon.
func encodeLookupKey(key []byte, seq uint64) []byte {
	lookup := make([]byte, 0, binary.MaxVarintLen32+len(key)+tagSize)
	lookup = binary.AppendUvarint(lookup, uint64(len(key)+tagSize))
	lookup = append(lookup, key...)
	lookup = binary.LittleEndian.AppendUint64(lookup, packTag(seq))
	return lookup
}

func decodeEntry(entry []byte) (userKey []byte, seq uint64, value []byte, err error) {
	ikSize, n := binary.Uvarint(entry)
	if n <= 0 || ikSize < tagSize || uint64(len(entry)-n) < ikSize {
		return nil, 0, nil, ErrCorruptEntry
	}
	ik := entry[n : n+int(ikSize)]
	userKey = ik[: len(ik)-tagSize : len(ik)-tagSize]
	seq = binary.LittleEndian.Uint64(ik[len(ik)-tagSize:]) >> 8
	rest := entry[n+int(ikSize):]
	vSize, m := binary.Uvarint(rest)
	if m <= 0 || uint64(len(rest)-m) < vSize {
		return nil, 0, nil, ErrCorruptEntry
	}
	value = rest[m : m+int(vSize) : m+int(vSize)]
	return userKey, seq, value, nil
}

// internalKey strips the varint length prefix and returns user key
// plus tag. Callers pass entries this package encoded itself.
func internalKey(entry []byte) []byte {
	size, n := binary.Uvarint(entry)
	return entry[n : n+int(size)]
}

// EntryComparator orders entries by user key ascending, then sequence
// number descending, so the newest version of a user key sorts first
// among its versions. Monotonic sequence numbers make every entry
// unique under it, which is what keeps the skip list's
// reject-on-duplicate contract a dead branch in normal operation.
func EntryComparator() infra.Comparator {
	return func(i, j []byte) int64 {
		ik, jk := internalKey(i), internalKey(j)
		if c := bytes.Compare(ik[:len(ik)-tagSize], jk[:len(jk)-tagSize]); c != 0 {
			return int64(c)
		}
		iTag := binary.LittleEndian.Uint64(ik[len(ik)-tagSize:])
		jTag := binary.LittleEndian.Uint64(jk[len(jk)-tagSize:])
		switch {
		case iTag > jTag:
			return -1
		case iTag < jTag:
			return 1
		default:
		}
		return 0
	}
}
