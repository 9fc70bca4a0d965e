package infra

import "bytes"

// Comparator defines a strict total order over opaque byte keys.
// Assume i is the new key.
//  1. i == j (return 0)
//  2. i > j (return a positive number), turn to right part.
//  3. i < j (return a negative number), turn to left part.
//
// The ordered structures built on top of a Comparator delegate every
// ordering decision to it and never interpret key bytes themselves, so
// uniqueness and ordering invariants hold exactly as far as the
// Comparator is a consistent total order.
type Comparator func(i, j []byte) int64

// BytewiseComparator orders keys by their raw byte content,
// lexicographically. Fixed-width big-endian integer encodings sort in
// numeric order under it.
func BytewiseComparator() Comparator {
	return func(i, j []byte) int64 {
		return int64(bytes.Compare(i, j))
	}
}
