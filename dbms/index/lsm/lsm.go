// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface so it can be benchmarked alongside the disk-backed
// B+ tree.
package lsm

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/bpt-disk-index/bptidx/dbms/index"
)

type LSM struct {
	db *pebble.DB
}

var _ index.Index = (*LSM)(nil)

// Open opens (or creates) a Pebble database at the given directory path.
func Open(dir string) (*LSM, error) {
	opts := &pebble.Options{
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrap(err, "lsm: open")
	}
	return &LSM{db: db}, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	return l.db.Close()
}

// Insert inserts or updates the value for key.
func (l *LSM) Insert(key int32, value []byte) error {
	return l.db.Set(encodeKey(key), value, pebble.NoSync)
}

// Get retrieves the value for key. Returns nil if not found.
func (l *LSM) Get(key int32) ([]byte, error) {
	val, closer, err := l.db.Get(encodeKey(key))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "lsm: get")
	}
	// val is only valid until closer.Close(), so we copy it.
	result := make([]byte, len(val))
	copy(result, val)
	closer.Close()
	return result, nil
}

// Delete removes the key from the store, reporting whether it was present.
func (l *LSM) Delete(key int32) (bool, error) {
	existing, err := l.Get(key)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if err := l.db.Delete(encodeKey(key), pebble.NoSync); err != nil {
		return false, errors.Wrap(err, "lsm: delete")
	}
	return true, nil
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (l *LSM) Range(start, end int32) (index.Iterator, error) {
	iterOpts := &pebble.IterOptions{
		LowerBound: encodeKey(start),
		UpperBound: encodeKeyExclusive(end),
	}
	iter, err := l.db.NewIter(iterOpts)
	if err != nil {
		return nil, errors.Wrap(err, "lsm: range")
	}
	iter.First()
	return &rangeIterator{iter: iter, first: true}, nil
}

// ─── Key encoding ─────────────────────────────────────────────────────────────

// encodeKey encodes an int32 as a big-endian 4-byte slice with the sign bit
// flipped, so bytewise order matches signed key order.
func encodeKey(k int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(k)^0x80000000)
	return b
}

// encodeKeyExclusive returns the exclusive upper bound for Pebble's
// UpperBound option. Appending a zero byte yields a key strictly greater
// than encodeKey(k) without overflowing at the maximum key.
func encodeKeyExclusive(k int32) []byte {
	return append(encodeKey(k), 0)
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   int32
	val   []byte
	err   error
}

func (it *rangeIterator) Next() bool {
	var valid bool
	if it.first {
		// iter.First() was already called in Range(); just check validity.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		return false
	}
	k := it.iter.Key()
	if len(k) != 4 {
		it.err = errors.Errorf("lsm: unexpected key length %d", len(k))
		return false
	}
	it.key = int32(binary.BigEndian.Uint32(k) ^ 0x80000000)
	// Copy value — Pebble reuses the buffer on Next().
	v := it.iter.Value()
	it.val = make([]byte, len(v))
	copy(it.val, v)
	return true
}

func (it *rangeIterator) Key() int32    { return it.key }
func (it *rangeIterator) Value() []byte { return it.val }
func (it *rangeIterator) Error() error  { return it.err }
func (it *rangeIterator) Close() error  { return it.iter.Close() }
