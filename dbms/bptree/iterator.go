package bptree

import (
	"github.com/bpt-disk-index/bptidx/dbms/index"
	"github.com/bpt-disk-index/bptidx/dbms/node"
	"github.com/bpt-disk-index/bptidx/dbms/pager"
)

// RangeIterator walks the leaf chain, yielding keys in [start, end] in
// ascending order.
type RangeIterator struct {
	tree   *Tree
	end    int32
	leafID uint32
	idx    int
	key    int32
	val    []byte
	err    error
}

// Range returns an iterator over all keys in [start, end] inclusive.
// An empty range is a valid iterator that yields nothing.
func (t *Tree) Range(start, end int32) (index.Iterator, error) {
	if !t.ok {
		return nil, ErrClosed
	}
	leafID, err := t.findLeaf(start, nil)
	if err != nil {
		return nil, err
	}
	var p pager.Page
	if err := t.pg.ReadPage(leafID, &p); err != nil {
		return nil, err
	}
	idx, _ := leafSearch(&p, start)
	return &RangeIterator{tree: t, end: end, leafID: leafID, idx: idx}, nil
}

// ReadRange collects the values for every key in [start, end], ascending.
func (t *Tree) ReadRange(start, end int32) ([][]byte, error) {
	it, err := t.Range(start, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out [][]byte
	for it.Next() {
		out = append(out, it.Value())
	}
	return out, it.Error()
}

func (it *RangeIterator) Next() bool {
	for it.leafID != node.InvalidPage {
		var p pager.Page
		if err := it.tree.pg.ReadPage(it.leafID, &p); err != nil {
			it.err = err
			return false
		}
		if it.idx < node.NumKeys(&p) {
			k := node.LeafKey(&p, it.idx)
			if k > it.end {
				return false
			}
			it.key = k
			it.val = make([]byte, node.ValueSize)
			copy(it.val, node.LeafValue(&p, it.idx))
			it.idx++
			return true
		}
		it.leafID = node.NextLeaf(&p)
		it.idx = 0
	}
	return false
}

func (it *RangeIterator) Key() int32    { return it.key }
func (it *RangeIterator) Value() []byte { return it.val }
func (it *RangeIterator) Error() error  { return it.err }
func (it *RangeIterator) Close() error  { return nil }
