// Package memtree is an in-memory B+ tree used by the benchmark as a no-I/O
// baseline. It shares the disk engine's fan-outs (30 keys per leaf, 128 per
// inner node) so the two trees take the same shape over the same load, and
// like the disk engine it splits on overflow rather than pre-emptively.
package memtree

import (
	"slices"
	"sort"

	"github.com/bpt-disk-index/bptidx/dbms/index"
	"github.com/bpt-disk-index/bptidx/dbms/node"
)

var _ index.Index = (*Tree)(nil)

// bnode is either a leaf (vals set, next chains the leaves) or an inner node
// (kids set, len(kids) == len(keys)+1).
type bnode struct {
	leaf bool
	keys []int32
	vals [][]byte
	kids []*bnode
	next *bnode
}

type Tree struct {
	root *bnode
}

// New returns an empty in-memory B+ tree.
func New() *Tree {
	return &Tree{root: &bnode{leaf: true}}
}

func (bt *Tree) Close() error { return nil }

// descend walks to the leaf whose key range covers key. Equal separators
// route right, matching the disk engine.
func (bt *Tree) descend(key int32) *bnode {
	n := bt.root
	for !n.leaf {
		pos := sort.Search(len(n.keys), func(i int) bool { return n.keys[i] > key })
		n = n.kids[pos]
	}
	return n
}

func (bt *Tree) Get(key int32) ([]byte, error) {
	n := bt.descend(key)
	pos := sort.Search(len(n.keys), func(i int) bool { return n.keys[i] >= key })
	if pos == len(n.keys) || n.keys[pos] != key {
		return nil, nil
	}
	return n.vals[pos], nil
}

// Insert stores value under key, overwriting any existing entry. Splits
// propagate bottom-up through the recursion; a promotion surfacing past the
// root grows the tree by one level.
func (bt *Tree) Insert(key int32, value []byte) error {
	sib, sep := bt.insert(bt.root, key, value)
	if sib != nil {
		bt.root = &bnode{keys: []int32{sep}, kids: []*bnode{bt.root, sib}}
	}
	return nil
}

// insert returns the new right sibling and its separator when the visited
// node overflowed, or (nil, 0) when the subtree absorbed the insert.
func (bt *Tree) insert(n *bnode, key int32, value []byte) (*bnode, int32) {
	if n.leaf {
		pos := sort.Search(len(n.keys), func(i int) bool { return n.keys[i] >= key })
		if pos < len(n.keys) && n.keys[pos] == key {
			n.vals[pos] = value
			return nil, 0
		}
		n.keys = slices.Insert(n.keys, pos, key)
		n.vals = slices.Insert(n.vals, pos, value)
		if len(n.keys) <= node.LeafMaxKeys {
			return nil, 0
		}
		return n.splitLeaf()
	}

	pos := sort.Search(len(n.keys), func(i int) bool { return n.keys[i] > key })
	sib, sep := bt.insert(n.kids[pos], key, value)
	if sib == nil {
		return nil, 0
	}
	n.keys = slices.Insert(n.keys, pos, sep)
	n.kids = slices.Insert(n.kids, pos+1, sib)
	if len(n.keys) <= node.InternalMaxKeys {
		return nil, 0
	}
	return n.splitInner()
}

// splitLeaf moves the upper half into a fresh leaf, relinks the chain, and
// hands the new leaf's first key up as separator.
func (n *bnode) splitLeaf() (*bnode, int32) {
	half := len(n.keys) / 2
	sib := &bnode{leaf: true, next: n.next}
	sib.keys = append(sib.keys, n.keys[half:]...)
	sib.vals = append(sib.vals, n.vals[half:]...)
	n.keys = n.keys[:half:half]
	n.vals = n.vals[:half:half]
	n.next = sib
	return sib, sib.keys[0]
}

// splitInner consumes the middle key as the promoted separator; it appears
// in neither half afterwards.
func (n *bnode) splitInner() (*bnode, int32) {
	half := len(n.keys) / 2
	sep := n.keys[half]
	sib := &bnode{}
	sib.keys = append(sib.keys, n.keys[half+1:]...)
	sib.kids = append(sib.kids, n.kids[half+1:]...)
	n.keys = n.keys[:half:half]
	n.kids = n.kids[: half+1 : half+1]
	return sib, sep
}

// Delete removes key from its leaf, reporting whether it was present. As in
// the disk engine, underfull leaves are left alone.
func (bt *Tree) Delete(key int32) (bool, error) {
	n := bt.descend(key)
	pos := sort.Search(len(n.keys), func(i int) bool { return n.keys[i] >= key })
	if pos == len(n.keys) || n.keys[pos] != key {
		return false, nil
	}
	n.keys = slices.Delete(n.keys, pos, pos+1)
	n.vals = slices.Delete(n.vals, pos, pos+1)
	return true, nil
}

// Range returns an iterator over all keys in [lo, hi] inclusive.
func (bt *Tree) Range(lo, hi int32) (index.Iterator, error) {
	n := bt.descend(lo)
	pos := sort.Search(len(n.keys), func(i int) bool { return n.keys[i] >= lo })
	return &scanner{n: n, pos: pos, hi: hi}, nil
}

// scanner yields entries along the leaf chain until one exceeds hi. The
// starting position already skips keys below the lower bound.
type scanner struct {
	n   *bnode
	pos int
	hi  int32
	key int32
	val []byte
}

func (s *scanner) Next() bool {
	for s.n != nil {
		if s.pos == len(s.n.keys) {
			s.n, s.pos = s.n.next, 0
			continue
		}
		if s.n.keys[s.pos] > s.hi {
			return false
		}
		s.key, s.val = s.n.keys[s.pos], s.n.vals[s.pos]
		s.pos++
		return true
	}
	return false
}

func (s *scanner) Key() int32    { return s.key }
func (s *scanner) Value() []byte { return s.val }
func (s *scanner) Error() error  { return nil }
func (s *scanner) Close() error  { return nil }
