package bptree

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bpt-disk-index/bptidx/dbms/node"
	"github.com/bpt-disk-index/bptidx/dbms/pager"
)

// Insert stores value under key, overwriting any existing entry. Values
// longer than 100 bytes are truncated, shorter ones zero-padded.
func (t *Tree) Insert(key int32, value []byte) error {
	if !t.ok {
		return ErrClosed
	}
	path := make([]uint32, 0, 8)
	leafID, err := t.findLeaf(key, &path)
	if err != nil {
		return err
	}
	promoted, right, split, err := t.insertInLeaf(leafID, key, value)
	if err != nil {
		return err
	}
	if !split {
		return nil
	}
	return t.insertInParent(path, leafID, promoted, right)
}

// insertInLeaf returns (promotedKey, newRightPage, didSplit, error).
func (t *Tree) insertInLeaf(leafID uint32, key int32, value []byte) (int32, uint32, bool, error) {
	var p pager.Page
	if err := t.pg.ReadPage(leafID, &p); err != nil {
		return 0, 0, false, err
	}
	n := node.NumKeys(&p)
	idx, found := leafSearch(&p, key)

	if found {
		node.SetLeafValue(&p, idx, value)
		return 0, 0, false, t.pg.WritePage(leafID, &p)
	}

	if n < node.LeafMaxKeys {
		for i := n; i > idx; i-- {
			node.SetLeafKey(&p, i, node.LeafKey(&p, i-1))
			node.SetLeafValue(&p, i, node.LeafValue(&p, i-1))
		}
		node.SetLeafKey(&p, idx, key)
		node.SetLeafValue(&p, idx, value)
		node.SetNumKeys(&p, n+1)
		return 0, 0, false, t.pg.WritePage(leafID, &p)
	}

	return t.splitLeaf(leafID, &p, n, idx, key, value)
}

func (t *Tree) splitLeaf(leafID uint32, p *pager.Page, n, idx int, key int32, value []byte) (int32, uint32, bool, error) {
	var tmpKeys [node.LeafMaxKeys + 1]int32
	var tmpVals [node.LeafMaxKeys + 1][node.ValueSize]byte
	for i := 0; i < n; i++ {
		tmpKeys[i] = node.LeafKey(p, i)
		copy(tmpVals[i][:], node.LeafValue(p, i))
	}
	copy(tmpKeys[idx+1:], tmpKeys[idx:n])
	for i := n; i > idx; i-- {
		tmpVals[i] = tmpVals[i-1]
	}
	tmpKeys[idx] = key
	tmpVals[idx] = [node.ValueSize]byte{}
	copy(tmpVals[idx][:], value)

	total := n + 1
	// 15 left / 16 right: the right-heavy bias keeps the very next insert
	// into either half from splitting again.
	split := total / 2

	newID, err := t.pg.Allocate()
	if err != nil {
		return 0, 0, false, err
	}

	// Capture the old successor before relinking the chain.
	oldNext := node.NextLeaf(p)

	var right pager.Page
	node.InitLeaf(&right)
	node.SetNextLeaf(&right, oldNext)
	for i := split; i < total; i++ {
		node.SetLeafKey(&right, i-split, tmpKeys[i])
		node.SetLeafValue(&right, i-split, tmpVals[i][:])
	}
	node.SetNumKeys(&right, total-split)

	node.SetNextLeaf(p, newID)
	for i := 0; i < split; i++ {
		node.SetLeafKey(p, i, tmpKeys[i])
		node.SetLeafValue(p, i, tmpVals[i][:])
	}
	node.SetNumKeys(p, split)

	promoted := node.LeafKey(&right, 0)
	if err := t.pg.WritePage(leafID, p); err != nil {
		return 0, 0, false, err
	}
	if err := t.pg.WritePage(newID, &right); err != nil {
		return 0, 0, false, err
	}
	t.log.Debug("leaf split",
		zap.Uint32("leaf", leafID),
		zap.Uint32("right", newID),
		zap.Int32("promoted", promoted))
	return promoted, newID, true, nil
}

// insertInParent inserts (key, rightPage) into the parent of leftPage, using
// the recorded descent path to find ancestors. Internal splits recurse into
// the path prefix ending at the node that split.
func (t *Tree) insertInParent(path []uint32, left uint32, key int32, right uint32) error {
	// The sole root split: grow the tree by one level.
	if len(path) == 1 {
		return t.growRoot(left, key, right)
	}

	parentID := path[len(path)-2]
	var p pager.Page
	if err := t.pg.ReadPage(parentID, &p); err != nil {
		return err
	}
	if node.Type(&p) != node.TypeInternal {
		return errors.Wrapf(ErrCorrupt, "page %d is not internal", parentID)
	}
	n := node.NumKeys(&p)

	c := -1
	for i := 0; i <= n; i++ {
		if node.Child(&p, i) == left {
			c = i
			break
		}
	}
	if c < 0 {
		return errors.Wrapf(ErrCorrupt, "page %d is not a child of %d", left, parentID)
	}

	if n < node.InternalMaxKeys {
		for i := n; i > c; i-- {
			node.SetKey(&p, i, node.Key(&p, i-1))
		}
		for i := n + 1; i > c+1; i-- {
			node.SetChild(&p, i, node.Child(&p, i-1))
		}
		node.SetKey(&p, c, key)
		node.SetChild(&p, c+1, right)
		node.SetNumKeys(&p, n+1)
		return t.pg.WritePage(parentID, &p)
	}

	return t.splitInternal(path, parentID, &p, n, c, key, right)
}

func (t *Tree) splitInternal(path []uint32, parentID uint32, p *pager.Page, n, c int, key int32, right uint32) error {
	var tmpKeys [node.InternalMaxKeys + 1]int32
	var tmpChildren [node.InternalMaxKeys + 2]uint32
	for i := 0; i < n; i++ {
		tmpKeys[i] = node.Key(p, i)
	}
	for i := 0; i <= n; i++ {
		tmpChildren[i] = node.Child(p, i)
	}
	copy(tmpKeys[c+1:], tmpKeys[c:n])
	copy(tmpChildren[c+2:], tmpChildren[c+1:n+1])
	tmpKeys[c] = key
	tmpChildren[c+1] = right

	total := n + 1
	mid := total / 2
	midKey := tmpKeys[mid]

	newID, err := t.pg.Allocate()
	if err != nil {
		return err
	}

	// The splitting node keeps keys [0,mid) and children [0,mid]; the middle
	// key is promoted, not copied.
	node.InitInternal(p)
	for i := 0; i < mid; i++ {
		node.SetKey(p, i, tmpKeys[i])
		node.SetChild(p, i, tmpChildren[i])
	}
	node.SetChild(p, mid, tmpChildren[mid])
	node.SetNumKeys(p, mid)

	var rp pager.Page
	node.InitInternal(&rp)
	rn := total - mid - 1
	for i := 0; i < rn; i++ {
		node.SetKey(&rp, i, tmpKeys[mid+1+i])
		node.SetChild(&rp, i, tmpChildren[mid+1+i])
	}
	node.SetChild(&rp, rn, tmpChildren[total])
	node.SetNumKeys(&rp, rn)

	if err := t.pg.WritePage(parentID, p); err != nil {
		return err
	}
	if err := t.pg.WritePage(newID, &rp); err != nil {
		return err
	}
	t.log.Debug("internal split",
		zap.Uint32("node", parentID),
		zap.Uint32("right", newID),
		zap.Int32("promoted", midKey))

	if parentID == t.root {
		return t.growRoot(parentID, midKey, newID)
	}
	return t.insertInParent(path[:len(path)-1], parentID, midKey, newID)
}

// growRoot allocates a fresh internal root over (left, right) separated by
// key and flushes the header.
func (t *Tree) growRoot(left uint32, key int32, right uint32) error {
	newRoot, err := t.pg.Allocate()
	if err != nil {
		return err
	}
	var p pager.Page
	node.InitInternal(&p)
	node.SetNumKeys(&p, 1)
	node.SetKey(&p, 0, key)
	node.SetChild(&p, 0, left)
	node.SetChild(&p, 1, right)
	if err := t.pg.WritePage(newRoot, &p); err != nil {
		return err
	}
	t.root = newRoot
	t.log.Debug("root grew", zap.Uint32("root", newRoot), zap.Int32("separator", key))
	return t.flushHeader()
}
