// Package bptree implements a single-file, disk-backed B+ tree indexing
// fixed-width 100-byte values by signed 32-bit keys.
//
// Page 0 of the backing file is the header; pages >= 1 are nodes. Leaf nodes
// hold up to 30 key/value pairs and are chained via nextLeaf in ascending key
// order. Internal nodes hold up to 128 separator keys and 129 children.
// Descent at an internal node advances past every separator <= key. A
// separator equals the first key of its right subtree's leftmost leaf when it
// is created; Delete does not update separators, so one may outlive its key.
//
// The tree is single-threaded and assumes exclusive ownership of the file.
// There is no write-ahead log: a failed multi-page mutation can leave
// allocated-but-unreferenced pages behind.
package bptree

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bpt-disk-index/bptidx/dbms/index"
	"github.com/bpt-disk-index/bptidx/dbms/node"
	"github.com/bpt-disk-index/bptidx/dbms/pager"
)

var (
	// ErrHeaderInvalid means the file exists but its magic or page size
	// does not match.
	ErrHeaderInvalid = errors.New("bptree: invalid index file header")

	// ErrClosed means the tree has been closed or failed to open.
	ErrClosed = errors.New("bptree: tree is closed")

	// ErrCorrupt means a node page did not have the expected shape.
	ErrCorrupt = errors.New("bptree: corrupt node page")
)

var _ index.Index = (*Tree)(nil)

// Tree is one B+ tree instance bound to one backing file.
type Tree struct {
	pg   *pager.Pager
	log  *zap.Logger
	root uint32
	free uint32 // reserved free-list head, never consulted
	ok   bool
}

// Option configures a Tree at open time.
type Option func(*Tree)

// WithLogger attaches a logger. The default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(t *Tree) { t.log = log }
}

// Open opens the index file at path, creating and initializing it when absent
// or empty. An existing file with a bad header yields ErrHeaderInvalid.
func Open(path string, opts ...Option) (*Tree, error) {
	t := &Tree{log: zap.NewNop(), free: node.InvalidPage}
	for _, o := range opts {
		o(t)
	}

	pg, err := pager.Open(path)
	if err != nil {
		return nil, err
	}
	t.pg = pg

	size, err := pg.Size()
	if err != nil {
		pg.Close()
		return nil, err
	}
	if size == 0 {
		if err := t.initEmpty(); err != nil {
			pg.Close()
			return nil, err
		}
		t.log.Info("initialized empty index", zap.String("path", path))
	} else if err := t.loadHeader(); err != nil {
		pg.Close()
		return nil, err
	}

	t.ok = true
	return t, nil
}

// Close flushes the header once and releases the file descriptor. Further
// operations return ErrClosed.
func (t *Tree) Close() error {
	if !t.ok {
		return nil
	}
	t.ok = false
	err := t.flushHeader()
	if cerr := t.pg.Close(); err == nil {
		err = cerr
	}
	return err
}

// Get returns a copy of the value stored under key, or nil if absent.
func (t *Tree) Get(key int32) ([]byte, error) {
	if !t.ok {
		return nil, ErrClosed
	}
	leafID, err := t.findLeaf(key, nil)
	if err != nil {
		return nil, err
	}
	var p pager.Page
	if err := t.pg.ReadPage(leafID, &p); err != nil {
		return nil, err
	}
	idx, found := leafSearch(&p, key)
	if !found {
		return nil, nil
	}
	out := make([]byte, node.ValueSize)
	copy(out, node.LeafValue(&p, idx))
	return out, nil
}

// Delete removes key from its leaf. It reports whether a key was removed.
// No rebalancing is performed; underflowed leaves and stale separators are
// tolerated.
func (t *Tree) Delete(key int32) (bool, error) {
	if !t.ok {
		return false, ErrClosed
	}
	leafID, err := t.findLeaf(key, nil)
	if err != nil {
		return false, err
	}
	var p pager.Page
	if err := t.pg.ReadPage(leafID, &p); err != nil {
		return false, err
	}
	idx, found := leafSearch(&p, key)
	if !found {
		return false, nil
	}
	n := node.NumKeys(&p)
	for i := idx + 1; i < n; i++ {
		node.SetLeafKey(&p, i-1, node.LeafKey(&p, i))
		node.SetLeafValue(&p, i-1, node.LeafValue(&p, i))
	}
	node.SetNumKeys(&p, n-1)
	if err := t.pg.WritePage(leafID, &p); err != nil {
		return false, err
	}
	return true, nil
}

// ─── Navigation ───────────────────────────────────────────────────────────────

// findLeaf descends from the root to the leaf that would contain key. With a
// non-nil path, every visited page ID is recorded, root through leaf.
func (t *Tree) findLeaf(key int32, path *[]uint32) (uint32, error) {
	id := t.root
	var p pager.Page
	for {
		if path != nil {
			*path = append(*path, id)
		}
		if err := t.pg.ReadPage(id, &p); err != nil {
			return node.InvalidPage, err
		}
		switch node.Type(&p) {
		case node.TypeLeaf:
			return id, nil
		case node.TypeInternal:
			id = node.Child(&p, childIndex(&p, key, node.NumKeys(&p)))
		default:
			return node.InvalidPage, errors.Wrapf(ErrCorrupt, "page %d has type %d", id, node.Type(&p))
		}
	}
}

// childIndex returns the smallest i with key < keys[i]; equal keys route to
// the right subtree.
func childIndex(p *pager.Page, key int32, n int) int {
	lo, hi := 0, n
	for lo < hi {
		m := (lo + hi) / 2
		if node.Key(p, m) <= key {
			lo = m + 1
		} else {
			hi = m
		}
	}
	return lo
}

// leafSearch returns the position of key in the leaf, or its insertion point,
// plus an exact-match flag.
func leafSearch(p *pager.Page, key int32) (int, bool) {
	n := node.NumKeys(p)
	lo, hi := 0, n
	for lo < hi {
		m := (lo + hi) / 2
		if node.LeafKey(p, m) < key {
			lo = m + 1
		} else {
			hi = m
		}
	}
	return lo, lo < n && node.LeafKey(p, lo) == key
}

// ─── Header ───────────────────────────────────────────────────────────────────

func (t *Tree) initEmpty() error {
	t.root = 1
	if err := t.flushHeader(); err != nil {
		return err
	}
	var p pager.Page
	node.InitLeaf(&p)
	return t.pg.WritePage(1, &p)
}

func (t *Tree) loadHeader() error {
	var p pager.Page
	if err := t.pg.ReadPage(0, &p); err != nil {
		return err
	}
	if node.HeaderMagic(&p) != node.Magic {
		return errors.Wrapf(ErrHeaderInvalid, "magic %#x", node.HeaderMagic(&p))
	}
	if node.HeaderPageSize(&p) != pager.PageSize {
		return errors.Wrapf(ErrHeaderInvalid, "page size %d", node.HeaderPageSize(&p))
	}
	t.root = node.HeaderRoot(&p)
	t.free = node.HeaderFreeList(&p)
	return nil
}

func (t *Tree) flushHeader() error {
	var p pager.Page
	node.InitHeader(&p, t.root)
	return t.pg.WritePage(0, &p)
}
