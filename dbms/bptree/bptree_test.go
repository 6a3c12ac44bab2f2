package bptree

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpt-disk-index/bptidx/dbms/node"
	"github.com/bpt-disk-index/bptidx/dbms/pager"
)

func newTree(t *testing.T) (*Tree, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t1.idx")
	tr, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr, path
}

func val(s string) []byte {
	buf := make([]byte, node.ValueSize)
	copy(buf, s)
	return buf
}

// ─── Literal scenarios ────────────────────────────────────────────────────────

func TestEmptyGet(t *testing.T) {
	tr, _ := newTree(t)

	got, err := tr.Get(42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertGet(t *testing.T) {
	tr, _ := newTree(t)

	require.NoError(t, tr.Insert(5, val("hello")))
	got, err := tr.Get(5)
	require.NoError(t, err)
	require.Len(t, got, node.ValueSize)
	assert.Equal(t, val("hello"), got)
}

func TestOverwrite(t *testing.T) {
	tr, _ := newTree(t)

	require.NoError(t, tr.Insert(5, val("hello")))
	require.NoError(t, tr.Insert(5, val("world")))

	got, err := tr.Get(5)
	require.NoError(t, err)
	assert.Equal(t, val("world"), got)

	vals, err := tr.ReadRange(5, 5)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	assert.Equal(t, val("world"), vals[0])
}

func TestLeafSplit(t *testing.T) {
	tr, _ := newTree(t)

	for k := int32(1); k <= 31; k++ {
		require.NoError(t, tr.Insert(k, val(fmt.Sprintf("v%d", k))))
	}

	// Height 2: an internal root over two leaves, separated by the first key
	// of the right half of the 15/16 split.
	var root pager.Page
	require.NoError(t, tr.pg.ReadPage(tr.root, &root))
	require.Equal(t, node.TypeInternal, node.Type(&root))
	require.Equal(t, 1, node.NumKeys(&root))
	assert.Equal(t, int32(16), node.Key(&root, 0))

	var left, right pager.Page
	require.NoError(t, tr.pg.ReadPage(node.Child(&root, 0), &left))
	require.NoError(t, tr.pg.ReadPage(node.Child(&root, 1), &right))
	require.Equal(t, node.TypeLeaf, node.Type(&left))
	require.Equal(t, node.TypeLeaf, node.Type(&right))
	assert.Equal(t, 15, node.NumKeys(&left))
	assert.Equal(t, 16, node.NumKeys(&right))
	assert.Equal(t, node.Child(&root, 1), node.NextLeaf(&left))
	assert.Equal(t, node.InvalidPage, node.NextLeaf(&right))

	vals, err := tr.ReadRange(1, 31)
	require.NoError(t, err)
	require.Len(t, vals, 31)
	for i, v := range vals {
		assert.Equal(t, val(fmt.Sprintf("v%d", i+1)), v)
	}
}

func TestMultiLevelGrowth(t *testing.T) {
	tr, _ := newTree(t)

	for k := int32(1); k <= 600; k++ {
		require.NoError(t, tr.Insert(k, val(fmt.Sprintf("v%d", k))))
	}

	var root pager.Page
	require.NoError(t, tr.pg.ReadPage(tr.root, &root))
	assert.Equal(t, node.TypeInternal, node.Type(&root))

	for k := int32(1); k <= 600; k++ {
		got, err := tr.Get(k)
		require.NoError(t, err)
		require.NotNil(t, got, "key %d", k)
		assert.Equal(t, val(fmt.Sprintf("v%d", k)), got)
	}

	vals, err := tr.ReadRange(1, 600)
	require.NoError(t, err)
	require.Len(t, vals, 600)
	for i, v := range vals {
		assert.Equal(t, val(fmt.Sprintf("v%d", i+1)), v)
	}
}

func TestDelete(t *testing.T) {
	tr, _ := newTree(t)

	for k := int32(1); k <= 31; k++ {
		require.NoError(t, tr.Insert(k, val(fmt.Sprintf("v%d", k))))
	}

	removed, err := tr.Delete(10)
	require.NoError(t, err)
	assert.True(t, removed)

	got, err := tr.Get(10)
	require.NoError(t, err)
	assert.Nil(t, got)

	vals, err := tr.ReadRange(1, 31)
	require.NoError(t, err)
	assert.Len(t, vals, 30)

	for k := int32(1); k <= 31; k++ {
		if k == 10 {
			continue
		}
		got, err := tr.Get(k)
		require.NoError(t, err)
		require.NotNil(t, got, "key %d", k)
	}

	removed, err = tr.Delete(10)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.idx")

	tr, err := Open(path)
	require.NoError(t, err)
	for k := int32(1); k <= 600; k++ {
		require.NoError(t, tr.Insert(k, val(fmt.Sprintf("v%d", k))))
	}
	require.NoError(t, tr.Close())

	tr, err = Open(path)
	require.NoError(t, err)
	defer tr.Close()

	var root pager.Page
	require.NoError(t, tr.pg.ReadPage(tr.root, &root))
	assert.Equal(t, node.TypeInternal, node.Type(&root))

	for k := int32(1); k <= 600; k++ {
		got, err := tr.Get(k)
		require.NoError(t, err)
		require.NotNil(t, got, "key %d", k)
		assert.Equal(t, val(fmt.Sprintf("v%d", k)), got)
	}
	vals, err := tr.ReadRange(1, 600)
	require.NoError(t, err)
	assert.Len(t, vals, 600)
}

// ─── Lifecycle and errors ─────────────────────────────────────────────────────

func TestOpenRejectsBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.idx")
	junk := make([]byte, pager.PageSize)
	for i := range junk {
		junk[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, junk, 0644))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrHeaderInvalid)
}

func TestOperationsAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.idx")
	tr, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, tr.Insert(1, val("a")))
	require.NoError(t, tr.Close())

	assert.ErrorIs(t, tr.Insert(2, val("b")), ErrClosed)
	_, err = tr.Get(1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = tr.Delete(1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = tr.Range(0, 10)
	assert.ErrorIs(t, err, ErrClosed)

	// Double close is a no-op.
	assert.NoError(t, tr.Close())
}

func TestFreshFileLayout(t *testing.T) {
	tr, path := newTree(t)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2*pager.PageSize), info.Size())

	var hdr pager.Page
	require.NoError(t, tr.pg.ReadPage(0, &hdr))
	assert.Equal(t, node.Magic, node.HeaderMagic(&hdr))
	assert.Equal(t, uint32(pager.PageSize), node.HeaderPageSize(&hdr))
	assert.Equal(t, uint32(1), node.HeaderRoot(&hdr))
	assert.Equal(t, node.InvalidPage, node.HeaderFreeList(&hdr))
}

func TestFileStaysPageAligned(t *testing.T) {
	tr, path := newTree(t)

	for k := int32(0); k < 500; k++ {
		require.NoError(t, tr.Insert(k*7, val("x")))
	}
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size()%pager.PageSize)
}

// ─── Randomized properties ────────────────────────────────────────────────────

func TestRandomizedInvariants(t *testing.T) {
	tr, _ := newTree(t)
	rng := rand.New(rand.NewSource(1))

	live := make(map[int32][]byte)
	for i := 0; i < 10000; i++ {
		k := int32(rng.Intn(100000) - 50000)
		v := val(fmt.Sprintf("v%d", k))
		require.NoError(t, tr.Insert(k, v))
		live[k] = v
	}
	// Overwrite a slice of them.
	for k := range live {
		if rng.Intn(4) == 0 {
			v := val(fmt.Sprintf("w%d", k))
			require.NoError(t, tr.Insert(k, v))
			live[k] = v
		}
	}
	// Delete a slice of them.
	for k := range live {
		if rng.Intn(5) == 0 {
			removed, err := tr.Delete(k)
			require.NoError(t, err)
			require.True(t, removed)
			delete(live, k)
		}
	}

	keys := make([]int32, 0, len(live))
	for k := range live {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	// Ordered enumeration over the whole key space.
	it, err := tr.Range(math.MinInt32, math.MaxInt32)
	require.NoError(t, err)
	i := 0
	for it.Next() {
		require.Less(t, i, len(keys))
		assert.Equal(t, keys[i], it.Key())
		assert.Equal(t, live[keys[i]], it.Value())
		i++
	}
	require.NoError(t, it.Error())
	require.NoError(t, it.Close())
	assert.Equal(t, len(keys), i)

	// Point lookups agree with the model.
	for _, k := range keys[:min(len(keys), 500)] {
		got, err := tr.Get(k)
		require.NoError(t, err)
		assert.Equal(t, live[k], got)
	}

	checkSeparators(t, tr, tr.root, math.MinInt64, math.MaxInt64)
	checkLeafChain(t, tr)
}

func TestRangeBounds(t *testing.T) {
	tr, _ := newTree(t)

	// Even keys only, so bounds can fall between stored keys.
	for k := int32(0); k <= 200; k += 2 {
		require.NoError(t, tr.Insert(k, val(fmt.Sprintf("v%d", k))))
	}

	cases := []struct {
		lo, hi int32
		want   int
	}{
		{0, 200, 101},
		{1, 199, 99},
		{10, 10, 1},
		{11, 11, 0},
		{150, 40, 0},
		{-100, -1, 0},
		{201, 500, 0},
		{198, 1000, 2},
	}
	for _, c := range cases {
		vals, err := tr.ReadRange(c.lo, c.hi)
		require.NoError(t, err)
		assert.Len(t, vals, c.want, "range [%d,%d]", c.lo, c.hi)
	}
}

// ─── Structural checkers ──────────────────────────────────────────────────────

// checkSeparators verifies that every key in the subtree at id lies in
// [lo, hi) and that internal separators partition their children.
func checkSeparators(t *testing.T, tr *Tree, id uint32, lo, hi int64) {
	t.Helper()
	var p pager.Page
	require.NoError(t, tr.pg.ReadPage(id, &p))
	n := node.NumKeys(&p)

	if node.Type(&p) == node.TypeLeaf {
		for i := 0; i < n; i++ {
			k := int64(node.LeafKey(&p, i))
			assert.GreaterOrEqual(t, k, lo, "leaf %d", id)
			assert.Less(t, k, hi, "leaf %d", id)
			if i > 0 {
				assert.Greater(t, k, int64(node.LeafKey(&p, i-1)), "leaf %d not strictly ascending", id)
			}
		}
		return
	}

	require.Equal(t, node.TypeInternal, node.Type(&p))
	require.GreaterOrEqual(t, n, 1, "internal %d must hold a key", id)
	childLo := lo
	for i := 0; i < n; i++ {
		k := int64(node.Key(&p, i))
		if i > 0 {
			assert.Greater(t, k, int64(node.Key(&p, i-1)), "internal %d not ascending", id)
		}
		checkSeparators(t, tr, node.Child(&p, i), childLo, k)
		childLo = k
	}
	checkSeparators(t, tr, node.Child(&p, n), childLo, hi)
}

// checkLeafChain verifies that the sibling chain from the leftmost leaf
// visits every leaf exactly once, in ascending key order, ending at
// InvalidPage.
func checkLeafChain(t *testing.T, tr *Tree) {
	t.Helper()

	var inOrder []uint32
	collectLeaves(t, tr, tr.root, &inOrder)

	start, err := tr.findLeaf(math.MinInt32, nil)
	require.NoError(t, err)

	var chain []uint32
	seen := make(map[uint32]bool)
	for id := start; id != node.InvalidPage; {
		require.False(t, seen[id], "leaf %d visited twice", id)
		seen[id] = true
		chain = append(chain, id)

		var p pager.Page
		require.NoError(t, tr.pg.ReadPage(id, &p))
		require.Equal(t, node.TypeLeaf, node.Type(&p))
		id = node.NextLeaf(&p)
	}
	assert.Equal(t, inOrder, chain)
}

func collectLeaves(t *testing.T, tr *Tree, id uint32, out *[]uint32) {
	t.Helper()
	var p pager.Page
	require.NoError(t, tr.pg.ReadPage(id, &p))
	if node.Type(&p) == node.TypeLeaf {
		*out = append(*out, id)
		return
	}
	n := node.NumKeys(&p)
	for i := 0; i <= n; i++ {
		collectLeaves(t, tr, node.Child(&p, i), out)
	}
}
