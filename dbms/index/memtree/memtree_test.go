package memtree

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ io.Closer = (*Tree)(nil)

func TestInsertGetDelete(t *testing.T) {
	bt := New()

	for k := int32(0); k < 1000; k++ {
		require.NoError(t, bt.Insert(k, []byte(fmt.Sprintf("v%d", k))))
	}

	got, err := bt.Get(500)
	require.NoError(t, err)
	assert.Equal(t, []byte("v500"), got)

	got, err = bt.Get(1000)
	require.NoError(t, err)
	assert.Nil(t, got)

	removed, err := bt.Delete(500)
	require.NoError(t, err)
	assert.True(t, removed)

	got, err = bt.Get(500)
	require.NoError(t, err)
	assert.Nil(t, got)

	removed, err = bt.Delete(500)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestOverwriteKeepsOneEntry(t *testing.T) {
	bt := New()
	require.NoError(t, bt.Insert(7, []byte("a")))
	require.NoError(t, bt.Insert(7, []byte("b")))

	it, err := bt.Range(7, 7)
	require.NoError(t, err)
	require.True(t, it.Next())
	assert.Equal(t, []byte("b"), it.Value())
	assert.False(t, it.Next())
}

func TestRangeAcrossLeafSplits(t *testing.T) {
	bt := New()
	// Descending inserts across several leaf splits.
	for k := int32(299); k >= 0; k-- {
		require.NoError(t, bt.Insert(k, []byte(fmt.Sprintf("v%d", k))))
	}

	it, err := bt.Range(40, 80)
	require.NoError(t, err)
	var keys []int32
	for it.Next() {
		keys = append(keys, it.Key())
	}
	require.NoError(t, it.Error())
	require.Len(t, keys, 41)
	for i, k := range keys {
		assert.Equal(t, int32(40+i), k)
	}
}

func TestGrowsPastOneLevel(t *testing.T) {
	bt := New()
	for k := int32(0); k < 600; k++ {
		require.NoError(t, bt.Insert(k*2, []byte("x")))
	}
	require.False(t, bt.root.leaf)

	// Every key still reachable through the inner levels.
	for k := int32(0); k < 600; k++ {
		got, err := bt.Get(k * 2)
		require.NoError(t, err)
		require.NotNil(t, got)
	}
	got, err := bt.Get(1)
	require.NoError(t, err)
	assert.Nil(t, got)
}
