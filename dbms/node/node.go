// Package node defines the on-disk layout of the three page kinds and the
// accessor functions that read and write them inside a raw 4 KB page.
//
// File header (page 0):
//
//	[0-3]   uint32  magic ("BPT1")
//	[4-7]   uint32  page size (4096)
//	[8-11]  uint32  root page ID
//	[12-15] uint32  free list head (reserved, always InvalidPage)
//
// Node header (every node page):
//
//	[0]     1 byte   node type (TypeInternal / TypeLeaf)
//	[1-2]   uint16   numKeys
//	[3]     1 byte   reserved — keeps the key arrays 4-byte aligned
//
// Leaf page:
//
//	[4-7]   uint32   nextLeaf page ID, or InvalidPage
//	[8+]    int32    keys[30]
//	[128+]  [100]byte values[30]
//
// Internal page:
//
//	[4+]    int32    keys[128]
//	[516+]  uint32   children[129]
package node

import (
	"encoding/binary"

	"github.com/bpt-disk-index/bptidx/dbms/pager"
)

const (
	// Magic identifies the backing file ("BPT1").
	Magic = uint32(0x42505431)

	TypeInternal = byte(0)
	TypeLeaf     = byte(1)

	ValueSize       = 100
	LeafMaxKeys     = 30
	InternalMaxKeys = 128

	InvalidPage = pager.InvalidPage

	offMagic        = 0
	offPageSize     = 4
	offRootPage     = 8
	offFreeListHead = 12

	offType    = 0
	offNumKeys = 1

	offNextLeaf   = 4
	offLeafKeys   = 8
	offLeafValues = offLeafKeys + LeafMaxKeys*4

	offIntKeys     = 4
	offIntChildren = offIntKeys + InternalMaxKeys*4
)

// ─── File header ──────────────────────────────────────────────────────────────

func InitHeader(p *pager.Page, root uint32) {
	for i := range p {
		p[i] = 0
	}
	binary.LittleEndian.PutUint32(p[offMagic:], Magic)
	binary.LittleEndian.PutUint32(p[offPageSize:], pager.PageSize)
	SetHeaderRoot(p, root)
	binary.LittleEndian.PutUint32(p[offFreeListHead:], InvalidPage)
}

func HeaderMagic(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[offMagic : offMagic+4])
}

func HeaderPageSize(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[offPageSize : offPageSize+4])
}

func HeaderRoot(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[offRootPage : offRootPage+4])
}

func SetHeaderRoot(p *pager.Page, root uint32) {
	binary.LittleEndian.PutUint32(p[offRootPage:offRootPage+4], root)
}

func HeaderFreeList(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[offFreeListHead : offFreeListHead+4])
}

// ─── Node header ──────────────────────────────────────────────────────────────

func Type(p *pager.Page) byte { return p[offType] }

func NumKeys(p *pager.Page) int {
	return int(binary.LittleEndian.Uint16(p[offNumKeys : offNumKeys+2]))
}

func SetNumKeys(p *pager.Page, n int) {
	binary.LittleEndian.PutUint16(p[offNumKeys:offNumKeys+2], uint16(n))
}

// InitLeaf zeroes the page and stamps it as an empty leaf with no successor.
func InitLeaf(p *pager.Page) {
	for i := range p {
		p[i] = 0
	}
	p[offType] = TypeLeaf
	SetNextLeaf(p, InvalidPage)
}

// InitInternal zeroes the page and stamps it as an empty internal node.
func InitInternal(p *pager.Page) {
	for i := range p {
		p[i] = 0
	}
	p[offType] = TypeInternal
}

// ─── Leaf accessors ───────────────────────────────────────────────────────────

func NextLeaf(p *pager.Page) uint32 {
	return binary.LittleEndian.Uint32(p[offNextLeaf : offNextLeaf+4])
}

func SetNextLeaf(p *pager.Page, id uint32) {
	binary.LittleEndian.PutUint32(p[offNextLeaf:offNextLeaf+4], id)
}

func LeafKey(p *pager.Page, i int) int32 {
	o := offLeafKeys + i*4
	return int32(binary.LittleEndian.Uint32(p[o : o+4]))
}

func SetLeafKey(p *pager.Page, i int, key int32) {
	o := offLeafKeys + i*4
	binary.LittleEndian.PutUint32(p[o:o+4], uint32(key))
}

// LeafValue returns the value slot i as a slice aliasing the page buffer.
func LeafValue(p *pager.Page, i int) []byte {
	o := offLeafValues + i*ValueSize
	return p[o : o+ValueSize]
}

// SetLeafValue copies v into slot i, zero-padding to ValueSize. Bytes past
// ValueSize are dropped.
func SetLeafValue(p *pager.Page, i int, v []byte) {
	o := offLeafValues + i*ValueSize
	n := copy(p[o:o+ValueSize], v)
	for ; n < ValueSize; n++ {
		p[o+n] = 0
	}
}

// ─── Internal accessors ───────────────────────────────────────────────────────

func Key(p *pager.Page, i int) int32 {
	o := offIntKeys + i*4
	return int32(binary.LittleEndian.Uint32(p[o : o+4]))
}

func SetKey(p *pager.Page, i int, key int32) {
	o := offIntKeys + i*4
	binary.LittleEndian.PutUint32(p[o:o+4], uint32(key))
}

func Child(p *pager.Page, i int) uint32 {
	o := offIntChildren + i*4
	return binary.LittleEndian.Uint32(p[o : o+4])
}

func SetChild(p *pager.Page, i int, id uint32) {
	o := offIntChildren + i*4
	binary.LittleEndian.PutUint32(p[o:o+4], id)
}
