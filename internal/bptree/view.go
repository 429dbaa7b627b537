package bptree

import (
	"bytes"
	"encoding/binary"

	"github.com/sanpoyur-dust/bplus-tree/internal/page"
	"github.com/sanpoyur-dust/bplus-tree/internal/rid"
)

// headerView is a typed accessor over the index's header page (page 0):
// relation name, indexed attribute's byte offset and type, and the current
// root page id.
type headerView struct{ pg *page.Page }

func (h headerView) relationName() string {
	raw := h.pg.Data[hdrOffRelName : hdrOffRelName+hdrRelNameLen]
	n := bytes.IndexByte(raw, 0)
	if n < 0 {
		n = len(raw)
	}
	return string(raw[:n])
}

// setRelationName zero-pads or silently truncates to hdrRelNameLen bytes —
// the header page has no room for anything longer.
//
// Known limitation: two relations whose names share a 20-byte prefix are
// indistinguishable on disk, so opening one relation's index under the
// other's name passes validateHeader's relationName() comparison and does
// not raise BAD_INDEX_INFO. This is accepted behavior, not a bug to patch.
func (h headerView) setRelationName(name string) {
	buf := h.pg.Data[hdrOffRelName : hdrOffRelName+hdrRelNameLen]
	for i := range buf {
		buf[i] = 0
	}
	copy(buf, name)
}

func (h headerView) attrOffset() int32 {
	return int32(binary.LittleEndian.Uint32(h.pg.Data[hdrOffAttrOffset:]))
}
func (h headerView) setAttrOffset(v int32) {
	binary.LittleEndian.PutUint32(h.pg.Data[hdrOffAttrOffset:], uint32(v))
}

func (h headerView) attrType() int32 {
	return int32(binary.LittleEndian.Uint32(h.pg.Data[hdrOffAttrType:]))
}
func (h headerView) setAttrType(v int32) {
	binary.LittleEndian.PutUint32(h.pg.Data[hdrOffAttrType:], uint32(v))
}

func (h headerView) rootPageID() page.ID {
	return page.ID(binary.LittleEndian.Uint32(h.pg.Data[hdrOffRootPage:]))
}
func (h headerView) setRootPageID(id page.ID) {
	binary.LittleEndian.PutUint32(h.pg.Data[hdrOffRootPage:], uint32(id))
}

// internalView is a typed accessor over an internal node page: level, the
// NODE_CAP key array, and the NODE_CAP+1 child id array. Both arrays are
// left-packed; validity is derived from the child array's sentinel, never
// stored as an explicit count (there is no room for one in the layout).
type internalView struct{ pg *page.Page }

func (iv internalView) level() int32 {
	return int32(binary.LittleEndian.Uint32(iv.pg.Data[intOffLevel:]))
}
func (iv internalView) setLevel(l int32) {
	binary.LittleEndian.PutUint32(iv.pg.Data[intOffLevel:], uint32(l))
}

func (iv internalView) key(i int) int32 {
	off := intOffKeys + i*4
	return int32(binary.LittleEndian.Uint32(iv.pg.Data[off:]))
}
func (iv internalView) setKey(i int, k int32) {
	off := intOffKeys + i*4
	binary.LittleEndian.PutUint32(iv.pg.Data[off:], uint32(k))
}

func (iv internalView) child(i int) page.ID {
	off := intOffChildren + i*4
	return page.ID(binary.LittleEndian.Uint32(iv.pg.Data[off:]))
}
func (iv internalView) setChild(i int, id page.ID) {
	off := intOffChildren + i*4
	binary.LittleEndian.PutUint32(iv.pg.Data[off:], uint32(id))
}

// numChildren scans for the first sentinel child slot starting at index 1
// (child 0 is always valid: every internal node has at least one child).
func (iv internalView) numChildren() int {
	for i := 1; i <= NodeCap; i++ {
		if iv.child(i) == page.Invalid {
			return i
		}
	}
	return NodeCap + 1
}

func (iv internalView) keyCount() int { return iv.numChildren() - 1 }

func (iv internalView) clear() {
	for i := 0; i < NodeCap; i++ {
		iv.setKey(i, 0)
	}
	for i := 0; i <= NodeCap; i++ {
		iv.setChild(i, page.Invalid)
	}
	iv.setLevel(0)
}

// leafView is a typed accessor over a leaf node page: the LEAF_CAP key and
// RID arrays (left-packed, validity derived from the RID sentinel) and the
// right-sibling page id.
type leafView struct{ pg *page.Page }

func (lv leafView) key(i int) int32 {
	off := leafOffKeys + i*4
	return int32(binary.LittleEndian.Uint32(lv.pg.Data[off:]))
}
func (lv leafView) setKey(i int, k int32) {
	off := leafOffKeys + i*4
	binary.LittleEndian.PutUint32(lv.pg.Data[off:], uint32(k))
}

func (lv leafView) rid(i int) rid.RID {
	off := leafOffRIDs + i*ridSize
	d := lv.pg.Data
	return rid.RID{
		PageNum: rid.PageID(binary.LittleEndian.Uint32(d[off:])),
		SlotNum: binary.LittleEndian.Uint16(d[off+4:]),
		Tag:     binary.LittleEndian.Uint16(d[off+6:]),
	}
}
func (lv leafView) setRID(i int, r rid.RID) {
	off := leafOffRIDs + i*ridSize
	d := lv.pg.Data
	binary.LittleEndian.PutUint32(d[off:], uint32(r.PageNum))
	binary.LittleEndian.PutUint16(d[off+4:], r.SlotNum)
	binary.LittleEndian.PutUint16(d[off+6:], r.Tag)
}

func (lv leafView) rightSibling() page.ID {
	return page.ID(binary.LittleEndian.Uint32(lv.pg.Data[leafOffRightSibling:]))
}
func (lv leafView) setRightSibling(id page.ID) {
	binary.LittleEndian.PutUint32(lv.pg.Data[leafOffRightSibling:], uint32(id))
}

func (lv leafView) count() int {
	for i := 0; i < LeafCap; i++ {
		if lv.rid(i).PageNum == rid.InvalidPage {
			return i
		}
	}
	return LeafCap
}

func (lv leafView) clear() {
	for i := 0; i < LeafCap; i++ {
		lv.setKey(i, 0)
		lv.setRID(i, rid.Zero)
	}
	lv.setRightSibling(page.Invalid)
}
