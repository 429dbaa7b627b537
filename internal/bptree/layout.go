// Package bptree is the secondary-index engine itself: node layout, bulk
// construction, point insertion, and one bounded-range scan at a time. It
// never touches a page's bytes directly — every read or write goes through
// a *page.Page obtained from a buffer.Manager, so pin/unpin bookkeeping
// stays entirely in that package.
package bptree

import "github.com/sanpoyur-dust/bplus-tree/internal/page"

// Capacity derivation: an internal node stores one level word, NODE_CAP
// keys, and NODE_CAP+1 child ids; a leaf node stores LEAF_CAP keys,
// LEAF_CAP RIDs, and one right-sibling id. Both must fit in a single
// page.Size page with no slack left over, since the layout is bit-exact.
const (
	// NODE_CAP: 4 (level) + 4 (one child outside the loop) + NODE_CAP*(4+4) <= PageSize
	NodeCap = (page.Size - 8) / 8

	// LEAF_CAP: 4 (right_sibling) + LEAF_CAP*(4+8) <= PageSize
	LeafCap = (page.Size - 4) / 12

	ridSize = 8 // PageNum(4) + SlotNum(2) + Tag(2)

	headerPageID = page.ID(0)

	hdrRelNameLen    = 20
	hdrOffRelName    = 0
	hdrOffAttrOffset = hdrOffRelName + hdrRelNameLen // 20
	hdrOffAttrType   = hdrOffAttrOffset + 4          // 24
	hdrOffRootPage   = hdrOffAttrType + 4            // 28

	intOffLevel    = 0
	intOffKeys     = intOffLevel + 4           // 4
	intOffChildren = intOffKeys + NodeCap*4    // 4 + NodeCap*4

	leafOffKeys         = 0
	leafOffRIDs         = leafOffKeys + LeafCap*4     // LeafCap*4
	leafOffRightSibling = leafOffRIDs + LeafCap*ridSize
)

func ceilDiv(a, b int) int { return (a + b - 1) / b }
