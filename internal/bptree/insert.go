package bptree

import (
	"github.com/sanpoyur-dust/bplus-tree/internal/page"
	"github.com/sanpoyur-dust/bplus-tree/internal/rid"
)

// pushUp is what a split hands back to its caller: a newly allocated
// right-hand page and the key that separates it from what remains of the
// node that split.
type pushUp struct {
	pageID page.ID
	sepKey int32
}

// Insert adds one (key, rid) pair to the tree, splitting leaves and
// internal nodes and growing the root as needed. Every page touched along
// the descent is pinned on entry and unpinned before the call returns, on
// every path including errors — nothing survives an Insert call pinned.
func (idx *Index) Insert(key int32, v rid.RID) error {
	push, err := idx.insertInto(idx.rootID, key, v)
	if err != nil {
		return err
	}
	if push == nil {
		return nil
	}
	return idx.growRoot(push)
}

// insertInto pins node, descends one level (into a leaf if node.level==1,
// otherwise recursively into a child internal node), and folds any
// push-up the level below returns into node itself.
func (idx *Index) insertInto(nodeID page.ID, key int32, v rid.RID) (*pushUp, error) {
	nodePg, err := idx.buf.PinRead(nodeID)
	if err != nil {
		return nil, err
	}
	iv := internalView{nodePg}

	childID := locateChild(iv, key, OpGTE)
	if childID == page.Invalid {
		_ = idx.buf.Unpin(nodeID, false)
		return nil, idxerrInvariant("descent found no child for key")
	}

	var push *pushUp
	if iv.level() == 1 {
		leafPg, err := idx.buf.PinRead(childID)
		if err != nil {
			_ = idx.buf.Unpin(nodeID, false)
			return nil, err
		}
		push, err = idx.insertLeaf(leafView{leafPg}, key, v)
		if err != nil {
			_ = idx.buf.Unpin(nodeID, false)
			return nil, err
		}
	} else {
		push, err = idx.insertInto(childID, key, v)
		if err != nil {
			_ = idx.buf.Unpin(nodeID, false)
			return nil, err
		}
	}

	if push == nil {
		return nil, idx.buf.Unpin(nodeID, false)
	}
	return idx.insertPushUp(nodeID, iv, childID, push)
}

// insertLeaf inserts (key, v) into the leaf lv wraps, splitting it if full.
// It always unpins lv (and, on split, the newly allocated right leaf)
// before returning.
func (idx *Index) insertLeaf(lv leafView, key int32, v rid.RID) (*pushUp, error) {
	m := lv.count()
	pos := keyInsertPos(m, key, func(i int) int32 { return lv.key(i) })

	if m < LeafCap {
		for i := m; i > pos; i-- {
			lv.setKey(i, lv.key(i-1))
			lv.setRID(i, lv.rid(i-1))
		}
		lv.setKey(pos, key)
		lv.setRID(pos, v)
		return nil, idx.buf.Unpin(lv.pg.ID, true)
	}

	// Leaf is full: build the LEAF_CAP+1-entry sorted sequence that results
	// from inserting (key, v), then split it at mid. The right half is
	// copied up to the parent by its first key — not removed from it.
	combinedKeys := make([]int32, 0, LeafCap+1)
	combinedRIDs := make([]rid.RID, 0, LeafCap+1)
	for i := 0; i < LeafCap; i++ {
		if i == pos {
			combinedKeys = append(combinedKeys, key)
			combinedRIDs = append(combinedRIDs, v)
		}
		combinedKeys = append(combinedKeys, lv.key(i))
		combinedRIDs = append(combinedRIDs, lv.rid(i))
	}
	if pos == LeafCap {
		combinedKeys = append(combinedKeys, key)
		combinedRIDs = append(combinedRIDs, v)
	}

	mid := ceilDiv(LeafCap+1, 2)

	rightPg, err := idx.buf.PinAlloc()
	if err != nil {
		_ = idx.buf.Unpin(lv.pg.ID, false)
		return nil, err
	}
	rv := leafView{rightPg}
	rv.clear()

	oldSibling := lv.rightSibling()

	lv.clear()
	for i := 0; i < mid; i++ {
		lv.setKey(i, combinedKeys[i])
		lv.setRID(i, combinedRIDs[i])
	}
	lv.setRightSibling(rightPg.ID)

	for i := mid; i < len(combinedKeys); i++ {
		rv.setKey(i-mid, combinedKeys[i])
		rv.setRID(i-mid, combinedRIDs[i])
	}
	rv.setRightSibling(oldSibling)

	if err := idx.buf.Unpin(lv.pg.ID, true); err != nil {
		return nil, err
	}
	if err := idx.buf.Unpin(rightPg.ID, true); err != nil {
		return nil, err
	}
	return &pushUp{pageID: rightPg.ID, sepKey: combinedKeys[mid]}, nil
}

// insertPushUp folds a child's (pageID, sepKey) push-up into the internal
// node iv wraps (node nodeID, reached by descending into childID), splitting
// it if full. It always unpins nodeID (and, on split, the new right
// sibling) before returning.
func (idx *Index) insertPushUp(nodeID page.ID, iv internalView, childID page.ID, push *pushUp) (*pushUp, error) {
	m := iv.keyCount()
	pos := 0
	for pos < m && iv.child(pos) != childID {
		pos++
	}

	if m < NodeCap {
		for i := m; i > pos; i-- {
			iv.setKey(i, iv.key(i-1))
		}
		for i := m + 1; i > pos+1; i-- {
			iv.setChild(i, iv.child(i-1))
		}
		iv.setKey(pos, push.sepKey)
		iv.setChild(pos+1, push.pageID)
		return nil, idx.buf.Unpin(nodeID, true)
	}

	// Node is full: build the combined (m+1)-key / (m+2)-child sequence
	// that results from inserting (push.sepKey, push.pageID), split it at
	// mid, and push the median key itself up — it is removed from both
	// halves, unlike a leaf split's copy-up.
	combinedKeys := make([]int32, 0, m+1)
	for i := 0; i < m; i++ {
		if i == pos {
			combinedKeys = append(combinedKeys, push.sepKey)
		}
		combinedKeys = append(combinedKeys, iv.key(i))
	}
	if pos == m {
		combinedKeys = append(combinedKeys, push.sepKey)
	}

	combinedChildren := make([]page.ID, 0, m+2)
	for i := 0; i <= m; i++ {
		combinedChildren = append(combinedChildren, iv.child(i))
		if i == pos {
			combinedChildren = append(combinedChildren, push.pageID)
		}
	}

	mid := ceilDiv(m+1, 2)
	medianKey := combinedKeys[mid]
	level := iv.level()

	rightPg, err := idx.buf.PinAlloc()
	if err != nil {
		_ = idx.buf.Unpin(nodeID, false)
		return nil, err
	}
	riv := internalView{rightPg}
	riv.clear()
	riv.setLevel(level)
	for i := mid + 1; i < len(combinedKeys); i++ {
		riv.setKey(i-(mid+1), combinedKeys[i])
	}
	for i := mid + 1; i < len(combinedChildren); i++ {
		riv.setChild(i-(mid+1), combinedChildren[i])
	}

	iv.clear()
	iv.setLevel(level)
	for i := 0; i < mid; i++ {
		iv.setKey(i, combinedKeys[i])
	}
	for i := 0; i <= mid; i++ {
		iv.setChild(i, combinedChildren[i])
	}

	if err := idx.buf.Unpin(nodeID, true); err != nil {
		return nil, err
	}
	if err := idx.buf.Unpin(rightPg.ID, true); err != nil {
		return nil, err
	}
	return &pushUp{pageID: rightPg.ID, sepKey: medianKey}, nil
}

// growRoot is called once per Insert call, only when the top-level
// insertInto returns a push-up: the old root split, so a new root is
// allocated above it. The new root's children are always internal-kind
// nodes (the old root and its new sibling, whatever their own level), so
// its own level is always 0.
func (idx *Index) growRoot(push *pushUp) error {
	oldRootID := idx.rootID

	newRootPg, err := idx.buf.PinAlloc()
	if err != nil {
		return err
	}
	niv := internalView{newRootPg}
	niv.clear()
	niv.setLevel(0)
	niv.setChild(0, oldRootID)
	niv.setKey(0, push.sepKey)
	niv.setChild(1, push.pageID)

	if err := idx.buf.Unpin(newRootPg.ID, true); err != nil {
		return err
	}

	idx.rootID = newRootPg.ID
	return idx.writeRootToHeader()
}

// keyInsertPos returns the first index in [0, m) whose key exceeds k, or m
// if none does — the position a new entry with key k is inserted at,
// placing it after any existing entries with an equal key.
func keyInsertPos(m int, k int32, keyAt func(int) int32) int {
	pos := 0
	for pos < m && keyAt(pos) <= k {
		pos++
	}
	return pos
}

func idxerrInvariant(msg string) error {
	return &invariantViolation{msg: msg}
}

// invariantViolation marks a condition the descent/split algorithms should
// make structurally unreachable; seeing one means the on-disk tree itself
// is malformed, not a normal operational error.
type invariantViolation struct{ msg string }

func (e *invariantViolation) Error() string { return "bptree: invariant violation: " + e.msg }
