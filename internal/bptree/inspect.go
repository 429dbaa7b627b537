package bptree

import (
	"fmt"
	"io"

	"github.com/sanpoyur-dust/bplus-tree/internal/page"
)

// Stats summarizes a tree's shape for cmd/inspectidx: depth, node counts,
// and key range, gathered with a single read-only BFS over internal nodes
// followed by one pass over the leaves they point at.
type Stats struct {
	RelationName   string
	AttrByteOffset int32
	Depth          int
	InternalNodes  int
	LeafNodes      int
	TotalKeys      int
	MinKey, MaxKey int32
	HasKeys        bool
}

// Inspect walks the whole tree and reports Stats, pinning and unpinning
// one page at a time.
func (idx *Index) Inspect() (Stats, error) {
	hdrPg, err := idx.buf.PinRead(idx.file.FirstPageID())
	if err != nil {
		return Stats{}, err
	}
	hv := headerView{hdrPg}
	stats := Stats{RelationName: hv.relationName(), AttrByteOffset: hv.attrOffset()}
	if err := idx.buf.Unpin(hdrPg.ID, false); err != nil {
		return Stats{}, err
	}

	level := []page.ID{idx.rootID}
	for {
		stats.Depth++
		var next []page.ID
		reachedLeaves := false
		for _, id := range level {
			pg, err := idx.buf.PinRead(id)
			if err != nil {
				return Stats{}, err
			}
			iv := internalView{pg}
			stats.InternalNodes++
			n := iv.numChildren()
			for i := 0; i < n; i++ {
				next = append(next, iv.child(i))
			}
			if iv.level() == 1 {
				reachedLeaves = true
			}
			if err := idx.buf.Unpin(id, false); err != nil {
				return Stats{}, err
			}
		}

		if !reachedLeaves {
			level = next
			continue
		}

		stats.Depth++
		for _, id := range next {
			pg, err := idx.buf.PinRead(id)
			if err != nil {
				return Stats{}, err
			}
			lv := leafView{pg}
			stats.LeafNodes++
			count := lv.count()
			stats.TotalKeys += count
			for i := 0; i < count; i++ {
				k := lv.key(i)
				if !stats.HasKeys || k < stats.MinKey {
					stats.MinKey = k
				}
				if !stats.HasKeys || k > stats.MaxKey {
					stats.MaxKey = k
				}
				stats.HasKeys = true
			}
			if err := idx.buf.Unpin(id, false); err != nil {
				return Stats{}, err
			}
		}
		break
	}
	return stats, nil
}

// Dump writes a breadth-first text dump of the tree to w: one line per
// internal node (keys and children) and one line per leaf (keys and
// right-sibling).
func (idx *Index) Dump(w io.Writer) error {
	fmt.Fprintf(w, "root page id = %d\n", idx.rootID)

	level := []page.ID{idx.rootID}
	depth := 0
	for len(level) > 0 {
		fmt.Fprintf(w, "level %d:\n", depth)
		var next []page.ID
		for _, id := range level {
			pg, err := idx.buf.PinRead(id)
			if err != nil {
				return err
			}
			iv := internalView{pg}
			n := iv.numChildren()
			keys := make([]int32, iv.keyCount())
			for i := range keys {
				keys[i] = iv.key(i)
			}
			children := make([]page.ID, n)
			for i := range children {
				children[i] = iv.child(i)
			}
			fmt.Fprintf(w, "  [page %d] INTERNAL level=%d keys=%v children=%v\n", id, iv.level(), keys, children)

			if iv.level() == 1 {
				for _, c := range children {
					lpg, err := idx.buf.PinRead(c)
					if err != nil {
						return err
					}
					lv := leafView{lpg}
					count := lv.count()
					keyList := make([]int32, count)
					for i := 0; i < count; i++ {
						keyList[i] = lv.key(i)
					}
					fmt.Fprintf(w, "    [leaf %d] keys=%v right_sibling=%d\n", c, keyList, lv.rightSibling())
					if err := idx.buf.Unpin(c, false); err != nil {
						return err
					}
				}
			} else {
				next = append(next, children...)
			}

			if err := idx.buf.Unpin(id, false); err != nil {
				return err
			}
		}
		level = next
		depth++
	}
	return nil
}
