package bptree

import (
	"github.com/sanpoyur-dust/bplus-tree/internal/idxerr"
	"github.com/sanpoyur-dust/bplus-tree/internal/page"
	"github.com/sanpoyur-dust/bplus-tree/internal/rid"
)

type scanPhase int

const (
	phaseIdle scanPhase = iota
	phaseScanning
	phaseCompleted
)

// scanState holds the one bounded-range scan an Index may have active at a
// time. While phaseScanning, curLeaf is pinned and curLeaf/curLeafID/
// nextEntry together name the next entry NextScan will emit.
type scanState struct {
	phase scanPhase

	lo, hi     int32
	loOp, hiOp Op

	curLeafID page.ID
	curLeaf   *page.Page
	nextEntry int
}

// findLeaf descends from the root choosing children via locateChild(v, op)
// at each step, unpinning each internal page before pinning the next, and
// returns the landed-on leaf's id with zero pages left pinned. It is used
// only to seed a scan; Insert's own descent keeps pins held for split
// propagation instead.
func (idx *Index) findLeaf(v int32, op Op) (page.ID, error) {
	curID := idx.rootID
	for {
		pg, err := idx.buf.PinRead(curID)
		if err != nil {
			return page.Invalid, err
		}
		iv := internalView{pg}
		nextID := locateChild(iv, v, op)
		atLeafLevel := iv.level() == 1
		if err := idx.buf.Unpin(curID, false); err != nil {
			return page.Invalid, err
		}
		if nextID == page.Invalid {
			return page.Invalid, nil
		}
		if atLeafLevel {
			return nextID, nil
		}
		curID = nextID
	}
}

// StartScan begins a bounded-range scan over (lo loOp key) AND (key hiOp
// hi). It implicitly ends whatever scan was already active once the
// opcodes and range pass validation. idxerr.BadOpcodes and
// idxerr.BadScanRange are returned before that, leaving an already-active
// scan as it was; idxerr.NoSuchKey (no key in the tree satisfies the
// range, including an empty tree) is returned with no scan active.
func (idx *Index) StartScan(lo int32, loOp Op, hi int32, hiOp Op) error {
	if !validLoOp(loOp) || !validHiOp(hiOp) {
		return idxerr.New(idxerr.BadOpcodes, "lo_op must be GT/GTE and hi_op must be LT/LTE")
	}
	if lo > hi {
		return idxerr.New(idxerr.BadScanRange, "lo must not exceed hi")
	}
	if idx.scan.phase == phaseScanning {
		if err := idx.buf.Unpin(idx.scan.curLeafID, false); err != nil {
			return err
		}
	}
	idx.scan = scanState{phase: phaseScanning, lo: lo, loOp: loOp, hi: hi, hiOp: hiOp}

	leafID, err := idx.findLeaf(lo, loOp)
	if err != nil {
		idx.scan = scanState{}
		return err
	}
	if leafID == page.Invalid {
		idx.scan = scanState{}
		return idxerr.New(idxerr.NoSuchKey, "no key satisfies the scan range")
	}

	pg, err := idx.buf.PinRead(leafID)
	if err != nil {
		idx.scan = scanState{}
		return err
	}
	idx.scan.curLeafID = leafID
	idx.scan.curLeaf = pg
	idx.scan.nextEntry = -1

	found, err := idx.advance()
	if err != nil {
		idx.scan = scanState{}
		return err
	}
	if !found {
		idx.scan = scanState{}
		return idxerr.New(idxerr.NoSuchKey, "no key satisfies the scan range")
	}
	return nil
}

// NextScan emits the rid at the scan's current position, then advances.
// idxerr.ScanNotInitialized if no scan is active; idxerr.ScanCompleted if
// this scan already ran past its upper bound.
func (idx *Index) NextScan() (rid.RID, error) {
	switch idx.scan.phase {
	case phaseIdle:
		return rid.Zero, idxerr.New(idxerr.ScanNotInitialized, "no active scan")
	case phaseCompleted:
		return rid.Zero, idxerr.New(idxerr.ScanCompleted, "scan already exhausted")
	}

	lv := leafView{idx.scan.curLeaf}
	result := lv.rid(idx.scan.nextEntry)

	found, err := idx.advance()
	if err != nil {
		_ = idx.buf.Unpin(idx.scan.curLeafID, false)
		idx.scan = scanState{}
		return rid.Zero, err
	}
	if !found {
		idx.scan.phase = phaseCompleted
		idx.scan.curLeaf = nil
	}
	return result, nil
}

// EndScan releases the scan's pinned leaf, if any, and returns the index to
// Idle. idxerr.ScanNotInitialized if no scan was ever started or it was
// already ended.
func (idx *Index) EndScan() error {
	switch idx.scan.phase {
	case phaseIdle:
		return idxerr.New(idxerr.ScanNotInitialized, "no active scan")
	case phaseScanning:
		if err := idx.buf.Unpin(idx.scan.curLeafID, false); err != nil {
			return err
		}
	}
	idx.scan = scanState{}
	return nil
}

// advance moves the scan to its next in-range entry, crossing leaf
// siblings as needed. It returns false once the upper bound is passed or
// the rightmost leaf's sibling chain ends, unpinning the current leaf
// before either kind of exhaustion — a scan that reports exhaustion never
// leaves a page pinned.
func (idx *Index) advance() (bool, error) {
	s := &idx.scan
	for {
		s.nextEntry++
		lv := leafView{s.curLeaf}

		if s.nextEntry >= lv.count() {
			nextID := lv.rightSibling()
			if nextID == page.Invalid {
				if err := idx.buf.Unpin(s.curLeafID, false); err != nil {
					return false, err
				}
				s.curLeaf = nil
				return false, nil
			}
			if err := idx.buf.Unpin(s.curLeafID, false); err != nil {
				return false, err
			}
			pg, err := idx.buf.PinRead(nextID)
			if err != nil {
				return false, err
			}
			s.curLeafID = nextID
			s.curLeaf = pg
			s.nextEntry = -1
			continue
		}

		k := lv.key(s.nextEntry)
		if !s.loOp.compare(k, s.lo) {
			continue
		}
		if !s.hiOp.compare(k, s.hi) {
			if err := idx.buf.Unpin(s.curLeafID, false); err != nil {
				return false, err
			}
			s.curLeaf = nil
			return false, nil
		}
		return true, nil
	}
}
