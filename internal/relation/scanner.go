package relation

import (
	"fmt"
	"io"

	"github.com/sanpoyur-dust/bplus-tree/internal/diskfile"
	"github.com/sanpoyur-dust/bplus-tree/internal/page"
	"github.com/sanpoyur-dust/bplus-tree/internal/rid"
)

// Scanner produces the relation's records in page/slot order, one call at a
// time. It reads pages straight off a diskfile.PagedFile rather than
// through a buffer.Manager: bulk construction makes a single forward pass
// and never revisits a page, so there is nothing for a pin-discipline cache
// to buy here.
type Scanner struct {
	file    *diskfile.PagedFile
	pageID  page.ID
	slotIdx uint16
}

// NewScanner opens a forward scan over file starting at its first page.
func NewScanner(file *diskfile.PagedFile) *Scanner {
	return &Scanner{file: file, pageID: file.FirstPageID()}
}

// Next returns the next live record as (rid, bytes). It returns io.EOF once
// every page has been scanned, signaling end of input to the caller.
func (s *Scanner) Next() (rid.RID, []byte, error) {
	for {
		if int64(s.pageID) >= s.file.NumPages() {
			return rid.Zero, nil, io.EOF
		}

		data, err := s.file.ReadPageAt(s.pageID)
		if err != nil {
			return rid.Zero, nil, fmt.Errorf("relation: read page %d: %w", s.pageID, err)
		}
		sp := newSlottedPage(data)
		count := sp.slotCount()

		for s.slotIdx < count {
			idx := s.slotIdx
			s.slotIdx++
			if !sp.isSlotLive(idx) {
				continue
			}
			result := rid.RID{PageNum: rid.PageID(s.pageID), SlotNum: idx}
			return result, sp.record(idx), nil
		}

		s.pageID++
		s.slotIdx = 0
	}
}
