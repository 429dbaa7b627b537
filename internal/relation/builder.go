package relation

import (
	"fmt"

	"github.com/sanpoyur-dust/bplus-tree/internal/diskfile"
	"github.com/sanpoyur-dust/bplus-tree/internal/page"
	"github.com/sanpoyur-dust/bplus-tree/internal/rid"
)

// Builder appends fixed records to a relation file, packing as many as fit
// per page before allocating the next one. It exists so tests (and, in
// principle, a loader tool) can produce a relation file shaped the way
// Scanner expects to read one; the relation itself is normally an
// external, pre-existing input to index construction.
type Builder struct {
	file   *diskfile.PagedFile
	pageID page.ID
	sp     *slottedPage
	data   []byte
}

// NewBuilder starts (or resumes) appending to file.
func NewBuilder(file *diskfile.PagedFile) (*Builder, error) {
	b := &Builder{file: file}
	if file.NumPages() == 0 {
		if err := b.allocatePage(); err != nil {
			return nil, err
		}
		return b, nil
	}
	id := page.ID(file.NumPages() - 1)
	data, err := file.ReadPageAt(id)
	if err != nil {
		return nil, fmt.Errorf("relation: builder resume: %w", err)
	}
	b.pageID = id
	b.data = data
	b.sp = newSlottedPage(b.data)
	return b, nil
}

func (b *Builder) allocatePage() error {
	id, err := b.file.Allocate()
	if err != nil {
		return fmt.Errorf("relation: builder allocate: %w", err)
	}
	data := make([]byte, page.Size)
	sp := newSlottedPage(data)
	sp.init()
	b.pageID = id
	b.data = data
	b.sp = sp
	return b.file.WritePageAt(id, data)
}

// Append writes record, allocating a new page first if the current one has
// no room, and returns the record's rid.
func (b *Builder) Append(record []byte) (rid.RID, error) {
	if b.sp.freeSpace() < len(record) {
		if err := b.flush(); err != nil {
			return rid.Zero, err
		}
		if err := b.allocatePage(); err != nil {
			return rid.Zero, err
		}
	}
	slotIdx := b.sp.append(record)
	if err := b.flush(); err != nil {
		return rid.Zero, err
	}
	return rid.RID{PageNum: rid.PageID(b.pageID), SlotNum: slotIdx}, nil
}

func (b *Builder) flush() error {
	return b.file.WritePageAt(b.pageID, b.data)
}

// Close syncs the underlying file. It does not release the file handle —
// callers that also read back through the same *diskfile.PagedFile keep
// ownership of Release.
func (b *Builder) Close() error {
	return b.file.Sync()
}
