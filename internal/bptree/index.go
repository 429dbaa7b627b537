package bptree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sanpoyur-dust/bplus-tree/internal/buffer"
	"github.com/sanpoyur-dust/bplus-tree/internal/diskfile"
	"github.com/sanpoyur-dust/bplus-tree/internal/idxerr"
	"github.com/sanpoyur-dust/bplus-tree/internal/page"
	"github.com/sanpoyur-dust/bplus-tree/internal/relation"
)

// AttrType enumerates the datatypes an indexed attribute can declare.
// INTEGER is the only one the tree's 32-bit integer key type supports; it
// exists as a named constant so a reopened index's metadata check has
// something other than a bare literal to compare against.
type AttrType int32

const AttrTypeInteger AttrType = 1

// defaultWarmCapacity bounds how many unpinned pages the buffer manager
// keeps warm before evicting. It is not part of the persisted format —
// only how much RAM one open Index is willing to spend.
const defaultWarmCapacity = 256

// Index is one secondary index bound to exactly one open file. It owns the
// file's buffer manager and tracks the root page id and the single scan
// that may be active at a time.
type Index struct {
	buf  *buffer.Manager
	file *diskfile.PagedFile

	relationName   string
	attrByteOffset int32
	attrType       int32

	rootID page.ID
	scan   scanState
	closed bool
}

// IndexFileName derives the canonical on-disk name for an index over
// relationName's attribute at attrByteOffset: "<relation>.<offset>".
func IndexFileName(relationName string, attrByteOffset int32) string {
	return fmt.Sprintf("%s.%d", relationName, attrByteOffset)
}

// Open binds an Index to indexPath, creating and bulk-building it from
// scanner if no file exists there yet, or validating it against the given
// metadata if one does. scanner may be nil when opening an index expected
// to already exist, or when building one up entirely through Insert calls.
func Open(indexPath string, relationName string, attrByteOffset int32, attrType AttrType, scanner *relation.Scanner) (*Index, error) {
	isNew := !diskfile.Exists(indexPath)

	var pf *diskfile.PagedFile
	var err error
	if isNew {
		pf, err = diskfile.Create(indexPath)
	} else {
		pf, err = diskfile.Open(indexPath)
	}
	if err != nil {
		return nil, err
	}

	buf, err := buffer.NewManager(pf, defaultWarmCapacity)
	if err != nil {
		_ = pf.Release()
		return nil, err
	}

	idx := &Index{
		buf:            buf,
		file:           pf,
		relationName:   relationName,
		attrByteOffset: attrByteOffset,
		attrType:       int32(attrType),
	}

	if !isNew {
		if err := idx.validateHeader(); err != nil {
			_ = idx.Close()
			return nil, err
		}
		return idx, nil
	}

	if err := idx.initializeNew(); err != nil {
		_ = idx.Close()
		return nil, err
	}
	if scanner != nil {
		if err := idx.bulkBuild(scanner); err != nil {
			_ = idx.Close()
			return nil, err
		}
	}
	if err := idx.buf.FlushAll(); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return idx, nil
}

// OpenRelationIndex derives the index file's name and path under dir from
// relationName and attrByteOffset, then opens it as Open would.
func OpenRelationIndex(dir, relationName string, attrByteOffset int32, attrType AttrType, scanner *relation.Scanner) (idx *Index, fileName string, err error) {
	fileName = IndexFileName(relationName, attrByteOffset)
	idx, err = Open(filepath.Join(dir, fileName), relationName, attrByteOffset, attrType, scanner)
	return idx, fileName, err
}

// initializeNew stamps a brand-new index file: header page 0, an empty
// leaf, and a root internal node at level 1 pointing at that one leaf.
func (idx *Index) initializeNew() error {
	hdrPg, err := idx.buf.PinAlloc()
	if err != nil {
		return err
	}
	if hdrPg.ID != idx.file.FirstPageID() {
		_ = idx.buf.Unpin(hdrPg.ID, false)
		return fmt.Errorf("bptree: expected header page %d, got %d", idx.file.FirstPageID(), hdrPg.ID)
	}

	leafPg, err := idx.buf.PinAlloc()
	if err != nil {
		_ = idx.buf.Unpin(hdrPg.ID, false)
		return err
	}
	lv := leafView{leafPg}
	lv.clear()
	if err := idx.buf.Unpin(leafPg.ID, true); err != nil {
		return err
	}

	rootPg, err := idx.buf.PinAlloc()
	if err != nil {
		return err
	}
	iv := internalView{rootPg}
	iv.clear()
	iv.setLevel(1)
	iv.setChild(0, leafPg.ID)
	if err := idx.buf.Unpin(rootPg.ID, true); err != nil {
		return err
	}
	idx.rootID = rootPg.ID

	hv := headerView{hdrPg}
	hv.setRelationName(idx.relationName)
	hv.setAttrOffset(idx.attrByteOffset)
	hv.setAttrType(idx.attrType)
	hv.setRootPageID(idx.rootID)
	return idx.buf.Unpin(hdrPg.ID, true)
}

// validateHeader loads an existing index's header and checks it against
// the metadata this Open call was given, per idxerr.BadIndexInfo.
func (idx *Index) validateHeader() error {
	hdrPg, err := idx.buf.PinRead(idx.file.FirstPageID())
	if err != nil {
		return err
	}
	hv := headerView{hdrPg}

	wantName := idx.relationName
	if len(wantName) > hdrRelNameLen {
		wantName = wantName[:hdrRelNameLen]
	}

	if hv.relationName() != wantName || hv.attrOffset() != idx.attrByteOffset || hv.attrType() != idx.attrType {
		_ = idx.buf.Unpin(hdrPg.ID, false)
		return idxerr.New(idxerr.BadIndexInfo, "existing index metadata does not match the requested relation/attribute/type")
	}
	idx.rootID = hv.rootPageID()
	return idx.buf.Unpin(hdrPg.ID, false)
}

// bulkBuild drains scanner, inserting one (key, rid) pair per record.
func (idx *Index) bulkBuild(scanner *relation.Scanner) error {
	for {
		recID, record, err := scanner.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		key, err := extractKey(record, idx.attrByteOffset)
		if err != nil {
			return err
		}
		if err := idx.Insert(key, recID); err != nil {
			return err
		}
	}
}

func extractKey(record []byte, offset int32) (int32, error) {
	if offset < 0 || int(offset)+4 > len(record) {
		return 0, fmt.Errorf("bptree: attribute offset %d out of range for a %d-byte record", offset, len(record))
	}
	return int32(binary.LittleEndian.Uint32(record[offset:])), nil
}

// writeRootToHeader mirrors a root change into the header page and flushes
// that page immediately rather than waiting for the next FlushAll: it is
// the single page a crash between here and Close could leave pointing at a
// stale root, so it does not get to ride along in the warm cache.
func (idx *Index) writeRootToHeader() error {
	hdrID := idx.file.FirstPageID()
	hdrPg, err := idx.buf.PinRead(hdrID)
	if err != nil {
		return err
	}
	headerView{hdrPg}.setRootPageID(idx.rootID)
	if err := idx.buf.Unpin(hdrPg.ID, true); err != nil {
		return err
	}
	return idx.buf.Flush(hdrID)
}

// PinnedPageCount reports how many pages the underlying buffer manager
// currently has pinned. Exercised by tests that assert an Insert or scan
// call leaves nothing pinned behind.
func (idx *Index) PinnedPageCount() int {
	return idx.buf.PinnedCount()
}

// Close ends any active scan, flushes every dirty page, and releases the
// underlying file. Idempotent.
func (idx *Index) Close() error {
	if idx.closed {
		return nil
	}
	if idx.scan.phase != phaseIdle {
		_ = idx.EndScan()
	}
	err := idx.buf.Close()
	idx.closed = true
	return err
}
