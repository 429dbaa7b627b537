// Package relation implements a sequential scan over the relation a
// B+-tree index is bulk-built from. It is a slotted page reader/writer
// trimmed to what bulk index construction needs: no WAL LSN stamp, no
// free-space compaction, no catalog — just enough to produce (rid.RID,
// record) pairs in page order.
package relation

import "encoding/binary"

const (
	offRecordEndPtr    = 0 // uint16
	offSlotRegionStart = 2 // uint16
	offSlotCount       = 4 // uint16

	// headerSize is the fixed header length. Records start right after it on
	// a fresh page.
	headerSize = 6

	// slotSize is the byte size of one slot entry: Offset(2) + Length(2).
	slotSize = 4
)

// slottedPage is a read/write view over one relation page's raw bytes.
// Records grow forward from headerSize; the slot directory grows backward
// from the end of the page, mirroring the heap page layout this is
// grounded on.
type slottedPage struct {
	data []byte
}

func newSlottedPage(data []byte) *slottedPage {
	return &slottedPage{data: data}
}

func (p *slottedPage) init() {
	for i := range p.data {
		p.data[i] = 0
	}
	binary.LittleEndian.PutUint16(p.data[offRecordEndPtr:], headerSize)
	binary.LittleEndian.PutUint16(p.data[offSlotRegionStart:], uint16(len(p.data)))
	binary.LittleEndian.PutUint16(p.data[offSlotCount:], 0)
}

func (p *slottedPage) recordEndPtr() uint16 {
	return binary.LittleEndian.Uint16(p.data[offRecordEndPtr:])
}
func (p *slottedPage) setRecordEndPtr(v uint16) {
	binary.LittleEndian.PutUint16(p.data[offRecordEndPtr:], v)
}

func (p *slottedPage) slotRegionStart() uint16 {
	return binary.LittleEndian.Uint16(p.data[offSlotRegionStart:])
}
func (p *slottedPage) setSlotRegionStart(v uint16) {
	binary.LittleEndian.PutUint16(p.data[offSlotRegionStart:], v)
}

func (p *slottedPage) slotCount() uint16 {
	return binary.LittleEndian.Uint16(p.data[offSlotCount:])
}
func (p *slottedPage) setSlotCount(v uint16) {
	binary.LittleEndian.PutUint16(p.data[offSlotCount:], v)
}

// freeSpace is the bytes available for a new record, including the slot
// entry it would consume.
func (p *slottedPage) freeSpace() int {
	avail := int(p.slotRegionStart()) - int(p.recordEndPtr()) - slotSize
	if avail < 0 {
		return 0
	}
	return avail
}

func (p *slottedPage) slotByteOffset(i uint16) int {
	return len(p.data) - (int(i)+1)*slotSize
}

func (p *slottedPage) readSlot(i uint16) (offset, length uint16) {
	base := p.slotByteOffset(i)
	return binary.LittleEndian.Uint16(p.data[base:]),
		binary.LittleEndian.Uint16(p.data[base+2:])
}

func (p *slottedPage) writeSlot(i uint16, offset, length uint16) {
	base := p.slotByteOffset(i)
	binary.LittleEndian.PutUint16(p.data[base:], offset)
	binary.LittleEndian.PutUint16(p.data[base+2:], length)
}

// isSlotLive reports whether slot i holds a record rather than a tombstone.
func (p *slottedPage) isSlotLive(i uint16) bool {
	if i >= p.slotCount() {
		return false
	}
	offset, length := p.readSlot(i)
	return offset != 0 && length != 0
}

func (p *slottedPage) record(i uint16) []byte {
	offset, length := p.readSlot(i)
	out := make([]byte, length)
	copy(out, p.data[offset:offset+length])
	return out
}

// append writes data as a new record and returns its slot index. Callers
// must check freeSpace first; append does not itself look for a free page.
func (p *slottedPage) append(data []byte) uint16 {
	slotIdx := p.slotCount()
	off := p.recordEndPtr()
	copy(p.data[off:], data)
	p.setRecordEndPtr(off + uint16(len(data)))
	p.writeSlot(slotIdx, off, uint16(len(data)))
	p.setSlotRegionStart(p.slotRegionStart() - slotSize)
	p.setSlotCount(slotIdx + 1)
	return slotIdx
}
