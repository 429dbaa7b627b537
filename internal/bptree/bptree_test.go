package bptree

import (
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/sanpoyur-dust/bplus-tree/internal/idxerr"
	"github.com/sanpoyur-dust/bplus-tree/internal/rid"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "students.4")
	idx, err := Open(path, "students", 4, AttrTypeInteger, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func ridFor(key int32) rid.RID {
	return rid.RID{PageNum: rid.PageID(key), SlotNum: uint16(key % 7), Tag: 1}
}

func TestInsertAscendingThenFullScan(t *testing.T) {
	idx := openTestIndex(t)
	const n = 1000
	for k := int32(0); k < n; k++ {
		if err := idx.Insert(k, ridFor(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if got := idx.PinnedPageCount(); got != 0 {
		t.Fatalf("PinnedPageCount after inserts = %d, want 0", got)
	}

	if err := idx.StartScan(0, OpGTE, n-1, OpLTE); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	for k := int32(0); k < n; k++ {
		got, err := idx.NextScan()
		if err != nil {
			t.Fatalf("NextScan at key %d: %v", k, err)
		}
		if got != ridFor(k) {
			t.Fatalf("NextScan at key %d = %+v, want %+v", k, got, ridFor(k))
		}
	}
	if _, err := idx.NextScan(); !idxerr.Is(err, idxerr.ScanCompleted) {
		t.Fatalf("NextScan after exhaustion = %v, want ScanCompleted", err)
	}
	if err := idx.EndScan(); err != nil {
		t.Fatalf("EndScan after completion: %v", err)
	}
	if got := idx.PinnedPageCount(); got != 0 {
		t.Fatalf("PinnedPageCount after scan = %d, want 0", got)
	}
}

func TestInsertDescendingThenRangeScan(t *testing.T) {
	idx := openTestIndex(t)
	const n = 500
	for k := int32(n - 1); k >= 0; k-- {
		if err := idx.Insert(k, ridFor(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	if err := idx.StartScan(100, OpGT, 110, OpLTE); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	want := []int32{101, 102, 103, 104, 105, 106, 107, 108, 109, 110}
	for _, k := range want {
		got, err := idx.NextScan()
		if err != nil {
			t.Fatalf("NextScan at key %d: %v", k, err)
		}
		if got != ridFor(k) {
			t.Fatalf("NextScan = %+v, want %+v", got, ridFor(k))
		}
	}
	if _, err := idx.NextScan(); !idxerr.Is(err, idxerr.ScanCompleted) {
		t.Fatalf("NextScan past range end = %v, want ScanCompleted", err)
	}
}

func TestInsertRandomOrderThenScanAll(t *testing.T) {
	idx := openTestIndex(t)
	const n = 800
	keys := make([]int32, n)
	for i := range keys {
		keys[i] = int32(i)
	}
	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(n, func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	for _, k := range keys {
		if err := idx.Insert(k, ridFor(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	if err := idx.StartScan(0, OpGTE, n-1, OpLTE); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	for k := int32(0); k < n; k++ {
		got, err := idx.NextScan()
		if err != nil {
			t.Fatalf("NextScan at ordinal %d: %v", k, err)
		}
		if got != ridFor(k) {
			t.Fatalf("scan out of order at ordinal %d: got %+v, want %+v", k, got, ridFor(k))
		}
	}
}

func TestExactlyFullLeafSplitsExactlyOnce(t *testing.T) {
	idx := openTestIndex(t)
	for k := int32(0); k < LeafCap; k++ {
		if err := idx.Insert(k*2, ridFor(k)); err != nil {
			t.Fatalf("Insert #%d: %v", k, err)
		}
	}
	stats, err := idx.Inspect()
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if stats.LeafNodes != 1 {
		t.Fatalf("after LEAF_CAP inserts, LeafNodes = %d, want 1", stats.LeafNodes)
	}

	if err := idx.Insert(int32(LeafCap)*2+1, ridFor(int32(LeafCap))); err != nil {
		t.Fatalf("Insert that overflows the leaf: %v", err)
	}
	stats, err = idx.Inspect()
	if err != nil {
		t.Fatalf("Inspect after overflow: %v", err)
	}
	if stats.LeafNodes != 2 {
		t.Fatalf("after LEAF_CAP+1 inserts, LeafNodes = %d, want 2", stats.LeafNodes)
	}
	if stats.TotalKeys != LeafCap+1 {
		t.Fatalf("TotalKeys = %d, want %d", stats.TotalKeys, LeafCap+1)
	}
}

func TestStartScanRejectsBadOpcodes(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Insert(1, ridFor(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := idx.StartScan(0, OpLT, 10, OpLTE); !idxerr.Is(err, idxerr.BadOpcodes) {
		t.Fatalf("StartScan with lo_op=LT = %v, want BadOpcodes", err)
	}
	if err := idx.StartScan(0, OpGTE, 10, OpGT); !idxerr.Is(err, idxerr.BadOpcodes) {
		t.Fatalf("StartScan with hi_op=GT = %v, want BadOpcodes", err)
	}
}

func TestStartScanRejectsBadRange(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.StartScan(10, OpGTE, 5, OpLTE); !idxerr.Is(err, idxerr.BadScanRange) {
		t.Fatalf("StartScan with lo>hi = %v, want BadScanRange", err)
	}
}

func TestStartScanOnEmptyTreeReturnsNoSuchKey(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.StartScan(0, OpGTE, 100, OpLTE); !idxerr.Is(err, idxerr.NoSuchKey) {
		t.Fatalf("StartScan on an empty tree = %v, want NoSuchKey", err)
	}
}

func TestStartScanRangeWithNoMatchesReturnsNoSuchKey(t *testing.T) {
	idx := openTestIndex(t)
	for _, k := range []int32{0, 1, 2, 100, 101} {
		if err := idx.Insert(k, ridFor(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if err := idx.StartScan(10, OpGTE, 20, OpLTE); !idxerr.Is(err, idxerr.NoSuchKey) {
		t.Fatalf("StartScan over a gap = %v, want NoSuchKey", err)
	}
}

func TestNextScanAndEndScanWithoutStartFail(t *testing.T) {
	idx := openTestIndex(t)
	if _, err := idx.NextScan(); !idxerr.Is(err, idxerr.ScanNotInitialized) {
		t.Fatalf("NextScan before StartScan = %v, want ScanNotInitialized", err)
	}
	if err := idx.EndScan(); !idxerr.Is(err, idxerr.ScanNotInitialized) {
		t.Fatalf("EndScan before StartScan = %v, want ScanNotInitialized", err)
	}
}

func TestSecondStartScanImplicitlyEndsFirst(t *testing.T) {
	idx := openTestIndex(t)
	for k := int32(0); k < 50; k++ {
		if err := idx.Insert(k, ridFor(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if err := idx.StartScan(0, OpGTE, 49, OpLTE); err != nil {
		t.Fatalf("first StartScan: %v", err)
	}
	if _, err := idx.NextScan(); err != nil {
		t.Fatalf("NextScan on first scan: %v", err)
	}

	if err := idx.StartScan(10, OpGTE, 20, OpLTE); err != nil {
		t.Fatalf("second StartScan: %v", err)
	}
	if got := idx.PinnedPageCount(); got != 1 {
		t.Fatalf("PinnedPageCount after implicit re-scan = %d, want 1", got)
	}
	got, err := idx.NextScan()
	if err != nil {
		t.Fatalf("NextScan on second scan: %v", err)
	}
	if got != ridFor(10) {
		t.Fatalf("first entry of second scan = %+v, want %+v", got, ridFor(10))
	}
}

func TestReopenWithMismatchedMetadataFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.4")
	idx, err := Open(path, "students", 4, AttrTypeInteger, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := idx.Insert(1, ridFor(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := Open(path, "students", 8, AttrTypeInteger, nil); !idxerr.Is(err, idxerr.BadIndexInfo) {
		t.Fatalf("reopen with a different attr offset = %v, want BadIndexInfo", err)
	}

	reopened, err := Open(path, "students", 4, AttrTypeInteger, nil)
	if err != nil {
		t.Fatalf("reopen with matching metadata: %v", err)
	}
	defer reopened.Close()
	if err := reopened.StartScan(1, OpGTE, 1, OpLTE); err != nil {
		t.Fatalf("StartScan after reopen: %v", err)
	}
	got, err := reopened.NextScan()
	if err != nil {
		t.Fatalf("NextScan after reopen: %v", err)
	}
	if got != ridFor(1) {
		t.Fatalf("persisted entry = %+v, want %+v", got, ridFor(1))
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.4")
	idx, err := Open(path, "students", 4, AttrTypeInteger, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestCloseEndsAnActiveScan(t *testing.T) {
	idx := openTestIndex(t)
	for k := int32(0); k < 10; k++ {
		if err := idx.Insert(k, ridFor(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if err := idx.StartScan(0, OpGTE, 9, OpLTE); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close with an active scan: %v", err)
	}
}

func TestExtractKeyRejectsOutOfRangeOffset(t *testing.T) {
	if _, err := extractKey([]byte{1, 2, 3}, 0); err == nil {
		t.Fatalf("extractKey on a too-short record: expected an error")
	}
	if _, err := extractKey([]byte{1, 2, 3}, -1); err == nil {
		t.Fatalf("extractKey with a negative offset: expected an error")
	}
}

func TestLocateChildFallsBackToLastChildPastLastSeparator(t *testing.T) {
	idx := openTestIndex(t)
	for k := int32(0); k < int32(NodeCap*3); k++ {
		if err := idx.Insert(k, ridFor(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if err := idx.Insert(int32(NodeCap*3)+1000, ridFor(999)); err != nil {
		t.Fatalf("Insert past the last separator: %v", err)
	}
	if err := idx.StartScan(int32(NodeCap*3)+1000, OpGTE, int32(NodeCap*3)+1000, OpLTE); err != nil {
		t.Fatalf("StartScan for the newly inserted max key: %v", err)
	}
	got, err := idx.NextScan()
	if err != nil {
		t.Fatalf("NextScan: %v", err)
	}
	if got != ridFor(999) {
		t.Fatalf("got %+v, want %+v", got, ridFor(999))
	}
}

func TestNextScanErrorAfterScanCompletedKindIsDistinguishable(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Insert(1, ridFor(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := idx.StartScan(1, OpGTE, 1, OpLTE); err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	if _, err := idx.NextScan(); err != nil {
		t.Fatalf("NextScan: %v", err)
	}
	_, err := idx.NextScan()
	var kindErr *idxerr.Error
	if !errors.As(err, &kindErr) || kindErr.Kind != idxerr.ScanCompleted {
		t.Fatalf("NextScan past the last entry = %v, want a ScanCompleted idxerr.Error", err)
	}
}
