package diskfile

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sanpoyur-dust/bplus-tree/internal/page"
)

func TestCreateAllocateReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.idx")

	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Release()

	id, err := f.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if id != f.FirstPageID() {
		t.Errorf("first allocated page = %d, want %d", id, f.FirstPageID())
	}

	data := make([]byte, page.Size)
	copy(data, []byte("hello paged file"))
	if err := f.WritePageAt(id, data); err != nil {
		t.Fatalf("WritePageAt: %v", err)
	}

	got, err := f.ReadPageAt(id)
	if err != nil {
		t.Fatalf("ReadPageAt: %v", err)
	}
	if !bytes.Equal(data, got) {
		t.Errorf("read back mismatch")
	}

	id2, err := f.Allocate()
	if err != nil {
		t.Fatalf("second Allocate: %v", err)
	}
	if id2 != id+1 {
		t.Errorf("second page id = %d, want %d", id2, id+1)
	}
	if f.NumPages() != 2 {
		t.Errorf("NumPages = %d, want 2", f.NumPages())
	}
}

func TestExistsAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.idx")

	if Exists(path) {
		t.Fatalf("Exists reported true for a file never created")
	}

	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.Allocate(); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := f.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if !Exists(path) {
		t.Fatalf("Exists reported false after Create+Release")
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Release()
	if reopened.NumPages() != 1 {
		t.Errorf("reopened NumPages = %d, want 1", reopened.NumPages())
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.idx")
	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := f.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}
