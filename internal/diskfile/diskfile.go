// Package diskfile implements the paged file underneath the index:
// exists/create/open/first-page-id/release, plus the raw page-offset I/O the
// buffer manager reads and writes through. One PagedFile owns exactly one
// OS file handle, held under an advisory lock for as long as it is open.
package diskfile

import (
	"fmt"
	"os"

	"github.com/sanpoyur-dust/bplus-tree/internal/page"
)

// PagedFile is a single OS file addressed in fixed page.Size chunks.
type PagedFile struct {
	file     *os.File
	path     string
	numPages int64
}

// Exists reports whether a paged file already exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Create makes a new, empty paged file at path and opens it.
func Create(path string) (*PagedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("diskfile: create %s: %w", path, err)
	}
	if err := flock(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("diskfile: lock %s: %w", path, err)
	}
	return &PagedFile{file: f, path: path}, nil
}

// Open opens an existing paged file at path.
func Open(path string) (*PagedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("diskfile: open %s: %w", path, err)
	}
	if err := flock(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("diskfile: lock %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		funlock(f)
		f.Close()
		return nil, fmt.Errorf("diskfile: stat %s: %w", path, err)
	}
	return &PagedFile{file: f, path: path, numPages: stat.Size() / page.Size}, nil
}

// FirstPageID is the page id reserved for the header/metadata page.
func (f *PagedFile) FirstPageID() page.ID { return page.ID(0) }

// NumPages returns the number of pages currently allocated in the file.
func (f *PagedFile) NumPages() int64 { return f.numPages }

// Allocate extends the file by one page, zero-fills it on disk, and returns
// its id.
func (f *PagedFile) Allocate() (page.ID, error) {
	id := page.ID(f.numPages)
	blank := make([]byte, page.Size)
	if _, err := f.file.WriteAt(blank, int64(id)*page.Size); err != nil {
		return 0, fmt.Errorf("diskfile: allocate page %d: %w", id, err)
	}
	f.numPages++
	return id, nil
}

// ReadPageAt reads one page's bytes from disk.
func (f *PagedFile) ReadPageAt(id page.ID) ([]byte, error) {
	buf := make([]byte, page.Size)
	n, err := f.file.ReadAt(buf, int64(id)*page.Size)
	if err != nil && n != page.Size {
		return nil, fmt.Errorf("diskfile: read page %d: %w", id, err)
	}
	return buf, nil
}

// WritePageAt writes one page's bytes to disk.
func (f *PagedFile) WritePageAt(id page.ID, data []byte) error {
	if len(data) != page.Size {
		return fmt.Errorf("diskfile: write page %d: data is %d bytes, want %d", id, len(data), page.Size)
	}
	if _, err := f.file.WriteAt(data, int64(id)*page.Size); err != nil {
		return fmt.Errorf("diskfile: write page %d: %w", id, err)
	}
	return nil
}

// Sync flushes pending writes to stable storage.
func (f *PagedFile) Sync() error {
	return f.file.Sync()
}

// Release unlocks and closes the file handle. Idempotent.
func (f *PagedFile) Release() error {
	if f.file == nil {
		return nil
	}
	funlock(f.file)
	err := f.file.Close()
	f.file = nil
	return err
}
