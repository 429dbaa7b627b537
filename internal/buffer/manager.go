// Package buffer implements a pinned-page buffer manager over a single
// diskfile.PagedFile: alloc/read/unpin/flush. It is the one place pin/unpin
// bookkeeping lives; package bptree never touches page bytes except through
// a *page.Page returned from here.
package buffer

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"

	"github.com/sanpoyur-dust/bplus-tree/internal/diskfile"
	"github.com/sanpoyur-dust/bplus-tree/internal/page"
)

// Manager is a pinned-page cache over one paged file. Pages with a nonzero
// pin count live in Manager.pinned; unpinned pages live in the ristretto
// warm cache and may be evicted (and, if dirty, flushed) at any time.
type Manager struct {
	file *diskfile.PagedFile

	pinned map[page.ID]*page.Page
	warm   *ristretto.Cache[uint64, *page.Page]

	// dirty indexes every page currently carrying an unflushed write, no
	// matter whether it lives in pinned or has already been unpinned into
	// warm — ristretto gives no way to walk its resident set on demand, so
	// Flush/FlushAll cannot rely on scanning the cache itself.
	dirty map[page.ID]*page.Page

	// cleanHash records the content hash of pages last unpinned clean, so a
	// page mutated without ever being marked dirty in between can be caught
	// before it is silently written back — the pin-discipline rule that a
	// double-unpin or an unclaimed mutation must be impossible by
	// construction, enforced here rather than merely documented.
	cleanHash map[page.ID]uint64

	// Trace enables fmt.Printf diagnostics at pin/unpin/flush points, in the
	// register of a [BufferPool] HIT/MISS/EVICT log line. Off by default.
	Trace bool
}

// NewManager builds a buffer manager over file with room for capacity warm
// (unpinned) pages.
func NewManager(file *diskfile.PagedFile, capacity int64) (*Manager, error) {
	m := &Manager{
		file:      file,
		pinned:    make(map[page.ID]*page.Page),
		dirty:     make(map[page.ID]*page.Page),
		cleanHash: make(map[page.ID]uint64),
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint64, *page.Page]{
		NumCounters:        capacity * 10,
		MaxCost:            capacity,
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict: func(item *ristretto.Item[*page.Page]) {
			m.evict(item.Value)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("buffer: new cache: %w", err)
	}
	m.warm = cache
	return m, nil
}

// PinAlloc allocates a brand-new page and returns it pinned and dirty.
func (m *Manager) PinAlloc() (*page.Page, error) {
	id, err := m.file.Allocate()
	if err != nil {
		return nil, fmt.Errorf("buffer: alloc: %w", err)
	}
	pg := page.New(id)
	pg.PinCount = 1
	pg.Dirty = true
	m.pinned[id] = pg
	m.dirty[id] = pg
	m.trace("ALLOC pageID=%d", id)
	return pg, nil
}

// PinRead fetches the page with the given id, taking it from the dirty set,
// the warm cache or disk as needed, and returns it pinned.
func (m *Manager) PinRead(id page.ID) (*page.Page, error) {
	if pg, ok := m.pinned[id]; ok {
		pg.PinCount++
		m.trace("REPIN pageID=%d pinCount=%d", id, pg.PinCount)
		return pg, nil
	}

	// An unflushed page may have been refused by the warm cache; m.dirty
	// still holds it, and disk holds only its older contents.
	if pg, ok := m.dirty[id]; ok {
		m.warm.Del(uint64(id))
		pg.PinCount = 1
		m.pinned[id] = pg
		m.trace("HIT (dirty) pageID=%d", id)
		return pg, nil
	}

	if pg, ok := m.warm.Get(uint64(id)); ok {
		m.warm.Del(uint64(id))
		if err := m.checkClean(pg); err != nil {
			return nil, err
		}
		pg.PinCount = 1
		m.pinned[id] = pg
		m.trace("HIT pageID=%d", id)
		return pg, nil
	}

	data, err := m.file.ReadPageAt(id)
	if err != nil {
		return nil, fmt.Errorf("buffer: read page %d: %w", id, err)
	}
	pg := page.New(id)
	copy(pg.Data, data)
	pg.PinCount = 1
	m.pinned[id] = pg
	m.trace("MISS pageID=%d — loaded from disk", id)
	return pg, nil
}

// Unpin releases one pin on id. isDirty marks the page as modified during
// this pin scope; it is sticky (a page dirtied once stays dirty until
// flushed). Double-unpinning an already-unpinned page is a pin-discipline
// violation and panics.
func (m *Manager) Unpin(id page.ID, isDirty bool) error {
	pg, ok := m.pinned[id]
	if !ok {
		panic(fmt.Sprintf("buffer: double unpin or unpin of non-pinned page %d", id))
	}

	if isDirty {
		pg.Dirty = true
	}
	if pg.Dirty {
		m.dirty[id] = pg
	}
	if pg.PinCount > 0 {
		pg.PinCount--
	}
	m.trace("UNPIN pageID=%d dirty=%v pinCount=%d", id, pg.Dirty, pg.PinCount)

	if pg.PinCount > 0 {
		return nil
	}

	delete(m.pinned, id)
	if !pg.Dirty {
		m.cleanHash[id] = contentHash(pg.Data)
	} else {
		delete(m.cleanHash, id)
	}
	m.warm.Set(uint64(id), pg, 1)
	// Set is applied asynchronously; waiting makes the page visible to the
	// next PinRead and runs any eviction it triggers before Unpin returns.
	m.warm.Wait()
	return nil
}

// PinnedCount reports how many distinct pages currently have a nonzero pin
// count. Exercised by tests asserting that an operation leaves nothing
// pinned behind.
func (m *Manager) PinnedCount() int {
	return len(m.pinned)
}

// Flush writes id's page to disk if it currently carries an unflushed
// write. The page need not be pinned. Looked up through m.dirty rather
// than the warm cache: m.dirty already holds the exact page pointer when
// there's anything to do, so there's no need to guess whether id is
// presently pinned or unpinned, or to repeat checkClean's bookkeeping for
// a page this call already knows is dirty.
func (m *Manager) Flush(id page.ID) error {
	if pg, ok := m.pinned[id]; ok {
		return m.flushPage(pg)
	}
	if pg, ok := m.dirty[id]; ok {
		return m.flushPage(pg)
	}
	return nil
}

// FlushAll writes every page currently carrying an unflushed write to disk,
// whether it is presently pinned or sitting unpinned in the warm cache —
// the warm cache's own eviction path is asynchronous and best-effort, so a
// caller that needs durability now (bulk construction finishing, an
// explicit Close) cannot wait on it to get around to writing pages back.
func (m *Manager) FlushAll() error {
	for _, pg := range m.dirty {
		if err := m.flushPage(pg); err != nil {
			return err
		}
	}
	return m.file.Sync()
}

// Close flushes everything and releases the underlying file.
func (m *Manager) Close() error {
	if err := m.FlushAll(); err != nil {
		return err
	}
	m.warm.Close()
	return m.file.Release()
}

func (m *Manager) flushPage(pg *page.Page) error {
	if !pg.Dirty {
		return nil
	}
	if err := m.file.WritePageAt(pg.ID, pg.Data); err != nil {
		return fmt.Errorf("buffer: flush page %d: %w", pg.ID, err)
	}
	pg.Dirty = false
	delete(m.dirty, pg.ID)
	m.cleanHash[pg.ID] = contentHash(pg.Data)
	m.trace("FLUSH pageID=%d", pg.ID)
	return nil
}

// evict is the ristretto OnEvict hook: a page left the warm cache without
// being re-pinned, so if it's dirty it must be written back now or the
// change is lost. This is a backstop for pages that age out of the cache
// on their own; FlushAll does not depend on eviction ever running.
func (m *Manager) evict(pg *page.Page) {
	if pg == nil {
		return
	}
	if err := m.checkClean(pg); err != nil {
		panic(err)
	}
	wasDirty := pg.Dirty
	if err := m.flushPage(pg); err != nil {
		panic(fmt.Sprintf("buffer: failed to flush page %d on eviction: %v", pg.ID, err))
	}
	if wasDirty {
		m.trace("EVICT pageID=%d (flushed)", pg.ID)
	} else {
		m.trace("EVICT pageID=%d (clean)", pg.ID)
	}
	delete(m.cleanHash, pg.ID)
}

// checkClean enforces the pin-discipline self-check: a page recorded as
// clean must still hash to what it hashed to when it was marked clean.
func (m *Manager) checkClean(pg *page.Page) error {
	want, tracked := m.cleanHash[pg.ID]
	if !tracked || pg.Dirty {
		return nil
	}
	if got := contentHash(pg.Data); got != want {
		return fmt.Errorf("buffer: page %d mutated without being unpinned dirty (pin-discipline violation)", pg.ID)
	}
	return nil
}

func contentHash(data []byte) uint64 {
	return xxhash.Sum64(data)
}

func (m *Manager) trace(format string, args ...any) {
	if !m.Trace {
		return
	}
	fmt.Printf("[buffer] "+format+"\n", args...)
}
