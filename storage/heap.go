package storage

import (
	"sync"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/condition"
)

// Heap is one table's backing page file: the authoritative (simulated
// "stable storage") sequence of pages behind the buffer pool's cache.
// Real page persistence (flushing to an actual file) is a drop-in swap
// behind readPage/writePage; this in-memory form is what the buffer
// pool's LRU and dirty-tracking logic actually exercises.
type Heap struct {
	mu    sync.Mutex
	pages []*Page
}

func newHeap() *Heap { return &Heap{} }

func (h *Heap) readPage(idx int) (*Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if idx < 0 || idx >= len(h.pages) {
		return nil, ErrPageNotFound.New(idx)
	}
	return h.pages[idx], nil
}

func (h *Heap) writePage(idx int, p *Page) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if idx < 0 || idx >= len(h.pages) {
		return ErrPageNotFound.New(idx)
	}
	h.pages[idx] = p
	return nil
}

// pageCount returns the current page count, used through the buffer
// pool's PageCount to know how far a scan or block operation iterates.
func (h *Heap) pageCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pages)
}

// allocate appends a fresh empty page and returns its index.
func (h *Heap) allocate() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pages = append(h.pages, newPage())
	return len(h.pages) - 1
}

// replace discards every page and refills the heap from rows, packing
// them into fresh pages in order.
func (h *Heap) replace(rows []condition.Row) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pages = nil
	for _, row := range rows {
		last := len(h.pages) - 1
		if last < 0 || h.pages[last].Full() {
			h.pages = append(h.pages, newPage())
			last++
		}
		h.pages[last].Rows = append(h.pages[last].Rows, row)
	}
}

// appendRow inserts row into the heap's last page, allocating a new page
// first if the heap is empty or the last page is full. Returns the page
// index the row landed in.
func (h *Heap) appendRow(row condition.Row) int {
	h.mu.Lock()
	last := len(h.pages) - 1
	needsNew := last < 0 || h.pages[last].Full()
	h.mu.Unlock()

	if needsNew {
		last = h.allocate()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pages[last].Rows = append(h.pages[last].Rows, row)
	h.pages[last].Dirty = true
	return last
}
