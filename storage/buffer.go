package storage

import (
	"container/list"
	"sync"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/condition"
)

// DefaultBufferBytes is the buffer pool's default capacity, 128 MiB.
const DefaultBufferBytes = 128 * 1024 * 1024

type pageKey struct {
	table string
	index int
}

type bufferEntry struct {
	key  pageKey
	page *Page
}

// Buffer is the bounded in-memory page cache: LRU-evicted, dirty-page
// tracked, protected by its own mutex distinct from the concurrency
// manager's locks.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[pageKey]*list.Element
	heaps    map[string]*Heap
}

// NewBuffer sizes the pool's page capacity from a byte budget (0 uses
// DefaultBufferBytes).
func NewBuffer(maxBytes int) *Buffer {
	if maxBytes <= 0 {
		maxBytes = DefaultBufferBytes
	}
	cap := maxBytes / approxPageBytes
	if cap < 1 {
		cap = 1
	}
	return &Buffer{
		capacity: cap,
		ll:       list.New(),
		index:    map[pageKey]*list.Element{},
		heaps:    map[string]*Heap{},
	}
}

func (b *Buffer) registerHeap(table string, h *Heap) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.heaps[table] = h
}

func (b *Buffer) dropHeap(table string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.heaps, table)
	var stale []*list.Element
	for el := b.ll.Front(); el != nil; el = el.Next() {
		if el.Value.(*bufferEntry).key.table == table {
			stale = append(stale, el)
		}
	}
	for _, el := range stale {
		delete(b.index, el.Value.(*bufferEntry).key)
		b.ll.Remove(el)
	}
}

// invalidate drops every cached page of table without flushing — the
// recovery path replaces the heap wholesale, so dirty cached copies are
// stale by definition.
func (b *Buffer) invalidate(table string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var stale []*list.Element
	for el := b.ll.Front(); el != nil; el = el.Next() {
		if el.Value.(*bufferEntry).key.table == table {
			stale = append(stale, el)
		}
	}
	for _, el := range stale {
		delete(b.index, el.Value.(*bufferEntry).key)
		b.ll.Remove(el)
	}
}

// Fetch returns the requested page, pulling it from its Heap and caching
// it if not already resident, evicting the LRU page (flushing it first
// if dirty) when the cache is at capacity.
func (b *Buffer) Fetch(table string, idx int) (*Page, error) {
	key := pageKey{table, idx}
	b.mu.Lock()
	defer b.mu.Unlock()
	if el, ok := b.index[key]; ok {
		b.ll.MoveToFront(el)
		return el.Value.(*bufferEntry).page, nil
	}
	h, ok := b.heaps[table]
	if !ok {
		return nil, ErrUnknownHeap.New(table)
	}
	page, err := h.readPage(idx)
	if err != nil {
		return nil, err
	}
	if b.ll.Len() >= b.capacity {
		b.evictOldestLocked()
	}
	el := b.ll.PushFront(&bufferEntry{key: key, page: page})
	b.index[key] = el
	return page, nil
}

// PageCount exposes how many pages a table's heap currently holds, for
// iterating every page in a scan.
func (b *Buffer) PageCount(table string) int {
	b.mu.Lock()
	h, ok := b.heaps[table]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	return h.pageCount()
}

// Append inserts row into table's heap, keeping the buffer's cached copy
// of the landing page (if any) coherent — appendRow mutates the same
// *Page the buffer may already hold, since both heap and buffer share
// Page pointers by construction.
func (b *Buffer) Append(table string, row condition.Row) (int, error) {
	b.mu.Lock()
	h, ok := b.heaps[table]
	b.mu.Unlock()
	if !ok {
		return 0, ErrUnknownHeap.New(table)
	}
	return h.appendRow(row), nil
}

func (b *Buffer) evictOldestLocked() {
	el := b.ll.Back()
	if el == nil {
		return
	}
	entry := el.Value.(*bufferEntry)
	if entry.page.Dirty {
		if h, ok := b.heaps[entry.key.table]; ok {
			_ = h.writePage(entry.key.index, entry.page)
			entry.page.Dirty = false
		}
	}
	b.ll.Remove(el)
	delete(b.index, entry.key)
}

// Flush writes every cached dirty page of table back to its heap —
// called on COMMIT (write-ahead logging requires the log record to be
// stable before the page write, so callers flush the log first).
func (b *Buffer) Flush(table string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.heaps[table]
	if !ok {
		return nil
	}
	for el := b.ll.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*bufferEntry)
		if entry.key.table != table || !entry.page.Dirty {
			continue
		}
		if err := h.writePage(entry.key.index, entry.page); err != nil {
			return err
		}
		entry.page.Dirty = false
	}
	return nil
}
