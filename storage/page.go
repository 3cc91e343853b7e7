// Package storage implements the paged table store: per-table heaps of
// fixed-size pages, a bounded LRU buffer pool, and the condition-driven
// DataRetrieval/DataWrite/DataDeletion APIs.
package storage

import "github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/condition"

// RowsPerPage bounds how many rows a single page holds. Page size is
// constant within a database instance.
const RowsPerPage = 64

// approxPageBytes estimates one page's resident footprint for sizing the
// buffer pool against its byte budget; rows are schemaless Go values so
// an exact count isn't possible without walking every cell.
const approxPageBytes = 8 * 1024

// Page is one unit of the buffer pool's cache: a bounded slice of rows
// plus the dirty flag the buffer pool evicts on.
type Page struct {
	Rows  []condition.Row
	Dirty bool
}

func newPage() *Page { return &Page{Rows: make([]condition.Row, 0, RowsPerPage)} }

// Full reports whether the page holds its maximum row count.
func (p *Page) Full() bool { return len(p.Rows) >= RowsPerPage }
