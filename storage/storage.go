package storage

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/catalog"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/condition"
)

// SearchType names the scan strategy a DataRetrieval asks for: "AUTO" or
// "SEQUENTIAL". ReadBlock scans every listed table sequentially under
// either value and consults no index, so both return the same rows.
type SearchType string

const (
	SearchAuto       SearchType = "AUTO"
	SearchSequential SearchType = "SEQUENTIAL"
)

// DataRetrieval is the read_block request: scan, filter, project.
type DataRetrieval struct {
	Tables     []string
	Columns    []string // empty means "*"
	Conditions []condition.Condition
	SearchType SearchType
}

// DataWrite is the write_block argument: empty Conditions means insert,
// otherwise update matching rows' Columns to Values.
type DataWrite struct {
	Table      string
	Columns    []string
	Conditions []condition.Condition
	Values     []any
}

// DataDeletion is the delete_block argument.
type DataDeletion struct {
	Table      string
	Conditions []condition.Condition
}

// Engine is the storage layer's top-level handle: catalog-backed table
// heaps behind one shared buffer pool, plus optional per-column indexes.
type Engine struct {
	mu      sync.RWMutex
	cat     *catalog.Catalog
	buf     *Buffer
	heaps   map[string]*Heap
	indexes map[string]map[string]Index
}

// NewEngine constructs an Engine over cat with a buffer pool sized by
// bufferBytes (0 selects DefaultBufferBytes).
func NewEngine(cat *catalog.Catalog, bufferBytes int) *Engine {
	return &Engine{
		cat:     cat,
		buf:     NewBuffer(bufferBytes),
		heaps:   map[string]*Heap{},
		indexes: map[string]map[string]Index{},
	}
}

// CreateTable writes the catalog entry and allocates an empty heap.
func (e *Engine) CreateTable(t *catalog.Table) error {
	if err := e.cat.CreateTable(t); err != nil {
		return err
	}
	e.mu.Lock()
	h := newHeap()
	e.heaps[t.Name] = h
	e.indexes[t.Name] = map[string]Index{}
	e.mu.Unlock()
	e.buf.registerHeap(t.Name, h)
	return nil
}

// DropTable removes the catalog entry, heap and any indexes for table.
func (e *Engine) DropTable(name string) error {
	if err := e.cat.DropTable(name); err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.heaps, name)
	delete(e.indexes, name)
	e.mu.Unlock()
	e.buf.dropHeap(name)
	return nil
}

func (e *Engine) heap(table string) (*Heap, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.heaps[table]
	if !ok {
		return nil, catalog.ErrUnknownTable.New(table)
	}
	return h, nil
}

// Scan returns every row of table in page order.
func (e *Engine) Scan(table string) ([]condition.Row, error) {
	if _, err := e.heap(table); err != nil {
		return nil, err
	}
	count := e.buf.PageCount(table)
	rows := make([]condition.Row, 0, count*RowsPerPage)
	for i := 0; i < count; i++ {
		page, err := e.buf.Fetch(table, i)
		if err != nil {
			return nil, errors.Wrapf(err, "scanning table %s page %d", table, i)
		}
		rows = append(rows, page.Rows...)
	}
	return rows, nil
}

// ReadBlock scans, filters by the conjunctive condition list, and
// projects. Multiple source tables are combined with a
// nested-loop cross product, qualifying every column as "table.column"
// (and, when the column name is unambiguous among the listed tables,
// also keeping the bare name for conditions/projections written without
// a qualifier).
func (e *Engine) ReadBlock(req DataRetrieval) ([]condition.Row, error) {
	if len(req.Tables) == 0 {
		return nil, errors.New("read_block: no source tables")
	}
	combined, err := e.crossProduct(req.Tables, req.SearchType, req.Conditions)
	if err != nil {
		return nil, err
	}

	out := make([]condition.Row, 0, len(combined))
	for _, row := range combined {
		ok := true
		for _, c := range req.Conditions {
			match, err := c.Evaluate(row)
			if err != nil {
				return nil, err
			}
			if !match {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		out = append(out, project(row, req.Columns))
	}
	return out, nil
}

// crossProduct materializes the nested-loop join of every named table's
// rows, tagging both qualified and (when unambiguous) bare column keys.
func (e *Engine) crossProduct(tables []string, search SearchType, conds []condition.Condition) ([]condition.Row, error) {
	if len(tables) == 1 {
		return e.scanQualified(tables[0], tables)
	}
	acc, err := e.scanQualified(tables[0], tables)
	if err != nil {
		return nil, err
	}
	for _, t := range tables[1:] {
		rows, err := e.scanQualified(t, tables)
		if err != nil {
			return nil, err
		}
		acc = nestedLoopJoin(acc, rows)
	}
	return acc, nil
}

func nestedLoopJoin(left, right []condition.Row) []condition.Row {
	out := make([]condition.Row, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			merged := make(condition.Row, len(l)+len(r))
			for k, v := range l {
				merged[k] = v
			}
			for k, v := range r {
				merged[k] = v
			}
			out = append(out, merged)
		}
	}
	return out
}

// scanQualified scans table and returns rows keyed "table.column"; when
// column is unambiguous across allTables it is also duplicated under its
// bare name.
func (e *Engine) scanQualified(table string, allTables []string) ([]condition.Row, error) {
	rows, err := e.Scan(table)
	if err != nil {
		return nil, err
	}
	t, err := e.cat.Table(table)
	if err != nil {
		return nil, err
	}
	bareOK := map[string]bool{}
	for _, col := range t.Columns {
		owner, ok := e.cat.ColumnOwner(col.Name, allTables)
		bareOK[col.Name] = ok && owner == table
	}
	out := make([]condition.Row, len(rows))
	for i, row := range rows {
		q := make(condition.Row, len(row)*2)
		for k, v := range row {
			q[fmt.Sprintf("%s.%s", table, k)] = v
			if bareOK[k] {
				q[k] = v
			}
		}
		out[i] = q
	}
	return out, nil
}

func project(row condition.Row, columns []string) condition.Row {
	if len(columns) == 0 {
		return row
	}
	out := make(condition.Row, len(columns))
	for _, c := range columns {
		out[c] = row[c]
	}
	return out
}

// WriteBlock inserts a row when req.Conditions is empty, otherwise
// updates req.Columns of every matching row to req.Values, returning the
// count of rows affected.
func (e *Engine) WriteBlock(req DataWrite) (int, error) {
	h, err := e.heap(req.Table)
	if err != nil {
		return 0, err
	}
	if len(req.Conditions) == 0 {
		row := make(condition.Row, len(req.Columns))
		for i, c := range req.Columns {
			row[c] = req.Values[i]
		}
		if _, err := e.buf.Append(req.Table, row); err != nil {
			return 0, err
		}
		e.bumpStats(req.Table, 1)
		e.invalidateIndexes(req.Table)
		return 1, nil
	}

	affected := 0
	count := e.buf.PageCount(req.Table)
	for i := 0; i < count; i++ {
		page, err := e.buf.Fetch(req.Table, i)
		if err != nil {
			return affected, err
		}
		for _, row := range page.Rows {
			match, err := evaluateAll(req.Conditions, row)
			if err != nil {
				return affected, err
			}
			if !match {
				continue
			}
			for j, c := range req.Columns {
				row[c] = req.Values[j]
			}
			page.Dirty = true
			affected++
		}
	}
	_ = h
	if affected > 0 {
		e.invalidateIndexes(req.Table)
	}
	return affected, nil
}

// DeleteBlock removes matching rows and returns the affected count.
func (e *Engine) DeleteBlock(req DataDeletion) (int, error) {
	if _, err := e.heap(req.Table); err != nil {
		return 0, err
	}
	affected := 0
	count := e.buf.PageCount(req.Table)
	for i := 0; i < count; i++ {
		page, err := e.buf.Fetch(req.Table, i)
		if err != nil {
			return affected, err
		}
		kept := page.Rows[:0]
		for _, row := range page.Rows {
			match, err := evaluateAll(req.Conditions, row)
			if err != nil {
				return affected, err
			}
			if match {
				affected++
				continue
			}
			kept = append(kept, row)
		}
		if len(kept) != len(page.Rows) {
			page.Rows = kept
			page.Dirty = true
		}
	}
	if affected > 0 {
		e.bumpStats(req.Table, -affected)
		e.invalidateIndexes(req.Table)
	}
	return affected, nil
}

func evaluateAll(conds []condition.Condition, row condition.Row) (bool, error) {
	for _, c := range conds {
		ok, err := c.Evaluate(row)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// SetIndex builds and registers an index of kind over table.column.
// Query results must be identical with or without the index; ReadBlock
// does not yet consult indexes for plan selection, so that invariant
// holds trivially.
func (e *Engine) SetIndex(table, column string, kind IndexKind) error {
	t, err := e.cat.Table(table)
	if err != nil {
		return err
	}
	if !t.HasColumn(column) {
		return catalog.ErrUnknownTable.New(table + "." + column)
	}
	idx, err := newIndex(kind)
	if err != nil {
		return err
	}
	rows, err := e.Scan(table)
	if err != nil {
		return err
	}
	for i, row := range rows {
		idx.Insert(row[column], i)
	}
	e.mu.Lock()
	e.indexes[table][column] = idx
	e.mu.Unlock()
	return nil
}

func (e *Engine) invalidateIndexes(table string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for col := range e.indexes[table] {
		delete(e.indexes[table], col)
	}
}

// ReplaceAll swaps table's entire contents for rows. Used by the
// recovery path only, which replays whole-table before/after images;
// cached pages for the table are invalidated so the next scan sees the
// replaced heap.
func (e *Engine) ReplaceAll(table string, rows []condition.Row) error {
	h, err := e.heap(table)
	if err != nil {
		return err
	}
	e.buf.invalidate(table)
	h.replace(rows)
	e.invalidateIndexes(table)

	s, err := e.cat.Stats(table)
	if err == nil {
		next := *s
		next.NumTuples = len(rows)
		if next.BlockingFactor > 0 {
			next.NumBlocks = (next.NumTuples + next.BlockingFactor - 1) / next.BlockingFactor
		}
		_ = e.cat.SetStats(table, &next)
	}
	return nil
}

// Flush writes table's dirty cached pages back to its heap — called on
// commit, after the WAL flush.
func (e *Engine) Flush(table string) error {
	if err := e.buf.Flush(table); err != nil {
		return errors.Wrapf(err, "flushing table %s", table)
	}
	return nil
}

// GetStats returns table's cardinality estimate.
func (e *Engine) GetStats(table string) (*catalog.Statistic, error) {
	return e.cat.Stats(table)
}

func (e *Engine) bumpStats(table string, delta int) {
	s, err := e.cat.Stats(table)
	if err != nil {
		return
	}
	next := *s
	next.NumTuples += delta
	if next.NumTuples < 0 {
		next.NumTuples = 0
	}
	if next.BlockingFactor > 0 {
		next.NumBlocks = (next.NumTuples + next.BlockingFactor - 1) / next.BlockingFactor
	}
	_ = e.cat.SetStats(table, &next)
}
