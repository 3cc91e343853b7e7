// Package catalog holds table/column metadata and per-table statistics,
// shared by the validator, the rules, the optimizer's cost model and the
// storage engine.
package catalog

import (
	"sync"

	errors "gopkg.in/src-d/go-errors.v1"
)

// ErrUnknownTable is raised when a RELATION or catalog lookup names a
// table that does not exist.
var ErrUnknownTable = errors.NewKind("unknown table: %s")

// ErrTableExists is raised by CreateTable when the name is already taken.
var ErrTableExists = errors.NewKind("table already exists: %s")

// TableKind distinguishes user data tables from internal/system tables.
type TableKind int

const (
	DataTable TableKind = iota
	SystemTable
)

// ColumnDefinition describes one column of a table.
type ColumnDefinition struct {
	Name       string
	Type       string // INTEGER, VARCHAR, BOOLEAN, DATE, ...
	Size       int    // meaningful for VARCHAR(n); 0 otherwise
	PrimaryKey bool
}

// ForeignKey describes a FOREIGN KEY ... REFERENCES constraint.
type ForeignKey struct {
	Column          string
	ReferencesTable string
	ReferencesCol   string
}

// Table is one catalog entry.
type Table struct {
	Name        string
	Columns     []ColumnDefinition
	PrimaryKeys []string
	ForeignKeys []ForeignKey
	Kind        TableKind
}

// ColumnIndex returns the position of name in t.Columns, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether t declares a column named name.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) != -1 }

// Statistic is the per-table cardinality estimate used by the cost model
// and by index-eligibility decisions.
type Statistic struct {
	NumTuples      int            // n_r
	NumBlocks      int            // b_r
	TupleBytes     int            // l_r
	BlockingFactor int            // f_r
	DistinctPerCol map[string]int // V(A,r)
}

// Catalog is the process-wide table registry: read-mostly, so lookups
// share an RWMutex read lock while writers take the exclusive latch.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*Table
	stats  map[string]*Statistic
}

// New constructs an empty Catalog.
func New() *Catalog {
	return &Catalog{
		tables: make(map[string]*Table),
		stats:  make(map[string]*Statistic),
	}
}

// CreateTable registers a new table definition.
func (c *Catalog) CreateTable(t *Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[t.Name]; ok {
		return ErrTableExists.New(t.Name)
	}
	c.tables[t.Name] = t
	c.stats[t.Name] = &Statistic{DistinctPerCol: map[string]int{}}
	return nil
}

// DropTable removes a table definition and its statistics.
func (c *Catalog) DropTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[name]; !ok {
		return ErrUnknownTable.New(name)
	}
	delete(c.tables, name)
	delete(c.stats, name)
	return nil
}

// Table looks up a table by name.
func (c *Catalog) Table(name string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, ErrUnknownTable.New(name)
	}
	return t, nil
}

// HasTable reports whether name is a registered table.
func (c *Catalog) HasTable(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tables[name]
	return ok
}

// Stats returns the statistics for a table.
func (c *Catalog) Stats(name string) (*Statistic, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stats[name]
	if !ok {
		return nil, ErrUnknownTable.New(name)
	}
	return s, nil
}

// SetStats replaces the statistics for a table (called by storage after a
// write/delete changes cardinalities).
func (c *Catalog) SetStats(name string, s *Statistic) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[name]; !ok {
		return ErrUnknownTable.New(name)
	}
	c.stats[name] = s
	return nil
}

// TableNames returns every registered table name, order unspecified.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tables))
	for name := range c.tables {
		out = append(out, name)
	}
	return out
}

// ColumnOwner resolves an unqualified column name to the single table
// among candidates that declares it. Returns ("", false) if zero or more
// than one candidate declares it (ambiguous).
func (c *Catalog) ColumnOwner(column string, candidateTables []string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	owner := ""
	count := 0
	for _, tn := range candidateTables {
		t, ok := c.tables[tn]
		if !ok {
			continue
		}
		if t.HasColumn(column) {
			owner = tn
			count++
		}
	}
	if count != 1 {
		return "", false
	}
	return owner, true
}
