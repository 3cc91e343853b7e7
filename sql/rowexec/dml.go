package rowexec

import (
	"context"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/catalog"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/condition"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/storage"
)

// tableNameOf extracts the table name out of a TABLE_NAME(IDENTIFIER)
// child the DML parsers build.
func tableNameOf(n *plan.Node) (string, error) {
	if n == nil || n.Type != plan.TableName || len(n.Children) != 1 {
		return "", ErrExecution.New("malformed TABLE_NAME node")
	}
	return n.Children[0].Value, nil
}

// snapshotTable copies a table's current rows for a WAL before/after
// image. Statement-granularity table images keep redo/undo total and
// idempotent; see DESIGN.md.
func (e *Executor) snapshotTable(table string) ([]condition.Row, error) {
	if e.rec == nil {
		return nil, nil
	}
	rows, err := e.store.Scan(table)
	if err != nil {
		return nil, err
	}
	out := make([]condition.Row, len(rows))
	for i, row := range rows {
		cp := make(condition.Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out[i] = cp
	}
	return out, nil
}

func (e *Executor) logWrite(tid uint64, table string, before []condition.Row) error {
	if e.rec == nil {
		return nil
	}
	after, err := e.snapshotTable(table)
	if err != nil {
		return err
	}
	return e.rec.LogWrite(tid, table, before, after)
}

// executeInsert runs INSERT_QUERY: children [TABLE_NAME, COLUMN_LIST,
// VALUES_CLAUSE(LIST)]. Values must be constant expressions.
func (e *Executor) executeInsert(n *plan.Node, tid uint64) (Result, error) {
	if len(n.Children) != 3 {
		return Result{}, ErrExecution.New("malformed INSERT_QUERY node")
	}
	table, err := tableNameOf(n.Children[0])
	if err != nil {
		return Result{}, err
	}
	colList, valuesClause := n.Children[1], n.Children[2]
	if len(valuesClause.Children) != 1 {
		return Result{}, ErrExecution.New("malformed VALUES_CLAUSE node")
	}

	columns := make([]string, 0, len(colList.Children))
	for _, c := range colList.Children {
		if c.Type != plan.ColumnName || len(c.Children) != 1 {
			return Result{}, ErrExecution.New("malformed COLUMN_LIST entry")
		}
		columns = append(columns, c.Children[0].Value)
	}
	values := make([]any, 0, len(columns))
	for _, v := range valuesClause.Children[0].Children {
		val, err := evalConstExpr(v)
		if err != nil {
			return Result{}, err
		}
		values = append(values, val)
	}

	if err := e.ccm.RequestWrite(tid, table); err != nil {
		return Result{}, err
	}
	before, err := e.snapshotTable(table)
	if err != nil {
		return Result{}, err
	}
	affected, err := e.store.WriteBlock(storage.DataWrite{
		Table:   table,
		Columns: columns,
		Values:  values,
	})
	if err != nil {
		return Result{}, err
	}
	if err := e.logWrite(tid, table, before); err != nil {
		return Result{}, err
	}
	return Result{Affected: affected}, nil
}

// executeUpdate runs UPDATE_QUERY: children [TABLE_NAME,
// LIST(ASSIGNMENT...), optional condition]. Assignment values must be
// constant expressions; the WHERE condition must be expressible in the
// storage layer's conjunctive condition language.
func (e *Executor) executeUpdate(n *plan.Node, tid uint64) (Result, error) {
	if len(n.Children) < 2 || len(n.Children) > 3 {
		return Result{}, ErrExecution.New("malformed UPDATE_QUERY node")
	}
	table, err := tableNameOf(n.Children[0])
	if err != nil {
		return Result{}, err
	}
	var columns []string
	var values []any
	for _, a := range n.Children[1].Children {
		if a.Type != plan.Assignment || len(a.Children) != 1 {
			return Result{}, ErrExecution.New("malformed ASSIGNMENT node")
		}
		val, err := evalConstExpr(a.Children[0])
		if err != nil {
			return Result{}, err
		}
		columns = append(columns, a.Value)
		values = append(values, val)
	}

	var conds []condition.Condition
	if len(n.Children) == 3 {
		conds, err = toStorageConditions(n.Children[2])
		if err != nil {
			return Result{}, err
		}
	}

	if err := e.ccm.RequestWrite(tid, table); err != nil {
		return Result{}, err
	}
	before, err := e.snapshotTable(table)
	if err != nil {
		return Result{}, err
	}
	affected, err := e.store.WriteBlock(storage.DataWrite{
		Table:      table,
		Columns:    columns,
		Conditions: conds,
		Values:     values,
	})
	if err != nil {
		return Result{}, err
	}
	if err := e.logWrite(tid, table, before); err != nil {
		return Result{}, err
	}
	return Result{Affected: affected}, nil
}

// executeDelete runs DELETE_QUERY: children [TABLE_NAME, optional cond].
func (e *Executor) executeDelete(n *plan.Node, tid uint64) (Result, error) {
	if len(n.Children) < 1 || len(n.Children) > 2 {
		return Result{}, ErrExecution.New("malformed DELETE_QUERY node")
	}
	table, err := tableNameOf(n.Children[0])
	if err != nil {
		return Result{}, err
	}
	var conds []condition.Condition
	if len(n.Children) == 2 {
		conds, err = toStorageConditions(n.Children[1])
		if err != nil {
			return Result{}, err
		}
	}

	if err := e.ccm.RequestWrite(tid, table); err != nil {
		return Result{}, err
	}
	before, err := e.snapshotTable(table)
	if err != nil {
		return Result{}, err
	}
	affected, err := e.store.DeleteBlock(storage.DataDeletion{Table: table, Conditions: conds})
	if err != nil {
		return Result{}, err
	}
	if err := e.logWrite(tid, table, before); err != nil {
		return Result{}, err
	}
	return Result{Affected: affected}, nil
}

// executeCreateTable runs CREATE_TABLE: children [TABLE_NAME,
// COLUMN_DEF_LIST].
func (e *Executor) executeCreateTable(n *plan.Node, tid uint64) (Result, error) {
	if len(n.Children) != 2 {
		return Result{}, ErrExecution.New("malformed CREATE_TABLE node")
	}
	table, err := tableNameOf(n.Children[0])
	if err != nil {
		return Result{}, err
	}
	def := &catalog.Table{Name: table, Kind: catalog.DataTable}
	for _, cd := range n.Children[1].Children {
		col, fk, err := columnDefinitionOf(cd)
		if err != nil {
			return Result{}, err
		}
		def.Columns = append(def.Columns, col)
		if col.PrimaryKey {
			def.PrimaryKeys = append(def.PrimaryKeys, col.Name)
		}
		if fk != nil {
			def.ForeignKeys = append(def.ForeignKeys, *fk)
		}
	}

	if err := e.ccm.RequestWrite(tid, table); err != nil {
		return Result{}, err
	}
	if err := e.store.CreateTable(def); err != nil {
		return Result{}, err
	}
	return Result{Affected: 0}, nil
}

func columnDefinitionOf(cd *plan.Node) (catalog.ColumnDefinition, *catalog.ForeignKey, error) {
	if cd.Type != plan.ColumnDef || len(cd.Children) == 0 {
		return catalog.ColumnDefinition{}, nil, ErrExecution.New("malformed COLUMN_DEF node")
	}
	dt := cd.Children[0]
	if dt.Type != plan.DataType {
		return catalog.ColumnDefinition{}, nil, ErrExecution.New("COLUMN_DEF missing DATA_TYPE")
	}
	col := catalog.ColumnDefinition{Name: cd.Value, Type: dt.Value}
	if len(dt.Children) == 1 && dt.Children[0].Type == plan.LiteralNumber {
		col.Size = parseInt(dt.Children[0].Value)
	}

	var fk *catalog.ForeignKey
	for _, extra := range cd.Children[1:] {
		switch extra.Type {
		case plan.PrimaryKey:
			col.PrimaryKey = true
		case plan.ForeignKey:
			if len(extra.Children) != 1 || extra.Children[0].Type != plan.References {
				return col, nil, ErrExecution.New("malformed FOREIGN_KEY node")
			}
			refs := extra.Children[0]
			refCol := ""
			if len(refs.Children) == 1 && refs.Children[0].Type == plan.ColumnName &&
				len(refs.Children[0].Children) == 1 {
				refCol = refs.Children[0].Children[0].Value
			}
			fk = &catalog.ForeignKey{
				Column:          cd.Value,
				ReferencesTable: refs.Value,
				ReferencesCol:   refCol,
			}
		}
	}
	return col, fk, nil
}

// executeDropTable runs DROP_TABLE. RESTRICT refuses the drop while
// another table's foreign key references the target; CASCADE (and the
// unqualified form) drops regardless.
func (e *Executor) executeDropTable(n *plan.Node, tid uint64) (Result, error) {
	if len(n.Children) != 1 {
		return Result{}, ErrExecution.New("malformed DROP_TABLE node")
	}
	table, err := tableNameOf(n.Children[0])
	if err != nil {
		return Result{}, err
	}
	if n.Value == "RESTRICT" {
		for _, other := range e.cat.TableNames() {
			if other == table {
				continue
			}
			t, err := e.cat.Table(other)
			if err != nil {
				continue
			}
			for _, fk := range t.ForeignKeys {
				if fk.ReferencesTable == table {
					return Result{}, ErrExecution.New(
						"cannot drop " + table + ": referenced by " + other + " (RESTRICT)")
				}
			}
		}
	}
	if err := e.ccm.RequestWrite(tid, table); err != nil {
		return Result{}, err
	}
	if err := e.store.DropTable(table); err != nil {
		return Result{}, err
	}
	return Result{Affected: 0}, nil
}

// executeTransaction runs a BEGIN_TRANSACTION block: begin on the CCM,
// execute the enclosed statements sequentially, commit at the end. On
// any error the transaction aborts, remaining statements are skipped
// and the error surfaces.
func (e *Executor) executeTransaction(ctx context.Context, n *plan.Node, tid uint64) (Result, error) {
	if err := e.ccm.Begin(tid); err != nil {
		return Result{}, err
	}
	if e.rec != nil {
		if err := e.rec.LogBegin(tid); err != nil {
			return Result{}, err
		}
	}
	var last Result
	for _, stmt := range n.Children {
		res, err := e.Execute(ctx, stmt, tid)
		if err != nil {
			_ = e.abort(tid)
			return Result{}, err
		}
		last = res
	}
	if err := e.commit(tid); err != nil {
		return Result{}, err
	}
	return last, nil
}

// commit finishes tid: CCM commit first (validation-based strategies may
// refuse here), then the WAL commit record reaches stable storage, then
// the written tables' dirty pages flush — the write-ahead ordering.
func (e *Executor) commit(tid uint64) error {
	txn := e.ccm.Transaction(tid)
	if err := e.ccm.Commit(tid); err != nil {
		_ = e.rollback(tid)
		return err
	}
	if e.rec != nil {
		if err := e.rec.LogCommit(tid); err != nil {
			return err
		}
	}
	if txn != nil {
		for table := range txn.WriteSet {
			if err := e.store.Flush(table); err != nil {
				return err
			}
		}
	}
	return nil
}

// abort rolls tid back: CCM abort (waking any blocked thread), then the
// logged before-images restore the pre-transaction table state.
func (e *Executor) abort(tid uint64) error {
	if err := e.ccm.Abort(tid); err != nil {
		return err
	}
	return e.rollback(tid)
}

func (e *Executor) rollback(tid uint64) error {
	if e.rec == nil {
		return nil
	}
	if err := e.rec.Rollback(&storageApplier{store: e.store}, tid); err != nil {
		return err
	}
	return e.rec.LogAbort(tid)
}

// storageApplier adapts the storage engine to the recovery manager's
// Applier: images are whole-table row snapshots.
type storageApplier struct {
	store *storage.Engine
}

func (a *storageApplier) Redo(table string, after any) error {
	return a.store.ReplaceAll(table, decodeRows(after))
}

func (a *storageApplier) Undo(table string, before any) error {
	return a.store.ReplaceAll(table, decodeRows(before))
}

// decodeRows accepts both the in-process []condition.Row form and the
// JSON-decoded []any form a log replay produces.
func decodeRows(image any) []condition.Row {
	switch rows := image.(type) {
	case nil:
		return nil
	case []condition.Row:
		return rows
	case []any:
		out := make([]condition.Row, 0, len(rows))
		for _, r := range rows {
			if m, ok := r.(map[string]any); ok {
				out = append(out, condition.Row(m))
			}
		}
		return out
	default:
		return nil
	}
}
