// Package rowexec implements the recursive plan evaluator: Execute
// walks a finalized relational-algebra tree, streams rows out of the
// storage engine and routes every storage access through the
// concurrency-control manager first.
package rowexec

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/concurrency"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/recovery"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/catalog"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/condition"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/storage"
)

// ErrExecution is the runtime-execution error kind: type mismatches,
// unresolvable columns, unsupported constructs. It aborts the current
// statement; inside a BEGIN TRANSACTION block, executeTransaction then
// aborts the whole transaction, as it does for any statement error.
var ErrExecution = errors.NewKind("execution error: %s")

// Result is what one statement evaluates to: a row set for queries, an
// affected-row count for DML.
type Result struct {
	Rows     []condition.Row
	Affected int
}

// Executor evaluates plans against the storage engine under a
// transaction's concurrency context. The recovery manager is optional
// (nil disables write-ahead logging, used by plan-equivalence tests).
type Executor struct {
	store *storage.Engine
	cat   *catalog.Catalog
	ccm   concurrency.Manager
	rec   *recovery.Manager
	log   *logrus.Logger
}

// New wires an Executor over its collaborators.
func New(store *storage.Engine, cat *catalog.Catalog, ccm concurrency.Manager, rec *recovery.Manager, log *logrus.Logger) *Executor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Executor{store: store, cat: cat, ccm: ccm, rec: rec, log: log}
}

// Execute dispatches on the node type. tid must already be begun on
// the CCM except for BEGIN_TRANSACTION nodes, which begin it
// themselves.
func (e *Executor) Execute(ctx context.Context, n *plan.Node, tid uint64) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	switch n.Type {
	case plan.Relation:
		rows, err := e.scanRelation(n.Value, n.Value, tid)
		return Result{Rows: rows}, err
	case plan.Alias:
		return e.executeAlias(ctx, n, tid)
	case plan.Filter:
		return e.executeFilter(ctx, n, tid)
	case plan.Project:
		return e.executeProject(ctx, n, tid)
	case plan.Sort:
		return e.executeSort(ctx, n, tid)
	case plan.Limit:
		return e.executeLimit(ctx, n, tid)
	case plan.Join:
		return e.executeJoin(ctx, n, tid)
	case plan.InsertQuery:
		return e.executeInsert(n, tid)
	case plan.UpdateQuery:
		return e.executeUpdate(n, tid)
	case plan.DeleteQuery:
		return e.executeDelete(n, tid)
	case plan.CreateTable:
		return e.executeCreateTable(n, tid)
	case plan.DropTable:
		return e.executeDropTable(n, tid)
	case plan.BeginTxn:
		return e.executeTransaction(ctx, n, tid)
	case plan.Commit:
		if n.Value == "ABORT" {
			return Result{}, e.abort(tid)
		}
		return Result{}, e.commit(tid)
	default:
		return Result{}, ErrExecution.New("unexpected plan node " + n.String())
	}
}

// scanRelation reads every row of table under tid, keying each row both
// by "qualifier.column" and by the bare column name. The bare key is added
// without checking whether other tables share the column name; when a
// join merges two rows that share one, the right-hand row's value is the
// one kept under the bare key.
func (e *Executor) scanRelation(table, qualifier string, tid uint64) ([]condition.Row, error) {
	if err := e.ccm.RequestRead(tid, table); err != nil {
		return nil, err
	}
	rows, err := e.store.Scan(table)
	if err != nil {
		return nil, err
	}
	out := make([]condition.Row, len(rows))
	for i, row := range rows {
		q := make(condition.Row, len(row)*2)
		for k, v := range row {
			q[qualifier+"."+k] = v
			q[k] = v
		}
		out[i] = q
	}
	return out, nil
}

// executeAlias evaluates the aliased subtree; when the child is a base
// RELATION the alias becomes the qualifier its columns are keyed under.
func (e *Executor) executeAlias(ctx context.Context, n *plan.Node, tid uint64) (Result, error) {
	if len(n.Children) != 1 {
		return Result{}, ErrExecution.New("malformed ALIAS node")
	}
	child := n.Children[0]
	if child.Type == plan.Relation {
		rows, err := e.scanRelation(child.Value, n.Value, tid)
		return Result{Rows: rows}, err
	}
	return e.Execute(ctx, child, tid)
}

// executeFilter evaluates the data child, then the condition tree per
// row. Subqueries inside the condition (EXISTS, NOT EXISTS) are
// evaluated eagerly once, before the row loop.
func (e *Executor) executeFilter(ctx context.Context, n *plan.Node, tid uint64) (Result, error) {
	if len(n.Children) != 2 {
		return Result{}, ErrExecution.New("malformed FILTER node")
	}
	child, err := e.Execute(ctx, n.Children[0], tid)
	if err != nil {
		return Result{}, err
	}
	cond := n.Children[1]
	ev, err := e.newCondEvaluator(ctx, cond, tid)
	if err != nil {
		return Result{}, err
	}

	out := make([]condition.Row, 0, len(child.Rows))
	for _, row := range child.Rows {
		match, err := ev.eval(cond, row)
		if err != nil {
			return Result{}, err
		}
		if match {
			out = append(out, row)
		}
	}
	return Result{Rows: out}, nil
}

// executeProject evaluates the data child (the last child by invariant)
// and keeps only the projected columns. A "*" projection passes rows
// through with their bare column keys only.
func (e *Executor) executeProject(ctx context.Context, n *plan.Node, tid uint64) (Result, error) {
	if len(n.Children) == 0 {
		return Result{}, ErrExecution.New("empty PROJECT node")
	}
	source := n.Children[len(n.Children)-1]
	child, err := e.Execute(ctx, source, tid)
	if err != nil {
		return Result{}, err
	}
	if n.Value == "*" {
		out := make([]condition.Row, len(child.Rows))
		for i, row := range child.Rows {
			out[i] = bareColumns(row)
		}
		return Result{Rows: out}, nil
	}

	cols := n.Children[:len(n.Children)-1]
	out := make([]condition.Row, len(child.Rows))
	for i, row := range child.Rows {
		projected := make(condition.Row, len(cols))
		for _, col := range cols {
			name, ref, err := projectionTarget(col)
			if err != nil {
				return Result{}, err
			}
			v, err := resolveColumn(ref, row)
			if err != nil {
				return Result{}, err
			}
			projected[name] = v
		}
		out[i] = projected
	}
	return Result{Rows: out}, nil
}

// projectionTarget resolves a projection child to its output name and
// the COLUMN_REF to look up. An ALIAS contributes its alias as the
// output name; a qualified COLUMN_REF emits the bare column name.
func projectionTarget(col *plan.Node) (string, *plan.Node, error) {
	if col.Type == plan.Alias {
		if len(col.Children) != 1 {
			return "", nil, ErrExecution.New("malformed projection alias")
		}
		_, ref, err := projectionTarget(col.Children[0])
		return col.Value, ref, err
	}
	if col.Type != plan.ColumnRef {
		return "", nil, ErrExecution.New("unsupported projection expression " + col.String())
	}
	colName, _ := columnRefParts(col)
	if colName == "" {
		return "", nil, ErrExecution.New("malformed COLUMN_REF in projection")
	}
	return colName, col, nil
}

// bareColumns strips the qualified duplicates out of a row, keeping only
// bare column keys for output.
func bareColumns(row condition.Row) condition.Row {
	out := make(condition.Row, len(row))
	for k, v := range row {
		if !hasDot(k) {
			out[k] = v
		}
	}
	return out
}

func hasDot(s string) bool {
	for _, r := range s {
		if r == '.' {
			return true
		}
	}
	return false
}

// executeSort evaluates [sort_expr, source], then stable-sorts by the
// key expression; ASC/DESC per the node's value. String keys order
// under the collator, numeric keys numerically.
func (e *Executor) executeSort(ctx context.Context, n *plan.Node, tid uint64) (Result, error) {
	if len(n.Children) != 2 {
		return Result{}, ErrExecution.New("malformed SORT node")
	}
	keyExpr, source := n.Children[0], n.Children[1]
	child, err := e.Execute(ctx, source, tid)
	if err != nil {
		return Result{}, err
	}
	rows, err := e.sortRows(child.Rows, keyExpr, n.Value == "DESC")
	if err != nil {
		return Result{}, err
	}
	return Result{Rows: rows}, nil
}

func (e *Executor) executeLimit(ctx context.Context, n *plan.Node, tid uint64) (Result, error) {
	if len(n.Children) != 1 {
		return Result{}, ErrExecution.New("malformed LIMIT node")
	}
	limit, err := strconv.Atoi(n.Value)
	if err != nil || limit < 0 {
		return Result{}, ErrExecution.New("invalid LIMIT count " + n.Value)
	}
	child, err := e.Execute(ctx, n.Children[0], tid)
	if err != nil {
		return Result{}, err
	}
	if limit < len(child.Rows) {
		child.Rows = child.Rows[:limit]
	}
	return child, nil
}

// executeJoin runs a nested-loop join: INNER emits merged rows
// where the condition holds, CROSS where θ≡true, NATURAL equijoins on
// the intersection of bare column names.
func (e *Executor) executeJoin(ctx context.Context, n *plan.Node, tid uint64) (Result, error) {
	if len(n.Children) < 2 {
		return Result{}, ErrExecution.New("malformed JOIN node")
	}
	left, err := e.Execute(ctx, n.Children[0], tid)
	if err != nil {
		return Result{}, err
	}
	right, err := e.Execute(ctx, n.Children[1], tid)
	if err != nil {
		return Result{}, err
	}

	switch n.Value {
	case "NATURAL":
		return Result{Rows: naturalJoin(left.Rows, right.Rows)}, nil
	case "INNER":
		if len(n.Children) < 3 {
			return Result{}, ErrExecution.New("INNER JOIN without condition")
		}
		cond := n.Children[2]
		ev, err := e.newCondEvaluator(ctx, cond, tid)
		if err != nil {
			return Result{}, err
		}
		var out []condition.Row
		for _, l := range left.Rows {
			for _, r := range right.Rows {
				merged := mergeRows(l, r)
				match, err := ev.eval(cond, merged)
				if err != nil {
					return Result{}, err
				}
				if match {
					out = append(out, merged)
				}
			}
		}
		return Result{Rows: out}, nil
	case "CROSS":
		var out []condition.Row
		for _, l := range left.Rows {
			for _, r := range right.Rows {
				out = append(out, mergeRows(l, r))
			}
		}
		return Result{Rows: out}, nil
	default:
		return Result{}, ErrExecution.New("unknown JOIN kind " + n.Value)
	}
}

func mergeRows(l, r condition.Row) condition.Row {
	merged := make(condition.Row, len(l)+len(r))
	for k, v := range l {
		merged[k] = v
	}
	for k, v := range r {
		merged[k] = v
	}
	return merged
}

// naturalJoin equijoins on every bare column name present on both sides.
// With no shared columns it degenerates to a cross product.
func naturalJoin(left, right []condition.Row) []condition.Row {
	if len(left) == 0 || len(right) == 0 {
		return nil
	}
	var shared []string
	for k := range left[0] {
		if hasDot(k) {
			continue
		}
		if _, ok := right[0][k]; ok {
			shared = append(shared, k)
		}
	}
	var out []condition.Row
	for _, l := range left {
		for _, r := range right {
			match := true
			for _, col := range shared {
				cmp, comparable := condition.Compare(l[col], r[col])
				if !comparable || cmp != 0 {
					match = false
					break
				}
			}
			if match {
				out = append(out, mergeRows(l, r))
			}
		}
	}
	return out
}
