// Package engine wires the full statement pipeline: parse → validate →
// deterministic rewrites (Rules 3, 7, 8) → genetic search → execution,
// over the shared catalog, storage engine, concurrency manager and
// write-ahead log.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/concurrency"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/recovery"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/catalog"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/condition"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/optimizer"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/parser"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/plan"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/rowexec"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/rules"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/token"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/validate"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/storage"
)

// Config parameterizes one Engine instance.
type Config struct {
	// DataDir holds the write-ahead log; empty disables persistence
	// (in-memory engine, used by tests and throwaway sessions).
	DataDir string
	// BufferBytes sizes the storage buffer pool (0 = 128 MiB default).
	BufferBytes int
	// Concurrency selects and tunes the CCM strategy.
	Concurrency concurrency.Config
	// Optimizer tunes the genetic search; the zero value uses defaults.
	Optimizer optimizer.Config
	// SkipGA runs deterministic rewrites only, falling back to the
	// validated plan. Useful for tests that need fully deterministic
	// single-statement latency.
	SkipGA bool
	Logger *logrus.Logger
}

// ExecutionResult is the statement outcome surfaced to sessions and the
// wire protocol: Data is nil for statements that return no rows.
// The underlying error is retained (unserialized) so the batch CLI can
// classify it into an exit code.
type ExecutionResult struct {
	Success bool
	Message string
	Data    []condition.Row

	err error
}

// Err returns the underlying failure, nil on success.
func (r ExecutionResult) Err() error { return r.err }

// Engine owns the process-wide shared state: catalog, buffer pool,
// concurrency manager and log file.
type Engine struct {
	cfg   Config
	cat   *catalog.Catalog
	store *storage.Engine
	ccm   concurrency.Manager
	rec   *recovery.Manager
	exec  *rowexec.Executor
	log   *logrus.Logger
}

// New builds an Engine and, when the durable log has an uncommitted
// tail, runs the recovery pass before accepting statements.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	cfg.Concurrency.Logger = cfg.Logger

	cat := catalog.New()
	store := storage.NewEngine(cat, cfg.BufferBytes)
	ccm, err := concurrency.New(cfg.Concurrency)
	if err != nil {
		return nil, err
	}

	var rec *recovery.Manager
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		logFile, err := recovery.OpenLog(filepath.Join(cfg.DataDir, "wal.log"))
		if err != nil {
			return nil, err
		}
		rec = recovery.NewManager(logFile, cfg.Logger)
	}

	e := &Engine{
		cfg:   cfg,
		cat:   cat,
		store: store,
		ccm:   ccm,
		rec:   rec,
		log:   cfg.Logger,
	}
	e.exec = rowexec.New(store, cat, ccm, rec, cfg.Logger)

	if rec != nil {
		needs, err := rec.NeedsRecovery()
		if err != nil {
			return nil, err
		}
		if needs {
			cfg.Logger.Info("engine: uncommitted log tail found, recovering")
			if err := rec.Recover(e.recoveryApplier(), nil); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// recoveryApplier adapts storage to the recovery pass; images are
// whole-table snapshots (see DESIGN.md).
func (e *Engine) recoveryApplier() recovery.Applier {
	return &tableApplier{store: e.store}
}

type tableApplier struct {
	store *storage.Engine
}

func (a *tableApplier) Redo(table string, after any) error {
	return a.store.ReplaceAll(table, decodeImage(after))
}

func (a *tableApplier) Undo(table string, before any) error {
	return a.store.ReplaceAll(table, decodeImage(before))
}

func decodeImage(image any) []condition.Row {
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

// Catalog exposes the shared table catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// Store exposes the storage engine, for fixtures and the CLI's seeding
// paths.
func (e *Engine) Store() *storage.Engine { return e.store }

// Checkpoint writes a checkpoint record when a log is configured.
func (e *Engine) Checkpoint() error {
	if e.rec == nil {
		return nil
	}
	return e.rec.Checkpoint()
}

// Query runs one statement through the full pipeline and reports the
// outcome as a result value; parse, validation, execution and
// concurrency failures never escape as Go errors from here.
func (e *Engine) Query(ctx context.Context, sql string) ExecutionResult {
	parsed, err := parser.Parse(sql)
	if err != nil {
		return failure(err)
	}
	if err := validate.Validate(parsed.Root, e.cat); err != nil {
		return failure(err)
	}

	root := e.optimize(ctx, parsed)

	tid := concurrency.NextTID()
	// BEGIN_TRANSACTION begins and terminates its own transaction inside
	// the executor; a standalone COMMIT/ABORT root terminates the one
	// opened here. Everything else is auto-committed around the statement.
	ownTxn := root.Type != plan.BeginTxn
	selfTerminating := root.Type == plan.Commit
	if ownTxn {
		if err := e.ccm.Begin(tid); err != nil {
			return failure(err)
		}
		if e.rec != nil {
			if err := e.rec.LogBegin(tid); err != nil {
				return failure(err)
			}
		}
	}

	res, err := e.exec.Execute(ctx, root, tid)
	if err != nil {
		if ownTxn && !selfTerminating {
			_ = e.abortOwn(tid)
		}
		return failure(err)
	}
	if ownTxn && !selfTerminating {
		if err := e.commitOwn(tid); err != nil {
			return failure(err)
		}
	}
	return success(res)
}

func (e *Engine) commitOwn(tid uint64) error {
	txn := e.ccm.Transaction(tid)
	if err := e.ccm.Commit(tid); err != nil {
		_ = e.abortOwn(tid)
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

func (e *Engine) abortOwn(tid uint64) error {
	_ = e.ccm.Abort(tid)
	if e.rec == nil {
		return nil
	}
	if err := e.rec.Rollback(e.recoveryApplier(), tid); err != nil {
		return err
	}
	return e.rec.LogAbort(tid)
}

// optimize applies the deterministic rewrites once and then the genetic
// search, to query-shaped roots only (PROJECT, or LIMIT over PROJECT).
// A GA failure falls back to the validated, deterministically rewritten
// plan — never a silent miscompile.
func (e *Engine) optimize(ctx context.Context, parsed plan.ParsedQuery) *plan.Node {
	root := parsed.Root
	if !isQueryRoot(root) {
		return root
	}

	rewritten := rules.EliminateProjections(root.Clone(true))
	rewritten = rules.PushdownFilters(rewritten, e.cat)
	rewritten = rules.PushdownProjections(rewritten, e.cat)

	if e.cfg.SkipGA {
		return rewritten
	}
	best, _, err := optimizer.NewEngine(e.cfg.Optimizer).Optimize(ctx, rewritten)
	if err != nil || best == nil {
		e.log.WithError(err).Warn("engine: genetic optimizer failed, using pre-GA plan")
		return rewritten
	}
	return best
}

func isQueryRoot(root *plan.Node) bool {
	if root.Type == plan.Project {
		return true
	}
	return root.Type == plan.Limit && len(root.Children) == 1 &&
		root.Children[0].Type == plan.Project
}

func failure(err error) ExecutionResult {
	return ExecutionResult{Success: false, Message: err.Error(), err: err}
}

func success(res rowexec.Result) ExecutionResult {
	msg := "OK"
	if res.Rows == nil && res.Affected > 0 {
		msg = "OK, " + strconv.Itoa(res.Affected) + " row(s) affected"
	}
	return ExecutionResult{Success: true, Message: msg, Data: res.Rows}
}

// ExitCode maps a statement outcome to the batch CLI's exit codes:
// 0 success, 1 parse/validation error, 2 transaction aborted, 3 storage
// I/O error, 4 internal error.
func ExitCode(res ExecutionResult) int {
	if res.Success {
		return 0
	}
	err := res.err
	switch {
	case err == nil:
		return 4
	case token.ErrLexical.Is(err),
		token.ErrUnterminatedString.Is(err),
		parser.ErrParse.Is(err),
		parser.ErrEmptyInput.Is(err),
		parser.ErrUnterminatedTransaction.Is(err),
		validate.ErrQueryValidation.Is(err):
		return 1
	case concurrency.ErrTxnAborted.Is(err),
		concurrency.ErrLockTimeout.Is(err),
		concurrency.ErrTxnInactive.Is(err):
		return 2
	case storage.ErrStorageIO.Is(err), storage.ErrPageNotFound.Is(err):
		return 3
	default:
		return 4
	}
}
