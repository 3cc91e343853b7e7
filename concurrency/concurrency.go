// Package concurrency implements the pluggable concurrency-control
// manager: four interchangeable strategies (strict 2PL with wound-wait
// preemption, timestamp ordering, optimistic validation and MVCC
// snapshot reads) behind one uniform begin/read/write/commit/abort
// interface used by the executor.
package concurrency

import (
	"time"

	"github.com/sirupsen/logrus"
	errors "gopkg.in/src-d/go-errors.v1"
)

// ErrTxnAborted is the concurrency-abort error kind: the manager chose
// this transaction as a victim (or its own validation failed).
var ErrTxnAborted = errors.NewKind("transaction %d aborted: %s")

// ErrUnknownTransaction is returned for a tid that was never begun or
// whose resources were already released.
var ErrUnknownTransaction = errors.NewKind("unknown transaction: %d")

// ErrTxnInactive is returned when a statement arrives for a transaction
// that has already committed or aborted; subsequent statements are
// rejected until the next BEGIN.
var ErrTxnInactive = errors.NewKind("transaction %d is not active (status %s)")

// ErrLockTimeout is the per-request timeout failure of the lock-based
// strategy; it aborts the requester.
var ErrLockTimeout = errors.NewKind("transaction %d timed out waiting for lock on %s")

// Manager is the uniform strategy interface. Object ids are opaque
// strings; the executor uses table names, tests may use finer grains
// (row keys) directly.
type Manager interface {
	// Begin registers tid as a new active transaction. Strategies that
	// need a start timestamp stamp it here.
	Begin(tid uint64) error
	// RequestRead asks permission to read object. Lock-based mode may
	// block; every other strategy returns immediately.
	RequestRead(tid uint64, object string) error
	// RequestWrite asks permission to write object.
	RequestWrite(tid uint64, object string) error
	// Commit finishes tid, releasing its resources. Validation-based
	// strategies may refuse with ErrTxnAborted here.
	Commit(tid uint64) error
	// Abort rolls tid back, releasing its resources and waking any
	// thread blocked on them.
	Abort(tid uint64) error
	// Transaction returns tid's lifecycle record, or nil if unknown.
	Transaction(tid uint64) *Transaction
}

// Algorithm selects one of the four strategies.
type Algorithm string

const (
	AlgoTwoPhase   Algorithm = "2pl"
	AlgoTimestamp  Algorithm = "timestamp"
	AlgoOptimistic Algorithm = "optimistic"
	AlgoMVCC       Algorithm = "mvcc"
)

// Config parameterizes a Manager. LockTimeout applies to the lock-based
// strategy only (timestamp-based and MVCC never block).
// ThomasWriteRule enables the optional discard-instead-of-abort rule for
// stale writes under timestamp ordering.
type Config struct {
	Algorithm       Algorithm
	LockTimeout     time.Duration
	ThomasWriteRule bool
	Logger          *logrus.Logger
}

// DefaultLockTimeout bounds how long a lock request may wait before the
// requester is aborted.
const DefaultLockTimeout = 5 * time.Second

// New constructs the Manager selected by cfg.Algorithm.
func New(cfg Config) (Manager, error) {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	switch cfg.Algorithm {
	case AlgoTwoPhase, "":
		return NewTwoPhaseLocking(cfg.LockTimeout, cfg.Logger), nil
	case AlgoTimestamp:
		return NewTimestampOrdering(cfg.ThomasWriteRule, cfg.Logger), nil
	case AlgoOptimistic:
		return NewOptimistic(cfg.Logger), nil
	case AlgoMVCC:
		return NewMVCC(cfg.Logger), nil
	default:
		return nil, errors.NewKind("unknown concurrency algorithm: %s").New(cfg.Algorithm)
	}
}
