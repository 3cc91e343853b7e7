package recovery

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Criteria selects which part of the log a partial recovery replays:
// exactly one of TransactionID or Timestamp must be set. A nil Criteria
// means full recovery.
type Criteria struct {
	TransactionID *uint64
	Timestamp     *time.Time
}

func (c *Criteria) matches(rec Record) bool {
	if c == nil {
		return true
	}
	if c.TransactionID != nil {
		return rec.TID == *c.TransactionID
	}
	if c.Timestamp != nil {
		return !rec.Timestamp.Before(*c.Timestamp)
	}
	return true
}

// Applier is the storage-side callback surface the recovery pass drives:
// REDO re-applies a committed after-image, UNDO restores an uncommitted
// write's before-image.
type Applier interface {
	Redo(object string, after any) error
	Undo(object string, before any) error
}

// Manager owns the write-ahead log and the recovery pass. Every write's
// log record must be flushed before the corresponding page write is
// flushed; the executor enforces that ordering by calling LogCommit
// before the buffer pool's own flush.
type Manager struct {
	log *LogFile
	lg  *logrus.Logger

	mu     sync.Mutex
	active map[uint64][]Record // in-flight write records, for live rollback
}

// NewManager wraps an opened LogFile.
func NewManager(log *LogFile, lg *logrus.Logger) *Manager {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &Manager{log: log, lg: lg, active: map[uint64][]Record{}}
}

// LogBegin appends a transaction-begin record.
func (m *Manager) LogBegin(tid uint64) error {
	_, err := m.log.Append(Record{Type: RecordBegin, TID: tid})
	return err
}

// LogWrite appends a before/after image pair for one object write and
// tracks it in the in-flight set so a live abort can roll it back before
// the record ever reaches stable storage.
func (m *Manager) LogWrite(tid uint64, object string, before, after any) error {
	rec := Record{
		Type:   RecordWrite,
		TID:    tid,
		Object: object,
		Before: before,
		After:  after,
	}
	if _, err := m.log.Append(rec); err != nil {
		return err
	}
	m.mu.Lock()
	m.active[tid] = append(m.active[tid], rec)
	m.mu.Unlock()
	return nil
}

// LogCommit appends the commit record and flushes the log to stable
// storage — the write-ahead discipline's synchronization point.
func (m *Manager) LogCommit(tid uint64) error {
	if _, err := m.log.Append(Record{Type: RecordCommit, TID: tid}); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.active, tid)
	m.mu.Unlock()
	return m.log.Flush()
}

// LogAbort appends an abort record (flushed so recovery never mistakes
// the transaction for in-flight).
func (m *Manager) LogAbort(tid uint64) error {
	if _, err := m.log.Append(Record{Type: RecordAbort, TID: tid}); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.active, tid)
	m.mu.Unlock()
	return m.log.Flush()
}

// Rollback undoes tid's in-flight writes in reverse order — the live
// abort path, distinct from crash recovery: the records may still be
// buffer-only, so it works off the in-flight set rather than the
// durable log.
func (m *Manager) Rollback(applier Applier, tid uint64) error {
	m.mu.Lock()
	records := m.active[tid]
	delete(m.active, tid)
	m.mu.Unlock()
	for i := len(records) - 1; i >= 0; i-- {
		if err := applier.Undo(records[i].Object, records[i].Before); err != nil {
			return ErrRecovery.New("rollback of " + records[i].Object + ": " + err.Error())
		}
	}
	return nil
}

// Checkpoint appends a checkpoint record and flushes. Recovery scans
// backward only as far as the most recent checkpoint.
func (m *Manager) Checkpoint() error {
	if _, err := m.log.Append(Record{Type: RecordCheckpoint}); err != nil {
		return err
	}
	if err := m.log.Flush(); err != nil {
		return err
	}
	m.lg.Info("recovery: checkpoint written")
	return nil
}

// NeedsRecovery reports whether the durable log has an uncommitted tail:
// a transaction with a BEGIN or WRITE record but no COMMIT/ABORT.
func (m *Manager) NeedsRecovery() (bool, error) {
	records, err := m.log.Records()
	if err != nil {
		return false, err
	}
	open := map[uint64]bool{}
	for _, rec := range records {
		switch rec.Type {
		case RecordBegin, RecordWrite:
			open[rec.TID] = true
		case RecordCommit, RecordAbort:
			delete(open, rec.TID)
		}
	}
	return len(open) > 0, nil
}

// Recover runs the recovery pass: scan backward to the most recent
// checkpoint, then forward from there; REDO every committed
// transaction's after-images in log order; UNDO every uncommitted or
// aborted transaction's writes in reverse log order. criteria restricts
// the replay (nil replays everything). Recovery is idempotent: running
// it again over the recovered log re-applies the same images to the same
// values.
func (m *Manager) Recover(applier Applier, criteria *Criteria) error {
	records, err := m.log.Records()
	if err != nil {
		return ErrRecovery.New(err.Error())
	}

	start := 0
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Type == RecordCheckpoint {
			start = i
			break
		}
	}
	tail := records[start:]

	committed := map[uint64]bool{}
	aborted := map[uint64]bool{}
	for _, rec := range tail {
		switch rec.Type {
		case RecordCommit:
			committed[rec.TID] = true
		case RecordAbort:
			aborted[rec.TID] = true
		}
	}

	redone, undone := 0, 0
	for _, rec := range tail {
		if rec.Type != RecordWrite || !committed[rec.TID] || !criteria.matches(rec) {
			continue
		}
		if err := applier.Redo(rec.Object, rec.After); err != nil {
			return ErrRecovery.New("redo of " + rec.Object + ": " + err.Error())
		}
		redone++
	}
	for i := len(tail) - 1; i >= 0; i-- {
		rec := tail[i]
		if rec.Type != RecordWrite || committed[rec.TID] || !criteria.matches(rec) {
			continue
		}
		if err := applier.Undo(rec.Object, rec.Before); err != nil {
			return ErrRecovery.New("undo of " + rec.Object + ": " + err.Error())
		}
		undone++
	}

	m.lg.WithFields(logrus.Fields{"redo": redone, "undo": undone}).
		Info("recovery: pass complete")

	// Close the recovered tail: every still-open transaction is marked
	// aborted so a second pass over the log is a no-op for them.
	open := map[uint64]bool{}
	for _, rec := range tail {
		switch rec.Type {
		case RecordBegin, RecordWrite:
			if !committed[rec.TID] && !aborted[rec.TID] {
				open[rec.TID] = true
			}
		}
	}
	for tid := range open {
		if err := m.LogAbort(tid); err != nil {
			return ErrRecovery.New(err.Error())
		}
	}
	return nil
}
