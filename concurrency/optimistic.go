package concurrency

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type occTxn struct {
	*Transaction
	startTN uint64 // transaction number when the read phase began
	private map[string]any
}

type committedRecord struct {
	tn     uint64
	writes map[string]bool
}

// Optimistic is the three-phase validation strategy: reads
// see live copies while writes are buffered privately; at commit the
// transaction validates that no overlapping committed transaction wrote
// into its read-set, then its write-set joins the committed history under
// the manager's critical section. The privately buffered values are
// released at commit, not published: this manager keeps no shared value
// store. Conflicts abort the committing transaction.
type Optimistic struct {
	mu        sync.Mutex
	tnCounter uint64
	committed []committedRecord
	txns      map[uint64]*occTxn
	log       *logrus.Logger
}

// NewOptimistic constructs the optimistic-validation manager.
func NewOptimistic(log *logrus.Logger) *Optimistic {
	return &Optimistic{txns: map[uint64]*occTxn{}, log: log}
}

func (m *Optimistic) Begin(tid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns[tid] = &occTxn{
		Transaction: newTransaction(tid, m.tnCounter),
		startTN:     m.tnCounter,
		private:     map[string]any{},
	}
	return nil
}

func (m *Optimistic) Transaction(tid uint64) *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.txns[tid]; t != nil {
		return t.Transaction
	}
	return nil
}

func (m *Optimistic) activeLocked(tid uint64) (*occTxn, error) {
	txn, ok := m.txns[tid]
	if !ok {
		return nil, ErrUnknownTransaction.New(tid)
	}
	if txn.Status == StatusAborted {
		return nil, ErrTxnAborted.New(tid, txn.AbortedBy)
	}
	if txn.Status != StatusActive {
		return nil, ErrTxnInactive.New(tid, txn.Status)
	}
	return txn, nil
}

// RequestRead records object in the read-set; reads never block and
// never fail during the read phase.
func (m *Optimistic) RequestRead(tid uint64, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, err := m.activeLocked(tid)
	if err != nil {
		return err
	}
	txn.ReadSet[object] = true
	return nil
}

// RequestWrite records object in the write-set. The physical write stays
// in the transaction's private buffer until commit.
func (m *Optimistic) RequestWrite(tid uint64, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, err := m.activeLocked(tid)
	if err != nil {
		return err
	}
	txn.WriteSet[object] = true
	return nil
}

// BufferWrite stores a private, uncommitted value for object. The
// executor (or a test) reads it back with ReadBuffered before commit.
func (m *Optimistic) BufferWrite(tid uint64, object string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, err := m.activeLocked(tid)
	if err != nil {
		return err
	}
	txn.WriteSet[object] = true
	txn.private[object] = value
	return nil
}

// ReadBuffered returns tid's own private write for object, if any.
func (m *Optimistic) ReadBuffered(tid uint64, object string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.txns[tid]
	if !ok {
		return nil, false
	}
	v, ok := txn.private[object]
	return v, ok
}

// Commit runs the validation phase: any committed transaction whose
// validation window overlaps this one (tn > startTN) and whose write-set
// intersects this transaction's read-set is a conflict, aborting the
// committer. On success the transaction's write-set joins the committed
// history under the manager's mutex and its private buffer is released;
// the buffered values are not written anywhere.
func (m *Optimistic) Commit(tid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, err := m.activeLocked(tid)
	if err != nil {
		return err
	}
	txn.Status = StatusCommitting
	for _, rec := range m.committed {
		if rec.tn <= txn.startTN {
			continue
		}
		for object := range rec.writes {
			if txn.ReadSet[object] {
				txn.Status = StatusAborted
				txn.AbortedBy = "validation conflict on " + object
				m.log.WithFields(logrus.Fields{"tid": tid, "object": object}).
					Info("optimistic validation failed")
				return ErrTxnAborted.New(tid, txn.AbortedBy)
			}
		}
	}
	m.tnCounter++
	writes := make(map[string]bool, len(txn.WriteSet))
	for object := range txn.WriteSet {
		writes[object] = true
	}
	m.committed = append(m.committed, committedRecord{tn: m.tnCounter, writes: writes})
	txn.Status = StatusCommitted
	txn.private = nil
	return nil
}

func (m *Optimistic) Abort(tid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.txns[tid]
	if !ok {
		return ErrUnknownTransaction.New(tid)
	}
	if txn.Status == StatusActive || txn.Status == StatusCommitting {
		txn.Status = StatusAborted
		txn.AbortedBy = "explicit abort"
	}
	txn.private = nil
	return nil
}
