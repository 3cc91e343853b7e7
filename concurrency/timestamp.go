package concurrency

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type tsEntry struct {
	readTS  uint64
	writeTS uint64
}

// TimestampOrdering is the non-blocking timestamp strategy: each
// transaction is stamped at begin, per-object read/write timestamps
// gate every access, and a stale access aborts the transaction
// immediately. Aborted transactions restart (at the session layer) with
// a fresh Begin and therefore a new, larger timestamp.
type TimestampOrdering struct {
	mu      sync.Mutex
	nextTS  uint64
	objects map[string]*tsEntry
	txns    map[uint64]*Transaction
	thomas  bool
	log     *logrus.Logger
}

// NewTimestampOrdering constructs the timestamp-ordering manager.
// thomasWriteRule enables the optional rule that discards (rather than
// aborts on) a write older than the object's write timestamp.
func NewTimestampOrdering(thomasWriteRule bool, log *logrus.Logger) *TimestampOrdering {
	return &TimestampOrdering{
		objects: map[string]*tsEntry{},
		txns:    map[uint64]*Transaction{},
		thomas:  thomasWriteRule,
		log:     log,
	}
}

func (m *TimestampOrdering) Begin(tid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTS++
	m.txns[tid] = newTransaction(tid, m.nextTS)
	return nil
}

func (m *TimestampOrdering) Transaction(tid uint64) *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txns[tid]
}

func (m *TimestampOrdering) activeLocked(tid uint64) (*Transaction, error) {
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

func (m *TimestampOrdering) entryLocked(object string) *tsEntry {
	e := m.objects[object]
	if e == nil {
		e = &tsEntry{}
		m.objects[object] = e
	}
	return e
}

// RequestRead allows a read at ts iff ts >= write_ts; a stale read
// aborts the transaction (no waiting, ever).
func (m *TimestampOrdering) RequestRead(tid uint64, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, err := m.activeLocked(tid)
	if err != nil {
		return err
	}
	e := m.entryLocked(object)
	if txn.StartTS < e.writeTS {
		return m.abortLocked(txn, "read of "+object+" behind its write timestamp")
	}
	if txn.StartTS > e.readTS {
		e.readTS = txn.StartTS
	}
	txn.ReadSet[object] = true
	return nil
}

// RequestWrite allows a write at ts iff ts >= read_ts and ts >= write_ts.
// Under Thomas' write rule a write behind write_ts is silently discarded
// instead of aborting; the executor still performs the physical write,
// which is harmless at table granularity but noted for finer grains.
func (m *TimestampOrdering) RequestWrite(tid uint64, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, err := m.activeLocked(tid)
	if err != nil {
		return err
	}
	e := m.entryLocked(object)
	if txn.StartTS < e.readTS {
		return m.abortLocked(txn, "write of "+object+" behind its read timestamp")
	}
	if txn.StartTS < e.writeTS {
		if m.thomas {
			return nil
		}
		return m.abortLocked(txn, "write of "+object+" behind its write timestamp")
	}
	e.writeTS = txn.StartTS
	txn.WriteSet[object] = true
	return nil
}

func (m *TimestampOrdering) abortLocked(txn *Transaction, reason string) error {
	txn.Status = StatusAborted
	txn.AbortedBy = reason
	m.log.WithFields(logrus.Fields{"tid": txn.ID, "reason": reason}).
		Info("timestamp ordering: aborted transaction")
	return ErrTxnAborted.New(txn.ID, reason)
}

func (m *TimestampOrdering) Commit(tid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, err := m.activeLocked(tid)
	if err != nil {
		return err
	}
	txn.Status = StatusCommitted
	return nil
}

func (m *TimestampOrdering) Abort(tid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.txns[tid]
	if !ok {
		return ErrUnknownTransaction.New(tid)
	}
	if txn.Status == StatusActive {
		txn.Status = StatusAborted
		txn.AbortedBy = "explicit abort"
	}
	return nil
}
