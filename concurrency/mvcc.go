package concurrency

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type version struct {
	value    any
	commitTS uint64
	writer   uint64
}

type mvccTxn struct {
	*Transaction
	snapshotTS uint64
	writes     map[string]any
}

// MVCC is the snapshot-read strategy: every transaction
// records a snapshot timestamp at begin, reads return the newest version
// committed at or before that snapshot, and writes build new versions
// that are stamped atomically at commit. Write-write conflicts resolve
// first-committer-wins: the later committer aborts. Isolation level is
// snapshot isolation, an explicit design choice distinct from the other
// three strategies' serializability.
type MVCC struct {
	mu       sync.Mutex
	commitTS uint64
	versions map[string][]version
	txns     map[uint64]*mvccTxn
	log      *logrus.Logger
}

// NewMVCC constructs the multi-version manager.
func NewMVCC(log *logrus.Logger) *MVCC {
	return &MVCC{
		versions: map[string][]version{},
		txns:     map[uint64]*mvccTxn{},
		log:      log,
	}
}

func (m *MVCC) Begin(tid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns[tid] = &mvccTxn{
		Transaction: newTransaction(tid, m.commitTS),
		snapshotTS:  m.commitTS,
		writes:      map[string]any{},
	}
	return nil
}

func (m *MVCC) Transaction(tid uint64) *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.txns[tid]; t != nil {
		return t.Transaction
	}
	return nil
}

func (m *MVCC) activeLocked(tid uint64) (*mvccTxn, error) {
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

// RequestRead never blocks and never fails for an active transaction:
// snapshot reads are always serviceable.
func (m *MVCC) RequestRead(tid uint64, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, err := m.activeLocked(tid)
	if err != nil {
		return err
	}
	txn.ReadSet[object] = true
	return nil
}

// RequestWrite registers intent; the first-committer-wins check happens
// at commit against versions committed after this snapshot.
func (m *MVCC) RequestWrite(tid uint64, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, err := m.activeLocked(tid)
	if err != nil {
		return err
	}
	txn.WriteSet[object] = true
	return nil
}

// Read returns the value visible to tid: its own uncommitted write if
// one exists, else the newest version with commitTS <= the transaction's
// snapshot. ok=false when no visible version exists.
func (m *MVCC) Read(tid uint64, object string) (value any, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, err := m.activeLocked(tid)
	if err != nil {
		return nil, false, err
	}
	txn.ReadSet[object] = true
	if v, own := txn.writes[object]; own {
		return v, true, nil
	}
	best := -1
	for i, ver := range m.versions[object] {
		if ver.commitTS <= txn.snapshotTS {
			if best < 0 || ver.commitTS > m.versions[object][best].commitTS {
				best = i
			}
		}
	}
	if best < 0 {
		return nil, false, nil
	}
	return m.versions[object][best].value, true, nil
}

// Write buffers a new uncommitted version tagged with the transaction id.
func (m *MVCC) Write(tid uint64, object string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, err := m.activeLocked(tid)
	if err != nil {
		return err
	}
	txn.WriteSet[object] = true
	txn.writes[object] = value
	return nil
}

// Commit stamps every buffered version with one commit timestamp
// atomically. First-committer-wins: if any written object gained a
// committed version after this transaction's snapshot, the committer
// aborts.
func (m *MVCC) Commit(tid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, err := m.activeLocked(tid)
	if err != nil {
		return err
	}
	txn.Status = StatusCommitting
	for object := range txn.WriteSet {
		for _, ver := range m.versions[object] {
			if ver.commitTS > txn.snapshotTS {
				txn.Status = StatusAborted
				txn.AbortedBy = "first-committer-wins conflict on " + object
				m.log.WithFields(logrus.Fields{"tid": tid, "object": object}).
					Info("mvcc: write-write conflict, aborting later committer")
				return ErrTxnAborted.New(tid, txn.AbortedBy)
			}
		}
	}
	m.commitTS++
	for object, value := range txn.writes {
		m.versions[object] = append(m.versions[object], version{
			value:    value,
			commitTS: m.commitTS,
			writer:   tid,
		})
	}
	txn.Status = StatusCommitted
	txn.writes = nil
	return nil
}

func (m *MVCC) Abort(tid uint64) error {
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
	txn.writes = nil
	return nil
}
