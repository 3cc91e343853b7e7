package concurrency

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LockMode is the lock table's compatibility dimension: shared for
// reads, exclusive for writes. The only compatible pairing is (S,S).
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

func (m LockMode) String() string {
	if m == LockExclusive {
		return "X"
	}
	return "S"
}

type lockState struct {
	holders map[uint64]LockMode
	waiters int
}

// TwoPhaseLocking is the strict two-phase locking strategy with
// wound-wait deadlock handling (DESIGN.md "2PL victim selection"): an
// older transaction requesting a lock held by a younger one preempts
// (aborts) the younger holder; a younger requester waits on the older
// holder. Wound-wait keeps every wait edge pointing old→young, so the
// wait-for graph cannot form a cycle and no separate cycle scan is
// needed. Locks are released on commit/abort only.
type TwoPhaseLocking struct {
	mu      sync.Mutex
	cond    *sync.Cond
	locks   map[string]*lockState
	txns    map[uint64]*Transaction
	timeout time.Duration
	log     *logrus.Logger
}

// NewTwoPhaseLocking constructs the lock-based manager with the given
// per-request wait timeout.
func NewTwoPhaseLocking(timeout time.Duration, log *logrus.Logger) *TwoPhaseLocking {
	m := &TwoPhaseLocking{
		locks:   map[string]*lockState{},
		txns:    map[uint64]*Transaction{},
		timeout: timeout,
		log:     log,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *TwoPhaseLocking) Begin(tid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns[tid] = newTransaction(tid, tid)
	return nil
}

func (m *TwoPhaseLocking) Transaction(tid uint64) *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txns[tid]
}

func (m *TwoPhaseLocking) RequestRead(tid uint64, object string) error {
	if err := m.acquire(tid, object, LockShared); err != nil {
		return err
	}
	m.mu.Lock()
	m.txns[tid].ReadSet[object] = true
	m.mu.Unlock()
	return nil
}

func (m *TwoPhaseLocking) RequestWrite(tid uint64, object string) error {
	if err := m.acquire(tid, object, LockExclusive); err != nil {
		return err
	}
	m.mu.Lock()
	m.txns[tid].WriteSet[object] = true
	m.mu.Unlock()
	return nil
}

// acquire blocks until the lock is grantable, the requester is wounded,
// or the timeout elapses. A blocked thread is always wakeable by the
// resolver's abort broadcast.
func (m *TwoPhaseLocking) acquire(tid uint64, object string, mode LockMode) error {
	deadline := time.Now().Add(m.timeout)
	timer := time.AfterFunc(m.timeout, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer timer.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		txn, ok := m.txns[tid]
		if !ok {
			return ErrUnknownTransaction.New(tid)
		}
		if txn.Status == StatusAborted {
			return ErrTxnAborted.New(tid, txn.AbortedBy)
		}
		if txn.Status != StatusActive {
			return ErrTxnInactive.New(tid, txn.Status)
		}

		st := m.locks[object]
		if st == nil {
			st = &lockState{holders: map[uint64]LockMode{}}
			m.locks[object] = st
		}
		if m.grantableLocked(st, tid, mode) {
			st.holders[tid] = maxMode(st.holders[tid], mode)
			return nil
		}

		// Wound-wait: preempt every conflicting holder younger than the
		// requester, then re-check; wait when every conflict is older.
		if m.woundYoungerLocked(st, tid, mode) {
			continue
		}
		if time.Now().After(deadline) {
			txn.Status = StatusAborted
			txn.AbortedBy = "lock timeout"
			m.releaseAllLocked(tid)
			m.cond.Broadcast()
			return ErrLockTimeout.New(tid, object)
		}
		st.waiters++
		m.cond.Wait()
		st.waiters--
	}
}

// grantableLocked reports whether tid may take mode on st right now:
// no other holder, only shared holders for a shared request, or an
// upgrade path where tid is the sole holder.
func (m *TwoPhaseLocking) grantableLocked(st *lockState, tid uint64, mode LockMode) bool {
	for holder, held := range st.holders {
		if holder == tid {
			continue
		}
		if mode == LockExclusive || held == LockExclusive {
			return false
		}
	}
	return true
}

// woundYoungerLocked aborts every conflicting holder with a larger tid
// (younger) than the requester. Returns true if at least one holder was
// wounded, meaning the requester should retry immediately.
func (m *TwoPhaseLocking) woundYoungerLocked(st *lockState, tid uint64, mode LockMode) bool {
	wounded := false
	for holder, held := range st.holders {
		if holder == tid {
			continue
		}
		conflicts := mode == LockExclusive || held == LockExclusive
		if !conflicts || holder < tid {
			continue
		}
		victim := m.txns[holder]
		if victim == nil || victim.Status != StatusActive {
			continue
		}
		victim.Status = StatusAborted
		victim.AbortedBy = "wounded by older transaction"
		m.releaseAllLocked(holder)
		m.log.WithFields(logrus.Fields{
			"victim":  holder,
			"wounder": tid,
		}).Warn("wound-wait: aborted younger lock holder")
		wounded = true
	}
	if wounded {
		m.cond.Broadcast()
	}
	return wounded
}

func maxMode(a, b LockMode) LockMode {
	if a == LockExclusive || b == LockExclusive {
		return LockExclusive
	}
	return LockShared
}

func (m *TwoPhaseLocking) Commit(tid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.txns[tid]
	if !ok {
		return ErrUnknownTransaction.New(tid)
	}
	if txn.Status == StatusAborted {
		return ErrTxnAborted.New(tid, txn.AbortedBy)
	}
	if txn.Status != StatusActive {
		return ErrTxnInactive.New(tid, txn.Status)
	}
	txn.Status = StatusCommitted
	m.releaseAllLocked(tid)
	m.cond.Broadcast()
	return nil
}

func (m *TwoPhaseLocking) Abort(tid uint64) error {
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
	m.releaseAllLocked(tid)
	m.cond.Broadcast()
	return nil
}

// releaseAllLocked drops every lock tid holds. Strict 2PL: only ever
// called on commit, abort, or wounding.
func (m *TwoPhaseLocking) releaseAllLocked(tid uint64) {
	for object, st := range m.locks {
		delete(st.holders, tid)
		if len(st.holders) == 0 && st.waiters == 0 {
			delete(m.locks, object)
		}
	}
}
