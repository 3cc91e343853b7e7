// Package recovery implements the failure-recovery manager: an
// append-only write-ahead log whose records describe transaction
// begins, before/after images, commits, aborts and checkpoints, plus
// the REDO/UNDO recovery pass run at startup.
package recovery

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	srcderrors "gopkg.in/src-d/go-errors.v1"
)

// ErrRecovery is the "recovery failed" error kind; a failure of the
// recovery pass itself is fatal to startup.
var ErrRecovery = srcderrors.NewKind("recovery failed: %s")

// RecordType tags one log record.
type RecordType string

const (
	RecordBegin      RecordType = "BEGIN"
	RecordWrite      RecordType = "WRITE"
	RecordCommit     RecordType = "COMMIT"
	RecordAbort      RecordType = "ABORT"
	RecordCheckpoint RecordType = "CHECKPOINT"
)

// Record is one append-only log entry. WRITE records carry the before
// and after images of the object they describe; the images are arbitrary
// JSON-encodable values (whole rows at the executor's granularity).
type Record struct {
	LSN       uint64     `json:"lsn"`
	Type      RecordType `json:"type"`
	TID       uint64     `json:"tid,omitempty"`
	Object    string     `json:"object,omitempty"`
	Before    any        `json:"before,omitempty"`
	After     any        `json:"after,omitempty"`
	Timestamp time.Time  `json:"ts"`
}

// LogFile is the database's shared append-only log: newline-delimited
// JSON records under a single writer latch. Records buffer in memory
// and reach stable storage on Flush; Flush-on-commit is what makes the
// log write-ahead.
type LogFile struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	w      *bufio.Writer
	lsn    uint64
	buffer []Record
}

// OpenLog opens (or creates) the log file at path and positions the LSN
// counter after the last durable record.
func OpenLog(path string) (*LogFile, error) {
	existing, err := readAll(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening log file %s", path)
	}
	l := &LogFile{path: path, f: f, w: bufio.NewWriter(f)}
	if n := len(existing); n > 0 {
		l.lsn = existing[n-1].LSN
	}
	return l, nil
}

// Append assigns rec the next LSN and buffers it. The record is not
// durable until Flush.
func (l *LogFile) Append(rec Record) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lsn++
	rec.LSN = l.lsn
	rec.Timestamp = time.Now()
	l.buffer = append(l.buffer, rec)
	return rec.LSN, nil
}

// Flush writes every buffered record to stable storage and syncs.
// Called on every commit (WAL: the log record must be durable before the
// corresponding page write).
func (l *LogFile) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range l.buffer {
		line, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "encoding log record")
		}
		if _, err := l.w.Write(append(line, '\n')); err != nil {
			return errors.Wrap(err, "writing log record")
		}
	}
	l.buffer = l.buffer[:0]
	if err := l.w.Flush(); err != nil {
		return errors.Wrap(err, "flushing log buffer")
	}
	if err := l.f.Sync(); err != nil {
		return errors.Wrap(err, "syncing log file")
	}
	return nil
}

// Close flushes and closes the underlying file.
func (l *LogFile) Close() error {
	if err := l.Flush(); err != nil {
		return err
	}
	return l.f.Close()
}

// Records returns every durable record in log order. Buffered,
// un-flushed records are not included: recovery only ever sees what
// reached stable storage.
func (l *LogFile) Records() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		return nil, errors.Wrap(err, "flushing before read")
	}
	return readAll(l.path)
}

func readAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening log file %s", path)
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, errors.Wrap(err, "decoding log record")
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "scanning log file %s", path)
	}
	return out, nil
}
