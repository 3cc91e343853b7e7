package storage

import errors "gopkg.in/src-d/go-errors.v1"

// ErrPageNotFound is returned by Heap.readPage/writePage when the
// requested page index is outside the heap's current extent.
var ErrPageNotFound = errors.NewKind("page not found: %d")

// ErrUnknownHeap is returned when the buffer pool is asked to serve a
// table that has never been registered via Engine.CreateTable.
var ErrUnknownHeap = errors.NewKind("unknown table heap: %s")

// ErrUnknownIndexKind is returned by SetIndex for an unrecognized index
// kind (hash and btree are the two supported).
var ErrUnknownIndexKind = errors.NewKind("unknown index kind: %s")

// ErrStorageIO marks a failure unrecoverable at the storage call site;
// callers abort the surrounding transaction.
var ErrStorageIO = errors.NewKind("storage I/O error: %s")
