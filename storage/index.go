package storage

import (
	"fmt"
	"sort"
)

// IndexKind names the two supported index structures, "hash" and
// "btree". Layout is intentionally simplified (an in-memory posting map
// for hash, a sorted slice for btree); the binding requirement is
// result-set equivalence with or without an index.
type IndexKind string

const (
	IndexHash  IndexKind = "hash"
	IndexBTree IndexKind = "btree"
)

// Index maps a column value to the row positions (within Engine.Scan's
// flattened ordering) that hold it.
type Index interface {
	Insert(value any, rowPos int)
	Lookup(value any) []int
}

func newIndex(kind IndexKind) (Index, error) {
	switch kind {
	case IndexHash:
		return newHashIndex(), nil
	case IndexBTree:
		return newBTreeIndex(), nil
	default:
		return nil, ErrUnknownIndexKind.New(kind)
	}
}

type hashIndex struct {
	postings map[any][]int
}

func newHashIndex() *hashIndex { return &hashIndex{postings: map[any][]int{}} }

func (h *hashIndex) Insert(value any, rowPos int) {
	h.postings[value] = append(h.postings[value], rowPos)
}

func (h *hashIndex) Lookup(value any) []int { return h.postings[value] }

// btreeIndex keeps entries sorted by a stringified key so range-style
// lookups (beyond plain equality) are a binary search away; equality
// lookup is what SetIndex's callers exercise today.
type btreeIndex struct {
	keys    []string
	entries map[string][]int
}

func newBTreeIndex() *btreeIndex {
	return &btreeIndex{entries: map[string][]int{}}
}

func (b *btreeIndex) Insert(value any, rowPos int) {
	key := btreeKey(value)
	if _, ok := b.entries[key]; !ok {
		i := sort.SearchStrings(b.keys, key)
		b.keys = append(b.keys, "")
		copy(b.keys[i+1:], b.keys[i:])
		b.keys[i] = key
	}
	b.entries[key] = append(b.entries[key], rowPos)
}

func (b *btreeIndex) Lookup(value any) []int {
	return b.entries[btreeKey(value)]
}

func btreeKey(value any) string {
	switch v := value.(type) {
	case int:
		return fmt.Sprintf("n%024.6f", float64(v))
	case int64:
		return fmt.Sprintf("n%024.6f", float64(v))
	case float64:
		return fmt.Sprintf("n%024.6f", v)
	case string:
		return "s" + v
	case bool:
		if v {
			return "b1"
		}
		return "b0"
	case nil:
		return ""
	default:
		return fmt.Sprintf("x%v", v)
	}
}
