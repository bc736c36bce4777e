// Package mergekey provides the deduplication index used by containers that
// reject entities whose merge-key tuple was already staged.
package mergekey

import (
	"encoding/json"
	"sort"
	"strings"
)

// Index is a hash set over merge-key tuples. It is owned by exactly one container
// and is not safe for concurrent use.
type Index struct {
	seen map[string]struct{}
}

// New creates an empty index.
func New() *Index {
	return &Index{seen: make(map[string]struct{})}
}

// NewWithCapacity creates an empty index sized for n tuples.
func NewWithCapacity(n int) *Index {
	return &Index{seen: make(map[string]struct{}, n)}
}

// TryInsert records tuple and returns true if it was not present yet.
func (i *Index) TryInsert(tuple []any) bool {
	key := Key(tuple)
	if _, ok := i.seen[key]; ok {
		return false
	}
	i.seen[key] = struct{}{}
	return true
}

// Insert records tuple regardless of whether it is already present.
func (i *Index) Insert(tuple []any) {
	i.seen[Key(tuple)] = struct{}{}
}

// Contains reports whether tuple has been recorded.
func (i *Index) Contains(tuple []any) bool {
	_, ok := i.seen[Key(tuple)]
	return ok
}

// Len returns the number of distinct tuples recorded.
func (i *Index) Len() int {
	return len(i.seen)
}

// Key returns the canonical encoding of a tuple. Values that the store would
// consider equal (e.g. int 1 and float 1.0) share a key.
func Key(tuple []any) string {
	var b strings.Builder
	b.WriteByte('[')
	for n, v := range tuple {
		if n > 0 {
			b.WriteByte(',')
		}
		canonicalize(&b, v)
	}
	b.WriteByte(']')
	return b.String()
}

// canonicalize writes a deterministic representation of v, sorting map keys
// and recursing into arrays
func canonicalize(b *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for n, k := range keys {
			if n > 0 {
				b.WriteByte(',')
			}
			keyJSON, _ := json.Marshal(k)
			b.Write(keyJSON)
			b.WriteByte(':')
			canonicalize(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for n, item := range val {
			if n > 0 {
				b.WriteByte(',')
			}
			canonicalize(b, item)
		}
		b.WriteByte(']')
	default:
		// primitives and typed slices use their JSON encoding
		raw, err := json.Marshal(val)
		if err != nil {
			raw, _ = json.Marshal(err.Error())
		}
		b.Write(raw)
	}
}
