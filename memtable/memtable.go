// Package memtable holds the ordered, in-memory key→value mapping that
// absorbs writes between flushes.
package memtable

import (
	"sort"

	"github.com/minikv/minikv/record"
)

// entry is the in-memory shape of a single key's latest write.
type entry struct {
	value     []byte
	tombstone bool
}

// MemTable is a Key -> (kind, value) mapping holding at most one entry per
// key; later writes to the same key replace earlier ones. Size() counts
// logical operations absorbed since creation, not distinct keys, driving
// the Engine's flush threshold. A MemTable is created fresh on engine open
// and after every flush; it is not reused.
type MemTable struct {
	byKey map[string]entry
	ops   int
}

// New returns an empty MemTable.
func New() *MemTable {
	return &MemTable{byKey: make(map[string]entry)}
}

// Put records a PUT for key, overwriting any prior entry for the same key.
func (m *MemTable) Put(key, value []byte) {
	m.byKey[string(key)] = entry{value: cloneBytes(value)}
	m.ops++
}

// Delete records a tombstone for key, overwriting any prior entry.
func (m *MemTable) Delete(key []byte) {
	m.byKey[string(key)] = entry{tombstone: true}
	m.ops++
}

// Get reports the latest write for key: found=false means absent, found
// with tombstone=true means the key was deleted.
func (m *MemTable) Get(key []byte) (value []byte, tombstone bool, found bool) {
	e, ok := m.byKey[string(key)]
	if !ok {
		return nil, false, false
	}
	return cloneBytes(e.value), e.tombstone, true
}

// Size returns the number of logical writes absorbed since creation. This
// is an operation count, not a distinct-key or byte count: a caller that
// prefers byte-size flush thresholds must track that separately.
func (m *MemTable) Size() int {
	return m.ops
}

// KeyCount returns the number of distinct keys currently held, for
// introspection (engine.Stats) rather than flush-threshold decisions.
func (m *MemTable) KeyCount() int {
	return len(m.byKey)
}

// DrainSorted returns every entry in ascending key order, ready to be
// written to an SST. It does not mutate the MemTable; the caller is
// expected to discard it afterward (the Engine replaces it with a fresh
// MemTable rather than clearing this one in place).
func (m *MemTable) DrainSorted() []record.SSTEntry {
	out := make([]record.SSTEntry, 0, len(m.byKey))
	for k, e := range m.byKey {
		out = append(out, record.SSTEntry{
			Key:         []byte(k),
			Value:       e.value,
			IsTombstone: e.tombstone,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Key) < string(out[j].Key)
	})
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
