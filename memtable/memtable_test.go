package memtable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	m := New()
	m.Put([]byte("a"), []byte("1"))
	v, tomb, found := m.Get([]byte("a"))
	require.True(t, found)
	require.False(t, tomb)
	require.Equal(t, []byte("1"), v)
}

func TestPutOverwrites(t *testing.T) {
	m := New()
	m.Put([]byte("a"), []byte("1"))
	m.Put([]byte("a"), []byte("2"))
	v, _, found := m.Get([]byte("a"))
	require.True(t, found)
	require.Equal(t, []byte("2"), v)
	require.Equal(t, 2, m.Size())
}

func TestDeleteShadowsPut(t *testing.T) {
	m := New()
	m.Put([]byte("a"), []byte("1"))
	m.Delete([]byte("a"))
	_, tomb, found := m.Get([]byte("a"))
	require.True(t, found)
	require.True(t, tomb)
}

func TestGetAbsent(t *testing.T) {
	m := New()
	_, _, found := m.Get([]byte("missing"))
	require.False(t, found)
}

func TestSizeCountsOperationsNotKeys(t *testing.T) {
	m := New()
	m.Put([]byte("a"), []byte("1"))
	m.Put([]byte("a"), []byte("2"))
	m.Put([]byte("b"), []byte("3"))
	require.Equal(t, 3, m.Size())
}

func TestDrainSortedAscending(t *testing.T) {
	m := New()
	m.Put([]byte("b"), []byte("2"))
	m.Put([]byte("a"), []byte("1"))
	m.Delete([]byte("c"))

	entries := m.DrainSorted()
	require.Len(t, entries, 3)
	require.Equal(t, "a", string(entries[0].Key))
	require.Equal(t, "b", string(entries[1].Key))
	require.Equal(t, "c", string(entries[2].Key))
	require.True(t, entries[2].IsTombstone)
}

func TestMutatingReturnedValueDoesNotAffectMemTable(t *testing.T) {
	m := New()
	m.Put([]byte("a"), []byte("1"))
	v, _, _ := m.Get([]byte("a"))
	v[0] = 'x'
	v2, _, _ := m.Get([]byte("a"))
	require.Equal(t, []byte("1"), v2)
}
