package sstable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minikv/minikv/record"
)

func writeTestSST(t *testing.T, path string, entries []record.SSTEntry) {
	t.Helper()
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteAll(entries))
	require.NoError(t, w.Close())
}

func TestWriteAndLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename(1))
	writeTestSST(t, path, []record.SSTEntry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), IsTombstone: true},
	})

	r, err := Open(path, 1)
	require.NoError(t, err)

	res, val, err := r.Lookup([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, Found, res)
	require.Equal(t, []byte("1"), val)

	res, _, err = r.Lookup([]byte("c"))
	require.NoError(t, err)
	require.Equal(t, FoundTombstone, res)

	res, _, err = r.Lookup([]byte("missing"))
	require.NoError(t, err)
	require.Equal(t, NotFound, res)
}

func TestIteratorIsOrdered(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename(1))
	writeTestSST(t, path, []record.SSTEntry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("z"), Value: []byte("3")},
	})

	r, err := Open(path, 1)
	require.NoError(t, err)
	it, err := r.Iterator()
	require.NoError(t, err)
	defer it.Close()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Entry().Key))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"a", "b", "z"}, keys)
}

func TestWriterAtomicRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename(1))

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteEntry(record.SSTEntry{Key: []byte("a"), Value: []byte("1")}))

	// Before Close, only the temp file exists.
	_, statErr := os.Stat(path)
	require.Error(t, statErr)

	require.NoError(t, w.Close())
	_, statErr = os.Stat(path)
	require.NoError(t, statErr)
}

func TestAbortLeavesNoFinalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename(1))

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteEntry(record.SSTEntry{Key: []byte("a"), Value: []byte("1")}))
	require.NoError(t, w.Abort())

	_, statErr := os.Stat(path)
	require.Error(t, statErr)
}

func TestDiscoverOrdinals(t *testing.T) {
	dir := t.TempDir()
	writeTestSST(t, filepath.Join(dir, Filename(2)), []record.SSTEntry{{Key: []byte("a"), Value: []byte("1")}})
	writeTestSST(t, filepath.Join(dir, Filename(1)), []record.SSTEntry{{Key: []byte("a"), Value: []byte("1")}})

	ordinals, paths, err := DiscoverOrdinals(dir)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, ordinals)
	require.Len(t, paths, 2)
}
