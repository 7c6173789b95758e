package compaction

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minikv/minikv/record"
	"github.com/minikv/minikv/sstable"
)

func writeSST(t *testing.T, dir string, ordinal uint64, entries []record.SSTEntry) string {
	t.Helper()
	path := filepath.Join(dir, sstable.Filename(ordinal))
	w, err := sstable.NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteAll(entries))
	require.NoError(t, w.Close())
	return path
}

func TestRunNewestWinsAcrossInputs(t *testing.T) {
	dir := t.TempDir()
	p1 := writeSST(t, dir, 1, []record.SSTEntry{
		{Key: []byte("a"), Value: []byte("old")},
		{Key: []byte("b"), Value: []byte("keep")},
	})
	p2 := writeSST(t, dir, 2, []record.SSTEntry{
		{Key: []byte("a"), Value: []byte("new")},
	})

	out := filepath.Join(dir, sstable.Filename(3))
	r, err := Run([]Input{{Path: p1, Ordinal: 1}, {Path: p2, Ordinal: 2}}, out, 3, false)
	require.NoError(t, err)

	res, v, err := r.Lookup([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, sstable.Found, res)
	require.Equal(t, "new", string(v))

	res, v, err = r.Lookup([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, sstable.Found, res)
	require.Equal(t, "keep", string(v))
}

func TestRunDropsTombstonesWhenRequested(t *testing.T) {
	dir := t.TempDir()
	p1 := writeSST(t, dir, 1, []record.SSTEntry{
		{Key: []byte("x"), Value: []byte("1")},
	})
	p2 := writeSST(t, dir, 2, []record.SSTEntry{
		{Key: []byte("x"), IsTombstone: true},
	})

	out := filepath.Join(dir, sstable.Filename(3))
	r, err := Run([]Input{{Path: p1, Ordinal: 1}, {Path: p2, Ordinal: 2}}, out, 3, true)
	require.NoError(t, err)

	res, _, err := r.Lookup([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, sstable.NotFound, res)

	it, err := r.Iterator()
	require.NoError(t, err)
	defer it.Close()
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestRunPreservesTombstoneWhenOlderLayerMayRemain(t *testing.T) {
	dir := t.TempDir()
	p1 := writeSST(t, dir, 1, []record.SSTEntry{
		{Key: []byte("x"), IsTombstone: true},
	})

	out := filepath.Join(dir, sstable.Filename(2))
	r, err := Run([]Input{{Path: p1, Ordinal: 1}}, out, 2, false)
	require.NoError(t, err)

	res, _, err := r.Lookup([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, sstable.FoundTombstone, res)
}

func TestRunDeletesInputFiles(t *testing.T) {
	dir := t.TempDir()
	p1 := writeSST(t, dir, 1, []record.SSTEntry{{Key: []byte("a"), Value: []byte("1")}})
	p2 := writeSST(t, dir, 2, []record.SSTEntry{{Key: []byte("b"), Value: []byte("2")}})

	out := filepath.Join(dir, sstable.Filename(3))
	_, err := Run([]Input{{Path: p1, Ordinal: 1}, {Path: p2, Ordinal: 2}}, out, 3, false)
	require.NoError(t, err)

	require.NoFileExists(t, p1)
	require.NoFileExists(t, p2)
	require.FileExists(t, out)
}

func TestRunOutputIsSorted(t *testing.T) {
	dir := t.TempDir()
	p1 := writeSST(t, dir, 1, []record.SSTEntry{
		{Key: []byte("c"), Value: []byte("3")},
		{Key: []byte("z"), Value: []byte("9")},
	})
	p2 := writeSST(t, dir, 2, []record.SSTEntry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("m"), Value: []byte("5")},
	})

	out := filepath.Join(dir, sstable.Filename(3))
	r, err := Run([]Input{{Path: p1, Ordinal: 1}, {Path: p2, Ordinal: 2}}, out, 3, false)
	require.NoError(t, err)

	it, err := r.Iterator()
	require.NoError(t, err)
	defer it.Close()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Entry().Key))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"a", "c", "m", "z"}, keys)
}
