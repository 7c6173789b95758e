// Package sstable serializes a sorted key->value mapping to an immutable,
// text-line file and reads it back. Each line is "key\tvalue\n"; a
// tombstone value is the literal record.Tombstone sentinel. There is no
// header, footer, or index — a lookup is a linear scan that stops as soon
// as the file's ascending order proves the key can't appear later.
package sstable

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/minikv/minikv/record"
)

// ErrCorrupt is returned when a line can't be decoded as a well-formed SST
// record.
var ErrCorrupt = record.ErrMalformedRecord

// Filename returns the conventional SST filename for the given ordinal:
// zero-padded to 6 digits, e.g. sst_000001.sst. The greatest ordinal among
// a directory's SSTs is the newest.
func Filename(ordinal uint64) string {
	return fmt.Sprintf("sst_%06d.sst", ordinal)
}

// Writer accepts an already-sorted, already-deduplicated sequence of
// entries and writes them as one line apiece. It is atomic at
// file-creation granularity: it writes to a temporary path and renames
// into place on Close, so a crash mid-write never makes a partial file
// visible under its final name.
type Writer struct {
	finalPath string
	tmpPath   string
	f         *os.File
	w         *bufio.Writer
	size      int64
	closed    bool
}

// NewWriter opens a temporary file beside finalPath, ready to receive
// WriteEntry calls.
func NewWriter(finalPath string) (*Writer, error) {
	tmpPath := finalPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "sstable: open temp file %s", tmpPath)
	}
	return &Writer{
		finalPath: finalPath,
		tmpPath:   tmpPath,
		f:         f,
		w:         bufio.NewWriterSize(f, 64*1024),
	}, nil
}

// WriteEntry appends one record. Callers must supply entries in ascending
// key order; the writer does not sort or deduplicate.
func (w *Writer) WriteEntry(e record.SSTEntry) error {
	line := record.EncodeSST(e)
	n, err := w.w.Write(line)
	w.size += int64(n)
	if err != nil {
		return errors.Wrap(err, "sstable: write entry")
	}
	return nil
}

// WriteAll is a convenience wrapper over WriteEntry for a full slice of
// already-sorted entries, as produced by memtable.DrainSorted or a
// compaction merge.
func (w *Writer) WriteAll(entries []record.SSTEntry) error {
	for _, e := range entries {
		if err := w.WriteEntry(e); err != nil {
			return err
		}
	}
	return nil
}

// Size reports the number of bytes written so far.
func (w *Writer) Size() int64 {
	return w.size
}

// Close flushes, syncs, and atomically renames the temporary file into
// place under finalPath. On error the temporary file is left for cleanup;
// it never becomes visible under the final name.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.w.Flush(); err != nil {
		_ = w.f.Close()
		return errors.Wrap(err, "sstable: flush")
	}
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		return errors.Wrap(err, "sstable: fsync")
	}
	if err := w.f.Close(); err != nil {
		return errors.Wrap(err, "sstable: close temp file")
	}
	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		return errors.Wrapf(err, "sstable: rename %s to %s", w.tmpPath, w.finalPath)
	}
	return nil
}

// Abort discards the temporary file without publishing it, for callers
// that decide mid-write not to produce an SST after all.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.f.Close()
	return os.Remove(w.tmpPath)
}

// Reader gives lazy, in-order access to an SST's records and a point
// lookup. Readers never modify the file.
type Reader struct {
	Path    string
	Ordinal uint64
}

// Open associates a Reader with an existing SST file. It does not read
// the file; Open only validates that the path resolves to a readable
// file.
func Open(path string, ordinal uint64) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "sstable: open %s", path)
	}
	_ = f.Close()
	return &Reader{Path: path, Ordinal: ordinal}, nil
}

// LookupResult is the outcome of a point Lookup.
type LookupResult int

const (
	NotFound LookupResult = iota
	Found
	FoundTombstone
)

// Lookup scans the file in order for key, stopping as soon as the
// ascending order proves key cannot appear further on. It returns the
// entry's value on Found, or FoundTombstone if the file holds a tombstone
// for key.
func (r *Reader) Lookup(key []byte) (LookupResult, []byte, error) {
	it, err := r.Iterator()
	if err != nil {
		return NotFound, nil, err
	}
	defer it.Close()

	target := string(key)
	for it.Next() {
		e := it.Entry()
		k := string(e.Key)
		if k == target {
			if e.IsTombstone {
				return FoundTombstone, nil, nil
			}
			return Found, e.Value, nil
		}
		if k > target {
			break
		}
	}
	if err := it.Err(); err != nil {
		return NotFound, nil, err
	}
	return NotFound, nil, nil
}

// Iterator produces records from an SST in ascending key order.
type Iterator struct {
	f       *os.File
	scanner *bufio.Scanner
	cur     record.SSTEntry
	err     error
}

// Iterator opens a fresh, independent iterator over the file.
func (r *Reader) Iterator() (*Iterator, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "sstable: open %s", r.Path)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &Iterator{f: f, scanner: sc}, nil
}

// Next advances the iterator, returning false at EOF or on the first
// decode error (see Err).
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	for it.scanner.Scan() {
		line := it.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		e, err := record.DecodeSST(line)
		if err != nil {
			it.err = errors.Wrap(err, "sstable: decode")
			return false
		}
		it.cur = e
		return true
	}
	if err := it.scanner.Err(); err != nil {
		it.err = errors.Wrap(err, "sstable: scan")
	}
	return false
}

// Entry returns the record produced by the most recent successful Next.
func (it *Iterator) Entry() record.SSTEntry {
	return it.cur
}

// Err reports the error, if any, that stopped iteration early. It is nil
// on a clean EOF.
func (it *Iterator) Err() error {
	return it.err
}

// Close releases the underlying file handle.
func (it *Iterator) Close() error {
	return it.f.Close()
}

// DiscoverOrdinals scans dir for SST files and returns their ordinals and
// paths sorted ascending (oldest first). It is the basis for both ordinal
// assignment on Open (greatest existing + 1) and the newest-to-oldest read
// order used elsewhere.
func DiscoverOrdinals(dir string) (ordinals []uint64, paths []string, err error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "sstable: read dir %s", dir)
	}
	type pair struct {
		ordinal uint64
		path    string
	}
	var pairs []pair
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		var ord uint64
		if _, scanErr := fmt.Sscanf(e.Name(), "sst_%06d.sst", &ord); scanErr != nil {
			continue
		}
		pairs = append(pairs, pair{ordinal: ord, path: filepath.Join(dir, e.Name())})
	}
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j-1].ordinal > pairs[j].ordinal; j-- {
			pairs[j-1], pairs[j] = pairs[j], pairs[j-1]
		}
	}
	for _, p := range pairs {
		ordinals = append(ordinals, p.ordinal)
		paths = append(paths, p.path)
	}
	return ordinals, paths, nil
}
