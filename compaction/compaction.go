// Package compaction merges a set of SSTs into one, resolving duplicate
// keys by newest-ordinal-wins and dropping tombstones once they have
// propagated to the oldest surviving layer.
package compaction

import (
	"bytes"
	"container/heap"
	"os"

	"github.com/pkg/errors"

	"github.com/minikv/minikv/record"
	"github.com/minikv/minikv/sstable"
)

// Input identifies one SST participating in a merge, paired with its
// ordinal so the merge can break same-key ties in favor of the newest
// table (greatest ordinal).
type Input struct {
	Path    string
	Ordinal uint64
}

// Run performs a k-way merge of inputs (streamed via sstable.Iterator, so
// memory use is independent of table size) and writes the result to
// outPath as a new SST. Duplicate keys across inputs resolve to the entry
// from the input with the greatest ordinal. Tombstones are preserved in
// the output unless dropTombstones is true, which the Engine sets when
// the inputs being merged are the complete set of SSTs for the store (so
// there is no older layer left for a tombstone to still be shadowing).
//
// On success, Run deletes the input files and returns the new Reader.
// Inputs are left untouched on any error before the output is renamed
// into place; an error after that (removing an input, or reopening the
// output) can leave some inputs already deleted.
func Run(inputs []Input, outPath string, outOrdinal uint64, dropTombstones bool) (*sstable.Reader, error) {
	if len(inputs) == 0 {
		return nil, errors.New("compaction: no inputs")
	}

	iters := make([]*tableIter, 0, len(inputs))
	defer func() {
		for _, it := range iters {
			_ = it.close()
		}
	}()
	for _, in := range inputs {
		r, err := sstable.Open(in.Path, in.Ordinal)
		if err != nil {
			return nil, err
		}
		it, err := newTableIter(r, in.Ordinal)
		if err != nil {
			return nil, err
		}
		iters = append(iters, it)
	}

	h := &mergeHeap{}
	for _, it := range iters {
		if err := it.advance(); err != nil {
			return nil, err
		}
		if it.valid {
			heap.Push(h, it)
		}
	}

	w, err := sstable.NewWriter(outPath)
	if err != nil {
		return nil, err
	}
	aborted := false
	defer func() {
		if aborted {
			_ = w.Abort()
		}
	}()

	var (
		curKey  []byte
		best    record.SSTEntry
		haveCur bool
		bestOrd uint64
	)
	flush := func() error {
		if !haveCur {
			return nil
		}
		if best.IsTombstone && dropTombstones {
			haveCur = false
			return nil
		}
		haveCur = false
		return w.WriteEntry(best)
	}

	for h.Len() > 0 {
		it := heap.Pop(h).(*tableIter)
		e := it.cur
		if !haveCur || !bytes.Equal(e.Key, curKey) {
			if err := flush(); err != nil {
				aborted = true
				return nil, err
			}
			curKey = append([]byte(nil), e.Key...)
			best = e
			bestOrd = it.ordinal
			haveCur = true
		} else if it.ordinal > bestOrd {
			best = e
			bestOrd = it.ordinal
		}

		if err := it.advance(); err != nil {
			aborted = true
			return nil, err
		}
		if it.valid {
			heap.Push(h, it)
		}
	}
	if err := flush(); err != nil {
		aborted = true
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	for _, in := range inputs {
		if err := os.Remove(in.Path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "compaction: remove input %s", in.Path)
		}
	}

	return sstable.Open(outPath, outOrdinal)
}

// tableIter wraps an sstable.Iterator with the ordinal needed to break
// same-key ties during the merge.
type tableIter struct {
	it      *sstable.Iterator
	ordinal uint64
	cur     record.SSTEntry
	valid   bool
}

func newTableIter(r *sstable.Reader, ordinal uint64) (*tableIter, error) {
	it, err := r.Iterator()
	if err != nil {
		return nil, err
	}
	return &tableIter{it: it, ordinal: ordinal}, nil
}

func (t *tableIter) advance() error {
	if t.it.Next() {
		t.cur = t.it.Entry()
		t.valid = true
		return nil
	}
	t.valid = false
	return t.it.Err()
}

func (t *tableIter) close() error {
	return t.it.Close()
}

// mergeHeap orders tableIters by current key, breaking ties by greatest
// ordinal first so the newest table's entry for a key is popped first
// among equal keys (Run still checks every popped entry for a key so
// correctness doesn't depend on pop order, but this ordering means the
// common case resolves on the first pop).
type mergeHeap []*tableIter

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	c := bytes.Compare(h[i].cur.Key, h[j].cur.Key)
	if c != 0 {
		return c < 0
	}
	return h[i].ordinal > h[j].ordinal
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(*tableIter)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
