// Package engine orchestrates put/get/delete over a WAL, a MemTable, and
// a stack of SSTs, triggers flush and compaction, and drives crash
// recovery on open. It is the single entry point spec §4.7 describes;
// everything else in this module is a leaf it composes.
package engine

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/minikv/minikv/compaction"
	"github.com/minikv/minikv/config"
	"github.com/minikv/minikv/memtable"
	"github.com/minikv/minikv/metrics"
	"github.com/minikv/minikv/record"
	"github.com/minikv/minikv/sstable"
	"github.com/minikv/minikv/wal"
)

const walFilename = "wal.log"
const lockFilename = "LOCK"

// sstEntry is one live SST in the engine's stack, kept ascending by
// ordinal so the newest is always the last element.
type sstEntry struct {
	ordinal uint64
	path    string
	reader  *sstable.Reader
}

// Engine is the scoped resource opened against a single data directory.
// It owns the directory exclusively between Open and Close (spec §5); a
// second Open against the same directory fails fast rather than
// corrupting state silently.
type Engine struct {
	dir string
	cfg config.Config
	log *zap.Logger

	lock *flock.Flock

	mem         *memtable.MemTable
	w           *wal.WAL
	ssts        []sstEntry // ascending by ordinal
	nextOrdinal uint64

	metrics *metrics.Metrics
	state   state
}

// Open scans dir for SSTs, opens (or creates) the WAL, replays it into a
// fresh MemTable, performs the idempotent open-time compaction sweep, and
// resumes service in the Ready state.
func Open(dir string, cfg config.Config, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "engine: create data directory %s", dir)
	}

	lk := flock.New(filepath.Join(dir, lockFilename))
	locked, err := lk.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "engine: acquire directory lock")
	}
	if !locked {
		return nil, ErrAlreadyOpen
	}

	e := &Engine{
		dir:         dir,
		cfg:         cfg,
		log:         log,
		lock:        lk,
		mem:         memtable.New(),
		metrics:     metrics.New(),
		nextOrdinal: 1,
		state:       stateRecovering,
	}

	if err := e.cleanupTmpFiles(); err != nil {
		_ = lk.Unlock()
		return nil, err
	}

	if err := e.loadSSTs(); err != nil {
		_ = lk.Unlock()
		return nil, err
	}

	walPath := filepath.Join(dir, walFilename)
	policy := buildPolicy(cfg)
	w, err := wal.Open(walPath, policy)
	if err != nil {
		_ = lk.Unlock()
		return nil, err
	}
	w.OnSync = func() { e.metrics.WALSyncs.Inc() }
	e.w = w

	if err := wal.Replay(walPath, e.applyReplayed); err != nil {
		_ = e.w.Close()
		_ = lk.Unlock()
		return nil, errors.Wrap(err, "engine: replay WAL")
	}
	e.log.Debug("recovered from WAL", zap.String("dir", dir))

	if len(e.ssts) > 1 {
		// The sweep truncates the WAL, so replayed writes are flushed first.
		if e.mem.Size() > 0 {
			if err := e.flushLocked(); err != nil {
				_ = e.w.Close()
				_ = lk.Unlock()
				return nil, errors.Wrap(err, "engine: open-time flush")
			}
		}
		if err := e.compactLocked(); err != nil {
			_ = e.w.Close()
			_ = lk.Unlock()
			return nil, errors.Wrap(err, "engine: open-time compaction sweep")
		}
	}

	e.metrics.SSTCount.Set(float64(len(e.ssts)))
	e.state = stateReady
	return e, nil
}

func (e *Engine) applyReplayed(entry record.WALEntry) error {
	switch entry.Op {
	case record.OpPut:
		e.mem.Put(entry.Key, entry.Value)
	case record.OpDel:
		e.mem.Delete(entry.Key)
	default:
		return errors.Errorf("engine: unknown op %v during replay", entry.Op)
	}
	return nil
}

// Put appends a PUT record to the WAL, applies it to the MemTable, and
// triggers a flush if the threshold has been crossed.
func (e *Engine) Put(key, value []byte) error {
	if err := record.ValidateKey(key); err != nil {
		return err
	}
	if err := record.ValidateValue(value); err != nil {
		return err
	}
	if e.state == stateClosed {
		return ErrClosed
	}
	if err := e.w.Append(record.WALEntry{Op: record.OpPut, Key: key, Value: value}); err != nil {
		return errors.Wrap(err, "engine: put")
	}
	e.mem.Put(key, value)
	e.metrics.Puts.Inc()
	return e.maybeFlush()
}

// Delete appends a DEL record to the WAL, applies the tombstone to the
// MemTable, and triggers a flush if the threshold has been crossed.
func (e *Engine) Delete(key []byte) error {
	if err := record.ValidateKey(key); err != nil {
		return err
	}
	if e.state == stateClosed {
		return ErrClosed
	}
	if err := e.w.Append(record.WALEntry{Op: record.OpDel, Key: key}); err != nil {
		return errors.Wrap(err, "engine: delete")
	}
	e.mem.Delete(key)
	e.metrics.Deletes.Inc()
	return e.maybeFlush()
}

// Get probes the MemTable, then SSTs newest-to-oldest, returning the
// first hit. A tombstone at any layer means absent.
func (e *Engine) Get(key []byte) (value []byte, found bool, err error) {
	if err := record.ValidateKey(key); err != nil {
		return nil, false, err
	}
	if e.state == stateClosed {
		return nil, false, ErrClosed
	}
	e.metrics.Gets.Inc()

	if v, tombstone, ok := e.mem.Get(key); ok {
		if tombstone {
			return nil, false, nil
		}
		return v, true, nil
	}

	for i := len(e.ssts) - 1; i >= 0; i-- {
		res, v, err := e.ssts[i].reader.Lookup(key)
		if err != nil {
			return nil, false, errors.Wrapf(err, "engine: lookup in sst ordinal %d", e.ssts[i].ordinal)
		}
		switch res {
		case sstable.Found:
			return v, true, nil
		case sstable.FoundTombstone:
			return nil, false, nil
		}
	}
	return nil, false, nil
}

// Flush forces a checkpoint: syncs the WAL, drains the MemTable to a new
// SST, truncates the WAL, and resets the MemTable. A no-op MemTable still
// performs the checkpoint (an empty SST is not written; there is nothing
// to subsume).
func (e *Engine) Flush() error {
	if e.state == stateClosed {
		return ErrClosed
	}
	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	prev := e.state
	e.state = stateFlushing
	defer func() { e.state = prev }()

	if err := e.w.Sync(); err != nil {
		return errors.Wrap(err, "engine: flush: sync WAL")
	}

	entries := e.mem.DrainSorted()
	if len(entries) > 0 {
		ordinal := e.nextOrdinal
		e.nextOrdinal++
		path := filepath.Join(e.dir, sstable.Filename(ordinal))

		w, err := sstable.NewWriter(path)
		if err != nil {
			return errors.Wrap(err, "engine: flush: open sst writer")
		}
		if err := w.WriteAll(entries); err != nil {
			_ = w.Abort()
			return errors.Wrap(err, "engine: flush: write entries")
		}
		if err := w.Close(); err != nil {
			return errors.Wrap(err, "engine: flush: close sst writer")
		}

		r, err := sstable.Open(path, ordinal)
		if err != nil {
			return errors.Wrap(err, "engine: flush: open new sst")
		}
		e.ssts = append(e.ssts, sstEntry{ordinal: ordinal, path: path, reader: r})
		e.metrics.Flushes.Inc()
		e.metrics.SSTCount.Set(float64(len(e.ssts)))
		e.log.Debug("flushed memtable", zap.Uint64("ordinal", ordinal), zap.Int("entries", len(entries)))
	}

	if err := e.w.Truncate(); err != nil {
		return errors.Wrap(err, "engine: flush: truncate WAL")
	}
	e.mem = memtable.New()
	return nil
}

func (e *Engine) maybeFlush() error {
	if e.cfg.FlushThresholdOps <= 0 {
		return nil
	}
	if e.mem.Size() < e.cfg.FlushThresholdOps {
		return nil
	}
	return e.flushLocked()
}

// Compact merges every live SST into one newest-wins snapshot and drops
// exhausted tombstones. Any writes still sitting in the MemTable are
// flushed first, so the WAL is already durably subsumed by materialized
// SSTs by the time the merge runs — truncation is then not just a
// checkpoint formality but safe by construction.
func (e *Engine) Compact() error {
	if e.state == stateClosed {
		return ErrClosed
	}
	if e.mem.Size() > 0 {
		if err := e.flushLocked(); err != nil {
			return err
		}
	}
	return e.compactLocked()
}

func (e *Engine) compactLocked() error {
	if len(e.ssts) == 0 {
		return nil
	}
	prev := e.state
	e.state = stateCompacting
	defer func() { e.state = prev }()

	inputs := make([]compaction.Input, 0, len(e.ssts))
	for _, s := range e.ssts {
		inputs = append(inputs, compaction.Input{Path: s.path, Ordinal: s.ordinal})
	}

	outOrdinal := e.nextOrdinal
	e.nextOrdinal++
	outPath := filepath.Join(e.dir, sstable.Filename(outOrdinal))

	newReader, err := compaction.Run(inputs, outPath, outOrdinal, true)
	if err != nil {
		return errors.Wrap(err, "engine: compact")
	}

	e.ssts = []sstEntry{{ordinal: outOrdinal, path: outPath, reader: newReader}}
	if err := e.w.Truncate(); err != nil {
		return errors.Wrap(err, "engine: compact: truncate WAL")
	}
	e.metrics.Compactions.Inc()
	e.metrics.SSTCount.Set(1)
	e.log.Debug("compacted", zap.Uint64("ordinal", outOrdinal), zap.Int("inputs", len(inputs)))
	return nil
}

// Close flushes pending WAL state and releases the directory lock. After
// Close, every operation returns ErrClosed.
func (e *Engine) Close() error {
	if e.state == stateClosed {
		return nil
	}
	var firstErr error
	if err := e.w.Sync(); err != nil {
		firstErr = err
	}
	if err := e.w.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	e.state = stateClosed
	if firstErr != nil {
		return errors.Wrap(firstErr, "engine: close")
	}
	return nil
}

// SimulateCrash releases the directory lock without syncing or closing
// the WAL, modeling an unclean process exit for benchmark/test harnesses
// (spec §8 S5/S6). It is not part of the engine's core contract: a real
// crash is a process exit, not a method call, but this gives an
// in-process harness the same "WAL may hold an un-synced tail" starting
// point for measuring recovery without forking a subprocess.
func (e *Engine) SimulateCrash() error {
	e.state = stateClosed
	return e.lock.Unlock()
}

// Metrics returns the engine's counters and gauge together with the
// private Prometheus registry they are registered in (its Registry field).
// Nothing in this package serves it; an embedder wires its own
// promhttp.Handler against that registry if it wants an endpoint.
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

func (e *Engine) cleanupTmpFiles() error {
	ents, err := os.ReadDir(e.dir)
	if err != nil {
		return errors.Wrapf(err, "engine: read data directory %s", e.dir)
	}
	for _, ent := range ents {
		if ent.IsDir() {
			continue
		}
		if filepath.Ext(ent.Name()) == ".tmp" {
			_ = os.Remove(filepath.Join(e.dir, ent.Name()))
		}
	}
	return nil
}

func (e *Engine) loadSSTs() error {
	ordinals, paths, err := sstable.DiscoverOrdinals(e.dir)
	if err != nil {
		return err
	}
	e.ssts = make([]sstEntry, 0, len(ordinals))
	var maxOrdinal uint64
	for i, ord := range ordinals {
		r, err := sstable.Open(paths[i], ord)
		if err != nil {
			return errors.Wrapf(err, "engine: open existing sst %s", paths[i])
		}
		e.ssts = append(e.ssts, sstEntry{ordinal: ord, path: paths[i], reader: r})
		if ord > maxOrdinal {
			maxOrdinal = ord
		}
	}
	sort.Slice(e.ssts, func(i, j int) bool { return e.ssts[i].ordinal < e.ssts[j].ordinal })
	e.nextOrdinal = maxOrdinal + 1
	return nil
}

func buildPolicy(cfg config.Config) wal.Policy {
	switch cfg.WALPolicy {
	case config.PolicyBatch:
		return wal.NewBatchPolicy(cfg.BatchN, cfg.BatchInterval())
	case config.PolicyAdaptive:
		return wal.NewAdaptivePolicy(cfg.AdaptiveMin, cfg.AdaptiveMax, cfg.AdaptiveIdle(), cfg.AdaptiveWindow())
	default:
		return wal.NewSyncPolicy()
	}
}
