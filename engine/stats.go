package engine

import (
	"os"
	"path/filepath"
)

// Stats is a point-in-time snapshot for introspection, distinct from the
// cumulative Prometheus counters returned by Metrics(): KeyCountEstimate
// and MemTableOps change as operations land, SSTCount and WALBytes
// reflect on-disk state at the moment of the call.
type Stats struct {
	KeyCountEstimate int
	MemTableOps      int
	SSTCount         int
	WALBytes         int64
}

// Stats returns a snapshot of the engine's current shape. KeyCountEstimate
// counts only distinct keys held in the MemTable; keys that exist solely
// in an SST are not counted, since answering precisely would require a
// full scan this method deliberately avoids.
func (e *Engine) Stats() (Stats, error) {
	if e.state == stateClosed {
		return Stats{}, ErrClosed
	}
	var walBytes int64
	if st, err := os.Stat(filepath.Join(e.dir, walFilename)); err == nil {
		walBytes = st.Size()
	}
	return Stats{
		KeyCountEstimate: e.mem.KeyCount(),
		MemTableOps:      e.mem.Size(),
		SSTCount:         len(e.ssts),
		WALBytes:         walBytes,
	}, nil
}
