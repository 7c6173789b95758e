package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverlaysYAMLOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minikv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
flush_threshold_ops: 42
wal_policy: BATCH
batch_n: 7
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.FlushThresholdOps)
	require.Equal(t, PolicyBatch, cfg.WALPolicy)
	require.Equal(t, 7, cfg.BatchN)
	// Fields absent from the file keep their default values.
	require.Equal(t, Default().AdaptiveMax, cfg.AdaptiveMax)
}
