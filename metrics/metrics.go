// Package metrics holds the engine's in-process Prometheus counters and
// gauges. Nothing here serves them over HTTP: spec.md scopes
// logging/telemetry's exposure surface out (no network ports), but the
// instrumentation itself is ambient and carried regardless, the way
// CyberFlameGO-pebble-1's metrics.go instruments a storage engine without
// owning its own endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a private Prometheus registry plus the handles the engine
// needs to increment/set during normal operation. A caller that wants to
// expose these wires its own promhttp.Handler() against Registry.
type Metrics struct {
	Registry *prometheus.Registry

	Puts        prometheus.Counter
	Deletes     prometheus.Counter
	Gets        prometheus.Counter
	WALSyncs    prometheus.Counter
	Flushes     prometheus.Counter
	Compactions prometheus.Counter
	SSTCount    prometheus.Gauge
}

// New builds a fresh registry and registers every collector, so a second
// Engine opened in the same process doesn't collide on metric names.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Puts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minikv_puts_total",
			Help: "Number of Put calls.",
		}),
		Deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minikv_deletes_total",
			Help: "Number of Delete calls.",
		}),
		Gets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minikv_gets_total",
			Help: "Number of Get calls.",
		}),
		WALSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minikv_wal_syncs_total",
			Help: "Number of WAL fsync barriers executed.",
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minikv_flushes_total",
			Help: "Number of MemTable flushes to SST.",
		}),
		Compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minikv_compactions_total",
			Help: "Number of full compaction runs.",
		}),
		SSTCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "minikv_sst_count",
			Help: "Current number of live SST files.",
		}),
	}
	reg.MustRegister(m.Puts, m.Deletes, m.Gets, m.WALSyncs, m.Flushes, m.Compactions, m.SSTCount)
	return m
}
