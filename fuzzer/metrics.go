package fuzzer

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the per-session counters, registered on their own registry.
type Metrics struct {
	Registry     *prometheus.Registry
	Executions   *prometheus.CounterVec
	CorpusSize   prometheus.Gauge
	Solutions    prometheus.Gauge
	CoveredEdges prometheus.Gauge
	ExecDuration prometheus.Histogram
}

// NewMetrics builds and registers a fresh metric set.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greybox",
			Name:      "executions_total",
			Help:      "Sandboxed harness executions by final status.",
		}, []string{"status"}),
		CorpusSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "greybox",
			Name:      "corpus_size",
			Help:      "Entries in the main corpus.",
		}),
		Solutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "greybox",
			Name:      "solutions",
			Help:      "Inputs that triggered the objective.",
		}),
		CoveredEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "greybox",
			Name:      "covered_edges",
			Help:      "Map indices seen non-zero this session.",
		}),
		ExecDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "greybox",
			Name:      "execution_seconds",
			Help:      "Wall-clock time per sandboxed execution.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	m.Registry.MustRegister(m.Executions, m.CorpusSize, m.Solutions, m.CoveredEdges, m.ExecDuration)
	return m
}
