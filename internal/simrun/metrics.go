package simrun

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and gauges for simulator runs. It
// owns its registry so a batch invocation can write a textfile for the node
// exporter without touching the default registry.
type Metrics struct {
	registry *prometheus.Registry

	Runs         *prometheus.CounterVec // labels: status={succeeded,failed,missing_output}
	RunDuration  prometheus.Histogram
	LastExitCode prometheus.Gauge
	LastRunTime  prometheus.Gauge
	OutputFiles  prometheus.Gauge
}

// NewMetrics creates run metrics registered with a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro",
			Name:      "runs_total",
			Help:      "Simulator runs by outcome.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hydro",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a simulator invocation.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		}),
		LastExitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydro",
			Name:      "last_run_exit_code",
			Help:      "Exit status of the most recent simulator run.",
		}),
		LastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydro",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the most recent simulator run finished.",
		}),
		OutputFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydro",
			Name:      "last_run_expected_outputs",
			Help:      "Expected output files found after the most recent run.",
		}),
	}
	m.registry.MustRegister(m.Runs, m.RunDuration, m.LastExitCode, m.LastRunTime, m.OutputFiles)
	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes every metric to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observe(rec *Record, found int) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(rec.Status).Inc()
	m.RunDuration.Observe(rec.FinishedAt.Sub(rec.StartedAt).Seconds())
	m.LastExitCode.Set(float64(rec.ExitCode))
	m.LastRunTime.Set(float64(rec.FinishedAt.Unix()))
	m.OutputFiles.Set(float64(found))
}
