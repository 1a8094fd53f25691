package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "umep"

// Metrics holds the Prometheus counters and histograms of algorithm runs.
// Each Metrics owns its registry, so several can live in one process.
type Metrics struct {
	Registry *prometheus.Registry

	Runs            *prometheus.CounterVec   // labels: algorithm, outcome={success,error}
	RunDuration     *prometheus.HistogramVec // labels: algorithm
	RastersRead     prometheus.Counter
	FeaturesWritten *prometheus.CounterVec // labels: layer
}

// NewMetrics creates and registers all run metrics with a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Algorithm runs by algorithm and outcome.",
		}, []string{"algorithm", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of an algorithm run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, []string{"algorithm"}),
		RastersRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rasters_read_total",
			Help:      "Raster files read by the analyzer.",
		}),
		FeaturesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_written_total",
			Help:      "Features written to output layers.",
		}, []string{"layer"}),
	}

	m.Registry.MustRegister(
		m.Runs,
		m.RunDuration,
		m.RastersRead,
		m.FeaturesWritten,
	)

	return m
}

// WriteTextfile stores the current metric values in the node exporter
// textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
