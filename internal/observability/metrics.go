package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "era5"

// Stage labels for StageDuration.
const (
	StageFetch     = "fetch"
	StageSelect    = "select"
	StageNormalize = "normalize"
	StagePersist   = "persist"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	Units           *prometheus.CounterVec // labels: outcome={completed,not_found,failed}
	CacheLookups    *prometheus.CounterVec // labels: result={hit,miss}
	BytesFetched    prometheus.Counter
	StageDuration   *prometheus.HistogramVec // labels: stage={fetch,select,normalize,persist}
	SelectedPoints  *prometheus.GaugeVec     // labels: axis={lat,lon}
	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Units,
		m.CacheLookups,
		m.BytesFetched,
		m.StageDuration,
		m.SelectedPoints,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Monthly units processed, by outcome.",
		}, []string{"outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Raw cache lookups by result.",
		}, []string{"result"}),
		BytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_bytes_total",
			Help:      "Bytes downloaded from the archive.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each per-unit stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}, []string{"stage"}),
		SelectedPoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_points",
			Help:      "Grid points kept per axis by the last region selection.",
		}, []string{"axis"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
	}
}
