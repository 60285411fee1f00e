package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// detection pipeline.
type Metrics struct {
	TilesProcessed prometheus.Counter
	TilesSkipped   prometheus.Counter
	TilesFailed    prometheus.Counter
	PatchesDropped prometheus.Counter

	DetectionsRaw   prometheus.Counter
	DetectionsFinal prometheus.Counter

	StageDuration *prometheus.HistogramVec // label: stage={acquire,preprocess,patch,features,infer,postprocess,store}
	TileDuration  prometheus.Histogram

	RunnerActive        prometheus.Gauge
	ConsecutiveFailures prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.TilesProcessed,
		m.TilesSkipped,
		m.TilesFailed,
		m.PatchesDropped,
		m.DetectionsRaw,
		m.DetectionsFinal,
		m.StageDuration,
		m.TileDuration,
		m.RunnerActive,
		m.ConsecutiveFailures,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests
// can construct fresh instances without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		TilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slick_detect",
			Name:      "tiles_processed_total",
			Help:      "Tiles carried through the full pipeline to the result sink.",
		}),
		TilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slick_detect",
			Name:      "tiles_skipped_total",
			Help:      "Tiles skipped because they were already processed.",
		}),
		TilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slick_detect",
			Name:      "tiles_failed_total",
			Help:      "Tiles abandoned after exhausting retries.",
		}),
		PatchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slick_detect",
			Name:      "patches_dropped_total",
			Help:      "Positive patches dropped due to coordinate conversion failures.",
		}),
		DetectionsRaw: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slick_detect",
			Name:      "detections_raw_total",
			Help:      "Positive patch classifications before spatial postprocessing.",
		}),
		DetectionsFinal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slick_detect",
			Name:      "detections_final_total",
			Help:      "Merged detections delivered to the result sink.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slick_detect",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		TileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "slick_detect",
			Name:      "tile_duration_seconds",
			Help:      "End-to-end duration of one tile, acquisition through storage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RunnerActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "slick_detect",
			Name:      "runner_active",
			Help:      "1 while the scheduler loop is running, 0 after shutdown.",
		}),
		ConsecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "slick_detect",
			Name:      "consecutive_failures",
			Help:      "Current run of back-to-back tile failures across AOIs.",
		}),
	}
}
