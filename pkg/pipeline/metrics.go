package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "msfeat"
	metricsSubsystem = "pipeline"
)

// Status label values.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Metrics holds the processing counters. All operations are safe for
// concurrent use.
type Metrics struct {
	// SpectraTotal counts processed spectra. Labels: status.
	SpectraTotal *prometheus.CounterVec

	// PeaksTotal counts emitted peaks.
	PeaksTotal prometheus.Counter

	// StageDurationSeconds measures each processing stage. Labels: stage
	// (resample, filter, noise, pick).
	StageDurationSeconds *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SpectraTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "spectra_total",
				Help:      "Total number of spectra processed by status",
			},
			[]string{"status"},
		),
		PeaksTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "peaks_total",
				Help:      "Total number of peaks emitted",
			},
		),
		StageDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Time spent per processing stage in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"stage"},
		),
	}
}

func (m *Metrics) record(r *Result) {
	switch {
	case r.Err == nil:
		m.SpectraTotal.WithLabelValues(StatusOK).Inc()
		m.PeaksTotal.Add(float64(len(r.Peaks)))
	case isCancelled(r.Err):
		m.SpectraTotal.WithLabelValues(StatusCancelled).Inc()
	default:
		m.SpectraTotal.WithLabelValues(StatusError).Inc()
	}
}
