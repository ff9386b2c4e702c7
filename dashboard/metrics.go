package dashboard

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cytodash/dataset"
	"cytodash/ml"
)

// Metrics are the manager's Prometheus collectors.
type Metrics struct {
	evaluations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     prometheus.Histogram
	reloads     *prometheus.CounterVec
	cacheHits   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cytodash",
			Name:      "evaluations_total",
			Help:      "Evaluations by predicted label.",
		}, []string{"label"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cytodash",
			Name:      "evaluation_failures_total",
			Help:      "Failed evaluations by error kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cytodash",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent scaling, charting and predicting one record.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cytodash",
			Name:      "reloads_total",
			Help:      "Dataset and artifact reloads by result.",
		}, []string{"result"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cytodash",
			Name:      "prediction_cache_hits_total",
			Help:      "Predictions served from the cache.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.evaluations, m.failures, m.latency, m.reloads, m.cacheHits)
	}
	return m
}

func (m *Metrics) observeEvaluation(start time.Time, result *Evaluation, err error) {
	if m == nil {
		return
	}
	m.latency.Observe(time.Since(start).Seconds())
	if err != nil {
		m.failures.WithLabelValues(ErrorKind(err)).Inc()
		return
	}
	m.evaluations.WithLabelValues(string(result.Prediction.Label)).Inc()
	if result.Cached {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) observeReload(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("ok").Inc()
}

// ErrorKind classifies err into the error taxonomy.
func ErrorKind(err error) string {
	var (
		formatErr     *dataset.DataFormatError
		loadErr       *ml.ArtifactLoadError
		shapeErr      *ml.ShapeMismatchError
		degenerateErr *ml.DegenerateFeatureError
	)
	switch {
	case errors.As(err, &formatErr):
		return "data_format"
	case errors.As(err, &loadErr):
		return "artifact_load"
	case errors.As(err, &shapeErr):
		return "shape_mismatch"
	case errors.As(err, &degenerateErr):
		return "degenerate_feature"
	default:
		return "internal"
	}
}
