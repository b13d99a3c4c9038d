// Package metrics provides Prometheus metrics collection for the nodule
// risk service. It defines all prediction, validation, and model metrics
// exposed on the metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the risk service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal     prometheus.Counter     // Total number of predictions served
	PredictionFailures   prometheus.Counter     // Total number of inference failures
	ValidationErrors     prometheus.Counter     // Total number of rejected inputs
	AttributionFallbacks prometheus.Counter     // Predictions served without an explanation
	PredictionLatency    prometheus.Histogram   // End-to-end pipeline latency in seconds
	ProbabilityScores    prometheus.Histogram   // Distribution of served probabilities
	PredictionsByBand    *prometheus.CounterVec // Predictions partitioned by risk band

	// Model metrics
	ModelAge *prometheus.GaugeVec // Age of each tier's model artifact in seconds

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for
// testing, where isolated collection avoids global registry conflicts).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions served",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of inference failures",
		}),
		ValidationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_errors_total",
			Help: "Total number of requests rejected for out-of-range or malformed input",
		}),
		AttributionFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "attribution_fallbacks_total",
			Help: "Total number of predictions served without an attribution",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction pipeline latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		ProbabilityScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "probability_scores",
			Help:    "Distribution of served malignancy probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		PredictionsByBand: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_by_band_total",
			Help: "Predictions partitioned by risk band",
		}, []string{"band"}),
		ModelAge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of each tier's model artifact in seconds",
		}, []string{"tier"}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// SetModelAge records the artifact age for a tier.
func (m *Metrics) SetModelAge(tier string, seconds float64) {
	m.ModelAge.WithLabelValues(tier).Set(seconds)
}
