package metrics

// Wrapper exposes the metrics through the small method surface the
// prediction pipeline consumes, so the pipeline package depends on an
// interface rather than on Prometheus types.
type Wrapper struct {
	m *Metrics
}

// NewWrapper wraps the metrics for injection into the pipeline.
func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *Wrapper) ValidationErrorsInc() {
	w.m.ValidationErrors.Inc()
}

func (w *Wrapper) FailuresInc() {
	w.m.PredictionFailures.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *Wrapper) AttributionFallbacksInc() {
	w.m.AttributionFallbacks.Inc()
}

func (w *Wrapper) LatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *Wrapper) ProbabilityObserve(p float64) {
	w.m.ProbabilityScores.Observe(p)
}

func (w *Wrapper) BandInc(band string) {
	w.m.PredictionsByBand.WithLabelValues(band).Inc()
}
