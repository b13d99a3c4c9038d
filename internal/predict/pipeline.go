// Package predict runs the prediction-and-explanation pipeline: model
// selection by nodule diameter, ordered feature assembly, probability
// inference, risk-band classification, and best-effort per-feature
// attribution. Each request builds its own vector and result values;
// the only shared state is the read-only registry.
package predict

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"nodule-risk/internal/assemble"
	"nodule-risk/internal/registry"
)

// DiameterFeature is the schema name the nodule diameter is supplied
// under. The pipeline writes the request diameter into the record under
// this name, the same way the original intake form did.
const DiameterFeature = "Nodule diameter"

// MetricsInterface is the metrics surface the pipeline needs. A nil
// implementation is tolerated everywhere.
type MetricsInterface interface {
	PredictionsInc()
	ValidationErrorsInc()
	FailuresInc()
	AttributionFallbacksInc()
	LatencyObserve(float64)
	ProbabilityObserve(float64)
	BandInc(band string)
}

// Result is the risk outcome of one request.
type Result struct {
	Probability float64
	Band        Band
	Tier        registry.Tier
}

// FeatureContribution pairs one schema feature with its assembled value
// and its signed contribution to the predicted log-odds.
type FeatureContribution struct {
	Feature      string
	Value        float64
	Contribution float64
}

// Explanation is the per-feature attribution of one prediction, ordered
// exactly as the assembled vector. BaseValue plus the sum of all
// contributions is the raw score behind Result.Probability.
type Explanation struct {
	BaseValue     float64
	Contributions []FeatureContribution
}

// Pipeline wires the registry into the synchronous per-request flow.
type Pipeline struct {
	reg     *registry.Registry
	metrics MetricsInterface
}

// New creates a pipeline over the given registry. metrics may be nil.
func New(reg *registry.Registry, metrics MetricsInterface) *Pipeline {
	return &Pipeline{reg: reg, metrics: metrics}
}

// Predict serves one request. Selection and input validation errors are
// returned to the caller before any model is touched; attribution
// failures only downgrade the result to a nil Explanation.
func (p *Pipeline) Predict(diameter float64, rec assemble.Record, explain bool) (*Result, *Explanation, error) {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.LatencyObserve(time.Since(start).Seconds())
		}
	}()

	entry, err := p.reg.Select(diameter)
	if err != nil {
		if p.metrics != nil {
			p.metrics.ValidationErrorsInc()
		}
		return nil, nil, err
	}

	record := make(assemble.Record, len(rec)+1)
	for k, v := range rec {
		record[k] = v
	}
	record[DiameterFeature] = diameter

	vector, err := assemble.Assemble(record, entry.Schema)
	if err != nil {
		if p.metrics != nil {
			p.metrics.ValidationErrorsInc()
		}
		return nil, nil, err
	}

	prob, err := entry.Model.PredictProbability(vector)
	if err != nil {
		// Shape mismatches here mean broken wiring, not bad input.
		log.Error().Err(err).Str("tier", string(entry.Tier)).Msg("inference failed")
		if p.metrics != nil {
			p.metrics.FailuresInc()
		}
		return nil, nil, fmt.Errorf("inference for tier %s: %w", entry.Tier, err)
	}

	result := &Result{
		Probability: prob,
		Band:        Classify(prob),
		Tier:        entry.Tier,
	}
	if p.metrics != nil {
		p.metrics.PredictionsInc()
		p.metrics.ProbabilityObserve(prob)
		p.metrics.BandInc(result.Band.String())
	}

	var explanation *Explanation
	if explain {
		explanation = p.explain(entry, vector)
	}
	return result, explanation, nil
}

// explain computes the attribution for the same entry and vector used for
// inference. Any failure, including an absent capability, degrades to nil.
func (p *Pipeline) explain(entry *registry.Entry, vector []float64) *Explanation {
	if entry.Explainer == nil {
		log.Debug().Str("tier", string(entry.Tier)).Msg("model has no attribution capability")
		if p.metrics != nil {
			p.metrics.AttributionFallbacksInc()
		}
		return nil
	}

	base, contrib, err := entry.Explainer.Contributions(vector)
	if err != nil || len(contrib) != entry.Schema.Len() {
		log.Warn().Err(err).Str("tier", string(entry.Tier)).Msg("attribution failed, serving prediction without explanation")
		if p.metrics != nil {
			p.metrics.AttributionFallbacksInc()
		}
		return nil
	}

	pairs := make([]FeatureContribution, len(contrib))
	for i, f := range entry.Schema.Features {
		pairs[i] = FeatureContribution{
			Feature:      f.Name,
			Value:        vector[i],
			Contribution: contrib[i],
		}
	}
	return &Explanation{BaseValue: base, Contributions: pairs}
}
