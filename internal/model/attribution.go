package model

import "fmt"

// Explainer is the optional attribution capability of a fitted model.
// A model either implements it or it does not; the registry resolves the
// capability once at build time, and the pipeline treats its absence as
// a normal outcome rather than an error.
type Explainer interface {
	// Contributions decomposes the raw log-odds score for the vector into
	// one signed per-feature contribution, positionally aligned with the
	// vector. BaseValue plus the sum of contributions equals the raw score
	// whose logistic transform PredictProbability returns.
	Contributions(vector []float64) (baseValue float64, contributions []float64, err error)
}

// Contributions implements Explainer using tree-path attribution: each
// tree is walked with the vector, and at every split the change in the
// subtree's expected value is credited to the split feature. Contributions
// are computed against the same score convention as PredictProbability,
// so the decomposed class is structurally the positive class.
func (e *Ensemble) Contributions(vector []float64) (float64, []float64, error) {
	if len(vector) != e.Features {
		return 0, nil, &ShapeMismatchError{Want: e.Features, Got: len(vector)}
	}

	base := e.BaseScore
	contrib := make([]float64, e.Features)
	for ti := range e.Trees {
		t := &e.Trees[ti]
		base += t.Value[0]
		i := 0
		for t.Feature[i] != leafNode {
			next := t.Right[i]
			if vector[t.Feature[i]] <= t.Threshold[i] {
				next = t.Left[i]
			}
			contrib[t.Feature[i]] += t.Value[next] - t.Value[i]
			i = next
		}
	}
	return base, contrib, nil
}

// AsExplainer returns the attribution capability of h, or nil when the
// model does not support attribution. Resolved once at registry build.
func AsExplainer(h Handle) Explainer {
	if ex, ok := h.(Explainer); ok {
		return ex
	}
	return nil
}

var _ Handle = (*Ensemble)(nil)
var _ Explainer = (*Ensemble)(nil)

// String identifies the model for logs.
func (e *Ensemble) String() string {
	return fmt.Sprintf("gbm(version=%s trees=%d features=%d)", e.Version, len(e.Trees), e.Features)
}
