package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Handle is the capability a fitted binary classifier exposes to the
// pipeline: given an ordered numeric vector matching its schema, return
// the probability of the positive (malignant) class.
type Handle interface {
	// PredictProbability returns the positive-class probability in [0,1].
	// The vector length must equal NumFeatures; a mismatch is a wiring
	// defect reported as *ShapeMismatchError.
	PredictProbability(vector []float64) (float64, error)

	// NumFeatures returns the input width the model was trained on.
	NumFeatures() int
}

// ShapeMismatchError reports a vector assembled against the wrong schema
// for the model it was handed to. This is a programming error in the
// caller's wiring, not a user-input error.
type ShapeMismatchError struct {
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("model expects %d features, got %d", e.Want, e.Got)
}

// Tree is a single regression tree of the ensemble in flat-array form.
// Node i splits on Feature[i] at Threshold[i]; values <= threshold go to
// Left[i], the rest to Right[i]. Feature[i] == leafNode marks a leaf.
// Value[i] is the expected raw (log-odds) contribution of the subtree
// rooted at node i; for leaves it is the leaf score itself.
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

const leafNode = -1

// Ensemble is a fitted binary gradient-boosted tree classifier. The raw
// score is BaseScore plus the leaf value of every tree; the positive-class
// probability is the logistic transform of that score.
type Ensemble struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Features  int       `json:"num_features"`
	BaseScore float64   `json:"base_score"`
	Trees     []Tree    `json:"trees"`
}

// ParseEnsemble decodes and validates a JSON model artifact.
func ParseEnsemble(data []byte) (*Ensemble, error) {
	var e Ensemble
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if err := e.validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}
	return &e, nil
}

func (e *Ensemble) validate() error {
	if e.Features <= 0 {
		return fmt.Errorf("num_features must be positive, got %d", e.Features)
	}
	if len(e.Trees) == 0 {
		return fmt.Errorf("ensemble has no trees")
	}
	for ti, t := range e.Trees {
		n := len(t.Feature)
		if n == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		if len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Value) != n {
			return fmt.Errorf("tree %d has inconsistent node arrays", ti)
		}
		for i := 0; i < n; i++ {
			if t.Feature[i] == leafNode {
				continue
			}
			if t.Feature[i] < 0 || t.Feature[i] >= e.Features {
				return fmt.Errorf("tree %d node %d splits on feature %d outside [0,%d)", ti, i, t.Feature[i], e.Features)
			}
			if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
				return fmt.Errorf("tree %d node %d has child index outside the tree", ti, i)
			}
		}
	}
	return nil
}

// NumFeatures implements Handle.
func (e *Ensemble) NumFeatures() int { return e.Features }

// PredictProbability implements Handle. Identical vectors always produce
// identical probabilities; no thresholding or rounding is applied here.
func (e *Ensemble) PredictProbability(vector []float64) (float64, error) {
	if len(vector) != e.Features {
		return 0, &ShapeMismatchError{Want: e.Features, Got: len(vector)}
	}
	raw := e.BaseScore
	for i := range e.Trees {
		raw += e.Trees[i].leaf(vector)
	}
	return sigmoid(raw), nil
}

// leaf walks the tree for the given vector and returns the leaf value.
func (t *Tree) leaf(vector []float64) float64 {
	i := 0
	for t.Feature[i] != leafNode {
		if vector[t.Feature[i]] <= t.Threshold[i] {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return t.Value[i]
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
