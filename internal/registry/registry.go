// Package registry holds the two fitted classifiers and their schemas,
// keyed by an applicability range over nodule diameter. It is populated
// once at startup and is a pure read-only lookup afterwards, safe for
// unlimited concurrent readers.
package registry

import (
	"fmt"
	"math"

	"nodule-risk/internal/model"
)

// Tier names a model's applicability range.
type Tier string

const (
	// TierSmall covers diameters in [0, 8] mm.
	TierSmall Tier = "small"
	// TierLarge covers diameters in (8, 30] mm.
	TierLarge Tier = "large"
)

// Diameter bounds in millimeters. The boundary value belongs to the
// smaller tier: 8mm selects the small model, 30mm the large one.
const (
	SmallMaxDiameter = 8.0
	LargeMaxDiameter = 30.0
)

// Entry pairs a fitted model with its schema and diameter range. The
// Explainer is the model's attribution capability, resolved at build
// time; nil when the model does not support attribution.
type Entry struct {
	Tier      Tier
	Model     model.Handle
	Explainer model.Explainer
	Schema    model.FeatureSchema
}

// OutOfRangeError reports a diameter outside the predictive range of
// every registered model. It is a user-input error, surfaced verbatim.
type OutOfRangeError struct {
	Diameter float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("nodule diameter %.1fmm outside predictive range [0, %.0f]mm", e.Diameter, LargeMaxDiameter)
}

// Registry is the fixed two-tier model table.
type Registry struct {
	small Entry
	large Entry
}

// New builds a registry from the two tier entries, checking that each
// schema width matches its model's input width so a shape mismatch can
// never reach inference through correct registry wiring.
func New(small, large Entry) (*Registry, error) {
	for _, e := range []Entry{small, large} {
		if e.Model == nil {
			return nil, fmt.Errorf("tier %s: model is nil", e.Tier)
		}
		if err := e.Schema.Validate(); err != nil {
			return nil, fmt.Errorf("tier %s: %w", e.Tier, err)
		}
		if e.Schema.Len() != e.Model.NumFeatures() {
			return nil, fmt.Errorf("tier %s: schema has %d features, model expects %d",
				e.Tier, e.Schema.Len(), e.Model.NumFeatures())
		}
	}
	small.Tier = TierSmall
	large.Tier = TierLarge
	return &Registry{small: small, large: large}, nil
}

// Select returns the entry applicable to the given nodule diameter.
// 8mm belongs to the small tier, 30mm to the large tier; anything
// negative or above 30mm fails with *OutOfRangeError.
func (r *Registry) Select(diameter float64) (*Entry, error) {
	switch {
	case diameter < 0 || math.IsNaN(diameter):
		return nil, &OutOfRangeError{Diameter: diameter}
	case diameter <= SmallMaxDiameter:
		return &r.small, nil
	case diameter <= LargeMaxDiameter:
		return &r.large, nil
	default:
		return nil, &OutOfRangeError{Diameter: diameter}
	}
}

// Entries returns both entries in tier order, for status reporting.
func (r *Registry) Entries() []*Entry {
	return []*Entry{&r.small, &r.large}
}
