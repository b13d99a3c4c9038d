// Package assemble maps an unordered feature-name -> value record into
// the exact ordered vector a selected model expects, validating
// completeness and value domains on the way. Pure validation and
// projection; no side effects.
package assemble

import (
	"fmt"
	"math"

	"nodule-risk/internal/model"
)

// Record is the caller-supplied mapping of feature name to value. It may
// carry extra keys the target schema does not name; those are ignored.
type Record map[string]float64

// MissingFeatureError reports a schema feature absent from the record.
type MissingFeatureError struct {
	Feature string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("required feature %q missing from input", e.Feature)
}

// DomainError reports a feature value outside its declared domain.
type DomainError struct {
	Feature string
	Value   float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("feature %q value %g outside its domain", e.Feature, e.Value)
}

// Assemble projects the record onto the schema order. The i-th element of
// the result is the record's value for the i-th schema feature; no feature
// is dropped, reordered, or deduplicated. Continuous features must be
// finite and non-negative (no clamping), binary features must be exactly
// 0 or 1.
func Assemble(rec Record, schema model.FeatureSchema) ([]float64, error) {
	vector := make([]float64, schema.Len())
	for i, f := range schema.Features {
		v, ok := rec[f.Name]
		if !ok {
			return nil, &MissingFeatureError{Feature: f.Name}
		}
		switch f.Kind {
		case model.KindContinuous:
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return nil, &DomainError{Feature: f.Name, Value: v}
			}
		case model.KindBinary:
			if v != 0 && v != 1 {
				return nil, &DomainError{Feature: f.Name, Value: v}
			}
		default:
			return nil, fmt.Errorf("feature %q has unknown kind %q", f.Name, f.Kind)
		}
		vector[i] = v
	}
	return vector, nil
}
