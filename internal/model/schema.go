// Package model provides the fitted classifier capability for the risk
// service. It defines the ordered feature schema a model was trained on,
// a JSON-serialized gradient-boosted tree ensemble with probability
// inference, and per-feature attribution of the predicted log-odds.
//
// A model and its schema are loaded once at startup and never mutated;
// all methods are safe for concurrent readers.
package model

import "fmt"

// ValueKind tags the domain of a schema feature.
type ValueKind string

const (
	// KindContinuous marks a finite, non-negative numeric feature.
	KindContinuous ValueKind = "continuous"
	// KindBinary marks a 0/1 categorical feature.
	KindBinary ValueKind = "binary"
)

// Feature is a single named, typed entry of a feature schema.
type Feature struct {
	Name string    `json:"name"`
	Kind ValueKind `json:"kind"`
}

// FeatureSchema is the ordered list of features a fitted model expects.
// Order is semantically significant: it must match the column order the
// model was trained on, and assembled vectors are positionally aligned
// to it. Immutable once loaded.
type FeatureSchema struct {
	Tier     string    `json:"tier"`
	Features []Feature `json:"features"`
}

// Len returns the number of schema features.
func (s FeatureSchema) Len() int { return len(s.Features) }

// Names returns the feature names in schema order.
func (s FeatureSchema) Names() []string {
	names := make([]string, len(s.Features))
	for i, f := range s.Features {
		names[i] = f.Name
	}
	return names
}

// Validate checks that the schema is non-empty, every feature is named,
// every kind is known, and no name repeats.
func (s FeatureSchema) Validate() error {
	if len(s.Features) == 0 {
		return fmt.Errorf("schema %q has no features", s.Tier)
	}
	seen := make(map[string]bool, len(s.Features))
	for i, f := range s.Features {
		if f.Name == "" {
			return fmt.Errorf("schema %q: feature %d has empty name", s.Tier, i)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %q: duplicate feature %q", s.Tier, f.Name)
		}
		seen[f.Name] = true
		switch f.Kind {
		case KindContinuous, KindBinary:
		default:
			return fmt.Errorf("schema %q: feature %q has unknown kind %q", s.Tier, f.Name, f.Kind)
		}
	}
	return nil
}
