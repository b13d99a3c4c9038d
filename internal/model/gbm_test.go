package model

import (
	"errors"
	"math"
	"testing"
)

// testEnsemble builds a small two-tree ensemble over three features:
// 0 = Nodule diameter, 1 = Age, 2 = Gender.
func testEnsemble() *Ensemble {
	return &Ensemble{
		Version:   "test-1",
		Features:  3,
		BaseScore: -1.0,
		Trees: []Tree{
			{
				Feature:   []int{0, leafNode, leafNode},
				Threshold: []float64{6.0, 0, 0},
				Left:      []int{1, 0, 0},
				Right:     []int{2, 0, 0},
				Value:     []float64{0.1, -0.4, 0.6},
			},
			{
				Feature:   []int{2, leafNode, leafNode},
				Threshold: []float64{0.5, 0, 0},
				Left:      []int{1, 0, 0},
				Right:     []int{2, 0, 0},
				Value:     []float64{0.05, -0.2, 0.3},
			},
		},
	}
}

func TestPredictProbability(t *testing.T) {
	e := testEnsemble()

	tests := []struct {
		name    string
		vector  []float64
		wantRaw float64
	}{
		{"small nodule, male", []float64{5, 60, 1}, -1.0 - 0.4 + 0.3},
		{"small nodule, female", []float64{5, 60, 0}, -1.0 - 0.4 - 0.2},
		{"large nodule, male", []float64{12, 70, 1}, -1.0 + 0.6 + 0.3},
		{"threshold value goes left", []float64{6, 60, 1}, -1.0 - 0.4 + 0.3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.PredictProbability(tc.vector)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := 1.0 / (1.0 + math.Exp(-tc.wantRaw))
			if math.Abs(got-want) > 1e-12 {
				t.Errorf("probability = %v, want %v", got, want)
			}
			if got < 0 || got > 1 {
				t.Errorf("probability %v outside [0,1]", got)
			}
		})
	}
}

func TestPredictProbability_Deterministic(t *testing.T) {
	e := testEnsemble()
	vector := []float64{7.3, 55, 1}

	first, err := e.PredictProbability(vector)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 100; i++ {
		got, err := e.PredictProbability(vector)
		if err != nil {
			t.Fatalf("unexpected error on call %d: %v", i, err)
		}
		if got != first {
			t.Fatalf("call %d returned %v, first call returned %v", i, got, first)
		}
	}
}

func TestPredictProbability_ShapeMismatch(t *testing.T) {
	e := testEnsemble()

	for _, vector := range [][]float64{nil, {}, {1}, {1, 2}, {1, 2, 3, 4}} {
		_, err := e.PredictProbability(vector)
		var shapeErr *ShapeMismatchError
		if !errors.As(err, &shapeErr) {
			t.Errorf("vector of length %d: expected ShapeMismatchError, got %v", len(vector), err)
			continue
		}
		if shapeErr.Want != 3 || shapeErr.Got != len(vector) {
			t.Errorf("error reports want=%d got=%d", shapeErr.Want, shapeErr.Got)
		}
	}
}

func TestContributions_SumToRawScore(t *testing.T) {
	e := testEnsemble()

	vectors := [][]float64{
		{5, 60, 1},
		{5, 60, 0},
		{12, 70, 1},
		{30, 40, 0},
		{6, 80, 1},
	}
	for _, v := range vectors {
		base, contrib, err := e.Contributions(v)
		if err != nil {
			t.Fatalf("vector %v: unexpected error: %v", v, err)
		}
		if len(contrib) != e.Features {
			t.Fatalf("vector %v: %d contributions, want %d", v, len(contrib), e.Features)
		}

		raw := base
		for _, c := range contrib {
			raw += c
		}

		prob, err := e.PredictProbability(v)
		if err != nil {
			t.Fatalf("vector %v: %v", v, err)
		}
		want := 1.0 / (1.0 + math.Exp(-raw))
		if math.Abs(prob-want) > 1e-12 {
			t.Errorf("vector %v: base+sum(contrib) implies probability %v, inference returned %v", v, want, prob)
		}
	}
}

func TestContributions_CreditSplitFeatures(t *testing.T) {
	e := testEnsemble()

	// [5, 60, 1]: tree 1 goes left on feature 0, tree 2 right on feature 2.
	_, contrib, err := e.Contributions([]float64{5, 60, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := contrib[0], -0.4-0.1; math.Abs(got-want) > 1e-12 {
		t.Errorf("feature 0 contribution = %v, want %v", got, want)
	}
	if contrib[1] != 0 {
		t.Errorf("feature 1 never split on, contribution = %v, want 0", contrib[1])
	}
	if got, want := contrib[2], 0.3-0.05; math.Abs(got-want) > 1e-12 {
		t.Errorf("feature 2 contribution = %v, want %v", got, want)
	}
}

func TestContributions_ShapeMismatch(t *testing.T) {
	e := testEnsemble()
	_, _, err := e.Contributions([]float64{1, 2})
	var shapeErr *ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeMismatchError, got %v", err)
	}
}

func TestParseEnsemble(t *testing.T) {
	valid := `{
		"version": "1.0",
		"num_features": 2,
		"base_score": -0.5,
		"trees": [{
			"feature": [0, -1, -1],
			"threshold": [1.5, 0, 0],
			"left": [1, 0, 0],
			"right": [2, 0, 0],
			"value": [0.0, -0.3, 0.4]
		}]
	}`

	e, err := ParseEnsemble([]byte(valid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.NumFeatures() != 2 {
		t.Errorf("NumFeatures = %d, want 2", e.NumFeatures())
	}

	invalid := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"no trees", `{"num_features": 2, "trees": []}`},
		{"zero features", `{"num_features": 0, "trees": [{"feature":[-1],"threshold":[0],"left":[0],"right":[0],"value":[0.1]}]}`},
		{"inconsistent arrays", `{"num_features": 1, "trees": [{"feature":[0,-1],"threshold":[1],"left":[1,0],"right":[1,0],"value":[0,0.1]}]}`},
		{"split feature out of range", `{"num_features": 1, "trees": [{"feature":[3,-1,-1],"threshold":[1,0,0],"left":[1,0,0],"right":[2,0,0],"value":[0,0.1,0.2]}]}`},
		{"child points backwards", `{"num_features": 1, "trees": [{"feature":[0,-1,-1],"threshold":[1,0,0],"left":[0,0,0],"right":[2,0,0],"value":[0,0.1,0.2]}]}`},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseEnsemble([]byte(tc.data)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSchemaValidate(t *testing.T) {
	valid := FeatureSchema{
		Tier: "small",
		Features: []Feature{
			{Name: "Nodule diameter", Kind: KindContinuous},
			{Name: "Age", Kind: KindContinuous},
			{Name: "Gender", Kind: KindBinary},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid schema rejected: %v", err)
	}
	if got := valid.Names(); len(got) != 3 || got[0] != "Nodule diameter" || got[2] != "Gender" {
		t.Errorf("Names() = %v, order not preserved", got)
	}

	invalid := []FeatureSchema{
		{Tier: "empty"},
		{Tier: "unnamed", Features: []Feature{{Name: "", Kind: KindBinary}}},
		{Tier: "dup", Features: []Feature{{Name: "Age", Kind: KindContinuous}, {Name: "Age", Kind: KindContinuous}}},
		{Tier: "kind", Features: []Feature{{Name: "Age", Kind: "ordinal"}}},
	}
	for _, s := range invalid {
		if err := s.Validate(); err == nil {
			t.Errorf("schema %q: expected validation error", s.Tier)
		}
	}
}
