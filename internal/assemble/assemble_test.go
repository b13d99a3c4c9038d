package assemble

import (
	"errors"
	"math"
	"testing"

	"nodule-risk/internal/model"
)

func testSchema() model.FeatureSchema {
	return model.FeatureSchema{
		Tier: "small",
		Features: []model.Feature{
			{Name: "Nodule diameter", Kind: model.KindContinuous},
			{Name: "Age", Kind: model.KindContinuous},
			{Name: "Gender", Kind: model.KindBinary},
			{Name: "CEA", Kind: model.KindContinuous},
			{Name: "Smoking history", Kind: model.KindBinary},
		},
	}
}

func validRecord() Record {
	return Record{
		"Nodule diameter": 5,
		"Age":             60,
		"Gender":          1,
		"CEA":             3.2,
		"Smoking history": 0,
	}
}

func TestAssemble_OrderMatchesSchema(t *testing.T) {
	schema := testSchema()
	rec := validRecord()

	vector, err := Assemble(rec, schema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vector) != schema.Len() {
		t.Fatalf("vector length %d, want %d", len(vector), schema.Len())
	}
	for i, f := range schema.Features {
		if vector[i] != rec[f.Name] {
			t.Errorf("vector[%d] = %v, want record[%q] = %v", i, vector[i], f.Name, rec[f.Name])
		}
	}
}

func TestAssemble_ExtraKeysIgnored(t *testing.T) {
	rec := validRecord()
	rec["SCC"] = 1.1
	rec["ProGRP"] = 40
	rec["unrelated"] = -99 // out of every domain, but not in the schema

	vector, err := Assemble(rec, testSchema())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vector) != 5 {
		t.Errorf("vector length %d, want 5", len(vector))
	}
}

func TestAssemble_MissingFeature(t *testing.T) {
	schema := testSchema()

	for _, missing := range schema.Names() {
		rec := validRecord()
		delete(rec, missing)
		rec["extra"] = 1 // extras never compensate for a missing feature

		_, err := Assemble(rec, schema)
		var missErr *MissingFeatureError
		if !errors.As(err, &missErr) {
			t.Errorf("missing %q: expected MissingFeatureError, got %v", missing, err)
			continue
		}
		if missErr.Feature != missing {
			t.Errorf("error names %q, want %q", missErr.Feature, missing)
		}
	}
}

func TestAssemble_DomainErrors(t *testing.T) {
	tests := []struct {
		name    string
		feature string
		value   float64
	}{
		{"negative continuous", "CEA", -0.1},
		{"nan continuous", "Age", math.NaN()},
		{"positive inf continuous", "Nodule diameter", math.Inf(1)},
		{"negative inf continuous", "CEA", math.Inf(-1)},
		{"binary out of set", "Gender", 2},
		{"binary fractional", "Smoking history", 0.5},
		{"binary negative", "Gender", -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			rec[tc.feature] = tc.value

			_, err := Assemble(rec, testSchema())
			var domErr *DomainError
			if !errors.As(err, &domErr) {
				t.Fatalf("expected DomainError, got %v", err)
			}
			if domErr.Feature != tc.feature {
				t.Errorf("error names %q, want %q", domErr.Feature, tc.feature)
			}
		})
	}
}

func TestAssemble_NoClamping(t *testing.T) {
	rec := validRecord()
	rec["CEA"] = 12345.6 // large but in-domain, must pass through untouched

	vector, err := Assemble(rec, testSchema())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vector[3] != 12345.6 {
		t.Errorf("vector[3] = %v, want 12345.6", vector[3])
	}
}

func TestAssemble_ZeroIsValidEverywhere(t *testing.T) {
	rec := Record{
		"Nodule diameter": 0,
		"Age":             0,
		"Gender":          0,
		"CEA":             0,
		"Smoking history": 0,
	}
	if _, err := Assemble(rec, testSchema()); err != nil {
		t.Errorf("all-zero record rejected: %v", err)
	}
}
