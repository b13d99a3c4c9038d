// Generates synthetic model artifacts for local development. The trees
// are random but structurally valid, so the service boots and serves
// predictions without the real fitted models.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"nodule-risk/internal/artifact"
	"nodule-risk/internal/model"
)

var continuousRanges = map[string][2]float64{
	"Nodule diameter": {0, 30},
	"Age":             {30, 85},
	"CEA":             {0, 20},
	"SCC":             {0, 5},
	"Cyfra21_1":       {0, 10},
	"NSE":             {0, 25},
	"ProGRP":          {0, 80},
}

func smallSchema() model.FeatureSchema {
	return schema("small",
		"Nodule diameter", "Age", "CEA", "Cyfra21_1",
		"Gender", "Smoking history", "Spiculation", "Lobulation",
	)
}

func largeSchema() model.FeatureSchema {
	return schema("large",
		"Nodule diameter", "Age", "CEA", "SCC", "Cyfra21_1", "NSE", "ProGRP",
		"Gender", "Smoking history", "Family cancer history",
		"Spiculation", "Lobulation", "Pleural indentation", "Calcification",
	)
}

func schema(tier string, names ...string) model.FeatureSchema {
	s := model.FeatureSchema{Tier: tier, Features: make([]model.Feature, len(names))}
	for i, n := range names {
		kind := model.KindBinary
		if _, ok := continuousRanges[n]; ok {
			kind = model.KindContinuous
		}
		s.Features[i] = model.Feature{Name: n, Kind: kind}
	}
	return s
}

// stump builds a one-split tree on the given feature.
func stump(rng *rand.Rand, s model.FeatureSchema, feature int) model.Tree {
	f := s.Features[feature]
	threshold := 0.5
	if r, ok := continuousRanges[f.Name]; ok {
		threshold = r[0] + rng.Float64()*(r[1]-r[0])
	}
	spread := 0.05 + rng.Float64()*0.25
	return model.Tree{
		Feature:   []int{feature, -1, -1},
		Threshold: []float64{threshold, 0, 0},
		Left:      []int{1, 0, 0},
		Right:     []int{2, 0, 0},
		Value:     []float64{0, -spread, spread},
	}
}

func buildEnsemble(rng *rand.Rand, s model.FeatureSchema, trees int, version string) *model.Ensemble {
	e := &model.Ensemble{
		Version:   version,
		TrainedAt: time.Now().UTC(),
		Features:  s.Len(),
		BaseScore: -1.0 + rng.Float64()*0.5,
		Trees:     make([]model.Tree, trees),
	}
	for i := range e.Trees {
		e.Trees[i] = stump(rng, s, rng.Intn(s.Len()))
	}
	return e
}

func writeJSON(dir, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func main() {
	var (
		dir     = flag.String("dir", "models", "Output directory for artifacts")
		trees   = flag.Int("trees", 50, "Number of trees per ensemble")
		seed    = flag.Int64("seed", 0, "Random seed (0 = time-based)")
		version = flag.String("version", "dev", "Version string embedded in the artifacts")
	)
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	fmt.Printf("Generating synthetic artifacts (seed %d)...\n", *seed)

	small := smallSchema()
	large := largeSchema()

	pairs := []struct {
		modelFile  string
		schemaFile string
		schema     model.FeatureSchema
	}{
		{artifact.SmallModelFile, artifact.SmallSchemaFile, small},
		{artifact.LargeModelFile, artifact.LargeSchemaFile, large},
	}
	for _, p := range pairs {
		e := buildEnsemble(rng, p.schema, *trees, *version)
		if err := writeJSON(*dir, p.modelFile, e); err != nil {
			log.Fatalf("Failed to write %s: %v", p.modelFile, err)
		}
		if err := writeJSON(*dir, p.schemaFile, p.schema); err != nil {
			log.Fatalf("Failed to write %s: %v", p.schemaFile, err)
		}
		fmt.Printf("  %s tier: %d features, %d trees\n", p.schema.Tier, p.schema.Len(), *trees)
	}

	fmt.Printf("Artifacts written to %s\n", *dir)
}
