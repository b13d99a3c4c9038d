// Package artifact loads the fitted model artifacts and builds the model
// registry. Each tier ships as a pair of files: a JSON-serialized tree
// ensemble and the ordered feature schema it was trained on. Loading
// failure of any artifact is fatal to startup; the core pipeline never
// sees a partially loaded registry.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"nodule-risk/internal/model"
	"nodule-risk/internal/registry"
)

// Artifact file names, one pair per tier.
const (
	SmallModelFile  = "gbc_8mm_model.json"
	SmallSchemaFile = "gbc_8mm_features.json"
	LargeModelFile  = "gbc_30mm_model.json"
	LargeSchemaFile = "gbc_30mm_features.json"
)

// TierInfo describes one loaded tier for status reporting.
type TierInfo struct {
	Tier      registry.Tier `json:"tier"`
	Version   string        `json:"version"`
	TrainedAt time.Time     `json:"trained_at"`
	Features  []string      `json:"features"`
	LoadedAt  time.Time     `json:"loaded_at"`
}

// Load reads both tier artifact pairs from dir and builds the registry.
// The attribution capability of each model is resolved here, once.
func Load(dir string) (*registry.Registry, []TierInfo, error) {
	smallEntry, smallInfo, err := loadTier(dir, registry.TierSmall, SmallModelFile, SmallSchemaFile)
	if err != nil {
		return nil, nil, err
	}
	largeEntry, largeInfo, err := loadTier(dir, registry.TierLarge, LargeModelFile, LargeSchemaFile)
	if err != nil {
		return nil, nil, err
	}

	reg, err := registry.New(smallEntry, largeEntry)
	if err != nil {
		return nil, nil, fmt.Errorf("build registry: %w", err)
	}
	return reg, []TierInfo{smallInfo, largeInfo}, nil
}

func loadTier(dir string, tier registry.Tier, modelFile, schemaFile string) (registry.Entry, TierInfo, error) {
	modelPath := filepath.Join(dir, modelFile)
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return registry.Entry{}, TierInfo{}, fmt.Errorf("read %s model artifact: %w", tier, err)
	}
	ensemble, err := model.ParseEnsemble(data)
	if err != nil {
		return registry.Entry{}, TierInfo{}, fmt.Errorf("%s model artifact %s: %w", tier, modelFile, err)
	}

	schemaPath := filepath.Join(dir, schemaFile)
	data, err = os.ReadFile(schemaPath)
	if err != nil {
		return registry.Entry{}, TierInfo{}, fmt.Errorf("read %s schema artifact: %w", tier, err)
	}
	var schema model.FeatureSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return registry.Entry{}, TierInfo{}, fmt.Errorf("decode %s schema artifact %s: %w", tier, schemaFile, err)
	}
	if schema.Tier == "" {
		schema.Tier = string(tier)
	}

	entry := registry.Entry{
		Tier:      tier,
		Model:     ensemble,
		Explainer: model.AsExplainer(ensemble),
		Schema:    schema,
	}
	info := TierInfo{
		Tier:      tier,
		Version:   ensemble.Version,
		TrainedAt: ensemble.TrainedAt,
		Features:  schema.Names(),
		LoadedAt:  time.Now(),
	}

	log.Info().
		Str("tier", string(tier)).
		Str("version", ensemble.Version).
		Int("features", schema.Len()).
		Int("trees", len(ensemble.Trees)).
		Bool("attribution", entry.Explainer != nil).
		Msg("model artifact loaded")

	return entry, info, nil
}

// ModelAge returns the age of a tier's model artifact file, for the model
// age gauge. Zero when the file cannot be inspected.
func ModelAge(dir, modelFile string) float64 {
	info, err := os.Stat(filepath.Join(dir, modelFile))
	if err != nil {
		return 0
	}
	return time.Since(info.ModTime()).Seconds()
}
