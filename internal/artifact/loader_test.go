package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"nodule-risk/internal/registry"
)

const testModelJSON = `{
	"version": "2025.11",
	"trained_at": "2025-11-02T10:00:00Z",
	"num_features": 3,
	"base_score": -1.2,
	"trees": [{
		"feature": [0, -1, -1],
		"threshold": [4.0, 0, 0],
		"left": [1, 0, 0],
		"right": [2, 0, 0],
		"value": [0.0, -0.5, 0.5]
	}]
}`

const testSchemaJSON = `{
	"tier": "small",
	"features": [
		{"name": "Nodule diameter", "kind": "continuous"},
		{"name": "Age", "kind": "continuous"},
		{"name": "Gender", "kind": "binary"}
	]
}`

func writeArtifacts(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		SmallModelFile:  testModelJSON,
		SmallSchemaFile: testSchemaJSON,
		LargeModelFile:  testModelJSON,
		LargeSchemaFile: testSchemaJSON,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir)

	reg, tiers, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	entry, err := reg.Select(5)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if entry.Tier != registry.TierSmall {
		t.Errorf("tier = %s, want small", entry.Tier)
	}
	if entry.Explainer == nil {
		t.Error("ensemble models must expose the attribution capability")
	}
	if got := entry.Schema.Names(); len(got) != 3 || got[0] != "Nodule diameter" {
		t.Errorf("schema order wrong: %v", got)
	}

	prob, err := entry.Model.PredictProbability([]float64{5, 60, 1})
	if err != nil {
		t.Fatalf("PredictProbability: %v", err)
	}
	if prob < 0 || prob > 1 {
		t.Errorf("probability %v outside [0,1]", prob)
	}

	if len(tiers) != 2 {
		t.Fatalf("got %d tier infos, want 2", len(tiers))
	}
	if tiers[0].Tier != registry.TierSmall || tiers[1].Tier != registry.TierLarge {
		t.Errorf("tier info order: %v, %v", tiers[0].Tier, tiers[1].Tier)
	}
	if tiers[0].Version != "2025.11" {
		t.Errorf("version = %s", tiers[0].Version)
	}
}

func TestLoad_MissingArtifactFails(t *testing.T) {
	for _, remove := range []string{SmallModelFile, SmallSchemaFile, LargeModelFile, LargeSchemaFile} {
		dir := t.TempDir()
		writeArtifacts(t, dir)
		if err := os.Remove(filepath.Join(dir, remove)); err != nil {
			t.Fatalf("remove %s: %v", remove, err)
		}

		if _, _, err := Load(dir); err == nil {
			t.Errorf("missing %s: expected load failure", remove)
		}
	}
}

func TestLoad_CorruptModelFails(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir)
	if err := os.WriteFile(filepath.Join(dir, LargeModelFile), []byte("not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := Load(dir); err == nil {
		t.Error("expected load failure for corrupt model artifact")
	}
}

func TestLoad_SchemaModelWidthMismatchFails(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir)

	narrow := `{"tier": "small", "features": [{"name": "Nodule diameter", "kind": "continuous"}]}`
	if err := os.WriteFile(filepath.Join(dir, SmallSchemaFile), []byte(narrow), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, _, err := Load(dir); err == nil {
		t.Error("expected load failure when schema width disagrees with the model")
	}
}

func TestModelAge(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir)

	if age := ModelAge(dir, SmallModelFile); age < 0 {
		t.Errorf("age = %v, want non-negative", age)
	}
	if age := ModelAge(dir, "absent.json"); age != 0 {
		t.Errorf("age of absent file = %v, want 0", age)
	}
}
