package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"Go2NetGuard/internal/config"
	"Go2NetGuard/internal/model"
)

// A single-leaf forest trained on 12 features, two more than the extractor
// produces.
const wideModel = `{
  "model_type": "random_forest",
  "n_features": 12,
  "trees": [{
    "children_left": [-1],
    "children_right": [-1],
    "feature": [-2],
    "threshold": [-2],
    "value": [[1, 0]]
  }]
}`

func TestRun_ShapeMismatchKeepsPreviousArtifacts(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	if err := os.WriteFile(modelPath, []byte(wideModel), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.Ingestion.Mode = config.ModeSynthetic
	cfg.Model.ClassifierPath = modelPath
	cfg.Model.EncoderPath = filepath.Join("..", "..", "configs", "model", "le_proto.json")
	cfg.Publisher.StatsPath = filepath.Join(dir, "nids_stats.json")
	cfg.Publisher.AlertsPath = filepath.Join(dir, "alerts.jsonl")
	cfg.ApplyDefaults()

	previous := []byte(`{"run_id":"previous","total_events":42,"attack_count":7}`)
	if err := os.WriteFile(cfg.Publisher.StatsPath, previous, 0644); err != nil {
		t.Fatal(err)
	}

	err := run(cfg)
	if !errors.Is(err, model.ErrStartup) {
		t.Fatalf("expected a startup failure, got %v", err)
	}

	got, err := os.ReadFile(cfg.Publisher.StatsPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(previous) {
		t.Errorf("statistics of the previous run were overwritten:\n%s", got)
	}
	if _, err := os.Stat(cfg.Publisher.AlertsPath); !os.IsNotExist(err) {
		t.Errorf("alert log should not be opened on a refused start, stat err = %v", err)
	}
}
