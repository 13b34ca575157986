package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_DefaultsAndSynthetic(t *testing.T) {
	cfg, err := Parse([]byte(`
model:
  classifier_path: m.json
  encoder_path: e.json
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Ingestion.Mode != ModeSynthetic {
		t.Errorf("Expected default mode synthetic, got %s", cfg.Ingestion.Mode)
	}
	if cfg.Model.Threshold != 0.5 {
		t.Errorf("Expected default threshold 0.5, got %v", cfg.Model.Threshold)
	}
	if cfg.Publisher.FlushEvery != 1 {
		t.Errorf("Expected default flush_every 1, got %d", cfg.Publisher.FlushEvery)
	}
	if cfg.Publisher.LogEvery != 1000 {
		t.Errorf("Expected default log_every 1000, got %d", cfg.Publisher.LogEvery)
	}
}

func TestParse_ReplayPacing(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want float64
	}{
		{"unset keeps recorded spacing", "ingestion: {mode: replay, replay: {path: x.pcap}}", 1},
		{"zero is as fast as possible", "ingestion: {mode: replay, replay: {path: x.pcap, pacing: 0}}", 0},
		{"explicit multiplier", "ingestion: {mode: replay, replay: {path: x.pcap, pacing: 2.5}}", 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml + "\nmodel: {classifier_path: m.json, encoder_path: e.json}\n"))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if cfg.Ingestion.Replay.Pacing == nil || *cfg.Ingestion.Replay.Pacing != tt.want {
				t.Errorf("Expected pacing %v, got %v", tt.want, cfg.Ingestion.Replay.Pacing)
			}
		})
	}
}

func TestParse_NegativeLogEveryDisablesProgress(t *testing.T) {
	cfg, err := Parse([]byte(`
publisher: {log_every: -1}
model: {classifier_path: m.json, encoder_path: e.json}
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Publisher.LogEvery != -1 {
		t.Errorf("Expected log_every -1 to be kept, got %d", cfg.Publisher.LogEvery)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"live without interface", "ingestion: {mode: live}", "interface"},
		{"replay without path", "ingestion: {mode: replay}", "replay.path"},
		{"negative pacing", "ingestion: {mode: replay, replay: {path: x.pcap, pacing: -1}}", "pacing"},
		{"probability out of range", "ingestion: {mode: synthetic, synthetic: {attack_probability: 1.5}}", "attack_probability"},
		{"unknown mode", "ingestion: {mode: carrier-pigeon}", "unknown ingestion.mode"},
		{"bad engine", "ingestion: {mode: live, live: {interface: eth0, engine: dpdk}}", "engine"},
		{"zero read timeout", "ingestion: {mode: live, live: {interface: eth0, read_timeout: 0s}}", "read_timeout must be positive"},
		{"negative read timeout", "ingestion: {mode: live, live: {interface: eth0, read_timeout: -250ms}}", "read_timeout must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.yaml + "\nmodel: {classifier_path: m.json, encoder_path: e.json}\n"
			_, err := Parse([]byte(data))
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
ingestion:
  mode: replay
  replay:
    path: traces/demo.pcap
    pacing: 0.1
model:
  classifier_path: m.json
  encoder_path: e.json
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if *cfg.Ingestion.Replay.Pacing != 0.1 {
		t.Errorf("Expected pacing 0.1, got %v", *cfg.Ingestion.Replay.Pacing)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadConfig_Sample(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if cfg.Ingestion.Mode != ModeSynthetic || len(cfg.Alerter.Rules) != 2 {
		t.Errorf("unexpected sample config: mode=%s rules=%d", cfg.Ingestion.Mode, len(cfg.Alerter.Rules))
	}
}
