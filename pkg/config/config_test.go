package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("server port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Training.MaxFeatures != 5000 || cfg.Training.MinDF != 2 || cfg.Training.MaxDF != 0.95 {
		t.Errorf("unexpected feature defaults: %+v", cfg.Training)
	}
	if cfg.Training.ArtifactPath() != "models/sentiment_model.snta" {
		t.Errorf("artifact path = %q", cfg.Training.ArtifactPath())
	}
	if cfg.Model.ConfidenceDecimal != 4 {
		t.Errorf("confidence decimals = %d, want 4", cfg.Model.ConfidenceDecimal)
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9100
  requestTimeout: 2s
model:
  artifactPath: /tmp/m.snta
  expectedClasses: [Positivo, Negativo]
training:
  maxFeatures: 100
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SA_SERVER_PORT", "9200")
	t.Setenv("SA_CACHE_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("env override lost: port = %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 2*time.Second {
		t.Errorf("request timeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Model.ArtifactPath != "/tmp/m.snta" || len(cfg.Model.ExpectedClasses) != 2 {
		t.Errorf("model config = %+v", cfg.Model)
	}
	if cfg.Training.MaxFeatures != 100 || cfg.Training.NGramMax != 2 {
		t.Errorf("training config = %+v", cfg.Training)
	}
	if !cfg.Cache.Enabled {
		t.Error("SA_CACHE_ENABLED not applied")
	}
}

func TestLoadRejectsInvalidRatio(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("training:\n  testRatio: 1.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
