package probe

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Wait.Silence != time.Second {
		t.Errorf("Silence = %v, want 1s", cfg.Wait.Silence)
	}
	if cfg.Wait.Overall != 30*time.Second {
		t.Errorf("Overall = %v, want 30s", cfg.Wait.Overall)
	}
	if cfg.Report.Path != "" {
		t.Errorf("Report.Path = %q, want empty", cfg.Report.Path)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "probe.yaml")
	data := `
browser:
  headless: false
  block_resources: [image, font]
embedding:
  endpoint: "http://localhost:8003"
  model: "multilingual-e5-large"
wait:
  silence: 2s
  overall: 45s
report:
  path: /tmp/probe.db
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Browser.Headless == nil || *cfg.Browser.Headless {
		t.Error("headless should be explicitly false")
	}
	if len(cfg.Browser.BlockResources) != 2 {
		t.Errorf("BlockResources = %v", cfg.Browser.BlockResources)
	}
	if cfg.Embedding.Endpoint != "http://localhost:8003" {
		t.Errorf("Endpoint = %q", cfg.Embedding.Endpoint)
	}
	if cfg.Wait.Silence != 2*time.Second {
		t.Errorf("Silence = %v, want 2s", cfg.Wait.Silence)
	}
	if cfg.Wait.Overall != 45*time.Second {
		t.Errorf("Overall = %v, want 45s", cfg.Wait.Overall)
	}
	if cfg.Report.Path != "/tmp/probe.db" {
		t.Errorf("Report.Path = %q", cfg.Report.Path)
	}
}

func TestLoadConfigFile_DefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "probe.yaml")
	if err := os.WriteFile(path, []byte("browser: {}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Wait.Silence != time.Second || cfg.Wait.Overall != 30*time.Second {
		t.Errorf("defaults not applied: %+v", cfg.Wait)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	if _, err := LoadConfigFile("/nonexistent/probe.yaml"); err == nil {
		t.Fatal("want error for missing file")
	}
}
