package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
	if cfg.Stabilizer.NavTimeoutMs != 90_000 {
		t.Fatalf("nav timeout default = %d, want 90000", cfg.Stabilizer.NavTimeoutMs)
	}
	if cfg.Stabilizer.FrameworkSettleTimeoutMs <= 0 {
		t.Fatalf("framework settle timeout default = %d, want a positive bound",
			cfg.Stabilizer.FrameworkSettleTimeoutMs)
	}
	if cfg.Capture.OutputDir != "screenshots" {
		t.Fatalf("output dir default = %q", cfg.Capture.OutputDir)
	}
	if cfg.Discovery.Enabled {
		t.Fatal("discovery should default to off")
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("stabilizer:\n  navTimeoutMs: 45000\ncapture:\n  outputDir: shots\ndiscovery:\n  enabled: true\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Stabilizer.NavTimeoutMs != 45_000 {
		t.Fatalf("nav timeout = %d, want overlay 45000", cfg.Stabilizer.NavTimeoutMs)
	}
	if cfg.Capture.OutputDir != "shots" {
		t.Fatalf("output dir = %q, want overlay", cfg.Capture.OutputDir)
	}
	if !cfg.Discovery.Enabled {
		t.Fatal("discovery.enabled overlay not applied")
	}
	// Untouched sections keep their defaults.
	if cfg.Discovery.MaxLinks != 10 {
		t.Fatalf("discovery max links = %d, want default 10", cfg.Discovery.MaxLinks)
	}
}
