package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() should validate, got: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Load(\"\") = %+v, want Default()", cfg)
	}
}

func TestLoadOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("m: 8\nhop_limit: 4\n"), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.M != 8 || cfg.HopLimit != 4 {
		t.Fatalf("Load() = %+v, want M=8 HopLimit=4", cfg)
	}
	if cfg.PeriodMS != Default().PeriodMS {
		t.Fatalf("unset fields should keep default values, got PeriodMS=%d", cfg.PeriodMS)
	}
}

func TestValidateRejectsBadM(t *testing.T) {
	cfg := Default()
	cfg.M = 10
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for non-multiple-of-8 M")
	}
}
