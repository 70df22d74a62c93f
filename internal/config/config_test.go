package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsWhenNoFile(t *testing.T) {
	cfg, err := loadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Pipeline.Workers)
	}
	if cfg.Channels.FallbackTenant != "00000000" {
		t.Errorf("FallbackTenant = %q", cfg.Channels.FallbackTenant)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"Pipeline": {"Workers": 8, "BatchSize": 100}, "Channels": {"ArchiveDir": "/mnt/sage"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Pipeline.Workers)
	}
	if cfg.Channels.ArchiveDir != "/mnt/sage" {
		t.Errorf("ArchiveDir = %q", cfg.Channels.ArchiveDir)
	}
	// Untouched fields keep their defaults.
	if cfg.Server.Port != 4600 {
		t.Errorf("Port = %d, want default 4600", cfg.Server.Port)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"Pipeline": {"Workers": 8}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AKTIS_WORKERS", "2")
	t.Setenv("AKTIS_ENCRYPTION_KEY", "deadbeef")

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Pipeline.Workers != 2 {
		t.Errorf("Workers = %d, want env override 2", cfg.Pipeline.Workers)
	}
	if cfg.Encryption.KeyHex != "deadbeef" {
		t.Errorf("KeyHex = %q", cfg.Encryption.KeyHex)
	}
}

func TestInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadFrom(path); err == nil {
		t.Fatal("expected error for invalid JSON config")
	}
}

func TestNonPositiveWorkersFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"Pipeline": {"Workers": -1}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("Workers = %d, want default 4", cfg.Pipeline.Workers)
	}
}
