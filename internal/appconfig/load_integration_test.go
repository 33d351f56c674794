// internal/appconfig/load_integration_test.go
package appconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldCwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })
}

func TestLoadDefaultPath(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	payload := `{"iterations": 20, "phaseOrder": "direct-first", "queries": ["ls -la", "pwd"]}`
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	chdir(t, tempDir)

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ConfigPath != DefaultConfigPath {
		t.Fatalf("expected %s, got %q", DefaultConfigPath, cfg.ConfigPath)
	}
	if cfg.IterationCount() != 20 || cfg.PhaseOrder != "direct-first" || len(cfg.Queries) != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadLegacyFallback(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "daemonbench.json"), []byte(`{"binary": "./aka"}`), 0o644); err != nil {
		t.Fatalf("write legacy config: %v", err)
	}
	chdir(t, tempDir)

	cfg, err := Load(viper.New(), DefaultConfigPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ConfigPath != "daemonbench.json" || cfg.Binary != "./aka" {
		t.Fatalf("expected legacy config to load, got %+v", cfg)
	}
}

func TestLoadNoFileUsesDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ConfigPath != "" || cfg.IterationCount() != 10 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tempDir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "config", "config.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	chdir(t, tempDir)

	if _, err := Load(viper.New(), ""); err == nil {
		t.Fatal("expected error for malformed config")
	}
}
