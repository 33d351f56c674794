// internal/appconfig/appconfig_test.go
package appconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/mwiater/daemonbench/internal/benchmark"
)

// TestDefaults verifies that an empty configuration resolves to the values
// the harness runs with when nothing is configured.
func TestDefaults(t *testing.T) {
	var cfg Config

	if cfg.IterationCount() != 10 {
		t.Fatalf("expected 10 iterations, got %d", cfg.IterationCount())
	}
	if cfg.QueryTimeout() != 10*time.Second {
		t.Fatalf("expected 10s query timeout, got %v", cfg.QueryTimeout())
	}
	if cfg.PauseDuration() != 100*time.Millisecond {
		t.Fatalf("expected 100ms pause, got %v", cfg.PauseDuration())
	}
	if cfg.StartSettleDuration() != 2*time.Second || cfg.StopSettleDuration() != time.Second {
		t.Fatalf("unexpected settle defaults: %v %v", cfg.StartSettleDuration(), cfg.StopSettleDuration())
	}
	if cfg.OutputDirectory() != "." {
		t.Fatalf("expected output dir '.', got %q", cfg.OutputDirectory())
	}
	if cfg.LogFilePath() != "daemonbench.log" {
		t.Fatalf("expected default log file, got %q", cfg.LogFilePath())
	}
	queries, err := cfg.QueryList()
	if err != nil {
		t.Fatalf("QueryList error: %v", err)
	}
	if len(queries) != 1 || queries[0] != "ls -la" {
		t.Fatalf("expected default query, got %v", queries)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty config should validate: %v", err)
	}
}

func TestQuickOverridesIterations(t *testing.T) {
	cfg := Config{Iterations: 50, Quick: true}
	if cfg.IterationCount() != 3 {
		t.Fatalf("expected quick mode to force 3 iterations, got %d", cfg.IterationCount())
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Config{
		Iterations: -1,
		Timeout:    "soon",
		StopSettle: "0s",
		Ordering:   "random",
		PhaseOrder: "both",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"iterations", "timeout", "stopSettle", "random", "both"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in error: %v", want, err)
		}
	}

	if err := (Config{Pause: "0s"}).Validate(); err != nil {
		t.Fatalf("zero pause should be allowed: %v", err)
	}
}

func TestRunOptions(t *testing.T) {
	cfg := Config{
		Binary:       " ./target/release/aka ",
		TargetConfig: "/tmp/aka.toml",
		Queries:      []string{"git status", "  "},
		Iterations:   4,
		Timeout:      "2s",
		Pause:        "0s",
		Ordering:     "query-major",
		PhaseOrder:   "direct-first",
	}
	opts, err := cfg.RunOptions()
	if err != nil {
		t.Fatalf("RunOptions error: %v", err)
	}
	if opts.Binary != "./target/release/aka" || opts.ConfigPath != "/tmp/aka.toml" {
		t.Fatalf("unexpected target settings: %+v", opts)
	}
	if len(opts.Queries) != 1 || opts.Queries[0] != "git status" {
		t.Fatalf("unexpected queries: %v", opts.Queries)
	}
	if opts.Iterations != 4 || opts.Timeout != 2*time.Second || opts.Pause != 0 {
		t.Fatalf("unexpected numeric settings: %+v", opts)
	}
	if opts.Ordering != benchmark.OrderingQueryMajor || opts.PhaseOrder != benchmark.DirectFirst {
		t.Fatalf("unexpected ordering: %s %s", opts.Ordering, opts.PhaseOrder)
	}

	if _, err := (Config{Timeout: "x"}).RunOptions(); err == nil {
		t.Fatal("expected error for invalid timeout")
	}
}

func TestLoadQueries(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "list.yaml")
	if err := os.WriteFile(list, []byte("- ls -la\n- \"git status\"\n- \"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mapped := filepath.Join(dir, "map.yaml")
	if err := os.WriteFile(mapped, []byte("queries:\n  - docker ps\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	scalar := filepath.Join(dir, "scalar.yaml")
	if err := os.WriteFile(scalar, []byte("just text\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadQueries(list)
	if err != nil {
		t.Fatalf("LoadQueries(list) error: %v", err)
	}
	if len(got) != 2 || got[1] != "git status" {
		t.Fatalf("unexpected list queries: %v", got)
	}

	got, err = LoadQueries(mapped)
	if err != nil {
		t.Fatalf("LoadQueries(map) error: %v", err)
	}
	if len(got) != 1 || got[0] != "docker ps" {
		t.Fatalf("unexpected map queries: %v", got)
	}

	if _, err := LoadQueries(scalar); err == nil {
		t.Fatal("expected error for scalar document")
	}
	if _, err := LoadQueries(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	cfg := Config{Queries: []string{"pwd"}, QueriesFile: mapped}
	all, err := cfg.QueryList()
	if err != nil {
		t.Fatalf("QueryList error: %v", err)
	}
	if len(all) != 2 || all[0] != "pwd" || all[1] != "docker ps" {
		t.Fatalf("expected flag queries before file queries, got %v", all)
	}
}

// TestLoadExplicitPath loads a YAML file through viper and checks that the
// environment overrides a value from the file.
func TestLoadExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	payload := "binary: ./aka\niterations: 5\ntimeout: 3s\nqueries:\n  - ls\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DAEMONBENCH_ITERATIONS", "7")

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ConfigPath != path {
		t.Fatalf("expected config path %s, got %s", path, cfg.ConfigPath)
	}
	if cfg.Binary != "./aka" || cfg.QueryTimeout() != 3*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Iterations != 7 {
		t.Fatalf("expected env override of iterations, got %d", cfg.Iterations)
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestShowConfig(t *testing.T) {
	var buf bytes.Buffer
	ShowConfig(&buf, &Config{Iterations: 4, Ordering: "sideways"}, true)
	out := buf.String()

	for _, want := range []string{
		"No config file loaded",
		"Iterations:      4",
		"Queries:         ls -la",
		"(probe default candidates)",
		"Target Env:      AKA_BENCHMARK=1 RUST_LOG=info",
		"Invalid configuration",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestTargetEnvironment(t *testing.T) {
	if got := (Config{}).TargetEnvironment(); strings.Join(got, " ") != "AKA_BENCHMARK=1 RUST_LOG=info" {
		t.Fatalf("default target env = %v", got)
	}
	cfg := Config{TargetEnv: []string{" RUST_LOG=debug ", ""}}
	if got := cfg.TargetEnvironment(); len(got) != 1 || got[0] != "RUST_LOG=debug" {
		t.Fatalf("configured target env = %v", got)
	}
	if err := (Config{TargetEnv: []string{"AKA_BENCHMARK"}}).Validate(); err == nil || !strings.Contains(err.Error(), "KEY=VALUE") {
		t.Fatalf("expected KEY=VALUE error, got %v", err)
	}
}
