package daemonbench

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/mwiater/daemonbench/internal/benchmark"
	"github.com/mwiater/daemonbench/internal/process/processtest"
	"github.com/mwiater/daemonbench/internal/report"
)

const timingSummary = `Daemon mode:
  Average: 2.000ms
  Samples: 3
Direct mode:
  Average: 40.000ms
  Samples: 3
`

func fastRunArgs(t *testing.T, dir string, extra ...string) []string {
	t.Helper()
	args := []string{
		"run",
		"--config", writeTempConfig(t, `{"iterations": 5}`),
		"--logFile", filepath.Join(dir, "daemonbench.log"),
		"--binary", "aka",
		"-i", "3",
		"--pause", "0s",
		"--start-settle", "1ms",
		"--stop-settle", "1ms",
		"--output-dir", dir,
	}
	return append(args, extra...)
}

func TestShowConfigUsesFlagValues(t *testing.T) {
	configPath := writeTempConfig(t, `{"iterations": 25, "phaseOrder": "direct-first"}`)
	out, err := executeRoot(t, "show", "config",
		"--config", configPath,
		"--logFile", filepath.Join(t.TempDir(), "daemonbench.log"),
		"--binary", "./bin/aka",
	)
	if err != nil {
		t.Fatalf("show config error: %v", err)
	}

	for _, want := range []string{
		"Config file: " + configPath,
		"Binary:          ./bin/aka",
		"Iterations:      25",
		"Phase Order:     direct-first",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if GetConfig().ConfigPath != configPath {
		t.Fatalf("expected config loaded from %s", configPath)
	}
}

// TestRunWritesReportAndArtifacts drives a full run against a fake target.
func TestRunWritesReportAndArtifacts(t *testing.T) {
	fake := &processtest.FakeTarget{
		DaemonQueryMs: []float64{10, 12, 14},
		DirectQueryMs: []float64{50, 52, 48},
		Summary:       timingSummary,
		Export:        "timestamp,mode,total_ms,config_ms,ipc_ms,processing_ms\n1,Daemon,2,0,1,1\n",
	}
	env := withExecutor(t, fake)
	dir := t.TempDir()
	promPath := filepath.Join(dir, "daemonbench.prom")

	out, err := executeRoot(t, fastRunArgs(t, dir, "--textfile", promPath)...)
	if err != nil {
		t.Fatalf("run error: %v\n%s", err, out)
	}

	for _, want := range []string{
		"DAEMON VS DIRECT PERFORMANCE REPORT",
		"Daemon is 38.0ms faster (76.0% improvement)",
		"INTERNAL PROCESSING PERFORMANCE",
		"Raw timing export: 1 records",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in report:\n%s", want, out)
		}
	}

	run, err := report.LoadExport(filepath.Join(dir, report.DefaultExportName))
	if err != nil {
		t.Fatalf("LoadExport error: %v", err)
	}
	if run.Settings.Iterations != 3 || len(run.Trials) != 6 {
		t.Fatalf("expected flag iterations to win over config file: %+v", run.Settings)
	}
	if !slices.Equal(*env, []string{"AKA_BENCHMARK=1", "RUST_LOG=info"}) {
		t.Fatalf("expected default benchmark env for the driver, got %v", *env)
	}
	if _, err := os.Stat(promPath); err != nil {
		t.Fatalf("expected textfile: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "timing-*.csv"))
	if len(matches) != 1 {
		t.Fatalf("expected one raw timing CSV, got %v", matches)
	}
	if !fake.IsRunning() {
		t.Fatal("daemon should be left running")
	}

	rendered, err := executeRoot(t, "report", filepath.Join(dir, report.DefaultExportName),
		"--config", writeTempConfig(t, "{}"),
		"--logFile", filepath.Join(dir, "daemonbench.log"))
	if err != nil {
		t.Fatalf("report error: %v", err)
	}
	if !strings.Contains(rendered, "Daemon is 38.0ms faster") {
		t.Fatalf("expected saved report to re-render:\n%s", rendered)
	}
}

func TestRunJSONOutput(t *testing.T) {
	withExecutor(t, &processtest.FakeTarget{
		DaemonQueryMs: []float64{10},
		DirectQueryMs: []float64{50},
		SummaryFails:  true,
		ExportFails:   true,
	})
	dir := t.TempDir()

	out, err := executeRoot(t, fastRunArgs(t, dir, "--json", "--query", "git status", "--query", "echo a,b")...)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	var run benchmark.Run
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("expected JSON output: %v\n%s", err, out)
	}
	if len(run.Settings.Queries) != 2 || run.Settings.Queries[1] != "echo a,b" {
		t.Fatalf("unexpected queries: %v", run.Settings.Queries)
	}
	if run.Diagnostics != nil {
		t.Fatalf("expected no diagnostics, got %+v", run.Diagnostics)
	}
	if run.Comparison == nil || run.Comparison.Internal != nil {
		t.Fatalf("expected wall-clock comparison only: %+v", run.Comparison)
	}
}

func TestRunFailsWhenDaemonNeverStarts(t *testing.T) {
	fake := &processtest.FakeTarget{StartIgnored: true}
	withExecutor(t, fake)
	dir := t.TempDir()

	_, err := executeRoot(t, fastRunArgs(t, dir)...)
	if err == nil {
		t.Fatal("expected run to fail")
	}
	if exitCode(err) != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode(err))
	}
	if _, statErr := os.Stat(filepath.Join(dir, report.DefaultExportName)); !os.IsNotExist(statErr) {
		t.Fatal("no export should be written for a failed run")
	}
}

func TestRunRejectsInvalidOrdering(t *testing.T) {
	withExecutor(t, &processtest.FakeTarget{})
	_, err := executeRoot(t, fastRunArgs(t, t.TempDir(), "--ordering", "random")...)
	if err == nil || !strings.Contains(err.Error(), "random") {
		t.Fatalf("expected ordering error, got %v", err)
	}
}

func TestLocateCommand(t *testing.T) {
	withExecutor(t, &processtest.FakeTarget{})
	out, err := executeRoot(t, "locate", "--binary", "./target/release/aka",
		"--config", writeTempConfig(t, "{}"),
		"--logFile", filepath.Join(t.TempDir(), "daemonbench.log"))
	if err != nil {
		t.Fatalf("locate error: %v", err)
	}
	if strings.TrimSpace(out) != "./target/release/aka" {
		t.Fatalf("unexpected locate output %q", out)
	}

	withExecutor(t, &processtest.FakeTarget{VersionFails: true})
	if _, err := executeRoot(t, "locate", "--config", writeTempConfig(t, "{}"),
		"--logFile", filepath.Join(t.TempDir(), "daemonbench.log")); err == nil {
		t.Fatal("expected locate to fail when no candidate answers")
	}
}

func TestRunPassesTargetEnvFromFlags(t *testing.T) {
	env := withExecutor(t, &processtest.FakeTarget{})
	dir := t.TempDir()

	_, err := executeRoot(t, fastRunArgs(t, dir, "--target-env", "AKA_BENCHMARK=1", "--target-env", "RUST_LOG=debug")...)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if !slices.Equal(*env, []string{"AKA_BENCHMARK=1", "RUST_LOG=debug"}) {
		t.Fatalf("unexpected driver env %v", *env)
	}
}

func TestRunRejectsNonPositiveIterations(t *testing.T) {
	fake := &processtest.FakeTarget{}
	withExecutor(t, fake)

	_, err := executeRoot(t, fastRunArgs(t, t.TempDir(), "-i", "0")...)
	if err == nil || !strings.Contains(err.Error(), "iterations") {
		t.Fatalf("expected iterations error, got %v", err)
	}
	if len(fake.Calls()) != 0 {
		t.Fatalf("no target command should run, got %d calls", len(fake.Calls()))
	}
}
