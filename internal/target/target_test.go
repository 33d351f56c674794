package target

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/mwiater/daemonbench/internal/process"
	"github.com/mwiater/daemonbench/internal/process/processtest"
)

func TestToolCommandLines(t *testing.T) {
	tool := Tool{Binary: "aka"}
	cases := map[string][]string{
		"version": tool.Version(),
		"start":   tool.DaemonStart(),
		"stop":    tool.DaemonStop(),
		"status":  tool.DaemonStatus(),
		"summary": tool.TimingSummary(),
		"export":  tool.ExportTiming(),
		"query":   tool.Query("ls -la"),
	}
	want := map[string][]string{
		"version": {"aka", "--version"},
		"start":   {"aka", "daemon", "--start"},
		"stop":    {"aka", "daemon", "--stop"},
		"status":  {"aka", "daemon", "--status"},
		"summary": {"aka", "daemon", "--timing-summary"},
		"export":  {"aka", "daemon", "--export-timing"},
		"query":   {"aka", "query", "ls -la"},
	}
	for name, got := range cases {
		if !reflect.DeepEqual(got, want[name]) {
			t.Fatalf("%s argv = %v, want %v", name, got, want[name])
		}
	}
}

func TestQueryAddsConfigPath(t *testing.T) {
	tool := Tool{Binary: "aka", ConfigPath: "/tmp/aka.yml"}
	got := tool.Query("gs")
	want := []string{"aka", "query", "gs", "-c", "/tmp/aka.yml"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Query argv = %v, want %v", got, want)
	}
}

func TestIsRunning(t *testing.T) {
	cases := []struct {
		name string
		res  process.Result
		want bool
	}{
		{"running", process.Result{Stdout: "Daemon is RUNNING"}, true},
		{"not running", process.Result{Stdout: "daemon not running"}, false},
		{"non-zero exit", process.Result{Stdout: "running", ExitStatus: 1}, false},
		{"timed out", process.Result{Stdout: "running", TimedOut: true, ExitStatus: process.TimeoutExitStatus}, false},
		{"no marker", process.Result{Stdout: "ok"}, false},
		{"marker on stderr", process.Result{Stderr: "running"}, true},
	}
	for _, tc := range cases {
		if got := IsRunning(tc.res); got != tc.want {
			t.Fatalf("%s: IsRunning = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLocatePicksFirstWorkingCandidate(t *testing.T) {
	exec := &processtest.MockExecutor{
		ExecuteFunc: func(_ context.Context, argv []string, _ time.Duration) process.Result {
			if argv[0] == "./target/debug/aka" {
				return process.Result{Stdout: "aka 1.0\n"}
			}
			return process.Result{ExitStatus: process.SpawnFailureExitStatus, Err: process.ErrSpawn}
		},
	}
	got, err := Locate(context.Background(), exec, "", time.Second)
	if err != nil {
		t.Fatalf("Locate error: %v", err)
	}
	if got != "./target/debug/aka" {
		t.Fatalf("Locate = %q", got)
	}
	if calls := exec.Calls(); len(calls) != 2 {
		t.Fatalf("expected 2 probes, got %d", len(calls))
	}
}

func TestLocateConfiguredBinaryOnly(t *testing.T) {
	exec := &processtest.MockExecutor{
		ExecuteFunc: func(_ context.Context, _ []string, _ time.Duration) process.Result {
			return process.Result{ExitStatus: 1}
		},
	}
	_, err := Locate(context.Background(), exec, "/opt/aka", time.Second)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	calls := exec.Calls()
	if len(calls) != 1 || calls[0].Argv[0] != "/opt/aka" {
		t.Fatalf("unexpected probes: %+v", calls)
	}
}

func TestLocateHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Locate(ctx, &processtest.MockExecutor{}, "", time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
