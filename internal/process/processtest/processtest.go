// Package processtest provides process.Executor doubles for tests.
package processtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mwiater/daemonbench/internal/process"
)

// Call records one Execute invocation.
type Call struct {
	Argv    []string
	Timeout time.Duration
}

// Joined returns the argv without the binary, space separated.
func (c Call) Joined() string {
	if len(c.Argv) < 2 {
		return ""
	}
	return strings.Join(c.Argv[1:], " ")
}

// MockExecutor delegates to ExecuteFunc and records every call.
type MockExecutor struct {
	ExecuteFunc func(ctx context.Context, argv []string, timeout time.Duration) process.Result

	mu    sync.Mutex
	calls []Call
}

// Execute records the call and delegates to ExecuteFunc.
func (m *MockExecutor) Execute(ctx context.Context, argv []string, timeout time.Duration) process.Result {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Argv: append([]string(nil), argv...), Timeout: timeout})
	m.mu.Unlock()
	if m.ExecuteFunc == nil {
		return process.Result{Argv: argv}
	}
	return m.ExecuteFunc(ctx, argv, timeout)
}

// Calls returns a copy of the recorded calls.
func (m *MockExecutor) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// FakeTarget simulates the benchmarked tool, including its background process.
// Zero values describe a healthy tool whose daemon starts and stops on request.
type FakeTarget struct {
	mu sync.Mutex

	Running bool
	// StartIgnored makes `daemon --start` exit zero without starting anything.
	StartIgnored bool
	// StartFails makes `daemon --start` exit non-zero.
	StartFails bool
	// StopIgnored makes `daemon --stop` exit zero while the daemon keeps running.
	StopIgnored bool
	// StopFails makes `daemon --stop` exit non-zero.
	StopFails bool

	// DaemonQueryMs and DirectQueryMs are returned as successive query
	// durations per mode, cycling when exhausted.
	DaemonQueryMs []float64
	DirectQueryMs []float64
	// QueryOutcome, when set, overrides the result of the nth query (1-based,
	// counted across modes).
	QueryOutcome func(n int, running bool) (exitStatus int, timedOut bool)

	// Summary is returned by `daemon --timing-summary`; SummaryFails makes it exit 1.
	Summary      string
	SummaryFails bool
	// Export is returned by `daemon --export-timing`; ExportFails makes it exit 1.
	Export      string
	ExportFails bool

	// VersionFails makes `--version` exit non-zero.
	VersionFails bool

	calls        []Call
	queries      int
	daemonCursor int
	directCursor int
}

// Execute implements process.Executor.
func (f *FakeTarget) Execute(ctx context.Context, argv []string, timeout time.Duration) process.Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Argv: append([]string(nil), argv...), Timeout: timeout})
	res := process.Result{Argv: argv}
	if err := ctx.Err(); err != nil {
		res.Canceled = true
		res.ExitStatus = process.CanceledExitStatus
		res.Err = err
		return res
	}
	if len(argv) < 2 {
		res.ExitStatus = 2
		res.Stderr = "usage"
		return res
	}

	switch strings.Join(argv[1:min(len(argv), 3)], " ") {
	case "--version":
		if f.VersionFails {
			res.ExitStatus = 1
			return res
		}
		res.Stdout = "aka 0.5.0\n"
	case "daemon --status":
		if f.Running {
			res.Stdout = "Daemon is running (pid 4242)\n"
		} else {
			res.Stdout = "Daemon is not running\n"
			res.ExitStatus = 1
		}
	case "daemon --start":
		switch {
		case f.StartFails:
			res.ExitStatus = 1
			res.Stderr = "failed to start daemon\n"
		case f.StartIgnored:
			res.Stdout = "Daemon started\n"
		default:
			f.Running = true
			res.Stdout = "Daemon started\n"
		}
	case "daemon --stop":
		switch {
		case f.StopFails:
			res.ExitStatus = 1
			res.Stderr = "failed to stop daemon\n"
		case f.StopIgnored:
			res.Stdout = "Daemon stopped\n"
		default:
			f.Running = false
			res.Stdout = "Daemon stopped\n"
		}
	case "daemon --timing-summary":
		if f.SummaryFails {
			res.ExitStatus = 1
			res.Stderr = "unknown flag --timing-summary\n"
			return res
		}
		res.Stdout = f.Summary
	case "daemon --export-timing":
		if f.ExportFails {
			res.ExitStatus = 1
			res.Stderr = "unknown flag --export-timing\n"
			return res
		}
		res.Stdout = f.Export
	default:
		if argv[1] != "query" {
			res.ExitStatus = 2
			res.Stderr = "unknown command\n"
			return res
		}
		f.queries++
		if f.Running {
			res.Duration = msDuration(next(f.DaemonQueryMs, &f.daemonCursor, 10))
		} else {
			res.Duration = msDuration(next(f.DirectQueryMs, &f.directCursor, 50))
		}
		res.Stdout = "ok\n"
		if f.QueryOutcome != nil {
			status, timedOut := f.QueryOutcome(f.queries, f.Running)
			res.ExitStatus = status
			if timedOut {
				res.TimedOut = true
				res.ExitStatus = process.TimeoutExitStatus
				res.Duration = timeout
			}
		}
	}
	return res
}

// Calls returns a copy of the recorded calls.
func (f *FakeTarget) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// IsRunning reports the simulated daemon state.
func (f *FakeTarget) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Running
}

func next(values []float64, cursor *int, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	v := values[*cursor%len(values)]
	*cursor++
	return v
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
