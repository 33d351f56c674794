// Package target builds the argument vectors of the benchmarked tool and
// interprets its liveness and status responses.
package target

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mwiater/daemonbench/internal/logging"
	"github.com/mwiater/daemonbench/internal/process"
)

// ErrNotFound is returned when no candidate binary answers `--version`.
var ErrNotFound = errors.New("target binary not found")

// DefaultCandidates are probed in order when no binary is configured.
func DefaultCandidates() []string {
	return []string{
		"./target/release/aka",
		"./target/debug/aka",
		"aka",
	}
}

// Tool describes one resolved target executable.
type Tool struct {
	Binary     string
	ConfigPath string
}

// Version returns the liveness probe command line.
func (t Tool) Version() []string { return []string{t.Binary, "--version"} }

// DaemonStart returns the command line that starts the background process.
func (t Tool) DaemonStart() []string { return t.daemon("--start") }

// DaemonStop returns the command line that stops the background process.
func (t Tool) DaemonStop() []string { return t.daemon("--stop") }

// DaemonStatus returns the command line that probes the background process.
func (t Tool) DaemonStatus() []string { return t.daemon("--status") }

// TimingSummary returns the free-text diagnostics command line.
func (t Tool) TimingSummary() []string { return t.daemon("--timing-summary") }

// ExportTiming returns the raw CSV diagnostics command line.
func (t Tool) ExportTiming() []string { return t.daemon("--export-timing") }

// Query returns the measured workload command line for one query.
func (t Tool) Query(text string) []string {
	argv := []string{t.Binary, "query", text}
	if cfg := strings.TrimSpace(t.ConfigPath); cfg != "" {
		argv = append(argv, "-c", cfg)
	}
	return argv
}

func (t Tool) daemon(flag string) []string {
	return []string{t.Binary, "daemon", flag}
}

// IsRunning interprets a `daemon --status` result. The process counts as
// present only when the probe exits zero and reports "running".
func IsRunning(res process.Result) bool {
	if !res.Success() {
		return false
	}
	out := strings.ToLower(res.Output())
	if strings.Contains(out, "not running") {
		return false
	}
	return strings.Contains(out, "running")
}

// Locate probes each candidate with `--version` and returns the first one
// that exits zero. A configured binary is tried alone.
func Locate(ctx context.Context, exec process.Executor, configured string, timeout time.Duration) (string, error) {
	candidates := DefaultCandidates()
	if b := strings.TrimSpace(configured); b != "" {
		candidates = []string{b}
	}

	var tried []string
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res := exec.Execute(ctx, Tool{Binary: candidate}.Version(), timeout)
		if res.Success() {
			logging.LogEvent("target binary resolved: %s (%s)", candidate, firstLine(res.Stdout))
			return candidate, nil
		}
		logging.LogDebug("target candidate %s rejected: exit=%d err=%v", candidate, res.ExitStatus, res.Err)
		tried = append(tried, candidate)
	}

	return "", fmt.Errorf("%w (tried %s); build the tool first or pass --binary", ErrNotFound, strings.Join(tried, ", "))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "no version output"
	}
	return s
}
