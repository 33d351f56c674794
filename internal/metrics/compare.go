package metrics

import (
	"errors"

	"github.com/mwiater/daemonbench/internal/diagnostics"
	"github.com/mwiater/daemonbench/internal/logging"
)

// Sample is one measured invocation as seen by the aggregator.
type Sample struct {
	DurationMs float64
	Success    bool
}

// ModeResult holds the wall-clock outcome of one mode.
type ModeResult struct {
	Total  int   `json:"total"`
	Failed int   `json:"failed"`
	Stats  Stats `json:"stats"`
}

// InternalComparison is built from the tool's self-reported timing summary.
type InternalComparison struct {
	DaemonMs           *float64 `json:"daemonMs,omitempty"`
	DaemonSamples      int      `json:"daemonSamples"`
	DirectMs           *float64 `json:"directMs,omitempty"`
	DirectSamples      int      `json:"directSamples"`
	ImprovementMs      *float64 `json:"improvementMs,omitempty"`
	ImprovementPercent *float64 `json:"improvementPercent,omitempty"`
}

// Comparison is the outcome of one benchmark run.
type Comparison struct {
	Daemon ModeResult `json:"daemon"`
	Direct ModeResult `json:"direct"`

	// ImprovementMs is direct mean minus daemon mean; positive favors the daemon.
	ImprovementMs      *float64      `json:"improvementMs,omitempty"`
	ImprovementPercent *float64      `json:"improvementPercent,omitempty"`
	Significance       *Significance `json:"significance,omitempty"`

	Internal *InternalComparison `json:"internal,omitempty"`
	// StartupOverheadMs estimates process startup cost as daemon wall-clock
	// mean minus the daemon's internal average. Only meaningful when both were
	// measured under comparable load.
	StartupOverheadMs *float64 `json:"startupOverheadMs,omitempty"`
}

// Aggregate compares the two modes. Only successful samples feed the
// statistics; diag may be nil.
func Aggregate(daemon, direct []Sample, diag *diagnostics.Summary) Comparison {
	daemonMs := successful(daemon)
	directMs := successful(direct)

	c := Comparison{
		Daemon: ModeResult{Total: len(daemon), Failed: len(daemon) - len(daemonMs), Stats: Summarize(daemonMs)},
		Direct: ModeResult{Total: len(direct), Failed: len(direct) - len(directMs), Stats: Summarize(directMs)},
	}

	if c.Daemon.Stats.Count > 0 && c.Direct.Stats.Count > 0 && c.Direct.Stats.Mean != 0 {
		diff := c.Direct.Stats.Mean - c.Daemon.Stats.Mean
		pct := diff / c.Direct.Stats.Mean * 100
		c.ImprovementMs = &diff
		c.ImprovementPercent = &pct
	}

	sig, err := WelchTTest(daemonMs, directMs, DefaultAlpha)
	switch {
	case err == nil:
		c.Significance = sig
	case errors.Is(err, ErrInsufficientSamples), errors.Is(err, ErrZeroVariance):
		logging.LogDebug("significance test skipped: %v", err)
	}

	if diag.HasTiming() {
		c.Internal = internalComparison(diag)
		if c.Daemon.Stats.Count > 0 && c.Internal.DaemonMs != nil && *c.Internal.DaemonMs > 0 {
			overhead := c.Daemon.Stats.Mean - *c.Internal.DaemonMs
			c.StartupOverheadMs = &overhead
		}
	}

	return c
}

func internalComparison(diag *diagnostics.Summary) *InternalComparison {
	ic := &InternalComparison{}
	if diag.Daemon != nil {
		v := diag.Daemon.AverageMs
		ic.DaemonMs = &v
		ic.DaemonSamples = diag.Daemon.Samples
	}
	if diag.Direct != nil {
		v := diag.Direct.AverageMs
		ic.DirectMs = &v
		ic.DirectSamples = diag.Direct.Samples
	}

	if ic.DaemonMs != nil && ic.DirectMs != nil && *ic.DaemonMs > 0 && *ic.DirectMs > 0 {
		diff := *ic.DirectMs - *ic.DaemonMs
		pct := diff / *ic.DirectMs * 100
		ic.ImprovementMs = &diff
		ic.ImprovementPercent = &pct
		return ic
	}
	// Fall back to what the tool printed itself.
	ic.ImprovementMs = diag.ImprovementMs
	ic.ImprovementPercent = diag.ImprovementPercent
	return ic
}

func successful(samples []Sample) []float64 {
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Success {
			out = append(out, s.DurationMs)
		}
	}
	return out
}
