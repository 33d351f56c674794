package benchmark

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwiater/daemonbench/internal/diagnostics"
	"github.com/mwiater/daemonbench/internal/metrics"
)

// Mode is the execution path being measured.
type Mode string

const (
	ModeDaemon Mode = "daemon"
	ModeDirect Mode = "direct"
)

// Label is the upper-case tag used in log lines.
func (m Mode) Label() string { return strings.ToUpper(string(m)) }

// Ordering controls how queries and iterations are interleaved.
type Ordering string

const (
	// OrderingIterationMajor runs every query once per pass.
	OrderingIterationMajor Ordering = "iteration-major"
	// OrderingQueryMajor runs all iterations of one query before the next.
	OrderingQueryMajor Ordering = "query-major"
)

// ParseOrdering validates an ordering name. Empty selects iteration-major.
func ParseOrdering(s string) (Ordering, error) {
	switch o := Ordering(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OrderingIterationMajor, nil
	case OrderingIterationMajor, OrderingQueryMajor:
		return o, nil
	default:
		return "", fmt.Errorf("unknown ordering %q (want %s or %s)", s, OrderingIterationMajor, OrderingQueryMajor)
	}
}

// PhaseOrder selects which mode is measured first.
type PhaseOrder string

const (
	DaemonFirst PhaseOrder = "daemon-first"
	DirectFirst PhaseOrder = "direct-first"
)

// ParsePhaseOrder validates a phase order name. Empty selects daemon-first.
func ParsePhaseOrder(s string) (PhaseOrder, error) {
	switch p := PhaseOrder(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DaemonFirst, nil
	case DaemonFirst, DirectFirst:
		return p, nil
	default:
		return "", fmt.Errorf("unknown phase order %q (want %s or %s)", s, DaemonFirst, DirectFirst)
	}
}

// Modes returns the modes in measurement order.
func (p PhaseOrder) Modes() []Mode {
	if p == DirectFirst {
		return []Mode{ModeDirect, ModeDaemon}
	}
	return []Mode{ModeDaemon, ModeDirect}
}

// Trial is one measured invocation of the target's query command.
type Trial struct {
	Mode       Mode    `json:"mode"`
	Query      string  `json:"query"`
	Iteration  int     `json:"iteration"`
	DurationMs float64 `json:"durationMs"`
	ExitStatus int     `json:"exitStatus"`
	TimedOut   bool    `json:"timedOut"`
	Success    bool    `json:"success"`
	Output     string  `json:"output,omitempty"`
}

// Settings is the resolved configuration recorded with a run.
type Settings struct {
	Iterations int        `json:"iterations"`
	Queries    []string   `json:"queries"`
	Binary     string     `json:"binary"`
	ConfigPath string     `json:"configPath,omitempty"`
	TimeoutMs  int64      `json:"timeoutMs"`
	PauseMs    int64      `json:"pauseMs"`
	Ordering   Ordering   `json:"ordering"`
	PhaseOrder PhaseOrder `json:"phaseOrder"`
}

// Run is everything one benchmark invocation produced.
type Run struct {
	ID          string               `json:"id"`
	StartedAt   time.Time            `json:"startedAt"`
	FinishedAt  time.Time            `json:"finishedAt"`
	Settings    Settings             `json:"config"`
	Trials      []Trial              `json:"trials"`
	Diagnostics *diagnostics.Summary `json:"diagnostics,omitempty"`
	Comparison  *metrics.Comparison  `json:"comparison,omitempty"`
}

// TrialsFor returns the trials of one mode in invocation order.
func (r *Run) TrialsFor(mode Mode) []Trial {
	var out []Trial
	for _, t := range r.Trials {
		if t.Mode == mode {
			out = append(out, t)
		}
	}
	return out
}

// Samples converts the trials of one mode for aggregation.
func (r *Run) Samples(mode Mode) []metrics.Sample {
	trials := r.TrialsFor(mode)
	out := make([]metrics.Sample, len(trials))
	for i, t := range trials {
		out[i] = metrics.Sample{DurationMs: t.DurationMs, Success: t.Success}
	}
	return out
}

// Compare aggregates the run's trials and diagnostics into r.Comparison.
func (r *Run) Compare() *metrics.Comparison {
	c := metrics.Aggregate(r.Samples(ModeDaemon), r.Samples(ModeDirect), r.Diagnostics)
	r.Comparison = &c
	return r.Comparison
}
