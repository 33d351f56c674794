package benchmark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mwiater/daemonbench/internal/diagnostics"
	"github.com/mwiater/daemonbench/internal/lifecycle"
	"github.com/mwiater/daemonbench/internal/logging"
	"github.com/mwiater/daemonbench/internal/process"
	"github.com/mwiater/daemonbench/internal/target"
)

// Phase names a step of a benchmark run.
type Phase string

const (
	PhaseLocate      Phase = "locate"
	PhaseReset       Phase = "reset"
	PhaseDaemon      Phase = "daemon"
	PhaseDirect      Phase = "direct"
	PhaseDiagnostics Phase = "diagnostics"
	PhaseCleanup     Phase = "cleanup"
)

// DefaultCleanupTimeout bounds the best-effort daemon stop after a failed run.
const DefaultCleanupTimeout = 15 * time.Second

// Options configures an Orchestrator.
type Options struct {
	// Binary is the configured target; empty probes the default candidates.
	Binary     string
	ConfigPath string
	Queries    []string
	Iterations int

	// Timeout bounds each measured query. CommandTimeout bounds lifecycle,
	// locate and diagnostics commands.
	Timeout        time.Duration
	CommandTimeout time.Duration
	Pause          time.Duration
	StartSettle    time.Duration
	StopSettle     time.Duration
	CleanupTimeout time.Duration

	Ordering   Ordering
	PhaseOrder PhaseOrder

	OnPhase func(Phase)
	OnTrial Observer

	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Orchestrator drives a complete daemon-versus-direct run.
type Orchestrator struct {
	exec process.Executor
	opts Options
}

// NewOrchestrator validates opts and fills defaults.
func NewOrchestrator(exec process.Executor, opts Options) (*Orchestrator, error) {
	if exec == nil {
		return nil, errors.New("executor is required")
	}
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", opts.Iterations)
	}
	queries := make([]string, 0, len(opts.Queries))
	for _, q := range opts.Queries {
		if strings.TrimSpace(q) != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, errors.New("at least one query is required")
	}
	opts.Queries = queries

	if opts.Timeout <= 0 {
		opts.Timeout = lifecycle.DefaultCommandTimeout
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = lifecycle.DefaultCommandTimeout
	}
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = DefaultCleanupTimeout
	}
	var err error
	if opts.Ordering, err = ParseOrdering(string(opts.Ordering)); err != nil {
		return nil, err
	}
	if opts.PhaseOrder, err = ParsePhaseOrder(string(opts.PhaseOrder)); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{exec: exec, opts: opts}, nil
}

// TotalTrials is the number of measured invocations a full run performs.
func (o *Orchestrator) TotalTrials() int {
	return len(o.opts.Queries) * o.opts.Iterations * 2
}

// Execute runs every phase in order. On a fatal error or cancellation it
// tries to leave the daemon stopped and returns the partial run without a
// comparison.
func (o *Orchestrator) Execute(ctx context.Context) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: o.opts.Now().UTC(),
	}

	o.phase(PhaseLocate)
	binary, err := target.Locate(ctx, o.exec, o.opts.Binary, o.opts.CommandTimeout)
	if err != nil {
		run.FinishedAt = o.opts.Now().UTC()
		return run, err
	}

	tool := target.Tool{Binary: binary, ConfigPath: o.opts.ConfigPath}
	run.Settings = Settings{
		Iterations: o.opts.Iterations,
		Queries:    append([]string(nil), o.opts.Queries...),
		Binary:     binary,
		ConfigPath: o.opts.ConfigPath,
		TimeoutMs:  o.opts.Timeout.Milliseconds(),
		PauseMs:    o.opts.Pause.Milliseconds(),
		Ordering:   o.opts.Ordering,
		PhaseOrder: o.opts.PhaseOrder,
	}
	logging.LogEvent("run %s: binary=%s iterations=%d queries=%d order=%s", run.ID, binary, o.opts.Iterations, len(o.opts.Queries), o.opts.PhaseOrder)

	ctl := lifecycle.New(o.exec, tool, lifecycle.Options{
		StartSettle:    o.opts.StartSettle,
		StopSettle:     o.opts.StopSettle,
		CommandTimeout: o.opts.CommandTimeout,
		Sleep:          o.opts.Sleep,
	})
	runner := NewRunner(o.exec, tool, RunnerOptions{
		Timeout:  o.opts.Timeout,
		Pause:    o.opts.Pause,
		Ordering: o.opts.Ordering,
		Observer: o.opts.OnTrial,
		Sleep:    o.opts.Sleep,
	})

	abort := func(err error) (*Run, error) {
		o.cleanup(ctl)
		run.FinishedAt = o.opts.Now().UTC()
		return run, err
	}

	o.phase(PhaseReset)
	if err := ctl.EnsureStopped(ctx); err != nil {
		return abort(fmt.Errorf("reset: %w", err))
	}

	for _, mode := range o.opts.PhaseOrder.Modes() {
		if mode == ModeDaemon {
			err = ctl.EnsureRunning(ctx)
		} else {
			err = ctl.EnsureStopped(ctx)
		}
		if err != nil {
			return abort(fmt.Errorf("%s phase: %w", mode, err))
		}

		o.phase(Phase(mode))
		trials, runErr := runner.Run(ctx, mode, o.opts.Queries, o.opts.Iterations)
		run.Trials = append(run.Trials, trials...)
		if runErr != nil {
			return abort(fmt.Errorf("%s phase: %w", mode, runErr))
		}
	}

	o.phase(PhaseDiagnostics)
	if err := ctl.EnsureRunning(ctx); err != nil {
		if ctx.Err() != nil {
			return abort(err)
		}
		logging.LogWarn("diagnostics skipped: %v", err)
	} else {
		run.Diagnostics = diagnostics.NewFetcher(o.exec, tool, o.opts.CommandTimeout).Fetch(ctx)
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
	}

	run.Compare()
	run.FinishedAt = o.opts.Now().UTC()
	return run, nil
}

// cleanup stops the daemon with a fresh context so that it still runs after
// the run context was canceled.
func (o *Orchestrator) cleanup(ctl *lifecycle.Controller) {
	o.phase(PhaseCleanup)
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.CleanupTimeout)
	defer cancel()
	if err := ctl.EnsureStopped(ctx); err != nil {
		logging.LogWarn("cleanup: %v", err)
	}
}

func (o *Orchestrator) phase(p Phase) {
	logging.LogDebug("phase %s", p)
	if o.opts.OnPhase != nil {
		o.opts.OnPhase(p)
	}
}
