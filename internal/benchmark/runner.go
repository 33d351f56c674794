package benchmark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mwiater/daemonbench/internal/logging"
	"github.com/mwiater/daemonbench/internal/process"
	"github.com/mwiater/daemonbench/internal/target"
	"github.com/mwiater/daemonbench/internal/util"
)

// DefaultPause separates consecutive invocations.
const DefaultPause = 100 * time.Millisecond

// maxTrialOutput caps the output kept on each trial.
const maxTrialOutput = 4096

// Observer receives each trial as soon as it is recorded.
type Observer func(Trial)

// RunnerOptions configures a Runner. Zero values select defaults.
type RunnerOptions struct {
	Timeout  time.Duration
	Pause    time.Duration
	Ordering Ordering
	Observer Observer
	Sleep    func(ctx context.Context, d time.Duration) error
}

// Runner executes the query workload for one mode.
type Runner struct {
	exec process.Executor
	tool target.Tool
	opts RunnerOptions
}

// NewRunner builds a Runner.
func NewRunner(exec process.Executor, tool target.Tool, opts RunnerOptions) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Pause < 0 {
		opts.Pause = 0
	}
	if opts.Ordering == "" {
		opts.Ordering = OrderingIterationMajor
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepWithContext
	}
	return &Runner{exec: exec, tool: tool, opts: opts}
}

type step struct {
	query     string
	iteration int
}

func (r *Runner) plan(queries []string, iterations int) []step {
	steps := make([]step, 0, len(queries)*iterations)
	if r.opts.Ordering == OrderingQueryMajor {
		for _, q := range queries {
			for i := 1; i <= iterations; i++ {
				steps = append(steps, step{query: q, iteration: i})
			}
		}
		return steps
	}
	for i := 1; i <= iterations; i++ {
		for _, q := range queries {
			steps = append(steps, step{query: q, iteration: i})
		}
	}
	return steps
}

// Run executes every query iterations times and returns the trials in
// invocation order, failures included. It stops early on cancellation, and on
// a spawn failure, which means the target binary is gone; in both cases the
// trials recorded so far are returned with the error.
func (r *Runner) Run(ctx context.Context, mode Mode, queries []string, iterations int) ([]Trial, error) {
	steps := r.plan(queries, iterations)
	trials := make([]Trial, 0, len(steps))

	for n, s := range steps {
		if err := ctx.Err(); err != nil {
			return trials, err
		}

		res := r.exec.Execute(ctx, r.tool.Query(s.query), r.opts.Timeout)
		if res.Canceled {
			return trials, res.Err
		}

		trial := newTrial(mode, s, res)
		trials = append(trials, trial)
		r.record(trial, res)

		if errors.Is(res.Err, process.ErrSpawn) {
			return trials, fmt.Errorf("%s trial %d: %w", mode, n+1, res.Err)
		}

		if n < len(steps)-1 && r.opts.Pause > 0 {
			if err := r.opts.Sleep(ctx, r.opts.Pause); err != nil {
				return trials, err
			}
		}
	}
	return trials, nil
}

func (r *Runner) record(trial Trial, res process.Result) {
	detail := ""
	if !trial.Success {
		switch {
		case res.TimedOut:
			detail = fmt.Sprintf("timed out after %s", r.opts.Timeout)
		case res.Err != nil:
			detail = res.Err.Error()
		default:
			detail = trial.Output
		}
	}
	logging.LogTrial(trial.Mode.Label(), trial.Query, trial.Iteration, trial.DurationMs, trial.ExitStatus, detail)
	if r.opts.Observer != nil {
		r.opts.Observer(trial)
	}
}

func newTrial(mode Mode, s step, res process.Result) Trial {
	out := util.LimitBytes(res.Output(), maxTrialOutput)
	return Trial{
		Mode:       mode,
		Query:      s.query,
		Iteration:  s.iteration,
		DurationMs: res.DurationMs(),
		ExitStatus: res.ExitStatus,
		TimedOut:   res.TimedOut,
		Success:    res.Success(),
		Output:     out,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
