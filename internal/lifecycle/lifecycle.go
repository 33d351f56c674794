// Package lifecycle puts the target's background process into a known state
// before each measurement phase.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mwiater/daemonbench/internal/logging"
	"github.com/mwiater/daemonbench/internal/process"
	"github.com/mwiater/daemonbench/internal/target"
)

// State is the last observed state of the background process.
type State string

const (
	StateUnknown State = "unknown"
	StateStopped State = "stopped"
	StateRunning State = "running"
)

const (
	// DefaultStartSettle is the wait after `daemon --start` before re-probing.
	DefaultStartSettle = 2 * time.Second
	// DefaultStopSettle is the wait after `daemon --stop` before re-probing.
	DefaultStopSettle = 1 * time.Second
	// DefaultCommandTimeout bounds each lifecycle command.
	DefaultCommandTimeout = 10 * time.Second
)

// ErrStartFailed means the background process could not be confirmed running.
var ErrStartFailed = errors.New("background process did not start")

// TransitionError describes a failed lifecycle transition.
type TransitionError struct {
	Want       State
	ExitStatus int
	Output     string
	Err        error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("transition to %s failed (start exit=%d)", e.Want, e.ExitStatus)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return e.Err }

// Options configures a Controller. Zero durations fall back to the defaults.
type Options struct {
	StartSettle    time.Duration
	StopSettle     time.Duration
	CommandTimeout time.Duration
	// Sleep waits for d or until ctx is done; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Controller drives `daemon --start/--stop/--status`. It is not safe for
// concurrent use; the harness owns the background process exclusively.
type Controller struct {
	exec  process.Executor
	tool  target.Tool
	opts  Options
	state State
}

// New returns a Controller in the unknown state.
func New(exec process.Executor, tool target.Tool, opts Options) *Controller {
	if opts.StartSettle <= 0 {
		opts.StartSettle = DefaultStartSettle
	}
	if opts.StopSettle <= 0 {
		opts.StopSettle = DefaultStopSettle
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepWithContext
	}
	return &Controller{exec: exec, tool: tool, opts: opts, state: StateUnknown}
}

// State returns the last observed state.
func (c *Controller) State() State { return c.state }

// Probe queries `daemon --status` and records the observed state.
func (c *Controller) Probe(ctx context.Context) (bool, error) {
	res := c.exec.Execute(ctx, c.tool.DaemonStatus(), c.opts.CommandTimeout)
	if res.Canceled {
		return false, res.Err
	}
	if res.Err != nil {
		c.state = StateUnknown
		return false, fmt.Errorf("probe daemon status: %w", res.Err)
	}
	running := target.IsRunning(res)
	if running {
		c.state = StateRunning
	} else {
		c.state = StateStopped
	}
	return running, nil
}

// EnsureStopped stops the background process if it is present. Stop failures
// are logged and tolerated; only context errors are returned.
func (c *Controller) EnsureStopped(ctx context.Context) error {
	running, err := c.Probe(ctx)
	if err := ctxErr(ctx, err); err != nil {
		return err
	}
	if err != nil {
		logging.LogWarn("daemon status probe failed before stop: %v", err)
	}
	if err == nil && !running {
		logging.LogDebug("daemon already stopped")
		return nil
	}

	logging.LogEvent("Stopping daemon...")
	res := c.exec.Execute(ctx, c.tool.DaemonStop(), c.opts.CommandTimeout)
	if res.Canceled {
		return res.Err
	}
	if !res.Success() {
		logging.LogWarn("daemon stop command failed (exit=%d): %s", res.ExitStatus, strings.TrimSpace(res.Output()))
	}

	if err := c.opts.Sleep(ctx, c.opts.StopSettle); err != nil {
		return err
	}

	running, err = c.Probe(ctx)
	if err := ctxErr(ctx, err); err != nil {
		return err
	}
	switch {
	case err != nil:
		logging.LogWarn("daemon status probe failed after stop: %v", err)
	case running:
		logging.LogWarn("daemon still running after stop; measurements may be skewed")
	default:
		logging.LogEvent("Daemon stopped")
	}
	return nil
}

// EnsureRunning starts the background process if it is absent. Failing to
// confirm a running process returns a *TransitionError wrapping ErrStartFailed.
func (c *Controller) EnsureRunning(ctx context.Context) error {
	running, err := c.Probe(ctx)
	if err := ctxErr(ctx, err); err != nil {
		return err
	}
	if err == nil && running {
		logging.LogDebug("daemon already running")
		return nil
	}

	logging.LogEvent("Starting daemon...")
	res := c.exec.Execute(ctx, c.tool.DaemonStart(), c.opts.CommandTimeout)
	if res.Canceled {
		return res.Err
	}
	if !res.Success() {
		logging.LogWarn("daemon start command failed (exit=%d): %s", res.ExitStatus, strings.TrimSpace(res.Output()))
	}

	if err := c.opts.Sleep(ctx, c.opts.StartSettle); err != nil {
		return err
	}

	running, err = c.Probe(ctx)
	if err := ctxErr(ctx, err); err != nil {
		return err
	}
	if err != nil || !running {
		cause := ErrStartFailed
		if err != nil {
			cause = fmt.Errorf("%w: %v", ErrStartFailed, err)
		}
		return &TransitionError{
			Want:       StateRunning,
			ExitStatus: res.ExitStatus,
			Output:     res.Output(),
			Err:        cause,
		}
	}
	logging.LogEvent("Daemon running")
	return nil
}

// ctxErr returns the context error when ctx is done, regardless of err.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	return nil
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
