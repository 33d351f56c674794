// Package process runs one child process at a time under a hard timeout and
// reports every outcome, including spawn failures, as a Result value.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	// TimeoutExitStatus marks a child that was killed after exceeding its timeout.
	TimeoutExitStatus = -1
	// SpawnFailureExitStatus marks a child that never started.
	SpawnFailureExitStatus = -2
	// CanceledExitStatus marks a child killed because the caller's context ended.
	CanceledExitStatus = -3

	// DefaultMaxOutputBytes bounds each captured stream.
	DefaultMaxOutputBytes = 4 << 20

	// waitDelay bounds how long Wait blocks on pipes held open by grandchildren,
	// e.g. a daemon forked by `daemon --start`.
	waitDelay = 500 * time.Millisecond
)

var (
	// ErrInvalidArgs is returned for an empty argv or a non-positive timeout.
	ErrInvalidArgs = errors.New("invalid command arguments")
	// ErrSpawn is returned when the executable could not be started.
	ErrSpawn = errors.New("spawn failed")
)

// Result is the structured outcome of one Execute call.
type Result struct {
	Argv       []string
	ExitStatus int
	Stdout     string
	Stderr     string
	Duration   time.Duration
	TimedOut   bool
	Canceled   bool
	// Err is set only for harness-level failures: invalid arguments, spawn
	// failures and cancellation. Non-zero exits and timeouts leave it nil.
	Err error
}

// Success reports whether the child ran to completion with exit status zero.
func (r Result) Success() bool {
	return r.Err == nil && !r.TimedOut && r.ExitStatus == 0
}

// DurationMs returns the wall-clock duration in fractional milliseconds.
func (r Result) DurationMs() float64 {
	return float64(r.Duration) / float64(time.Millisecond)
}

// Output returns stdout followed by stderr.
func (r Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + r.Stderr
}

// Executor runs a command line under a timeout.
type Executor interface {
	Execute(ctx context.Context, argv []string, timeout time.Duration) Result
}

// Driver is the os/exec backed Executor.
type Driver struct {
	// Env is appended to the inherited environment of every child.
	Env []string
	// Dir is the working directory of every child; empty means the current one.
	Dir string
	// MaxOutputBytes bounds each captured stream; zero means DefaultMaxOutputBytes.
	MaxOutputBytes int
}

// NewDriver returns a Driver that overlays env on the inherited environment.
func NewDriver(env []string) *Driver {
	return &Driver{Env: env, MaxOutputBytes: DefaultMaxOutputBytes}
}

// Execute runs argv and blocks until it exits, the timeout elapses or ctx is done.
func (d *Driver) Execute(ctx context.Context, argv []string, timeout time.Duration) Result {
	res := Result{Argv: append([]string(nil), argv...)}

	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		res.ExitStatus = SpawnFailureExitStatus
		res.Err = fmt.Errorf("%w: empty command line", ErrInvalidArgs)
		return res
	}
	if timeout <= 0 {
		res.ExitStatus = SpawnFailureExitStatus
		res.Err = fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidArgs, timeout)
		return res
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	if len(d.Env) > 0 {
		cmd.Env = append(os.Environ(), d.Env...)
	}
	cmd.Dir = d.Dir
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	limit := d.MaxOutputBytes
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	stdout := &boundedBuffer{limit: limit}
	stderr := &boundedBuffer{limit: limit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		res.ExitStatus = SpawnFailureExitStatus
		res.Err = fmt.Errorf("%w: %s: %v", ErrSpawn, argv[0], err)
		return res
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.Duration = elapsed

	switch {
	case waitErr != nil && ctx.Err() != nil:
		res.Canceled = true
		res.ExitStatus = CanceledExitStatus
		res.Err = ctx.Err()
	case waitErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitStatus = TimeoutExitStatus
		res.Duration = timeout
	default:
		res.ExitStatus = exitStatus(cmd, waitErr)
		if res.ExitStatus == 0 && res.Duration > timeout {
			res.Duration = timeout
		}
	}

	return res
}

// exitStatus returns the child's exit code. A child killed by a signal
// reports 128+signal, as shells do, so it never collides with the sentinels.
func exitStatus(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		if sig, ok := terminatingSignal(cmd.ProcessState); ok {
			return 128 + sig
		}
		return cmd.ProcessState.ExitCode()
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	if err != nil {
		return 1
	}
	return 0
}

// boundedBuffer keeps the first limit bytes written and drops the rest.
type boundedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.limit - len(b.buf)
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
