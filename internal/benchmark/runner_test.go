package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/daemonbench/internal/process"
	"github.com/mwiater/daemonbench/internal/process/processtest"
	"github.com/mwiater/daemonbench/internal/target"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func order(trials []Trial) []string {
	out := make([]string, len(trials))
	for i, t := range trials {
		out[i] = fmt.Sprintf("%s#%d", t.Query, t.Iteration)
	}
	return out
}

func TestParseOrdering(t *testing.T) {
	o, err := ParseOrdering("")
	require.NoError(t, err)
	assert.Equal(t, OrderingIterationMajor, o)

	o, err = ParseOrdering(" Query-Major ")
	require.NoError(t, err)
	assert.Equal(t, OrderingQueryMajor, o)

	_, err = ParseOrdering("random")
	assert.Error(t, err)
}

func TestParsePhaseOrder(t *testing.T) {
	p, err := ParsePhaseOrder("")
	require.NoError(t, err)
	assert.Equal(t, []Mode{ModeDaemon, ModeDirect}, p.Modes())

	p, err = ParsePhaseOrder("direct-first")
	require.NoError(t, err)
	assert.Equal(t, []Mode{ModeDirect, ModeDaemon}, p.Modes())

	_, err = ParsePhaseOrder("both")
	assert.Error(t, err)
}

func TestRunnerIterationMajorOrder(t *testing.T) {
	fake := &processtest.FakeTarget{}
	sleeper := &sleepRecorder{}
	r := NewRunner(fake, target.Tool{Binary: "aka"}, RunnerOptions{Pause: DefaultPause, Sleep: sleeper.sleep})

	trials, err := r.Run(context.Background(), ModeDirect, []string{"a", "b"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a#1", "b#1", "a#2", "b#2"}, order(trials))
	assert.Len(t, sleeper.waits, 3, "no pause after the last invocation")
	for _, w := range sleeper.waits {
		assert.Equal(t, DefaultPause, w)
	}
}

func TestRunnerQueryMajorOrder(t *testing.T) {
	r := NewRunner(&processtest.FakeTarget{}, target.Tool{Binary: "aka"}, RunnerOptions{
		Ordering: OrderingQueryMajor,
		Sleep:    (&sleepRecorder{}).sleep,
	})

	trials, err := r.Run(context.Background(), ModeDirect, []string{"a", "b"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a#1", "a#2", "b#1", "b#2"}, order(trials))
}

func TestRunnerRecordsFailuresAndContinues(t *testing.T) {
	fake := &processtest.FakeTarget{
		DirectQueryMs: []float64{20},
		QueryOutcome: func(n int, _ bool) (int, bool) {
			switch n {
			case 2:
				return 1, false
			case 3:
				return 0, true
			}
			return 0, false
		},
	}
	var observed []Trial
	r := NewRunner(fake, target.Tool{Binary: "aka"}, RunnerOptions{
		Timeout:  250 * time.Millisecond,
		Observer: func(t Trial) { observed = append(observed, t) },
		Sleep:    (&sleepRecorder{}).sleep,
	})

	trials, err := r.Run(context.Background(), ModeDirect, []string{"ls -la"}, 4)
	require.NoError(t, err)
	require.Len(t, trials, 4)
	assert.Equal(t, trials, observed)

	assert.True(t, trials[0].Success)
	assert.False(t, trials[1].Success)
	assert.Equal(t, 1, trials[1].ExitStatus)

	assert.False(t, trials[2].Success)
	assert.True(t, trials[2].TimedOut)
	assert.Equal(t, process.TimeoutExitStatus, trials[2].ExitStatus)
	assert.InDelta(t, 250.0, trials[2].DurationMs, 1e-9)

	assert.True(t, trials[3].Success)
	assert.Equal(t, ModeDirect, trials[3].Mode)
}

func TestRunnerStopsOnSpawnFailure(t *testing.T) {
	exec := &processtest.MockExecutor{
		ExecuteFunc: func(_ context.Context, argv []string, _ time.Duration) process.Result {
			return process.Result{
				Argv:       argv,
				ExitStatus: process.SpawnFailureExitStatus,
				Err:        fmt.Errorf("%w: no such file", process.ErrSpawn),
			}
		},
	}
	r := NewRunner(exec, target.Tool{Binary: "gone"}, RunnerOptions{Sleep: (&sleepRecorder{}).sleep})

	trials, err := r.Run(context.Background(), ModeDaemon, []string{"a"}, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, process.ErrSpawn)
	require.Len(t, trials, 1)
	assert.False(t, trials[0].Success)
	assert.Len(t, exec.Calls(), 1)
}

func TestRunnerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := 0
	r := NewRunner(&processtest.FakeTarget{}, target.Tool{Binary: "aka"}, RunnerOptions{
		Observer: func(Trial) {
			seen++
			if seen == 2 {
				cancel()
			}
		},
		Sleep: (&sleepRecorder{}).sleep,
	})

	trials, err := r.Run(ctx, ModeDirect, []string{"a"}, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, trials, 2)
}

func TestRunnerTruncatesOutput(t *testing.T) {
	exec := &processtest.MockExecutor{
		ExecuteFunc: func(_ context.Context, argv []string, _ time.Duration) process.Result {
			big := make([]byte, maxTrialOutput*2)
			for i := range big {
				big[i] = 'x'
			}
			return process.Result{Argv: argv, Stdout: string(big), Duration: time.Millisecond}
		},
	}
	r := NewRunner(exec, target.Tool{Binary: "aka"}, RunnerOptions{})
	trials, err := r.Run(context.Background(), ModeDaemon, []string{"a"}, 1)
	require.NoError(t, err)
	assert.Len(t, trials[0].Output, maxTrialOutput)
	assert.InDelta(t, 1.0, trials[0].DurationMs, 1e-9)
}
