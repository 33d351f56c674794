package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mwiater/daemonbench/internal/benchmark"
)

// durationBuckets spans sub-millisecond daemon round trips to multi-second
// cold starts.
var durationBuckets = prometheus.ExponentialBuckets(0.5, 2, 16)

type runCollectors struct {
	duration    *prometheus.HistogramVec
	trials      *prometheus.CounterVec
	mean        *prometheus.GaugeVec
	improvement prometheus.Gauge
	pValue      prometheus.Gauge
	startup     prometheus.Gauge
	finished    prometheus.Gauge
}

func newRunCollectors(reg prometheus.Registerer) (*runCollectors, error) {
	rc := &runCollectors{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "daemonbench",
			Name:      "trial_duration_milliseconds",
			Help:      "Wall-clock duration of successful query invocations.",
			Buckets:   durationBuckets,
		}, []string{"mode"}),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "daemonbench",
			Name:      "trials_total",
			Help:      "Query invocations by mode and outcome.",
		}, []string{"mode", "result"}),
		mean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "daemonbench",
			Name:      "mean_duration_milliseconds",
			Help:      "Mean wall-clock duration of successful invocations.",
		}, []string{"mode"}),
		improvement: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "daemonbench",
			Name:      "improvement_percent",
			Help:      "Wall-clock improvement of daemon over direct mode.",
		}),
		pValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "daemonbench",
			Name:      "welch_p_value",
			Help:      "Two-tailed p-value of Welch's t-test between the modes.",
		}),
		startup: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "daemonbench",
			Name:      "startup_overhead_milliseconds",
			Help:      "Estimated process startup overhead in daemon mode.",
		}),
		finished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "daemonbench",
			Name:      "run_finished_timestamp_seconds",
			Help:      "Unix time at which the run finished.",
		}),
	}

	for _, c := range []prometheus.Collector{rc.duration, rc.trials, rc.mean} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return rc, nil
}

// observe loads run into the collectors. Gauges for undefined values are
// registered only when the value exists, so absent numbers stay absent.
func (rc *runCollectors) observe(reg prometheus.Registerer, run *benchmark.Run) error {
	for _, t := range run.Trials {
		mode := string(t.Mode)
		switch {
		case t.Success:
			rc.trials.WithLabelValues(mode, "success").Inc()
			rc.duration.WithLabelValues(mode).Observe(t.DurationMs)
		case t.TimedOut:
			rc.trials.WithLabelValues(mode, "timeout").Inc()
		default:
			rc.trials.WithLabelValues(mode, "failed").Inc()
		}
	}

	optional := func(g prometheus.Gauge, v *float64) error {
		if v == nil {
			return nil
		}
		g.Set(*v)
		return reg.Register(g)
	}

	if c := run.Comparison; c != nil {
		if c.Daemon.Stats.Count > 0 {
			rc.mean.WithLabelValues(string(benchmark.ModeDaemon)).Set(c.Daemon.Stats.Mean)
		}
		if c.Direct.Stats.Count > 0 {
			rc.mean.WithLabelValues(string(benchmark.ModeDirect)).Set(c.Direct.Stats.Mean)
		}
		if err := optional(rc.improvement, c.ImprovementPercent); err != nil {
			return err
		}
		if c.Significance != nil {
			p := c.Significance.PValue
			if err := optional(rc.pValue, &p); err != nil {
				return err
			}
		}
		if err := optional(rc.startup, c.StartupOverheadMs); err != nil {
			return err
		}
	}
	if !run.FinishedAt.IsZero() {
		ts := float64(run.FinishedAt.Unix())
		if err := optional(rc.finished, &ts); err != nil {
			return err
		}
	}
	return nil
}

// WriteTextfile writes run as a Prometheus textfile-collector file.
func WriteTextfile(path string, run *benchmark.Run) error {
	if run == nil {
		return fmt.Errorf("no run to write")
	}
	reg := prometheus.NewRegistry()
	rc, err := newRunCollectors(reg)
	if err != nil {
		return err
	}
	if err := rc.observe(reg, run); err != nil {
		return fmt.Errorf("record run metrics: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write textfile %s: %w", path, err)
	}
	return nil
}
