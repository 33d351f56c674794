package daemonbench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/daemonbench/internal/appconfig"
	"github.com/mwiater/daemonbench/internal/benchmark"
	"github.com/mwiater/daemonbench/internal/lifecycle"
	"github.com/mwiater/daemonbench/internal/logging"
	"github.com/mwiater/daemonbench/internal/report"
	"github.com/mwiater/daemonbench/internal/tui"
)

// runCmd implements 'run', which benchmarks daemon mode against direct mode.
var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Benchmark daemon mode against direct invocation",
	Long:         `Runs every query in daemon mode and in direct mode, fetches the tool's own timing diagnostics, prints a comparison report and writes benchmark_results.json.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("iterations") {
			if n, _ := cmd.Flags().GetInt("iterations"); n <= 0 {
				return fmt.Errorf("--iterations must be positive, got %d", n)
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runBenchmark(ctx, cmd.OutOrStdout(), GetConfig())
	},
}

func runBenchmark(ctx context.Context, out io.Writer, cfg *appconfig.Config) error {
	opts, err := cfg.RunOptions()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interactive := isTerminal(out)
	useTUI := cfg.TUI && interactive && !cfg.JSON
	if useTUI || cfg.JSON {
		// Keep log lines off the report stream; they still reach the log file.
		if useTUI {
			logging.SetConsole(nil)
		} else {
			logging.SetConsole(os.Stderr)
		}
		if err := logging.Init(cfg.LogFilePath()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logging.SetConsole(os.Stdout)
	}

	var view *tui.Program
	if useTUI {
		opts.OnPhase = func(p benchmark.Phase) { view.OnPhase(p) }
		opts.OnTrial = func(t benchmark.Trial) { view.OnTrial(t) }
	} else {
		opts.OnPhase = func(p benchmark.Phase) { logging.LogEvent("phase: %s", p) }
	}

	orch, err := benchmark.NewOrchestrator(newExecutor(cfg.TargetEnvironment()), opts)
	if err != nil {
		return err
	}

	var run *benchmark.Run
	if useTUI {
		view = tui.New(orch.TotalTrials(), cancel, tea.WithOutput(out))
		type outcome struct {
			run *benchmark.Run
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			r, e := orch.Execute(ctx)
			view.Finish(e)
			done <- outcome{r, e}
		}()
		if viewErr := view.Run(); viewErr != nil {
			logging.LogWarn("%v", viewErr)
			cancel()
		}
		res := <-done
		run, err = res.run, res.err
	} else {
		run, err = orch.Execute(ctx)
	}

	if err != nil {
		if ctx.Err() != nil {
			logging.LogWarn("benchmark interrupted: %v", err)
			return fmt.Errorf("%w: %v", errInterrupted, err)
		}
		return err
	}

	if cfg.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("error encoding run: %w", err)
		}
	} else if err := report.RenderText(out, run, report.RenderOptions{Color: interactive}); err != nil {
		return err
	}

	if _, err := report.WriteExport(cfg.OutputDirectory(), run); err != nil {
		return err
	}
	if cfg.Textfile != "" {
		if err := report.WriteTextfile(cfg.Textfile, run); err != nil {
			return err
		}
		logging.LogEvent("Metrics textfile written to %s", cfg.Textfile)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && tui.Interactive(f)
}

func init() {
	runCmd.Flags().IntP("iterations", "i", 10, "iterations per query per mode (an unset or zero config value means 10)")
	runCmd.Flags().BoolP("quick", "q", false, "quick run with 3 iterations")
	runCmd.Flags().StringArray("query", nil, "query to benchmark (repeatable; default \"ls -la\")")
	runCmd.Flags().String("queries-file", "", "YAML file listing queries")
	runCmd.Flags().Duration("timeout", lifecycle.DefaultCommandTimeout, "timeout for each measured query")
	runCmd.Flags().Duration("command-timeout", lifecycle.DefaultCommandTimeout, "timeout for daemon control and diagnostics commands")
	runCmd.Flags().Duration("pause", benchmark.DefaultPause, "pause between consecutive queries")
	runCmd.Flags().Duration("start-settle", lifecycle.DefaultStartSettle, "wait after starting the daemon")
	runCmd.Flags().Duration("stop-settle", lifecycle.DefaultStopSettle, "wait after stopping the daemon")
	runCmd.Flags().String("ordering", string(benchmark.OrderingIterationMajor), "trial order: iteration-major or query-major")
	runCmd.Flags().String("phase-order", string(benchmark.DaemonFirst), "mode order: daemon-first or direct-first")
	runCmd.Flags().String("output-dir", ".", "directory for benchmark_results.json and the raw timing CSV")
	runCmd.Flags().String("textfile", "", "also write a Prometheus textfile to this path")
	runCmd.Flags().Bool("tui", false, "show a live progress view (terminals only)")
	runCmd.Flags().Bool("json", false, "print the run as JSON instead of the text report")

	for key, flag := range map[string]string{
		"iterations":     "iterations",
		"quick":          "quick",
		"queries":        "query",
		"queriesFile":    "queries-file",
		"timeout":        "timeout",
		"commandTimeout": "command-timeout",
		"pause":          "pause",
		"startSettle":    "start-settle",
		"stopSettle":     "stop-settle",
		"ordering":       "ordering",
		"phaseOrder":     "phase-order",
		"outputDir":      "output-dir",
		"textfile":       "textfile",
		"tui":            "tui",
		"json":           "json",
	} {
		_ = viper.BindPFlag(key, runCmd.Flags().Lookup(flag))
	}

	rootCmd.AddCommand(runCmd)
}
