package diagnostics

import (
	"context"
	"strings"
	"time"

	"github.com/mwiater/daemonbench/internal/logging"
	"github.com/mwiater/daemonbench/internal/process"
	"github.com/mwiater/daemonbench/internal/target"
	"github.com/mwiater/daemonbench/internal/util"
)

// Fetcher runs the diagnostics commands of a target tool.
type Fetcher struct {
	exec    process.Executor
	tool    target.Tool
	timeout time.Duration
}

// NewFetcher returns a Fetcher that bounds each command by timeout.
func NewFetcher(exec process.Executor, tool target.Tool, timeout time.Duration) *Fetcher {
	return &Fetcher{exec: exec, tool: tool, timeout: timeout}
}

// Fetch requests the timing summary and the raw export. Each command may fail
// independently; Fetch returns nil only when neither produced anything usable.
func (f *Fetcher) Fetch(ctx context.Context) *Summary {
	var (
		sum  Summary
		have bool
	)

	res := f.exec.Execute(ctx, f.tool.TimingSummary(), f.timeout)
	switch {
	case !res.Success():
		logging.LogWarn("timing summary unavailable (exit %d): %s", res.ExitStatus, oneLine(res.Output()))
	default:
		// Some builds print the summary through their logger on stderr.
		parsed, ok := ParseSummary(res.Output())
		if !ok {
			logging.LogWarn("timing summary had no recognizable per-mode timing")
			break
		}
		sum = parsed
		have = true
	}

	if ctx.Err() != nil {
		return summaryOrNil(&sum, have)
	}

	res = f.exec.Execute(ctx, f.tool.ExportTiming(), f.timeout)
	switch {
	case !res.Success():
		logging.LogWarn("timing export unavailable (exit %d): %s", res.ExitStatus, oneLine(res.Output()))
	case strings.TrimSpace(res.Stdout) == "":
		logging.LogWarn("timing export was empty")
	default:
		records, skipped, err := ParseExport(res.Stdout)
		if err != nil {
			logging.LogWarn("timing export: %v", err)
		}
		sum.RawCSV = res.Stdout
		sum.Records = records
		sum.SkippedRecords = skipped
		sum.ExportStats = SummarizeRecords(records)
		have = true
		if skipped > 0 {
			logging.LogDebug("timing export: skipped %d malformed rows", skipped)
		}
	}

	return summaryOrNil(&sum, have)
}

func summaryOrNil(s *Summary, have bool) *Summary {
	if !have {
		return nil
	}
	return s
}

func oneLine(s string) string {
	return util.OneLine(s, 120)
}
