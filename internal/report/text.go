// Package report renders a benchmark run for people and writes its
// machine-readable artifacts.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/mwiater/daemonbench/internal/benchmark"
	"github.com/mwiater/daemonbench/internal/diagnostics"
	"github.com/mwiater/daemonbench/internal/metrics"
)

// RenderOptions controls text rendering.
type RenderOptions struct {
	// Color enables ANSI styling. Disable it when output is not a terminal.
	Color bool
}

const rule = "--------------------------------------------------"

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	noteStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
)

type printer struct {
	w     io.Writer
	color bool
	err   error

	good func(a ...interface{}) string
	bad  func(a ...interface{}) string
}

func newPrinter(w io.Writer, opts RenderOptions) *printer {
	good := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgRed, color.Bold)
	if opts.Color {
		good.EnableColor()
		bad.EnableColor()
	} else {
		good.DisableColor()
		bad.DisableColor()
	}
	return &printer{w: w, color: opts.Color, good: good.SprintFunc(), bad: bad.SprintFunc()}
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *printer) section(title string) {
	p.printf("\n%s\n%s\n", p.style(sectionStyle, title), rule)
}

// RenderText writes the human-readable report of run. The internal timing
// section is omitted when the tool's timing summary was unavailable, and the
// improvement lines are omitted when they are undefined.
func RenderText(w io.Writer, run *benchmark.Run, opts RenderOptions) error {
	if run == nil || run.Comparison == nil {
		return fmt.Errorf("run has no comparison to report")
	}
	p := newPrinter(w, opts)
	c := run.Comparison

	banner := strings.Repeat("=", 60)
	p.printf("%s\n%s\n%s\n", banner, p.style(titleStyle, "DAEMON VS DIRECT PERFORMANCE REPORT"), banner)
	p.renderHeader(run)

	p.section("WALL-CLOCK PERFORMANCE (process startup + processing)")
	p.renderMode("Daemon mode", c.Daemon)
	p.printf("\n")
	p.renderMode("Direct mode", c.Direct)
	p.renderImprovement(c)

	if run.Diagnostics.HasTiming() && c.Internal != nil {
		p.section("INTERNAL PROCESSING PERFORMANCE (config + processing only)")
		p.renderInternal(c.Internal)
	}

	if c.StartupOverheadMs != nil {
		p.section("PERFORMANCE ANALYSIS")
		p.renderAnalysis(c)
	}

	if run.Diagnostics.HasExport() || (run.Diagnostics != nil && len(run.Diagnostics.Records) > 0) {
		p.renderExportLine(run.Diagnostics)
	}

	p.printf("%s\n", banner)
	return p.err
}

func (p *printer) renderHeader(run *benchmark.Run) {
	s := run.Settings
	p.printf("%s %s\n", p.style(labelStyle, "Run:       "), run.ID)
	p.printf("%s %s\n", p.style(labelStyle, "Binary:    "), s.Binary)
	if s.ConfigPath != "" {
		p.printf("%s %s\n", p.style(labelStyle, "Config:    "), s.ConfigPath)
	}
	p.printf("%s %d x %d queries (%s, %s)\n", p.style(labelStyle, "Iterations:"), s.Iterations, len(s.Queries), s.Ordering, s.PhaseOrder)
	if !run.FinishedAt.IsZero() && !run.StartedAt.IsZero() {
		p.printf("%s %s\n", p.style(labelStyle, "Elapsed:   "), run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
}

func (p *printer) renderMode(title string, m metrics.ModeResult) {
	p.printf("%s:\n", title)
	st := m.Stats
	if st.Count == 0 {
		p.printf("   Average: n/a\n")
	} else {
		p.printf("   Average: %.1fms\n", st.Mean)
		p.printf("   Std Dev: %.1fms\n", st.StdDev)
		p.printf("   Median:  %.1fms   P95: %.1fms\n", st.Median, st.P95)
		p.printf("   Range:   %.1fms - %.1fms\n", st.Min, st.Max)
	}
	samples := fmt.Sprintf("%d of %d successful", st.Count, m.Total)
	if m.Failed > 0 {
		samples += ", " + p.bad(fmt.Sprintf("%d failed", m.Failed))
	}
	p.printf("   Samples: %s (%s)\n", samples, st.Stability())
}

func (p *printer) renderImprovement(c *metrics.Comparison) {
	if c.ImprovementMs == nil || c.ImprovementPercent == nil {
		return
	}
	p.printf("\nWall-clock improvement:\n")
	p.printf("   %s\n", p.verdict(*c.ImprovementMs, *c.ImprovementPercent, "%.1f"))
	if sig := c.Significance; sig != nil {
		outcome := "not significant"
		if sig.Significant {
			outcome = "significant"
		}
		p.printf("   Welch t-test: t=%.2f df=%.1f p=%.4f (%s at alpha %.2f)\n",
			sig.TStatistic, sig.DegreesOfFreedom, sig.PValue, outcome, sig.Alpha)
	}
}

func (p *printer) verdict(diffMs, pct float64, numFmt string) string {
	if diffMs >= 0 {
		return p.good(fmt.Sprintf("Daemon is "+numFmt+"ms faster (%.1f%% improvement)", diffMs, pct))
	}
	return p.bad(fmt.Sprintf("Daemon is "+numFmt+"ms slower (%.1f%% regression)", -diffMs, -pct))
}

func (p *printer) renderInternal(ic *metrics.InternalComparison) {
	renderSide := func(title string, ms *float64, samples int) {
		p.printf("%s:\n", title)
		if ms == nil {
			p.printf("   Average: n/a\n")
			return
		}
		p.printf("   Average: %.3fms\n", *ms)
		p.printf("   Samples: %d\n", samples)
	}
	renderSide("Daemon mode", ic.DaemonMs, ic.DaemonSamples)
	p.printf("\n")
	renderSide("Direct mode", ic.DirectMs, ic.DirectSamples)

	if ic.ImprovementMs != nil && ic.ImprovementPercent != nil {
		p.printf("\nInternal processing improvement:\n")
		p.printf("   %s\n", p.verdict(*ic.ImprovementMs, *ic.ImprovementPercent, "%.3f"))
	}
}

func (p *printer) renderAnalysis(c *metrics.Comparison) {
	overhead := *c.StartupOverheadMs
	share := 0.0
	if c.Daemon.Stats.Mean > 0 {
		share = overhead / c.Daemon.Stats.Mean * 100
	}
	p.printf("Estimated process startup overhead: ~%.1fms (%.1f%% of daemon wall-clock)\n", overhead, share)
	if c.Internal != nil && c.Internal.ImprovementMs != nil {
		p.printf("Config loading overhead: ~%.3fms (avoided by the daemon)\n", *c.Internal.ImprovementMs)
	}
	p.printf("%s\n", p.style(noteStyle, "Startup overhead is wall-clock minus internal time; it holds only when both were measured under comparable load."))
}

func (p *printer) renderExportLine(d *diagnostics.Summary) {
	daemonN := d.ExportStats["daemon"].Samples
	directN := d.ExportStats["direct"].Samples
	line := fmt.Sprintf("\nRaw timing export: %d records (daemon %d, direct %d)", len(d.Records), daemonN, directN)
	if d.SkippedRecords > 0 {
		line += fmt.Sprintf(", %d malformed rows skipped", d.SkippedRecords)
	}
	p.printf("%s\n", line)
}
