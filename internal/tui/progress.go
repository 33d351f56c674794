// Package tui shows a live view of a benchmark run while it executes.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/mwiater/daemonbench/internal/benchmark"
	"github.com/mwiater/daemonbench/internal/metrics"
	"github.com/mwiater/daemonbench/internal/util"
)

// PhaseMsg announces the orchestrator entering a phase.
type PhaseMsg struct{ Phase benchmark.Phase }

// TrialMsg carries one recorded trial.
type TrialMsg struct{ Trial benchmark.Trial }

// DoneMsg ends the view.
type DoneMsg struct{ Err error }

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	phaseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	modeStyle    = lipgloss.NewStyle().Bold(true).Width(8)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	lastRunStyle = lipgloss.NewStyle().Faint(true)
)

const maxBarWidth = 60

type modeProgress struct {
	stat   metrics.RunningStat
	failed int
}

type model struct {
	total    int
	done     int
	phase    benchmark.Phase
	modes    map[benchmark.Mode]*modeProgress
	last     *benchmark.Trial
	spinner  spinner.Model
	progress progress.Model
	cancel   context.CancelFunc
	stopping bool
	finished bool
	err      error
}

func newModel(total int, cancel context.CancelFunc) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &model{
		total: total,
		modes: map[benchmark.Mode]*modeProgress{
			benchmark.ModeDaemon: {},
			benchmark.ModeDirect: {},
		},
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		cancel:   cancel,
	}
}

// Init starts the spinner animation.
func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update folds orchestrator events and key presses into the view state.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.interrupt()
		case tea.KeyRunes:
			if string(msg.Runes) == "q" {
				m.interrupt()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		width := msg.Width - 4
		if width > maxBarWidth {
			width = maxBarWidth
		}
		if width > 0 {
			m.progress.Width = width
		}
		return m, nil

	case PhaseMsg:
		m.phase = msg.Phase
		return m, nil

	case TrialMsg:
		t := msg.Trial
		m.done++
		mp, ok := m.modes[t.Mode]
		if !ok {
			mp = &modeProgress{}
			m.modes[t.Mode] = mp
		}
		if t.Success {
			mp.stat.Add(t.DurationMs)
		} else {
			mp.failed++
		}
		m.last = &t
		return m, nil

	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// interrupt cancels the run; the view stays up until the orchestrator
// reports back so the cleanup phase remains visible.
func (m *model) interrupt() {
	if m.stopping {
		return
	}
	m.stopping = true
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *model) fraction() float64 {
	if m.total <= 0 {
		return 0
	}
	f := float64(m.done) / float64(m.total)
	if f > 1 {
		f = 1
	}
	return f
}

// View renders the progress bar and the running per-mode means.
func (m *model) View() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("daemonbench") + "\n\n")

	phase := string(m.phase)
	if phase == "" {
		phase = "starting"
	}
	if m.finished {
		b.WriteString("  " + phaseStyle.Render("finished") + "\n")
	} else {
		b.WriteString(fmt.Sprintf("  %s %s\n", m.spinner.View(), phaseStyle.Render(phase)))
	}
	b.WriteString(fmt.Sprintf("  %s %d/%d\n\n", m.progress.ViewAs(m.fraction()), m.done, m.total))

	for _, mode := range []benchmark.Mode{benchmark.ModeDaemon, benchmark.ModeDirect} {
		mp := m.modes[mode]
		line := fmt.Sprintf("  %s ", modeStyle.Render(mode.Label()))
		if mp.stat.Count == 0 {
			line += "mean n/a"
		} else {
			line += fmt.Sprintf("mean %.1fms  sd %.1fms  n=%d", mp.stat.Mean, mp.stat.StdDev(), mp.stat.Count)
		}
		if mp.failed > 0 {
			line += "  " + failStyle.Render(fmt.Sprintf("%d failed", mp.failed))
		}
		b.WriteString(line + "\n")
	}

	if m.last != nil {
		status := "ok"
		switch {
		case m.last.TimedOut:
			status = "timeout"
		case !m.last.Success:
			status = fmt.Sprintf("exit %d", m.last.ExitStatus)
		}
		b.WriteString("\n  " + lastRunStyle.Render(fmt.Sprintf("last: %s #%d %q %.1fms %s",
			m.last.Mode, m.last.Iteration, util.OneLine(m.last.Query, 40), m.last.DurationMs, status)) + "\n")
	}

	switch {
	case m.err != nil:
		b.WriteString("\n  " + failStyle.Render("error: "+m.err.Error()) + "\n")
	case m.stopping && !m.finished:
		b.WriteString("\n  " + helpStyle.Render("stopping, waiting for cleanup...") + "\n")
	case !m.finished:
		b.WriteString("\n  " + helpStyle.Render("(q or ctrl+c to abort)") + "\n")
	}
	return b.String()
}

// Program drives the live view from orchestrator callbacks. Send methods
// are safe to call from the goroutine running the benchmark.
type Program struct {
	program *tea.Program
}

// New builds a live view for a run of total trials. cancel is invoked when
// the user aborts.
func New(total int, cancel context.CancelFunc, opts ...tea.ProgramOption) *Program {
	return &Program{program: tea.NewProgram(newModel(total, cancel), opts...)}
}

func (p *Program) OnPhase(phase benchmark.Phase) { p.program.Send(PhaseMsg{Phase: phase}) }

func (p *Program) OnTrial(t benchmark.Trial) { p.program.Send(TrialMsg{Trial: t}) }

// Finish closes the view once the run has returned.
func (p *Program) Finish(err error) { p.program.Send(DoneMsg{Err: err}) }

// Run blocks until Finish is received or the program fails.
func (p *Program) Run() error {
	if _, err := p.program.Run(); err != nil {
		return fmt.Errorf("live view: %w", err)
	}
	return nil
}

// Interactive reports whether f is a terminal, where colour and the live
// view make sense.
func Interactive(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
