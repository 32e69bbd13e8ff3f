// Package tui renders live schedule progress while a run executes.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/qsched/internal/engine"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	routineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	graphStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// StepMsg carries one completed step into the view.
type StepMsg engine.StepEvent

// DoneMsg signals the end of the run.
type DoneMsg struct {
	Err error
}

// Model is the bubbletea model for a live run.
type Model struct {
	label    string
	track    string
	lastStep engine.StepEvent
	started  bool
	series   []float64
	done     bool
	err      error
}

func NewModel(label, track string) Model {
	return Model{label: label, track: track}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case StepMsg:
		m.lastStep = engine.StepEvent(msg)
		m.started = true
		if m.track != "" && msg.ResultKey == m.track {
			if v, ok := toFloat(msg.Result); ok {
				m.series = append(m.series, v)
			}
		}
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("schedule %q", m.label)))
	b.WriteByte('\n')

	if m.started {
		ev := m.lastStep
		b.WriteString(labelStyle.Render("progress") +
			valueStyle.Render(fmt.Sprintf("%d/%d", ev.Index+1, ev.Total)) + "\n")
		b.WriteString(labelStyle.Render("routine") +
			routineStyle.Render(ev.Routine) + "\n")
		b.WriteString(labelStyle.Render("time") +
			valueStyle.Render(fmt.Sprintf("%.4f", ev.Time)) + "\n")
		if ev.ResultKey != "" {
			b.WriteString(labelStyle.Render(ev.ResultKey) +
				valueStyle.Render(fmt.Sprintf("%v", ev.Result)) + "\n")
		}
	} else {
		b.WriteString(valueStyle.Render("waiting for first step...") + "\n")
	}

	if len(m.series) >= 2 {
		graph := asciigraph.Plot(m.series,
			asciigraph.Height(8),
			asciigraph.Width(60),
			asciigraph.Caption(m.track),
		)
		b.WriteString(graphStyle.Render(graph))
		b.WriteByte('\n')
	}

	if m.done {
		if m.err != nil {
			b.WriteString(failStyle.Render(fmt.Sprintf("FAILED: %v", m.err)) + "\n")
		} else {
			b.WriteString(doneStyle.Render("completed") + "\n")
		}
	} else {
		b.WriteString(helpStyle.Render("q quit"))
	}

	return b.String()
}

// Run drives a live view over one schedule run. start is called in its own
// goroutine with a context that is cancelled when the view quits, and an
// observer that streams step events into the program. Run does not return
// until start has returned: quitting the view cancels the run and waits for
// it to stop, so the caller may read anything start wrote.
func Run(ctx context.Context, label, track string, start func(context.Context, engine.Observer) error, opts ...tea.ProgramOption) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(label, track), opts...)

	done := make(chan error, 1)
	go func() {
		err := start(runCtx, engine.ObserverFunc(func(ev engine.StepEvent) {
			p.Send(StepMsg(ev))
		}))
		p.Send(DoneMsg{Err: err})
		done <- err
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return err
	}
	cancel()
	return <-done
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
