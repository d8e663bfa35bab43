package app

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"echobench/internal/cli"
	"echobench/internal/report"
	"echobench/internal/runner"
	"echobench/internal/tui/live"
	"echobench/internal/tui/styles"
)

type StatsMsg runner.StatsSnapshot

type StateMsg report.State

type DoneMsg struct {
	Report *report.Report
	Err    error
}

// Model shows the live progress of a comparison session and quits when
// the reporter finishes.
type Model struct {
	Updates runner.StatsUpdateChan
	Cancel  context.CancelFunc

	State    report.State
	Live     live.Model
	Stopping bool

	Result *DoneMsg
	Width  int
}

func NewModel(updates runner.StatsUpdateChan, cancel context.CancelFunc) Model {
	return Model{
		Updates: updates,
		Cancel:  cancel,
		Live:    live.NewModel(),
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.Updates)
}

func waitForUpdate(sub runner.StatsUpdateChan) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sub
		if !ok {
			return nil
		}
		return StatsMsg(snap)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.Stopping {
				m.Stopping = true
				m.Cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd

	case StatsMsg:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(runner.StatsSnapshot(msg))
		return m, tea.Batch(cmd, waitForUpdate(m.Updates))

	case StateMsg:
		m.State = report.State(msg)
		return m, nil

	case DoneMsg:
		m.Result = &msg
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.Live, cmd = m.Live.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	s := strings.Builder{}
	s.WriteString(styles.Title.Render("echobench"))
	s.WriteString("  ")
	s.WriteString(styles.Subtle.Render(m.State.String()))
	s.WriteString("\n\n")
	s.WriteString(m.Live.View())
	s.WriteString("\n\n")
	if m.Stopping {
		s.WriteString(styles.Warn.Render("stopping..."))
	} else {
		s.WriteString(styles.RenderKey("q", "stop"))
	}
	return s.String() + "\n"
}

// Run drives the session behind an alt-screen progress view and returns the
// report once the run ends.
func Run(ctx context.Context, s *cli.Session) (*report.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(s.Updates, cancel), tea.WithAltScreen())
	s.Reporter.OnState = func(st report.State) { p.Send(StateMsg(st)) }

	go func() {
		rep, err := s.Run(ctx)
		close(s.Updates)
		p.Send(DoneMsg{Report: rep, Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, errors.Wrap(err, "progress view")
	}
	done := final.(Model).Result
	if done == nil {
		// The view was killed before the run ended; nothing to report.
		return nil, context.Canceled
	}
	return done.Report, done.Err
}
