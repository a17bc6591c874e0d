package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"logscope/internal/app"
	"logscope/internal/config"
	"logscope/internal/filter"
)

func initialModel(ctx context.Context, a *app.App) *Model {
	m := &Model{
		ctx:    ctx,
		app:    a,
		sess:   a.Session,
		styles: NewStyles(a.Cfg.Theme != config.ThemeLight),
		keymap: DefaultKeyMap(),
		input:  textinput.New(),
		spin:   spinner.New(),
		follow: true,
		pane:   paneConnections,
	}
	m.spin.Spinner = spinner.Dot
	m.input.CharLimit = 512
	m.stream = viewport.New(80, 20)
	m.modalVP = viewport.New(60, 10)

	m.connTbl = table.New(table.WithFocused(true), table.WithHeight(8))
	m.connTbl.SetColumns(connColumns(80))
	ts := table.DefaultStyles()
	ts.Header = lipgloss.NewStyle().Bold(true).PaddingRight(1)
	ts.Cell = lipgloss.NewStyle().PaddingRight(1)
	ts.Selected = m.styles.Selected
	m.connTbl.SetStyles(ts)

	m.eval, _ = filter.NewEvaluator(m.criteria)
	m.helpItems = m.buildHelpItems()
	m.refreshConnections()
	return m
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, a *app.App) error {
	m := initialModel(ctx, a)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	if err == tea.ErrProgramKilled && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitChange(), m.waitNotice(), m.spin.Tick)
}

func (m *Model) waitChange() tea.Cmd {
	ch := m.sess.Changes()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return changedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) waitNotice() tea.Cmd {
	ch := m.sess.Notifications()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case n := <-ch:
			return noticeMsg(n)
		case <-ctx.Done():
			return nil
		}
	}
}
