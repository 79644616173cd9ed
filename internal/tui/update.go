package tui

import (
	"cc_usage_mon/internal/live"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.updateListSizes()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.loadReportCmd()
		}

	case reportMsg:
		m.report = msg
		return m, nil

	case updateMsg:
		m = m.applyUpdate(live.Update(msg))
		return m, m.watchCmd()

	case alertsMsg:
		m.alerts = msg
		return m, m.watchCmd()

	case watchErrMsg:
		// Watch errors are transient; show the latest and keep going.
		m.err = msg.error
		return m, m.watchCmd()

	case tickMsg:
		m = m.updateSessionList()
		return m, m.tickCmd()
	}

	var cmd tea.Cmd
	m.sessionList, cmd = m.sessionList.Update(msg)
	return m, cmd
}
