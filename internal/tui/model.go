package tui

import (
	"time"

	"cc_usage_mon/internal/alert"
	"cc_usage_mon/internal/config"
	"cc_usage_mon/internal/ingest"
	"cc_usage_mon/internal/live"
	"cc_usage_mon/internal/stats"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the application state
type Model struct {
	cfg     *config.Config
	watcher *live.Watcher

	// Batch report for the header totals
	report *stats.Report

	// Live state, replaced wholesale on every tracker update
	sessions []live.Snapshot
	activeID string
	alerts   []alert.Alert

	sessionList list.Model
	delegate    *sessionDelegate

	styles styles

	width  int
	height int

	err error
}

// NewModel creates a new Model wired to a started watcher.
func NewModel(cfg *config.Config, watcher *live.Watcher) Model {
	st := newStyles(cfg.Theme)
	del := newSessionDelegate(st)

	m := Model{
		cfg:      cfg,
		watcher:  watcher,
		styles:   st,
		delegate: del,
	}

	m.sessionList = list.New([]list.Item{}, del, 0, 0)
	m.sessionList.SetShowTitle(false)
	m.sessionList.SetShowHelp(false)
	m.sessionList.SetShowStatusBar(false)
	m.sessionList.SetFilteringEnabled(false)
	m.sessionList.DisableQuitKeybindings()

	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadReportCmd(),
		m.watchCmd(),
		m.tickCmd(),
	)
}

// Message types
type (
	reportMsg   *stats.Report
	updateMsg   live.Update
	alertsMsg   []alert.Alert
	tickMsg     time.Time
	watchErrMsg struct{ error }
)

// loadReportCmd runs a batch load of the projects root and aggregates
// it into the report shown in the header.
func (m Model) loadReportCmd() tea.Cmd {
	cfg := m.cfg
	return func() tea.Msg {
		loader := ingest.NewLoader(cfg.PricingTable(), cfg.MaxFileBytes)
		result := loader.LoadRoot(cfg.ProjectsRoot)
		report := stats.BuildReport(result.Conversations)
		return reportMsg(&report)
	}
}

// watchCmd waits for the next live update, alert batch, or watch error.
func (m Model) watchCmd() tea.Cmd {
	return func() tea.Msg {
		if m.watcher == nil {
			return nil
		}
		select {
		case update := <-m.watcher.Updates:
			return updateMsg(update)
		case batch := <-m.watcher.Alerts:
			return alertsMsg(batch)
		case err := <-m.watcher.Errors:
			return watchErrMsg{err}
		}
	}
}

// tickCmd refreshes relative timestamps every 30 seconds.
func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// applyUpdate folds one tracker update into the session slice.
func (m Model) applyUpdate(update live.Update) Model {
	m.activeID = update.SessionID

	replaced := false
	for i := range m.sessions {
		if m.sessions[i].SessionID == update.SessionID {
			m.sessions[i] = update.Snapshot
			replaced = true
			break
		}
	}
	if !replaced {
		m.sessions = append(m.sessions, update.Snapshot)
	}

	// Most recently updated first.
	for i := 1; i < len(m.sessions); i++ {
		for j := i; j > 0 && m.sessions[j].LastUpdate.After(m.sessions[j-1].LastUpdate); j-- {
			m.sessions[j], m.sessions[j-1] = m.sessions[j-1], m.sessions[j]
		}
	}

	return m.updateSessionList()
}

// updateSessionList rebuilds the session list items
func (m Model) updateSessionList() Model {
	items := make([]list.Item, len(m.sessions))
	for i, s := range m.sessions {
		items[i] = sessionItem{snapshot: s, active: s.SessionID == m.activeID}
	}
	m.sessionList.SetItems(items)
	return m
}

// activeSnapshot returns the most recently updated session, if any.
func (m Model) activeSnapshot() (live.Snapshot, bool) {
	for _, s := range m.sessions {
		if s.SessionID == m.activeID {
			return s, true
		}
	}
	return live.Snapshot{}, false
}

// updateListSizes updates list dimensions based on terminal size
func (m Model) updateListSizes() Model {
	// Reserve space for header (2), totals (2), sparkline (7), alerts (2), help (2)
	listHeight := m.height - 15
	if listHeight < 4 {
		listHeight = 4
	}
	listWidth := m.width - 4
	if listWidth < 20 {
		listWidth = 20
	}

	m.delegate.SetWidth(listWidth)
	m.sessionList.SetSize(listWidth, listHeight)
	return m
}
