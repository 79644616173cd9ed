package tui

import (
	"fmt"
	"strings"

	"cc_usage_mon/internal/alert"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

// View renders the UI based on the model state
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTotals())
	b.WriteString("\n\n")

	if banner := m.renderAlerts(); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n")
	}

	b.WriteString(m.sessionList.View())
	b.WriteString("\n")
	b.WriteString(m.renderBurnGraph())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

// renderHeader renders the top header bar
func (m Model) renderHeader() string {
	title := m.styles.title.Render("Claude Usage Monitor")

	var status string
	if len(m.sessions) == 0 {
		status = m.styles.status.Render("waiting for activity")
	} else {
		status = m.styles.status.Render(fmt.Sprintf("%d sessions", len(m.sessions)))
	}
	if m.err != nil {
		status = m.styles.critical.Render("watch error: " + m.err.Error())
	}

	spacing := m.width - lipgloss.Width(title) - lipgloss.Width(status) - 2
	if spacing < 1 {
		spacing = 1
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		title,
		strings.Repeat(" ", spacing),
		status,
	)
}

// renderTotals renders the all-time totals line from the batch report.
func (m Model) renderTotals() string {
	if m.report == nil {
		return m.styles.muted.Render("loading usage history...")
	}

	t := m.report.Totals
	return m.styles.muted.Render("all time  ") +
		m.styles.cost.Render(fmt.Sprintf("$%.2f", t.TotalCost)) +
		m.styles.muted.Render(fmt.Sprintf("  %d conversations  %s tokens",
			t.Conversations, formatTokens(t.TotalTokens.Total)))
}

// renderAlerts renders the most recent alert batch, one line each.
func (m Model) renderAlerts() string {
	if len(m.alerts) == 0 {
		return ""
	}

	lines := make([]string, 0, len(m.alerts))
	for _, a := range m.alerts {
		style := m.styles.warning
		if a.Severity == alert.SeverityCritical {
			style = m.styles.critical
		}
		lines = append(lines, style.Render("▲ "+a.Message))
	}
	return strings.Join(lines, "\n")
}

// renderBurnGraph renders a sparkline of the active session's
// burn-rate history.
func (m Model) renderBurnGraph() string {
	snap, ok := m.activeSnapshot()
	if !ok || len(snap.BurnRates) < 2 {
		return m.styles.muted.Render("burn rate: gathering samples")
	}

	rates := make([]float64, len(snap.BurnRates))
	for i, s := range snap.BurnRates {
		rates[i] = s.Rate
	}

	width := m.width - 12
	if width < 10 {
		width = 10
	}
	graph := asciigraph.Plot(rates,
		asciigraph.Height(4),
		asciigraph.Width(width),
	)

	label := m.styles.muted.Render(fmt.Sprintf("burn rate (tokens/min), %s", shortSessionID(snap.SessionID)))
	return label + "\n" + m.styles.sparkline.Render(graph)
}

// renderHelp renders the help footer
func (m Model) renderHelp() string {
	return m.styles.help.Render("↑/↓ select | r reload history | q quit")
}
