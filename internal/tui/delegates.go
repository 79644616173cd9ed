package tui

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"cc_usage_mon/internal/live"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// sessionItem wraps a session snapshot for the list component
type sessionItem struct {
	snapshot live.Snapshot
	active   bool
}

func (i sessionItem) FilterValue() string { return i.snapshot.SessionID }

// sessionDelegate renders session items
type sessionDelegate struct {
	styles styles
	width  int
}

func newSessionDelegate(st styles) *sessionDelegate {
	return &sessionDelegate{styles: st}
}

func (d *sessionDelegate) SetWidth(w int) { d.width = w }

func (d *sessionDelegate) Height() int                             { return 2 }
func (d *sessionDelegate) Spacing() int                            { return 1 }
func (d *sessionDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d *sessionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(sessionItem)
	if !ok {
		return
	}
	s := i.snapshot

	var indicator string
	nameStyle := d.styles.inactive
	if i.active {
		indicator = d.styles.active.Render("● ")
		nameStyle = d.styles.active
	} else {
		indicator = "  "
	}
	if index == m.Index() {
		nameStyle = d.styles.selected
	}

	name := nameStyle.Render(shortSessionID(s.SessionID))
	desc := fmt.Sprintf("  $%.4f | %s tokens | %d messages | %s",
		s.TotalCost,
		formatTokens(s.TotalTokens.Total),
		s.MessageCount,
		formatTimeAgo(s.LastUpdate),
	)
	if d.width > 0 && utf8.RuneCountInString(desc) > d.width {
		desc = string([]rune(desc)[:d.width])
	}

	fmt.Fprintf(w, "%s%s\n%s", indicator, name, d.styles.muted.Render(desc))
}

// shortSessionID truncates a UUID-style session id for display.
func shortSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatTokens renders a token count compactly (1.2K, 3.4M).
func formatTokens(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// formatTimeAgo renders a timestamp as a relative duration.
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
