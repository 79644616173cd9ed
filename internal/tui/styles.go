package tui

import (
	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
)

// styles holds the rendered lipgloss styles for the selected theme.
type styles struct {
	title     lipgloss.Style
	status    lipgloss.Style
	muted     lipgloss.Style
	cost      lipgloss.Style
	active    lipgloss.Style
	inactive  lipgloss.Style
	selected  lipgloss.Style
	warning   lipgloss.Style
	critical  lipgloss.Style
	sparkline lipgloss.Style
	help      lipgloss.Style
}

// flavor maps a theme name to its catppuccin flavour, defaulting to
// mocha for unknown names.
func flavor(theme string) catppuccin.Flavour {
	switch theme {
	case "latte":
		return catppuccin.Latte
	case "frappe":
		return catppuccin.Frappe
	case "macchiato":
		return catppuccin.Macchiato
	default:
		return catppuccin.Mocha
	}
}

func newStyles(theme string) styles {
	f := flavor(theme)

	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(f.Mauve().Hex)),

		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color(f.Overlay1().Hex)),

		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(f.Overlay0().Hex)),

		cost: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(f.Green().Hex)),

		active: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(f.Green().Hex)),

		inactive: lipgloss.NewStyle().
			Foreground(lipgloss.Color(f.Overlay0().Hex)),

		selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(f.Text().Hex)).
			Background(lipgloss.Color(f.Surface1().Hex)),

		warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(f.Yellow().Hex)),

		critical: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(f.Red().Hex)),

		sparkline: lipgloss.NewStyle().
			Foreground(lipgloss.Color(f.Teal().Hex)),

		help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(f.Overlay1().Hex)),
	}
}
