package tui

import (
	"github.com/charmbracelet/lipgloss"

	"geoedit/internal/geom"
)

// Styles
var (
	baseFg    = lipgloss.Color("#E6E6E6")
	baseDimFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	accentFg  = lipgloss.Color("#7C3AED")
	warnFg    = lipgloss.Color("#F59E0B")
	borderCol = lipgloss.Color("#243141")

	appStyle    = lipgloss.NewStyle().Foreground(baseFg)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderCol).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(baseDimFg)
	warnStyle   = lipgloss.NewStyle().Foreground(warnFg)
	selectStyle = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
)

// strokeStyle converts a layer's stroke color/opacity into a terminal style.
// Opacity below one half degrades to the faint attribute.
func strokeStyle(s geom.Style) lipgloss.Style {
	st := lipgloss.NewStyle().Foreground(lipgloss.Color(s.StrokeColor))
	if s.StrokeOpacity < 0.5 {
		st = st.Faint(true)
	}
	return st
}

// fillStyle converts a layer's fill color into a terminal style. Fills are
// always rendered faint unless nearly opaque.
func fillStyle(s geom.Style) lipgloss.Style {
	st := lipgloss.NewStyle().Foreground(lipgloss.Color(s.FillColor))
	if s.FillOpacity < 0.8 {
		st = st.Faint(true)
	}
	return st
}
