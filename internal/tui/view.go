package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	_, _, mapWidth, contentHeight := m.mapRect()
	contentWidth := max(10, m.width)
	sidebarWidth := 0
	if m.showSidebar {
		sidebarWidth = 30
		m.l.SetSize(sidebarWidth-2, contentHeight-2)
	}

	header := titleStyle.Render(" geoedit ─ terminal geospatial editor ")
	header = lipgloss.NewStyle().Width(contentWidth).Render(header)

	var sidebar string
	if m.showSidebar {
		sidebar = lipgloss.NewStyle().Width(sidebarWidth).Render(m.l.View())
	}

	m.mapW = max(8, mapWidth)
	m.mapH = max(4, contentHeight)

	var mapView string
	switch {
	case m.showAttrs:
		mapView = m.renderTablePane(mapWidth, contentHeight)
	case m.pasteMode:
		m.ta.SetWidth(m.mapW)
		m.ta.SetHeight(min(m.mapH, 12))
		mapView = lipgloss.NewStyle().Width(mapWidth).Height(contentHeight).Render(m.ta.View())
	default:
		ascii := m.renderMap(m.mapW, m.mapH)
		mapView = lipgloss.NewStyle().Width(mapWidth).Height(contentHeight).Render(ascii)
	}

	// centered overlay dialogs, at most one visible
	overlay := ""
	switch {
	case m.dialog != nil:
		overlay = m.renderImportDialog()
	case m.showCatalog:
		overlay = m.renderCatalog()
	case m.saveOpen:
		overlay = m.renderSave()
	case m.showLayers:
		overlay = m.renderLayers()
	case m.inspectPopup != "":
		overlay = m.inspectPopup
	case m.importing:
		overlay = "importing… (esc cancels)"
	}
	if overlay != "" {
		box := boxStyle.MaxWidth(max(24, contentWidth-4)).Render(overlay)
		mapView = overlayCenter(mapView, box, mapWidth, contentHeight)
	}

	var body string
	if m.showSidebar {
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", mapView)
	} else {
		body = mapView
	}

	footer := m.renderFooter(contentWidth)
	ui := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return appStyle.Width(contentWidth).Height(m.height).Render(ui)
}

// overlayCenter places a box over the map column.
func overlayCenter(_ string, box string, w, h int) string {
	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, box)
}

// renderTablePane renders the attribute table centered in the map area,
// with the cell editor or prompt below when active.
func (m Model) renderTablePane(w, h int) string {
	colW := 0
	for _, c := range m.tbl.Columns() {
		colW += c.Width + 3
	}
	if colW == 0 {
		colW = min(60, w-6)
	}
	maxW := min(w, max(32, colW))
	m.tbl.SetWidth(maxW - 4)
	m.tbl.SetHeight(min(h-4, 20))

	content := m.tbl.View()
	if m.editing {
		content += "\n" + selectStyle.Render("edit: ") + m.edit.View()
	}
	if m.prompt == promptAddProperty {
		content += "\n" + selectStyle.Render("new property: ") + m.promptInput.View()
	}
	scope := "all layers"
	if id := m.deps.Store.ScopeLayer(); id != "" {
		if l, ok := m.deps.Store.Layer(id); ok {
			scope = l.Name
		}
	}
	content += "\n" + dimStyle.Render("scope: "+scope+"  ←→ column  enter edit  A add  D del col  x del row  0 all")
	box := boxStyle.Width(maxW).Render(content)
	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderFooter(w int) string {
	status := dimStyle.Render(" " + m.status + " ")
	if m.confirm != confirmNone {
		status = warnStyle.Render(" " + m.confirmMsg + " [y/N] ")
	}
	help := m.renderHelp()
	coords := ""
	if m.hoverHasGeo {
		coords = dimStyle.Render(fmt.Sprintf("  lon=%.5f lat=%.5f  ", m.hoverLon, m.hoverLat))
	}
	left := lipgloss.JoinHorizontal(lipgloss.Bottom, status, help)
	spacerW := max(0, w-lipgloss.Width(left)-lipgloss.Width(coords))
	right := lipgloss.Place(spacerW+lipgloss.Width(coords), 1, lipgloss.Right, lipgloss.Center, coords)
	return lipgloss.NewStyle().Width(w).Render(lipgloss.JoinHorizontal(lipgloss.Bottom, left, right))
}

func (m Model) renderHelp() string {
	if !m.helpVisible || m.confirm != confirmNone {
		return ""
	}
	var keys []string
	if m.drawing() {
		keys = []string{
			"space/click vertex",
			"enter complete",
			"backspace undo",
			"1/2/3 family",
			"esc stop",
		}
	} else {
		keys = []string{
			"↑↓←→ pan",
			"+/- zoom",
			"f fit",
			"tab files",
			"a attrs",
			"l layers",
			"d draw",
			"p paste",
			"b catalog",
			"s save",
			"e/E export",
			"i inspect",
			"q quit",
		}
	}
	return dimStyle.Render("  " + strings.Join(keys, "  "))
}
