package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"geoedit/internal/geom"
)

// strokeOpacitySteps is the cycle the layer panel walks through.
var strokeOpacitySteps = []float64{1.0, 0.5, 0.25}

var fillOpacitySteps = []float64{0.2, 0.5, 1.0, 0.0}

// currentLayer returns the layer under the panel cursor.
func (m Model) currentLayer() (geom.Layer, bool) {
	layers := m.deps.Store.Layers()
	if m.layerCursor < 0 || m.layerCursor >= len(layers) {
		return geom.Layer{}, false
	}
	return layers[m.layerCursor], true
}

// updateLayers owns the keyboard while the layer panel is focused.
func (m Model) updateLayers(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	layers := m.deps.Store.Layers()
	switch msg.String() {
	case "esc", "l":
		m.showLayers = false
	case "up", "k":
		if m.layerCursor > 0 {
			m.layerCursor--
		}
	case "down", "j":
		if m.layerCursor < len(layers)-1 {
			m.layerCursor++
		}
	case "v":
		if l, ok := m.currentLayer(); ok {
			m.deps.Store.ToggleVisible(l.ID)
		}
	case "t":
		if l, ok := m.currentLayer(); ok {
			m.deps.Store.SetShowLabels(l.ID, !l.ShowLabels)
		}
	case "c":
		// cycle the label property through the layer's key union
		if l, ok := m.currentLayer(); ok {
			keys := m.deps.Store.LabelCandidates(l.ID)
			m.deps.Store.SetLabelProperty(l.ID, nextLabelKey(keys, l.LabelProp))
		}
	case "[":
		if l, ok := m.currentLayer(); ok {
			w := l.Style.Weight - 1
			m.deps.Store.SetStyle(l.ID, geom.StylePatch{Weight: &w})
		}
	case "]":
		if l, ok := m.currentLayer(); ok {
			w := l.Style.Weight + 1
			m.deps.Store.SetStyle(l.ID, geom.StylePatch{Weight: &w})
		}
	case "o":
		if l, ok := m.currentLayer(); ok {
			v := nextStep(strokeOpacitySteps, l.Style.StrokeOpacity)
			m.deps.Store.SetStyle(l.ID, geom.StylePatch{StrokeOpacity: &v})
		}
	case "O":
		if l, ok := m.currentLayer(); ok {
			v := nextStep(fillOpacitySteps, l.Style.FillOpacity)
			m.deps.Store.SetStyle(l.ID, geom.StylePatch{FillOpacity: &v})
		}
	case "enter":
		// scope the table to the layer and frame it on the map
		if l, ok := m.currentLayer(); ok {
			m.deps.Store.SetScope(l.ID)
			m.colCursor = 0
			m.refreshTable()
			if b, bok := m.deps.Store.Bound(l.ID); bok {
				m.fitView(b)
			}
			m.status = "scope: " + l.Name
		}
	case "d":
		if l, ok := m.currentLayer(); ok {
			if _, err := m.deps.Store.StartEditing(l.ID, l.Family); err != nil {
				m.status = "draw error: " + err.Error()
			} else {
				m.verts = nil
				m.showLayers = false
				m.status = "drawing into " + l.Name + " (" + l.Family.String() + ")"
			}
		}
	case "r":
		// retarget the draw tool without restarting it; switching the
		// target mid-draw adopts the layer's family, so the vertex
		// buffer is dropped
		if l, ok := m.currentLayer(); ok {
			if err := m.deps.Store.SetTarget(l.ID); err != nil {
				m.status = "target error: " + err.Error()
			} else {
				m.verts = nil
				m.status = "draw target: " + l.Name
			}
		}
	case "X":
		if l, ok := m.currentLayer(); ok {
			m.confirm = confirmDeleteLayer
			m.confirmArg = l.ID
			m.confirmMsg = fmt.Sprintf("delete layer %q and its %d feature(s)?", l.Name, l.Count)
		}
	}
	return m, nil
}

// nextLabelKey advances cur through keys, with "" (the default label) as the
// extra first position.
func nextLabelKey(keys []string, cur string) string {
	if len(keys) == 0 {
		return ""
	}
	if cur == "" {
		return keys[0]
	}
	for i, k := range keys {
		if k == cur {
			if i+1 < len(keys) {
				return keys[i+1]
			}
			return ""
		}
	}
	return ""
}

func nextStep(steps []float64, cur float64) float64 {
	for i, s := range steps {
		if s == cur {
			return steps[(i+1)%len(steps)]
		}
	}
	return steps[0]
}

// renderLayers builds the layer manager panel.
func (m Model) renderLayers() string {
	layers := m.deps.Store.Layers()
	var b strings.Builder
	b.WriteString(titleStyle.Render("Layers") + "\n\n")
	if len(layers) == 0 {
		b.WriteString(dimStyle.Render("no layers yet: import or draw something") + "\n")
	}
	scope := m.deps.Store.ScopeLayer()
	target := m.deps.Store.Target()
	for i, l := range layers {
		vis := "○"
		if l.Visible {
			vis = "●"
		}
		flags := ""
		if l.ID == scope {
			flags += " scoped"
		}
		if l.ID == target && m.drawing() {
			flags += " drawing"
		}
		if l.Persisted {
			flags += " saved"
		}
		label := "labels off"
		if l.ShowLabels {
			label = "labels: " + labelName(l.LabelProp)
		}
		line := fmt.Sprintf("%s %s  %s  %d  w%d  %s%s",
			vis, truncate(l.Name, 20), l.Family, l.Count, l.Style.Weight, label, flags)
		if i == m.layerCursor {
			line = selectStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("v show/hide  t labels  c label key  [ ] weight  o/O opacity"))
	b.WriteString("\n" + dimStyle.Render("enter scope+fit  d draw into  r retarget  X delete  esc close"))
	return b.String()
}

func labelName(key string) string {
	if key == "" {
		return "default"
	}
	return key
}
