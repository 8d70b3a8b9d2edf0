package tui

import (
	"fmt"
	"strings"

	list "github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/paulmach/orb"

	"geoedit/internal/geom"
	"geoedit/internal/session"
)

// mapRect computes the map viewport's origin and size from the current
// layout. Mouse hit testing and rendering must agree on this.
func (m Model) mapRect() (x, y, w, h int) {
	sidebarWidth := 0
	gap := 0
	if m.showSidebar {
		sidebarWidth = 30
		gap = 1
	}
	contentHeight := m.height - 3 // header + footer
	if contentHeight < 4 {
		contentHeight = 4
	}
	mapWidth := max(10, m.width-sidebarWidth-gap)
	return sidebarWidth + gap, 1, mapWidth, contentHeight
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		_, _, w, h := m.mapRect()
		m.mapW, m.mapH = w, h
		if m.showSidebar {
			m.l.SetSize(28, h-2)
		}
		return m, nil

	case initImportMsg:
		cmd := (&m).startImport(gatherSiblings(m.deps.InitialPaths))
		return m, cmd
	case importDoneMsg:
		(&m).finishImport(msg)
		return m, nil
	case catalogListMsg:
		m.catLoading = false
		if msg.err != nil {
			m.status = "catalog error: " + msg.err.Error()
			m.showCatalog = false
			return m, nil
		}
		m.entities = msg.entities
		m.status = fmt.Sprintf("%d stored geometr(ies)", len(m.entities))
		return m, nil
	case catalogFetchMsg:
		(&m).importEntity(msg)
		return m, nil
	case savedMsg:
		(&m).finishSave(msg)
		return m, nil
	case exportDoneMsg:
		if msg.err != nil {
			m.status = "export failed: " + msg.err.Error()
		} else {
			m.status = "exported " + msg.path
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

// handleKey routes keys to whichever surface currently owns the keyboard.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch {
	case m.confirm != confirmNone:
		return m.updateConfirm(msg)
	case m.prompt != promptNone:
		return m.updatePrompt(msg)
	case m.saveOpen:
		return m.updateSave(msg)
	case m.pasteMode:
		return m.updatePaste(msg)
	case m.dialog != nil:
		return m.updateImportDialog(msg)
	case m.showCatalog:
		return m.updateCatalog(msg)
	case m.importing:
		if msg.String() == "esc" {
			(&m).cancelImport()
		}
		return m, nil
	case m.showSidebar:
		return m.updateSidebar(msg)
	case m.showAttrs:
		return m.updateTable(msg)
	case m.showLayers:
		return m.updateLayers(msg)
	case m.drawing():
		return m.updateDraw(msg)
	}
	return m.updateMap(msg)
}

// updateConfirm resolves a pending destructive action.
func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kind, arg := m.confirm, m.confirmArg
	m.confirm = confirmNone
	m.confirmArg = ""
	m.confirmMsg = ""
	if msg.String() != "y" && msg.String() != "Y" {
		m.status = "cancelled"
		return m, nil
	}
	switch kind {
	case confirmDeleteFeature:
		if err := m.deps.Store.DeleteFeature(arg); err != nil {
			m.status = "delete error: " + err.Error()
		} else {
			m.status = "feature deleted"
		}
		m.refreshTable()
	case confirmDeleteProperty:
		if err := m.deps.Store.DeleteProperty(arg); err != nil {
			m.status = "delete error: " + err.Error()
		} else {
			m.status = fmt.Sprintf("property %q removed", arg)
			if m.colCursor > 0 {
				m.colCursor--
			}
		}
		m.refreshTable()
	case confirmDeleteLayer:
		if err := m.deps.Store.DeleteLayer(arg); err != nil {
			m.status = "delete error: " + err.Error()
		} else {
			m.status = "layer deleted"
		}
		if n := len(m.deps.Store.Layers()); m.layerCursor >= n && n > 0 {
			m.layerCursor = n - 1
		}
		m.refreshTable()
	}
	return m, nil
}

// updatePrompt collects the single-line prompt input (add property).
func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.prompt = promptNone
		m.promptInput.Blur()
		return m, nil
	case "enter":
		key := strings.TrimSpace(m.promptInput.Value())
		m.prompt = promptNone
		m.promptInput.Blur()
		if err := m.deps.Store.AddProperty(key); err != nil {
			m.status = "add property error: " + err.Error()
		} else {
			m.status = fmt.Sprintf("property %q added to scope", key)
		}
		m.refreshTable()
		return m, nil
	}
	var cmd tea.Cmd
	m.promptInput, cmd = m.promptInput.Update(msg)
	return m, cmd
}

// updatePaste handles WKT paste mode: Enter parses the buffer and imports
// each line as a feature of a fresh layer.
func (m Model) updatePaste(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.pasteMode = false
		m.ta.Blur()
		m.status = "paste cancelled"
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.ta.Value())
		if text == "" {
			m.status = "paste: empty"
			return m, nil
		}
		var fs []geom.Feature
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			g, err := geom.UnmarshalWKT(line)
			if err != nil {
				m.status = "wkt error: " + err.Error()
				return m, nil
			}
			fs = append(fs, geom.Feature{Geometry: g})
		}
		if len(fs) == 0 {
			m.status = "paste: empty"
			return m, nil
		}
		fam := geom.FamilyOf(fs[0].Geometry)
		l, err := m.deps.Store.ImportLayer(m.deps.Store.NextLayerName(), fam, fs)
		if err != nil {
			m.status = "paste error: " + err.Error()
			return m, nil
		}
		m.pasteMode = false
		m.ta.Blur()
		m.refreshTable()
		if b, ok := m.deps.Store.Bound(l.ID); ok {
			m.fitView(b)
		}
		m.status = fmt.Sprintf("pasted %d feature(s) into %s", len(fs), l.Name)
		return m, nil
	}
	var cmd tea.Cmd
	m.ta, cmd = m.ta.Update(msg)
	return m, cmd
}

// updateSidebar drives the file explorer.
func (m Model) updateSidebar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.l.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.l, cmd = m.l.Update(msg)
		return m, cmd
	}
	switch msg.String() {
	case "tab", "esc":
		m.showSidebar = false
		return m, nil
	case " ", "space", "m":
		(&m).toggleMark()
		return m, nil
	case "enter":
		paths := (&m).importPaths()
		cmd := (&m).startImport(paths)
		m.marked = map[string]bool{}
		m.refreshDir()
		return m, cmd
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.l, cmd = m.l.Update(msg)
	return m, cmd
}

// updateDraw handles the active draw mode on the map surface.
func (m Model) updateDraw(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.deps.Store.StopEditing()
		m.verts = nil
		m.status = "draw mode off"
		return m, nil
	case "1", "2", "3":
		fam := geom.FamilyPoint
		switch msg.String() {
		case "2":
			fam = geom.FamilyLine
		case "3":
			fam = geom.FamilyPolygon
		}
		l, err := m.deps.Store.StartEditing(session.NewLayerTarget, fam)
		if err != nil {
			m.status = "draw error: " + err.Error()
			return m, nil
		}
		m.verts = nil
		m.status = "drawing " + fam.String() + " into " + l.Name
		return m, nil
	case " ", "space":
		lon, lat := m.placementPoint()
		return m.addVertex(lon, lat), nil
	case "backspace":
		if len(m.verts) > 0 {
			m.verts = m.verts[:len(m.verts)-1]
		}
		return m, nil
	case "enter":
		return m.completeShape(), nil
	case "up", "down", "left", "right", "+", "=", "-", "_", "f":
		return m.updateMap(msg)
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// placementPoint is where a keyboard-placed vertex lands: the hovered cell
// when the mouse is over the map, otherwise the viewport center.
func (m Model) placementPoint() (float64, float64) {
	_, _, w, h := m.mapRect()
	if m.hoverHasGeo {
		return m.hoverLon, m.hoverLat
	}
	lon, lat, ok := m.cellToLonLat(w/2, h/2, w, h)
	if !ok {
		return 0, 0
	}
	return lon, lat
}

// addVertex appends a draw vertex. Point layers complete immediately, one
// shape per placement.
func (m Model) addVertex(lon, lat float64) Model {
	if !m.viewOK() {
		// empty session: seed a viewport around the origin so drawing works
		m.fitView(orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}})
	}
	if m.deps.Store.Mode() == geom.FamilyPoint {
		if _, err := m.deps.Store.CompleteShape(orb.Point{lon, lat}); err != nil {
			m.status = "draw error: " + err.Error()
			return m
		}
		m.refreshTable()
		m.status = fmt.Sprintf("point added at %.5f %.5f", lon, lat)
		return m
	}
	m.verts = append(m.verts, orb.Point{lon, lat})
	m.status = fmt.Sprintf("%d vertex(es); enter completes", len(m.verts))
	return m
}

// completeShape commits the vertex buffer as one feature of the target
// layer. Nothing is written until the shape is valid for its family.
func (m Model) completeShape() Model {
	var g orb.Geometry
	switch m.deps.Store.Mode() {
	case geom.FamilyPoint:
		m.status = "points complete on placement"
		return m
	case geom.FamilyLine:
		if len(m.verts) < 2 {
			m.status = "a line needs at least 2 vertices"
			return m
		}
		g = orb.LineString(append([]orb.Point{}, m.verts...))
	case geom.FamilyPolygon:
		if len(m.verts) < 3 {
			m.status = "a polygon needs at least 3 vertices"
			return m
		}
		ring := append([]orb.Point{}, m.verts...)
		ring = append(ring, ring[0])
		g = orb.Polygon{orb.Ring(ring)}
	default:
		return m
	}
	f, err := m.deps.Store.CompleteShape(g)
	if err != nil {
		m.status = "draw error: " + err.Error()
		return m
	}
	m.verts = nil
	m.refreshTable()
	m.status = "shape " + shortID(f.ID) + " committed"
	return m
}

// updateMap handles the default map-surface keys.
func (m Model) updateMap(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up":
		m.offsetY--
	case "down":
		m.offsetY++
	case "left":
		m.offsetX -= 2
	case "right":
		m.offsetX += 2
	case "+", "=":
		if m.zoom < 64 {
			m.zoom *= 1.2
			m.status = fmt.Sprintf("zoom: %.2fx", m.zoom)
		}
	case "-", "_":
		if m.zoom > 0.05 {
			m.zoom /= 1.2
			m.status = fmt.Sprintf("zoom: %.2fx", m.zoom)
		}
	case "f":
		m.fitAll()
		m.status = "fit to data"
	case "tab":
		m.showSidebar = true
		m.refreshDir()
		_, _, _, h := m.mapRect()
		m.l.SetSize(28, h-2)
	case "a":
		m.showAttrs = true
		m.refreshTable()
		m.syncTableCursor()
	case "l":
		m.showLayers = true
	case "p":
		m.pasteMode = true
		m.ta.SetValue("")
		m.ta.Focus()
		m.status = "paste mode"
	case "b":
		cmd := (&m).openCatalog()
		return m, cmd
	case "s":
		cmd := (&m).startSave()
		return m, cmd
	case "e", "E":
		return m.exportScoped(msg.String() == "E")
	case "d":
		return m.startDraw()
	case "i":
		m.inspect()
	case "x":
		if id := m.deps.Store.Selected(); id != "" {
			m.confirm = confirmDeleteFeature
			m.confirmArg = id
			m.confirmMsg = "delete feature " + shortID(id) + "?"
		}
	case "h":
		m.helpVisible = !m.helpVisible
	case "esc":
		if m.inspectPopup != "" {
			m.inspectPopup = ""
		} else {
			m.deps.Store.ClearSelection()
			m.status = "selection cleared"
		}
	}
	return m, nil
}

// startDraw enters draw mode targeting the scoped layer, or a fresh point
// layer when nothing is scoped.
func (m Model) startDraw() (tea.Model, tea.Cmd) {
	target := m.deps.Store.ScopeLayer()
	fam := geom.FamilyPoint
	if target == "" {
		target = session.NewLayerTarget
	}
	l, err := m.deps.Store.StartEditing(target, fam)
	if err != nil {
		m.status = "draw error: " + err.Error()
		return m, nil
	}
	m.verts = nil
	m.status = "drawing " + l.Family.String() + " into " + l.Name + "  (1/2/3 new layer family)"
	return m, nil
}

// exportScoped writes the scoped layer to the export directory. With a
// single layer in the session the scope is implied.
func (m Model) exportScoped(bundle bool) (tea.Model, tea.Cmd) {
	layerID := m.deps.Store.ScopeLayer()
	if layerID == "" {
		layers := m.deps.Store.Layers()
		if len(layers) == 1 {
			layerID = layers[0].ID
		} else {
			m.status = "scope a layer first (layer panel, enter)"
			return m, nil
		}
	}
	l, ok := m.deps.Store.Layer(layerID)
	if !ok {
		return m, nil
	}
	fs := m.deps.Store.FeaturesInLayer(layerID)
	kind := "geojson"
	if bundle {
		kind = "bundle"
	}
	m.status = "exporting " + l.Name + " as " + kind + "…"
	return m, m.exportCmd(l, fs, bundle)
}

// inspect fills the popup with the feature nearest the viewport center.
func (m *Model) inspect() {
	f, ok := m.inspectNearest()
	if !ok {
		m.inspectPopup = "no feature nearby"
		m.status = m.inspectPopup
		return
	}
	m.inspectPopup = m.featureInfo(f)
	m.deps.Store.Select(f.ID)
	m.syncTableCursor()
}

func (m Model) featureInfo(f geom.Feature) string {
	layerName := "?"
	if l, ok := m.deps.Store.Layer(f.LayerID()); ok {
		layerName = l.Name
	}
	b := f.Bound()
	meta := []string{
		"id: " + f.ID,
		"layer: " + layerName,
		"type: " + f.Geometry.GeoJSONType(),
		fmt.Sprintf("bbox: [%.5f, %.5f, %.5f, %.5f]", b.Min[0], b.Min[1], b.Max[0], b.Max[1]),
		fmt.Sprintf("properties: %d", len(f.Props)-1),
	}
	return strings.Join(meta, "\n")
}

// focusFeature performs the camera action for a row-selected feature: lines
// and polygons are framed, points are centered and open their info popup.
func (m *Model) focusFeature(id string) {
	f, ok := m.deps.Store.Feature(id)
	if !ok {
		return
	}
	if geom.FamilyOf(f.Geometry) == geom.FamilyPoint {
		m.centerOn(f.Bound().Center())
		m.inspectPopup = m.featureInfo(f)
		return
	}
	m.inspectPopup = ""
	m.fitView(f.Bound())
}

// centerOn recenters the viewport on a point without changing zoom.
func (m *Model) centerOn(p orb.Point) {
	if !m.viewOK() {
		m.fitView(orb.Bound{Min: p, Max: p})
		return
	}
	c := m.view.Center()
	dx, dy := p[0]-c[0], p[1]-c[1]
	m.view.Min[0] += dx
	m.view.Max[0] += dx
	m.view.Min[1] += dy
	m.view.Max[1] += dy
	m.offsetX, m.offsetY = 0, 0
}

// handleMouse tracks hover and resolves clicks into selection or draw
// vertices.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	ox, oy, w, h := m.mapRect()
	cx, cy := msg.X-ox, msg.Y-oy
	inside := cx >= 0 && cx < w && cy >= 0 && cy < h
	if !inside {
		m.hovering = false
		m.hoverHasGeo = false
		return m, nil
	}
	m.hovering = true
	m.hoverCellX, m.hoverCellY = cx, cy
	if lon, lat, ok := m.cellToLonLat(cx, cy, w, h); ok {
		m.hoverHasGeo = true
		m.hoverLon, m.hoverLat = lon, lat
	} else {
		m.hoverHasGeo = false
	}
	m.hoverMicX, m.hoverMicY = m.nearestVertex(cx*2, cy*4, w, h)

	if msg.Action == tea.MouseActionPress {
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			if m.zoom < 64 {
				m.zoom *= 1.2
			}
		case tea.MouseButtonWheelDown:
			if m.zoom > 0.05 {
				m.zoom /= 1.2
			}
		case tea.MouseButtonLeft:
			if m.drawing() {
				if m.hoverHasGeo {
					return m.addVertex(m.hoverLon, m.hoverLat), nil
				}
				return m, nil
			}
			if id, ok := m.nearestFeature(cx*2, cy*4, w, h); ok {
				m.deps.Store.SelectOnMap(id)
				m.refreshTable()
				m.syncTableCursor()
				m.status = "selected " + shortID(id)
			}
		}
	}
	return m, nil
}
