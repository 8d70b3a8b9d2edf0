package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"

	"geoedit/internal/geom"
)

// viewOK reports whether the viewport bound spans a drawable area.
func (m Model) viewOK() bool {
	return m.hasView && m.view.Max[0] > m.view.Min[0] && m.view.Max[1] > m.view.Min[1]
}

// fitView frames the viewport around a bound and resets zoom and pan.
// Degenerate bounds (a single point) are inflated so the geometry is visible.
func (m *Model) fitView(b orb.Bound) {
	dx := b.Max[0] - b.Min[0]
	dy := b.Max[1] - b.Min[1]
	if dx == 0 {
		dx = 2
		b.Min[0] -= 1
		b.Max[0] += 1
	}
	if dy == 0 {
		dy = 2
		b.Min[1] -= 1
		b.Max[1] += 1
	}
	b.Min[0] -= dx * 0.05
	b.Max[0] += dx * 0.05
	b.Min[1] -= dy * 0.05
	b.Max[1] += dy * 0.05
	m.view = b
	m.hasView = true
	m.zoom = 1.0
	m.offsetX, m.offsetY = 0, 0
}

// fitAll frames the viewport around every feature in the session.
func (m *Model) fitAll() {
	if b, ok := m.deps.Store.Bound(""); ok {
		m.fitView(b)
	}
}

// cellToLonLat converts a map cell coordinate back to lon/lat using the
// viewport bound, zoom and pan.
func (m Model) cellToLonLat(cx, cy, w, h int) (float64, float64, bool) {
	if !m.viewOK() || w <= 1 || h <= 1 {
		return 0, 0, false
	}
	zx := float64(cx-m.offsetX) / float64(w-1)
	zy := 1.0 - float64(cy-m.offsetY)/float64(h-1)
	nx := 0.5 + (zx-0.5)/m.zoom
	ny := 0.5 + (zy-0.5)/m.zoom
	lon := m.view.Min[0] + nx*(m.view.Max[0]-m.view.Min[0])
	lat := m.view.Min[1] + ny*(m.view.Max[1]-m.view.Min[1])
	return lon, lat, true
}

// screenXYMicro maps lon/lat into a 2x4 microgrid per cell for braille
// rendering, applying zoom around the viewport center plus pan offsets.
func (m Model) screenXYMicro(lon, lat float64, w, h int) (int, int, bool) {
	if !m.viewOK() {
		return 0, 0, false
	}
	nx := (lon - m.view.Min[0]) / (m.view.Max[0] - m.view.Min[0])
	ny := (lat - m.view.Min[1]) / (m.view.Max[1] - m.view.Min[1])
	zx := 0.5 + (nx-0.5)*m.zoom
	zy := 0.5 + (ny-0.5)*m.zoom
	wMic := w * 2
	hMic := h * 4
	sx := int(zx*float64(wMic-1)) + m.offsetX*2
	sy := int((1.0-zy)*float64(hMic-1)) + m.offsetY*4
	return sx, sy, true
}

// screenXY maps lon/lat to cell coordinates.
func (m Model) screenXY(lon, lat float64, w, h int) (int, int, bool) {
	mx, my, ok := m.screenXYMicro(lon, lat, w, h)
	if !ok {
		return 0, 0, false
	}
	return mx / 2, my / 4, true
}

// renderMap draws every visible layer, the selection highlight, the on-map
// labels and the in-progress draw shape into a braille canvas.
func (m Model) renderMap(w, h int) string {
	br := newBrailleBuf(w, h)
	var classes []lipgloss.Style
	addClass := func(st lipgloss.Style) uint8 {
		classes = append(classes, st)
		return uint8(len(classes))
	}

	selected := m.deps.Store.Selected()
	for _, layer := range m.deps.Store.Layers() {
		if !layer.Visible {
			continue
		}
		style := layer.Style.Clamped()
		stroke := addClass(strokeStyle(style))
		fill := uint8(0)
		if style.FillOpacity > 0 {
			fill = addClass(fillStyle(style))
		}
		for _, f := range m.deps.Store.FeaturesInLayer(layer.ID) {
			if f.ID == selected {
				continue // selection pass draws it on top
			}
			m.drawGeometry(br, f.Geometry, w, h, stroke, fill, style.Weight)
		}
	}

	// selection on top, dashed in the accent color
	if selected != "" {
		if f, ok := m.deps.Store.Feature(selected); ok {
			sel := addClass(selectStyle)
			m.drawSelected(br, f.Geometry, w, h, sel)
		}
	}

	// in-progress shape
	if m.drawing() && len(m.verts) > 0 {
		cls := addClass(selectStyle)
		var prev *[2]int
		for _, p := range m.verts {
			mx, my, ok := m.screenXYMicro(p[0], p[1], w, h)
			if !ok {
				continue
			}
			br.setThickPixel(mx, my, cls, 5)
			if prev != nil {
				br.drawDashedMicro(prev[0], prev[1], mx, my, cls, 1)
			}
			prev = &[2]int{mx, my}
		}
	}

	// labels
	labelCls := addClass(dimStyle)
	for _, layer := range m.deps.Store.Layers() {
		if !layer.Visible || !layer.ShowLabels {
			continue
		}
		for _, f := range m.deps.Store.FeaturesInLayer(layer.ID) {
			c := f.Bound().Center()
			cx, cy, ok := m.screenXY(c[0], c[1], w, h)
			if !ok {
				continue
			}
			br.setText(cx+1, cy, truncate(featureLabel(f, layer), 20), labelCls)
		}
	}

	// hover marker
	if m.hovering {
		br.setText(m.hoverMicX/2, m.hoverMicY/4, "◯", addClass(warnStyle))
	}

	return strings.Join(br.toLines(classes), "\n")
}

// featureLabel resolves the label text: the configured property, falling
// back to the name property and then to a shortened id.
func featureLabel(f geom.Feature, layer geom.Layer) string {
	if layer.LabelProp != "" {
		if v, ok := f.Props[layer.LabelProp]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
		return ""
	}
	if v, ok := f.Props["name"].(string); ok && v != "" {
		return v
	}
	return shortID(f.ID)
}

func (m Model) drawGeometry(br *brailleBuf, g orb.Geometry, w, h int, stroke, fill uint8, weight int) {
	switch t := g.(type) {
	case orb.Point:
		if mx, my, ok := m.screenXYMicro(t[0], t[1], w, h); ok {
			br.setThickPixel(mx, my, stroke, max(weight, 5))
		}
	case orb.MultiPoint:
		for _, p := range t {
			if mx, my, ok := m.screenXYMicro(p[0], p[1], w, h); ok {
				br.setThickPixel(mx, my, stroke, max(weight, 5))
			}
		}
	case orb.LineString:
		m.drawPolyline(br, t, w, h, stroke, weight, false, false)
	case orb.MultiLineString:
		for _, ls := range t {
			m.drawPolyline(br, ls, w, h, stroke, weight, false, false)
		}
	case orb.Polygon:
		m.drawPolygon(br, t, w, h, stroke, fill, weight, false)
	case orb.MultiPolygon:
		for _, p := range t {
			m.drawPolygon(br, p, w, h, stroke, fill, weight, false)
		}
	}
}

// drawSelected redraws one geometry with dashed edges and bold vertices.
func (m Model) drawSelected(br *brailleBuf, g orb.Geometry, w, h int, cls uint8) {
	switch t := g.(type) {
	case orb.Point:
		if mx, my, ok := m.screenXYMicro(t[0], t[1], w, h); ok {
			br.setThickPixel(mx, my, cls, 8)
		}
	case orb.MultiPoint:
		for _, p := range t {
			if mx, my, ok := m.screenXYMicro(p[0], p[1], w, h); ok {
				br.setThickPixel(mx, my, cls, 8)
			}
		}
	case orb.LineString:
		m.drawPolyline(br, t, w, h, cls, 3, false, true)
	case orb.MultiLineString:
		for _, ls := range t {
			m.drawPolyline(br, ls, w, h, cls, 3, false, true)
		}
	case orb.Polygon:
		m.drawPolygon(br, t, w, h, cls, 0, 3, true)
	case orb.MultiPolygon:
		for _, p := range t {
			m.drawPolygon(br, p, w, h, cls, 0, 3, true)
		}
	}
}

func (m Model) drawPolyline(br *brailleBuf, ls orb.LineString, w, h int, cls uint8, weight int, closed, dashed bool) {
	var pts [][2]int
	for _, p := range ls {
		mx, my, ok := m.screenXYMicro(p[0], p[1], w, h)
		if !ok {
			continue
		}
		pts = append(pts, [2]int{mx, my})
	}
	n := len(pts)
	for i := 0; i < n; i++ {
		if i+1 >= n && !closed {
			break
		}
		a := pts[i]
		b := pts[(i+1)%n]
		if dashed {
			br.drawDashedMicro(a[0], a[1], b[0], b[1], cls, weight)
		} else {
			br.drawLineMicro(a[0], a[1], b[0], b[1], cls, weight)
		}
	}
	if n == 1 {
		br.setThickPixel(pts[0][0], pts[0][1], cls, weight)
	}
}

func (m Model) drawPolygon(br *brailleBuf, poly orb.Polygon, w, h int, stroke, fill uint8, weight int, dashed bool) {
	var ringsMic [][][2]int
	for _, ring := range poly {
		var sm [][2]int
		for _, p := range ring {
			mx, my, ok := m.screenXYMicro(p[0], p[1], w, h)
			if !ok {
				continue
			}
			sm = append(sm, [2]int{mx, my})
		}
		if len(sm) >= 3 {
			ringsMic = append(ringsMic, sm)
		}
	}
	if len(ringsMic) == 0 {
		return
	}
	// fill the outer ring per scanline with the even-odd rule; holes are
	// approximated by their edges only
	if fill != 0 {
		outer := ringsMic[0]
		hMic := h * 4
		for yMic := 0; yMic < hMic; yMic++ {
			var xs []int
			for i := 0; i < len(outer); i++ {
				a := outer[i]
				b := outer[(i+1)%len(outer)]
				if a[1] == b[1] {
					continue
				}
				y0, y1 := a[1], b[1]
				x0, x1 := a[0], b[0]
				if (yMic >= y0 && yMic < y1) || (yMic >= y1 && yMic < y0) {
					t := float64(yMic-y0) / float64(y1-y0)
					xs = append(xs, int(float64(x0)+t*float64(x1-x0)))
				}
			}
			if len(xs) < 2 {
				continue
			}
			sort.Ints(xs)
			for i := 0; i+1 < len(xs); i += 2 {
				x0, x1 := xs[i], xs[i+1]
				if x0 > x1 {
					x0, x1 = x1, x0
				}
				for x := max(0, x0); x <= x1; x++ {
					br.setPixel(x, yMic, fill)
				}
			}
		}
	}
	for _, r := range ringsMic {
		for i := 0; i < len(r); i++ {
			a := r[i]
			b := r[(i+1)%len(r)]
			if dashed {
				br.drawDashedMicro(a[0], a[1], b[0], b[1], stroke, weight)
			} else {
				br.drawLineMicro(a[0], a[1], b[0], b[1], stroke, weight)
			}
		}
	}
}

// nearestFeature hit-tests a micro coordinate against every visible
// feature's vertices and returns the closest one within the pick radius.
func (m Model) nearestFeature(micX, micY, w, h int) (string, bool) {
	const pickRadius = 8 // micro pixels
	best := pickRadius*pickRadius + 1
	id := ""
	for _, layer := range m.deps.Store.Layers() {
		if !layer.Visible {
			continue
		}
		for _, f := range m.deps.Store.FeaturesInLayer(layer.ID) {
			for _, p := range vertices(f.Geometry) {
				mx, my, ok := m.screenXYMicro(p[0], p[1], w, h)
				if !ok {
					continue
				}
				dx := mx - micX
				dy := my - micY
				if d := dx*dx + dy*dy; d < best {
					best = d
					id = f.ID
				}
			}
		}
	}
	return id, id != ""
}

// nearestVertex snaps a micro coordinate to the closest drawn vertex.
func (m Model) nearestVertex(micX, micY, w, h int) (int, int) {
	best := 1<<31 - 1
	bx, by := micX, micY
	for _, f := range m.deps.Store.Features() {
		for _, p := range vertices(f.Geometry) {
			mx, my, ok := m.screenXYMicro(p[0], p[1], w, h)
			if !ok {
				continue
			}
			dx := mx - micX
			dy := my - micY
			if d := dx*dx + dy*dy; d < best {
				best = d
				bx, by = mx, my
			}
		}
	}
	return bx, by
}

// vertices flattens a geometry into its coordinate list.
func vertices(g orb.Geometry) []orb.Point {
	switch t := g.(type) {
	case orb.Point:
		return []orb.Point{t}
	case orb.MultiPoint:
		return t
	case orb.LineString:
		return t
	case orb.MultiLineString:
		var out []orb.Point
		for _, ls := range t {
			out = append(out, ls...)
		}
		return out
	case orb.Polygon:
		var out []orb.Point
		for _, r := range t {
			out = append(out, r...)
		}
		return out
	case orb.MultiPolygon:
		var out []orb.Point
		for _, p := range t {
			for _, r := range p {
				out = append(out, r...)
			}
		}
		return out
	}
	return nil
}

// inspectNearest finds the feature closest to the viewport center.
func (m Model) inspectNearest() (geom.Feature, bool) {
	w, h := m.mapW, m.mapH
	if w <= 0 {
		w = 80
	}
	if h <= 0 {
		h = 24
	}
	id, ok := m.centerFeature(w, h)
	if !ok {
		return geom.Feature{}, false
	}
	return m.deps.Store.Feature(id)
}

func (m Model) centerFeature(w, h int) (string, bool) {
	cx, cy := w, h*2 // center in micro coords
	best := 1<<31 - 1
	id := ""
	for _, f := range m.deps.Store.Features() {
		for _, p := range vertices(f.Geometry) {
			mx, my, ok := m.screenXYMicro(p[0], p[1], w, h)
			if !ok {
				continue
			}
			dx := mx - cx
			dy := my - cy
			if d := dx*dx + dy*dy; d < best {
				best = d
				id = f.ID
			}
		}
	}
	return id, id != ""
}
