package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"geoedit/internal/geom"
)

// openCatalog shows the browser and refreshes the entity listing.
func (m *Model) openCatalog() tea.Cmd {
	if m.deps.Config.CatalogURL == "" {
		m.status = "no catalog configured"
		return nil
	}
	m.showCatalog = true
	m.catLoading = true
	m.catCursor = 0
	m.status = "loading catalog…"
	return m.listCatalogCmd()
}

// updateCatalog owns the keyboard while the browser is open.
func (m Model) updateCatalog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "b":
		m.showCatalog = false
	case "up", "k":
		if m.catCursor > 0 {
			m.catCursor--
		}
	case "down", "j":
		if m.catCursor < len(m.entities)-1 {
			m.catCursor++
		}
	case "r":
		m.catLoading = true
		return m, m.listCatalogCmd()
	case "enter":
		if m.catCursor < len(m.entities) {
			e := m.entities[m.catCursor]
			m.status = "fetching " + e.Name + "…"
			return m, m.fetchEntityCmd(e)
		}
	}
	return m, nil
}

// importEntity promotes a fetched catalog document into a persisted layer.
func (m *Model) importEntity(msg catalogFetchMsg) {
	if msg.err != nil {
		m.status = "fetch error: " + msg.err.Error()
		return
	}
	if len(msg.fs) == 0 {
		m.status = "no valid data found"
		return
	}
	fam := geom.FamilyOf(msg.fs[0].Geometry)
	name := msg.entity.Name
	if name == "" {
		name = m.deps.Store.NextLayerName()
	}
	l, err := m.deps.Store.ImportLayer(name, fam, msg.fs)
	if err != nil {
		m.status = "import error: " + err.Error()
		return
	}
	m.deps.Store.SetPersisted(l.ID, true)
	m.entityByLayer[l.ID] = msg.entity.ID
	m.showCatalog = false
	m.refreshTable()
	if b, ok := m.deps.Store.Bound(l.ID); ok {
		m.fitView(b)
	}
	m.status = fmt.Sprintf("imported %q (%d feature(s))", name, len(msg.fs))
}

// renderCatalog builds the browser box.
func (m Model) renderCatalog() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Catalog") + "\n\n")
	if m.catLoading {
		b.WriteString(dimStyle.Render("loading…") + "\n")
	} else if len(m.entities) == 0 {
		b.WriteString(dimStyle.Render("no stored geometries") + "\n")
	}
	for i, e := range m.entities {
		line := fmt.Sprintf("%s  %s", truncate(e.Name, 30), e.GeometryType)
		if e.Description != "" {
			line += "  " + dimStyle.Render(truncate(e.Description, 30))
		}
		if i == m.catCursor {
			line = selectStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("enter import  r refresh  esc close"))
	return b.String()
}

// startSave either updates the persisted record behind the scoped layer or
// opens the save dialog for a fresh one.
func (m *Model) startSave() tea.Cmd {
	if m.deps.Config.CatalogURL == "" {
		m.status = "no catalog configured"
		return nil
	}
	if m.saving {
		m.status = "save already in progress"
		return nil
	}
	layerID := m.deps.Store.ScopeLayer()
	if layerID == "" {
		m.status = "scope a layer first (layer panel, enter)"
		return nil
	}
	l, ok := m.deps.Store.Layer(layerID)
	if !ok {
		return nil
	}
	wkt, fam, err := m.deps.Store.LayerWKT(layerID)
	if err != nil {
		m.status = "save error: " + err.Error()
		return nil
	}
	if l.Persisted {
		if id, ok := m.entityByLayer[layerID]; ok {
			m.saving = true
			m.status = "saving " + l.Name + "…"
			return m.saveGeometryCmd(layerID, id, wkt, fam.String())
		}
	}
	m.saveOpen = true
	m.saveLayerID = layerID
	m.saveField = 0
	m.saveName.SetValue(l.Name)
	m.saveDesc.SetValue("")
	m.saveName.Focus()
	m.saveDesc.Blur()
	return nil
}

// updateSave owns the keyboard while the save dialog is open.
func (m Model) updateSave(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.saveOpen = false
		m.saveName.Blur()
		m.saveDesc.Blur()
		m.status = "save cancelled"
		return m, nil
	case "tab", "shift+tab", "up", "down":
		m.saveField = 1 - m.saveField
		if m.saveField == 0 {
			m.saveName.Focus()
			m.saveDesc.Blur()
		} else {
			m.saveDesc.Focus()
			m.saveName.Blur()
		}
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.saveName.Value())
		if name == "" {
			m.status = "name required"
			return m, nil
		}
		l, ok := m.deps.Store.Layer(m.saveLayerID)
		if !ok {
			m.saveOpen = false
			return m, nil
		}
		wkt, fam, err := m.deps.Store.LayerWKT(m.saveLayerID)
		if err != nil {
			m.status = "save error: " + err.Error()
			m.saveOpen = false
			return m, nil
		}
		fs := m.deps.Store.FeaturesInLayer(m.saveLayerID)
		m.saveOpen = false
		m.saveName.Blur()
		m.saveDesc.Blur()
		m.saving = true
		m.status = "saving " + name + "…"
		return m, m.createEntityCmd(l, fs, name, strings.TrimSpace(m.saveDesc.Value()), wkt, fam.String())
	}
	var cmd tea.Cmd
	if m.saveField == 0 {
		m.saveName, cmd = m.saveName.Update(msg)
	} else {
		m.saveDesc, cmd = m.saveDesc.Update(msg)
	}
	return m, cmd
}

// finishSave applies a save result to the store.
func (m *Model) finishSave(msg savedMsg) {
	m.saving = false
	if msg.err != nil {
		m.status = "save failed: " + msg.err.Error()
		return
	}
	m.deps.Store.SetPersisted(msg.layerID, true)
	if msg.entityID != "" {
		m.entityByLayer[msg.layerID] = msg.entityID
	}
	if msg.created {
		m.status = "saved as new record " + shortID(msg.entityID)
	} else {
		m.status = "geometry saved"
	}
}

// renderSave builds the save dialog box.
func (m Model) renderSave() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Save to catalog") + "\n\n")
	b.WriteString("name:        " + m.saveName.View() + "\n")
	b.WriteString("description: " + m.saveDesc.View() + "\n")
	b.WriteString("\n" + dimStyle.Render("tab switch field  enter save  esc cancel"))
	return b.String()
}
