package tui

import (
	"fmt"
	"strconv"

	table "github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// refreshTable rebuilds the attribute table from the store's current scope.
// Columns are the first-seen union of property keys; the leading column is
// the feature's shortened id.
func (m *Model) refreshTable() {
	m.cols = m.deps.Store.ColumnKeys()
	fs := m.deps.Store.ScopedFeatures()

	tcols := make([]table.Column, 0, len(m.cols)+1)
	tcols = append(tcols, table.Column{Title: "id", Width: 8})
	for i, c := range m.cols {
		title := c
		if i == m.colCursor {
			title = "[" + c + "]"
		}
		tcols = append(tcols, table.Column{Title: title, Width: min(max(len(c)+2, 8), 24)})
	}

	m.rowIDs = m.rowIDs[:0]
	trows := make([]table.Row, 0, len(fs))
	for _, f := range fs {
		m.rowIDs = append(m.rowIDs, f.ID)
		row := make([]string, 0, len(m.cols)+1)
		row = append(row, shortID(f.ID))
		for _, c := range m.cols {
			row = append(row, cellString(f.Props[c]))
		}
		trows = append(trows, table.Row(row))
	}
	// clear rows first so columns and rows never disagree mid-update
	m.tbl.SetRows(nil)
	m.tbl.SetColumns(tcols)
	m.tbl.SetRows(trows)
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// parseCell interprets an edited cell: numbers and booleans keep their
// typed form, everything else stays a string.
func parseCell(s string) any {
	if s == "true" {
		return true
	}
	if s == "false" {
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// syncTableCursor moves the table cursor to the selected feature's row.
func (m *Model) syncTableCursor() {
	sel := m.deps.Store.Selected()
	if sel == "" {
		return
	}
	for i, id := range m.rowIDs {
		if id == sel {
			m.tbl.SetCursor(i)
			return
		}
	}
}

// currentRowID returns the feature id under the table cursor.
func (m Model) currentRowID() (string, bool) {
	i := m.tbl.Cursor()
	if i < 0 || i >= len(m.rowIDs) {
		return "", false
	}
	return m.rowIDs[i], true
}

// updateTable owns the keyboard while the attribute table is focused.
func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "esc":
			m.deps.Store.CancelEdit()
			m.editing = false
			m.edit.Blur()
			m.status = "edit cancelled"
			return m, nil
		case "enter":
			if err := m.deps.Store.CommitEdit(parseCell(m.edit.Value())); err != nil {
				m.status = "edit error: " + err.Error()
			} else {
				m.status = "saved"
			}
			m.editing = false
			m.edit.Blur()
			m.refreshTable()
			return m, nil
		}
		var cmd tea.Cmd
		m.edit, cmd = m.edit.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "esc", "a":
		if m.inspectPopup != "" {
			m.inspectPopup = ""
			return m, nil
		}
		m.showAttrs = false
		return m, nil
	case "left":
		if m.colCursor > 0 {
			m.colCursor--
			m.refreshTable()
		}
		return m, nil
	case "right":
		if m.colCursor < len(m.cols)-1 {
			m.colCursor++
			m.refreshTable()
		}
		return m, nil
	case "enter":
		id, ok := m.currentRowID()
		if !ok || m.colCursor >= len(m.cols) {
			return m, nil
		}
		key := m.cols[m.colCursor]
		st, err := m.deps.Store.StageEdit(id, key)
		if err != nil {
			m.status = "edit error: " + err.Error()
			return m, nil
		}
		m.editing = true
		m.edit.SetValue(cellString(st.Previous))
		m.edit.CursorEnd()
		m.edit.Focus()
		m.status = "editing " + key
		return m, nil
	case "A":
		m.prompt = promptAddProperty
		m.promptInput.SetValue("")
		m.promptInput.Focus()
		return m, nil
	case "D":
		if m.colCursor < len(m.cols) {
			key := m.cols[m.colCursor]
			m.confirm = confirmDeleteProperty
			m.confirmArg = key
			m.confirmMsg = fmt.Sprintf("delete property %q from all features in scope?", key)
		}
		return m, nil
	case "x":
		if id, ok := m.currentRowID(); ok {
			m.confirm = confirmDeleteFeature
			m.confirmArg = id
			m.confirmMsg = "delete feature " + shortID(id) + "?"
		}
		return m, nil
	case "0":
		m.deps.Store.SetScope("")
		m.colCursor = 0
		m.refreshTable()
		m.status = "scope: all layers"
		return m, nil
	}

	prev := m.tbl.Cursor()
	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	// row movement drives the shared selection and the camera
	if id, ok := m.currentRowID(); ok {
		m.deps.Store.Select(id)
		if m.tbl.Cursor() != prev {
			(&m).focusFeature(id)
		}
	}
	return m, cmd
}
