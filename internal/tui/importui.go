package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/paulmach/orb"

	"geoedit/internal/importer"
)

// importDialog holds one decoded batch awaiting confirmation. Candidates
// live only here; closing the dialog discards whatever was not promoted.
type importDialog struct {
	cands    []importer.Candidate
	problems []string
	cursor   int
}

// startImport kicks off a cancellable decode of the given paths.
func (m *Model) startImport(paths []string) tea.Cmd {
	if len(paths) == 0 {
		m.status = "nothing to import"
		return nil
	}
	if m.importCancel != nil {
		m.importCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.importGen++
	m.importCancel = cancel
	m.importing = true
	m.status = fmt.Sprintf("importing %d file(s)…", len(paths))
	return m.decodeCmd(ctx, m.importGen, paths)
}

// cancelImport aborts the in-flight batch; a stale result is dropped by its
// generation number.
func (m *Model) cancelImport() {
	if m.importCancel != nil {
		m.importCancel()
		m.importCancel = nil
	}
	m.importing = false
	m.status = "import cancelled"
}

// finishImport handles a decode result: stale batches are ignored, empty
// ones close with a message and anything else opens the dialog.
func (m *Model) finishImport(msg importDoneMsg) {
	if msg.gen != m.importGen || !m.importing {
		return
	}
	m.importing = false
	m.importCancel = nil
	if len(msg.res.Candidates) == 0 {
		m.status = "no valid data found"
		if len(msg.res.Problems) > 0 {
			m.status += ": " + msg.res.Problems[0]
		}
		return
	}
	m.dialog = &importDialog{cands: msg.res.Candidates, problems: msg.res.Problems}
	m.status = fmt.Sprintf("%d candidate(s) decoded", len(msg.res.Candidates))
}

// updateImportDialog owns the keyboard while the dialog is open.
func (m Model) updateImportDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.dialog
	switch msg.String() {
	case "esc", "q":
		m.dialog = nil
		m.status = "import discarded"
	case "up", "k":
		if d.cursor > 0 {
			d.cursor--
		}
	case "down", "j":
		if d.cursor < len(d.cands)-1 {
			d.cursor++
		}
	case " ", "space":
		d.cands[d.cursor].Selected = !d.cands[d.cursor].Selected
	case "a":
		for i := range d.cands {
			d.cands[i].Selected = true
		}
	case "n":
		for i := range d.cands {
			d.cands[i].Selected = false
		}
	case "enter":
		layers, err := importer.Promote(m.deps.Store, d.cands)
		m.dialog = nil
		if err != nil {
			m.status = "import error: " + err.Error()
			return m, nil
		}
		if len(layers) == 0 {
			m.status = "nothing selected"
			return m, nil
		}
		m.status = fmt.Sprintf("imported %d layer(s)", len(layers))
		m.refreshTable()
		// frame only what just arrived, not the whole session
		var b orb.Bound
		framed := false
		for _, l := range layers {
			lb, ok := m.deps.Store.Bound(l.ID)
			if !ok {
				continue
			}
			if framed {
				b = b.Union(lb)
			} else {
				b, framed = lb, true
			}
		}
		if framed {
			m.fitView(b)
		}
	}
	return m, nil
}

// renderImportDialog builds the confirmation box.
func (m Model) renderImportDialog() string {
	d := m.dialog
	var b strings.Builder
	b.WriteString(titleStyle.Render("Import") + "\n\n")
	for i, c := range d.cands {
		mark := "[ ]"
		if c.Selected {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s  %s  %d feature(s)  (%s)",
			mark, truncate(c.Name, 24), c.GeometryType, c.Count, c.Source)
		if i == d.cursor {
			line = selectStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	if len(d.problems) > 0 {
		b.WriteString("\n" + warnStyle.Render("skipped:") + "\n")
		for _, p := range d.problems {
			b.WriteString(warnStyle.Render("  "+truncate(p, 60)) + "\n")
		}
	}
	b.WriteString("\n" + dimStyle.Render("space toggle  a all  n none  enter import  esc cancel"))
	return b.String()
}
