package tui

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	list "github.com/charmbracelet/bubbles/list"

	"geoedit/internal/importer"
)

type fileItem struct {
	name   string
	path   string
	marked bool
}

func (f fileItem) Title() string {
	if f.marked {
		return "● " + f.name
	}
	return "  " + f.name
}
func (f fileItem) Description() string { return "" }
func (f fileItem) FilterValue() string { return f.name }

// refreshDir rebuilds the explorer listing with the importable files in the
// current directory.
func (m *Model) refreshDir() {
	entries, err := os.ReadDir(m.cwd)
	if err != nil {
		m.status = "read dir error: " + err.Error()
		return
	}
	var items []list.Item
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if importer.Sniff(name) == importer.FormatUnknown {
			continue
		}
		p := filepath.Join(m.cwd, name)
		items = append(items, fileItem{name: name, path: p, marked: m.marked[p]})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].(fileItem).name < items[j].(fileItem).name
	})
	m.l.SetItems(items)
	if len(items) == 0 {
		m.status = "no importable files in " + m.cwd
	}
}

// toggleMark flips the batch mark on the highlighted file.
func (m *Model) toggleMark() {
	it, ok := m.l.SelectedItem().(fileItem)
	if !ok {
		return
	}
	if m.marked[it.path] {
		delete(m.marked, it.path)
	} else {
		m.marked[it.path] = true
	}
	m.refreshDir()
}

// importPaths returns the batch to import: the marked files, or just the
// highlighted one. Bundle parts pull in their on-disk siblings so a lone
// .shp pick still forms a complete group.
func (m *Model) importPaths() []string {
	var paths []string
	if len(m.marked) > 0 {
		for p := range m.marked {
			paths = append(paths, p)
		}
		sort.Strings(paths)
	} else if it, ok := m.l.SelectedItem().(fileItem); ok {
		paths = []string{it.path}
	}
	return gatherSiblings(paths)
}

// gatherSiblings extends bundle parts with same-base companion files from
// the same directory.
func gatherSiblings(paths []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		key := strings.ToLower(p)
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}
	for _, p := range paths {
		add(p)
		if importer.Sniff(p) != importer.FormatBundlePart {
			continue
		}
		dir := filepath.Dir(p)
		base := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if importer.Sniff(name) != importer.FormatBundlePart {
				continue
			}
			if strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), base) {
				add(filepath.Join(dir, name))
			}
		}
	}
	return out
}
