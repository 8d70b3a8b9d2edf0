package tui

import (
	"context"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"geoedit/internal/catalog"
	"geoedit/internal/exporter"
	"geoedit/internal/geom"
	"geoedit/internal/importer"
)

const requestTimeout = 30 * time.Second

// Messages produced by background commands. Long-running work never mutates
// the store directly; results come back through Update.

// initImportMsg triggers the startup import of command-line file arguments.
type initImportMsg struct{}

type importDoneMsg struct {
	gen int
	res importer.Result
}

type catalogListMsg struct {
	entities []catalog.Entity
	err      error
}

type catalogFetchMsg struct {
	entity catalog.Entity
	fs     []geom.Feature
	err    error
}

type savedMsg struct {
	layerID  string
	entityID string
	created  bool
	err      error
}

type exportDoneMsg struct {
	path string
	err  error
}

// decodeCmd reads the named paths and runs the import pipeline. The
// generation number lets Update drop results from a cancelled batch.
func (m Model) decodeCmd(ctx context.Context, gen int, paths []string) tea.Cmd {
	dec := m.dec
	return func() tea.Msg {
		var files []importer.File
		for _, p := range paths {
			data, err := os.ReadFile(p)
			if err != nil {
				files = append(files, importer.File{Name: filepath.Base(p)})
				continue
			}
			files = append(files, importer.File{Name: filepath.Base(p), Data: data})
		}
		return importDoneMsg{gen: gen, res: dec.Decode(ctx, files)}
	}
}

// listCatalogCmd fetches the persisted entity listing.
func (m Model) listCatalogCmd() tea.Cmd {
	reader := m.deps.Catalog
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		entities, err := reader.List(ctx)
		return catalogListMsg{entities: entities, err: err}
	}
}

// fetchEntityCmd downloads one stored geometry document and decodes it.
func (m Model) fetchEntityCmd(e catalog.Entity) tea.Cmd {
	reader := m.deps.Catalog
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		data, err := reader.Fetch(ctx, e.GeometryURL)
		if err != nil {
			return catalogFetchMsg{entity: e, err: err}
		}
		fs, err := importer.DecodeGeoJSON(data)
		return catalogFetchMsg{entity: e, fs: fs, err: err}
	}
}

// saveGeometryCmd updates an already-persisted record's geometry.
func (m Model) saveGeometryCmd(layerID, entityID, wkt, familyTag string) tea.Cmd {
	persist := m.deps.Persist
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := persist.SaveGeometry(ctx, entityID, wkt, familyTag)
		return savedMsg{layerID: layerID, entityID: entityID, err: err}
	}
}

// createEntityCmd uploads the layer's interchange document, then inserts a
// new record pointing at it. The store is only marked persisted once the
// result comes back clean.
func (m Model) createEntityCmd(layer geom.Layer, fs []geom.Feature, name, description, wkt, familyTag string) tea.Cmd {
	persist := m.deps.Persist
	transport := m.deps.Files
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		doc, err := exporter.GeoJSON(layer, fs)
		if err != nil {
			return savedMsg{layerID: layer.ID, err: err}
		}
		ref, err := transport.Upload(ctx, exporter.SanitizeName(name)+".geojson", doc)
		if err != nil {
			return savedMsg{layerID: layer.ID, err: err}
		}
		id, err := persist.CreateSpatialEntity(ctx, name, description, ref.ID, wkt, familyTag)
		if err != nil {
			return savedMsg{layerID: layer.ID, err: err}
		}
		return savedMsg{layerID: layer.ID, entityID: id, created: true}
	}
}

// exportCmd writes the layer as a GeoJSON document or a zipped vector bundle
// into the export directory.
func (m Model) exportCmd(layer geom.Layer, fs []geom.Feature, bundle bool) tea.Cmd {
	dir := m.deps.Config.ExportDir
	return func() tea.Msg {
		var (
			name string
			data []byte
			err  error
		)
		if bundle {
			name, data, err = exporter.Bundle(layer, fs)
		} else {
			name = exporter.SanitizeName(layer.Name) + ".geojson"
			data, err = exporter.GeoJSON(layer, fs)
		}
		if err != nil {
			return exportDoneMsg{err: err}
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: path}
	}
}
