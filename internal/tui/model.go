// Package tui is the terminal front end of the editor: a braille map canvas,
// the attribute table, the layer manager and the import/export dialogs, all
// driven by one shared session store.
package tui

import (
	"context"
	"os"

	list "github.com/charmbracelet/bubbles/list"
	table "github.com/charmbracelet/bubbles/table"
	textarea "github.com/charmbracelet/bubbles/textarea"
	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"geoedit/internal/catalog"
	"geoedit/internal/config"
	"geoedit/internal/geom"
	"geoedit/internal/importer"
	"geoedit/internal/session"
)

// Deps are the collaborators the front end is wired with at startup.
type Deps struct {
	Store   *session.Store
	Persist catalog.Persistence
	Files   catalog.Transport
	Catalog catalog.Reader
	Config  *config.Config
	Log     zerolog.Logger

	// InitialPaths are files named on the command line, imported on startup.
	InitialPaths []string
}

// promptKind selects what the single-line prompt input is collecting.
type promptKind int

const (
	promptNone promptKind = iota
	promptAddProperty
)

// confirmKind selects which destructive action awaits a y/n answer.
type confirmKind int

const (
	confirmNone confirmKind = iota
	confirmDeleteFeature
	confirmDeleteProperty
	confirmDeleteLayer
)

type Model struct {
	deps Deps
	dec  *importer.Decoder

	width  int
	height int

	helpVisible bool
	status      string

	// viewport
	zoom    float64
	offsetX int
	offsetY int
	view    orb.Bound
	hasView bool

	// last rendered map size (for hit testing and inspect)
	mapW int
	mapH int

	// panels
	showSidebar bool
	showAttrs   bool
	showLayers  bool
	showCatalog bool

	// file explorer
	cwd    string
	l      list.Model
	marked map[string]bool

	// attribute table
	tbl       table.Model
	cols      []string
	rowIDs    []string
	colCursor int
	editing   bool
	edit      textinput.Model

	// single-line prompt (add property)
	prompt      promptKind
	promptInput textinput.Model

	// pending destructive action
	confirm    confirmKind
	confirmArg string
	confirmMsg string

	// layer manager
	layerCursor int

	// import pipeline
	importGen    int
	importCancel context.CancelFunc
	importing    bool
	dialog       *importDialog

	// catalog browser
	entities      []catalog.Entity
	catCursor     int
	catLoading    bool
	entityByLayer map[string]string

	// save dialog
	saveOpen    bool
	saveLayerID string
	saveField   int
	saveName    textinput.Model
	saveDesc    textinput.Model
	saving      bool

	// paste mode
	pasteMode bool
	ta        textarea.Model

	// draw mode vertex buffer; committed atomically on completion
	verts []orb.Point

	// hover state
	hovering    bool
	hoverCellX  int
	hoverCellY  int
	hoverMicX   int
	hoverMicY   int
	hoverHasGeo bool
	hoverLon    float64
	hoverLat    float64

	inspectPopup string
}

func New(d Deps) Model {
	m := Model{
		deps:          d,
		dec:           importer.NewDecoder(d.Log),
		helpVisible:   true,
		zoom:          1.0,
		status:        "geoedit ready",
		marked:        map[string]bool{},
		entityByLayer: map[string]string{},
	}
	m.cwd = d.Config.DataDir
	if m.cwd == "" {
		m.cwd, _ = os.Getwd()
	}
	// file explorer
	del := list.NewDefaultDelegate()
	del.ShowDescription = false
	m.l = list.New(nil, del, 0, 0)
	m.l.Title = "Files"
	m.l.SetShowHelp(false)
	m.l.SetShowStatusBar(false)
	m.l.SetFilteringEnabled(true)
	// paste textarea
	m.ta = textarea.New()
	m.ta.Placeholder = "Paste WKT (POINT, LINESTRING, POLYGON, MULTI*). Enter imports; Esc cancels."
	m.ta.CharLimit = 0
	m.ta.SetWidth(50)
	m.ta.SetHeight(6)
	// attribute table
	m.tbl = table.New(table.WithFocused(true))
	m.tbl.SetHeight(12)
	// inputs
	m.edit = textinput.New()
	m.edit.CharLimit = 0
	m.promptInput = textinput.New()
	m.promptInput.Placeholder = "property key"
	m.saveName = textinput.New()
	m.saveName.Placeholder = "name"
	m.saveDesc = textinput.New()
	m.saveDesc.Placeholder = "description"
	m.refreshDir()
	return m
}

func (m Model) Init() tea.Cmd {
	if len(m.deps.InitialPaths) == 0 {
		return nil
	}
	return func() tea.Msg { return initImportMsg{} }
}

// drawing reports whether the draw/edit state machine is active.
func (m Model) drawing() bool {
	return m.deps.Store.Mode() != geom.FamilyUnknown
}
