// Package session owns the editing session's in-memory state: the feature
// collection, the layer list and the shared selection. Every mutation goes
// through a named operation and replaces whole slices, so map and table
// observers always recompute from consistent state.
package session

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"geoedit/internal/geom"
)

var (
	ErrNoSuchLayer    = errors.New("layer not found")
	ErrNoSuchFeature  = errors.New("feature not found")
	ErrFamilyMismatch = errors.New("geometry does not match layer family")
	ErrReservedKey    = errors.New("property is reserved and cannot be removed")
)

// NewLayerTarget is the sentinel layer id asking StartEditing to create (or
// reuse) a fresh unsaved layer of the requested family.
const NewLayerTarget = "new"

// Store is the single authoritative collection for one editing session.
type Store struct {
	features []geom.Feature
	layers   []geom.Layer

	selected   string // feature id; "" = nothing focused
	scopeLayer string // layer the attribute table is scoped to; "" = all

	mode   geom.Family // active drawable family; FamilyUnknown = None
	target string      // layer receiving completed shapes

	layerSeq int
	pending  *StagedEdit
}

func New() *Store {
	return &Store{}
}

// Features returns a copy of the full collection.
func (s *Store) Features() []geom.Feature {
	out := make([]geom.Feature, len(s.features))
	copy(out, s.features)
	return out
}

// FeaturesInLayer returns the features attached to one layer.
func (s *Store) FeaturesInLayer(layerID string) []geom.Feature {
	var out []geom.Feature
	for _, f := range s.features {
		if f.LayerID() == layerID {
			out = append(out, f)
		}
	}
	return out
}

// ScopedFeatures returns the features in the attribute table's current scope.
func (s *Store) ScopedFeatures() []geom.Feature {
	if s.scopeLayer == "" {
		return s.Features()
	}
	return s.FeaturesInLayer(s.scopeLayer)
}

func (s *Store) Feature(id string) (geom.Feature, bool) {
	for _, f := range s.features {
		if f.ID == id {
			return f, true
		}
	}
	return geom.Feature{}, false
}

// Layers returns a copy of the layer list.
func (s *Store) Layers() []geom.Layer {
	out := make([]geom.Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

func (s *Store) Layer(id string) (geom.Layer, bool) {
	for _, l := range s.layers {
		if l.ID == id {
			return l, true
		}
	}
	return geom.Layer{}, false
}

// NextLayerName hands out the "Layer N" fallback names.
func (s *Store) NextLayerName() string {
	s.layerSeq++
	return fmt.Sprintf("Layer %d", s.layerSeq)
}

// AddLayer creates a layer with the family default style and visibility on.
func (s *Store) AddLayer(name string, fam geom.Family, persisted bool) geom.Layer {
	if name == "" {
		name = s.NextLayerName()
	}
	l := geom.Layer{
		ID:        uuid.NewString(),
		Name:      name,
		Family:    fam,
		Visible:   true,
		Style:     geom.DefaultStyle(fam),
		Persisted: persisted,
	}
	layers := make([]geom.Layer, len(s.layers), len(s.layers)+1)
	copy(layers, s.layers)
	s.layers = append(layers, l)
	return l
}

// AddFeature attaches a geometry to a layer, tagging it with the reserved
// layer key and bumping the layer's count.
func (s *Store) AddFeature(layerID string, g orb.Geometry, props map[string]any) (geom.Feature, error) {
	l, ok := s.Layer(layerID)
	if !ok {
		return geom.Feature{}, ErrNoSuchLayer
	}
	if !l.Family.Matches(g) {
		return geom.Feature{}, fmt.Errorf("%w: %s into %s layer", ErrFamilyMismatch, geom.FamilyOf(g), l.Family)
	}
	if props == nil {
		props = map[string]any{}
	}
	props[geom.LayerKey] = layerID
	f := geom.Feature{ID: uuid.NewString(), Geometry: g, Props: props}
	features := make([]geom.Feature, len(s.features), len(s.features)+1)
	copy(features, s.features)
	s.features = append(features, f)
	s.bumpCount(layerID, 1)
	return f, nil
}

// DeleteFeature removes a feature, decrements its owning layer's count and
// clears the selection if it pointed at the removed feature.
func (s *Store) DeleteFeature(id string) error {
	idx := -1
	for i, f := range s.features {
		if f.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNoSuchFeature
	}
	owner := s.features[idx].LayerID()
	features := make([]geom.Feature, 0, len(s.features)-1)
	features = append(features, s.features[:idx]...)
	features = append(features, s.features[idx+1:]...)
	s.features = features
	if owner != "" {
		s.bumpCount(owner, -1)
	}
	if s.selected == id {
		s.selected = ""
	}
	if s.pending != nil && s.pending.FeatureID == id {
		s.pending = nil
	}
	return nil
}

// DeleteLayer discards a layer and every feature attached to it.
func (s *Store) DeleteLayer(id string) error {
	idx := -1
	for i, l := range s.layers {
		if l.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNoSuchLayer
	}
	layers := make([]geom.Layer, 0, len(s.layers)-1)
	layers = append(layers, s.layers[:idx]...)
	layers = append(layers, s.layers[idx+1:]...)
	s.layers = layers

	features := make([]geom.Feature, 0, len(s.features))
	for _, f := range s.features {
		if f.LayerID() == id {
			if s.selected == f.ID {
				s.selected = ""
			}
			continue
		}
		features = append(features, f)
	}
	s.features = features
	if s.scopeLayer == id {
		s.scopeLayer = ""
	}
	if s.target == id {
		s.StopEditing()
	}
	return nil
}

// ImportLayer promotes a decoded collection into a fresh local layer. The
// whole collection is validated against the family before anything is
// created, so a rejected import leaves the store untouched.
func (s *Store) ImportLayer(name string, fam geom.Family, fs []geom.Feature) (geom.Layer, error) {
	for _, f := range fs {
		if !fam.Matches(f.Geometry) {
			return geom.Layer{}, fmt.Errorf("%w: %s into %s layer", ErrFamilyMismatch, geom.FamilyOf(f.Geometry), fam)
		}
	}
	l := s.AddLayer(name, fam, false)
	for _, f := range fs {
		if _, err := s.AddFeature(l.ID, f.Geometry, f.Props); err != nil {
			return l, err
		}
	}
	out, _ := s.Layer(l.ID)
	return out, nil
}

func (s *Store) bumpCount(layerID string, delta int) {
	layers := make([]geom.Layer, len(s.layers))
	copy(layers, s.layers)
	for i := range layers {
		if layers[i].ID == layerID {
			layers[i].Count += delta
		}
	}
	s.layers = layers
}

func (s *Store) mutateLayer(id string, fn func(*geom.Layer)) error {
	idx := -1
	for i, l := range s.layers {
		if l.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNoSuchLayer
	}
	layers := make([]geom.Layer, len(s.layers))
	copy(layers, s.layers)
	fn(&layers[idx])
	s.layers = layers
	return nil
}

// SetStyle merges a partial style into the layer's style record.
func (s *Store) SetStyle(layerID string, patch geom.StylePatch) error {
	return s.mutateLayer(layerID, func(l *geom.Layer) {
		l.Style = l.Style.Merge(patch)
	})
}

func (s *Store) SetVisible(layerID string, v bool) error {
	return s.mutateLayer(layerID, func(l *geom.Layer) { l.Visible = v })
}

func (s *Store) ToggleVisible(layerID string) error {
	return s.mutateLayer(layerID, func(l *geom.Layer) { l.Visible = !l.Visible })
}

func (s *Store) SetShowLabels(layerID string, v bool) error {
	return s.mutateLayer(layerID, func(l *geom.Layer) { l.ShowLabels = v })
}

// SetLabelProperty records which property renders as the on-map label.
// The empty key restores the default id/name-based labeling.
func (s *Store) SetLabelProperty(layerID, key string) error {
	return s.mutateLayer(layerID, func(l *geom.Layer) { l.LabelProp = key })
}

// SetPersisted flips the database-bound flag after a successful save.
func (s *Store) SetPersisted(layerID string, v bool) error {
	return s.mutateLayer(layerID, func(l *geom.Layer) { l.Persisted = v })
}

// LabelCandidates computes the label-property choices for a layer: the union
// of property keys across its features in first-seen order, minus the
// reserved layer key.
func (s *Store) LabelCandidates(layerID string) []string {
	return unionKeys(s.FeaturesInLayer(layerID))
}

// ColumnKeys computes the attribute table columns for the current scope.
func (s *Store) ColumnKeys() []string {
	return unionKeys(s.ScopedFeatures())
}

// unionKeys unions property keys in first-seen order across the features.
// Map iteration order is random, so keys within one feature are ranked
// alphabetically before taking first occurrence.
func unionKeys(fs []geom.Feature) []string {
	var order []string
	seen := map[string]bool{}
	for _, f := range fs {
		cols := make([]string, 0, len(f.Props))
		for k := range f.Props {
			if k != geom.LayerKey {
				cols = append(cols, k)
			}
		}
		sort.Strings(cols)
		for _, k := range cols {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}
	return order
}

// Bound returns the union bound of a layer's features (all features when the
// id is empty).
func (s *Store) Bound(layerID string) (orb.Bound, bool) {
	if layerID == "" {
		return geom.BoundOf(s.features)
	}
	return geom.BoundOf(s.FeaturesInLayer(layerID))
}

// LayerWKT reduces a layer's collection to one spatial-text form for the
// persistence boundary.
func (s *Store) LayerWKT(layerID string) (string, geom.Family, error) {
	fs := s.FeaturesInLayer(layerID)
	return geom.CollectionWKT(fs)
}
