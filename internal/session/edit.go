package session

import (
	"geoedit/internal/geom"
)

// Selection and the attribute-editing contract. selectedFeatureId is the
// sole source of truth for focus, shared by the map surface and the table.

// Selected returns the focused feature id; "" means no selection.
func (s *Store) Selected() string {
	return s.selected
}

// ScopeLayer returns the layer the attribute table is scoped to ("" = all).
func (s *Store) ScopeLayer() string {
	return s.scopeLayer
}

func (s *Store) SetScope(layerID string) {
	s.scopeLayer = layerID
}

// Select focuses a feature (table-row path). Unknown ids clear the selection.
func (s *Store) Select(id string) {
	if _, ok := s.Feature(id); !ok {
		s.selected = ""
		return
	}
	s.selected = id
}

// SelectOnMap focuses a shape picked on the map surface, re-scoping the
// attribute table to the shape's layer when it is scoped elsewhere.
func (s *Store) SelectOnMap(id string) {
	f, ok := s.Feature(id)
	if !ok {
		s.selected = ""
		return
	}
	s.selected = id
	if owner := f.LayerID(); owner != "" && s.scopeLayer != owner {
		s.scopeLayer = owner
	}
}

func (s *Store) ClearSelection() {
	s.selected = ""
}

// StagedEdit is one in-flight cell edit; the feature is untouched until
// CommitEdit is called.
type StagedEdit struct {
	FeatureID string
	Key       string
	Previous  any
}

// StageEdit begins editing one property cell, recording the previous value.
func (s *Store) StageEdit(featureID, key string) (StagedEdit, error) {
	f, ok := s.Feature(featureID)
	if !ok {
		return StagedEdit{}, ErrNoSuchFeature
	}
	if key == geom.LayerKey {
		return StagedEdit{}, ErrReservedKey
	}
	s.pending = &StagedEdit{FeatureID: featureID, Key: key, Previous: f.Props[key]}
	return *s.pending, nil
}

// PendingEdit returns the staged edit, if any.
func (s *Store) PendingEdit() (StagedEdit, bool) {
	if s.pending == nil {
		return StagedEdit{}, false
	}
	return *s.pending, true
}

// CommitEdit writes the working value into the staged feature's property bag.
func (s *Store) CommitEdit(value any) error {
	if s.pending == nil {
		return ErrNoSuchFeature
	}
	e := *s.pending
	s.pending = nil
	return s.setProp(e.FeatureID, e.Key, value)
}

// CancelEdit discards the staged edit without mutating the feature.
func (s *Store) CancelEdit() {
	s.pending = nil
}

func (s *Store) setProp(featureID, key string, value any) error {
	idx := -1
	for i, f := range s.features {
		if f.ID == featureID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNoSuchFeature
	}
	features := make([]geom.Feature, len(s.features))
	copy(features, s.features)
	props := make(map[string]any, len(features[idx].Props)+1)
	for k, v := range features[idx].Props {
		props[k] = v
	}
	props[key] = value
	features[idx].Props = props
	s.features = features
	return nil
}

// AddProperty adds a key (empty string default) to every feature in the
// table's current scope.
func (s *Store) AddProperty(key string) error {
	if key == "" || key == geom.LayerKey {
		return ErrReservedKey
	}
	scoped := map[string]bool{}
	for _, f := range s.ScopedFeatures() {
		scoped[f.ID] = true
	}
	features := make([]geom.Feature, len(s.features))
	copy(features, s.features)
	for i := range features {
		if !scoped[features[i].ID] {
			continue
		}
		if _, ok := features[i].Props[key]; ok {
			continue
		}
		props := make(map[string]any, len(features[i].Props)+1)
		for k, v := range features[i].Props {
			props[k] = v
		}
		props[key] = ""
		features[i].Props = props
	}
	s.features = features
	return nil
}

// DeleteProperty removes a key from every feature in scope. The reserved
// layer key and the name column are not deletable.
func (s *Store) DeleteProperty(key string) error {
	if key == geom.LayerKey || key == "name" {
		return ErrReservedKey
	}
	scoped := map[string]bool{}
	for _, f := range s.ScopedFeatures() {
		scoped[f.ID] = true
	}
	features := make([]geom.Feature, len(s.features))
	copy(features, s.features)
	for i := range features {
		if !scoped[features[i].ID] {
			continue
		}
		if _, ok := features[i].Props[key]; !ok {
			continue
		}
		props := make(map[string]any, len(features[i].Props))
		for k, v := range features[i].Props {
			if k != key {
				props[k] = v
			}
		}
		features[i].Props = props
	}
	s.features = features
	if s.pending != nil && s.pending.Key == key {
		s.pending = nil
	}
	return nil
}
