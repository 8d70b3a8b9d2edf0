package session

import (
	"github.com/paulmach/orb"

	"geoedit/internal/geom"
)

// Draw/edit mode: at most one drawable family is active at a time, and every
// completed shape is committed atomically into the active target layer.

// Mode returns the currently drawable family; FamilyUnknown means None.
func (s *Store) Mode() geom.Family {
	return s.mode
}

// Target returns the id of the layer receiving completed shapes.
func (s *Store) Target() string {
	return s.target
}

// StartEditing activates drawing into an existing layer, or, given the
// NewLayerTarget sentinel, into a fresh (or reused) unsaved layer of the
// requested family.
func (s *Store) StartEditing(targetLayerID string, familyIfNew geom.Family) (geom.Layer, error) {
	if targetLayerID == NewLayerTarget {
		for _, l := range s.layers {
			if !l.Persisted && l.Family == familyIfNew {
				s.mode = l.Family
				s.target = l.ID
				return l, nil
			}
		}
		l := s.AddLayer("", familyIfNew, false)
		s.mode = l.Family
		s.target = l.ID
		return l, nil
	}
	l, ok := s.Layer(targetLayerID)
	if !ok {
		return geom.Layer{}, ErrNoSuchLayer
	}
	s.mode = l.Family
	s.target = l.ID
	return l, nil
}

// StopEditing returns the state machine to None. Safe to call in any state;
// completed shapes are already committed so nothing is discarded.
func (s *Store) StopEditing() {
	s.mode = geom.FamilyUnknown
	s.target = ""
}

// SetTarget changes which layer future shapes will join. Outside an active
// mode this only retargets; drawing resumes with the layer's family.
func (s *Store) SetTarget(layerID string) error {
	l, ok := s.Layer(layerID)
	if !ok {
		return ErrNoSuchLayer
	}
	s.target = l.ID
	if s.mode != geom.FamilyUnknown {
		s.mode = l.Family
	}
	return nil
}

// CompleteShape commits a shape drawn on the map surface into the active
// target layer and returns the created feature.
func (s *Store) CompleteShape(g orb.Geometry) (geom.Feature, error) {
	if s.mode == geom.FamilyUnknown || s.target == "" {
		return geom.Feature{}, ErrNoSuchLayer
	}
	return s.AddFeature(s.target, g, nil)
}
