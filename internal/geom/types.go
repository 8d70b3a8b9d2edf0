// Package geom holds the geometry/layer data model shared by the editor
// session, the import/export pipelines and the persistence boundary.
package geom

import (
	"github.com/paulmach/orb"
)

// LayerKey is the reserved feature property naming the owning layer's id.
// It is never shown as an editable column and cannot be deleted.
const LayerKey = "__layer"

// Family is the closed set of geometry families a layer can hold.
// Each family covers both the simple and the homogeneous multi variant.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyPoint
	FamilyLine
	FamilyPolygon
)

func (f Family) String() string {
	switch f {
	case FamilyPoint:
		return "Point"
	case FamilyLine:
		return "LineString"
	case FamilyPolygon:
		return "Polygon"
	}
	return "Unknown"
}

// FamilyOf maps an orb geometry onto its layer family. Collections, rings
// and bounds are not layer material and map to FamilyUnknown.
func FamilyOf(g orb.Geometry) Family {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return FamilyPoint
	case orb.LineString, orb.MultiLineString:
		return FamilyLine
	case orb.Polygon, orb.MultiPolygon:
		return FamilyPolygon
	}
	return FamilyUnknown
}

// IsMulti reports whether g is one of the multi-part variants.
func IsMulti(g orb.Geometry) bool {
	switch g.(type) {
	case orb.MultiPoint, orb.MultiLineString, orb.MultiPolygon:
		return true
	}
	return false
}

// Feature is one geographic object: a geometry plus its property bag.
// Property key ordering is presentational and derives from first-seen
// order across a layer's features (see session.ColumnKeys).
type Feature struct {
	ID       string
	Geometry orb.Geometry
	Props    map[string]any
}

// LayerID returns the owning layer's id from the reserved property, or "".
func (f Feature) LayerID() string {
	id, _ := f.Props[LayerKey].(string)
	return id
}

// Bound returns the feature's bounding box.
func (f Feature) Bound() orb.Bound {
	return f.Geometry.Bound()
}

// Style is a layer's visual style record.
type Style struct {
	FillColor     string
	StrokeColor   string
	Weight        int
	StrokeOpacity float64
	FillOpacity   float64
}

// StylePatch is a partial style; nil fields are left untouched on merge.
type StylePatch struct {
	FillColor     *string
	StrokeColor   *string
	Weight        *int
	StrokeOpacity *float64
	FillOpacity   *float64
}

// Clamped returns s with opacities forced into [0,1] and weight into [1,10].
func (s Style) Clamped() Style {
	if s.Weight < 1 {
		s.Weight = 1
	}
	if s.Weight > 10 {
		s.Weight = 10
	}
	s.StrokeOpacity = clamp01(s.StrokeOpacity)
	s.FillOpacity = clamp01(s.FillOpacity)
	return s
}

// Merge applies non-nil patch fields onto s and clamps the result.
func (s Style) Merge(p StylePatch) Style {
	if p.FillColor != nil {
		s.FillColor = *p.FillColor
	}
	if p.StrokeColor != nil {
		s.StrokeColor = *p.StrokeColor
	}
	if p.Weight != nil {
		s.Weight = *p.Weight
	}
	if p.StrokeOpacity != nil {
		s.StrokeOpacity = *p.StrokeOpacity
	}
	if p.FillOpacity != nil {
		s.FillOpacity = *p.FillOpacity
	}
	return s.Clamped()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DefaultStyle returns the family default applied to freshly created layers.
func DefaultStyle(f Family) Style {
	s := Style{Weight: 3, StrokeOpacity: 1.0, FillOpacity: 0.2}
	switch f {
	case FamilyPoint:
		s.FillColor = "#F59E0B"
		s.StrokeColor = "#B45309"
	case FamilyLine:
		s.FillColor = "#3B82F6"
		s.StrokeColor = "#1D4ED8"
	default:
		s.FillColor = "#10B981"
		s.StrokeColor = "#047857"
	}
	return s
}

// Layer is a named, styled grouping of features sharing one geometry family.
// The family is fixed at creation; features attached to the layer must match
// it (multi variants included).
type Layer struct {
	ID         string
	Name       string
	Family     Family
	Visible    bool
	ShowLabels bool
	LabelProp  string // "" renders the default id/name label
	Style      Style
	Count      int
	Persisted  bool // already backed by catalog storage
}

// Matches reports whether g may be attached to a layer of family f.
func (f Family) Matches(g orb.Geometry) bool {
	return f != FamilyUnknown && FamilyOf(g) == f
}

// BoundOf unions the bounds of all features; ok is false for an empty set.
func BoundOf(fs []Feature) (orb.Bound, bool) {
	var b orb.Bound
	ok := false
	for _, f := range fs {
		if f.Geometry == nil {
			continue
		}
		if !ok {
			b = f.Geometry.Bound()
			ok = true
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b, ok
}
