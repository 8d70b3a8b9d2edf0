// Package shapefile implements a minimal in-memory codec for the ESRI
// shapefile bundle (.shp geometry, .shx index, .dbf attributes) over orb
// geometries. 2D shapes only: Point, MultiPoint, PolyLine and Polygon.
package shapefile

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

type ShapeType int32

const (
	NullShape       ShapeType = 0
	PointShape      ShapeType = 1
	PolyLineShape   ShapeType = 3
	PolygonShape    ShapeType = 5
	MultiPointShape ShapeType = 8
)

const (
	fileCode   = 9994
	version    = 1000
	headerSize = 100
)

var (
	ErrBadHeader        = errors.New("shapefile: bad file header")
	ErrBadRecord        = errors.New("shapefile: truncated record")
	ErrUnsupportedShape = errors.New("shapefile: unsupported shape type")
)

func (t ShapeType) String() string {
	switch t {
	case NullShape:
		return "Null"
	case PointShape:
		return "Point"
	case PolyLineShape:
		return "PolyLine"
	case PolygonShape:
		return "Polygon"
	case MultiPointShape:
		return "MultiPoint"
	}
	return fmt.Sprintf("ShapeType(%d)", int32(t))
}

// TypeOf maps an orb geometry onto the shapefile record type. Collections
// and other non-layer geometries are unsupported by the format.
func TypeOf(g orb.Geometry) (ShapeType, error) {
	switch g.(type) {
	case orb.Point:
		return PointShape, nil
	case orb.MultiPoint:
		return MultiPointShape, nil
	case orb.LineString, orb.MultiLineString:
		return PolyLineShape, nil
	case orb.Polygon, orb.MultiPolygon:
		return PolygonShape, nil
	}
	if g == nil {
		return NullShape, fmt.Errorf("%w: nil geometry", ErrUnsupportedShape)
	}
	return NullShape, fmt.Errorf("%w: %s", ErrUnsupportedShape, g.GeoJSONType())
}

// Record pairs one decoded geometry with its attribute row.
type Record struct {
	Geometry orb.Geometry
	Attrs    map[string]any
}

// Collection is one decoded (or to-be-encoded) shapefile: the declared shape
// type, the attribute field order and the records in file order.
type Collection struct {
	Type    ShapeType
	Fields  []string
	Records []Record
}

// ringArea returns twice the signed shoelace area of a ring. Negative means
// clockwise, which the format uses to mark outer polygon rings.
func ringArea(r orb.Ring) float64 {
	var a float64
	n := len(r)
	if n < 3 {
		return 0
	}
	for i := 0; i < n; i++ {
		p, q := r[i], r[(i+1)%n]
		a += p[0]*q[1] - q[0]*p[1]
	}
	return a
}

func isClockwise(r orb.Ring) bool {
	return ringArea(r) < 0
}

func reversed(r orb.Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[len(r)-1-i] = p
	}
	return out
}
