package geom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Errors raised by the WKT converter. Callers are expected to validate shape
// completeness before encoding; the converter never guesses.
var (
	ErrUnsupportedGeometry = errors.New("unsupported geometry type")
	ErrEmptyCoordinates    = errors.New("invalid or empty coordinates")
	ErrMixedFamilies       = errors.New("features do not share one geometry family")
	ErrMixedNesting        = errors.New("layer mixes simple and multi geometries")
)

// MarshalWKT converts a geometry to its spatial-text form. Coordinates are
// written as "x y"; orb's model is strictly 2D so no extra dimensions occur.
// Only the six supported families encode; everything else errors.
func MarshalWKT(g orb.Geometry) (string, error) {
	switch v := g.(type) {
	case orb.Point:
		return "POINT(" + coord(v) + ")", nil
	case orb.MultiPoint:
		if len(v) == 0 {
			return "", ErrEmptyCoordinates
		}
		return "MULTIPOINT(" + coords([]orb.Point(v)) + ")", nil
	case orb.LineString:
		if len(v) == 0 {
			return "", ErrEmptyCoordinates
		}
		return "LINESTRING(" + coords([]orb.Point(v)) + ")", nil
	case orb.MultiLineString:
		if len(v) == 0 {
			return "", ErrEmptyCoordinates
		}
		parts := make([]string, 0, len(v))
		for _, ls := range v {
			if len(ls) == 0 {
				return "", ErrEmptyCoordinates
			}
			parts = append(parts, "("+coords([]orb.Point(ls))+")")
		}
		return "MULTILINESTRING(" + strings.Join(parts, ",") + ")", nil
	case orb.Polygon:
		s, err := polygonBody(v)
		if err != nil {
			return "", err
		}
		return "POLYGON" + s, nil
	case orb.MultiPolygon:
		if len(v) == 0 {
			return "", ErrEmptyCoordinates
		}
		parts := make([]string, 0, len(v))
		for _, poly := range v {
			s, err := polygonBody(poly)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "MULTIPOLYGON(" + strings.Join(parts, ",") + ")", nil
	case nil:
		return "", ErrEmptyCoordinates
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType())
}

func polygonBody(p orb.Polygon) (string, error) {
	if len(p) == 0 {
		return "", ErrEmptyCoordinates
	}
	rings := make([]string, 0, len(p))
	for _, r := range p {
		if len(r) == 0 {
			return "", ErrEmptyCoordinates
		}
		rings = append(rings, "("+coords([]orb.Point(r))+")")
	}
	return "(" + strings.Join(rings, ",") + ")", nil
}

func coord(p orb.Point) string {
	return num(p[0]) + " " + num(p[1])
}

func coords(pts []orb.Point) string {
	out := make([]string, 0, len(pts))
	for _, p := range pts {
		out = append(out, coord(p))
	}
	return strings.Join(out, ",")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CollectionWKT reduces a homogeneous feature set to one spatial-text form:
// a single feature encodes its own geometry, several features of one family
// synthesize a multi geometry by flattening each feature's parts. Mixing
// simple and multi variants in one set is rejected rather than guessed.
func CollectionWKT(fs []Feature) (string, Family, error) {
	if len(fs) == 0 {
		return "", FamilyUnknown, ErrEmptyCoordinates
	}
	fam := FamilyOf(fs[0].Geometry)
	if fam == FamilyUnknown {
		return "", FamilyUnknown, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, fs[0].Geometry.GeoJSONType())
	}
	if len(fs) == 1 {
		s, err := MarshalWKT(fs[0].Geometry)
		return s, fam, err
	}
	multi := false
	for i, f := range fs {
		if FamilyOf(f.Geometry) != fam {
			return "", FamilyUnknown, ErrMixedFamilies
		}
		m := IsMulti(f.Geometry)
		if i == 0 {
			multi = m
		} else if m != multi {
			return "", FamilyUnknown, ErrMixedNesting
		}
	}
	switch fam {
	case FamilyPoint:
		var mp orb.MultiPoint
		for _, f := range fs {
			switch g := f.Geometry.(type) {
			case orb.Point:
				mp = append(mp, g)
			case orb.MultiPoint:
				mp = append(mp, g...)
			}
		}
		s, err := MarshalWKT(mp)
		return s, fam, err
	case FamilyLine:
		var mls orb.MultiLineString
		for _, f := range fs {
			switch g := f.Geometry.(type) {
			case orb.LineString:
				mls = append(mls, g)
			case orb.MultiLineString:
				mls = append(mls, g...)
			}
		}
		s, err := MarshalWKT(mls)
		return s, fam, err
	default:
		var mp orb.MultiPolygon
		for _, f := range fs {
			switch g := f.Geometry.(type) {
			case orb.Polygon:
				mp = append(mp, g)
			case orb.MultiPolygon:
				mp = append(mp, g...)
			}
		}
		s, err := MarshalWKT(mp)
		return s, fam, err
	}
}

// UnmarshalWKT parses the spatial-text form back into a geometry.
// Supported: the six families encoded by MarshalWKT. MULTIPOINT accepts both
// the bare "x y, x y" and the parenthesized "(x y),(x y)" spellings.
func UnmarshalWKT(wkt string) (orb.Geometry, error) {
	s := strings.TrimSpace(wkt)
	if s == "" {
		return nil, ErrEmptyCoordinates
	}
	tag, body, err := splitTagBody(s)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "POINT":
		pts, err := parseTuples(body)
		if err != nil || len(pts) == 0 {
			return nil, ErrEmptyCoordinates
		}
		return pts[0], nil
	case "MULTIPOINT":
		var mp orb.MultiPoint
		for _, grp := range splitGroups(body) {
			pts, err := parseTuples(grp)
			if err != nil {
				return nil, err
			}
			mp = append(mp, pts...)
		}
		if len(mp) == 0 {
			return nil, ErrEmptyCoordinates
		}
		return mp, nil
	case "LINESTRING":
		pts, err := parseTuples(body)
		if err != nil || len(pts) == 0 {
			return nil, ErrEmptyCoordinates
		}
		return orb.LineString(pts), nil
	case "MULTILINESTRING":
		var mls orb.MultiLineString
		for _, grp := range splitGroups(body) {
			pts, err := parseTuples(inner(grp))
			if err != nil || len(pts) == 0 {
				return nil, ErrEmptyCoordinates
			}
			mls = append(mls, orb.LineString(pts))
		}
		if len(mls) == 0 {
			return nil, ErrEmptyCoordinates
		}
		return mls, nil
	case "POLYGON":
		return parsePolygonBody(body)
	case "MULTIPOLYGON":
		var mp orb.MultiPolygon
		for _, grp := range splitGroups(body) {
			poly, err := parsePolygonBody(inner(grp))
			if err != nil {
				return nil, err
			}
			mp = append(mp, poly)
		}
		if len(mp) == 0 {
			return nil, ErrEmptyCoordinates
		}
		return mp, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, tag)
}

func splitTagBody(s string) (string, string, error) {
	i := strings.Index(s, "(")
	j := strings.LastIndex(s, ")")
	if i < 0 || j <= i {
		return "", "", ErrEmptyCoordinates
	}
	tag := strings.ToUpper(strings.TrimSpace(s[:i]))
	return tag, s[i+1 : j], nil
}

func parsePolygonBody(body string) (orb.Polygon, error) {
	var poly orb.Polygon
	for _, grp := range splitGroups(body) {
		pts, err := parseTuples(inner(grp))
		if err != nil || len(pts) == 0 {
			return nil, ErrEmptyCoordinates
		}
		poly = append(poly, orb.Ring(pts))
	}
	if len(poly) == 0 {
		return nil, ErrEmptyCoordinates
	}
	return poly, nil
}

// inner strips one matched pair of outer parentheses if present.
func inner(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return s[1 : len(s)-1]
	}
	return s
}

// splitGroups splits a WKT body on commas at parenthesis depth zero.
func splitGroups(body string) []string {
	var out []string
	depth, start := 0, 0
	for i, ch := range body {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, body[start:i])
				start = i + 1
			}
		}
	}
	return append(out, body[start:])
}

func parseTuples(block string) ([]orb.Point, error) {
	var pts []orb.Point
	for _, tup := range strings.Split(block, ",") {
		parts := strings.Fields(strings.Trim(tup, "() \t\r\n"))
		if len(parts) < 2 {
			continue
		}
		x, e1 := strconv.ParseFloat(parts[0], 64)
		y, e2 := strconv.ParseFloat(parts[1], 64)
		if e1 != nil || e2 != nil {
			return nil, ErrEmptyCoordinates
		}
		pts = append(pts, orb.Point{x, y})
	}
	return pts, nil
}
