package shapefile

import (
	"errors"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
)

func roundTrip(t *testing.T, c *Collection) *Collection {
	t.Helper()
	shp, _, dbf, err := Write(c)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := Read(shp, dbf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return out
}

func TestRoundTripPoints(t *testing.T) {
	in := &Collection{
		Type:   PointShape,
		Fields: []string{"name", "pop"},
		Records: []Record{
			{Geometry: orb.Point{15.27, -4.44}, Attrs: map[string]any{"name": "kin", "pop": 17.5}},
			{Geometry: orb.Point{2.35, 48.85}, Attrs: map[string]any{"name": "par"}},
		},
	}
	out := roundTrip(t, in)
	if out.Type != PointShape || len(out.Records) != 2 {
		t.Fatalf("type=%s records=%d", out.Type, len(out.Records))
	}
	if !reflect.DeepEqual(out.Fields, in.Fields) {
		t.Fatalf("fields: %v", out.Fields)
	}
	p, ok := out.Records[0].Geometry.(orb.Point)
	if !ok || p != (orb.Point{15.27, -4.44}) {
		t.Fatalf("geometry: %v", out.Records[0].Geometry)
	}
	// attribute columns are character fields, so values come back as strings
	if out.Records[0].Attrs["name"] != "kin" || out.Records[0].Attrs["pop"] != "17.5" {
		t.Fatalf("attrs: %v", out.Records[0].Attrs)
	}
	if out.Records[1].Attrs["pop"] != "" {
		t.Fatalf("missing attr must read back empty: %v", out.Records[1].Attrs)
	}
}

func TestRoundTripMultiPoint(t *testing.T) {
	in := &Collection{
		Type: MultiPointShape,
		Records: []Record{
			{Geometry: orb.MultiPoint{{1, 2}, {3, 4}}, Attrs: map[string]any{}},
		},
	}
	out := roundTrip(t, in)
	mp, ok := out.Records[0].Geometry.(orb.MultiPoint)
	if !ok || !reflect.DeepEqual(mp, orb.MultiPoint{{1, 2}, {3, 4}}) {
		t.Fatalf("geometry: %v", out.Records[0].Geometry)
	}
}

func TestRoundTripPolyLines(t *testing.T) {
	in := &Collection{
		Type: PolyLineShape,
		Records: []Record{
			{Geometry: orb.LineString{{0, 0}, {5, 5}, {10, 0}}, Attrs: map[string]any{}},
			{Geometry: orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}, Attrs: map[string]any{}},
		},
	}
	out := roundTrip(t, in)
	if _, ok := out.Records[0].Geometry.(orb.LineString); !ok {
		t.Fatalf("single part must decode as LineString: %T", out.Records[0].Geometry)
	}
	mls, ok := out.Records[1].Geometry.(orb.MultiLineString)
	if !ok || len(mls) != 2 {
		t.Fatalf("multi part: %v", out.Records[1].Geometry)
	}
}

func TestRoundTripPolygonWithHole(t *testing.T) {
	in := &Collection{
		Type: PolygonShape,
		Records: []Record{
			{
				Geometry: orb.Polygon{
					{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},   // ccw outer, writer flips
					{{2, 2}, {2, 4}, {4, 4}, {4, 2}, {2, 2}},       // cw hole, writer flips
				},
				Attrs: map[string]any{},
			},
		},
	}
	out := roundTrip(t, in)
	poly, ok := out.Records[0].Geometry.(orb.Polygon)
	if !ok {
		t.Fatalf("geometry: %T", out.Records[0].Geometry)
	}
	if len(poly) != 2 {
		t.Fatalf("rings = %d, want 2 (outer + hole)", len(poly))
	}
	if !isClockwise(poly[0]) {
		t.Fatal("outer ring must be clockwise in the file")
	}
	if isClockwise(poly[1]) {
		t.Fatal("hole must be counterclockwise in the file")
	}
}

func TestRoundTripMultiPolygon(t *testing.T) {
	in := &Collection{
		Type: PolygonShape,
		Records: []Record{
			{
				Geometry: orb.MultiPolygon{
					{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}},
					{{{5, 5}, {5, 6}, {6, 6}, {6, 5}, {5, 5}}},
				},
				Attrs: map[string]any{},
			},
		},
	}
	out := roundTrip(t, in)
	mp, ok := out.Records[0].Geometry.(orb.MultiPolygon)
	if !ok || len(mp) != 2 {
		t.Fatalf("geometry: %v", out.Records[0].Geometry)
	}
}

func TestWriteRejectsMixedTypes(t *testing.T) {
	c := &Collection{
		Type: PointShape,
		Records: []Record{
			{Geometry: orb.Point{0, 0}, Attrs: map[string]any{}},
			{Geometry: orb.LineString{{0, 0}, {1, 1}}, Attrs: map[string]any{}},
		},
	}
	if _, _, _, err := Write(c); !errors.Is(err, ErrUnsupportedShape) {
		t.Fatalf("got %v, want ErrUnsupportedShape", err)
	}
}

func TestWriteEmpty(t *testing.T) {
	if _, _, _, err := Write(&Collection{Type: PointShape}); err == nil {
		t.Fatal("expected error for an empty collection")
	}
}

func TestTypeOf(t *testing.T) {
	cases := []struct {
		g    orb.Geometry
		want ShapeType
	}{
		{orb.Point{}, PointShape},
		{orb.MultiPoint{}, MultiPointShape},
		{orb.LineString{}, PolyLineShape},
		{orb.MultiLineString{}, PolyLineShape},
		{orb.Polygon{}, PolygonShape},
		{orb.MultiPolygon{}, PolygonShape},
	}
	for _, tc := range cases {
		got, err := TypeOf(tc.g)
		if err != nil || got != tc.want {
			t.Fatalf("TypeOf(%T) = %s, %v", tc.g, got, err)
		}
	}
	if _, err := TypeOf(orb.Collection{}); !errors.Is(err, ErrUnsupportedShape) {
		t.Fatalf("collection: got %v, want ErrUnsupportedShape", err)
	}
}

func TestReadRejectsBadHeader(t *testing.T) {
	if _, err := Read([]byte("not a shapefile"), nil); !errors.Is(err, ErrBadHeader) {
		t.Fatalf("got %v, want ErrBadHeader", err)
	}
}
