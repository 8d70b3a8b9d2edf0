package geom

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestFamilyOf(t *testing.T) {
	cases := []struct {
		g    orb.Geometry
		want Family
	}{
		{orb.Point{}, FamilyPoint},
		{orb.MultiPoint{}, FamilyPoint},
		{orb.LineString{}, FamilyLine},
		{orb.MultiLineString{}, FamilyLine},
		{orb.Polygon{}, FamilyPolygon},
		{orb.MultiPolygon{}, FamilyPolygon},
		{orb.Collection{}, FamilyUnknown},
		{nil, FamilyUnknown},
	}
	for _, tc := range cases {
		if got := FamilyOf(tc.g); got != tc.want {
			t.Fatalf("FamilyOf(%T) = %s, want %s", tc.g, got, tc.want)
		}
	}
}

func TestFamilyMatches(t *testing.T) {
	if !FamilyPoint.Matches(orb.MultiPoint{{1, 2}}) {
		t.Fatal("multi variant must match its family")
	}
	if FamilyPoint.Matches(orb.LineString{{0, 0}, {1, 1}}) {
		t.Fatal("line must not match point family")
	}
	if FamilyUnknown.Matches(orb.Point{}) {
		t.Fatal("unknown family matches nothing")
	}
}

func TestStyleClamped(t *testing.T) {
	s := Style{Weight: 99, StrokeOpacity: 1.7, FillOpacity: -2}.Clamped()
	if s.Weight != 10 || s.StrokeOpacity != 1 || s.FillOpacity != 0 {
		t.Fatalf("unexpected clamp result: %+v", s)
	}
	s = Style{Weight: 0}.Clamped()
	if s.Weight != 1 {
		t.Fatalf("weight floor: %+v", s)
	}
}

func TestStyleMerge(t *testing.T) {
	base := DefaultStyle(FamilyLine)
	w := 7
	op := 0.5
	got := base.Merge(StylePatch{Weight: &w, FillOpacity: &op})
	if got.Weight != 7 || got.FillOpacity != 0.5 {
		t.Fatalf("patched fields not applied: %+v", got)
	}
	if got.StrokeColor != base.StrokeColor || got.FillColor != base.FillColor {
		t.Fatalf("untouched fields changed: %+v", got)
	}
}

func TestDefaultStyleDiffersPerFamily(t *testing.T) {
	p := DefaultStyle(FamilyPoint)
	l := DefaultStyle(FamilyLine)
	g := DefaultStyle(FamilyPolygon)
	if p.StrokeColor == l.StrokeColor || l.StrokeColor == g.StrokeColor {
		t.Fatal("families share a default stroke color")
	}
	for _, s := range []Style{p, l, g} {
		if s.Weight != 3 || s.StrokeOpacity != 1.0 || s.FillOpacity != 0.2 {
			t.Fatalf("unexpected defaults: %+v", s)
		}
	}
}

func TestFeatureLayerID(t *testing.T) {
	f := Feature{Props: map[string]any{LayerKey: "abc"}}
	if f.LayerID() != "abc" {
		t.Fatalf("got %q", f.LayerID())
	}
	if (Feature{Props: map[string]any{}}).LayerID() != "" {
		t.Fatal("missing key must yield empty id")
	}
}

func TestBoundOf(t *testing.T) {
	if _, ok := BoundOf(nil); ok {
		t.Fatal("empty set must report no bound")
	}
	fs := []Feature{
		{Geometry: orb.Point{0, 0}},
		{Geometry: orb.Point{10, -5}},
	}
	b, ok := BoundOf(fs)
	if !ok {
		t.Fatal("expected a bound")
	}
	if b.Min[0] != 0 || b.Min[1] != -5 || b.Max[0] != 10 || b.Max[1] != 0 {
		t.Fatalf("unexpected bound: %+v", b)
	}
}
