package session

import (
	"errors"
	"reflect"
	"testing"

	"github.com/paulmach/orb"

	"geoedit/internal/geom"
)

func TestAddFeatureTagsLayerAndCounts(t *testing.T) {
	st := New()
	l := st.AddLayer("roads", geom.FamilyLine, false)

	f, err := st.AddFeature(l.ID, orb.LineString{{0, 0}, {1, 1}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.LayerID() != l.ID {
		t.Fatalf("feature not tagged with owning layer: %q", f.LayerID())
	}
	got, _ := st.Layer(l.ID)
	if got.Count != 1 {
		t.Fatalf("count = %d, want 1", got.Count)
	}
}

func TestAddFeatureRejectsFamilyMismatch(t *testing.T) {
	st := New()
	l := st.AddLayer("points", geom.FamilyPoint, false)
	if _, err := st.AddFeature(l.ID, orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, nil); !errors.Is(err, ErrFamilyMismatch) {
		t.Fatalf("got %v, want ErrFamilyMismatch", err)
	}
	if _, err := st.AddFeature(l.ID, orb.MultiPoint{{1, 2}}, nil); err != nil {
		t.Fatalf("multi variant must be accepted: %v", err)
	}
}

func TestDeleteFeatureDecrementsAndClearsSelection(t *testing.T) {
	st := New()
	l := st.AddLayer("p", geom.FamilyPoint, false)
	f, _ := st.AddFeature(l.ID, orb.Point{1, 2}, nil)
	st.Select(f.ID)

	if err := st.DeleteFeature(f.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := st.Layer(l.ID)
	if got.Count != 0 {
		t.Fatalf("count = %d, want 0", got.Count)
	}
	if st.Selected() != "" {
		t.Fatal("selection must clear with the deleted feature")
	}
	if err := st.DeleteFeature(f.ID); !errors.Is(err, ErrNoSuchFeature) {
		t.Fatalf("got %v, want ErrNoSuchFeature", err)
	}
}

func TestDeleteLayerRemovesFeaturesAndScope(t *testing.T) {
	st := New()
	keep := st.AddLayer("keep", geom.FamilyPoint, false)
	drop := st.AddLayer("drop", geom.FamilyPoint, false)
	st.AddFeature(keep.ID, orb.Point{0, 0}, nil)
	f, _ := st.AddFeature(drop.ID, orb.Point{1, 1}, nil)
	st.SetScope(drop.ID)
	st.Select(f.ID)

	if err := st.DeleteLayer(drop.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.Features()) != 1 {
		t.Fatalf("features = %d, want 1", len(st.Features()))
	}
	if st.ScopeLayer() != "" {
		t.Fatal("scope must reset when its layer is deleted")
	}
	if st.Selected() != "" {
		t.Fatal("selection must clear with the deleted layer")
	}
}

func TestToggleVisibleRoundTrips(t *testing.T) {
	st := New()
	l := st.AddLayer("v", geom.FamilyPoint, false)
	st.ToggleVisible(l.ID)
	got, _ := st.Layer(l.ID)
	if got.Visible {
		t.Fatal("expected hidden after toggle")
	}
	st.ToggleVisible(l.ID)
	got, _ = st.Layer(l.ID)
	if !got.Visible {
		t.Fatal("expected visible after second toggle")
	}
}

func TestStartEditingNewLayerReusesUnsaved(t *testing.T) {
	st := New()
	l1, err := st.StartEditing(NewLayerTarget, geom.FamilyLine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Mode() != geom.FamilyLine || st.Target() != l1.ID {
		t.Fatalf("mode=%s target=%q", st.Mode(), st.Target())
	}
	st.StopEditing()
	l2, err := st.StartEditing(NewLayerTarget, geom.FamilyLine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l2.ID != l1.ID {
		t.Fatal("unsaved layer of the family must be reused, not duplicated")
	}
	// a different family gets its own layer
	l3, _ := st.StartEditing(NewLayerTarget, geom.FamilyPolygon)
	if l3.ID == l1.ID {
		t.Fatal("different family must not reuse the line layer")
	}
}

func TestSetTargetRetargets(t *testing.T) {
	st := New()
	lines := st.AddLayer("lines", geom.FamilyLine, false)
	polys := st.AddLayer("polys", geom.FamilyPolygon, false)

	// outside an active mode only the target moves
	if err := st.SetTarget(lines.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Target() != lines.ID || st.Mode() != geom.FamilyUnknown {
		t.Fatalf("target=%q mode=%s", st.Target(), st.Mode())
	}

	// retargeting mid-draw adopts the new layer's family
	if _, err := st.StartEditing(lines.ID, geom.FamilyUnknown); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.SetTarget(polys.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Target() != polys.ID || st.Mode() != geom.FamilyPolygon {
		t.Fatalf("target=%q mode=%s", st.Target(), st.Mode())
	}
	f, err := st.CompleteShape(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.LayerID() != polys.ID {
		t.Fatal("shape must land in the retargeted layer")
	}

	if err := st.SetTarget("missing"); !errors.Is(err, ErrNoSuchLayer) {
		t.Fatalf("got %v, want ErrNoSuchLayer", err)
	}
}

func TestBoundIsPerLayer(t *testing.T) {
	st := New()
	a := st.AddLayer("a", geom.FamilyPoint, false)
	b := st.AddLayer("b", geom.FamilyPoint, false)
	st.AddFeature(a.ID, orb.Point{0, 0}, nil)
	st.AddFeature(a.ID, orb.Point{1, 1}, nil)
	st.AddFeature(b.ID, orb.Point{100, 50}, nil)

	ba, ok := st.Bound(a.ID)
	if !ok || ba.Max != (orb.Point{1, 1}) {
		t.Fatalf("layer bound: %v ok=%v", ba, ok)
	}
	bb, ok := st.Bound(b.ID)
	if !ok {
		t.Fatal("missing bound for second layer")
	}
	all, ok := st.Bound("")
	if !ok || all != ba.Union(bb) {
		t.Fatalf("session bound %v must equal union of layer bounds %v", all, ba.Union(bb))
	}
}

func TestImportLayerRejectsMismatchWithoutPartialState(t *testing.T) {
	st := New()
	fs := []geom.Feature{
		{Geometry: orb.Point{1, 2}},
		{Geometry: orb.LineString{{0, 0}, {1, 1}}},
	}
	if _, err := st.ImportLayer("mixed", geom.FamilyPoint, fs); !errors.Is(err, ErrFamilyMismatch) {
		t.Fatalf("got %v, want ErrFamilyMismatch", err)
	}
	if len(st.Layers()) != 0 || len(st.Features()) != 0 {
		t.Fatalf("rejected import must leave the store empty: layers=%d features=%d",
			len(st.Layers()), len(st.Features()))
	}
}

func TestCompleteShapeCommitsIntoTarget(t *testing.T) {
	st := New()
	l, _ := st.StartEditing(NewLayerTarget, geom.FamilyPolygon)
	f, err := st.CompleteShape(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.LayerID() != l.ID {
		t.Fatal("shape must land in the target layer")
	}
	got, _ := st.Layer(l.ID)
	if got.Count != 1 {
		t.Fatalf("count = %d, want 1", got.Count)
	}
	st.StopEditing()
	if _, err := st.CompleteShape(orb.Point{0, 0}); err == nil {
		t.Fatal("completing outside an active mode must fail")
	}
}

func TestSelectOnMapRescopesTable(t *testing.T) {
	st := New()
	a := st.AddLayer("a", geom.FamilyPoint, false)
	b := st.AddLayer("b", geom.FamilyPoint, false)
	st.AddFeature(a.ID, orb.Point{0, 0}, nil)
	fb, _ := st.AddFeature(b.ID, orb.Point{1, 1}, nil)

	st.SetScope(a.ID)
	st.SelectOnMap(fb.ID)
	if st.Selected() != fb.ID {
		t.Fatal("map pick must select the feature")
	}
	if st.ScopeLayer() != b.ID {
		t.Fatal("map pick must rescope the table to the feature's layer")
	}
}

func TestStagedEditCommitAndCancel(t *testing.T) {
	st := New()
	l := st.AddLayer("e", geom.FamilyPoint, false)
	f, _ := st.AddFeature(l.ID, orb.Point{0, 0}, map[string]any{"name": "old"})

	if _, err := st.StageEdit(f.ID, geom.LayerKey); !errors.Is(err, ErrReservedKey) {
		t.Fatalf("got %v, want ErrReservedKey", err)
	}

	e, err := st.StageEdit(f.ID, "name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Previous != "old" {
		t.Fatalf("previous = %v", e.Previous)
	}
	st.CancelEdit()
	got, _ := st.Feature(f.ID)
	if got.Props["name"] != "old" {
		t.Fatal("cancel must leave the feature untouched")
	}

	st.StageEdit(f.ID, "name")
	if err := st.CommitEdit("new"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = st.Feature(f.ID)
	if got.Props["name"] != "new" {
		t.Fatalf("commit failed: %v", got.Props["name"])
	}
	if err := st.CommitEdit("again"); err == nil {
		t.Fatal("commit without a staged edit must fail")
	}
}

func TestAddAndDeletePropertyHonorScope(t *testing.T) {
	st := New()
	a := st.AddLayer("a", geom.FamilyPoint, false)
	b := st.AddLayer("b", geom.FamilyPoint, false)
	fa, _ := st.AddFeature(a.ID, orb.Point{0, 0}, nil)
	fb, _ := st.AddFeature(b.ID, orb.Point{1, 1}, nil)

	st.SetScope(a.ID)
	if err := st.AddProperty("status"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := st.Feature(fa.ID)
	if v, ok := got.Props["status"]; !ok || v != "" {
		t.Fatalf("scoped feature missing default: %v", got.Props)
	}
	other, _ := st.Feature(fb.ID)
	if _, ok := other.Props["status"]; ok {
		t.Fatal("out-of-scope feature must not gain the property")
	}

	if err := st.AddProperty(geom.LayerKey); !errors.Is(err, ErrReservedKey) {
		t.Fatalf("got %v, want ErrReservedKey", err)
	}
	if err := st.DeleteProperty(geom.LayerKey); !errors.Is(err, ErrReservedKey) {
		t.Fatalf("got %v, want ErrReservedKey", err)
	}
	if err := st.DeleteProperty("name"); !errors.Is(err, ErrReservedKey) {
		t.Fatalf("name column: got %v, want ErrReservedKey", err)
	}
	if err := st.DeleteProperty("status"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = st.Feature(fa.ID)
	if _, ok := got.Props["status"]; ok {
		t.Fatal("property not removed")
	}
}

func TestColumnKeysFirstSeenOrder(t *testing.T) {
	st := New()
	l := st.AddLayer("c", geom.FamilyPoint, false)
	st.AddFeature(l.ID, orb.Point{0, 0}, map[string]any{"b": 1, "a": 2})
	st.AddFeature(l.ID, orb.Point{1, 1}, map[string]any{"z": 3, "a": 4})

	want := []string{"a", "b", "z"}
	if got := st.ColumnKeys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLayerWKTSynthesizesMulti(t *testing.T) {
	st := New()
	l := st.AddLayer("pts", geom.FamilyPoint, false)
	st.AddFeature(l.ID, orb.Point{1, 2}, nil)
	st.AddFeature(l.ID, orb.Point{3, 4}, nil)

	s, fam, err := st.LayerWKT(l.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "MULTIPOINT(1 2,3 4)" || fam != geom.FamilyPoint {
		t.Fatalf("got %q (%s)", s, fam)
	}
}

func TestImportLayer(t *testing.T) {
	st := New()
	fs := []geom.Feature{
		{Geometry: orb.Point{0, 0}, Props: map[string]any{"name": "a"}},
		{Geometry: orb.Point{1, 1}, Props: map[string]any{"name": "b"}},
	}
	l, err := st.ImportLayer("imported", geom.FamilyPoint, fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Count != 2 {
		t.Fatalf("count = %d, want 2", l.Count)
	}
	for _, f := range st.FeaturesInLayer(l.ID) {
		if f.LayerID() != l.ID {
			t.Fatal("imported feature missing layer tag")
		}
	}
}

func TestNextLayerNameSequence(t *testing.T) {
	st := New()
	if st.NextLayerName() != "Layer 1" || st.NextLayerName() != "Layer 2" {
		t.Fatal("fallback names must be sequential")
	}
}
