package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"geoedit/internal/geom"
	"geoedit/internal/session"
	"geoedit/internal/shapefile"
)

func newTestDecoder() *Decoder {
	return NewDecoder(zerolog.Nop())
}

func testBundle(t *testing.T) (shp, dbf []byte) {
	t.Helper()
	c := &shapefile.Collection{
		Type:   shapefile.PointShape,
		Fields: []string{"name"},
		Records: []shapefile.Record{
			{Geometry: orb.Point{1, 2}, Attrs: map[string]any{"name": "a"}},
			{Geometry: orb.Point{3, 4}, Attrs: map[string]any{"name": "b"}},
		},
	}
	shp, _, dbf, err := shapefile.Write(c)
	if err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return shp, dbf
}

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		want Format
	}{
		{"cities.geojson", FormatGeoJSON},
		{"cities.JSON", FormatGeoJSON},
		{"shapes.wkt", FormatWKT},
		{"tracks.kml", FormatKML},
		{"points.csv", FormatCSV},
		{"batch.zip", FormatArchive},
		{"roads.shp", FormatBundlePart},
		{"roads.DBF", FormatBundlePart},
		{"roads.prj", FormatBundlePart},
		{"readme.txt", FormatUnknown},
		{"noext", FormatUnknown},
	}
	for _, tc := range cases {
		if got := Sniff(tc.name); got != tc.want {
			t.Fatalf("Sniff(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDecodeGeoJSONVariants(t *testing.T) {
	fc := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"name":"a"}}]}`)
	fs, err := DecodeGeoJSON(fc)
	if err != nil || len(fs) != 1 {
		t.Fatalf("feature collection: %v %d", err, len(fs))
	}
	if fs[0].Props["name"] != "a" {
		t.Fatalf("props: %v", fs[0].Props)
	}

	single := []byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}`)
	if fs, err = DecodeGeoJSON(single); err != nil || len(fs) != 1 {
		t.Fatalf("single feature: %v %d", err, len(fs))
	}

	bare := []byte(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`)
	fs, err = DecodeGeoJSON(bare)
	if err != nil || len(fs) != 1 {
		t.Fatalf("bare geometry: %v %d", err, len(fs))
	}
	if _, ok := fs[0].Geometry.(orb.LineString); !ok {
		t.Fatalf("geometry: %T", fs[0].Geometry)
	}

	if _, err := DecodeGeoJSON([]byte(`{"foo":1}`)); err == nil {
		t.Fatal("missing type must error")
	}
}

func TestDecodeSingleFiles(t *testing.T) {
	d := newTestDecoder()
	files := []File{
		{Name: "shapes.wkt", Data: []byte("POINT(1 2)\nPOINT(3 4)\n")},
		{Name: "pts.csv", Data: []byte("name,lat,lon\na,2,1\nb,4,3\n")},
	}
	res := d.Decode(context.Background(), files)
	if len(res.Problems) != 0 {
		t.Fatalf("problems: %v", res.Problems)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(res.Candidates))
	}
	for _, c := range res.Candidates {
		if c.Count != 2 || c.Family != geom.FamilyPoint || !c.Selected {
			t.Fatalf("candidate: %+v", c)
		}
	}
	if res.Candidates[0].Name != "shapes" {
		t.Fatalf("name from file base: %q", res.Candidates[0].Name)
	}
}

func TestDecodeRejectsIncompleteBundle(t *testing.T) {
	d := newTestDecoder()
	shp, dbf := testBundle(t)
	files := []File{
		{Name: "lonely.shp", Data: shp},
		{Name: "roads.shp", Data: shp},
		{Name: "roads.dbf", Data: dbf},
	}
	res := d.Decode(context.Background(), files)
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1 (complete group only)", len(res.Candidates))
	}
	if res.Candidates[0].Name != "roads" || res.Candidates[0].Count != 2 {
		t.Fatalf("candidate: %+v", res.Candidates[0])
	}
	found := false
	for _, p := range res.Problems {
		if strings.Contains(p, "lonely") && strings.Contains(p, "missing files") && strings.Contains(p, "lonely.dbf") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a missing-files problem for lonely, got %v", res.Problems)
	}
}

func TestBundleGroupingIsCaseInsensitive(t *testing.T) {
	d := newTestDecoder()
	shp, dbf := testBundle(t)
	files := []File{
		{Name: "Roads.SHP", Data: shp},
		{Name: "roads.dbf", Data: dbf},
	}
	res := d.Decode(context.Background(), files)
	if len(res.Candidates) != 1 || len(res.Problems) != 0 {
		t.Fatalf("candidates=%d problems=%v", len(res.Candidates), res.Problems)
	}
}

func TestDecodeArchive(t *testing.T) {
	d := newTestDecoder()
	shp, dbf := testBundle(t)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range []struct {
		name string
		data []byte
	}{
		{"inner/roads.shp", shp},
		{"inner/roads.dbf", dbf},
		{"notes.wkt", []byte("POINT(9 9)")},
	} {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		w.Write(f.data)
	}
	zw.Close()

	res := d.Decode(context.Background(), []File{{Name: "batch.zip", Data: buf.Bytes()}})
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2 (bundle + wkt), problems %v", len(res.Candidates), res.Problems)
	}
}

func TestDecodeUnknownAndCorrupt(t *testing.T) {
	d := newTestDecoder()
	res := d.Decode(context.Background(), []File{
		{Name: "readme.txt", Data: []byte("hi")},
		{Name: "broken.geojson", Data: []byte("{nope")},
	})
	if len(res.Candidates) != 0 {
		t.Fatalf("candidates = %d, want 0", len(res.Candidates))
	}
	if len(res.Problems) != 2 {
		t.Fatalf("problems = %v, want 2 entries", res.Problems)
	}
}

func TestDecodeCancelled(t *testing.T) {
	d := newTestDecoder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := d.Decode(ctx, []File{{Name: "a.wkt", Data: []byte("POINT(1 2)")}})
	if len(res.Candidates) != 0 || len(res.Problems) != 0 {
		t.Fatalf("cancelled batch must return nothing: %+v", res)
	}
}

func TestDecodeSplitsMixedFamilies(t *testing.T) {
	d := newTestDecoder()
	doc := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}},
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[3,4]},"properties":{}}]}`)
	res := d.Decode(context.Background(), []File{{Name: "mixed.geojson", Data: doc}})
	if len(res.Problems) != 0 {
		t.Fatalf("problems: %v", res.Problems)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %d, want one per family", len(res.Candidates))
	}
	pts, lines := res.Candidates[0], res.Candidates[1]
	if pts.Family != geom.FamilyPoint || pts.Count != 2 {
		t.Fatalf("point candidate: %+v", pts)
	}
	if lines.Family != geom.FamilyLine || lines.Count != 1 {
		t.Fatalf("line candidate: %+v", lines)
	}
	if pts.Name == lines.Name {
		t.Fatalf("split candidates share name %q", pts.Name)
	}

	st := session.New()
	layers, err := Promote(st, res.Candidates)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if len(layers) != 2 || len(st.Layers()) != 2 {
		t.Fatalf("layers: %+v", layers)
	}
	if got := len(st.Features()); got != 3 {
		t.Fatalf("features = %d, want 3", got)
	}
}

func TestDecodeConcurrentBatches(t *testing.T) {
	d := newTestDecoder()
	results := make([]Result, 4)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// an extensionless base forces the generated "Layer N" name
			results[i] = d.Decode(context.Background(),
				[]File{{Name: ".wkt", Data: []byte("POINT(1 2)")}})
		}(i)
	}
	wg.Wait()
	seen := map[string]bool{}
	for _, res := range results {
		if len(res.Candidates) != 1 {
			t.Fatalf("candidates = %d, want 1", len(res.Candidates))
		}
		name := res.Candidates[0].Name
		if seen[name] {
			t.Fatalf("duplicate generated name %q", name)
		}
		seen[name] = true
	}
}

func TestPromote(t *testing.T) {
	d := newTestDecoder()
	res := d.Decode(context.Background(), []File{
		{Name: "a.wkt", Data: []byte("POINT(1 2)")},
		{Name: "b.wkt", Data: []byte("LINESTRING(0 0,1 1)")},
	})
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %d", len(res.Candidates))
	}
	res.Candidates[1].Selected = false

	st := session.New()
	layers, err := Promote(st, res.Candidates)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if len(layers) != 1 || layers[0].Name != "a" || layers[0].Count != 1 {
		t.Fatalf("layers: %+v", layers)
	}
	if len(st.Layers()) != 1 {
		t.Fatalf("store layers = %d, want 1", len(st.Layers()))
	}
	for _, f := range st.FeaturesInLayer(layers[0].ID) {
		if f.LayerID() != layers[0].ID {
			t.Fatal("promoted feature missing layer tag")
		}
	}
}
