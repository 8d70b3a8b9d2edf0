// Package exporter re-serializes one layer's feature collection into the
// boundary formats: a GeoJSON interchange document or a zipped shapefile
// bundle with DBF-sanitized attributes.
package exporter

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geoedit/internal/geom"
	"geoedit/internal/shapefile"
)

// ErrNoValidGeometry is returned when filtering leaves nothing to export.
var ErrNoValidGeometry = errors.New("no valid geometry to export")

// wgs84WKT is the projection reference written as the bundle's .prj file.
const wgs84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`

const maxAttrLen = 255

// GeoJSON serializes the layer's collection verbatim as a FeatureCollection.
func GeoJSON(layer geom.Layer, fs []geom.Feature) ([]byte, error) {
	if len(fs) == 0 {
		return nil, ErrNoValidGeometry
	}
	fc := geojson.NewFeatureCollection()
	for _, f := range fs {
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.ID
		gf.Properties = geojson.Properties(f.Props)
		fc.Append(gf)
	}
	return json.Marshal(fc)
}

// Bundle sanitizes the layer's features, drops geometries the bundle format
// cannot carry and packs the three companion files into one archive named
// after the sanitized layer name.
func Bundle(layer geom.Layer, fs []geom.Feature) (string, []byte, error) {
	var (
		coll    shapefile.Collection
		dropped int
	)
	// one shapefile holds one record type; lone points are widened to
	// MultiPoint when the layer mixes both variants
	widen := false
	for _, f := range fs {
		if _, ok := f.Geometry.(orb.MultiPoint); ok {
			widen = true
		}
	}
	fieldSeen := map[string]bool{}
	for _, f := range fs {
		g := f.Geometry
		if p, ok := g.(orb.Point); ok && widen {
			g = orb.MultiPoint{p}
		}
		t, err := shapefile.TypeOf(g)
		if err != nil {
			dropped++
			continue
		}
		if len(coll.Records) == 0 {
			coll.Type = t
		} else if t != coll.Type {
			dropped++
			continue
		}
		attrs := sanitizeProps(f.Props)
		for k := range attrs {
			if !fieldSeen[k] {
				fieldSeen[k] = true
				coll.Fields = append(coll.Fields, k)
			}
		}
		coll.Records = append(coll.Records, shapefile.Record{Geometry: g, Attrs: attrs})
	}
	if len(coll.Records) == 0 {
		if dropped > 0 {
			return "", nil, fmt.Errorf("%w: %d unsupported feature(s) dropped", ErrNoValidGeometry, dropped)
		}
		return "", nil, ErrNoValidGeometry
	}

	shp, shx, dbf, err := shapefile.Write(&coll)
	if err != nil {
		return "", nil, err
	}

	name := SanitizeName(layer.Name)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		suffix string
		data   []byte
	}{
		{".shp", shp},
		{".shx", shx},
		{".dbf", dbf},
		{".prj", []byte(wgs84WKT)},
	}
	for _, p := range parts {
		w, err := zw.Create(name + p.suffix)
		if err != nil {
			return "", nil, err
		}
		if _, err := w.Write(p.data); err != nil {
			return "", nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return "", nil, err
	}
	return name + ".zip", buf.Bytes(), nil
}

// sanitizeProps applies the DBF attribute constraints: keys truncated to 10
// characters, lower-cased and stripped of anything outside [a-z0-9_]; nil
// values become empty strings; non-primitive values are JSON-stringified and
// capped at 255 characters. The reserved layer key is dropped.
func sanitizeProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if k == geom.LayerKey {
			continue
		}
		key := SanitizeKey(k)
		if key == "" {
			continue
		}
		out[key] = sanitizeValue(v)
	}
	return out
}

// SanitizeKey normalizes one attribute key to the DBF field constraints.
func SanitizeKey(k string) string {
	var b strings.Builder
	for _, ch := range strings.ToLower(k) {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '_' {
			b.WriteRune(ch)
		}
	}
	s := b.String()
	if len(s) > 10 {
		s = s[:10]
	}
	return s
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if len(t) > maxAttrLen {
			return t[:maxAttrLen]
		}
		return t
	case float64, float32, int, int32, int64, bool:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		s := string(b)
		if len(s) > maxAttrLen {
			s = s[:maxAttrLen]
		}
		return s
	}
}

// SanitizeName reduces a layer name to a safe file name.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '-' || ch == '_' || ch == '.':
			b.WriteRune(ch)
		case ch == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "layer"
	}
	return b.String()
}
