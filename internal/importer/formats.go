package importer

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"geoedit/internal/geom"
)

var errNoGeometries = errors.New("no geometries found")

// decodeSingle parses one single-file interchange document into candidates,
// one per geometry family the document contains.
func (d *Decoder) decodeSingle(f File) ([]Candidate, error) {
	base := strings.TrimSuffix(filepath.Base(f.Name), filepath.Ext(f.Name))
	var (
		fs  []geom.Feature
		err error
	)
	switch Sniff(f.Name) {
	case FormatGeoJSON:
		fs, err = DecodeGeoJSON(f.Data)
	case FormatWKT:
		fs, err = decodeWKT(f.Data)
	case FormatKML:
		fs, err = decodeKML(f.Data)
	case FormatCSV:
		fs, err = decodeCSV(f.Data)
	default:
		err = fmt.Errorf("unsupported file type")
	}
	if err != nil {
		return nil, err
	}
	cands := d.candidates(base, f.Name, fs)
	if len(cands) == 0 {
		return nil, errNoGeometries
	}
	return cands, nil
}

// DecodeGeoJSON parses a structured geometry document: a FeatureCollection,
// a single Feature or a bare geometry. Exposed for the catalog import path,
// which fetches persisted documents and decodes them like dropped files.
func DecodeGeoJSON(data []byte) ([]geom.Feature, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		var fs []geom.Feature
		for _, f := range fc.Features {
			if f == nil || f.Geometry == nil {
				continue
			}
			fs = append(fs, geom.Feature{
				ID:       uuid.NewString(),
				Geometry: f.Geometry,
				Props:    map[string]any(f.Properties),
			})
		}
		if len(fs) == 0 {
			return nil, errNoGeometries
		}
		return fs, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		if f.Geometry == nil {
			return nil, errNoGeometries
		}
		return []geom.Feature{{
			ID:       uuid.NewString(),
			Geometry: f.Geometry,
			Props:    map[string]any(f.Properties),
		}}, nil
	case "":
		return nil, errors.New("invalid geojson: missing type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		return []geom.Feature{{
			ID:       uuid.NewString(),
			Geometry: g.Geometry(),
			Props:    map[string]any{},
		}}, nil
	}
}

// decodeWKT parses one spatial-text geometry per non-empty line.
func decodeWKT(data []byte) ([]geom.Feature, error) {
	var fs []geom.Feature
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		g, err := geom.UnmarshalWKT(line)
		if err != nil {
			return nil, err
		}
		fs = append(fs, geom.Feature{ID: uuid.NewString(), Geometry: g, Props: map[string]any{}})
	}
	if len(fs) == 0 {
		return nil, errNoGeometries
	}
	return fs, nil
}

// decodeKML extracts Placemark points (Placemark > Point > coordinates).
// KML coordinates are "lon,lat[,alt]"; altitude is ignored.
func decodeKML(data []byte) ([]geom.Feature, error) {
	type kmlPoint struct {
		Coordinates string `xml:"coordinates"`
	}
	type kmlPlacemark struct {
		Name  string    `xml:"name"`
		Point *kmlPoint `xml:"Point"`
	}
	type kmlDoc struct {
		Placemarks []kmlPlacemark `xml:"Placemark"`
	}

	var doc kmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	var fs []geom.Feature
	for _, pm := range doc.Placemarks {
		if pm.Point == nil {
			continue
		}
		// coordinates may contain multiple tuples separated by spaces
		for _, tuple := range strings.Fields(pm.Point.Coordinates) {
			vals := strings.Split(tuple, ",")
			if len(vals) < 2 {
				continue
			}
			lon, err1 := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
			lat, err2 := strconv.ParseFloat(strings.TrimSpace(vals[1]), 64)
			if err1 != nil || err2 != nil {
				continue
			}
			props := map[string]any{}
			if pm.Name != "" {
				props["name"] = pm.Name
			}
			fs = append(fs, geom.Feature{
				ID:       uuid.NewString(),
				Geometry: orb.Point{lon, lat},
				Props:    props,
			})
		}
	}
	if len(fs) == 0 {
		return nil, errors.New("kml: no points found")
	}
	return fs, nil
}

// decodeCSV reads rows with latitude/longitude columns as point features;
// every other column lands in the property bag. Column detection:
// lat|latitude|y and lon|lng|long|longitude|x (case-insensitive).
func decodeCSV(data []byte) ([]geom.Feature, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.TrimLeadingSpace = true
	recs, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.New("empty csv")
	}
	header := recs[0]
	idxLat, idxLon := -1, -1
	for i, h := range header {
		switch strings.ToLower(h) {
		case "lat", "latitude", "y":
			if idxLat == -1 {
				idxLat = i
			}
		case "lon", "lng", "long", "longitude", "x":
			if idxLon == -1 {
				idxLon = i
			}
		}
	}
	if idxLat == -1 || idxLon == -1 {
		return nil, errors.New("csv: latitude/longitude columns not found")
	}
	var fs []geom.Feature
	for _, row := range recs[1:] {
		if idxLon >= len(row) || idxLat >= len(row) {
			continue
		}
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(row[idxLon]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(row[idxLat]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		props := map[string]any{}
		for i, h := range header {
			if i == idxLat || i == idxLon || i >= len(row) {
				continue
			}
			props[h] = row[i]
		}
		fs = append(fs, geom.Feature{
			ID:       uuid.NewString(),
			Geometry: orb.Point{lon, lat},
			Props:    props,
		})
	}
	if len(fs) == 0 {
		return nil, errors.New("csv: no valid points parsed")
	}
	return fs, nil
}
