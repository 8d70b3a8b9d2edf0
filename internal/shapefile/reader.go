package shapefile

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Read decodes a geometry file plus its attribute file into a Collection.
// Geometry record i is paired with attribute row i, per the format contract.
func Read(shpData, dbfData []byte) (*Collection, error) {
	geoms, shapeType, err := readSHP(shpData)
	if err != nil {
		return nil, err
	}
	fields, rows, err := readDBF(dbfData)
	if err != nil {
		return nil, err
	}

	c := &Collection{Type: shapeType, Fields: fields}
	for i, g := range geoms {
		rec := Record{Geometry: g, Attrs: map[string]any{}}
		if i < len(rows) {
			rec.Attrs = rows[i]
		}
		c.Records = append(c.Records, rec)
	}
	return c, nil
}

func readSHP(data []byte) ([]orb.Geometry, ShapeType, error) {
	if len(data) < headerSize {
		return nil, NullShape, ErrBadHeader
	}
	if binary.BigEndian.Uint32(data[0:4]) != fileCode {
		return nil, NullShape, ErrBadHeader
	}
	shapeType := ShapeType(int32(binary.LittleEndian.Uint32(data[32:36])))

	var geoms []orb.Geometry
	off := headerSize
	for off+8 <= len(data) {
		contentWords := int(binary.BigEndian.Uint32(data[off+4 : off+8]))
		contentLen := contentWords * 2
		off += 8
		if off+contentLen > len(data) || contentLen < 4 {
			return nil, NullShape, ErrBadRecord
		}
		g, err := decodeShape(data[off : off+contentLen])
		if err != nil {
			return nil, NullShape, err
		}
		off += contentLen
		if g == nil {
			continue // null shape placeholder
		}
		geoms = append(geoms, g)
	}
	return geoms, shapeType, nil
}

func decodeShape(content []byte) (orb.Geometry, error) {
	t := ShapeType(int32(binary.LittleEndian.Uint32(content[0:4])))
	body := content[4:]
	switch t {
	case NullShape:
		return nil, nil
	case PointShape:
		if len(body) < 16 {
			return nil, ErrBadRecord
		}
		return orb.Point{f64(body, 0), f64(body, 8)}, nil
	case MultiPointShape:
		// bbox (32) + numPoints (4) + points
		if len(body) < 36 {
			return nil, ErrBadRecord
		}
		n := int(int32(binary.LittleEndian.Uint32(body[32:36])))
		if len(body) < 36+n*16 {
			return nil, ErrBadRecord
		}
		mp := make(orb.MultiPoint, 0, n)
		for i := 0; i < n; i++ {
			mp = append(mp, orb.Point{f64(body, 36+i*16), f64(body, 36+i*16+8)})
		}
		return mp, nil
	case PolyLineShape, PolygonShape:
		parts, err := decodeParts(body)
		if err != nil {
			return nil, err
		}
		if t == PolyLineShape {
			if len(parts) == 1 {
				return orb.LineString(parts[0]), nil
			}
			mls := make(orb.MultiLineString, 0, len(parts))
			for _, p := range parts {
				mls = append(mls, orb.LineString(p))
			}
			return mls, nil
		}
		return assemblePolygons(parts), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedShape, t)
}

// decodeParts reads the bbox/numParts/numPoints/parts/points layout shared
// by PolyLine and Polygon records.
func decodeParts(body []byte) ([][]orb.Point, error) {
	if len(body) < 40 {
		return nil, ErrBadRecord
	}
	numParts := int(int32(binary.LittleEndian.Uint32(body[32:36])))
	numPoints := int(int32(binary.LittleEndian.Uint32(body[36:40])))
	need := 40 + numParts*4 + numPoints*16
	if numParts <= 0 || numPoints <= 0 || len(body) < need {
		return nil, ErrBadRecord
	}
	offsets := make([]int, numParts)
	for i := 0; i < numParts; i++ {
		offsets[i] = int(int32(binary.LittleEndian.Uint32(body[40+i*4 : 44+i*4])))
	}
	base := 40 + numParts*4
	pts := make([]orb.Point, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		pts = append(pts, orb.Point{f64(body, base+i*16), f64(body, base+i*16+8)})
	}
	parts := make([][]orb.Point, 0, numParts)
	for i, start := range offsets {
		end := numPoints
		if i+1 < numParts {
			end = offsets[i+1]
		}
		if start < 0 || end > numPoints || start >= end {
			return nil, ErrBadRecord
		}
		parts = append(parts, pts[start:end])
	}
	return parts, nil
}

// assemblePolygons groups rings into polygons by winding order: a clockwise
// ring opens a new polygon, counterclockwise rings are holes of the last one.
func assemblePolygons(parts [][]orb.Point) orb.Geometry {
	var polys orb.MultiPolygon
	for _, part := range parts {
		ring := orb.Ring(part)
		if isClockwise(ring) || len(polys) == 0 {
			polys = append(polys, orb.Polygon{ring})
			continue
		}
		polys[len(polys)-1] = append(polys[len(polys)-1], ring)
	}
	if len(polys) == 1 {
		return polys[0]
	}
	return polys
}

func f64(b []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off : off+8]))
}

type dbfField struct {
	name   string
	typ    byte
	length int
}

func readDBF(data []byte) ([]string, []map[string]any, error) {
	if len(data) < 33 {
		return nil, nil, fmt.Errorf("shapefile: dbf too short")
	}
	numRec := int(binary.LittleEndian.Uint32(data[4:8]))
	hdrSize := int(binary.LittleEndian.Uint16(data[8:10]))
	recSize := int(binary.LittleEndian.Uint16(data[10:12]))
	if hdrSize > len(data) || recSize <= 0 {
		return nil, nil, fmt.Errorf("shapefile: dbf header out of range")
	}

	var defs []dbfField
	for off := 32; off+32 <= hdrSize && data[off] != 0x0d; off += 32 {
		d := data[off : off+32]
		name := strings.TrimRight(string(d[0:11]), "\x00")
		defs = append(defs, dbfField{name: name, typ: d[11], length: int(d[16])})
	}

	fields := make([]string, 0, len(defs))
	for _, d := range defs {
		fields = append(fields, d.name)
	}

	rows := make([]map[string]any, 0, numRec)
	off := hdrSize
	for i := 0; i < numRec && off+recSize <= len(data); i++ {
		rec := data[off : off+recSize]
		off += recSize
		row := make(map[string]any, len(defs))
		pos := 1 // skip deletion flag
		for _, d := range defs {
			if pos+d.length > len(rec) {
				break
			}
			raw := strings.TrimSpace(strings.TrimRight(string(rec[pos:pos+d.length]), "\x00"))
			pos += d.length
			row[d.name] = dbfValue(d.typ, raw)
		}
		rows = append(rows, row)
	}
	return fields, rows, nil
}

func dbfValue(typ byte, raw string) any {
	switch typ {
	case 'N', 'F':
		if raw == "" {
			return nil
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		return raw
	case 'L':
		switch raw {
		case "Y", "y", "T", "t":
			return true
		case "N", "n", "F", "f":
			return false
		}
		return nil
	default:
		return raw
	}
}
