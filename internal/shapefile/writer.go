package shapefile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

const maxFieldLen = 255

// Write encodes a Collection into the three bundle components. Every record
// geometry must map onto the collection's declared shape type.
func Write(c *Collection) (shp, shx, dbf []byte, err error) {
	if c == nil || len(c.Records) == 0 {
		return nil, nil, nil, fmt.Errorf("shapefile: nothing to write")
	}
	var contents [][]byte
	var bound orb.Bound
	for i, rec := range c.Records {
		t, err := TypeOf(rec.Geometry)
		if err != nil {
			return nil, nil, nil, err
		}
		if t != c.Type {
			return nil, nil, nil, fmt.Errorf("%w: %s record in %s file", ErrUnsupportedShape, t, c.Type)
		}
		content := encodeShape(rec.Geometry)
		contents = append(contents, content)
		if i == 0 {
			bound = rec.Geometry.Bound()
		} else {
			bound = bound.Union(rec.Geometry.Bound())
		}
	}

	shp = encodeSHP(c.Type, bound, contents)
	shx = encodeSHX(c.Type, bound, contents)
	dbf, err = encodeDBF(c.Fields, c.Records)
	if err != nil {
		return nil, nil, nil, err
	}
	return shp, shx, dbf, nil
}

func encodeSHP(t ShapeType, bound orb.Bound, contents [][]byte) []byte {
	total := headerSize
	for _, c := range contents {
		total += 8 + len(c)
	}
	var buf bytes.Buffer
	buf.Grow(total)
	writeHeader(&buf, t, bound, total)
	for i, c := range contents {
		writeBE32(&buf, int32(i+1))
		writeBE32(&buf, int32(len(c)/2))
		buf.Write(c)
	}
	return buf.Bytes()
}

func encodeSHX(t ShapeType, bound orb.Bound, contents [][]byte) []byte {
	total := headerSize + 8*len(contents)
	var buf bytes.Buffer
	buf.Grow(total)
	writeHeader(&buf, t, bound, total)
	off := headerSize
	for _, c := range contents {
		writeBE32(&buf, int32(off/2))
		writeBE32(&buf, int32(len(c)/2))
		off += 8 + len(c)
	}
	return buf.Bytes()
}

// writeHeader emits the 100-byte file header shared by .shp and .shx.
func writeHeader(buf *bytes.Buffer, t ShapeType, bound orb.Bound, totalBytes int) {
	writeBE32(buf, fileCode)
	for i := 0; i < 5; i++ {
		writeBE32(buf, 0)
	}
	writeBE32(buf, int32(totalBytes/2))
	writeLE32(buf, version)
	writeLE32(buf, int32(t))
	writeF64(buf, bound.Min[0])
	writeF64(buf, bound.Min[1])
	writeF64(buf, bound.Max[0])
	writeF64(buf, bound.Max[1])
	for i := 0; i < 4; i++ { // z and m ranges, unused
		writeF64(buf, 0)
	}
}

func encodeShape(g orb.Geometry) []byte {
	var buf bytes.Buffer
	switch v := g.(type) {
	case orb.Point:
		writeLE32(&buf, int32(PointShape))
		writeF64(&buf, v[0])
		writeF64(&buf, v[1])
	case orb.MultiPoint:
		writeLE32(&buf, int32(MultiPointShape))
		writeBound(&buf, v.Bound())
		writeLE32(&buf, int32(len(v)))
		for _, p := range v {
			writeF64(&buf, p[0])
			writeF64(&buf, p[1])
		}
	case orb.LineString:
		writeParts(&buf, PolyLineShape, v.Bound(), [][]orb.Point{v})
	case orb.MultiLineString:
		parts := make([][]orb.Point, 0, len(v))
		for _, ls := range v {
			parts = append(parts, ls)
		}
		writeParts(&buf, PolyLineShape, v.Bound(), parts)
	case orb.Polygon:
		writeParts(&buf, PolygonShape, v.Bound(), polygonRings(v))
	case orb.MultiPolygon:
		var parts [][]orb.Point
		for _, poly := range v {
			parts = append(parts, polygonRings(poly)...)
		}
		writeParts(&buf, PolygonShape, v.Bound(), parts)
	}
	return buf.Bytes()
}

// polygonRings enforces the format's winding convention: outer ring
// clockwise, holes counterclockwise.
func polygonRings(p orb.Polygon) [][]orb.Point {
	out := make([][]orb.Point, 0, len(p))
	for i, r := range p {
		cw := isClockwise(r)
		if (i == 0 && !cw) || (i > 0 && cw) {
			r = reversed(r)
		}
		out = append(out, r)
	}
	return out
}

func writeParts(buf *bytes.Buffer, t ShapeType, bound orb.Bound, parts [][]orb.Point) {
	writeLE32(buf, int32(t))
	writeBound(buf, bound)
	writeLE32(buf, int32(len(parts)))
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	writeLE32(buf, int32(n))
	off := 0
	for _, p := range parts {
		writeLE32(buf, int32(off))
		off += len(p)
	}
	for _, p := range parts {
		for _, pt := range p {
			writeF64(buf, pt[0])
			writeF64(buf, pt[1])
		}
	}
}

func encodeDBF(fields []string, records []Record) ([]byte, error) {
	// all exported columns are character fields; widths follow the data
	widths := make([]int, len(fields))
	for i, name := range fields {
		w := 1
		for _, rec := range records {
			if v, ok := rec.Attrs[name]; ok {
				if l := len(attrString(v)); l > w {
					w = l
				}
			}
		}
		if w > maxFieldLen {
			w = maxFieldLen
		}
		widths[i] = w
	}

	recSize := 1
	for _, w := range widths {
		recSize += w
	}
	hdrSize := 32 + 32*len(fields) + 1

	var buf bytes.Buffer
	buf.Grow(hdrSize + recSize*len(records) + 1)
	now := time.Now()
	buf.WriteByte(0x03)
	buf.WriteByte(byte(now.Year() - 1900))
	buf.WriteByte(byte(now.Month()))
	buf.WriteByte(byte(now.Day()))
	writeLE32(&buf, int32(len(records)))
	binary.Write(&buf, binary.LittleEndian, uint16(hdrSize))
	binary.Write(&buf, binary.LittleEndian, uint16(recSize))
	buf.Write(make([]byte, 20))

	for i, name := range fields {
		desc := make([]byte, 32)
		copy(desc[0:10], name) // 11th byte stays the null terminator
		desc[11] = 'C'
		desc[16] = byte(widths[i])
		buf.Write(desc)
	}
	buf.WriteByte(0x0d)

	for _, rec := range records {
		buf.WriteByte(0x20)
		for i, name := range fields {
			s := ""
			if v, ok := rec.Attrs[name]; ok {
				s = attrString(v)
			}
			if len(s) > widths[i] {
				s = s[:widths[i]]
			}
			buf.WriteString(s)
			for pad := len(s); pad < widths[i]; pad++ {
				buf.WriteByte(' ')
			}
		}
	}
	buf.WriteByte(0x1a)
	return buf.Bytes(), nil
}

func attrString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}

func writeBound(buf *bytes.Buffer, b orb.Bound) {
	writeF64(buf, b.Min[0])
	writeF64(buf, b.Min[1])
	writeF64(buf, b.Max[0])
	writeF64(buf, b.Max[1])
}

func writeBE32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeLE32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeF64(buf *bytes.Buffer, v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	buf.Write(b[:])
}
