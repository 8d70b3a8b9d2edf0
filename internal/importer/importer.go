// Package importer turns arbitrary dropped/selected files into Import
// Candidates: transient decoded layers awaiting user confirmation. Per-file
// failures never escape the pipeline; they are collected as messages and the
// offending file is skipped.
package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"geoedit/internal/geom"
	"geoedit/internal/session"
)

// Format is the closed set of input classifications. Sniffing is by
// extension only and independent of any decoder, so alternate decoders can
// be substituted per format.
type Format int

const (
	FormatUnknown Format = iota
	FormatGeoJSON
	FormatWKT
	FormatKML
	FormatCSV
	FormatArchive
	FormatBundlePart // one component of a multi-file vector bundle
)

// Bundle component extensions. A group is complete only with both primaries.
const (
	extGeometry  = ".shp"
	extAttribute = ".dbf"
)

var bundleExts = map[string]bool{
	extGeometry:  true,
	extAttribute: true,
	".shx":       true,
	".prj":       true,
	".cpg":       true,
}

// Sniff classifies a file name into a Format.
func Sniff(name string) Format {
	switch ext := strings.ToLower(filepath.Ext(name)); {
	case ext == ".geojson" || ext == ".json":
		return FormatGeoJSON
	case ext == ".wkt":
		return FormatWKT
	case ext == ".kml":
		return FormatKML
	case ext == ".csv":
		return FormatCSV
	case ext == ".zip":
		return FormatArchive
	case bundleExts[ext]:
		return FormatBundlePart
	}
	return FormatUnknown
}

// File is one input to the pipeline.
type File struct {
	Name string
	Data []byte
}

// Candidate is a transient decoded layer awaiting selection. Candidates are
// never persisted; they are promoted into a Layer or discarded with the
// dialog.
type Candidate struct {
	ID           string
	Name         string
	Source       string
	Family       geom.Family
	GeometryType string // geometry type of the first feature, or "Unknown"
	Count        int
	Features     []geom.Feature
	Selected     bool
}

// Result carries the decoded candidates plus one human-readable message per
// skipped file or rejected group.
type Result struct {
	Candidates []Candidate
	Problems   []string
}

// Decoder runs import batches. The sequence feeds the "Layer N" name
// fallback and is scoped to the editing session; a cancelled batch may still
// be draining while its replacement starts, so the counter is guarded.
type Decoder struct {
	mu  sync.Mutex
	seq int
	log zerolog.Logger
}

func NewDecoder(log zerolog.Logger) *Decoder {
	return &Decoder{log: log}
}

// Decode classifies, groups and decodes a batch of files. Independent file
// groups are decoded sequentially to keep candidate ordering deterministic.
// A cancelled context aborts the batch and returns nothing.
func (d *Decoder) Decode(ctx context.Context, files []File) Result {
	var res Result

	type group struct {
		base  string
		parts map[string]File // by extension
	}
	groups := map[string]*group{}
	var groupOrder []string
	var singles []File

	for _, f := range files {
		switch Sniff(f.Name) {
		case FormatBundlePart:
			base := bundleBase(f.Name)
			g, ok := groups[base]
			if !ok {
				g = &group{base: base, parts: map[string]File{}}
				groups[base] = g
				groupOrder = append(groupOrder, base)
			}
			g.parts[strings.ToLower(filepath.Ext(f.Name))] = f
		case FormatUnknown:
			res.Problems = append(res.Problems, fmt.Sprintf("%s: unsupported file type", f.Name))
		default:
			singles = append(singles, f)
		}
	}
	sort.Strings(groupOrder)

	for _, base := range groupOrder {
		if ctx.Err() != nil {
			return Result{}
		}
		g := groups[base]
		var missing []string
		for _, ext := range []string{extGeometry, extAttribute} {
			if _, ok := g.parts[ext]; !ok {
				missing = append(missing, base+ext)
			}
		}
		if len(missing) > 0 {
			res.Problems = append(res.Problems,
				fmt.Sprintf("%s: missing files: %s", base, strings.Join(missing, ", ")))
			continue
		}
		// virtually re-pack the complete group and run it through the
		// archive decoder so bundles and archives share one code path
		packed, err := packGroup(g.parts)
		if err != nil {
			res.Problems = append(res.Problems, fmt.Sprintf("%s: %v", base, err))
			continue
		}
		cands, problems := d.decodeArchive(base+".zip", packed)
		res.Candidates = append(res.Candidates, cands...)
		res.Problems = append(res.Problems, problems...)
	}

	for _, f := range singles {
		if ctx.Err() != nil {
			return Result{}
		}
		switch Sniff(f.Name) {
		case FormatArchive:
			cands, problems := d.decodeArchive(f.Name, f.Data)
			res.Candidates = append(res.Candidates, cands...)
			res.Problems = append(res.Problems, problems...)
		default:
			cs, err := d.decodeSingle(f)
			if err != nil {
				d.log.Warn().Err(err).Str("file", f.Name).Msg("import: file skipped")
				res.Problems = append(res.Problems, fmt.Sprintf("%s: %v", f.Name, err))
				continue
			}
			res.Candidates = append(res.Candidates, cs...)
		}
	}

	if ctx.Err() != nil {
		return Result{}
	}
	d.log.Info().
		Int("candidates", len(res.Candidates)).
		Int("problems", len(res.Problems)).
		Msg("import: batch decoded")
	return res
}

// bundleBase is the case- and path-insensitive grouping key.
func bundleBase(name string) string {
	base := strings.ToLower(filepath.Base(name))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// candidates groups one decoded collection into a candidate per geometry
// family, so mixed documents promote into homogeneous layers instead of
// failing against a single layer's family. Features outside the four
// families are dropped.
func (d *Decoder) candidates(name, source string, fs []geom.Feature) []Candidate {
	byFam := map[geom.Family][]geom.Feature{}
	var order []geom.Family
	for _, f := range fs {
		fam := geom.FamilyOf(f.Geometry)
		if fam == geom.FamilyUnknown {
			continue
		}
		if _, ok := byFam[fam]; !ok {
			order = append(order, fam)
		}
		byFam[fam] = append(byFam[fam], f)
	}
	var out []Candidate
	for _, fam := range order {
		n := name
		if len(order) > 1 && n != "" {
			n = fmt.Sprintf("%s (%s)", name, fam)
		}
		out = append(out, d.candidate(n, source, byFam[fam]))
	}
	return out
}

// candidate builds one Candidate, deriving family and display type from the
// first feature and falling back to a generated layer name.
func (d *Decoder) candidate(name, source string, fs []geom.Feature) Candidate {
	if name == "" {
		d.mu.Lock()
		d.seq++
		name = fmt.Sprintf("Layer %d", d.seq)
		d.mu.Unlock()
	}
	c := Candidate{
		ID:           uuid.NewString(),
		Name:         name,
		Source:       source,
		GeometryType: "Unknown",
		Count:        len(fs),
		Features:     fs,
		Selected:     true,
	}
	if len(fs) > 0 && fs[0].Geometry != nil {
		c.GeometryType = fs[0].Geometry.GeoJSONType()
		c.Family = geom.FamilyOf(fs[0].Geometry)
	}
	return c
}

// Promote creates one new layer per selected candidate and attaches its
// features. Returns the created layers so the caller can fit the view.
func Promote(st *session.Store, cands []Candidate) ([]geom.Layer, error) {
	var out []geom.Layer
	for _, c := range cands {
		if !c.Selected {
			continue
		}
		if c.Family == geom.FamilyUnknown || len(c.Features) == 0 {
			return out, fmt.Errorf("%s: no promotable geometry", c.Name)
		}
		l, err := st.ImportLayer(c.Name, c.Family, c.Features)
		if err != nil {
			return out, fmt.Errorf("%s: %w", c.Name, err)
		}
		out = append(out, l)
	}
	return out, nil
}
