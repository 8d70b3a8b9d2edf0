package importer

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"geoedit/internal/geom"
	"geoedit/internal/shapefile"
)

// packGroup builds the in-memory archive for one complete bundle group so
// the archive decoder can handle dropped bundles and real archives alike.
func packGroup(parts map[string]File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	exts := make([]string, 0, len(parts))
	for ext := range parts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		f := parts[ext]
		w, err := zw.Create(filepath.Base(f.Name))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeArchive inflates a compressed archive and decodes every
// sub-collection it contains: shapefile bundles by base-name pairing, plus
// any single-file interchange documents. Each sub-collection becomes its
// own candidate named from the internal file name with the geometry suffix
// stripped.
func (d *Decoder) decodeArchive(name string, data []byte) ([]Candidate, []string) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, []string{fmt.Sprintf("%s: not a readable archive", name)}
	}

	entries := map[string][]byte{}
	var order []string
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, []string{fmt.Sprintf("%s: %v", name, err)}
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, []string{fmt.Sprintf("%s: %v", name, err)}
		}
		entries[zf.Name] = b
		order = append(order, zf.Name)
	}
	sort.Strings(order)

	var cands []Candidate
	var problems []string
	consumed := map[string]bool{}

	// shapefile bundles inside the archive, paired case-insensitively
	for _, entry := range order {
		if strings.ToLower(filepath.Ext(entry)) != extGeometry {
			continue
		}
		base := bundleBase(entry)
		dbfName := ""
		for _, other := range order {
			if strings.ToLower(filepath.Ext(other)) == extAttribute && bundleBase(other) == base {
				dbfName = other
				break
			}
		}
		consumed[entry] = true
		if dbfName == "" {
			problems = append(problems, fmt.Sprintf("%s: missing files: %s%s", base, base, extAttribute))
			continue
		}
		consumed[dbfName] = true
		coll, err := shapefile.Read(entries[entry], entries[dbfName])
		if err != nil {
			d.log.Warn().Err(err).Str("entry", entry).Str("archive", name).Msg("import: bundle skipped")
			problems = append(problems, fmt.Sprintf("%s: %v", entry, err))
			continue
		}
		fs := make([]geom.Feature, 0, len(coll.Records))
		for _, rec := range coll.Records {
			fs = append(fs, geom.Feature{
				ID:       uuid.NewString(),
				Geometry: rec.Geometry,
				Props:    rec.Attrs,
			})
		}
		if len(fs) == 0 {
			problems = append(problems, fmt.Sprintf("%s: %v", entry, errNoGeometries))
			continue
		}
		cands = append(cands, d.candidates(base, name, fs)...)
	}

	for _, entry := range order {
		if consumed[entry] {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry))
		if bundleExts[ext] {
			continue // index/projection companions carry no collection
		}
		if Sniff(entry) == FormatUnknown {
			continue
		}
		cs, err := d.decodeSingle(File{Name: entry, Data: entries[entry]})
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", entry, err))
			continue
		}
		for i := range cs {
			cs[i].Source = name
		}
		cands = append(cands, cs...)
	}
	return cands, problems
}
