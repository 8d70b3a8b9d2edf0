package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSaveGeometry(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", zerolog.Nop())
	if err := c.SaveGeometry(context.Background(), "abc", "POINT(1 2)", "Point"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/spatial/abc/geometry" {
		t.Fatalf("path: %q", gotPath)
	}
	if !strings.Contains(gotBody, `"geometry":"POINT(1 2)"`) || !strings.Contains(gotBody, `"geometry_type":"Point"`) {
		t.Fatalf("body: %q", gotBody)
	}
}

func TestCreateSpatialEntity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/spatial" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["name"] != "cities" || req["file_id"] != "file-1" {
			t.Errorf("request: %v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "ent-9"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	id, err := c.CreateSpatialEntity(context.Background(), "cities", "desc", "file-1", "MULTIPOINT(1 2)", "Point")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "ent-9" {
		t.Fatalf("id: %q", id)
	}
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			f.Close()
			if hdr.Filename != "cities.geojson" {
				t.Errorf("filename: %q", hdr.Filename)
			}
		}
		json.NewEncoder(w).Encode(FileRef{ID: "file-1", URL: "/files/file-1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	ref, err := c.Upload(context.Background(), "cities.geojson", []byte(`{"type":"FeatureCollection"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ID != "file-1" || ref.URL != "/files/file-1" {
		t.Fatalf("ref: %+v", ref)
	}
}

func TestListAndFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/spatial":
			json.NewEncoder(w).Encode([]Entity{{ID: "e1", Name: "roads", GeometryType: "LineString", GeometryURL: "/files/e1"}})
		case "/files/e1":
			w.Write([]byte(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	entities, err := c.List(context.Background())
	if err != nil || len(entities) != 1 {
		t.Fatalf("list: %v %d", err, len(entities))
	}
	// relative document URLs resolve against the client base
	data, err := c.Fetch(context.Background(), entities[0].GeometryURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(string(data), "LineString") {
		t.Fatalf("data: %q", data)
	}
}

func TestErrorIncludesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "geometry column rejected", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	err := c.SaveGeometry(context.Background(), "abc", "POINT(1 2)", "Point")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "422") || !strings.Contains(err.Error(), "geometry column rejected") {
		t.Fatalf("error: %v", err)
	}
}
