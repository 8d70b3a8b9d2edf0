// Package catalog holds the editor's external collaborators: the spatial
// persistence boundary, the file transport and the catalog read path. The
// core never assumes a call succeeded before updating in-memory state.
package catalog

import (
	"context"
)

// Entity is one previously persisted spatial record.
type Entity struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	GeometryType string `json:"geometry_type"`
	GeometryURL  string `json:"geometry_url"`
}

// FileRef is the stored-file reference returned by the upload primitive.
type FileRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Persistence updates or inserts spatial records from the text geometry form.
type Persistence interface {
	SaveGeometry(ctx context.Context, targetID, wkt, familyTag string) error
	CreateSpatialEntity(ctx context.Context, name, description, fileRefID, wkt, familyTag string) (string, error)
}

// Transport uploads a binary payload and returns its stored-file reference.
type Transport interface {
	Upload(ctx context.Context, name string, data []byte) (FileRef, error)
}

// Reader lists persisted spatial entities and fetches their geometry
// documents for the "import from storage" path.
type Reader interface {
	List(ctx context.Context) ([]Entity, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}
