package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client implements Persistence, Transport and Reader over the document
// library's HTTP API. Calls are single round-trips with no retry; failures
// surface to the caller, which leaves the in-memory model untouched.
type Client struct {
	base string
	hc   *http.Client
	log  zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
		log:  log,
	}
}

type saveGeometryRequest struct {
	Geometry     string `json:"geometry"`
	GeometryType string `json:"geometry_type"`
}

// SaveGeometry updates an existing record's geometry column.
func (c *Client) SaveGeometry(ctx context.Context, targetID, wkt, familyTag string) error {
	body := saveGeometryRequest{Geometry: wkt, GeometryType: familyTag}
	err := c.doJSON(ctx, http.MethodPut, "/api/spatial/"+targetID+"/geometry", body, nil)
	if err != nil {
		c.log.Error().Err(err).Str("target", targetID).Msg("catalog: save geometry failed")
		return err
	}
	c.log.Info().Str("target", targetID).Str("type", familyTag).Msg("catalog: geometry saved")
	return nil
}

type createEntityRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	FileID       string `json:"file_id,omitempty"`
	Geometry     string `json:"geometry"`
	GeometryType string `json:"geometry_type"`
}

type createEntityResponse struct {
	ID string `json:"id"`
}

// CreateSpatialEntity inserts a new record plus its geometry and returns the
// new record's id.
func (c *Client) CreateSpatialEntity(ctx context.Context, name, description, fileRefID, wkt, familyTag string) (string, error) {
	req := createEntityRequest{
		Name:         name,
		Description:  description,
		FileID:       fileRefID,
		Geometry:     wkt,
		GeometryType: familyTag,
	}
	var resp createEntityResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/spatial", req, &resp); err != nil {
		c.log.Error().Err(err).Str("name", name).Msg("catalog: create entity failed")
		return "", err
	}
	c.log.Info().Str("id", resp.ID).Str("name", name).Msg("catalog: entity created")
	return resp.ID, nil
}

// Upload stores a binary payload and returns its reference.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (FileRef, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return FileRef{}, err
	}
	if _, err := fw.Write(data); err != nil {
		return FileRef{}, err
	}
	if err := mw.Close(); err != nil {
		return FileRef{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/files", &buf)
	if err != nil {
		return FileRef{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var ref FileRef
	if err := c.do(req, &ref); err != nil {
		c.log.Error().Err(err).Str("file", name).Msg("catalog: upload failed")
		return FileRef{}, err
	}
	return ref, nil
}

// List returns the persisted spatial entities.
func (c *Client) List(ctx context.Context) ([]Entity, error) {
	var out []Entity
	if err := c.doJSON(ctx, http.MethodGet, "/api/spatial", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fetch retrieves a stored geometry document by its URL. Relative URLs are
// resolved against the client's base.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "/") {
		url = c.base + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("catalog: %s returned %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("catalog: %s %s returned %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
