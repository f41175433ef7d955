// Package remote is the client for the hosted document store that holds the
// authoritative case and task collections. The aggregation engine treats it as
// best-effort: every call is bounded by the configured timeout and callers are
// expected to degrade gracefully when it is unreachable.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fmorante/lexagenda-be/internal/models"
)

// Document collections used by the agenda engine.
const (
	CollectionEvents = "events"
	CollectionCases  = "cases"
	CollectionTasks  = "tasks"
)

// Client talks JSON to the document store.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a Client for the given base URL. The timeout applies to every
// request; the zero value falls back to 5s.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// QueryCases fetches every case document belonging to an organization.
func (c *Client) QueryCases(ctx context.Context, organizationID string) ([]models.CaseRecord, error) {
	var cases []models.CaseRecord
	path := fmt.Sprintf("/collections/%s?organizationId=%s", CollectionCases, url.QueryEscape(organizationID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &cases); err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	return cases, nil
}

// ListTasks fetches every task document belonging to an organization.
func (c *Client) ListTasks(ctx context.Context, organizationID string) ([]models.TaskRecord, error) {
	var tasks []models.TaskRecord
	path := fmt.Sprintf("/collections/%s?organizationId=%s", CollectionTasks, url.QueryEscape(organizationID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// CreateDocument inserts a document into a collection and returns the id the
// store assigned (or echoed back).
func (c *Client) CreateDocument(ctx context.Context, collection string, doc any) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/collections/"+collection, doc, &created); err != nil {
		return "", fmt.Errorf("create document in %s: %w", collection, err)
	}
	return created.ID, nil
}

// UpdateDocument patches the named fields of one document.
func (c *Client) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	path := fmt.Sprintf("/collections/%s/%s", collection, url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodPatch, path, fields, nil); err != nil {
		return fmt.Errorf("update document %s/%s: %w", collection, id, err)
	}
	return nil
}

// DeleteDocument removes one document.
func (c *Client) DeleteDocument(ctx context.Context, collection, id string) error {
	path := fmt.Sprintf("/collections/%s/%s", collection, url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// doJSON performs one JSON request against the store. Non-2xx responses and
// transport errors come back as plain errors; the caller decides whether they
// are fatal.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
