package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/syncer"
)

var _ syncer.Remote = (*HTTPClient)(nil)

// StatusError is a non-2xx response from the REST remote.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, http.StatusText(e.Status), e.Body)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// HTTPClient talks to a REST remote under {baseURL}/rest.
type HTTPClient struct {
	baseURL string
	key     string
	client  *http.Client
	logger  *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithAPIKey sends key as a bearer token on every request.
func WithAPIKey(key string) HTTPOption {
	return func(c *HTTPClient) { c.key = key }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.client = hc }
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(c *HTTPClient) { c.logger = l }
}

// NewHTTPClient creates a client for the remote at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Insert creates rec. The remote answers an existing id with an upsert.
func (c *HTTPClient) Insert(ctx context.Context, table string, rec record.Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	return c.send(ctx, http.MethodPost, "/rest/"+table, rec)
}

// Upsert replaces the record with rec's id.
func (c *HTTPClient) Upsert(ctx context.Context, table string, rec record.Record) error {
	if err := checkTable(table); err != nil {
		return err
	}
	id := rec.ID()
	if id == "" {
		return fmt.Errorf("upsert %s: record has no id", table)
	}
	return c.send(ctx, http.MethodPut, "/rest/"+table+"/"+url.PathEscape(id), rec)
}

// Delete removes a record. Deleting a missing record succeeds.
func (c *HTTPClient) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	err := c.send(ctx, http.MethodDelete, "/rest/"+table+"/"+url.PathEscape(id), nil)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// FetchProducts returns the active products.
func (c *HTTPClient) FetchProducts(ctx context.Context) ([]record.Record, error) {
	return c.list(ctx, "/rest/products?active=true")
}

// FetchCategories returns every category ordered by sort_order.
func (c *HTTPClient) FetchCategories(ctx context.Context) ([]record.Record, error) {
	return c.list(ctx, "/rest/categories")
}

func (c *HTTPClient) send(ctx context.Context, method, path string, rec record.Record) error {
	var body io.Reader
	if rec != nil {
		payload, err := rec.Marshal()
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *HTTPClient) list(ctx context.Context, path string) ([]record.Record, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("GET %s: decode: %w", path, err)
	}
	recs := make([]record.Record, 0, len(raw))
	for i, item := range raw {
		rec, err := record.Parse(item)
		if err != nil {
			return nil, fmt.Errorf("GET %s: item %d: %w", path, i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// do performs the request and returns the response only for 2xx statuses.
func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("remote request failed", "method", method, "path", path, "status", resp.StatusCode)
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}
	return resp, nil
}

