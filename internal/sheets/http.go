package sheets

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
)

// HTTPGateway talks to a webhook-style REST facade over the spreadsheet
// backend:
//
//	GET  {base}/collections                  -> {"collections": [name]}
//	GET  {base}/collections/{name}/rows      -> {"rows": [{column: value}]}
//	POST {base}/collections/{name}/rows      <- {"values": [string]}
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (g *HTTPGateway) ListCollections(ctx context.Context) ([]string, error) {
	var decoded struct {
		Collections []string `json:"collections"`
	}
	if err := g.do(ctx, http.MethodGet, g.baseURL+"/collections", nil, &decoded); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return decoded.Collections, nil
}

func (g *HTTPGateway) ReadCollection(ctx context.Context, name string) ([]Row, error) {
	var decoded struct {
		Rows []Row `json:"rows"`
	}
	endpoint := g.baseURL + "/collections/" + url.PathEscape(name) + "/rows"
	if err := g.do(ctx, http.MethodGet, endpoint, nil, &decoded); err != nil {
		return nil, fmt.Errorf("read collection %q: %w", name, err)
	}
	return decoded.Rows, nil
}

func (g *HTTPGateway) AppendRow(ctx context.Context, name string, values []string) error {
	payload, err := json.Marshal(map[string]any{"values": values})
	if err != nil {
		return fmt.Errorf("append row to %q: marshal: %w", name, err)
	}
	endpoint := g.baseURL + "/collections/" + url.PathEscape(name) + "/rows"
	if err := g.do(ctx, http.MethodPost, endpoint, payload, nil); err != nil {
		return fmt.Errorf("append row to %q: %w", name, err)
	}
	return nil
}

func (g *HTTPGateway) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	res, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError preserves the backend's HTTP status so callers can classify
// the failure without parsing message text.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend status %d", e.Code)
	}
	return fmt.Sprintf("backend status %d: %s", e.Code, e.Body)
}
