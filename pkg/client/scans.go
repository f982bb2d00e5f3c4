package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/turtacn/deckscan/pkg/types/scan"
)

// ScanOptions are the query parameters of a single scan.
type ScanOptions struct {
	ID       string
	Format   string
	Detailed bool
}

func (o ScanOptions) query() url.Values {
	q := url.Values{}
	if o.ID != "" {
		q.Set("id", o.ID)
	}
	if o.Format != "" {
		q.Set("format", o.Format)
	}
	if o.Detailed {
		q.Set("detailed", strconv.FormatBool(true))
	}
	return q
}

// Resolution is how the server classified one OCR fragment.
type Resolution struct {
	Box        scan.BoundingBox `json:"box,omitempty"`
	Text       string           `json:"text"`
	Normalized string           `json:"normalized"`
	Outcome    string           `json:"outcome"`
	Entity     string           `json:"entity,omitempty"`
	Keyword    string           `json:"keyword,omitempty"`
	Method     string           `json:"method"`
	Distance   int              `json:"distance"`
	Reason     string           `json:"reason"`
}

// Assignment is one quantity marker applied to a card.
type Assignment struct {
	Marker     string           `json:"marker"`
	Box        scan.BoundingBox `json:"box"`
	Heuristic  string           `json:"heuristic"`
	Multiplier int              `json:"multiplier"`
	CardIndex  int              `json:"card_index"`
	Card       string           `json:"card"`
}

// ScanResult is the outcome of one scan.
type ScanResult struct {
	ScanID      string       `json:"scan_id"`
	Deck        *scan.Deck   `json:"deck"`
	Cards       int          `json:"cards"`
	Resolutions []Resolution `json:"resolutions,omitempty"`
	Assignments []Assignment `json:"assignments,omitempty"`
	DurationMS  int64        `json:"duration_ms"`
	CompletedAt time.Time    `json:"completed_at"`
}

// BatchEntry is one document of a batch scan. Either Fragments or Payload is
// set; Payload is decoded with Format on the server.
type BatchEntry struct {
	ID        string          `json:"id,omitempty"`
	Format    string          `json:"format,omitempty"`
	Fragments []scan.Fragment `json:"fragments,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Detailed  bool            `json:"detailed,omitempty"`
}

// BatchItem is the outcome of one batch entry, in request order.
type BatchItem struct {
	Index  int         `json:"index"`
	Result *ScanResult `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
	Code   string      `json:"code,omitempty"`
}

// EngineStats describes the server's recognition engine.
type EngineStats struct {
	Ready     bool      `json:"ready"`
	Entities  int       `json:"entities"`
	Keywords  int       `json:"keywords"`
	Scans     int64     `json:"scans"`
	Failures  int64     `json:"failures"`
	SwappedAt time.Time `json:"swapped_at,omitempty"`
}

// Readiness is the body of the readiness probe.
type Readiness struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// ComponentHealth is the probe result of one dependency.
type ComponentHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ready reports whether every component passed.
func (r *Readiness) Ready() bool {
	return r != nil && r.Status == "ready"
}

// Scan sends an OCR document as is. payload must be in the format named by
// opts.Format, or the server default when empty.
func (c *Client) Scan(ctx context.Context, payload []byte, opts ScanOptions) (*ScanResult, error) {
	data, _, err := c.do(ctx, &request{
		method:      http.MethodPost,
		path:        "/api/v1/scans",
		query:       opts.query(),
		body:        payload,
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	var res ScanResult
	if err := decode(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ScanFragments scans already decoded fragments.
func (c *Client) ScanFragments(ctx context.Context, fragments []scan.Fragment, opts ScanOptions) (*ScanResult, error) {
	if fragments == nil {
		fragments = []scan.Fragment{}
	}
	payload, err := json.Marshal(fragments)
	if err != nil {
		return nil, err
	}
	opts.Format = "fragments"
	return c.Scan(ctx, payload, opts)
}

// ScanText returns only the deck list of a scan, as the server renders it.
func (c *Client) ScanText(ctx context.Context, payload []byte, opts ScanOptions) (string, error) {
	data, _, err := c.do(ctx, &request{
		method:      http.MethodPost,
		path:        "/api/v1/scans",
		query:       opts.query(),
		body:        payload,
		contentType: "application/json",
		accept:      "text/plain",
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ScanBatch scans several documents in one request. Per-entry failures are
// reported in the returned items, not as an error.
func (c *Client) ScanBatch(ctx context.Context, entries []BatchEntry) ([]BatchItem, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	data, _, err := c.do(ctx, &request{
		method: http.MethodPost,
		path:   "/api/v1/scans/batch",
		body:   struct {
			Scans []BatchEntry `json:"scans"`
		}{Scans: entries},
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Items []BatchItem `json:"items"`
	}
	if err := decode(data, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Engine returns the recognition engine statistics.
func (c *Client) Engine(ctx context.Context) (*EngineStats, error) {
	var stats EngineStats
	if err := c.getJSON(ctx, "/api/v1/engine", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Formats lists the OCR formats the server decodes.
func (c *Client) Formats(ctx context.Context) ([]string, error) {
	var resp struct {
		Formats []string `json:"formats"`
	}
	if err := c.getJSON(ctx, "/api/v1/formats", &resp); err != nil {
		return nil, err
	}
	return resp.Formats, nil
}

// Ready probes the server once. A not-ready server is not an error; the
// returned Readiness says which component failed.
func (c *Client) Ready(ctx context.Context) (*Readiness, error) {
	data, _, err := c.do(ctx, &request{method: http.MethodGet, path: "/readyz", noRetry: true})
	if err != nil {
		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.IsNotReady() {
			return nil, err
		}
		data = apiErr.body
	}
	var r Readiness
	if err := decode(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
