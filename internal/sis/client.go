// Package sis is the typed client for the provisioning REST API.
package sis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/logger"
)

const maxErrorBody = 4 << 10

// APIError is a non-2xx response from the provisioning API. Message is
// the server's {"error": ...} payload when present, else the raw body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sis api: %d: %s", e.StatusCode, e.Message)
}

// Recorder receives fetch latency observations; satisfied by the
// metrics package.
type Recorder interface {
	ObserveFetch(endpoint string, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(string, time.Duration, error) {}

// Client talks to the provisioning REST API.
type Client struct {
	baseURL  string
	http     *http.Client
	log      logger.Logger
	tracer   trace.Tracer
	recorder Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithRecorder attaches a fetch latency recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a Client for the API rooted at baseURL
// (e.g. "https://provision.example.edu/api/v1").
func NewClient(baseURL string, timeout time.Duration, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		log:      log,
		tracer:   otel.Tracer("sis-client"),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Imports returns the full current import job list.
func (c *Client) Imports(ctx context.Context) ([]ImportJob, error) {
	var list importList
	if err := c.get(ctx, "/imports", nil, &list); err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	return list.Imports, nil
}

// ImportProgress fetches a single job's current state.
func (c *Client) ImportProgress(ctx context.Context, queueID int) (*ImportJob, error) {
	var job ImportJob
	if err := c.get(ctx, "/import/"+strconv.Itoa(queueID), nil, &job); err != nil {
		return nil, fmt.Errorf("import %d progress: %w", queueID, err)
	}
	return &job, nil
}

// DeleteImport removes a queued import; the server re-queues its items.
func (c *Client) DeleteImport(ctx context.Context, queueID int) error {
	if err := c.do(ctx, http.MethodDelete, "/import/"+strconv.Itoa(queueID), nil, nil); err != nil {
		return fmt.Errorf("delete import %d: %w", queueID, err)
	}
	return nil
}

// StartGroupImport asks the server to begin a group membership import.
func (c *Client) StartGroupImport(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/import/", groupImportRequest{Mode: "group"}, nil); err != nil {
		return fmt.Errorf("start group import: %w", err)
	}
	return nil
}

// ProvisionErrors lists courses whose provisioning produced an error.
func (c *Client) ProvisionErrors(ctx context.Context) ([]Course, error) {
	q := url.Values{"provisioned_error": {"true"}}
	var list courseList
	if err := c.get(ctx, "/courses", q, &list); err != nil {
		return nil, fmt.Errorf("list provision errors: %w", err)
	}
	return list.Courses, nil
}

// EventCounts fetches the per-category counts for the single minute
// containing on. The timestamp is floored to the minute so server and
// client agree on bucket alignment.
func (c *Client) EventCounts(ctx context.Context, types []string, on time.Time) (EventCounts, error) {
	q := url.Values{
		"type": {strings.Join(types, ",")},
		"on":   {FloorMinute(on).UTC().Format(time.RFC3339)},
	}
	var counts EventCounts
	if err := c.get(ctx, "/events", q, &counts); err != nil {
		return nil, fmt.Errorf("event counts: %w", err)
	}
	return counts, nil
}

// EventBackfill fetches minute-bucketed counts from begin through now.
func (c *Client) EventBackfill(ctx context.Context, types []string, begin time.Time) (EventCounts, error) {
	q := url.Values{
		"type":  {strings.Join(types, ",")},
		"begin": {FloorMinute(begin).UTC().Format(time.RFC3339)},
	}
	var counts EventCounts
	if err := c.get(ctx, "/events", q, &counts); err != nil {
		return nil, fmt.Errorf("event backfill: %w", err)
	}
	return counts, nil
}

// Terms returns the current and next term boundaries.
func (c *Client) Terms(ctx context.Context) (*TermContext, error) {
	var env termsEnvelope
	if err := c.get(ctx, "/terms", nil, &env); err != nil {
		return nil, fmt.Errorf("terms: %w", err)
	}
	return &env.Terms, nil
}

// CanvasStatus returns the upstream status feed; index 0 is the overall
// status, the rest are per-component rows.
func (c *Client) CanvasStatus(ctx context.Context) ([]StatusComponent, error) {
	var components []StatusComponent
	if err := c.get(ctx, "/canvas", nil, &components); err != nil {
		return nil, fmt.Errorf("canvas status: %w", err)
	}
	return components, nil
}

// FloorMinute zeroes the seconds and sub-second components of t.
func FloorMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.roundTrip(ctx, http.MethodGet, path, u, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.roundTrip(ctx, method, path, c.baseURL+path, body, out)
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint, fullURL string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "sis.fetch",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("endpoint", endpoint),
		))
	defer span.End()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.recorder.ObserveFetch(endpoint, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// decodeError tries the structured {"error": ...} payload and falls back
// to the raw response text.
func (c *Client) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}
