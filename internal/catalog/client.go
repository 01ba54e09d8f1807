// Package catalog is the HTTP client for the upstream exoplanet catalogue
// API. It owns transport concerns only: request building, retries, circuit
// breaking, and turning non-2xx responses into structured errors. Payload
// validation happens one layer up, in the validate package.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/orbitfold/exoview/internal/config"
	"github.com/orbitfold/exoview/model"
)

// maxResponseBytes caps upstream response bodies.
const maxResponseBytes = 10 << 20 // 10MB

// Discovery chart parameter bounds.
const (
	minBins  = 5
	maxBins  = 200
	minSigma = 0.0
	maxSigma = 10.0
)

// Recorder receives transport-level metrics. All methods must be safe for
// concurrent use. A nil Recorder disables recording.
type Recorder interface {
	RecordUpstreamRequest(operation string, status int, duration time.Duration)
	RecordUpstreamRetry(operation string)
	SetCircuitBreakerState(state float64)
}

// Client calls the exoplanet catalogue API.
type Client struct {
	baseURL  string
	adminKey string
	http     *http.Client
	breaker  *CircuitBreaker
	retry    config.RetryConfig
	recorder Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithHTTPClient replaces the underlying HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a catalogue client from configuration. The admin key is
// resolved once at construction; an empty key disables the admin listing.
func New(cfg config.CatalogConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	cb := cfg.CircuitBreaker
	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		adminKey: cfg.AdminKey(),
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		breaker: NewCircuitBreaker(cb.FailureThreshold, cb.SuccessThreshold, cb.Timeout),
		retry:   cfg.Retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- read operations ---

// ListPlanets fetches the planet list for an already-normalised query.
func (c *Client) ListPlanets(ctx context.Context, query url.Values) (any, error) {
	return c.get(ctx, "list", "/planets/", query, nil)
}

// CountPlanets fetches the total record count.
func (c *Client) CountPlanets(ctx context.Context) (any, error) {
	return c.get(ctx, "count", "/planets/count", nil, nil)
}

// Stats fetches catalogue-wide aggregate statistics.
func (c *Client) Stats(ctx context.Context) (any, error) {
	return c.get(ctx, "stats", "/planets/stats", nil, nil)
}

// MethodCounts fetches planet counts per discovery method.
func (c *Client) MethodCounts(ctx context.Context) (any, error) {
	return c.get(ctx, "method-counts", "/planets/method-counts", nil, nil)
}

// MethodStats fetches aggregate statistics for one discovery method.
// The method name is path-escaped.
func (c *Client) MethodStats(ctx context.Context, method string) (any, error) {
	path := "/planets/method/" + url.PathEscape(method) + "/stats"
	return c.get(ctx, "method-stats", path, nil, nil)
}

// Timeline fetches the discovery timeline, optionally bounded by year.
func (c *Client) Timeline(ctx context.Context, startYear, endYear *int, includeDeleted bool) (any, error) {
	q := url.Values{}
	if startYear != nil {
		q.Set("start_year", strconv.Itoa(*startYear))
	}
	if endYear != nil {
		q.Set("end_year", strconv.Itoa(*endYear))
	}
	if includeDeleted {
		q.Set("include_deleted", "true")
	}
	return c.get(ctx, "timeline", "/planets/timeline", q, nil)
}

// GetPlanet fetches one record by id.
func (c *Client) GetPlanet(ctx context.Context, id int64) (any, error) {
	return c.get(ctx, "get", "/planets/"+strconv.FormatInt(id, 10), nil, nil)
}

// GetPlanetByName fetches one record by its path-escaped name.
func (c *Client) GetPlanetByName(ctx context.Context, name string) (any, error) {
	return c.get(ctx, "get-by-name", "/planets/by-name/"+url.PathEscape(name), nil, nil)
}

// DeletedPlanets fetches the soft-deleted records. The x-api-key header is
// attached only when an admin key is configured; with no key the request is
// sent bare and the upstream decides.
func (c *Client) DeletedPlanets(ctx context.Context) (any, error) {
	var headers http.Header
	if c.adminKey != "" {
		headers = http.Header{}
		headers.Set("x-api-key", sanitizeHeader(c.adminKey))
	}
	return c.get(ctx, "deleted", "/planets/admin/deleted", nil, headers)
}

// Discovery fetches a discovery chart dataset. Bins is clamped to [5,200]
// and sigma to [0,10] before the request is issued.
func (c *Client) Discovery(ctx context.Context, chart string, bins *int, sigma *float64) (any, error) {
	q := url.Values{}
	q.Set("chart", chart)
	if bins != nil {
		q.Set("bins", strconv.Itoa(clampInt(*bins, minBins, maxBins)))
	}
	if sigma != nil {
		q.Set("sigma", strconv.FormatFloat(clampFloat(*sigma, minSigma, maxSigma), 'g', -1, 64))
	}
	return c.get(ctx, "discovery", "/vis/discovery", q, nil)
}

// OpenAPIDocument fetches the catalogue's raw OpenAPI document.
func (c *Client) OpenAPIDocument(ctx context.Context) ([]byte, error) {
	reqURL := c.baseURL + "/openapi.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("catalog: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(reqURL, resp, body)
	}
	return body, nil
}

// Health probes the upstream liveness endpoint.
func (c *Client) Health(ctx context.Context) (any, error) {
	return c.get(ctx, "health", "/system/health", nil, nil)
}

// Readiness probes the upstream readiness endpoint.
func (c *Client) Readiness(ctx context.Context) (any, error) {
	return c.get(ctx, "readiness", "/system/readiness", nil, nil)
}

// Root fetches the upstream root descriptor.
func (c *Client) Root(ctx context.Context) (any, error) {
	return c.get(ctx, "root", "/system/root", nil, nil)
}

// HealthCheck implements the readiness HealthChecker contract.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// --- write operations ---

// CreatePlanet posts a new catalogue entry and returns the created record.
func (c *Client) CreatePlanet(ctx context.Context, body map[string]any) (any, error) {
	payload, _, err := c.do(ctx, "create", http.MethodPost, "/planets/", nil, body, nil)
	return payload, err
}

// DeletePlanet soft-deletes a record. A 204 response carries no payload and
// is treated as success.
func (c *Client) DeletePlanet(ctx context.Context, id int64) error {
	_, _, err := c.do(ctx, "delete", http.MethodDelete, "/planets/"+strconv.FormatInt(id, 10), nil, nil, nil)
	return err
}

// --- transport core ---

func (c *Client) get(ctx context.Context, op, path string, query url.Values, headers http.Header) (any, error) {
	payload, _, err := c.do(ctx, op, http.MethodGet, path, query, nil, headers)
	return payload, err
}

// do executes a request with retry and circuit breaker support and returns
// the parsed JSON payload (nil for empty or 204 responses).
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, headers http.Header) (any, int, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("catalog: marshal body: %w", err)
		}
	}

	maxAttempts := c.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	canRetry := isIdempotentMethod(method) || !c.retry.IdempotentOnly

	var lastErr error
	var lastStatus int

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if c.recorder != nil {
				c.recorder.RecordUpstreamRetry(op)
			}
			delay := calculateBackoff(c.retry, attempt)
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(delay):
			}
		}

		payload, status, err := c.executeOnce(ctx, op, method, reqURL, headers, bodyBytes)
		if err == nil {
			return payload, status, nil
		}
		lastErr, lastStatus = err, status

		if !canRetry || !isRetryable(err) {
			break
		}
	}

	return nil, lastStatus, lastErr
}

// isRetryable reports whether a failed attempt is worth repeating. Upstream
// 5xx responses and connection failures retry; 4xx responses, timeouts and
// validation errors do not.
func isRetryable(err error) bool {
	var ee *model.ErrorEnvelope
	if errors.As(err, &ee) {
		switch ee.Code {
		case model.ErrUpstreamError:
			return isRetryableStatus(ee.Status)
		case model.ErrBackendUnavailable:
			return true
		}
		return false
	}
	return true
}

// executeOnce performs a single HTTP request with circuit breaker protection.
// A non-2xx response comes back as (nil, status, *ErrorEnvelope).
func (c *Client) executeOnce(ctx context.Context, op, method, reqURL string, headers http.Header, bodyBytes []byte) (any, int, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, 0, model.NewBackendUnavailableError()
	}
	defer c.reportBreakerState()

	var body io.Reader
	if bodyBytes != nil {
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, 0, c.classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.breaker.RecordFailure()
		return nil, 0, fmt.Errorf("catalog: read response: %w", err)
	}

	if c.recorder != nil {
		c.recorder.RecordUpstreamRequest(op, resp.StatusCode, time.Since(start))
	}

	// Record circuit breaker outcome. 4xx are not infrastructure failures.
	if isServerError(resp.StatusCode) {
		c.breaker.RecordFailure()
	} else if !isClientError(resp.StatusCode) {
		c.breaker.RecordSuccess()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, upstreamError(reqURL, resp, respBody)
	}

	// 204 and empty bodies yield no payload.
	if resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil, resp.StatusCode, nil
	}

	var parsed any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, resp.StatusCode, model.NewUpstreamInvalidError("response", []model.FieldError{{
			Field: "(body)", Code: "NOT_JSON",
			Message: "response body is not valid JSON",
		}})
	}
	return parsed, resp.StatusCode, nil
}

func (c *Client) reportBreakerState() {
	if c.recorder == nil {
		return
	}
	c.recorder.SetCircuitBreakerState(float64(c.breaker.State()))
}

// classifyTransportError maps low-level failures onto the error taxonomy:
// connection problems become BACKEND_UNAVAILABLE, context expiry becomes
// BACKEND_TIMEOUT.
func (c *Client) classifyTransportError(ctx context.Context, err error) error {
	if isConnectionError(err) {
		return model.NewBackendUnavailableError()
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return model.NewBackendTimeoutError()
	}
	return fmt.Errorf("catalog: request failed: %w", err)
}

// upstreamError builds the structured API error for a non-2xx response, with
// the parsed JSON body as details when possible, raw text otherwise.
func upstreamError(reqURL string, resp *http.Response, body []byte) *model.ErrorEnvelope {
	var details any
	if len(body) > 0 {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			details = parsed
		} else {
			details = string(body)
		}
	}
	statusText := http.StatusText(resp.StatusCode)
	return model.NewUpstreamError(reqURL, resp.StatusCode, statusText, details)
}

// sanitizeHeader strips newlines and carriage returns to prevent header injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

// --- classification helpers ---

func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete,
		http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isServerError(code int) bool {
	return code >= 500
}

func isClientError(code int) bool {
	return code >= 400 && code < 500
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func calculateBackoff(cfg config.RetryConfig, attempt int) time.Duration {
	initial := cfg.BackoffInitial
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	multiplier := cfg.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	max := cfg.BackoffMax
	if max <= 0 {
		max = 2 * time.Second
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if delay > max {
			return max
		}
	}
	return delay
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
