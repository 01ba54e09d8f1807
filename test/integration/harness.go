// Package integration provides a reusable test harness for end-to-end
// testing of the exoview BFF server. It starts a fully wired HTTP server
// against a mock exoplanet catalogue.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/orbitfold/exoview/internal/catalog"
	"github.com/orbitfold/exoview/internal/config"
	"github.com/orbitfold/exoview/internal/dataaccess"
	"github.com/orbitfold/exoview/internal/explorer"
	"github.com/orbitfold/exoview/internal/observability"
	"github.com/orbitfold/exoview/internal/pages"
	"github.com/orbitfold/exoview/internal/transport"
)

const testAdminKeyEnv = "EXOVIEW_IT_ADMIN_KEY"

// TestHarness encapsulates a fully wired BFF instance against a mock
// catalogue.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server

	Catalog     *MockCatalog
	Store       *dataaccess.Store
	Idempotency *pages.MemoryIdempotencyStore
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	staleness   time.Duration
	retention   time.Duration
	maxAttempts int
	adminKey      string
	bffKeyMissing bool
	seed          []map[string]any
	noExplorer    bool
}

// WithCacheWindows overrides the cache staleness and retention windows.
func WithCacheWindows(staleness, retention time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.staleness = staleness
		c.retention = retention
	}
}

// WithMaxAttempts overrides the upstream retry budget.
func WithMaxAttempts(n int) HarnessOption {
	return func(c *harnessConfig) { c.maxAttempts = n }
}

// WithAdminKey configures the admin API key shared by the BFF and the mock
// catalogue.
func WithAdminKey(key string) HarnessOption {
	return func(c *harnessConfig) { c.adminKey = key }
}

// WithUpstreamAdminKey makes the mock catalogue require an admin key that
// the BFF does not have, so admin reads come back 401.
func WithUpstreamAdminKey(key string) HarnessOption {
	return func(c *harnessConfig) {
		c.adminKey = key
		c.bffKeyMissing = true
	}
}

// WithSeed seeds the mock catalogue with planets.
func WithSeed(planets ...map[string]any) HarnessOption {
	return func(c *harnessConfig) { c.seed = append(c.seed, planets...) }
}

// WithoutExplorer starts the BFF without an explorer index.
func WithoutExplorer() HarnessOption {
	return func(c *harnessConfig) { c.noExplorer = true }
}

// NewHarness creates a mock catalogue and a wired BFF server. Both shut down
// with the test.
func NewHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		staleness:   time.Minute,
		retention:   5 * time.Minute,
		maxAttempts: 3,
	}
	for _, opt := range opts {
		opt(hc)
	}

	mock := NewMockCatalog(t, hc.adminKey, hc.seed...)

	cfg := config.Defaults()
	cfg.Catalog.BaseURL = mock.URL()
	cfg.Catalog.Timeout = 5 * time.Second
	cfg.Catalog.Retry.MaxAttempts = hc.maxAttempts
	cfg.Catalog.Retry.BackoffInitial = time.Millisecond
	cfg.Catalog.Retry.BackoffMax = 5 * time.Millisecond
	cfg.Catalog.AdminKeyEnv = testAdminKeyEnv
	cfg.Observability.Metrics.Enabled = false
	if hc.adminKey != "" && !hc.bffKeyMissing {
		t.Setenv(testAdminKeyEnv, hc.adminKey)
	} else {
		t.Setenv(testAdminKeyEnv, "")
	}

	logger := zap.NewNop()
	client := catalog.New(cfg.Catalog)

	store := dataaccess.NewStore(hc.staleness, hc.retention, dataaccess.WithLogger(logger))
	t.Cleanup(store.Close)

	idem := pages.NewMemoryIdempotencyStore()
	provider := pages.NewProvider(client, store, logger,
		pages.WithIdempotencyStore(idem, time.Hour))

	var index *explorer.Index
	if !hc.noExplorer {
		var err error
		index, err = explorer.LoadFile(fixturePath(t, "catalog.yaml"))
		if err != nil {
			t.Fatalf("load explorer fixture: %v", err)
		}
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Pages:    provider,
		Explorer: index,
		Ready: observability.ReadinessChecks{
			ExplorerLoaded: func() bool { return index != nil },
			Catalog:        client,
		},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestHarness{
		t:           t,
		server:      server,
		Catalog:     mock,
		Store:       store,
		Idempotency: idem,
	}
}

// fixturePath resolves a file under the explorer package's testdata
// directory, which this harness reuses as its OpenAPI fixture.
func fixturePath(t *testing.T, name string) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot resolve caller path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "internal", "explorer", "testdata", name)
}

// URL returns the BFF server's base URL.
func (h *TestHarness) URL() string { return h.server.URL }

// GET performs a GET request and decodes the JSON response into out when out
// is non-nil.
func (h *TestHarness) GET(path string, out any) int {
	return h.do(http.MethodGet, path, nil, nil, out)
}

// POST performs a POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, header http.Header, out any) int {
	return h.do(http.MethodPost, path, body, header, out)
}

// DELETE performs a DELETE request.
func (h *TestHarness) DELETE(path string) int {
	return h.do(http.MethodDelete, path, nil, nil, nil)
}

func (h *TestHarness) do(method, path string, body any, header http.Header, out any) int {
	h.t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, h.server.URL+path, rdr)
	if err != nil {
		h.t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := h.server.Client().Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			h.t.Fatalf("read response body: %v", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				h.t.Fatalf("decode %s %s response %q: %v", method, path, raw, err)
			}
		}
	}
	return resp.StatusCode
}

// errorBody is the error envelope shape returned by the BFF.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"error"`
}
