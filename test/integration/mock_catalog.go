package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockCatalog simulates the upstream exoplanet catalogue API. It keeps an
// in-memory planet table, records every received request for later
// assertion, and supports per-route failure injection.
type MockCatalog struct {
	t        *testing.T
	server   *httptest.Server
	adminKey string

	mu       sync.Mutex
	nextID   int64
	planets  map[int64]map[string]any
	deleted  map[int64]map[string]any
	requests []RecordedRequest
	failures map[string]*failurePlan
}

// RecordedRequest captures one request received by the mock catalogue.
// Route is the key the request was registered under, for example
// "GET /planets/".
type RecordedRequest struct {
	Route  string
	Method string
	Path   string
	Query  map[string]string
	Header http.Header
	Body   map[string]any
}

// failurePlan makes the next N requests to a route fail with a status, or
// with a hung connection when status is 0.
type failurePlan struct {
	status    int
	remaining int
	delay     time.Duration
}

// NewMockCatalog starts a mock catalogue server seeded with the given
// planets. The adminKey guards the deleted listing; use "" to accept
// unauthenticated reads.
func NewMockCatalog(t *testing.T, adminKey string, seed ...map[string]any) *MockCatalog {
	t.Helper()

	mc := &MockCatalog{
		t:        t,
		adminKey: adminKey,
		nextID:   1,
		planets:  make(map[int64]map[string]any),
		deleted:  make(map[int64]map[string]any),
		failures: make(map[string]*failurePlan),
	}
	for _, p := range seed {
		mc.addLocked(p)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /planets/{$}", mc.wrap("GET /planets/", mc.handleList))
	mux.HandleFunc("POST /planets/{$}", mc.wrap("POST /planets/", mc.handleCreate))
	mux.HandleFunc("GET /planets/count", mc.wrap("GET /planets/count", mc.handleCount))
	mux.HandleFunc("GET /planets/stats", mc.wrap("GET /planets/stats", mc.handleStats))
	mux.HandleFunc("GET /planets/method-counts", mc.wrap("GET /planets/method-counts", mc.handleMethodCounts))
	mux.HandleFunc("GET /planets/method/{method}/stats", mc.wrap("GET /planets/method/stats", mc.handleMethodStats))
	mux.HandleFunc("GET /planets/timeline", mc.wrap("GET /planets/timeline", mc.handleTimeline))
	mux.HandleFunc("GET /planets/by-name/{name}", mc.wrap("GET /planets/by-name", mc.handleGetByName))
	mux.HandleFunc("GET /planets/admin/deleted", mc.wrap("GET /planets/admin/deleted", mc.handleDeleted))
	mux.HandleFunc("GET /planets/{id}", mc.wrap("GET /planets/{id}", mc.handleGet))
	mux.HandleFunc("DELETE /planets/{id}", mc.wrap("DELETE /planets/{id}", mc.handleDelete))
	mux.HandleFunc("GET /vis/discovery", mc.wrap("GET /vis/discovery", mc.handleDiscovery))
	mux.HandleFunc("GET /system/health", mc.wrap("GET /system/health", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, 200, map[string]any{"status": "ok"})
	}))

	mc.server = httptest.NewServer(mux)
	t.Cleanup(mc.server.Close)
	return mc
}

// URL returns the mock catalogue's base URL.
func (mc *MockCatalog) URL() string { return mc.server.URL }

// Close shuts the server down early, simulating an unreachable upstream.
func (mc *MockCatalog) Close() { mc.server.Close() }

// Add inserts a planet and returns its id.
func (mc *MockCatalog) Add(planet map[string]any) int64 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.addLocked(planet)
}

func (mc *MockCatalog) addLocked(planet map[string]any) int64 {
	// Round-trip through JSON so stored values use JSON types (numbers as
	// float64), matching what handlers assert on decoded request bodies.
	p := make(map[string]any, len(planet)+1)
	if raw, err := json.Marshal(planet); err == nil {
		json.Unmarshal(raw, &p)
	} else {
		for k, v := range planet {
			p[k] = v
		}
	}
	id := mc.nextID
	mc.nextID++
	p["id"] = float64(id)
	mc.planets[id] = p
	return id
}

// FailNext makes the next count requests matching the route key fail with
// the given status. Route keys are the strings passed to wrap, for example
// "GET /planets/".
func (mc *MockCatalog) FailNext(route string, status, count int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.failures[route] = &failurePlan{status: status, remaining: count}
}

// Requests returns all requests recorded for a route key, or every request
// when route is empty.
func (mc *MockCatalog) Requests(route string) []RecordedRequest {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if route == "" {
		return append([]RecordedRequest(nil), mc.requests...)
	}
	var out []RecordedRequest
	for _, r := range mc.requests {
		if r.Route == route {
			out = append(out, r)
		}
	}
	return out
}

// RequestCount returns how many requests hit a route key.
func (mc *MockCatalog) RequestCount(route string) int {
	return len(mc.Requests(route))
}

func (mc *MockCatalog) wrap(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := RecordedRequest{
			Route:  route,
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  make(map[string]string),
			Header: r.Header.Clone(),
		}
		for k := range r.URL.Query() {
			rec.Query[k] = r.URL.Query().Get(k)
		}
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				json.Unmarshal(raw, &rec.Body)
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))
		}

		mc.mu.Lock()
		mc.requests = append(mc.requests, rec)
		plan := mc.failures[route]
		var fail *failurePlan
		if plan != nil && plan.remaining > 0 {
			plan.remaining--
			fail = plan
		}
		mc.mu.Unlock()

		if fail != nil {
			if fail.delay > 0 {
				time.Sleep(fail.delay)
			}
			writeBody(w, fail.status, map[string]any{"detail": "injected failure"})
			return
		}
		h(w, r)
	}
}

func writeBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func (mc *MockCatalog) sortedPlanets() []map[string]any {
	ids := make([]int64, 0, len(mc.planets))
	for id := range mc.planets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, mc.planets[id])
	}
	return out
}

func (mc *MockCatalog) handleList(w http.ResponseWriter, r *http.Request) {
	mc.mu.Lock()
	all := mc.sortedPlanets()
	mc.mu.Unlock()

	q := r.URL.Query()
	var filtered []map[string]any
	name := strings.ToLower(q.Get("name"))
	for _, p := range all {
		if name != "" {
			n, _ := p["name"].(string)
			if !strings.Contains(strings.ToLower(n), name) {
				continue
			}
		}
		filtered = append(filtered, p)
	}

	total := len(filtered)
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	writeBody(w, 200, map[string]any{
		"items":  emptyIfNil(filtered[offset:end]),
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func emptyIfNil(items []map[string]any) []map[string]any {
	if items == nil {
		return []map[string]any{}
	}
	return items
}

func (mc *MockCatalog) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["name"] == nil {
		writeBody(w, 400, map[string]any{"detail": "invalid body"})
		return
	}
	mc.mu.Lock()
	id := mc.addLocked(body)
	created := mc.planets[id]
	mc.mu.Unlock()
	writeBody(w, 201, created)
}

func (mc *MockCatalog) handleCount(w http.ResponseWriter, _ *http.Request) {
	mc.mu.Lock()
	n := len(mc.planets)
	mc.mu.Unlock()
	writeBody(w, 200, map[string]any{"count": n})
}

func (mc *MockCatalog) handleStats(w http.ResponseWriter, _ *http.Request) {
	mc.mu.Lock()
	n := len(mc.planets)
	mc.mu.Unlock()
	writeBody(w, 200, map[string]any{"total": n, "min_year": 1992, "max_year": 2026})
}

func (mc *MockCatalog) handleMethodCounts(w http.ResponseWriter, _ *http.Request) {
	mc.mu.Lock()
	counts := make(map[string]int)
	for _, p := range mc.planets {
		if m, ok := p["discovery_method"].(string); ok {
			counts[m]++
		}
	}
	mc.mu.Unlock()

	methods := make([]string, 0, len(counts))
	for m := range counts {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	items := make([]map[string]any, 0, len(methods))
	for _, m := range methods {
		items = append(items, map[string]any{"method": m, "count": counts[m]})
	}
	writeBody(w, 200, items)
}

func (mc *MockCatalog) handleMethodStats(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")
	mc.mu.Lock()
	n := 0
	for _, p := range mc.planets {
		if p["discovery_method"] == method {
			n++
		}
	}
	mc.mu.Unlock()
	if n == 0 {
		writeBody(w, 404, map[string]any{"detail": fmt.Sprintf("no planets discovered by %s", method)})
		return
	}
	writeBody(w, 200, map[string]any{"total": n})
}

func (mc *MockCatalog) handleTimeline(w http.ResponseWriter, _ *http.Request) {
	mc.mu.Lock()
	buckets := make(map[int]int)
	for _, p := range mc.planets {
		if y, ok := p["disc_year"].(float64); ok {
			buckets[int(y)]++
		}
	}
	mc.mu.Unlock()

	years := make([]int, 0, len(buckets))
	for y := range buckets {
		years = append(years, y)
	}
	sort.Ints(years)
	items := make([]map[string]any, 0, len(years))
	for _, y := range years {
		items = append(items, map[string]any{"year": y, "count": buckets[y]})
	}
	writeBody(w, 200, items)
}

func (mc *MockCatalog) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeBody(w, 422, map[string]any{"detail": "invalid id"})
		return
	}
	mc.mu.Lock()
	p, ok := mc.planets[id]
	mc.mu.Unlock()
	if !ok {
		writeBody(w, 404, map[string]any{"detail": "planet not found"})
		return
	}
	writeBody(w, 200, p)
}

func (mc *MockCatalog) handleGetByName(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, p := range mc.planets {
		if p["name"] == name {
			writeBody(w, 200, p)
			return
		}
	}
	writeBody(w, 404, map[string]any{"detail": "planet not found"})
}

func (mc *MockCatalog) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeBody(w, 422, map[string]any{"detail": "invalid id"})
		return
	}
	mc.mu.Lock()
	p, ok := mc.planets[id]
	if ok {
		delete(mc.planets, id)
		p["deleted_at"] = time.Now().UTC().Format(time.RFC3339)
		mc.deleted[id] = p
	}
	mc.mu.Unlock()
	if !ok {
		writeBody(w, 404, map[string]any{"detail": "planet not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (mc *MockCatalog) handleDeleted(w http.ResponseWriter, r *http.Request) {
	if mc.adminKey != "" && r.Header.Get("x-api-key") != mc.adminKey {
		writeBody(w, 401, map[string]any{"detail": "invalid or missing API key"})
		return
	}
	mc.mu.Lock()
	items := make([]map[string]any, 0, len(mc.deleted))
	for _, p := range mc.deleted {
		items = append(items, p)
	}
	mc.mu.Unlock()
	writeBody(w, 200, items)
}

func (mc *MockCatalog) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	writeBody(w, 200, map[string]any{
		"chart": r.URL.Query().Get("chart"),
		"points": []map[string]any{
			{"label": "2011", "value": 139},
		},
	})
}
