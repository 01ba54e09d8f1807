package pages

import (
	"context"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/orbitfold/exoview/internal/dataaccess"
	"github.com/orbitfold/exoview/model"
)

// stubCatalog implements Catalog with per-method function hooks. Unset hooks
// fail the call.
type stubCatalog struct {
	listCalls atomic.Int32

	list         func(ctx context.Context, q url.Values) (any, error)
	count        func(ctx context.Context) (any, error)
	stats        func(ctx context.Context) (any, error)
	methodCounts func(ctx context.Context) (any, error)
	methodStats  func(ctx context.Context, method string) (any, error)
	timeline     func(ctx context.Context, start, end *int, includeDeleted bool) (any, error)
	get          func(ctx context.Context, id int64) (any, error)
	getByName    func(ctx context.Context, name string) (any, error)
	deleted      func(ctx context.Context) (any, error)
	discovery    func(ctx context.Context, chart string, bins *int, sigma *float64) (any, error)
	create       func(ctx context.Context, body map[string]any) (any, error)
	delete       func(ctx context.Context, id int64) error
}

func notStubbed(t string) error {
	return model.NewBadRequestError("stub method " + t + " not set")
}

func (s *stubCatalog) ListPlanets(ctx context.Context, q url.Values) (any, error) {
	s.listCalls.Add(1)
	if s.list == nil {
		return nil, notStubbed("ListPlanets")
	}
	return s.list(ctx, q)
}

func (s *stubCatalog) CountPlanets(ctx context.Context) (any, error) {
	if s.count == nil {
		return nil, notStubbed("CountPlanets")
	}
	return s.count(ctx)
}

func (s *stubCatalog) Stats(ctx context.Context) (any, error) {
	if s.stats == nil {
		return nil, notStubbed("Stats")
	}
	return s.stats(ctx)
}

func (s *stubCatalog) MethodCounts(ctx context.Context) (any, error) {
	if s.methodCounts == nil {
		return nil, notStubbed("MethodCounts")
	}
	return s.methodCounts(ctx)
}

func (s *stubCatalog) MethodStats(ctx context.Context, method string) (any, error) {
	if s.methodStats == nil {
		return nil, notStubbed("MethodStats")
	}
	return s.methodStats(ctx, method)
}

func (s *stubCatalog) Timeline(ctx context.Context, start, end *int, includeDeleted bool) (any, error) {
	if s.timeline == nil {
		return nil, notStubbed("Timeline")
	}
	return s.timeline(ctx, start, end, includeDeleted)
}

func (s *stubCatalog) GetPlanet(ctx context.Context, id int64) (any, error) {
	if s.get == nil {
		return nil, notStubbed("GetPlanet")
	}
	return s.get(ctx, id)
}

func (s *stubCatalog) GetPlanetByName(ctx context.Context, name string) (any, error) {
	if s.getByName == nil {
		return nil, notStubbed("GetPlanetByName")
	}
	return s.getByName(ctx, name)
}

func (s *stubCatalog) DeletedPlanets(ctx context.Context) (any, error) {
	if s.deleted == nil {
		return nil, notStubbed("DeletedPlanets")
	}
	return s.deleted(ctx)
}

func (s *stubCatalog) Discovery(ctx context.Context, chart string, bins *int, sigma *float64) (any, error) {
	if s.discovery == nil {
		return nil, notStubbed("Discovery")
	}
	return s.discovery(ctx, chart, bins, sigma)
}

func (s *stubCatalog) CreatePlanet(ctx context.Context, body map[string]any) (any, error) {
	if s.create == nil {
		return nil, notStubbed("CreatePlanet")
	}
	return s.create(ctx, body)
}

func (s *stubCatalog) DeletePlanet(ctx context.Context, id int64) error {
	if s.delete == nil {
		return notStubbed("DeletePlanet")
	}
	return s.delete(ctx, id)
}

func rawListPayload(total float64, names ...string) map[string]any {
	items := make([]any, 0, len(names))
	for i, name := range names {
		items = append(items, map[string]any{
			"id":   float64(i + 1),
			"name": name,
		})
	}
	return map[string]any{
		"items":  items,
		"total":  total,
		"limit":  float64(25),
		"offset": float64(0),
	}
}

func newTestProvider(t *testing.T, cat Catalog, opts ...ProviderOption) *Provider {
	t.Helper()
	store := dataaccess.NewStore(time.Minute, 5*time.Minute)
	t.Cleanup(store.Close)
	return NewProvider(cat, store, zap.NewNop(), opts...)
}

func TestListPlanets(t *testing.T) {
	cat := &stubCatalog{
		list: func(_ context.Context, q url.Values) (any, error) {
			return rawListPayload(120, "Kepler-22b", "HD 209458 b"), nil
		},
	}
	p := newTestProvider(t, cat)

	q := url.Values{}
	q.Set("name", "kepler")
	q.Set("limit", "25")
	q.Set("offset", "50")

	page, err := p.ListPlanets(context.Background(), q)
	if err != nil {
		t.Fatalf("ListPlanets() error = %v", err)
	}
	if len(page.Items) != 2 {
		t.Errorf("len(Items) = %d, want 2", len(page.Items))
	}
	if page.Meta.Total != 120 {
		t.Errorf("Meta.Total = %d, want 120", page.Meta.Total)
	}
	if page.Query != "limit=25&name=kepler&offset=50" {
		t.Errorf("Query = %q, want %q", page.Query, "limit=25&name=kepler&offset=50")
	}
	if page.Form["name"] != "kepler" {
		t.Errorf(`Form["name"] = %q, want kepler`, page.Form["name"])
	}
}

func TestListPlanets_missingWindowEchoesRequested(t *testing.T) {
	cat := &stubCatalog{
		list: func(_ context.Context, q url.Values) (any, error) {
			// An envelope that omits limit and offset entirely.
			return map[string]any{
				"items": []any{map[string]any{"id": float64(1), "name": "Kepler-22b"}},
				"total": float64(120),
			}, nil
		},
	}
	p := newTestProvider(t, cat)

	q := url.Values{}
	q.Set("limit", "25")
	q.Set("offset", "50")

	page, err := p.ListPlanets(context.Background(), q)
	if err != nil {
		t.Fatalf("ListPlanets() error = %v", err)
	}
	if page.Meta.Limit != 25 || page.Meta.Offset != 50 {
		t.Errorf("Meta window = %d/%d, want the requested 25/50", page.Meta.Limit, page.Meta.Offset)
	}
	if page.Meta.Page != 3 {
		t.Errorf("Meta.Page = %d, want 3", page.Meta.Page)
	}
	if !page.Meta.HasPrevious {
		t.Error("Meta.HasPrevious = false, want true at offset 50")
	}
	if !page.Meta.HasNext {
		t.Error("Meta.HasNext = false, want true with 120 total")
	}
}

func TestListPlanets_whitespaceVariantsShareCacheEntry(t *testing.T) {
	cat := &stubCatalog{
		list: func(_ context.Context, q url.Values) (any, error) {
			return rawListPayload(1, "Kepler-22b"), nil
		},
	}
	p := newTestProvider(t, cat)

	a := url.Values{}
	a.Set("name", "kepler")
	b := url.Values{}
	b.Set("name", "  kepler  ")

	if _, err := p.ListPlanets(context.Background(), a); err != nil {
		t.Fatalf("first ListPlanets() error = %v", err)
	}
	if _, err := p.ListPlanets(context.Background(), b); err != nil {
		t.Fatalf("second ListPlanets() error = %v", err)
	}
	if got := cat.listCalls.Load(); got != 1 {
		t.Errorf("upstream list calls = %d, want 1", got)
	}
}

func TestListPlanets_invalidListFailsWholePage(t *testing.T) {
	cat := &stubCatalog{
		list: func(_ context.Context, q url.Values) (any, error) {
			return map[string]any{
				"items": []any{
					map[string]any{"id": float64(1), "name": "ok"},
					map[string]any{"id": "oops", "name": "bad"},
				},
				"total": float64(2),
			}, nil
		},
	}
	p := newTestProvider(t, cat)

	_, err := p.ListPlanets(context.Background(), url.Values{})
	if err == nil {
		t.Fatal("ListPlanets() error = nil, want UPSTREAM_INVALID")
	}
	ee := asEnvelope(err)
	if ee.Code != model.ErrUpstreamInvalid {
		t.Errorf("Code = %q, want %q", ee.Code, model.ErrUpstreamInvalid)
	}
}

func TestGetPlanet(t *testing.T) {
	cat := &stubCatalog{
		get: func(_ context.Context, id int64) (any, error) {
			return map[string]any{"id": float64(id), "name": "Kepler-22b"}, nil
		},
	}
	p := newTestProvider(t, cat)

	page, err := p.GetPlanet(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetPlanet() error = %v", err)
	}
	if page.Planet.ID != 7 {
		t.Errorf("Planet.ID = %d, want 7", page.Planet.ID)
	}
	if page.Planet.Name != "Kepler-22b" {
		t.Errorf("Planet.Name = %q, want Kepler-22b", page.Planet.Name)
	}
}

func TestGetPlanetByName_emptyName(t *testing.T) {
	p := newTestProvider(t, &stubCatalog{})
	_, err := p.GetPlanetByName(context.Background(), "")
	if err == nil {
		t.Fatal("GetPlanetByName(\"\") error = nil, want BAD_REQUEST")
	}
	if asEnvelope(err).Code != model.ErrBadRequest {
		t.Errorf("Code = %q, want %q", asEnvelope(err).Code, model.ErrBadRequest)
	}
}

func TestDeletedPlanets_acceptsBareArray(t *testing.T) {
	cat := &stubCatalog{
		deleted: func(_ context.Context) (any, error) {
			return []any{
				map[string]any{"id": float64(3), "name": "Gone-1b", "deleted_at": "2024-01-02T03:04:05Z"},
			}, nil
		},
	}
	p := newTestProvider(t, cat)

	page, err := p.DeletedPlanets(context.Background())
	if err != nil {
		t.Fatalf("DeletedPlanets() error = %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(page.Items))
	}
	if !page.Items[0].Deleted() {
		t.Error("Deleted() = false, want true")
	}
}
