package pages

import (
	"context"
	"testing"

	"github.com/orbitfold/exoview/model"
)

func dashboardStub() *stubCatalog {
	return &stubCatalog{
		stats: func(_ context.Context) (any, error) {
			return map[string]any{"total": float64(5903), "min_year": float64(1992)}, nil
		},
		count: func(_ context.Context) (any, error) {
			return map[string]any{"count": float64(5903)}, nil
		},
		methodCounts: func(_ context.Context) (any, error) {
			return []any{
				map[string]any{"method": "Transit", "count": float64(4200)},
				map[string]any{"method": "Radial Velocity", "count": float64(1100)},
			}, nil
		},
		timeline: func(_ context.Context, start, end *int, includeDeleted bool) (any, error) {
			return []any{
				map[string]any{"year": float64(1995), "count": float64(1)},
				map[string]any{"year": float64(2011), "count": float64(139)},
			}, nil
		},
	}
}

func TestDashboard_allPanels(t *testing.T) {
	p := newTestProvider(t, dashboardStub())

	page := p.Dashboard(context.Background())

	if page.Stats == nil || page.Stats.Total != 5903 {
		t.Errorf("Stats = %+v, want total 5903", page.Stats)
	}
	if page.Count == nil || page.Count.Total != 5903 {
		t.Errorf("Count = %+v, want total 5903", page.Count)
	}
	if len(page.Methods) != 2 || page.Methods[0].Method != "Transit" {
		t.Errorf("Methods = %+v, want 2 entries starting with Transit", page.Methods)
	}
	if len(page.Timeline) != 2 || page.Timeline[1].Year != 2011 {
		t.Errorf("Timeline = %+v, want 2 points ending at 2011", page.Timeline)
	}
	if page.StatsErr != nil || page.CountErr != nil || page.MethodsErr != nil || page.TimelineErr != nil {
		t.Errorf("panel errors = %v %v %v %v, want all nil",
			page.StatsErr, page.CountErr, page.MethodsErr, page.TimelineErr)
	}
	if page.Stale {
		t.Error("Stale = true, want false on first load")
	}
}

func TestDashboard_panelFailureIsIsolated(t *testing.T) {
	cat := dashboardStub()
	cat.stats = func(_ context.Context) (any, error) {
		return nil, model.NewUpstreamError("http://x/stats", 500, "Internal Server Error", nil)
	}
	p := newTestProvider(t, cat)

	page := p.Dashboard(context.Background())

	if page.StatsErr == nil {
		t.Fatal("StatsErr = nil, want UPSTREAM_ERROR")
	}
	if page.StatsErr.Code != model.ErrUpstreamError {
		t.Errorf("StatsErr.Code = %q, want %q", page.StatsErr.Code, model.ErrUpstreamError)
	}
	if page.Stats != nil {
		t.Errorf("Stats = %+v, want nil for failed panel", page.Stats)
	}
	if page.Count == nil || page.Methods == nil || page.Timeline == nil {
		t.Error("other panels missing, want them populated despite stats failure")
	}
}

func TestDashboard_invalidPayloadIsIsolated(t *testing.T) {
	cat := dashboardStub()
	cat.timeline = func(_ context.Context, start, end *int, includeDeleted bool) (any, error) {
		return []any{map[string]any{"count": float64(3)}}, nil
	}
	p := newTestProvider(t, cat)

	page := p.Dashboard(context.Background())

	if page.TimelineErr == nil || page.TimelineErr.Code != model.ErrUpstreamInvalid {
		t.Fatalf("TimelineErr = %+v, want UPSTREAM_INVALID", page.TimelineErr)
	}
	if page.Stats == nil || page.Count == nil || page.Methods == nil {
		t.Error("other panels missing, want them populated despite timeline failure")
	}
}

func TestMethodStats(t *testing.T) {
	cat := dashboardStub()
	var gotMethod string
	cat.methodStats = func(_ context.Context, method string) (any, error) {
		gotMethod = method
		return map[string]any{"total": float64(4200), "avg_radius": float64(2.1)}, nil
	}
	p := newTestProvider(t, cat)

	page, err := p.MethodStats(context.Background(), "Transit")
	if err != nil {
		t.Fatalf("MethodStats() error = %v", err)
	}
	if gotMethod != "Transit" {
		t.Errorf("upstream method = %q, want Transit", gotMethod)
	}
	if page.Stats.Method != "Transit" || page.Stats.Stats.Total != 4200 {
		t.Errorf("Stats = %+v, want Transit total 4200", page.Stats)
	}
}

func TestMethodStats_emptyMethod(t *testing.T) {
	p := newTestProvider(t, &stubCatalog{})

	_, err := p.MethodStats(context.Background(), "")
	if err == nil {
		t.Fatal("MethodStats(\"\") error = nil, want BAD_REQUEST")
	}
	if asEnvelope(err).Code != model.ErrBadRequest {
		t.Errorf("Code = %q, want %q", asEnvelope(err).Code, model.ErrBadRequest)
	}
}
