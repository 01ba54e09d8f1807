package pages

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/orbitfold/exoview/internal/dataaccess"
	"github.com/orbitfold/exoview/internal/validate"
	"github.com/orbitfold/exoview/model"
)

var (
	resStats        = dataaccess.Resource{Family: dashboardFamily, Name: "stats"}
	resCount        = dataaccess.Resource{Family: dashboardFamily, Name: "count"}
	resMethodCounts = dataaccess.Resource{Family: dashboardFamily, Name: "method-counts"}
	resMethodStats  = dataaccess.Resource{Family: dashboardFamily, Name: "method-stats"}
	resTimeline     = dataaccess.Resource{Family: dashboardFamily, Name: "timeline"}
)

// DashboardPage aggregates the dashboard panels. Each panel fails
// independently: a panel error is carried next to its data slot and never
// fails the whole page.
type DashboardPage struct {
	Stats    *model.CatalogStats  `json:"stats,omitempty"`
	StatsErr *model.ErrorEnvelope `json:"stats_error,omitempty"`

	Count    *model.CountResult   `json:"count,omitempty"`
	CountErr *model.ErrorEnvelope `json:"count_error,omitempty"`

	Methods    []model.MethodCount  `json:"methods,omitempty"`
	MethodsErr *model.ErrorEnvelope `json:"methods_error,omitempty"`

	Timeline    []model.TimelinePoint `json:"timeline,omitempty"`
	TimelineErr *model.ErrorEnvelope  `json:"timeline_error,omitempty"`

	Stale bool `json:"stale,omitempty"`
}

// MethodStatsPage carries the per-method aggregate panel.
type MethodStatsPage struct {
	Stats model.MethodStats `json:"stats"`
	Stale bool              `json:"stale,omitempty"`
}

// Dashboard assembles the dashboard from four independent cached reads run
// concurrently. Stale is true when any panel was served past its staleness
// window.
func (p *Provider) Dashboard(ctx context.Context) *DashboardPage {
	page := &DashboardPage{}
	var stale [4]bool
	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		result := p.store.Query(ctx, resStats, "", func(ctx context.Context) (any, error) {
			raw, err := p.catalog.Stats(ctx)
			if err != nil {
				return nil, err
			}
			stats, err := validate.Stats(raw)
			if err != nil {
				p.recordValidationFailure("stats")
				return nil, err
			}
			return stats, nil
		})
		if result.Err != nil {
			page.StatsErr = asEnvelope(result.Err)
			return
		}
		stats := result.Value.(model.CatalogStats)
		page.Stats = &stats
		stale[0] = result.Stale
	}()

	go func() {
		defer wg.Done()
		result := p.store.Query(ctx, resCount, "", func(ctx context.Context) (any, error) {
			raw, err := p.catalog.CountPlanets(ctx)
			if err != nil {
				return nil, err
			}
			count, err := validate.Count(raw)
			if err != nil {
				p.recordValidationFailure("count")
				return nil, err
			}
			return count, nil
		})
		if result.Err != nil {
			page.CountErr = asEnvelope(result.Err)
			return
		}
		count := result.Value.(model.CountResult)
		page.Count = &count
		stale[1] = result.Stale
	}()

	go func() {
		defer wg.Done()
		result := p.store.Query(ctx, resMethodCounts, "", func(ctx context.Context) (any, error) {
			raw, err := p.catalog.MethodCounts(ctx)
			if err != nil {
				return nil, err
			}
			counts, err := validate.MethodCounts(raw)
			if err != nil {
				p.recordValidationFailure("method-counts")
				return nil, err
			}
			return counts, nil
		})
		if result.Err != nil {
			page.MethodsErr = asEnvelope(result.Err)
			return
		}
		page.Methods = result.Value.([]model.MethodCount)
		stale[2] = result.Stale
	}()

	go func() {
		defer wg.Done()
		result := p.store.Query(ctx, resTimeline, "", func(ctx context.Context) (any, error) {
			raw, err := p.catalog.Timeline(ctx, nil, nil, false)
			if err != nil {
				return nil, err
			}
			timeline, err := validate.Timeline(raw)
			if err != nil {
				p.recordValidationFailure("timeline")
				return nil, err
			}
			return timeline, nil
		})
		if result.Err != nil {
			page.TimelineErr = asEnvelope(result.Err)
			return
		}
		page.Timeline = result.Value.([]model.TimelinePoint)
		stale[3] = result.Stale
	}()

	wg.Wait()
	page.Stale = stale[0] || stale[1] || stale[2] || stale[3]
	return page
}

// MethodStats serves the per-method aggregate panel through the cache.
func (p *Provider) MethodStats(ctx context.Context, method string) (*MethodStatsPage, error) {
	if method == "" {
		return nil, model.NewBadRequestError("discovery method must not be empty")
	}
	key := "method=" + url.QueryEscape(method)
	result := p.store.Query(ctx, resMethodStats, key, func(ctx context.Context) (any, error) {
		raw, err := p.catalog.MethodStats(ctx, method)
		if err != nil {
			return nil, err
		}
		stats, err := validate.MethodStats(method, raw)
		if err != nil {
			p.recordValidationFailure("method-stats")
			return nil, err
		}
		return stats, nil
	})
	if result.Err != nil {
		return nil, result.Err
	}
	return &MethodStatsPage{Stats: result.Value.(model.MethodStats), Stale: result.Stale}, nil
}

// asEnvelope narrows an error to the standard envelope, wrapping unexpected
// error types as INTERNAL_ERROR.
func asEnvelope(err error) *model.ErrorEnvelope {
	var ee *model.ErrorEnvelope
	if errors.As(err, &ee) {
		return ee
	}
	return &model.ErrorEnvelope{Code: model.ErrInternalError, Message: err.Error()}
}
