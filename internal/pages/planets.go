package pages

import (
	"context"
	"net/url"
	"strconv"

	"github.com/orbitfold/exoview/internal/dataaccess"
	"github.com/orbitfold/exoview/internal/params"
	"github.com/orbitfold/exoview/internal/validate"
	"github.com/orbitfold/exoview/model"
)

var (
	resList    = dataaccess.Resource{Family: planetsFamily, Name: "list"}
	resDetail  = dataaccess.Resource{Family: planetsFamily, Name: "detail"}
	resDeleted = dataaccess.Resource{Family: planetsFamily, Name: "deleted"}
)

// PlanetListPage is the planets-table page payload. Query is the canonical
// normalised query string, echoed so the UI address bar can mirror the filter
// state exactly.
type PlanetListPage struct {
	Items []model.PlanetRecord `json:"items"`
	Meta  model.PageMeta       `json:"meta"`
	Form  model.FormState      `json:"form"`
	Query string               `json:"query"`
	Stale bool                 `json:"stale,omitempty"`
}

// PlanetPage is a single-record page payload.
type PlanetPage struct {
	Planet model.PlanetRecord `json:"planet"`
	Stale  bool               `json:"stale,omitempty"`
}

// DeletedPlanetsPage lists soft-deleted records (admin view).
type DeletedPlanetsPage struct {
	Items []model.PlanetRecord `json:"items"`
	Stale bool                 `json:"stale,omitempty"`
}

// ListPlanets decodes the raw URL query, normalises it, and serves the planet
// list through the cache. Whitespace-differing queries collapse to one cache
// entry and one upstream request.
func (p *Provider) ListPlanets(ctx context.Context, query url.Values) (*PlanetListPage, error) {
	filter := params.Decode(query)
	req := params.NormaliseWithDefaults(filter)
	limit, offset := req.Window()

	result := p.store.Query(ctx, resList, req.CacheKey(), func(ctx context.Context) (any, error) {
		raw, err := p.catalog.ListPlanets(ctx, req.Values())
		if err != nil {
			return nil, err
		}
		list, err := validate.List(raw)
		if err != nil {
			p.recordValidationFailure("planets")
			return nil, err
		}
		return list, nil
	})
	if result.Err != nil {
		return nil, result.Err
	}

	list := result.Value.(model.ListResponse)
	// Prefer the upstream's echoed window; fall back to the one requested
	// when the envelope omits it.
	if list.Limit != nil && *list.Limit > 0 {
		limit = *list.Limit
	}
	if list.Offset != nil && *list.Offset >= 0 {
		offset = *list.Offset
	}

	return &PlanetListPage{
		Items: list.Items,
		Meta:  model.NewPageMeta(list.Total, limit, offset),
		Form:  params.ToForm(params.Clean(filter)),
		Query: req.CacheKey(),
		Stale: result.Stale,
	}, nil
}

// GetPlanet serves one record by id through the cache.
func (p *Provider) GetPlanet(ctx context.Context, id int64) (*PlanetPage, error) {
	key := "id=" + strconv.FormatInt(id, 10)
	result := p.store.Query(ctx, resDetail, key, func(ctx context.Context) (any, error) {
		raw, err := p.catalog.GetPlanet(ctx, id)
		if err != nil {
			return nil, err
		}
		planet, err := validate.Planet(raw)
		if err != nil {
			p.recordValidationFailure("planet")
			return nil, err
		}
		return planet, nil
	})
	if result.Err != nil {
		return nil, result.Err
	}
	return &PlanetPage{Planet: result.Value.(model.PlanetRecord), Stale: result.Stale}, nil
}

// GetPlanetByName serves one record by exact name through the cache.
func (p *Provider) GetPlanetByName(ctx context.Context, name string) (*PlanetPage, error) {
	if name == "" {
		return nil, model.NewBadRequestError("planet name must not be empty")
	}
	key := "name=" + url.QueryEscape(name)
	result := p.store.Query(ctx, resDetail, key, func(ctx context.Context) (any, error) {
		raw, err := p.catalog.GetPlanetByName(ctx, name)
		if err != nil {
			return nil, err
		}
		planet, err := validate.Planet(raw)
		if err != nil {
			p.recordValidationFailure("planet")
			return nil, err
		}
		return planet, nil
	})
	if result.Err != nil {
		return nil, result.Err
	}
	return &PlanetPage{Planet: result.Value.(model.PlanetRecord), Stale: result.Stale}, nil
}

// DeletedPlanets serves the soft-deleted records through the cache. The
// upstream decides whether the configured admin key (if any) grants access.
func (p *Provider) DeletedPlanets(ctx context.Context) (*DeletedPlanetsPage, error) {
	result := p.store.Query(ctx, resDeleted, "", func(ctx context.Context) (any, error) {
		raw, err := p.catalog.DeletedPlanets(ctx)
		if err != nil {
			return nil, err
		}
		items, err := validate.Planets(raw)
		if err != nil {
			p.recordValidationFailure("deleted")
			return nil, err
		}
		return items, nil
	})
	if result.Err != nil {
		return nil, result.Err
	}
	items := result.Value.([]model.PlanetRecord)
	return &DeletedPlanetsPage{Items: items, Stale: result.Stale}, nil
}
