package pages

import (
	"context"
	"net/url"
	"strconv"

	"github.com/orbitfold/exoview/internal/dataaccess"
	"github.com/orbitfold/exoview/internal/validate"
	"github.com/orbitfold/exoview/model"
)

var resDiscovery = dataaccess.Resource{Family: discoveryFamily, Name: "chart"}

// DiscoveryPage carries one discovery chart dataset.
type DiscoveryPage struct {
	Dataset model.DiscoveryDataset `json:"dataset"`
	Stale   bool                   `json:"stale,omitempty"`
}

// Discovery parses the chart query parameters and serves the dataset through
// the cache. Bins and sigma are optional; malformed values are rejected as
// BAD_REQUEST rather than silently dropped, since the chart shape depends on
// them.
func (p *Provider) Discovery(ctx context.Context, query url.Values) (*DiscoveryPage, error) {
	chart := query.Get("chart")
	if chart == "" {
		return nil, model.NewBadRequestError("chart parameter is required")
	}

	var bins *int
	if raw := query.Get("bins"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, model.NewBadRequestError("bins must be an integer")
		}
		bins = &n
	}
	var sigma *float64
	if raw := query.Get("sigma"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, model.NewBadRequestError("sigma must be a number")
		}
		sigma = &v
	}

	key := url.Values{}
	key.Set("chart", chart)
	if bins != nil {
		key.Set("bins", strconv.Itoa(*bins))
	}
	if sigma != nil {
		key.Set("sigma", strconv.FormatFloat(*sigma, 'g', -1, 64))
	}

	result := p.store.Query(ctx, resDiscovery, key.Encode(), func(ctx context.Context) (any, error) {
		raw, err := p.catalog.Discovery(ctx, chart, bins, sigma)
		if err != nil {
			return nil, err
		}
		dataset, err := validate.Discovery(raw)
		if err != nil {
			p.recordValidationFailure("discovery")
			return nil, err
		}
		return dataset, nil
	})
	if result.Err != nil {
		return nil, result.Err
	}
	return &DiscoveryPage{Dataset: result.Value.(model.DiscoveryDataset), Stale: result.Stale}, nil
}
