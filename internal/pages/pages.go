// Package pages implements the page controllers behind the /ui endpoints.
// Each controller composes the parameter codec, the data access cache, the
// catalogue client, and the response validators into one page-shaped result.
package pages

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/orbitfold/exoview/internal/dataaccess"
)

// Catalog is the slice of the catalogue client the page controllers use.
type Catalog interface {
	ListPlanets(ctx context.Context, query url.Values) (any, error)
	CountPlanets(ctx context.Context) (any, error)
	Stats(ctx context.Context) (any, error)
	MethodCounts(ctx context.Context) (any, error)
	MethodStats(ctx context.Context, method string) (any, error)
	Timeline(ctx context.Context, startYear, endYear *int, includeDeleted bool) (any, error)
	GetPlanet(ctx context.Context, id int64) (any, error)
	GetPlanetByName(ctx context.Context, name string) (any, error)
	DeletedPlanets(ctx context.Context) (any, error)
	Discovery(ctx context.Context, chart string, bins *int, sigma *float64) (any, error)
	CreatePlanet(ctx context.Context, body map[string]any) (any, error)
	DeletePlanet(ctx context.Context, id int64) error
}

// Recorder receives page-level metrics. A nil Recorder disables recording.
type Recorder interface {
	RecordMutation(operation, status string)
	RecordIdempotentReplay()
	RecordInvalidation(family string)
	RecordValidationFailure(resource string)
}

// Cache resource families. Mutations invalidate planetsFamily; the dashboard
// aggregates live in their own family and refresh on their own clock.
const (
	planetsFamily   = "planets"
	dashboardFamily = "dashboard"
	discoveryFamily = "discovery"
)

// Provider wires the page controllers' dependencies together.
type Provider struct {
	catalog  Catalog
	store    *dataaccess.Store
	idem     IdempotencyStore
	idemTTL  time.Duration
	logger   *zap.Logger
	recorder Recorder
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithIdempotencyStore enables create-mutation deduplication.
func WithIdempotencyStore(store IdempotencyStore, ttl time.Duration) ProviderOption {
	return func(p *Provider) {
		p.idem = store
		if ttl > 0 {
			p.idemTTL = ttl
		}
	}
}

// WithRecorder attaches a page metrics recorder.
func WithRecorder(r Recorder) ProviderOption {
	return func(p *Provider) { p.recorder = r }
}

// NewProvider creates the page controller provider.
func NewProvider(catalog Catalog, store *dataaccess.Store, logger *zap.Logger, opts ...ProviderOption) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{
		catalog: catalog,
		store:   store,
		idemTTL: 24 * time.Hour,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) recordValidationFailure(resource string) {
	if p.recorder != nil {
		p.recorder.RecordValidationFailure(resource)
	}
}

func (p *Provider) recordMutation(operation, status string) {
	if p.recorder != nil {
		p.recorder.RecordMutation(operation, status)
	}
}

func (p *Provider) invalidate(family string) {
	p.store.Invalidate(family)
	if p.recorder != nil {
		p.recorder.RecordInvalidation(family)
	}
}
