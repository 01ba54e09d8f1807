package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/orbitfold/exoview/internal/config"
	"github.com/orbitfold/exoview/internal/explorer"
	"github.com/orbitfold/exoview/internal/observability"
	"github.com/orbitfold/exoview/internal/pages"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
// Explorer may be nil when the catalogue's OpenAPI document could not be
// loaded at startup; the explorer endpoint then reports unavailable while
// everything else keeps working.
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	Pages    *pages.Provider
	Explorer *explorer.Index
	Metrics  *observability.Metrics
	Ready    observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics bypass the per-request
// tracing, metrics, timeout, and logging layers.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(Recovery(deps.Logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	r.Get("/ui/health", observability.HandleHealth())
	r.Get("/ui/ready", observability.HandleReady(deps.Ready))
	if deps.Config.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, observability.Handler())
	}

	h := &handlers{pages: deps.Pages, explorer: deps.Explorer}

	r.Group(func(r chi.Router) {
		r.Use(observability.TracingMiddleware)
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(deps.Logger))

		r.Get("/ui/planets", h.listPlanets)
		r.Post("/ui/planets", h.createPlanet)
		r.Get("/ui/planets/deleted", h.deletedPlanets)
		r.Get("/ui/planets/by-name/{name}", h.planetByName)
		r.Get("/ui/planets/{id}", h.getPlanet)
		r.Delete("/ui/planets/{id}", h.deletePlanet)

		r.Get("/ui/dashboard", h.dashboard)
		r.Get("/ui/dashboard/methods/{method}", h.methodStats)
		r.Get("/ui/discovery", h.discovery)
		r.Get("/ui/explorer", h.explorerIndex)
	})

	return r
}
