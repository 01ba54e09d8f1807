package model

import "time"

// PlanetRecord is a catalogue entry. The backend assigns the ID; records are
// created via the create mutation and soft-deleted via the delete mutation,
// never mutated in place by this service.
//
// Extra preserves response fields that are not explicitly modelled, so
// additive backend changes survive a round trip through the BFF.
type PlanetRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	DiscoveryMethod *string  `json:"discovery_method,omitempty"`
	DiscoveryYear   *float64 `json:"disc_year,omitempty"`

	OrbitalPeriodDays *float64 `json:"orbital_period,omitempty"`
	RadiusEarth       *float64 `json:"radius,omitempty"`
	MassEarth         *float64 `json:"mass,omitempty"`

	StellarTempK     *float64 `json:"st_temp,omitempty"`
	StellarRadiusSun *float64 `json:"st_radius,omitempty"`
	StellarMassSun   *float64 `json:"st_mass,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// Deleted reports whether the record carries a soft-delete marker.
func (p PlanetRecord) Deleted() bool {
	return p.DeletedAt != nil
}

// ListResponse is the planet-list envelope. Items are ordered by the
// requested sort field and order; Total counts every record matching the
// filters, ignoring pagination. Limit and Offset are nil when the upstream
// omitted them; the caller substitutes the window it requested. When Limit
// is present, len(Items) <= *Limit.
type ListResponse struct {
	Items  []PlanetRecord `json:"items"`
	Total  int64          `json:"total"`
	Limit  *int           `json:"limit,omitempty"`
	Offset *int           `json:"offset,omitempty"`
}

// CountResult is a normalised count payload. The wire shape may be either
// {"total": n} or {"count": n}; both decode to Total.
type CountResult struct {
	Total int64 `json:"total"`
}

// CatalogStats holds the aggregate figures shown on the dashboard KPI cards.
type CatalogStats struct {
	Total            int64    `json:"total"`
	MinYear          *float64 `json:"min_year,omitempty"`
	MaxYear          *float64 `json:"max_year,omitempty"`
	AvgOrbitalPeriod *float64 `json:"avg_orbital_period,omitempty"`
	AvgRadius        *float64 `json:"avg_radius,omitempty"`
	AvgMass          *float64 `json:"avg_mass,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// MethodCount is one discovery-method bucket.
type MethodCount struct {
	Method string `json:"method"`
	Count  int64  `json:"count"`
}

// MethodStats carries per-method aggregates.
type MethodStats struct {
	Method string       `json:"method"`
	Stats  CatalogStats `json:"stats"`
}

// TimelinePoint is one year bucket of the discovery timeline chart.
type TimelinePoint struct {
	Year  int   `json:"year"`
	Count int64 `json:"count"`
}

// DiscoveryPoint is one labelled value of a discovery visualisation dataset.
type DiscoveryPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// DiscoveryDataset is the payload behind the discovery charts
// (histogram, per-year, per-method).
type DiscoveryDataset struct {
	Chart  string           `json:"chart"`
	Points []DiscoveryPoint `json:"points"`

	Extra map[string]any `json:"extra,omitempty"`
}
