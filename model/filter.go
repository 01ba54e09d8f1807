// Package model holds the domain types shared across the BFF: the planet
// catalogue records, the typed filter state mirrored in the URL query string,
// and the standard error envelope.
package model

// Sort orders accepted by the catalogue API.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Pagination defaults applied when the URL carries no usable value.
const (
	DefaultLimit  = 25
	DefaultOffset = 0
)

// SortFields is the fixed set of fields the planet list can be ordered by.
// Values outside this set are discarded during decoding and normalisation.
var SortFields = []string{
	"id",
	"name",
	"disc_year",
	"orbital_period",
	"radius",
	"mass",
	"st_temp",
	"st_radius",
	"st_mass",
	"created_at",
}

// ValidSortField reports whether field belongs to the allowed sort set.
func ValidSortField(field string) bool {
	for _, f := range SortFields {
		if f == field {
			return true
		}
	}
	return false
}

// ValidSortOrder reports whether order is one of the literal strings
// "asc" or "desc".
func ValidSortOrder(order string) bool {
	return order == SortAsc || order == SortDesc
}

// FilterState is the canonical, typed representation of a planet-list query.
// Optional fields are pointers: absent means "not filtered", never zero.
// Invariants: every present numeric field is finite, Offset is a non-negative
// integer and Limit is a positive integer. The params package enforces both
// when decoding and normalising.
type FilterState struct {
	Name            string
	DiscoveryMethod string

	MinYear          *float64
	MaxYear          *float64
	MinOrbitalPeriod *float64
	MaxOrbitalPeriod *float64
	MinRadius        *float64
	MaxRadius        *float64
	MinMass          *float64
	MaxMass          *float64
	MinStellarTemp   *float64
	MaxStellarTemp   *float64
	MinStellarRadius *float64
	MaxStellarRadius *float64
	MinStellarMass   *float64
	MaxStellarMass   *float64

	Limit  *int
	Offset *int

	SortField string
	SortOrder string

	IncludeDeleted bool
}

// FormState is the string-serialised, UI-editable mirror of FilterState.
// Every numeric and enum field is represented as text so text inputs can hold
// transient invalid input. Keys match the URL query parameter names.
// It is derived from FilterState on navigation and converted back only on
// explicit submit.
type FormState map[string]string
