// Package params converts between the URL query string, the typed
// FilterState, the editable FormState, and the canonical normalised request
// used as both wire query and cache key. Everything here is pure: no I/O,
// no shared state.
package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/orbitfold/exoview/model"
)

// Query parameter keys recognised by the codec. They match the catalogue
// API's list parameters, so the normalised form doubles as the wire query.
const (
	KeyName            = "name"
	KeyDiscoveryMethod = "discovery_method"
	KeyLimit           = "limit"
	KeyOffset          = "offset"
	KeySortField       = "sort_by"
	KeySortOrder       = "sort_order"
	KeyIncludeDeleted  = "include_deleted"
)

// rangeFields maps every numeric range key to its FilterState field.
// Decode, Encode, ToForm, FromForm and Clean all iterate this table so a new
// range filter needs exactly one entry here.
var rangeFields = []struct {
	key   string
	field func(*model.FilterState) **float64
}{
	{"min_year", func(f *model.FilterState) **float64 { return &f.MinYear }},
	{"max_year", func(f *model.FilterState) **float64 { return &f.MaxYear }},
	{"min_orbital_period", func(f *model.FilterState) **float64 { return &f.MinOrbitalPeriod }},
	{"max_orbital_period", func(f *model.FilterState) **float64 { return &f.MaxOrbitalPeriod }},
	{"min_radius", func(f *model.FilterState) **float64 { return &f.MinRadius }},
	{"max_radius", func(f *model.FilterState) **float64 { return &f.MaxRadius }},
	{"min_mass", func(f *model.FilterState) **float64 { return &f.MinMass }},
	{"max_mass", func(f *model.FilterState) **float64 { return &f.MaxMass }},
	{"min_st_temp", func(f *model.FilterState) **float64 { return &f.MinStellarTemp }},
	{"max_st_temp", func(f *model.FilterState) **float64 { return &f.MaxStellarTemp }},
	{"min_st_radius", func(f *model.FilterState) **float64 { return &f.MinStellarRadius }},
	{"max_st_radius", func(f *model.FilterState) **float64 { return &f.MaxStellarRadius }},
	{"min_st_mass", func(f *model.FilterState) **float64 { return &f.MinStellarMass }},
	{"max_st_mass", func(f *model.FilterState) **float64 { return &f.MaxStellarMass }},
}

// Decode reads the recognised keys from a URL query into a FilterState.
// Numeric keys parse with a finite-number check; non-finite, empty, or
// malformed values leave the field absent rather than zero. An unknown sort
// field or sort order is discarded. A non-numeric limit or offset is treated
// as absent, so the page default applies downstream.
func Decode(q url.Values) model.FilterState {
	var f model.FilterState

	f.Name = q.Get(KeyName)
	f.DiscoveryMethod = q.Get(KeyDiscoveryMethod)

	for _, rf := range rangeFields {
		if v, ok := parseFinite(q.Get(rf.key)); ok {
			*rf.field(&f) = ptr(v)
		}
	}

	if v, ok := parseInt(q.Get(KeyLimit)); ok {
		f.Limit = &v
	}
	if v, ok := parseInt(q.Get(KeyOffset)); ok {
		f.Offset = &v
	}

	if s := q.Get(KeySortField); model.ValidSortField(s) {
		f.SortField = s
	}
	if s := q.Get(KeySortOrder); model.ValidSortOrder(s) {
		f.SortOrder = s
	}

	f.IncludeDeleted = q.Get(KeyIncludeDeleted) == "true"

	return f
}

// Encode serialises a FilterState into URL query values. A key is emitted
// only when its source value is present and, for strings, non-empty after
// trimming. Overrides are applied last and unconditionally win, which lets
// callers reset the offset on filter changes without special-casing.
func Encode(f model.FilterState, overrides url.Values) url.Values {
	q := url.Values{}

	setTrimmed(q, KeyName, f.Name)
	setTrimmed(q, KeyDiscoveryMethod, f.DiscoveryMethod)

	for _, rf := range rangeFields {
		if v := *rf.field(&f); v != nil && isFinite(*v) {
			q.Set(rf.key, formatFloat(*v))
		}
	}

	if f.Limit != nil {
		q.Set(KeyLimit, strconv.Itoa(*f.Limit))
	}
	if f.Offset != nil {
		q.Set(KeyOffset, strconv.Itoa(*f.Offset))
	}

	if model.ValidSortField(f.SortField) {
		q.Set(KeySortField, f.SortField)
	}
	if model.ValidSortOrder(f.SortOrder) {
		q.Set(KeySortOrder, f.SortOrder)
	}

	if f.IncludeDeleted {
		q.Set(KeyIncludeDeleted, "true")
	}

	for k, vs := range overrides {
		if len(vs) == 0 || vs[0] == "" {
			q.Del(k)
			continue
		}
		q.Set(k, vs[0])
	}

	return q
}

// setTrimmed sets key only when value is non-empty after trimming.
func setTrimmed(q url.Values, key, value string) {
	if t := strings.TrimSpace(value); t != "" {
		q.Set(key, t)
	}
}

// parseFinite parses a string as a finite float64. Returns ok=false for
// empty strings, parse failures, NaN and infinities.
func parseFinite(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !isFinite(v) {
		return 0, false
	}
	return v, true
}

// parseInt parses a string as an integer, accepting float syntax and
// flooring it. Returns ok=false for anything non-finite.
func parseInt(s string) (int, bool) {
	v, ok := parseFinite(s)
	if !ok {
		return 0, false
	}
	return int(math.Floor(v)), true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// formatFloat renders a float with the shortest locale-free representation
// that re-parses to the same value.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func ptr[T any](v T) *T {
	return &v
}
