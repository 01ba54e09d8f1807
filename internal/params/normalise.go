package params

import (
	"net/url"
	"strings"

	"github.com/orbitfold/exoview/model"
)

// NormalisedRequest is the sanitised, canonical form of a planet-list query.
// It is used verbatim as both the wire request query and the cache key, so
// two logically identical filter states collapse to one cache slot and one
// network fetch.
type NormalisedRequest struct {
	values url.Values
}

// CacheKey returns the canonical string form: keys sorted, values encoded.
func (r NormalisedRequest) CacheKey() string {
	return r.values.Encode()
}

// Values returns a copy of the wire query parameters.
func (r NormalisedRequest) Values() url.Values {
	out := make(url.Values, len(r.values))
	for k, vs := range r.values {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// Clean returns a FilterState with every field sanitised: strings trimmed
// (empty after trim becomes absent), non-finite numbers dropped, limit and
// offset floored and clamped to their minimums, and enum fields outside the
// allowed sets cleared. Clean is idempotent.
func Clean(f model.FilterState) model.FilterState {
	out := f

	out.Name = strings.TrimSpace(f.Name)
	out.DiscoveryMethod = strings.TrimSpace(f.DiscoveryMethod)

	for _, rf := range rangeFields {
		src := *rf.field(&f)
		dst := rf.field(&out)
		if src == nil || !isFinite(*src) {
			*dst = nil
			continue
		}
		*dst = ptr(*src)
	}

	out.Limit = clampInt(f.Limit, 1)
	out.Offset = clampInt(f.Offset, 0)

	if !model.ValidSortField(f.SortField) {
		out.SortField = ""
	}
	if !model.ValidSortOrder(f.SortOrder) {
		out.SortOrder = ""
	}

	return out
}

// clampInt floors the value at min, or drops it entirely when absent.
func clampInt(v *int, min int) *int {
	if v == nil {
		return nil
	}
	c := *v
	if c < min {
		c = min
	}
	return &c
}

// Normalise sanitises a FilterState into its canonical request form.
// Normalise(Clean(f)) and Normalise(f) produce the same value, and applying
// the pipeline twice changes nothing.
func Normalise(f model.FilterState) NormalisedRequest {
	return NormalisedRequest{values: Encode(Clean(f), nil)}
}

// NormaliseWithDefaults is Normalise with the page defaults substituted for
// absent pagination, so the key always pins an explicit window.
func NormaliseWithDefaults(f model.FilterState) NormalisedRequest {
	c := Clean(f)
	if c.Limit == nil {
		c.Limit = ptr(model.DefaultLimit)
	}
	if c.Offset == nil {
		c.Offset = ptr(model.DefaultOffset)
	}
	return NormalisedRequest{values: Encode(c, nil)}
}

// Window reports the limit and offset pinned in the normalised request,
// falling back to the page defaults.
func (r NormalisedRequest) Window() (limit, offset int) {
	limit = model.DefaultLimit
	offset = model.DefaultOffset
	if v, ok := parseInt(r.values.Get(KeyLimit)); ok && v >= 1 {
		limit = v
	}
	if v, ok := parseInt(r.values.Get(KeyOffset)); ok && v >= 0 {
		offset = v
	}
	return limit, offset
}
