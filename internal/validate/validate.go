// Package validate narrows raw JSON payloads from the catalogue API into
// typed domain records. The policy is tolerant but strict: required fields
// must be present with the right primitive type, optional fields are
// type-checked when present, and any field that is not explicitly modelled is
// preserved on the record's Extra bag rather than dropped.
package validate

import (
	"fmt"
	"time"

	"github.com/orbitfold/exoview/model"
)

// countAliases is the explicit mapping table for the count-payload shape
// alternation: both {"total": n} and {"count": n} normalise to Total.
// Order matters: the first present key wins.
var countAliases = []string{"total", "count"}

// planetFields is the set of PlanetRecord keys that are modelled explicitly;
// everything else lands in Extra.
var planetFields = map[string]bool{
	"id": true, "name": true,
	"discovery_method": true, "disc_year": true,
	"orbital_period": true, "radius": true, "mass": true,
	"st_temp": true, "st_radius": true, "st_mass": true,
	"created_at": true, "updated_at": true, "deleted_at": true,
}

// Planet validates a raw planet object. ID and name are required; every
// other modelled field is optional but type-checked when present.
func Planet(raw any) (model.PlanetRecord, error) {
	obj, err := asObject("planet", raw)
	if err != nil {
		return model.PlanetRecord{}, err
	}

	var errs []model.FieldError
	var p model.PlanetRecord

	if id, ok := asNumber(obj["id"]); ok {
		p.ID = int64(id)
	} else {
		errs = append(errs, missing("id", "number"))
	}
	if name, ok := obj["name"].(string); ok && name != "" {
		p.Name = name
	} else {
		errs = append(errs, missing("name", "non-empty string"))
	}

	p.DiscoveryMethod = optString(obj, "discovery_method", &errs)
	p.DiscoveryYear = optNumber(obj, "disc_year", &errs)
	p.OrbitalPeriodDays = optNumber(obj, "orbital_period", &errs)
	p.RadiusEarth = optNumber(obj, "radius", &errs)
	p.MassEarth = optNumber(obj, "mass", &errs)
	p.StellarTempK = optNumber(obj, "st_temp", &errs)
	p.StellarRadiusSun = optNumber(obj, "st_radius", &errs)
	p.StellarMassSun = optNumber(obj, "st_mass", &errs)
	p.CreatedAt = optTime(obj, "created_at", &errs)
	p.UpdatedAt = optTime(obj, "updated_at", &errs)
	p.DeletedAt = optTime(obj, "deleted_at", &errs)

	for k, v := range obj {
		if !planetFields[k] {
			if p.Extra == nil {
				p.Extra = make(map[string]any)
			}
			p.Extra[k] = v
		}
	}

	if len(errs) > 0 {
		return model.PlanetRecord{}, model.NewUpstreamInvalidError("planet", errs)
	}
	return p, nil
}

// List validates a planet-list envelope. Every item is validated
// independently; a single malformed item fails the whole response, because a
// partially typed list is worse than a visible error. Limit and offset stay
// nil when the envelope omits them so the caller can substitute the window it
// requested; an envelope carrying more items than its echoed limit fails.
func List(raw any) (model.ListResponse, error) {
	obj, err := asObject("list", raw)
	if err != nil {
		return model.ListResponse{}, err
	}

	rawItems, ok := obj["items"].([]any)
	if !ok {
		return model.ListResponse{}, model.NewUpstreamInvalidError("list", []model.FieldError{
			missing("items", "array"),
		})
	}

	total, ok := countFrom(obj)
	if !ok {
		return model.ListResponse{}, model.NewUpstreamInvalidError("list", []model.FieldError{
			missing("total", "number"),
		})
	}

	out := model.ListResponse{
		Items: make([]model.PlanetRecord, 0, len(rawItems)),
		Total: total,
	}

	for i, item := range rawItems {
		p, err := Planet(item)
		if err != nil {
			ve := err.(*model.ErrorEnvelope)
			return model.ListResponse{}, model.NewUpstreamInvalidError("list",
				append([]model.FieldError{{
					Field:   fmt.Sprintf("items[%d]", i),
					Code:    "INVALID_ITEM",
					Message: ve.Message,
				}}, ve.Details...))
		}
		out.Items = append(out.Items, p)
	}

	if v, ok := asNumber(obj["limit"]); ok {
		limit := int(v)
		out.Limit = &limit
	}
	if v, ok := asNumber(obj["offset"]); ok {
		offset := int(v)
		out.Offset = &offset
	}

	if out.Limit != nil && len(out.Items) > *out.Limit {
		return model.ListResponse{}, model.NewUpstreamInvalidError("list", []model.FieldError{{
			Field:   "items",
			Code:    "TOO_MANY_ITEMS",
			Message: fmt.Sprintf("%d items exceed the echoed limit %d", len(out.Items), *out.Limit),
		}})
	}

	return out, nil
}

// Planets validates a plain collection of planet records. The deleted-records
// listing serves a bare JSON array rather than a list envelope, so this
// accepts both shapes and skips the total bookkeeping.
func Planets(raw any) ([]model.PlanetRecord, error) {
	rawItems, ok := rawList(raw)
	if !ok {
		return nil, model.NewUpstreamInvalidError("planets", []model.FieldError{
			wrongType("(root)", "array or {items} envelope"),
		})
	}

	out := make([]model.PlanetRecord, 0, len(rawItems))
	for i, item := range rawItems {
		p, err := Planet(item)
		if err != nil {
			ve := err.(*model.ErrorEnvelope)
			return nil, model.NewUpstreamInvalidError("planets",
				append([]model.FieldError{{
					Field:   fmt.Sprintf("items[%d]", i),
					Code:    "INVALID_ITEM",
					Message: ve.Message,
				}}, ve.Details...))
		}
		out = append(out, p)
	}
	return out, nil
}

// Count validates a count payload, accepting either alias shape.
func Count(raw any) (model.CountResult, error) {
	obj, err := asObject("count", raw)
	if err != nil {
		return model.CountResult{}, err
	}
	total, ok := countFrom(obj)
	if !ok {
		return model.CountResult{}, model.NewUpstreamInvalidError("count", []model.FieldError{
			missing("total", "number (total or count)"),
		})
	}
	return model.CountResult{Total: total}, nil
}

// countFrom resolves the count aliases against an object.
func countFrom(obj map[string]any) (int64, bool) {
	for _, key := range countAliases {
		if v, ok := asNumber(obj[key]); ok {
			return int64(v), true
		}
	}
	return 0, false
}

// statsFields mirrors planetFields for CatalogStats.
var statsFields = map[string]bool{
	"total": true, "count": true,
	"min_year": true, "max_year": true,
	"avg_orbital_period": true, "avg_radius": true, "avg_mass": true,
}

// Stats validates the aggregate statistics payload.
func Stats(raw any) (model.CatalogStats, error) {
	obj, err := asObject("stats", raw)
	if err != nil {
		return model.CatalogStats{}, err
	}

	total, ok := countFrom(obj)
	if !ok {
		return model.CatalogStats{}, model.NewUpstreamInvalidError("stats", []model.FieldError{
			missing("total", "number (total or count)"),
		})
	}

	var errs []model.FieldError
	s := model.CatalogStats{Total: total}
	s.MinYear = optNumber(obj, "min_year", &errs)
	s.MaxYear = optNumber(obj, "max_year", &errs)
	s.AvgOrbitalPeriod = optNumber(obj, "avg_orbital_period", &errs)
	s.AvgRadius = optNumber(obj, "avg_radius", &errs)
	s.AvgMass = optNumber(obj, "avg_mass", &errs)

	for k, v := range obj {
		if !statsFields[k] {
			if s.Extra == nil {
				s.Extra = make(map[string]any)
			}
			s.Extra[k] = v
		}
	}

	if len(errs) > 0 {
		return model.CatalogStats{}, model.NewUpstreamInvalidError("stats", errs)
	}
	return s, nil
}

// MethodCounts validates the discovery-method histogram. The payload is a
// list of {method, count} objects.
func MethodCounts(raw any) ([]model.MethodCount, error) {
	items, ok := rawList(raw)
	if !ok {
		return nil, model.NewUpstreamInvalidError("method-counts", []model.FieldError{
			missing("items", "array"),
		})
	}

	out := make([]model.MethodCount, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, model.NewUpstreamInvalidError("method-counts", []model.FieldError{
				wrongType(fmt.Sprintf("items[%d]", i), "object"),
			})
		}
		method, ok := obj["method"].(string)
		if !ok {
			return nil, model.NewUpstreamInvalidError("method-counts", []model.FieldError{
				missing(fmt.Sprintf("items[%d].method", i), "string"),
			})
		}
		count, ok := countFrom(obj)
		if !ok {
			return nil, model.NewUpstreamInvalidError("method-counts", []model.FieldError{
				missing(fmt.Sprintf("items[%d].count", i), "number"),
			})
		}
		out = append(out, model.MethodCount{Method: method, Count: count})
	}
	return out, nil
}

// MethodStats validates a per-method statistics payload.
func MethodStats(method string, raw any) (model.MethodStats, error) {
	s, err := Stats(raw)
	if err != nil {
		return model.MethodStats{}, err
	}
	return model.MethodStats{Method: method, Stats: s}, nil
}

// Timeline validates the discovery timeline: a list of {year, count} buckets.
func Timeline(raw any) ([]model.TimelinePoint, error) {
	items, ok := rawList(raw)
	if !ok {
		return nil, model.NewUpstreamInvalidError("timeline", []model.FieldError{
			missing("items", "array"),
		})
	}

	out := make([]model.TimelinePoint, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, model.NewUpstreamInvalidError("timeline", []model.FieldError{
				wrongType(fmt.Sprintf("items[%d]", i), "object"),
			})
		}
		year, ok := asNumber(obj["year"])
		if !ok {
			return nil, model.NewUpstreamInvalidError("timeline", []model.FieldError{
				missing(fmt.Sprintf("items[%d].year", i), "number"),
			})
		}
		count, ok := countFrom(obj)
		if !ok {
			return nil, model.NewUpstreamInvalidError("timeline", []model.FieldError{
				missing(fmt.Sprintf("items[%d].count", i), "number"),
			})
		}
		out = append(out, model.TimelinePoint{Year: int(year), Count: count})
	}
	return out, nil
}

// Discovery validates a discovery chart dataset: {chart, points:[{label,value}]}.
func Discovery(raw any) (model.DiscoveryDataset, error) {
	obj, err := asObject("discovery", raw)
	if err != nil {
		return model.DiscoveryDataset{}, err
	}

	chart, ok := obj["chart"].(string)
	if !ok {
		return model.DiscoveryDataset{}, model.NewUpstreamInvalidError("discovery", []model.FieldError{
			missing("chart", "string"),
		})
	}
	rawPoints, ok := obj["points"].([]any)
	if !ok {
		return model.DiscoveryDataset{}, model.NewUpstreamInvalidError("discovery", []model.FieldError{
			missing("points", "array"),
		})
	}

	d := model.DiscoveryDataset{Chart: chart, Points: make([]model.DiscoveryPoint, 0, len(rawPoints))}
	for i, item := range rawPoints {
		pobj, ok := item.(map[string]any)
		if !ok {
			return model.DiscoveryDataset{}, model.NewUpstreamInvalidError("discovery", []model.FieldError{
				wrongType(fmt.Sprintf("points[%d]", i), "object"),
			})
		}
		label, ok := pobj["label"].(string)
		if !ok {
			return model.DiscoveryDataset{}, model.NewUpstreamInvalidError("discovery", []model.FieldError{
				missing(fmt.Sprintf("points[%d].label", i), "string"),
			})
		}
		value, ok := asNumber(pobj["value"])
		if !ok {
			return model.DiscoveryDataset{}, model.NewUpstreamInvalidError("discovery", []model.FieldError{
				missing(fmt.Sprintf("points[%d].value", i), "number"),
			})
		}
		d.Points = append(d.Points, model.DiscoveryPoint{Label: label, Value: value})
	}

	for k, v := range obj {
		if k != "chart" && k != "points" {
			if d.Extra == nil {
				d.Extra = make(map[string]any)
			}
			d.Extra[k] = v
		}
	}

	return d, nil
}

// --- narrowing helpers ---

func asObject(kind string, raw any) (map[string]any, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, model.NewUpstreamInvalidError(kind, []model.FieldError{
			wrongType("(root)", "object"),
		})
	}
	return obj, nil
}

// rawList accepts either a bare JSON array or an {items: [...]} envelope.
func rawList(raw any) ([]any, bool) {
	if items, ok := raw.([]any); ok {
		return items, true
	}
	if obj, ok := raw.(map[string]any); ok {
		if items, ok := obj["items"].([]any); ok {
			return items, true
		}
	}
	return nil, false
}

// asNumber narrows a decoded JSON value to float64.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// optNumber reads an optional numeric field, recording a field error when the
// value is present with the wrong type. Explicit null counts as absent.
func optNumber(obj map[string]any, key string, errs *[]model.FieldError) *float64 {
	v, present := obj[key]
	if !present || v == nil {
		return nil
	}
	n, ok := asNumber(v)
	if !ok {
		*errs = append(*errs, wrongType(key, "number"))
		return nil
	}
	return &n
}

// optString reads an optional string field.
func optString(obj map[string]any, key string, errs *[]model.FieldError) *string {
	v, present := obj[key]
	if !present || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		*errs = append(*errs, wrongType(key, "string"))
		return nil
	}
	return &s
}

// optTime reads an optional RFC 3339 timestamp field.
func optTime(obj map[string]any, key string, errs *[]model.FieldError) *time.Time {
	v, present := obj[key]
	if !present || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		*errs = append(*errs, wrongType(key, "RFC 3339 string"))
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		*errs = append(*errs, model.FieldError{
			Field: key, Code: "BAD_TIMESTAMP",
			Message: fmt.Sprintf("%s is not an RFC 3339 timestamp", key),
		})
		return nil
	}
	return &t
}

func missing(field, want string) model.FieldError {
	return model.FieldError{
		Field: field, Code: "MISSING_OR_WRONG_TYPE",
		Message: fmt.Sprintf("%s must be present as %s", field, want),
	}
}

func wrongType(field, want string) model.FieldError {
	return model.FieldError{
		Field: field, Code: "WRONG_TYPE",
		Message: fmt.Sprintf("%s must be %s", field, want),
	}
}
