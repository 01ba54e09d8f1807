package params

import (
	"net/url"
	"testing"

	"github.com/orbitfold/exoview/model"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func sampleFilter() model.FilterState {
	return model.FilterState{
		Name:             "Kepler-22 b",
		DiscoveryMethod:  "Transit",
		MinYear:          fptr(2009),
		MaxYear:          fptr(2018),
		MinRadius:        fptr(0.5),
		MaxRadius:        fptr(2.4),
		MinStellarTemp:   fptr(4100),
		Limit:            iptr(50),
		Offset:           iptr(100),
		SortField:        "disc_year",
		SortOrder:        "desc",
		IncludeDeleted:   true,
	}
}

func TestDecodeEncode_roundTrip(t *testing.T) {
	f := sampleFilter()
	got := Decode(Encode(f, nil))

	if got.Name != f.Name {
		t.Errorf("Name = %q, want %q", got.Name, f.Name)
	}
	if got.DiscoveryMethod != f.DiscoveryMethod {
		t.Errorf("DiscoveryMethod = %q, want %q", got.DiscoveryMethod, f.DiscoveryMethod)
	}
	for _, c := range []struct {
		name     string
		got, want *float64
	}{
		{"MinYear", got.MinYear, f.MinYear},
		{"MaxYear", got.MaxYear, f.MaxYear},
		{"MinRadius", got.MinRadius, f.MinRadius},
		{"MaxRadius", got.MaxRadius, f.MaxRadius},
		{"MinStellarTemp", got.MinStellarTemp, f.MinStellarTemp},
		{"MinMass", got.MinMass, f.MinMass},
	} {
		switch {
		case c.want == nil && c.got != nil:
			t.Errorf("%s = %v, want absent", c.name, *c.got)
		case c.want != nil && c.got == nil:
			t.Errorf("%s absent, want %v", c.name, *c.want)
		case c.want != nil && *c.got != *c.want:
			t.Errorf("%s = %v, want %v", c.name, *c.got, *c.want)
		}
	}
	if got.Limit == nil || *got.Limit != 50 {
		t.Errorf("Limit = %v, want 50", got.Limit)
	}
	if got.Offset == nil || *got.Offset != 100 {
		t.Errorf("Offset = %v, want 100", got.Offset)
	}
	if got.SortField != "disc_year" || got.SortOrder != "desc" {
		t.Errorf("sort = %q/%q, want disc_year/desc", got.SortField, got.SortOrder)
	}
	if !got.IncludeDeleted {
		t.Error("IncludeDeleted lost in round trip")
	}
}

func TestDecode_discardsInvalidValues(t *testing.T) {
	q := url.Values{}
	q.Set("min_year", "NaN")
	q.Set("max_year", "+Inf")
	q.Set("min_radius", "not-a-number")
	q.Set("limit", "twenty")
	q.Set("offset", "")
	q.Set("sort_by", "favourite_colour")
	q.Set("sort_order", "sideways")

	f := Decode(q)

	if f.MinYear != nil || f.MaxYear != nil || f.MinRadius != nil {
		t.Errorf("non-finite values should decode as absent: %+v", f)
	}
	if f.Limit != nil {
		t.Errorf("Limit = %v, want absent for non-numeric input", *f.Limit)
	}
	if f.Offset != nil {
		t.Errorf("Offset = %v, want absent for empty input", *f.Offset)
	}
	if f.SortField != "" {
		t.Errorf("SortField = %q, want discarded", f.SortField)
	}
	if f.SortOrder != "" {
		t.Errorf("SortOrder = %q, want discarded", f.SortOrder)
	}
}

func TestEncode_omitsEmptyAfterTrim(t *testing.T) {
	f := model.FilterState{Name: "   ", DiscoveryMethod: "\t"}
	q := Encode(f, nil)

	if q.Has("name") {
		t.Errorf("name emitted for whitespace-only value: %q", q.Get("name"))
	}
	if q.Has("discovery_method") {
		t.Error("discovery_method emitted for whitespace-only value")
	}
	if len(q) != 0 {
		t.Errorf("query = %v, want empty", q)
	}
}

func TestEncode_overridesWinLast(t *testing.T) {
	f := sampleFilter()
	q := Encode(f, url.Values{"offset": {"0"}})

	if got := q.Get("offset"); got != "0" {
		t.Errorf("offset = %q, want override 0", got)
	}
	// Other fields untouched.
	if got := q.Get("limit"); got != "50" {
		t.Errorf("limit = %q, want 50", got)
	}
}

func TestEncode_overrideWithEmptyDeletesKey(t *testing.T) {
	f := sampleFilter()
	q := Encode(f, url.Values{"name": {""}})
	if q.Has("name") {
		t.Errorf("name = %q, want deleted by empty override", q.Get("name"))
	}
}

func TestDecode_includeDeletedLiteralTrue(t *testing.T) {
	for raw, want := range map[string]bool{"true": true, "TRUE": false, "1": false, "": false} {
		q := url.Values{"include_deleted": {raw}}
		if got := Decode(q).IncludeDeleted; got != want {
			t.Errorf("include_deleted=%q decoded as %v, want %v", raw, got, want)
		}
	}
}
