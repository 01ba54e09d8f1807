package params

import (
	"math"
	"testing"

	"github.com/orbitfold/exoview/model"
)

func TestClean_idempotent(t *testing.T) {
	nan := math.NaN()
	f := model.FilterState{
		Name:      "  Kepler ",
		MinYear:   &nan,
		MaxRadius: fptr(1.5),
		Limit:     iptr(-3),
		Offset:    iptr(-10),
		SortField: "mystery",
		SortOrder: "desc",
	}

	once := Clean(f)
	twice := Clean(once)

	if Normalise(once).CacheKey() != Normalise(twice).CacheKey() {
		t.Errorf("Clean is not idempotent: %q vs %q",
			Normalise(once).CacheKey(), Normalise(twice).CacheKey())
	}
	if once.Name != "Kepler" {
		t.Errorf("Name = %q, want trimmed", once.Name)
	}
	if once.MinYear != nil {
		t.Errorf("MinYear = %v, want dropped NaN", *once.MinYear)
	}
	if once.Limit == nil || *once.Limit != 1 {
		t.Errorf("Limit = %v, want clamped to 1", once.Limit)
	}
	if once.Offset == nil || *once.Offset != 0 {
		t.Errorf("Offset = %v, want clamped to 0", once.Offset)
	}
	if once.SortField != "" {
		t.Errorf("SortField = %q, want cleared", once.SortField)
	}
	if once.SortOrder != "desc" {
		t.Errorf("SortOrder = %q, want kept", once.SortOrder)
	}
}

func TestNormalise_idempotent(t *testing.T) {
	f := sampleFilter()
	first := Normalise(f)
	second := Normalise(Clean(f))

	if first.CacheKey() != second.CacheKey() {
		t.Errorf("normalise not idempotent: %q vs %q", first.CacheKey(), second.CacheKey())
	}
}

func TestNormalise_whitespaceCollapsesToSameKey(t *testing.T) {
	a := model.FilterState{Name: "  Kepler "}
	b := model.FilterState{Name: "Kepler"}

	if Normalise(a).CacheKey() != Normalise(b).CacheKey() {
		t.Errorf("whitespace-differing states produced different keys: %q vs %q",
			Normalise(a).CacheKey(), Normalise(b).CacheKey())
	}
}

func TestNormalise_emptyStringOmitted(t *testing.T) {
	r := Normalise(model.FilterState{Name: "   ", DiscoveryMethod: ""})
	if r.CacheKey() != "" {
		t.Errorf("CacheKey = %q, want empty for all-absent filter", r.CacheKey())
	}
}

func TestNormalise_includeDeletedOnlyWhenTrue(t *testing.T) {
	withFlag := Normalise(model.FilterState{IncludeDeleted: true})
	if withFlag.Values().Get(KeyIncludeDeleted) != "true" {
		t.Error("include_deleted missing when true")
	}
	without := Normalise(model.FilterState{IncludeDeleted: false})
	if without.Values().Has(KeyIncludeDeleted) {
		t.Error("include_deleted emitted when false")
	}
}

func TestNormaliseWithDefaults_pinsWindow(t *testing.T) {
	r := NormaliseWithDefaults(model.FilterState{Name: "Kepler"})
	limit, offset := r.Window()
	if limit != model.DefaultLimit || offset != model.DefaultOffset {
		t.Errorf("window = %d/%d, want defaults %d/%d",
			limit, offset, model.DefaultLimit, model.DefaultOffset)
	}
	if r.Values().Get(KeyLimit) != "25" || r.Values().Get(KeyOffset) != "0" {
		t.Errorf("values = %v, want explicit limit/offset", r.Values())
	}
}

func TestCacheKey_sortedAndStable(t *testing.T) {
	f := sampleFilter()
	k1 := NormaliseWithDefaults(f).CacheKey()
	k2 := NormaliseWithDefaults(f).CacheKey()
	if k1 != k2 {
		t.Errorf("cache key not stable: %q vs %q", k1, k2)
	}
}
