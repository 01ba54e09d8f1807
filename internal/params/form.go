package params

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orbitfold/exoview/model"
)

// formKeys is every key a FormState carries, in display order. ToForm emits
// all of them (absent fields as empty strings) so the UI can bind one input
// per key without probing.
var formKeys = func() []string {
	keys := []string{KeyName, KeyDiscoveryMethod}
	for _, rf := range rangeFields {
		keys = append(keys, rf.key)
	}
	return append(keys, KeyLimit, KeyOffset, KeySortField, KeySortOrder, KeyIncludeDeleted)
}()

// FormKeys returns the full set of form field keys.
func FormKeys() []string {
	out := make([]string, len(formKeys))
	copy(out, formKeys)
	return out
}

// ToForm derives the editable string mirror of a FilterState. Numbers render
// via locale-free string conversion, so FromForm recovers the same finite
// value for every representable input.
func ToForm(f model.FilterState) model.FormState {
	form := make(model.FormState, len(formKeys))
	for _, k := range formKeys {
		form[k] = ""
	}

	form[KeyName] = f.Name
	form[KeyDiscoveryMethod] = f.DiscoveryMethod

	for _, rf := range rangeFields {
		if v := *rf.field(&f); v != nil {
			form[rf.key] = formatFloat(*v)
		}
	}

	if f.Limit != nil {
		form[KeyLimit] = strconv.Itoa(*f.Limit)
	}
	if f.Offset != nil {
		form[KeyOffset] = strconv.Itoa(*f.Offset)
	}

	form[KeySortField] = f.SortField
	form[KeySortOrder] = f.SortOrder

	if f.IncludeDeleted {
		form[KeyIncludeDeleted] = "true"
	}

	return form
}

// FromForm converts edited form input back into a FilterState. Unlike Decode,
// malformed numeric input is reported as a field error instead of silently
// dropped, so the user sees what to fix before any request is issued. Empty
// fields are absent. The returned FilterState is only meaningful when the
// error map is empty.
func FromForm(form model.FormState) (model.FilterState, map[string]string) {
	var f model.FilterState
	errs := make(map[string]string)

	f.Name = strings.TrimSpace(form[KeyName])
	f.DiscoveryMethod = strings.TrimSpace(form[KeyDiscoveryMethod])

	for _, rf := range rangeFields {
		raw := strings.TrimSpace(form[rf.key])
		if raw == "" {
			continue
		}
		v, ok := parseFinite(raw)
		if !ok {
			errs[rf.key] = fmt.Sprintf("%q is not a finite number", raw)
			continue
		}
		*rf.field(&f) = ptr(v)
	}

	for _, k := range []string{KeyLimit, KeyOffset} {
		raw := strings.TrimSpace(form[k])
		if raw == "" {
			continue
		}
		v, ok := parseInt(raw)
		if !ok {
			errs[k] = fmt.Sprintf("%q is not a whole number", raw)
			continue
		}
		if k == KeyLimit {
			f.Limit = &v
		} else {
			f.Offset = &v
		}
	}

	if s := strings.TrimSpace(form[KeySortField]); s != "" {
		if !model.ValidSortField(s) {
			errs[KeySortField] = fmt.Sprintf("%q is not a sortable field", s)
		} else {
			f.SortField = s
		}
	}
	if s := strings.TrimSpace(form[KeySortOrder]); s != "" {
		if !model.ValidSortOrder(s) {
			errs[KeySortOrder] = fmt.Sprintf("%q must be asc or desc", s)
		} else {
			f.SortOrder = s
		}
	}

	f.IncludeDeleted = strings.TrimSpace(form[KeyIncludeDeleted]) == "true"

	return f, errs
}
