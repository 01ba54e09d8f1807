package model

// PageMeta describes where a list page sits inside the full result set.
// Page numbers are 1-based: page = floor(offset/limit) + 1.
type PageMeta struct {
	Page        int   `json:"page"`
	HasPrevious bool  `json:"has_previous"`
	HasNext     bool  `json:"has_next"`
	Total       int64 `json:"total"`
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
}

// NewPageMeta computes pagination metadata from the echoed limit/offset and
// the filter-matching total. A non-positive limit falls back to DefaultLimit
// so the arithmetic stays defined.
func NewPageMeta(total int64, limit, offset int) PageMeta {
	if limit < 1 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return PageMeta{
		Page:        offset/limit + 1,
		HasPrevious: offset > 0,
		HasNext:     int64(offset+limit) < total,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
	}
}
