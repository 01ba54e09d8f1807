package transport

import (
	"strconv"
	"strings"

	"github.com/orbitfold/exoview/internal/explorer"
	"github.com/orbitfold/exoview/internal/pages"
)

// handlers binds the page provider and explorer index to route handlers.
type handlers struct {
	pages    *pages.Provider
	explorer *explorer.Index
}

// parsePlanetID parses a positive planet id from a path segment.
func parsePlanetID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
