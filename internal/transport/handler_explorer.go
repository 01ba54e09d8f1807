package transport

import (
	"net/http"

	"github.com/orbitfold/exoview/internal/explorer"
	"github.com/orbitfold/exoview/model"
)

// ExplorerResponse is the endpoint explorer payload: the catalogue API's
// endpoints grouped by tag, flattened for rendering.
type ExplorerResponse struct {
	Title   string           `json:"title"`
	Version string           `json:"version"`
	Groups  []explorer.Group `json:"groups"`
}

func (h *handlers) explorerIndex(w http.ResponseWriter, _ *http.Request) {
	if h.explorer == nil {
		WriteError(w, &model.ErrorEnvelope{
			Code:    model.ErrBackendUnavailable,
			Message: "endpoint explorer is unavailable: the catalogue's OpenAPI document was not loaded",
		})
		return
	}
	WriteJSON(w, http.StatusOK, ExplorerResponse{
		Title:   h.explorer.Title(),
		Version: h.explorer.Version(),
		Groups:  h.explorer.Grouped(),
	})
}
