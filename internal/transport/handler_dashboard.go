package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// dashboard serves the aggregate dashboard. Panel failures are carried
// inside the payload, so this endpoint itself never fails on upstream
// errors.
func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.pages.Dashboard(r.Context()))
}

func (h *handlers) methodStats(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.MethodStats(r.Context(), chi.URLParam(r, "method"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

func (h *handlers) discovery(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.Discovery(r.Context(), r.URL.Query())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}
