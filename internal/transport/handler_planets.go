package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orbitfold/exoview/internal/pages"
)

// listPlanets serves the planet list page. Query parameters are decoded and
// normalised by the page provider; unknown parameters are ignored there.
func (h *handlers) listPlanets(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.ListPlanets(r.Context(), r.URL.Query())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

func (h *handlers) getPlanet(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePlanetID(chi.URLParam(r, "id"))
	if !ok {
		WriteBadRequest(w, "planet id must be a positive integer")
		return
	}
	page, err := h.pages.GetPlanet(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

func (h *handlers) planetByName(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.GetPlanetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// deletedPlanets serves the admin listing of soft-deleted records. Admin
// authorisation happens upstream; a missing or rejected key surfaces as the
// catalogue's own error.
func (h *handlers) deletedPlanets(w http.ResponseWriter, r *http.Request) {
	page, err := h.pages.DeletedPlanets(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// createPlanet creates a catalogue record from a JSON form body. Repeated
// submissions with the same X-Idempotency-Key replay the first result.
func (h *handlers) createPlanet(w http.ResponseWriter, r *http.Request) {
	var form pages.CreateForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		WriteBadRequest(w, "request body must be a JSON object")
		return
	}

	result, err := h.pages.CreatePlanet(r.Context(), form, r.Header.Get("X-Idempotency-Key"))
	if err != nil {
		WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	WriteJSON(w, status, result)
}

// deletePlanet soft-deletes a record. Success is 204 with no payload,
// mirroring the upstream contract.
func (h *handlers) deletePlanet(w http.ResponseWriter, r *http.Request) {
	if err := h.pages.DeletePlanet(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
