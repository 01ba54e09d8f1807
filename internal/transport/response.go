// Package transport contains the HTTP router, middleware chain, and all
// request handlers for the BFF API.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/orbitfold/exoview/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes. UPSTREAM_ERROR
// is absent on purpose: its status passes through from the upstream response.
var statusForCode = map[string]int{
	model.ErrBadRequest:         http.StatusBadRequest,
	model.ErrUnauthorized:       http.StatusUnauthorized,
	model.ErrNotFound:           http.StatusNotFound,
	model.ErrConflict:           http.StatusConflict,
	model.ErrValidationError:    http.StatusUnprocessableEntity,
	model.ErrUpstreamInvalid:    http.StatusBadGateway,
	model.ErrBackendUnavailable: http.StatusServiceUnavailable,
	model.ErrBackendTimeout:     http.StatusGatewayTimeout,
	model.ErrInternalError:      http.StatusInternalServerError,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes an ErrorEnvelope as a JSON response with the matching
// HTTP status code. Upstream errors pass the catalogue's status through when
// it is a valid error status; anything else maps to 502 so a bogus upstream
// status never turns into a 2xx here. Non-envelope errors become a generic
// 500 without leaking the underlying message.
func WriteError(w http.ResponseWriter, err error) {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		ee = model.NewInternalError()
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		switch {
		case ee.Code == model.ErrUpstreamError && ee.Status >= 400 && ee.Status <= 599:
			status = ee.Status
		case ee.Code == model.ErrUpstreamError:
			status = http.StatusBadGateway
		default:
			status = http.StatusInternalServerError
		}
	}

	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewBadRequestError(msg))
}
