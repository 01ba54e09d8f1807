package transport

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/orbitfold/exoview/model"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) *model.ErrorEnvelope {
	t.Helper()
	var body struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error == nil {
		t.Fatalf("body = %s, want error envelope", rec.Body.String())
	}
	return body.Error
}

func TestWriteError_statusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad request", model.NewBadRequestError("x"), 400},
		{"unauthorized", model.NewUnauthorizedError("x"), 401},
		{"not found", model.NewNotFoundError("x"), 404},
		{"conflict", model.NewConflictError("x"), 409},
		{"validation", model.NewValidationError([]model.FieldError{{Field: "name"}}), 422},
		{"upstream invalid", model.NewUpstreamInvalidError("planet", nil), 502},
		{"backend unavailable", model.NewBackendUnavailableError(), 503},
		{"backend timeout", model.NewBackendTimeoutError(), 504},
		{"internal", model.NewInternalError(), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			decodeErrorBody(t, rec)
		})
	}
}

func TestWriteError_upstreamStatusPassthrough(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, model.NewUpstreamError("http://x/planets/9", 404, "Not Found", nil))
	if rec.Code != 404 {
		t.Errorf("status = %d, want upstream 404 passed through", rec.Code)
	}
	ee := decodeErrorBody(t, rec)
	if ee.Code != model.ErrUpstreamError || ee.URL != "http://x/planets/9" {
		t.Errorf("envelope = %+v, want UPSTREAM_ERROR with URL", ee)
	}
}

func TestWriteError_bogusUpstreamStatusBecomes502(t *testing.T) {
	for _, status := range []int{0, 200, 302, 700} {
		rec := httptest.NewRecorder()
		WriteError(rec, model.NewUpstreamError("http://x", status, "weird", nil))
		if rec.Code != 502 {
			t.Errorf("upstream status %d mapped to %d, want 502", status, rec.Code)
		}
	}
}

func TestWriteError_nonEnvelopeBecomesInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("sql: connection reset"))
	if rec.Code != 500 {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	ee := decodeErrorBody(t, rec)
	if ee.Code != model.ErrInternalError {
		t.Errorf("Code = %q, want INTERNAL_ERROR", ee.Code)
	}
	if ee.Message == "sql: connection reset" {
		t.Error("internal error message leaked to the client")
	}
}

func TestWriteJSON_setsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, 201, map[string]string{"ok": "yes"})
	if got := rec.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if rec.Code != 201 {
		t.Errorf("status = %d, want 201", rec.Code)
	}
}
