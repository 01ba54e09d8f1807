package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrNotFound           = "NOT_FOUND"
	ErrConflict           = "CONFLICT"
	ErrValidationError    = "VALIDATION_ERROR"
	ErrUpstreamError      = "UPSTREAM_ERROR"
	ErrUpstreamInvalid    = "UPSTREAM_INVALID"
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrBackendTimeout     = "BACKEND_TIMEOUT"
	ErrInternalError      = "INTERNAL_ERROR"
)

// ErrorEnvelope is the standard error response envelope returned by the BFF.
// It implements the error interface.
//
// The Code distinguishes the four failure classes: ErrValidationError for
// local form input that never reached the network, ErrUpstreamError for
// non-2xx responses from the catalogue API (Status, URL and Details are set),
// ErrUpstreamInvalid for 2xx responses whose body did not match the expected
// shape, and ErrBackendUnavailable/ErrBackendTimeout for transport failures
// that carry no status code.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`

	// Upstream context, set only for ErrUpstreamError.
	Status     int    `json:"status,omitempty"`
	StatusText string `json:"status_text,omitempty"`
	URL        string `json:"url,omitempty"`
	Body       any    `json:"body,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	if e.Code == ErrUpstreamError && e.Status != 0 {
		return fmt.Sprintf("%s: %s (%d %s)", e.Code, e.Message, e.Status, e.StatusText)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
// Form input that fails these checks never reaches the network layer.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewUpstreamError returns an UPSTREAM_ERROR carrying the resolved URL, the
// HTTP status, and the response body (parsed JSON when possible, raw text
// otherwise).
func NewUpstreamError(url string, status int, statusText string, body any) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:       ErrUpstreamError,
		Message:    fmt.Sprintf("catalogue API returned %d", status),
		Status:     status,
		StatusText: statusText,
		URL:        url,
		Body:       body,
	}
}

// NewUpstreamInvalidError returns an UPSTREAM_INVALID error describing a
// successful response whose body did not match the expected shape.
func NewUpstreamInvalidError(kind string, details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrUpstreamInvalid,
		Message: fmt.Sprintf("catalogue API returned an unexpected %s payload", kind),
		Details: details,
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewBackendUnavailableError returns a BACKEND_UNAVAILABLE error.
func NewBackendUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendUnavailable,
		Message: "The catalogue API is temporarily unavailable",
	}
}

// NewBackendTimeoutError returns a BACKEND_TIMEOUT error.
func NewBackendTimeoutError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendTimeout,
		Message: "The catalogue API did not respond in time",
	}
}
