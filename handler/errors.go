package handler

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/labgrid/binder"
	"github.com/dmitrymomot/labgrid/pkg/apperr"
)

// ErrNilResponse indicates a handler returned nil instead of a Response.
var ErrNilResponse = errors.New("handler returned nil response")

// HTTPError is an error with an explicit status code and machine-readable key.
type HTTPError struct {
	Code int
	Key  string
}

func (e HTTPError) Error() string { return e.Key }

var (
	ErrBadRequest   = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrNotFound     = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
)

// Status maps an error to its HTTP status and error code.
func Status(err error) (int, string) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, httpErr.Key
	}
	if isBindError(err) {
		return http.StatusBadRequest, "bad_request"
	}
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case apperr.ErrUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case apperr.ErrForbidden:
		return http.StatusForbidden, "forbidden"
	case apperr.ErrInvalid:
		return http.StatusUnprocessableEntity, "validation_error"
	case apperr.ErrLimitReached:
		return http.StatusPaymentRequired, "limit_reached"
	case apperr.ErrConflict:
		return http.StatusConflict, "conflict"
	case apperr.ErrProviderUnavailable:
		return http.StatusServiceUnavailable, "provider_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

func isBindError(err error) bool {
	for _, e := range []error{
		binder.ErrUnsupportedMediaType,
		binder.ErrMissingContentType,
		binder.ErrInvalidJSON,
		binder.ErrInvalidPath,
		binder.ErrInvalidQuery,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
