// Package apperr defines the error kinds shared by every service.
//
// Domain packages declare their own sentinels on top of a kind, which keeps
// messages readable while letting the transport layer classify them:
//
//	var ErrGridNotFound = fmt.Errorf("grid %w", apperr.ErrNotFound) // "grid not found"
//	var ErrEmailTaken = apperr.New(apperr.ErrConflict, "email is already registered")
//
//	if errors.Is(err, apperr.ErrNotFound) {
//		// 404
//	}
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalid             = errors.New("invalid")
	ErrLimitReached        = errors.New("limit reached")
	ErrConflict            = errors.New("conflict")
	ErrProviderUnavailable = errors.New("billing provider unavailable")
)

var kinds = []error{
	ErrNotFound,
	ErrUnauthorized,
	ErrForbidden,
	ErrInvalid,
	ErrLimitReached,
	ErrConflict,
	ErrProviderUnavailable,
}

// Kind returns the first error kind err wraps, or nil if it wraps none.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New returns an error with message msg that matches kind under errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Invalidf formats a validation error naming the offending value.
func Invalidf(format string, args ...any) error {
	return &kindError{kind: ErrInvalid, msg: fmt.Sprintf(format, args...)}
}
