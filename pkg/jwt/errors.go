package jwt

import (
	"errors"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
)

var (
	ErrMissingSigningKey = errors.New("jwt: signing key must be at least 32 bytes")
	ErrMissingSubject    = errors.New("jwt: subject is required")
	ErrMissingToken      = apperr.New(apperr.ErrUnauthorized, "authentication required")
	ErrInvalidToken      = apperr.New(apperr.ErrUnauthorized, "invalid or expired token")
)
