package plan

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
)

var (
	ErrUnknownPlan       = fmt.Errorf("plan type %w", apperr.ErrInvalid)
	ErrInvalidDuration   = fmt.Errorf("plan duration %w", apperr.ErrInvalid)
	ErrNoPrice           = fmt.Errorf("price for plan %w", apperr.ErrNotFound)
	ErrUnknownProviderID = fmt.Errorf("provider plan id %w", apperr.ErrNotFound)
	ErrInvalidCatalog    = errors.New("invalid plan catalog")
)
