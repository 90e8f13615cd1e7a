package inventory

import (
	"fmt"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
)

var (
	ErrGridNotFound  = fmt.Errorf("grid %w", apperr.ErrNotFound)
	ErrTubeNotFound  = fmt.Errorf("tube %w", apperr.ErrNotFound)
	ErrPositionTaken = apperr.New(apperr.ErrConflict, "position is already taken")
	ErrGridLimit     = apperr.New(apperr.ErrLimitReached, "grid limit of the current plan reached")
	ErrTubeLimit     = apperr.New(apperr.ErrLimitReached, "tube limit of the current plan reached")
)
