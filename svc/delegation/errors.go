package delegation

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
)

var (
	ErrActiveUserNotFound = fmt.Errorf("active user %w", apperr.ErrNotFound)
	ErrNotMainUser        = apperr.New(apperr.ErrForbidden, "only the main user can manage secondary users")
	ErrNoSession          = apperr.New(apperr.ErrUnauthorized, "authentication required")
	ErrNoActor            = errors.New("acting user is not resolved for this request")
)
