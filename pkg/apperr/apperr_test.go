package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
)

func TestKind(t *testing.T) {
	t.Parallel()

	t.Run("wrapped sentinel reads naturally", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("grid %w", apperr.ErrNotFound)
		assert.Equal(t, "grid not found", err.Error())
		assert.Equal(t, apperr.ErrNotFound, apperr.Kind(err))
	})

	t.Run("joined errors keep their kind", func(t *testing.T) {
		t.Parallel()
		err := errors.Join(fmt.Errorf("secondary user %w", apperr.ErrLimitReached), errors.New("ctx"))
		assert.Equal(t, apperr.ErrLimitReached, apperr.Kind(err))
	})

	t.Run("plain errors have no kind", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, apperr.Kind(errors.New("boom")))
		assert.Nil(t, apperr.Kind(nil))
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	err := apperr.New(apperr.ErrConflict, "email is already registered")
	assert.Equal(t, "email is already registered", err.Error())
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)

	inv := apperr.Invalidf("invalid duration %d", 0)
	assert.Equal(t, "invalid duration 0", inv.Error())
	assert.Equal(t, apperr.ErrInvalid, apperr.Kind(inv))
}
