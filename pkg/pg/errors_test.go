package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/labgrid/pkg/pg"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "tubes_grid_id_fkey"}

	assert.True(t, pg.IsDuplicateKeyError(dup))
	assert.False(t, pg.IsDuplicateKeyError(fk))
	assert.True(t, pg.IsForeignKeyViolationError(fk))
	assert.True(t, pg.IsNotFoundError(errors.Join(errors.New("ctx"), pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(nil))
	assert.False(t, pg.IsDuplicateKeyError(nil))

	assert.Equal(t, "tubes_grid_id_fkey", pg.ConstraintName(fmt.Errorf("insert: %w", fk)))
	assert.Empty(t, pg.ConstraintName(errors.New("boom")))
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	assert.NoError(t, pg.Healthcheck(pinger{})(context.Background()))

	err := pg.Healthcheck(pinger{err: errors.New("down")})(context.Background())
	assert.ErrorIs(t, err, pg.ErrUnhealthy)
}

func TestConnect_EmptyConnectionString(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(context.Background(), pg.Config{})
	assert.ErrorIs(t, err, pg.ErrNotConfigured)
}

func TestMigrate_MissingInputs(t *testing.T) {
	t.Parallel()

	err := pg.Migrate(context.Background(), nil, nil, "", pg.Config{}, nil)
	assert.ErrorIs(t, err, pg.ErrMigrationsNotPassed)
	assert.ErrorIs(t, err, pg.ErrMigrationFailed)
}
