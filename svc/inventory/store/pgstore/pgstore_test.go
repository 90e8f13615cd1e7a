package pgstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/svc/inventory"
	"github.com/dmitrymomot/labgrid/svc/inventory/store/pgstore"
)

var (
	gridCols = []string{"id", "user_id", "family_id", "name", "rows", "columns", "created_at"}
	tubeCols = []string{"id", "grid_id", "user_id", "family_id", "position", "fields", "created_at"}
	created  = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	scope    = inventory.Scope{FamilyID: "main", MemberIDs: []string{"main", "tech"}}
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *pgstore.Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, pgstore.New(mock)
}

func TestGetGrid(t *testing.T) {
	t.Parallel()

	t.Run("family filter", func(t *testing.T) {
		t.Parallel()
		mock, store := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM grids WHERE id = \$1 AND \(family_id = \$2 OR user_id IN \(\$3,\$4\)\)`).
			WithArgs("g1", "main", "main", "tech").
			WillReturnRows(pgxmock.NewRows(gridCols).AddRow("g1", "tech", "main", "Freezer A", 8, 12, created))

		g, err := store.GetGrid(context.Background(), scope, "g1")
		require.NoError(t, err)
		assert.Equal(t, "tech", g.UserID)
		assert.Equal(t, 8, g.Rows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		mock, store := newMock(t)
		mock.ExpectQuery("SELECT .+ FROM grids").WillReturnError(pgx.ErrNoRows)

		_, err := store.GetGrid(context.Background(), scope, "g1")
		assert.ErrorIs(t, err, inventory.ErrGridNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListGrids(t *testing.T) {
	t.Parallel()
	mock, store := newMock(t)
	mock.ExpectQuery(`SELECT .+ FROM grids WHERE .+ ORDER BY created_at, id`).
		WillReturnRows(pgxmock.NewRows(gridCols).
			AddRow("g1", "main", "main", "A", 8, 12, created).
			AddRow("g2", "gone", "main", "B", 9, 9, created.Add(time.Minute)))

	grids, err := store.ListGrids(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, grids, 2)
	assert.Equal(t, "gone", grids[1].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteGrid(t *testing.T) {
	t.Parallel()

	t.Run("deleted", func(t *testing.T) {
		t.Parallel()
		mock, store := newMock(t)
		mock.ExpectExec("DELETE FROM grids WHERE id = ").WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, store.DeleteGrid(context.Background(), scope, "g1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("outside family", func(t *testing.T) {
		t.Parallel()
		mock, store := newMock(t)
		mock.ExpectExec("DELETE FROM grids").WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, store.DeleteGrid(context.Background(), scope, "g1"), inventory.ErrGridNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCountGrids(t *testing.T) {
	t.Parallel()
	mock, store := newMock(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM grids`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.CountGrids(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTube(t *testing.T) {
	t.Parallel()

	tube := &inventory.Tube{
		ID: "t1", GridID: "g1", UserID: "tech", FamilyID: "main",
		Position: "B7", Fields: map[string]string{"sample": "PBMC"}, CreatedAt: created,
	}

	t.Run("inserts", func(t *testing.T) {
		t.Parallel()
		mock, store := newMock(t)
		mock.ExpectExec("INSERT INTO tubes").
			WithArgs("t1", "g1", "tech", "main", "B7", tube.Fields, created).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.CreateTube(context.Background(), tube))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("position taken", func(t *testing.T) {
		t.Parallel()
		mock, store := newMock(t)
		mock.ExpectExec("INSERT INTO tubes").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "tubes_grid_position_key"})

		assert.ErrorIs(t, store.CreateTube(context.Background(), tube), inventory.ErrPositionTaken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("grid gone", func(t *testing.T) {
		t.Parallel()
		mock, store := newMock(t)
		mock.ExpectExec("INSERT INTO tubes").WillReturnError(&pgconn.PgError{Code: "23503"})

		assert.ErrorIs(t, store.CreateTube(context.Background(), tube), inventory.ErrGridNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEmptyGrid(t *testing.T) {
	t.Parallel()
	mock, store := newMock(t)
	mock.ExpectExec(`DELETE FROM tubes WHERE grid_id = \$1`).
		WithArgs("g1").
		WillReturnResult(pgxmock.NewResult("DELETE", 5))

	n, err := store.EmptyGrid(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTubes(t *testing.T) {
	t.Parallel()
	mock, store := newMock(t)
	mock.ExpectQuery(`SELECT .+ FROM tubes WHERE grid_id = \$1 AND .+ ORDER BY position`).
		WillReturnRows(pgxmock.NewRows(tubeCols).
			AddRow("t1", "g1", "main", "main", "A1", map[string]string{"sample": "DNA"}, created))

	tubes, err := store.ListTubes(context.Background(), scope, "g1")
	require.NoError(t, err)
	require.Len(t, tubes, 1)
	assert.Equal(t, "DNA", tubes[0].Fields["sample"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTube_NotFound(t *testing.T) {
	t.Parallel()
	mock, store := newMock(t)
	mock.ExpectExec("DELETE FROM tubes").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, store.DeleteTube(context.Background(), scope, "t1"), inventory.ErrTubeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
