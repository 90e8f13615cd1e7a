package audit_test

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/pkg/audit"
)

func TestPGStorage(t *testing.T) {
	t.Parallel()

	t.Run("store inserts one row", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO audit_records").WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = audit.NewPGStorage(mock).Store(context.Background(), audit.Record{
			ID: "r1", Action: audit.ActionCreateGrid, EntityType: audit.EntityGrid, EntityID: "g1",
			UserID: "main-1", CreatedAt: now,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("count filters by owner and active user", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT count\(\*\) FROM audit_records WHERE user_id = \$1 AND details->'activeUser'->>'id' = \$2`).
			WithArgs("main-1", "sec-1").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))

		n, err := audit.NewPGStorage(mock).Count(context.Background(), audit.Criteria{UserID: "main-1", ActiveUser: "sec-1"})
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
