// Package pgstore is the PostgreSQL inventory.Store.
//
// Tube positions are unique per grid through the tubes_grid_position_key
// constraint; grid deletion cascades to tubes in the schema.
package pgstore

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/labgrid/pkg/pg"
	"github.com/dmitrymomot/labgrid/svc/inventory"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DB
}

var _ inventory.Store = (*Store)(nil)

func New(db DB) *Store {
	if db == nil {
		panic("pgstore: DB is required")
	}
	return &Store{db: db}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var (
	gridColumns = []string{"id", "user_id", "family_id", "name", "rows", "columns", "created_at"}
	tubeColumns = []string{"id", "grid_id", "user_id", "family_id", "position", "fields", "created_at"}
)

// visible is the family filter: family_id = ? OR user_id IN (...).
func visible(scope inventory.Scope) squirrel.Sqlizer {
	or := squirrel.Or{squirrel.Eq{"family_id": scope.FamilyID}}
	if len(scope.MemberIDs) > 0 {
		or = append(or, squirrel.Eq{"user_id": scope.MemberIDs})
	}
	return or
}

func scanGrid(row pgx.Row) (*inventory.Grid, error) {
	var g inventory.Grid
	if err := row.Scan(&g.ID, &g.UserID, &g.FamilyID, &g.Name, &g.Rows, &g.Columns, &g.CreatedAt); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, inventory.ErrGridNotFound
		}
		return nil, err
	}
	return &g, nil
}

func scanTube(row pgx.Row) (*inventory.Tube, error) {
	var t inventory.Tube
	if err := row.Scan(&t.ID, &t.GridID, &t.UserID, &t.FamilyID, &t.Position, &t.Fields, &t.CreatedAt); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, inventory.ErrTubeNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *Store) exec(ctx context.Context, q squirrel.Sqlizer) (pgconn.CommandTag, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return s.db.Exec(ctx, query, args...)
}

func (s *Store) count(ctx context.Context, table string, scope inventory.Scope) (int, error) {
	query, args, err := psql.Select("count(*)").From(table).Where(visible(scope)).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func (s *Store) CreateGrid(ctx context.Context, g *inventory.Grid) error {
	_, err := s.exec(ctx, psql.Insert("grids").Columns(gridColumns...).
		Values(g.ID, g.UserID, g.FamilyID, g.Name, g.Rows, g.Columns, g.CreatedAt))
	return err
}

func (s *Store) GetGrid(ctx context.Context, scope inventory.Scope, id string) (*inventory.Grid, error) {
	query, args, err := psql.Select(gridColumns...).From("grids").
		Where(squirrel.Eq{"id": id}).Where(visible(scope)).ToSql()
	if err != nil {
		return nil, err
	}
	return scanGrid(s.db.QueryRow(ctx, query, args...))
}

func (s *Store) ListGrids(ctx context.Context, scope inventory.Scope) ([]*inventory.Grid, error) {
	query, args, err := psql.Select(gridColumns...).From("grids").
		Where(visible(scope)).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*inventory.Grid
	for rows.Next() {
		g, err := scanGrid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) DeleteGrid(ctx context.Context, scope inventory.Scope, id string) error {
	tag, err := s.exec(ctx, psql.Delete("grids").Where(squirrel.Eq{"id": id}).Where(visible(scope)))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrGridNotFound
	}
	return nil
}

func (s *Store) CountGrids(ctx context.Context, scope inventory.Scope) (int, error) {
	return s.count(ctx, "grids", scope)
}

func (s *Store) CreateTube(ctx context.Context, t *inventory.Tube) error {
	_, err := s.exec(ctx, psql.Insert("tubes").Columns(tubeColumns...).
		Values(t.ID, t.GridID, t.UserID, t.FamilyID, t.Position, t.Fields, t.CreatedAt))
	switch {
	case pg.IsDuplicateKeyError(err):
		return inventory.ErrPositionTaken
	case pg.IsForeignKeyViolationError(err):
		return inventory.ErrGridNotFound
	}
	return err
}

func (s *Store) GetTube(ctx context.Context, scope inventory.Scope, id string) (*inventory.Tube, error) {
	query, args, err := psql.Select(tubeColumns...).From("tubes").
		Where(squirrel.Eq{"id": id}).Where(visible(scope)).ToSql()
	if err != nil {
		return nil, err
	}
	return scanTube(s.db.QueryRow(ctx, query, args...))
}

func (s *Store) ListTubes(ctx context.Context, scope inventory.Scope, gridID string) ([]*inventory.Tube, error) {
	query, args, err := psql.Select(tubeColumns...).From("tubes").
		Where(squirrel.Eq{"grid_id": gridID}).Where(visible(scope)).
		OrderBy("position").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*inventory.Tube
	for rows.Next() {
		t, err := scanTube(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTube(ctx context.Context, scope inventory.Scope, id string) error {
	tag, err := s.exec(ctx, psql.Delete("tubes").Where(squirrel.Eq{"id": id}).Where(visible(scope)))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrTubeNotFound
	}
	return nil
}

func (s *Store) EmptyGrid(ctx context.Context, gridID string) (int, error) {
	tag, err := s.exec(ctx, psql.Delete("tubes").Where(squirrel.Eq{"grid_id": gridID}))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) CountTubes(ctx context.Context, scope inventory.Scope) (int, error) {
	return s.count(ctx, "tubes", scope)
}
