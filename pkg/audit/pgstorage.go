package audit

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PGDB is the subset of *pgxpool.Pool PGStorage uses.
type PGDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStorage stores records in the audit_records table.
type PGStorage struct {
	db PGDB
}

func NewPGStorage(db PGDB) *PGStorage {
	if db == nil {
		panic("audit: pg db cannot be nil")
	}
	return &PGStorage{db: db}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var recordColumns = []string{
	"id", "action", "entity_type", "entity_id", "user_id", "details", "request_id", "ip", "created_at",
}

func (s *PGStorage) Store(ctx context.Context, r Record) error {
	query, args, err := psql.Insert("audit_records").Columns(recordColumns...).
		Values(r.ID, r.Action, r.EntityType, r.EntityID, r.UserID, r.Details, r.RequestID, r.IP, r.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

func where(q squirrel.SelectBuilder, c Criteria) squirrel.SelectBuilder {
	if c.UserID != "" {
		q = q.Where(squirrel.Eq{"user_id": c.UserID})
	}
	if c.Action != "" {
		q = q.Where(squirrel.Eq{"action": c.Action})
	}
	if c.EntityType != "" {
		q = q.Where(squirrel.Eq{"entity_type": c.EntityType})
	}
	if c.EntityID != "" {
		q = q.Where(squirrel.Eq{"entity_id": c.EntityID})
	}
	if c.ActiveUser != "" {
		q = q.Where(squirrel.Expr("details->'activeUser'->>'id' = ?", c.ActiveUser))
	}
	if !c.Since.IsZero() {
		q = q.Where(squirrel.GtOrEq{"created_at": c.Since})
	}
	return q
}

func (s *PGStorage) Query(ctx context.Context, c Criteria) ([]Record, error) {
	q := where(psql.Select(recordColumns...).From("audit_records"), c).OrderBy("created_at DESC", "id")
	if c.Limit > 0 {
		q = q.Limit(uint64(c.Limit))
	}
	if c.Offset > 0 {
		q = q.Offset(uint64(c.Offset))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Action, &r.EntityType, &r.EntityID, &r.UserID, &r.Details, &r.RequestID, &r.IP, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStorage) Count(ctx context.Context, c Criteria) (int64, error) {
	query, args, err := where(psql.Select("count(*)").From("audit_records"), c).ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Join(ErrStorageNotAvailable, err)
	}
	return n, nil
}
