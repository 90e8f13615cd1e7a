// Package pgstore is the PostgreSQL entitlement.Store.
//
// The schema lives in the db package migrations. Plan transitions are a single
// UPDATE ... WHERE ... RETURNING whose predicate carries both the ordering
// and the from-state guard, so concurrent writers cannot interleave.
package pgstore

import (
	"context"
	"errors"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/labgrid/pkg/pg"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store struct {
	db DB
}

var _ entitlement.Store = (*Store)(nil)

func New(db DB) *Store {
	if db == nil {
		panic("pgstore: DB is required")
	}
	return &Store{db: db}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var accountColumns = []string{
	"id", "email", "name", "password_hash",
	"plan_type", "plan_start_date", "plan_end_date", "trial_ends_at",
	"is_main_user", "main_user_id",
	"stripe_customer_id", "provider_kind", "provider_id",
	"max_grids", "max_tubes", "is_unlimited",
	"last_payment_failed", "last_reconciled_at",
	"created_at", "updated_at",
}

func scanAccount(row pgx.Row) (*entitlement.Account, error) {
	var a entitlement.Account
	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.PasswordHash,
		&a.PlanType, &a.PlanStartDate, &a.PlanEndDate, &a.TrialEndsAt,
		&a.IsMainUser, &a.MainUserID,
		&a.StripeCustomerID, &a.Provider.Kind, &a.Provider.ID,
		&a.MaxGrids, &a.MaxTubes, &a.IsUnlimited,
		&a.LastPaymentFailed, &a.LastReconciledAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, entitlement.ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) queryAccounts(ctx context.Context, q squirrel.SelectBuilder) ([]*entitlement.Account, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entitlement.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) getWhere(ctx context.Context, pred any) (*entitlement.Account, error) {
	query, args, err := psql.Select(accountColumns...).From("accounts").Where(pred).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	return scanAccount(s.db.QueryRow(ctx, query, args...))
}

func insertAccount(acc *entitlement.Account) squirrel.InsertBuilder {
	return psql.Insert("accounts").Columns(accountColumns...).Values(
		acc.ID, strings.ToLower(acc.Email), acc.Name, acc.PasswordHash,
		acc.PlanType, acc.PlanStartDate, acc.PlanEndDate, acc.TrialEndsAt,
		acc.IsMainUser, acc.MainUserID,
		acc.StripeCustomerID, acc.Provider.Kind, acc.Provider.ID,
		acc.MaxGrids, acc.MaxTubes, acc.IsUnlimited,
		acc.LastPaymentFailed, acc.LastReconciledAt,
		acc.CreatedAt, acc.UpdatedAt,
	)
}

func (s *Store) Create(ctx context.Context, acc *entitlement.Account) error {
	query, args, err := insertAccount(acc).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		if pg.IsDuplicateKeyError(err) {
			return entitlement.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*entitlement.Account, error) {
	return s.getWhere(ctx, squirrel.Eq{"id": id})
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*entitlement.Account, error) {
	return s.getWhere(ctx, squirrel.Expr("lower(email) = lower(?)", email))
}

func (s *Store) FindByStripeCustomer(ctx context.Context, customerID string) (*entitlement.Account, error) {
	if customerID == "" {
		return nil, entitlement.ErrAccountNotFound
	}
	return s.getWhere(ctx, squirrel.Eq{"stripe_customer_id": customerID})
}

func (s *Store) FindByProvider(ctx context.Context, ref entitlement.ProviderRef) (*entitlement.Account, error) {
	if ref.IsZero() || ref.ID == "" {
		return nil, entitlement.ErrAccountNotFound
	}
	return s.getWhere(ctx, squirrel.Eq{"provider_kind": ref.Kind, "provider_id": ref.ID})
}

func (s *Store) SetStripeCustomer(ctx context.Context, id, customerID string) error {
	return s.exec1(ctx, psql.Update("accounts").Set("stripe_customer_id", customerID).Where(squirrel.Eq{"id": id}))
}

func (s *Store) SetPaymentFailed(ctx context.Context, id string, failed bool) error {
	return s.exec1(ctx, psql.Update("accounts").Set("last_payment_failed", failed).Where(squirrel.Eq{"id": id}))
}

// exec1 runs q and maps zero affected rows to ErrAccountNotFound.
func (s *Store) exec1(ctx context.Context, q squirrel.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entitlement.ErrAccountNotFound
	}
	return nil
}

// stateCond is the SQL predicate selecting accounts in any of states.
func stateCond(states []entitlement.State) squirrel.Sqlizer {
	or := make(squirrel.Or, 0, len(states))
	for _, st := range states {
		m := st.Match()
		eq := squirrel.Eq{"provider_kind": m.Kind}
		if m.Plan != "" {
			eq["plan_type"] = m.Plan
		}
		or = append(or, eq)
	}
	return or
}

func (s *Store) ApplyUpdate(ctx context.Context, id string, u entitlement.Update) (*entitlement.Account, error) {
	q := psql.Update("accounts").
		Set("plan_type", u.Plan).
		Set("max_grids", u.Limits.MaxGrids).
		Set("max_tubes", u.Limits.MaxTubes).
		Set("is_unlimited", u.Limits.IsUnlimited).
		Set("plan_end_date", u.PeriodEnd).
		Set("updated_at", u.ReconciledAt)
	if !u.Local {
		q = q.Set("last_reconciled_at", u.ReconciledAt)
	}
	if u.PeriodStart != nil {
		q = q.Set("plan_start_date", *u.PeriodStart)
	}
	if u.SetProvider {
		q = q.Set("provider_kind", u.Provider.Kind).Set("provider_id", u.Provider.ID)
	}
	q = q.Where(squirrel.Eq{"id": id})
	if !u.Local {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"last_reconciled_at": nil},
			squirrel.LtOrEq{"last_reconciled_at": u.ReconciledAt},
		})
	}
	if len(u.From) > 0 {
		q = q.Where(stateCond(u.From))
	}
	query, args, err := q.Suffix("RETURNING " + strings.Join(accountColumns, ", ")).ToSql()
	if err != nil {
		return nil, err
	}

	acc, err := scanAccount(s.db.QueryRow(ctx, query, args...))
	if !errors.Is(err, entitlement.ErrAccountNotFound) {
		return acc, err
	}

	// Nothing matched: report why.
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := u.Admits(cur); err != nil {
		return nil, err
	}
	return nil, entitlement.ErrStateMismatch
}

func (s *Store) ListByState(ctx context.Context, st entitlement.State) ([]*entitlement.Account, error) {
	return s.queryAccounts(ctx, psql.Select(accountColumns...).From("accounts").
		Where(squirrel.Eq{"is_main_user": true}).
		Where(stateCond([]entitlement.State{st})).
		OrderBy("created_at", "id"))
}

func (s *Store) CreateSecondary(ctx context.Context, acc *entitlement.Account, max int) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the main row so concurrent creations count serially.
	lockSQL, lockArgs, err := psql.Select("id").From("accounts").
		Where(squirrel.Eq{"id": acc.MainUserID, "is_main_user": true}).
		Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return err
	}
	var mainID string
	if err := tx.QueryRow(ctx, lockSQL, lockArgs...).Scan(&mainID); err != nil {
		if pg.IsNotFoundError(err) {
			return entitlement.ErrAccountNotFound
		}
		return err
	}

	countSQL, countArgs, err := psql.Select("count(*)").From("accounts").
		Where(squirrel.Eq{"main_user_id": acc.MainUserID, "is_main_user": false}).ToSql()
	if err != nil {
		return err
	}
	var n int
	if err := tx.QueryRow(ctx, countSQL, countArgs...).Scan(&n); err != nil {
		return err
	}
	if n >= max {
		return entitlement.ErrSecondaryLimit
	}

	insSQL, insArgs, err := insertAccount(acc).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, insSQL, insArgs...); err != nil {
		if pg.IsDuplicateKeyError(err) {
			return entitlement.ErrEmailTaken
		}
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListSecondaries(ctx context.Context, mainID string) ([]*entitlement.Account, error) {
	return s.queryAccounts(ctx, psql.Select(accountColumns...).From("accounts").
		Where(squirrel.Eq{"main_user_id": mainID, "is_main_user": false}).
		OrderBy("created_at", "id"))
}

func (s *Store) DeleteSecondary(ctx context.Context, mainID, id string) error {
	return s.exec1(ctx, psql.Delete("accounts").
		Where(squirrel.Eq{"id": id, "main_user_id": mainID, "is_main_user": false}))
}

var transactionColumns = []string{
	"id", "user_id", "plan_type", "status", "date",
	"provider_kind", "provider_id", "period_start", "period_end",
	"amount", "currency", "event_id", "metadata",
}

func (s *Store) AppendTransaction(ctx context.Context, tx *entitlement.Transaction) (bool, error) {
	meta := tx.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	query, args, err := psql.Insert("transactions").Columns(transactionColumns...).Values(
		tx.ID, tx.UserID, tx.PlanType, tx.Status, tx.Date,
		tx.Provider.Kind, tx.Provider.ID, tx.PeriodStart.UTC(), tx.PeriodEnd,
		tx.Amount, tx.Currency, tx.EventID, meta,
	).Suffix("ON CONFLICT ON CONSTRAINT transactions_natural_key DO NOTHING").ToSql()
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]*entitlement.Transaction, error) {
	query, args, err := psql.Select(transactionColumns...).From("transactions").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("date DESC", "id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entitlement.Transaction
	for rows.Next() {
		var t entitlement.Transaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.PlanType, &t.Status, &t.Date,
			&t.Provider.Kind, &t.Provider.ID, &t.PeriodStart, &t.PeriodEnd,
			&t.Amount, &t.Currency, &t.EventID, &t.Metadata,
		); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
