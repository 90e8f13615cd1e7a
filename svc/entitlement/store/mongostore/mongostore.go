// Package mongostore is the MongoDB entitlement.Store.
//
// Accounts live in one collection keyed by id. The main account document
// carries a secondaryCount counter that is incremented conditionally, which
// keeps the secondary-user cap atomic without multi-document transactions.
package mongostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	driver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/labgrid/pkg/mongo"
	"github.com/dmitrymomot/labgrid/pkg/plan"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

const (
	accountsCollection     = "accounts"
	transactionsCollection = "transactions"
)

type Store struct {
	accounts     *driver.Collection
	transactions *driver.Collection
}

var _ entitlement.Store = (*Store)(nil)

func New(db *driver.Database) *Store {
	if db == nil {
		panic("mongostore: database is required")
	}
	return &Store{
		accounts:     db.Collection(accountsCollection),
		transactions: db.Collection(transactionsCollection),
	}
}

// EnsureIndexes creates the unique and lookup indexes the store relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateMany(ctx, []driver.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "stripeCustomerId", Value: 1}}},
		{Keys: bson.D{{Key: "provider.kind", Value: 1}, {Key: "provider.id", Value: 1}}},
		{Keys: bson.D{{Key: "mainUserId", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.transactions.Indexes().CreateMany(ctx, []driver.IndexModel{
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "provider.kind", Value: 1},
				{Key: "provider.id", Value: 1},
				{Key: "periodStart", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("transactions_natural_key"),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}},
	})
	return err
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*entitlement.Account, error) {
	var acc entitlement.Account
	if err := s.accounts.FindOne(ctx, filter).Decode(&acc); err != nil {
		if mongo.IsNotFoundError(err) {
			return nil, entitlement.ErrAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}

func (s *Store) findMany(ctx context.Context, filter bson.M) ([]*entitlement.Account, error) {
	cur, err := s.accounts.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []*entitlement.Account
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, acc *entitlement.Account) error {
	doc := *acc
	doc.Email = strings.ToLower(doc.Email)
	if _, err := s.accounts.InsertOne(ctx, &doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return entitlement.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*entitlement.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*entitlement.Account, error) {
	return s.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (s *Store) FindByStripeCustomer(ctx context.Context, customerID string) (*entitlement.Account, error) {
	if customerID == "" {
		return nil, entitlement.ErrAccountNotFound
	}
	return s.findOne(ctx, bson.M{"stripeCustomerId": customerID})
}

func (s *Store) FindByProvider(ctx context.Context, ref entitlement.ProviderRef) (*entitlement.Account, error) {
	if ref.IsZero() || ref.ID == "" {
		return nil, entitlement.ErrAccountNotFound
	}
	return s.findOne(ctx, bson.M{"provider.kind": ref.Kind, "provider.id": ref.ID})
}

func (s *Store) setFields(ctx context.Context, id string, set bson.M) error {
	res, err := s.accounts.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return entitlement.ErrAccountNotFound
	}
	return nil
}

func (s *Store) SetStripeCustomer(ctx context.Context, id, customerID string) error {
	return s.setFields(ctx, id, bson.M{"stripeCustomerId": customerID})
}

func (s *Store) SetPaymentFailed(ctx context.Context, id string, failed bool) error {
	return s.setFields(ctx, id, bson.M{"lastPaymentFailed": failed})
}

// stateFilter selects documents in any of states.
func stateFilter(states []entitlement.State) bson.M {
	or := make(bson.A, 0, len(states))
	for _, st := range states {
		m := st.Match()
		f := bson.M{}
		if m.Kind == entitlement.ProviderNone {
			f["provider.kind"] = bson.M{"$in": bson.A{nil, ""}}
		} else {
			f["provider.kind"] = m.Kind
		}
		if m.Plan != "" {
			f["planType"] = m.Plan
		}
		or = append(or, f)
	}
	return bson.M{"$or": or}
}

// updateFilter is the guard of a plan transition write.
func updateFilter(id string, u entitlement.Update) bson.M {
	f := bson.M{"_id": id}
	and := bson.A{}
	if !u.Local {
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"lastReconciledAt": nil},
			bson.M{"lastReconciledAt": bson.M{"$lte": u.ReconciledAt}},
		}})
	}
	if len(u.From) > 0 {
		and = append(and, stateFilter(u.From))
	}
	if len(and) > 0 {
		f["$and"] = and
	}
	return f
}

// updateDoc is the $set/$unset document of a plan transition write.
func updateDoc(u entitlement.Update) bson.M {
	set := bson.M{
		"planType":         u.Plan,
		"maxGrids":         u.Limits.MaxGrids,
		"maxTubes":         u.Limits.MaxTubes,
		"isUnlimited": u.Limits.IsUnlimited,
		"updatedAt":   u.ReconciledAt,
	}
	if !u.Local {
		set["lastReconciledAt"] = u.ReconciledAt
	}
	unset := bson.M{}
	if u.PeriodStart != nil {
		set["planStartDate"] = *u.PeriodStart
	}
	if u.PeriodEnd != nil {
		set["planEndDate"] = *u.PeriodEnd
	} else {
		unset["planEndDate"] = ""
	}
	if u.SetProvider {
		set["provider"] = u.Provider
	}
	doc := bson.M{"$set": set}
	if len(unset) > 0 {
		doc["$unset"] = unset
	}
	return doc
}

func (s *Store) ApplyUpdate(ctx context.Context, id string, u entitlement.Update) (*entitlement.Account, error) {
	var acc entitlement.Account
	err := s.accounts.FindOneAndUpdate(ctx, updateFilter(id, u), updateDoc(u),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&acc)
	if err == nil {
		return &acc, nil
	}
	if !mongo.IsNotFoundError(err) {
		return nil, err
	}

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
	f := stateFilter([]entitlement.State{st})
	f["isMainUser"] = true
	return s.findMany(ctx, f)
}

func (s *Store) CreateSecondary(ctx context.Context, acc *entitlement.Account, max int) error {
	res, err := s.accounts.UpdateOne(ctx,
		bson.M{
			"_id":        acc.MainUserID,
			"isMainUser": true,
			"$or": bson.A{
				bson.M{"secondaryCount": nil},
				bson.M{"secondaryCount": bson.M{"$lt": max}},
			},
		},
		bson.M{"$inc": bson.M{"secondaryCount": 1}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, acc.MainUserID); err != nil {
			return err
		}
		return entitlement.ErrSecondaryLimit
	}

	if err := s.Create(ctx, acc); err != nil {
		_, rerr := s.accounts.UpdateOne(context.WithoutCancel(ctx),
			bson.M{"_id": acc.MainUserID, "secondaryCount": bson.M{"$gt": 0}},
			bson.M{"$inc": bson.M{"secondaryCount": -1}},
		)
		return releaseFailed(err, rerr)
	}
	return nil
}

func releaseFailed(err, rerr error) error {
	if rerr == nil {
		return err
	}
	return errors.Join(err, entitlement.ErrSlotNotReleased, rerr)
}

func (s *Store) ListSecondaries(ctx context.Context, mainID string) ([]*entitlement.Account, error) {
	return s.findMany(ctx, bson.M{"mainUserId": mainID, "isMainUser": false})
}

func (s *Store) DeleteSecondary(ctx context.Context, mainID, id string) error {
	res, err := s.accounts.DeleteOne(ctx, bson.M{"_id": id, "mainUserId": mainID, "isMainUser": false})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return entitlement.ErrAccountNotFound
	}
	_, err = s.accounts.UpdateOne(ctx,
		bson.M{"_id": mainID, "secondaryCount": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"secondaryCount": -1}},
	)
	return err
}

// txDoc stores the amount as a decimal string; decimal.Decimal has no bson codec.
type txDoc struct {
	ID          string                  `bson:"_id"`
	UserID      string                  `bson:"userId"`
	PlanType    plan.Type               `bson:"planType"`
	Status      string                  `bson:"status"`
	Date        time.Time               `bson:"date"`
	Provider    entitlement.ProviderRef `bson:"provider"`
	PeriodStart time.Time               `bson:"periodStart"`
	PeriodEnd   *time.Time              `bson:"periodEnd,omitempty"`
	Amount      string                  `bson:"amount"`
	Currency    string                  `bson:"currency"`
	EventID     string                  `bson:"eventId,omitempty"`
	Metadata    map[string]string       `bson:"metadata,omitempty"`
}

func toTxDoc(tx *entitlement.Transaction) txDoc {
	return txDoc{
		ID:          tx.ID,
		UserID:      tx.UserID,
		PlanType:    tx.PlanType,
		Status:      tx.Status,
		Date:        tx.Date,
		Provider:    tx.Provider,
		PeriodStart: tx.PeriodStart.UTC(),
		PeriodEnd:   tx.PeriodEnd,
		Amount:      tx.Amount.String(),
		Currency:    tx.Currency,
		EventID:     tx.EventID,
		Metadata:    tx.Metadata,
	}
}

func (d txDoc) transaction() (*entitlement.Transaction, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, err
	}
	return &entitlement.Transaction{
		ID:          d.ID,
		UserID:      d.UserID,
		PlanType:    d.PlanType,
		Status:      d.Status,
		Date:        d.Date,
		Provider:    d.Provider,
		PeriodStart: d.PeriodStart,
		PeriodEnd:   d.PeriodEnd,
		Amount:      amount,
		Currency:    d.Currency,
		EventID:     d.EventID,
		Metadata:    d.Metadata,
	}, nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx *entitlement.Transaction) (bool, error) {
	if _, err := s.transactions.InsertOne(ctx, toTxDoc(tx)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]*entitlement.Transaction, error) {
	cur, err := s.transactions.Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []txDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*entitlement.Transaction, 0, len(docs))
	for _, d := range docs {
		tx, err := d.transaction()
		if err != nil {
			return nil, errors.Join(entitlement.ErrFailedToLoadAccount, err)
		}
		out = append(out, tx)
	}
	return out, nil
}
