// Package mongostore is the MongoDB inventory.Store.
//
// Grids and tubes live in separate collections. A unique compound index on
// (gridId, position) keeps one tube per cell.
package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	driver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/labgrid/pkg/mongo"
	"github.com/dmitrymomot/labgrid/svc/inventory"
)

const (
	gridsCollection = "grids"
	tubesCollection = "tubes"
)

type Store struct {
	grids *driver.Collection
	tubes *driver.Collection
}

var _ inventory.Store = (*Store)(nil)

func New(db *driver.Database) *Store {
	if db == nil {
		panic("mongostore: database is required")
	}
	return &Store{
		grids: db.Collection(gridsCollection),
		tubes: db.Collection(tubesCollection),
	}
}

// EnsureIndexes creates the unique position index and the family lookups.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.grids.Indexes().CreateMany(ctx, []driver.IndexModel{
		{Keys: bson.D{{Key: "familyId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.tubes.Indexes().CreateMany(ctx, []driver.IndexModel{
		{
			Keys:    bson.D{{Key: "gridId", Value: 1}, {Key: "position", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("tubes_grid_position_key"),
		},
		{Keys: bson.D{{Key: "familyId", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	})
	return err
}

// visible is the family filter: familyId = ? OR userId IN (...).
func visible(scope inventory.Scope) bson.M {
	or := bson.A{bson.M{"familyId": scope.FamilyID}}
	if len(scope.MemberIDs) > 0 {
		or = append(or, bson.M{"userId": bson.M{"$in": scope.MemberIDs}})
	}
	return bson.M{"$or": or}
}

func scoped(scope inventory.Scope, filter bson.M) bson.M {
	return bson.M{"$and": bson.A{filter, visible(scope)}}
}

func (s *Store) CreateGrid(ctx context.Context, g *inventory.Grid) error {
	_, err := s.grids.InsertOne(ctx, g)
	return err
}

func (s *Store) GetGrid(ctx context.Context, scope inventory.Scope, id string) (*inventory.Grid, error) {
	var g inventory.Grid
	if err := s.grids.FindOne(ctx, scoped(scope, bson.M{"_id": id})).Decode(&g); err != nil {
		if mongo.IsNotFoundError(err) {
			return nil, inventory.ErrGridNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (s *Store) ListGrids(ctx context.Context, scope inventory.Scope) ([]*inventory.Grid, error) {
	cur, err := s.grids.Find(ctx, visible(scope),
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []*inventory.Grid
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteGrid(ctx context.Context, scope inventory.Scope, id string) error {
	res, err := s.grids.DeleteOne(ctx, scoped(scope, bson.M{"_id": id}))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return inventory.ErrGridNotFound
	}
	_, err = s.tubes.DeleteMany(ctx, bson.M{"gridId": id})
	return err
}

func (s *Store) CountGrids(ctx context.Context, scope inventory.Scope) (int, error) {
	n, err := s.grids.CountDocuments(ctx, visible(scope))
	return int(n), err
}

func (s *Store) CreateTube(ctx context.Context, t *inventory.Tube) error {
	if _, err := s.tubes.InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return inventory.ErrPositionTaken
		}
		return err
	}
	return nil
}

func (s *Store) GetTube(ctx context.Context, scope inventory.Scope, id string) (*inventory.Tube, error) {
	var t inventory.Tube
	if err := s.tubes.FindOne(ctx, scoped(scope, bson.M{"_id": id})).Decode(&t); err != nil {
		if mongo.IsNotFoundError(err) {
			return nil, inventory.ErrTubeNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTubes(ctx context.Context, scope inventory.Scope, gridID string) ([]*inventory.Tube, error) {
	cur, err := s.tubes.Find(ctx, scoped(scope, bson.M{"gridId": gridID}),
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []*inventory.Tube
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteTube(ctx context.Context, scope inventory.Scope, id string) error {
	res, err := s.tubes.DeleteOne(ctx, scoped(scope, bson.M{"_id": id}))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return inventory.ErrTubeNotFound
	}
	return nil
}

func (s *Store) EmptyGrid(ctx context.Context, gridID string) (int, error) {
	res, err := s.tubes.DeleteMany(ctx, bson.M{"gridId": gridID})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (s *Store) CountTubes(ctx context.Context, scope inventory.Scope) (int, error) {
	n, err := s.tubes.CountDocuments(ctx, visible(scope))
	return int(n), err
}
