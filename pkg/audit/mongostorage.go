package audit

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStorage stores records in the auditLogs collection.
type MongoStorage struct {
	coll *mongo.Collection
}

func NewMongoStorage(db *mongo.Database) *MongoStorage {
	if db == nil {
		panic("audit: mongo database cannot be nil")
	}
	return &MongoStorage{coll: db.Collection("auditLogs")}
}

// EnsureIndexes creates the family lookup index.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func (s *MongoStorage) Store(ctx context.Context, r Record) error {
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

func mongoFilter(c Criteria) bson.M {
	f := bson.M{}
	if c.UserID != "" {
		f["userId"] = c.UserID
	}
	if c.Action != "" {
		f["action"] = c.Action
	}
	if c.EntityType != "" {
		f["entityType"] = c.EntityType
	}
	if c.EntityID != "" {
		f["entityId"] = c.EntityID
	}
	if c.ActiveUser != "" {
		f["details.activeUser.id"] = c.ActiveUser
	}
	if !c.Since.IsZero() {
		f["createdAt"] = bson.M{"$gte": c.Since}
	}
	return f
}

func (s *MongoStorage) Query(ctx context.Context, c Criteria) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	if c.Limit > 0 {
		opts.SetLimit(int64(c.Limit))
	}
	if c.Offset > 0 {
		opts.SetSkip(int64(c.Offset))
	}
	cur, err := s.coll.Find(ctx, mongoFilter(c), opts)
	if err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}
	var out []Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStorage) Count(ctx context.Context, c Criteria) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, mongoFilter(c))
	if err != nil {
		return 0, errors.Join(ErrStorageNotAvailable, err)
	}
	return n, nil
}
