package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDatabase adapts a *mongo.Database.
type MongoDatabase struct {
	db *mongo.Database
}

// NewMongo wraps db.
func NewMongo(db *mongo.Database) *MongoDatabase {
	return &MongoDatabase{db: db}
}

// Name returns the database name.
func (m *MongoDatabase) Name() string { return m.db.Name() }

// Collection returns the named collection.
func (m *MongoDatabase) Collection(name string) Collection {
	return &mongoCollection{coll: m.db.Collection(name)}
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Name() string { return c.coll.Name() }

func (c *mongoCollection) InsertOne(ctx context.Context, doc bson.M, _ ...QueryOption) (any, error) {
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	return res.InsertedID, nil
}

func (c *mongoCollection) Find(ctx context.Context, filter bson.M, opts ...QueryOption) ([]bson.M, error) {
	o := Apply(opts...)
	findOpts := options.Find()
	if o.Limit > 0 {
		findOpts.SetLimit(o.Limit)
	}
	if o.SortField != "" {
		dir := 1
		if o.SortDesc {
			dir = -1
		}
		findOpts.SetSort(bson.D{{Key: o.SortField, Value: dir}})
	}

	cur, err := c.coll.Find(ctx, nonNil(filter), findOpts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.coll.Name(), err)
	}
	out := []bson.M{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("read %s cursor: %w", c.coll.Name(), err)
	}
	return out, nil
}

func (c *mongoCollection) FindOne(ctx context.Context, filter bson.M, _ ...QueryOption) (bson.M, error) {
	var out bson.M
	err := c.coll.FindOne(ctx, nonNil(filter)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find one in %s: %w", c.coll.Name(), err)
	}
	return out, nil
}

func (c *mongoCollection) UpdateMany(ctx context.Context, filter, update bson.M, _ ...QueryOption) (int64, error) {
	res, err := c.coll.UpdateMany(ctx, nonNil(filter), update)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", c.coll.Name(), err)
	}
	return res.MatchedCount, nil
}

func (c *mongoCollection) DeleteMany(ctx context.Context, filter bson.M, _ ...QueryOption) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, nonNil(filter))
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func (c *mongoCollection) Count(ctx context.Context, filter bson.M, _ ...QueryOption) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, nonNil(filter))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.coll.Name(), err)
	}
	return n, nil
}

func nonNil(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}
