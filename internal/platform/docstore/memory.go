package docstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrDuplicateKey is returned when an insert reuses an existing _id.
var ErrDuplicateKey = errors.New("duplicate _id")

// Memory is an in-process Database. Documents are stored in their bson
// round-tripped form so reads observe the same shapes MongoDB returns.
type Memory struct {
	name  string
	mu    sync.Mutex
	colls map[string]*memoryCollection
}

// NewMemory returns an empty in-process database.
func NewMemory(name string) *Memory {
	return &Memory{name: name, colls: make(map[string]*memoryCollection)}
}

// Name returns the database name.
func (m *Memory) Name() string { return m.name }

// Collection returns the named collection, creating it on first use.
func (m *Memory) Collection(name string) Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.colls[name]
	if !ok {
		c = &memoryCollection{name: name}
		m.colls[name] = c
	}
	return c
}

type memoryCollection struct {
	name string
	mu   sync.RWMutex
	docs []bson.M
}

func (c *memoryCollection) Name() string { return c.name }

func (c *memoryCollection) InsertOne(_ context.Context, doc bson.M, _ ...QueryOption) (any, error) {
	stored, err := roundTrip(doc)
	if err != nil {
		return nil, err
	}
	if _, ok := stored["_id"]; !ok {
		stored["_id"] = bson.NewObjectID()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.docs {
		if valuesEqual(existing["_id"], stored["_id"]) {
			return nil, fmt.Errorf("insert into %s: %w", c.name, ErrDuplicateKey)
		}
	}
	c.docs = append(c.docs, stored)
	return stored["_id"], nil
}

func (c *memoryCollection) Find(_ context.Context, filter bson.M, opts ...QueryOption) ([]bson.M, error) {
	o := Apply(opts...)
	f, err := roundTrip(filter)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	out := []bson.M{}
	for _, doc := range c.docs {
		ok, err := matches(doc, f)
		if err != nil {
			c.mu.RUnlock()
			return nil, err
		}
		if ok {
			out = append(out, clone(doc))
		}
	}
	c.mu.RUnlock()

	if o.SortField != "" {
		slices.SortStableFunc(out, func(a, b bson.M) int {
			av, _ := lookup(a, o.SortField)
			bv, _ := lookup(b, o.SortField)
			n := order(av, bv)
			if o.SortDesc {
				return -n
			}
			return n
		})
	}
	if o.Limit > 0 && int64(len(out)) > o.Limit {
		out = out[:o.Limit]
	}
	return out, nil
}

func (c *memoryCollection) FindOne(ctx context.Context, filter bson.M, opts ...QueryOption) (bson.M, error) {
	docs, err := c.Find(ctx, filter, append(opts, WithLimit(1))...)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (c *memoryCollection) UpdateMany(_ context.Context, filter, update bson.M, _ ...QueryOption) (int64, error) {
	f, err := roundTrip(filter)
	if err != nil {
		return 0, err
	}
	u, err := roundTrip(update)
	if err != nil {
		return 0, err
	}
	if err := validateUpdate(u); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, doc := range c.docs {
		ok, err := matches(doc, f)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		if err := applyUpdate(doc, u); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (c *memoryCollection) DeleteMany(_ context.Context, filter bson.M, _ ...QueryOption) (int64, error) {
	f, err := roundTrip(filter)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.docs[:0]
	var n int64
	for _, doc := range c.docs {
		ok, err := matches(doc, f)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
			continue
		}
		kept = append(kept, doc)
	}
	clear(c.docs[len(kept):])
	c.docs = kept
	return n, nil
}

func (c *memoryCollection) Count(_ context.Context, filter bson.M, _ ...QueryOption) (int64, error) {
	f, err := roundTrip(filter)
	if err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, doc := range c.docs {
		ok, err := matches(doc, f)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func roundTrip(m bson.M) (bson.M, error) {
	if m == nil {
		return bson.M{}, nil
	}
	data, err := bson.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	out := bson.M{}
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return out, nil
}

func clone(m bson.M) bson.M {
	out, err := roundTrip(m)
	if err != nil {
		// stored documents were produced by roundTrip and always re-encode
		panic(err)
	}
	return out
}
