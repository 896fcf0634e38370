// Package docstore is the document database seam used by tenant modules.
// It speaks bson.M filters and documents so the same calls run against
// MongoDB in production and an in-process store in tests.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrNotFound is returned by FindOne when nothing matches.
	ErrNotFound = errors.New("document not found")
	// ErrUnsupported is returned by Memory for operators it does not implement.
	ErrUnsupported = errors.New("unsupported operator")
)

// Database hands out named collections.
type Database interface {
	Name() string
	Collection(name string) Collection
}

// Collection is the set of verbs modules may issue against a collection.
type Collection interface {
	Name() string
	InsertOne(ctx context.Context, doc bson.M, opts ...QueryOption) (any, error)
	Find(ctx context.Context, filter bson.M, opts ...QueryOption) ([]bson.M, error)
	FindOne(ctx context.Context, filter bson.M, opts ...QueryOption) (bson.M, error)
	UpdateMany(ctx context.Context, filter, update bson.M, opts ...QueryOption) (int64, error)
	DeleteMany(ctx context.Context, filter bson.M, opts ...QueryOption) (int64, error)
	Count(ctx context.Context, filter bson.M, opts ...QueryOption) (int64, error)
}

// QueryOptions is the resolved form of a QueryOption list.
type QueryOptions struct {
	Bypass       bool
	BypassReason string
	Limit        int64
	SortField    string
	SortDesc     bool
}

// QueryOption tunes a single operation.
type QueryOption func(*QueryOptions)

// WithIsolationBypass runs the operation outside the tenant boundary.
// The reason is logged; an empty reason is refused by the isolation layer.
func WithIsolationBypass(reason string) QueryOption {
	return func(o *QueryOptions) {
		o.Bypass = true
		o.BypassReason = reason
	}
}

// WithLimit caps the number of documents Find returns.
func WithLimit(n int64) QueryOption {
	return func(o *QueryOptions) { o.Limit = n }
}

// WithSort orders Find results by one field.
func WithSort(field string, desc bool) QueryOption {
	return func(o *QueryOptions) {
		o.SortField = field
		o.SortDesc = desc
	}
}

// Apply resolves opts in order.
func Apply(opts ...QueryOption) QueryOptions {
	var o QueryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Decode converts a stored document into T through its bson tags.
func Decode[T any](doc bson.M) (T, error) {
	var out T
	data, err := bson.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("marshal document: %w", err)
	}
	if err := bson.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// DecodeAll decodes every document, stopping at the first failure.
func DecodeAll[T any](docs []bson.M) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := Decode[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Encode converts v into a bson.M suitable for InsertOne.
func Encode(v any) (bson.M, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var out bson.M
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return out, nil
}
