// Package isolation scopes document store operations to the ambient tenant.
//
// Every collection declared with a Schema passes through one chokepoint that
// narrows reads, updates and deletes with an equality predicate on the tenant
// field and stamps inserts with the tenant slug. Callers can only step outside
// the boundary with an explicit, reasoned bypass.
package isolation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"tenantplane/internal/platform/docstore"
	"tenantplane/pkg/requestcontext"
)

// DefaultTenantField is used when a Schema leaves TenantField empty.
const DefaultTenantField = "tenant"

var (
	// ErrBypassReasonRequired is returned when a bypass is requested without a reason.
	ErrBypassReasonRequired = errors.New("isolation bypass requires a reason")
	// ErrTenantReassignment is returned when a scoped write would move a
	// document to a different tenant.
	ErrTenantReassignment = errors.New("tenant field cannot be reassigned")
)

// Schema declares an isolation-aware collection.
type Schema struct {
	Collection  string
	TenantField string
}

// Enforcer wraps databases so that declared collections are tenant scoped.
type Enforcer struct {
	logger  *slog.Logger
	metrics *Metrics
	fields  map[string]string
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithLogger sets the logger used for bypass audit lines.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enforcer) { e.logger = logger }
}

// WithMetrics sets the counters for scoped and bypassed operations.
func WithMetrics(m *Metrics) Option {
	return func(e *Enforcer) { e.metrics = m }
}

// New builds an enforcer for schemas. A later schema for the same collection wins.
func New(schemas []Schema, opts ...Option) *Enforcer {
	e := &Enforcer{
		logger:  slog.Default(),
		metrics: NewMetrics(nil),
		fields:  make(map[string]string, len(schemas)),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, s := range schemas {
		field := s.TenantField
		if field == "" {
			field = DefaultTenantField
		}
		e.fields[s.Collection] = field
	}
	return e
}

// Aware reports whether collection is isolation-aware and its tenant field.
func (e *Enforcer) Aware(collection string) (string, bool) {
	f, ok := e.fields[collection]
	return f, ok
}

// Wrap returns db with every aware collection scoped.
func (e *Enforcer) Wrap(db docstore.Database) docstore.Database {
	return &database{inner: db, enforcer: e}
}

type database struct {
	inner    docstore.Database
	enforcer *Enforcer
}

func (d *database) Name() string { return d.inner.Name() }

func (d *database) Collection(name string) docstore.Collection {
	inner := d.inner.Collection(name)
	field, ok := d.enforcer.fields[name]
	if !ok {
		return inner
	}
	return &collection{inner: inner, field: field, enforcer: d.enforcer}
}

type collection struct {
	inner    docstore.Collection
	field    string
	enforcer *Enforcer
}

func (c *collection) Name() string { return c.inner.Name() }

// scope decides how an operation runs. An empty slug with a nil error means
// the operation passes through unscoped, either bypassed or on a global route.
func (c *collection) scope(ctx context.Context, op string, opts []docstore.QueryOption) (string, error) {
	o := docstore.Apply(opts...)
	bypass, reason := o.Bypass, o.BypassReason
	if !bypass {
		if r := requestcontext.IsolationBypass(ctx); r != "" {
			bypass, reason = true, r
		}
	}

	if bypass {
		if strings.TrimSpace(reason) == "" {
			return "", ErrBypassReasonRequired
		}
		c.enforcer.logger.WarnContext(ctx, "tenant isolation bypassed",
			"collection", c.inner.Name(),
			"operation", op,
			"reason", reason,
			"tenant", requestcontext.TenantSlug(ctx),
			"request_id", requestcontext.RequestID(ctx),
		)
		c.enforcer.metrics.Bypassed.WithLabelValues(c.inner.Name()).Inc()
		return "", nil
	}

	slug := requestcontext.TenantSlug(ctx)
	if slug != "" {
		c.enforcer.metrics.Scoped.WithLabelValues(c.inner.Name(), op).Inc()
	}
	return slug, nil
}

func (c *collection) narrow(filter bson.M, slug string) bson.M {
	if slug == "" {
		return filter
	}
	predicate := bson.M{c.field: slug}
	if len(filter) == 0 {
		return predicate
	}
	return bson.M{"$and": []bson.M{filter, predicate}}
}

func (c *collection) InsertOne(ctx context.Context, doc bson.M, opts ...docstore.QueryOption) (any, error) {
	slug, err := c.scope(ctx, "insert", opts)
	if err != nil {
		return nil, err
	}
	if slug == "" {
		return c.inner.InsertOne(ctx, doc, opts...)
	}

	if existing, ok := doc[c.field]; ok && existing != slug {
		return nil, ErrTenantReassignment
	}
	stamped := make(bson.M, len(doc)+1)
	for k, v := range doc {
		stamped[k] = v
	}
	stamped[c.field] = slug
	return c.inner.InsertOne(ctx, stamped, opts...)
}

func (c *collection) Find(ctx context.Context, filter bson.M, opts ...docstore.QueryOption) ([]bson.M, error) {
	slug, err := c.scope(ctx, "find", opts)
	if err != nil {
		return nil, err
	}
	return c.inner.Find(ctx, c.narrow(filter, slug), opts...)
}

func (c *collection) FindOne(ctx context.Context, filter bson.M, opts ...docstore.QueryOption) (bson.M, error) {
	slug, err := c.scope(ctx, "find_one", opts)
	if err != nil {
		return nil, err
	}
	return c.inner.FindOne(ctx, c.narrow(filter, slug), opts...)
}

func (c *collection) UpdateMany(ctx context.Context, filter, update bson.M, opts ...docstore.QueryOption) (int64, error) {
	slug, err := c.scope(ctx, "update", opts)
	if err != nil {
		return 0, err
	}
	if slug != "" && c.touchesTenantField(update) {
		return 0, ErrTenantReassignment
	}
	return c.inner.UpdateMany(ctx, c.narrow(filter, slug), update, opts...)
}

func (c *collection) DeleteMany(ctx context.Context, filter bson.M, opts ...docstore.QueryOption) (int64, error) {
	slug, err := c.scope(ctx, "delete", opts)
	if err != nil {
		return 0, err
	}
	return c.inner.DeleteMany(ctx, c.narrow(filter, slug), opts...)
}

func (c *collection) Count(ctx context.Context, filter bson.M, opts ...docstore.QueryOption) (int64, error) {
	slug, err := c.scope(ctx, "count", opts)
	if err != nil {
		return 0, err
	}
	return c.inner.Count(ctx, c.narrow(filter, slug), opts...)
}

func (c *collection) touchesTenantField(update bson.M) bool {
	for _, fields := range update {
		var m map[string]any
		switch f := fields.(type) {
		case bson.M:
			m = f
		case map[string]any:
			m = f
		default:
			continue
		}
		for path := range m {
			if path == c.field || strings.HasPrefix(path, c.field+".") {
				return true
			}
		}
	}
	return false
}
