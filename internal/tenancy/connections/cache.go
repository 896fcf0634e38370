// Package connections memoizes one data-store connection per tenant.
package connections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tenantplane/internal/platform/docstore"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("connection cache closed")

// Conn is a live handle to one tenant's data store.
type Conn interface {
	Database() docstore.Database
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens a new connection for a tenant.
type Dialer interface {
	Dial(ctx context.Context, tenantKey, uri string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, tenantKey, uri string) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, tenantKey, uri string) (Conn, error) {
	return f(ctx, tenantKey, uri)
}

// Cache holds connections for the life of the process. Entries are never
// evicted; concurrent first requests for one key share a single dial.
type Cache struct {
	dialer      Dialer
	logger      *slog.Logger
	metrics     *Metrics
	dialTimeout time.Duration

	group  singleflight.Group
	mu     sync.RWMutex
	conns  map[string]Conn
	closed bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithMetrics sets the cache metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithDialTimeout bounds each dial. Defaults to 10s.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Cache) { c.dialTimeout = d }
}

// New returns an empty cache that opens connections through dialer.
func New(dialer Dialer, opts ...Option) *Cache {
	c := &Cache{
		dialer:      dialer,
		logger:      slog.Default(),
		metrics:     NewMetrics(nil),
		dialTimeout: 10 * time.Second,
		conns:       make(map[string]Conn),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached connection for tenantKey, dialing uri on first use.
// A failed dial is not cached; the next call retries.
func (c *Cache) Get(ctx context.Context, tenantKey, uri string) (Conn, error) {
	if conn, ok, err := c.lookup(tenantKey); ok || err != nil {
		return conn, err
	}

	v, err, shared := c.group.Do(tenantKey, func() (any, error) {
		if conn, ok, err := c.lookup(tenantKey); ok || err != nil {
			return conn, err
		}

		// The dial outlives any single caller so waiters are not failed by
		// the first caller's cancellation.
		dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.dialTimeout)
		defer cancel()

		start := time.Now()
		conn, err := c.dialer.Dial(dialCtx, tenantKey, uri)
		if err != nil {
			c.metrics.Dials.WithLabelValues("error").Inc()
			c.logger.ErrorContext(ctx, "tenant connection failed", "tenant", tenantKey, "error", err)
			return nil, fmt.Errorf("connect tenant %s: %w", tenantKey, err)
		}
		c.metrics.Dials.WithLabelValues("ok").Inc()

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			_ = conn.Close(context.WithoutCancel(ctx))
			return nil, ErrClosed
		}
		c.conns[tenantKey] = conn
		c.metrics.Open.Set(float64(len(c.conns)))
		c.logger.InfoContext(ctx, "tenant connection established",
			"tenant", tenantKey,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return conn, nil
	})
	if shared {
		c.metrics.SharedDials.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(Conn), nil
}

func (c *Cache) lookup(tenantKey string) (Conn, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false, ErrClosed
	}
	conn, ok := c.conns[tenantKey]
	return conn, ok, nil
}

// Len returns the number of cached connections.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns)
}

// Keys returns the cached tenant keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.conns))
}

// Close closes every cached connection and refuses further Gets.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	conns := c.conns
	c.conns = make(map[string]Conn)
	c.closed = true
	c.metrics.Open.Set(0)
	c.mu.Unlock()

	var errs []error
	for key, conn := range conns {
		if err := conn.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close tenant %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Health pings every cached connection.
func (c *Cache) Health(ctx context.Context) error {
	c.mu.RLock()
	conns := maps.Clone(c.conns)
	c.mu.RUnlock()

	var errs []error
	for key, conn := range conns {
		if err := conn.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
