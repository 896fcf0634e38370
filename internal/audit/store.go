package audit

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"
)

// DefaultListLimit caps ListByTenant when the caller passes no limit.
const DefaultListLimit = 100

type Store interface {
	// Append records event. Appending an ID that is already stored is a no-op.
	Append(ctx context.Context, event Event) error
	// ListByTenant returns the newest events for tenant first.
	ListByTenant(ctx context.Context, tenant string, limit int) ([]Event, error)
}

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
	seen   map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event), seen: make(map[string]struct{})}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[event.ID]; ok && event.ID != "" {
		return nil
	}
	s.seen[event.ID] = struct{}{}
	s.events[event.Tenant] = append(s.events[event.Tenant], event)
	return nil
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenant string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	s.mu.RLock()
	out := append([]Event{}, s.events[tenant]...)
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Event) int { return b.Timestamp.Compare(a.Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PostgresStore persists the trail in the audit_events table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (id, occurred_at, tenant, action, module, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.Tenant,
		event.Action,
		event.Module,
		event.Source,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenant string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `
		SELECT id, occurred_at, tenant, action, module, source
		FROM audit_events
		WHERE tenant = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Tenant, &e.Action, &e.Module, &e.Source); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
