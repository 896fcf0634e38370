//go:build integration

package containers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"tenantplane/migrations"
)

// PostgresContainer wraps a testcontainers Postgres instance.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container with migrations applied.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("tenantplane_test"),
		postgres.WithUsername("tenantplane"),
		postgres.WithPassword("tenantplane_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	pc := &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}

	if _, err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	// No t.Cleanup: the Manager shares the container across suites and Ryuk
	// removes it when the test process exits.

	return pc
}

// TruncateTables clears all data from the specified tables.
// Use between tests to ensure isolation without restarting the container.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		_, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE")
		if err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// TruncateAll clears the control-plane tables.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	return p.TruncateTables(ctx, "tenants", "audit_events")
}

// Reset drops every control-plane table, including schema_migrations, and
// re-applies the schema. Use it in tests that exercise migrations themselves.
func (p *PostgresContainer) Reset(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx,
		"DROP TABLE IF EXISTS audit_events, tenants, schema_migrations CASCADE"); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	_, err := migrations.Apply(ctx, p.DB)
	return err
}

// CreateTestTenant writes an active tenant row directly, bypassing the store,
// so tests can check how the store reads rows it did not write.
func (p *PostgresContainer) CreateTestTenant(ctx context.Context, t testing.TB, slug string, modules ...string) {
	t.Helper()
	if modules == nil {
		modules = []string{}
	}
	encoded, err := json.Marshal(modules)
	if err != nil {
		t.Fatalf("CreateTestTenant: %v", err)
	}
	_, err = p.DB.ExecContext(ctx, `
		INSERT INTO tenants (slug, name, subscribed_modules, active, status, created_at, updated_at)
		VALUES ($1, $2, $3, true, 'live', NOW(), NOW())
	`, slug, "Test Tenant "+slug, string(encoded))
	if err != nil {
		t.Fatalf("CreateTestTenant: %v", err)
	}
}
