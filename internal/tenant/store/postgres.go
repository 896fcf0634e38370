package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"tenantplane/internal/sentinel"
	"tenantplane/internal/tenant/models"
)

const selectTenant = `
	SELECT slug, name, database_uri, subscribed_modules, active, status, created_at, updated_at
	FROM tenants
`

// PostgresStore persists tenants in the control-plane database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tenant store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts the tenant; a taken slug yields sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, t *models.Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is required")
	}
	modules, err := json.Marshal(t.SubscribedModules)
	if err != nil {
		return fmt.Errorf("encode subscribed modules: %w", err)
	}
	query := `
		INSERT INTO tenants (slug, name, database_uri, subscribed_modules, active, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		t.Slug,
		t.Name,
		t.DatabaseURI,
		string(modules),
		t.Active,
		string(t.Status),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant slug must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// Update writes every mutable column of the tenant.
func (s *PostgresStore) Update(ctx context.Context, t *models.Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is required")
	}
	modules, err := json.Marshal(t.SubscribedModules)
	if err != nil {
		return fmt.Errorf("encode subscribed modules: %w", err)
	}
	query := `
		UPDATE tenants
		SET name = $2, database_uri = $3, subscribed_modules = $4, active = $5, status = $6, updated_at = $7
		WHERE slug = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		t.Slug,
		t.Name,
		t.DatabaseURI,
		string(modules),
		t.Active,
		string(t.Status),
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return s.findOne(ctx, selectTenant+` WHERE slug = $1`, slug)
}

// FindActiveBySlug treats suspended tenants as missing.
func (s *PostgresStore) FindActiveBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return s.findOne(ctx, selectTenant+` WHERE slug = $1 AND active`, slug)
}

func (s *PostgresStore) findOne(ctx context.Context, query, slug string) (*models.Tenant, error) {
	t, err := scanTenant(s.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant by slug: %w", err)
	}
	return t, nil
}

// List returns every tenant ordered by slug.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, selectTenant+` ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return out, nil
}

type tenantRow interface {
	Scan(dest ...any) error
}

func scanTenant(row tenantRow) (*models.Tenant, error) {
	var t models.Tenant
	var status string
	var modules []byte
	if err := row.Scan(&t.Slug, &t.Name, &t.DatabaseURI, &modules, &t.Active, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(modules, &t.SubscribedModules); err != nil {
		return nil, fmt.Errorf("decode subscribed modules: %w", err)
	}
	if t.SubscribedModules == nil {
		t.SubscribedModules = []string{}
	}
	t.Status = models.DeploymentStatus(status)
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
