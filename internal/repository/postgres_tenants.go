package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"union-data/internal/domain"
)

type PostgresTenantsRepository struct {
	db *sql.DB
}

func NewPostgresTenantsRepository(db *sql.DB) *PostgresTenantsRepository {
	return &PostgresTenantsRepository{db: db}
}

const tenantColumns = `tenant_id::text, slug, tenant_name, business_type, member_count, status, created_at, updated_at`

func scanTenant(row interface{ Scan(...any) error }) (*domain.Tenant, error) {
	var t domain.Tenant
	if err := row.Scan(&t.TenantID, &t.Slug, &t.TenantName, &t.BusinessType, &t.MemberCount, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresTenantsRepository) ListTenants(ctx context.Context, search string) ([]*domain.Tenant, error) {
	q := `SELECT ` + tenantColumns + ` FROM tenants`
	args := []any{}
	if search != "" {
		q += ` WHERE tenant_name ILIKE $1 OR slug ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	q += ` ORDER BY tenant_name`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	out := []*domain.Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresTenantsRepository) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE tenant_id = $1`, tenantID)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

func (r *PostgresTenantsRepository) GetTenantBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant by slug: %w", err)
	}
	return t, nil
}

func (r *PostgresTenantsRepository) CreateTenant(ctx context.Context, t *domain.Tenant) (string, error) {
	tenantID := t.TenantID
	if tenantID == "" {
		tenantID = uuid.NewString()
	}
	status := t.Status
	if status == "" {
		status = "active"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (tenant_id, slug, tenant_name, business_type, member_count, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		tenantID, t.Slug, t.TenantName, t.BusinessType, t.MemberCount, status,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create tenant: %w", err)
	}
	return tenantID, nil
}

func (r *PostgresTenantsRepository) UpdateTenant(ctx context.Context, tenantID string, t *domain.Tenant) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenants
		 SET tenant_name = $2, business_type = $3, member_count = $4, status = $5, updated_at = NOW()
		 WHERE tenant_id = $1`,
		tenantID, t.TenantName, t.BusinessType, t.MemberCount, t.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresTenantsRepository) UpdateMemberCount(ctx context.Context, tenantID string, memberCount int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET member_count = $2, updated_at = NOW() WHERE tenant_id = $1`,
		tenantID, memberCount,
	)
	if err != nil {
		return fmt.Errorf("failed to update member_count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
