package repository

import (
	"context"
	"database/sql"
)

// TenantResolver maps request-level identifiers to a tenant id. Handlers
// resolve the slug before any tenant-scoped work.
type TenantResolver interface {
	TenantIDBySlug(ctx context.Context, slug string) (string, error)
	TenantIDByMemberID(ctx context.Context, memberID string) (string, error)
}

type PostgresTenantResolver struct {
	db *sql.DB
}

func NewPostgresTenantResolver(db *sql.DB) *PostgresTenantResolver {
	return &PostgresTenantResolver{db: db}
}

func (r *PostgresTenantResolver) TenantIDBySlug(ctx context.Context, slug string) (string, error) {
	var tenantID string
	err := r.db.QueryRowContext(ctx, "SELECT tenant_id::text FROM tenants WHERE slug = $1", slug).Scan(&tenantID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return tenantID, err
}

func (r *PostgresTenantResolver) TenantIDByMemberID(ctx context.Context, memberID string) (string, error) {
	var tenantID string
	err := r.db.QueryRowContext(ctx, "SELECT tenant_id::text FROM members WHERE member_id = $1", memberID).Scan(&tenantID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return tenantID, err
}
