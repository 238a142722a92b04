package repository

import (
	"context"

	"union-data/internal/domain"
)

// TenantsRepository platform-level tenant management.
type TenantsRepository interface {
	ListTenants(ctx context.Context, search string) ([]*domain.Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	CreateTenant(ctx context.Context, t *domain.Tenant) (string, error)
	UpdateTenant(ctx context.Context, tenantID string, t *domain.Tenant) error
	UpdateMemberCount(ctx context.Context, tenantID string, memberCount int) error
}
