package domain

import (
	"database/sql"
)

// Tenant is one redevelopment/reconstruction union using the platform.
// Every other entity is scoped by tenant_id.
type Tenant struct {
	TenantID     string       `db:"tenant_id"`
	Slug         string       `db:"slug"` // URL slug, unique, ^[a-z0-9-_.]+$
	TenantName   string       `db:"tenant_name"`
	BusinessType string       `db:"business_type"` // 'redevelopment' | 'reconstruction'
	MemberCount  int          `db:"member_count"`  // admin-configured eligible member total; denominator of the headline consent rate
	Status       string       `db:"status"`
	CreatedAt    sql.NullTime `db:"created_at"`
	UpdatedAt    sql.NullTime `db:"updated_at"`
}

const (
	BusinessTypeRedevelopment  = "redevelopment"
	BusinessTypeReconstruction = "reconstruction"
)
