package repository

import (
	"context"

	"union-data/internal/domain"
)

// MembersRepository member registry access. All queries are tenant-scoped.
type MembersRepository interface {
	ListMembers(ctx context.Context, tenantID string, filters MemberFilters, page, size int) ([]*domain.Member, int, error)
	GetMember(ctx context.Context, tenantID, memberID string) (*domain.Member, error)
	// CreateMember inserts the member and its property units in one
	// transaction and returns the new member id.
	CreateMember(ctx context.Context, tenantID string, m *domain.Member, units []*domain.PropertyUnit) (string, error)
	UpdateMember(ctx context.Context, tenantID, memberID string, m *domain.Member) error
	UpdateStatus(ctx context.Context, tenantID, memberID, status string) error
	SetBlocked(ctx context.Context, tenantID, memberID string, blocked bool, reason string) error
	DeleteMember(ctx context.Context, tenantID, memberID string) error

	// FindByNameAndParcel matches candidates for the dedup pass: same name
	// and same resident parcel code, excluding the keeper itself.
	FindByNameAndParcel(ctx context.Context, tenantID, name, parcelCode, excludeMemberID string) ([]*domain.Member, error)
	// FindExactMatch is the pre-insert duplicate check: name + phone +
	// property address. Returns ErrNotFound when nothing matches.
	FindExactMatch(ctx context.Context, tenantID, name, phone, address string) (*domain.Member, error)

	ListPropertyUnits(ctx context.Context, tenantID, memberID string) ([]*domain.PropertyUnit, error)
	SetPrimaryUnit(ctx context.Context, tenantID, memberID, propertyUnitID string) error
}

// MemberFilters list filters. Empty fields are not applied.
type MemberFilters struct {
	Search  string // matches name or phone
	Status  string
	Role    string
	Blocked *bool
}
