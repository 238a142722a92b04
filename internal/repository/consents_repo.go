package repository

import (
	"context"

	"union-data/internal/domain"
)

// ConsentCounts owner/agreement tallies for one parcel and stage.
type ConsentCounts struct {
	TotalOwners  int
	AgreedOwners int
}

// ParcelStatusRow per-parcel tallies for the map overview.
type ParcelStatusRow struct {
	ParcelCode   string
	TotalOwners  int
	AgreedOwners int
}

// ConsentsRepository consent stages and per-member consent records, plus
// the aggregation queries. Aggregations are single SQL joins with explicit
// predicates (approved members only, non-null parcel codes) rather than
// application-side joins.
type ConsentsRepository interface {
	ListStages(ctx context.Context, tenantID string) ([]*domain.ConsentStage, error)
	GetStage(ctx context.Context, tenantID, stageID string) (*domain.ConsentStage, error)
	CreateStage(ctx context.Context, tenantID string, s *domain.ConsentStage) (string, error)

	UpsertConsent(ctx context.Context, tenantID string, c *domain.MemberConsent) error

	ParcelConsentCounts(ctx context.Context, tenantID, parcelCode, stageID string) (ConsentCounts, error)
	TenantAgreedCount(ctx context.Context, tenantID, stageID string) (int, error)
	// AreaCounts returns the total land area held by approved owners and
	// the share of it held by owners agreed to the stage.
	AreaCounts(ctx context.Context, tenantID, stageID string) (agreedArea, totalArea float64, err error)
	ParcelStatusRows(ctx context.Context, tenantID, stageID string) ([]ParcelStatusRow, error)
}
