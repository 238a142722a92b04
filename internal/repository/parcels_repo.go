package repository

import (
	"context"

	"union-data/internal/domain"
)

// ParcelsRepository land-lot registry and owner lookups.
type ParcelsRepository interface {
	ListLandLots(ctx context.Context, tenantID, search string, page, size int) ([]*domain.LandLot, int, error)
	GetLandLot(ctx context.Context, tenantID, parcelCode string) (*domain.LandLot, error)
	UpsertLandLot(ctx context.Context, tenantID string, lot *domain.LandLot) error
	UpdateLandLot(ctx context.Context, tenantID, parcelCode string, lot *domain.LandLot) error

	// OwnersByParcel returns the distinct approved members holding a
	// property unit on the parcel.
	OwnersByParcel(ctx context.Context, tenantID, parcelCode string) ([]*domain.Member, error)
}
