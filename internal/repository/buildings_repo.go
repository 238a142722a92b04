package repository

import (
	"context"

	"union-data/internal/domain"
)

// BuildingsRepository building registry and parcel-building mappings.
// Matching and merge mutations run inside MatchingService transactions;
// this interface covers the plain reads and CRUD around them.
type BuildingsRepository interface {
	ListBuildings(ctx context.Context, tenantID, search string) ([]*domain.Building, error)
	GetBuilding(ctx context.Context, tenantID, buildingID string) (*domain.Building, error)
	CreateBuilding(ctx context.Context, tenantID string, b *domain.Building) (string, error)
	UpdateBuilding(ctx context.Context, tenantID, buildingID string, b *domain.Building) error

	ListBuildingUnits(ctx context.Context, tenantID, buildingID string) ([]*domain.BuildingUnit, error)
	CreateBuildingUnit(ctx context.Context, tenantID string, u *domain.BuildingUnit) (string, error)

	GetMapping(ctx context.Context, tenantID, parcelCode string) (*domain.ParcelBuildingMapping, error)
	ListMappingsByBuilding(ctx context.Context, tenantID, buildingID string) ([]*domain.ParcelBuildingMapping, error)
}
