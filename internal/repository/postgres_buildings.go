package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"union-data/internal/domain"
)

type PostgresBuildingsRepository struct {
	db *sql.DB
}

func NewPostgresBuildingsRepository(db *sql.DB) *PostgresBuildingsRepository {
	return &PostgresBuildingsRepository{db: db}
}

const buildingColumns = `building_id::text, tenant_id::text, building_name, building_type, floor_count, total_unit_count, created_at, updated_at`

func scanBuilding(row interface{ Scan(...any) error }) (*domain.Building, error) {
	var b domain.Building
	if err := row.Scan(&b.BuildingID, &b.TenantID, &b.BuildingName, &b.BuildingType, &b.FloorCount, &b.TotalUnitCount, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PostgresBuildingsRepository) ListBuildings(ctx context.Context, tenantID, search string) ([]*domain.Building, error) {
	q := `SELECT ` + buildingColumns + ` FROM buildings WHERE tenant_id = $1`
	args := []any{tenantID}
	if search != "" {
		q += ` AND building_name ILIKE $2`
		args = append(args, "%"+search+"%")
	}
	q += ` ORDER BY building_name`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}
	defer rows.Close()

	out := []*domain.Building{}
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan building: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresBuildingsRepository) GetBuilding(ctx context.Context, tenantID, buildingID string) (*domain.Building, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+buildingColumns+` FROM buildings WHERE tenant_id = $1 AND building_id = $2`,
		tenantID, buildingID)
	b, err := scanBuilding(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get building: %w", err)
	}
	return b, nil
}

func (r *PostgresBuildingsRepository) CreateBuilding(ctx context.Context, tenantID string, b *domain.Building) (string, error) {
	buildingID := b.BuildingID
	if buildingID == "" {
		buildingID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO buildings (building_id, tenant_id, building_name, building_type, floor_count, total_unit_count)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		buildingID, tenantID, b.BuildingName, b.BuildingType, b.FloorCount, b.TotalUnitCount,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create building: %w", err)
	}
	return buildingID, nil
}

func (r *PostgresBuildingsRepository) UpdateBuilding(ctx context.Context, tenantID, buildingID string, b *domain.Building) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE buildings
		 SET building_name = $3, building_type = $4, floor_count = $5, total_unit_count = $6, updated_at = NOW()
		 WHERE tenant_id = $1 AND building_id = $2`,
		tenantID, buildingID, b.BuildingName, b.BuildingType, b.FloorCount, b.TotalUnitCount,
	)
	if err != nil {
		return fmt.Errorf("failed to update building: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresBuildingsRepository) ListBuildingUnits(ctx context.Context, tenantID, buildingID string) ([]*domain.BuildingUnit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT building_unit_id::text, tenant_id::text, building_id::text, dong, ho, floor, area, official_price
		 FROM building_units
		 WHERE tenant_id = $1 AND building_id = $2
		 ORDER BY dong, ho`,
		tenantID, buildingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list building units: %w", err)
	}
	defer rows.Close()

	out := []*domain.BuildingUnit{}
	for rows.Next() {
		var u domain.BuildingUnit
		if err := rows.Scan(&u.BuildingUnitID, &u.TenantID, &u.BuildingID, &u.Dong, &u.Ho, &u.Floor, &u.Area, &u.OfficialPrice); err != nil {
			return nil, fmt.Errorf("failed to scan building unit: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (r *PostgresBuildingsRepository) CreateBuildingUnit(ctx context.Context, tenantID string, u *domain.BuildingUnit) (string, error) {
	unitID := u.BuildingUnitID
	if unitID == "" {
		unitID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO building_units (building_unit_id, tenant_id, building_id, dong, ho, floor, area, official_price)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		unitID, tenantID, u.BuildingID, u.Dong, u.Ho, u.Floor, u.Area, u.OfficialPrice,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create building unit: %w", err)
	}
	return unitID, nil
}

func (r *PostgresBuildingsRepository) GetMapping(ctx context.Context, tenantID, parcelCode string) (*domain.ParcelBuildingMapping, error) {
	var m domain.ParcelBuildingMapping
	err := r.db.QueryRowContext(ctx,
		`SELECT tenant_id::text, parcel_code, building_id::text, previous_building_id::text, updated_at
		 FROM parcel_building_mappings
		 WHERE tenant_id = $1 AND parcel_code = $2`,
		tenantID, parcelCode,
	).Scan(&m.TenantID, &m.ParcelCode, &m.BuildingID, &m.PreviousBuildingID, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return &m, nil
}

func (r *PostgresBuildingsRepository) ListMappingsByBuilding(ctx context.Context, tenantID, buildingID string) ([]*domain.ParcelBuildingMapping, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tenant_id::text, parcel_code, building_id::text, previous_building_id::text, updated_at
		 FROM parcel_building_mappings
		 WHERE tenant_id = $1 AND building_id = $2
		 ORDER BY parcel_code`,
		tenantID, buildingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	out := []*domain.ParcelBuildingMapping{}
	for rows.Next() {
		var m domain.ParcelBuildingMapping
		if err := rows.Scan(&m.TenantID, &m.ParcelCode, &m.BuildingID, &m.PreviousBuildingID, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
