package domain

import (
	"database/sql"
)

// Building is a physical structure. Duplicate rows can arrive from different
// ingestion sources; the merge operations repoint units and mappings at a
// surviving row and leave the duplicate orphaned.
type Building struct {
	BuildingID     string         `db:"building_id"`
	TenantID       string         `db:"tenant_id"`
	BuildingName   string         `db:"building_name"`
	BuildingType   sql.NullString `db:"building_type"`
	FloorCount     sql.NullInt64  `db:"floor_count"`
	TotalUnitCount sql.NullInt64  `db:"total_unit_count"`
	CreatedAt      sql.NullTime   `db:"created_at"`
	UpdatedAt      sql.NullTime   `db:"updated_at"`
}

// BuildingUnit is a dong/ho unit inside a building, independent of ownership.
type BuildingUnit struct {
	BuildingUnitID string          `db:"building_unit_id"`
	TenantID       string          `db:"tenant_id"`
	BuildingID     string          `db:"building_id"`
	Dong           string          `db:"dong"`
	Ho             string          `db:"ho"`
	Floor          sql.NullInt64   `db:"floor"`
	Area           sql.NullFloat64 `db:"area"`
	OfficialPrice  sql.NullInt64   `db:"official_price"`
}
