package domain

import (
	"database/sql"
)

// ParcelBuildingMapping associates a parcel with the building standing on
// it. One row per (tenant_id, parcel_code). PreviousBuildingID keeps the
// most recent replaced reference for undo; it is not a history stack, and
// when set it always differs from BuildingID.
type ParcelBuildingMapping struct {
	TenantID           string         `db:"tenant_id"`
	ParcelCode         string         `db:"parcel_code"`
	BuildingID         string         `db:"building_id"`
	PreviousBuildingID sql.NullString `db:"previous_building_id"`
	UpdatedAt          sql.NullTime   `db:"updated_at"`
}
