package domain

import (
	"database/sql"
)

// LandLot is a cadastral parcel. The 19-digit PNU is the natural key within
// a tenant.
type LandLot struct {
	TenantID      string          `db:"tenant_id"`
	ParcelCode    string          `db:"parcel_code"` // PNU
	Address       string          `db:"address"`
	Area          sql.NullFloat64 `db:"area"` // m2
	OfficialPrice sql.NullInt64   `db:"official_price"` // KRW per m2
	LandCategory  sql.NullString  `db:"land_category"`
	Boundary      sql.NullString  `db:"boundary"` // GeoJSON geometry for map rendering
	CreatedAt     sql.NullTime    `db:"created_at"`
	UpdatedAt     sql.NullTime    `db:"updated_at"`
}
