package domain

import (
	"database/sql"
)

// Ownership kinds. Explicit discriminant, never inferred from row shape.
const (
	OwnershipOwner   = "owner"
	OwnershipCoOwner = "co_owner"
	OwnershipFamily  = "family"
)

// PropertyUnit links a member to a parcel (and optionally a dong/ho inside
// the building on it). A member may hold several; exactly one per member is
// expected to carry IsPrimary, maintained by the application layer.
type PropertyUnit struct {
	PropertyUnitID string         `db:"property_unit_id"`
	TenantID       string         `db:"tenant_id"`
	MemberID       string         `db:"member_id"`
	ParcelCode     sql.NullString `db:"parcel_code"` // nullable until matched
	Dong           sql.NullString `db:"dong"`
	Ho             sql.NullString `db:"ho"`
	IsPrimary      bool           `db:"is_primary"`
	OwnershipType  string         `db:"ownership_type"`
	CreatedAt      sql.NullTime   `db:"created_at"`
}
