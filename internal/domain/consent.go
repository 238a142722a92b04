package domain

import (
	"database/sql"
)

// Consent statuses.
const (
	ConsentAgreed    = "agreed"
	ConsentDisagreed = "disagreed"
	ConsentPending   = "pending"
)

// Display statuses for map rendering of a parcel's consent state.
const (
	DisplayFullAgreed    = "FULL_AGREED"
	DisplayPartialAgreed = "PARTIAL_AGREED"
	DisplayNoneAgreed    = "NONE_AGREED"
	DisplayNotSubmitted  = "NOT_SUBMITTED" // parcel with zero approved owners
)

// ConsentStage is a legal milestone requiring a threshold agreement rate.
// Stages are defined per business type; a member consent may only reference
// a stage whose business_type matches the owning tenant's.
type ConsentStage struct {
	StageID      string       `db:"stage_id"`
	TenantID     string       `db:"tenant_id"`
	BusinessType string       `db:"business_type"`
	StageName    string       `db:"stage_name"`
	RequiredRate float64      `db:"required_rate"` // percentage threshold
	SortOrder    int          `db:"sort_order"`
	CreatedAt    sql.NullTime `db:"created_at"`
}

// MemberConsent is one member's answer for one stage.
type MemberConsent struct {
	TenantID    string       `db:"tenant_id"`
	MemberID    string       `db:"member_id"`
	StageID     string       `db:"stage_id"`
	Status      string       `db:"status"`
	ConsentDate sql.NullTime `db:"consent_date"`
}
