package domain

import (
	"database/sql"
)

// Member statuses.
const (
	MemberStatusIncomplete    = "incomplete"    // profile not yet filled in
	MemberStatusPending       = "pending"       // awaiting admin approval
	MemberStatusApproved      = "approved"
	MemberStatusRejected      = "rejected"
	MemberStatusPreregistered = "preregistered" // created by admin invite, no auth link yet
)

// Member roles.
const (
	RoleApplicant = "applicant"
	RoleUser      = "user"
	RoleAdmin     = "admin"
	RoleSysadmin  = "sysadmin"
)

// Member is a union member (or applicant) row.
type Member struct {
	MemberID           string         `db:"member_id"`
	TenantID           string         `db:"tenant_id"`
	Name               string         `db:"name"`
	Phone              string         `db:"phone"`
	BirthDate          sql.NullTime   `db:"birth_date"`
	Status             string         `db:"status"`
	Role               string         `db:"role"`
	Blocked            bool           `db:"blocked"`
	BlockedReason      sql.NullString `db:"blocked_reason"`
	ResidentAddress    sql.NullString `db:"resident_address"`
	ResidentParcelCode sql.NullString `db:"resident_parcel_code"` // 19-digit PNU of the member's residence
	AuthProvider       sql.NullString `db:"auth_provider"`
	AuthSubject        sql.NullString `db:"auth_subject"`
	CreatedAt          sql.NullTime   `db:"created_at"`
	UpdatedAt          sql.NullTime   `db:"updated_at"`
}

// HasAuthLink reports whether the member row is linked to an auth identity.
func (m *Member) HasAuthLink() bool {
	return m.AuthProvider.Valid && m.AuthProvider.String != "" && m.AuthSubject.Valid && m.AuthSubject.String != ""
}
