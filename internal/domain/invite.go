package domain

import (
	"database/sql"
)

// Invite statuses.
const (
	InviteStatusPending = "pending"
	InviteStatusUsed    = "used"
	InviteStatusExpired = "expired"
)

// MemberInvite is an admin-issued invitation. Creating one also creates a
// preregistered member row; revoking the invite cascades to that row.
type MemberInvite struct {
	InviteID  string         `db:"invite_id"`
	TenantID  string         `db:"tenant_id"`
	Name      string         `db:"name"`
	Phone     string         `db:"phone"`
	Status    string         `db:"status"`
	Token     string         `db:"token"`
	MemberID  sql.NullString `db:"member_id"` // provisional member created with the invite
	CreatedAt sql.NullTime   `db:"created_at"`
}
