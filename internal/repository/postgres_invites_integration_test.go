// +build integration

package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"union-data/internal/domain"
)

func seedInviteTenant(t *testing.T, db *sql.DB) string {
	tenantID := uuid.New().String()
	_, err := db.Exec(
		`INSERT INTO tenants (tenant_id, slug, tenant_name, business_type, member_count, status)
		 VALUES ($1, $2, $3, 'redevelopment', 0, 'active')`,
		tenantID, "invite-"+tenantID[:8], "Invite Test Union",
	)
	require.NoError(t, err)
	return tenantID
}

func cleanupInviteTenant(t *testing.T, db *sql.DB, tenantID string) {
	for _, stmt := range []string{
		`DELETE FROM member_invites WHERE tenant_id = $1`,
		`DELETE FROM members WHERE tenant_id = $1`,
		`DELETE FROM tenants WHERE tenant_id = $1`,
	} {
		_, _ = db.Exec(stmt, tenantID)
	}
}

func TestRevokeInvite_DeletesProvisionalMember(t *testing.T) {
	db := getTestDBForConsents(t)
	if db == nil {
		return
	}
	defer db.Close()

	ctx := context.Background()
	tenantID := seedInviteTenant(t, db)
	defer cleanupInviteTenant(t, db, tenantID)

	repo := NewPostgresInvitesRepository(db)
	inviteID, err := repo.CreateInvite(ctx, tenantID,
		&domain.MemberInvite{Name: "박영희", Phone: "010-1234-5678"},
		&domain.Member{Name: "박영희", Phone: "010-1234-5678"},
	)
	require.NoError(t, err)

	inv, err := repo.GetInvite(ctx, tenantID, inviteID)
	require.NoError(t, err)
	require.True(t, inv.MemberID.Valid)

	require.NoError(t, repo.RevokeInvite(ctx, tenantID, inviteID))

	_, err = repo.GetInvite(ctx, tenantID, inviteID)
	require.ErrorIs(t, err, ErrNotFound)

	var count int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM members WHERE tenant_id = $1 AND member_id::text = $2`,
		tenantID, inv.MemberID.String,
	).Scan(&count))
	require.Equal(t, 0, count, "preregistered member should be removed with the invite")
}

func TestRevokeInvite_KeepsRegisteredMember(t *testing.T) {
	db := getTestDBForConsents(t)
	if db == nil {
		return
	}
	defer db.Close()

	ctx := context.Background()
	tenantID := seedInviteTenant(t, db)
	defer cleanupInviteTenant(t, db, tenantID)

	repo := NewPostgresInvitesRepository(db)
	inviteID, err := repo.CreateInvite(ctx, tenantID,
		&domain.MemberInvite{Name: "이민준", Phone: "010-2222-3333"},
		&domain.Member{Name: "이민준", Phone: "010-2222-3333"},
	)
	require.NoError(t, err)

	inv, err := repo.GetInvite(ctx, tenantID, inviteID)
	require.NoError(t, err)

	// Member completed registration after being invited.
	_, err = db.Exec(
		`UPDATE members SET status = 'pending' WHERE tenant_id = $1 AND member_id::text = $2`,
		tenantID, inv.MemberID.String,
	)
	require.NoError(t, err)

	require.NoError(t, repo.RevokeInvite(ctx, tenantID, inviteID))

	var count int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM members WHERE tenant_id = $1 AND member_id::text = $2`,
		tenantID, inv.MemberID.String,
	).Scan(&count))
	require.Equal(t, 1, count, "a member past preregistration must survive revoke")
}
