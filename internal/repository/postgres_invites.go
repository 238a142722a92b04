package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"union-data/internal/domain"
)

type PostgresInvitesRepository struct {
	db *sql.DB
}

func NewPostgresInvitesRepository(db *sql.DB) *PostgresInvitesRepository {
	return &PostgresInvitesRepository{db: db}
}

const inviteColumns = `invite_id::text, tenant_id::text, name, phone, status, token, member_id::text, created_at`

func scanInvite(row interface{ Scan(...any) error }) (*domain.MemberInvite, error) {
	var i domain.MemberInvite
	if err := row.Scan(&i.InviteID, &i.TenantID, &i.Name, &i.Phone, &i.Status, &i.Token, &i.MemberID, &i.CreatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *PostgresInvitesRepository) ListInvites(ctx context.Context, tenantID, status string) ([]*domain.MemberInvite, error) {
	q := `SELECT ` + inviteColumns + ` FROM member_invites WHERE tenant_id = $1`
	args := []any{tenantID}
	if status != "" {
		q += ` AND status = $2`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	out := []*domain.MemberInvite{}
	for rows.Next() {
		i, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *PostgresInvitesRepository) GetInvite(ctx context.Context, tenantID, inviteID string) (*domain.MemberInvite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM member_invites WHERE tenant_id = $1 AND invite_id = $2`,
		tenantID, inviteID)
	i, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return i, nil
}

func (r *PostgresInvitesRepository) GetInviteByToken(ctx context.Context, token string) (*domain.MemberInvite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM member_invites WHERE token = $1`, token)
	i, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite by token: %w", err)
	}
	return i, nil
}

func (r *PostgresInvitesRepository) CreateInvite(ctx context.Context, tenantID string, inv *domain.MemberInvite, provisional *domain.Member) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	memberID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO members (member_id, tenant_id, name, phone, status, role)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		memberID, tenantID, provisional.Name, provisional.Phone, domain.MemberStatusPreregistered, domain.RoleUser,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert preregistered member: %w", err)
	}

	inviteID := inv.InviteID
	if inviteID == "" {
		inviteID = uuid.NewString()
	}
	token := inv.Token
	if token == "" {
		token = uuid.NewString()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO member_invites (invite_id, tenant_id, name, phone, status, token, member_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inviteID, tenantID, inv.Name, inv.Phone, domain.InviteStatusPending, token, memberID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert invite: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit invite creation: %w", err)
	}
	return inviteID, nil
}

func (r *PostgresInvitesRepository) MarkUsed(ctx context.Context, tenantID, inviteID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE member_invites SET status = 'used' WHERE tenant_id = $1 AND invite_id = $2`,
		tenantID, inviteID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark invite used: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresInvitesRepository) RevokeInvite(ctx context.Context, tenantID, inviteID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var memberID sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT member_id::text FROM member_invites WHERE tenant_id = $1 AND invite_id = $2`,
		tenantID, inviteID,
	).Scan(&memberID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load invite: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM member_invites WHERE tenant_id = $1 AND invite_id = $2`,
		tenantID, inviteID); err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}

	// Cascade to the provisional member, but never to a member who has
	// completed registration since.
	if memberID.Valid {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM members
			 WHERE tenant_id = $1 AND member_id::text = $2 AND status = 'preregistered'`,
			tenantID, memberID.String); err != nil {
			return fmt.Errorf("failed to delete preregistered member: %w", err)
		}
	}

	return tx.Commit()
}
