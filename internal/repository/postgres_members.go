package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"union-data/internal/domain"
)

type PostgresMembersRepository struct {
	db *sql.DB
}

func NewPostgresMembersRepository(db *sql.DB) *PostgresMembersRepository {
	return &PostgresMembersRepository{db: db}
}

const memberColumns = `member_id::text, tenant_id::text, name, phone, birth_date, status, role,
	blocked, blocked_reason, resident_address, resident_parcel_code, auth_provider, auth_subject,
	created_at, updated_at`

func scanMember(row interface{ Scan(...any) error }) (*domain.Member, error) {
	var m domain.Member
	if err := row.Scan(
		&m.MemberID, &m.TenantID, &m.Name, &m.Phone, &m.BirthDate, &m.Status, &m.Role,
		&m.Blocked, &m.BlockedReason, &m.ResidentAddress, &m.ResidentParcelCode,
		&m.AuthProvider, &m.AuthSubject, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresMembersRepository) ListMembers(ctx context.Context, tenantID string, filters MemberFilters, page, size int) ([]*domain.Member, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}

	where := "tenant_id = $1"
	args := []any{tenantID}
	argIdx := 2
	if filters.Search != "" {
		where += " AND (name ILIKE $" + strconv.Itoa(argIdx) + " OR phone ILIKE $" + strconv.Itoa(argIdx) + ")"
		args = append(args, "%"+filters.Search+"%")
		argIdx++
	}
	if filters.Status != "" {
		where += " AND status = $" + strconv.Itoa(argIdx)
		args = append(args, filters.Status)
		argIdx++
	}
	if filters.Role != "" {
		where += " AND role = $" + strconv.Itoa(argIdx)
		args = append(args, filters.Role)
		argIdx++
	}
	if filters.Blocked != nil {
		where += " AND blocked = $" + strconv.Itoa(argIdx)
		args = append(args, *filters.Blocked)
		argIdx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count members: %w", err)
	}

	q := `SELECT ` + memberColumns + ` FROM members WHERE ` + where +
		` ORDER BY name, member_id LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	out := []*domain.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r *PostgresMembersRepository) GetMember(ctx context.Context, tenantID, memberID string) (*domain.Member, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE tenant_id = $1 AND member_id = $2`,
		tenantID, memberID)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

func (r *PostgresMembersRepository) CreateMember(ctx context.Context, tenantID string, m *domain.Member, units []*domain.PropertyUnit) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	memberID := m.MemberID
	if memberID == "" {
		memberID = uuid.NewString()
	}
	status := m.Status
	if status == "" {
		status = domain.MemberStatusPending
	}
	role := m.Role
	if role == "" {
		role = domain.RoleApplicant
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO members (member_id, tenant_id, name, phone, birth_date, status, role,
		                      resident_address, resident_parcel_code, auth_provider, auth_subject)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		memberID, tenantID, m.Name, m.Phone, m.BirthDate, status, role,
		m.ResidentAddress, m.ResidentParcelCode, m.AuthProvider, m.AuthSubject,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert member: %w", err)
	}

	primarySeen := false
	for _, u := range units {
		isPrimary := u.IsPrimary
		if isPrimary && primarySeen {
			isPrimary = false
		}
		if isPrimary {
			primarySeen = true
		}
		ownership := u.OwnershipType
		if ownership == "" {
			ownership = domain.OwnershipOwner
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO property_units (property_unit_id, tenant_id, member_id, parcel_code, dong, ho, is_primary, ownership_type)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.NewString(), tenantID, memberID, u.ParcelCode, u.Dong, u.Ho, isPrimary, ownership,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert property unit: %w", err)
		}
	}
	// A member with units always gets exactly one primary.
	if len(units) > 0 && !primarySeen {
		_, err = tx.ExecContext(ctx,
			`UPDATE property_units SET is_primary = TRUE
			 WHERE property_unit_id = (
			     SELECT property_unit_id FROM property_units
			     WHERE tenant_id = $1 AND member_id = $2
			     ORDER BY created_at, property_unit_id LIMIT 1
			 )`,
			tenantID, memberID,
		)
		if err != nil {
			return "", fmt.Errorf("failed to set primary property unit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit member creation: %w", err)
	}
	return memberID, nil
}

func (r *PostgresMembersRepository) UpdateMember(ctx context.Context, tenantID, memberID string, m *domain.Member) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE members
		 SET name = $3, phone = $4, birth_date = $5, resident_address = $6,
		     resident_parcel_code = $7, updated_at = NOW()
		 WHERE tenant_id = $1 AND member_id = $2`,
		tenantID, memberID, m.Name, m.Phone, m.BirthDate, m.ResidentAddress, m.ResidentParcelCode,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresMembersRepository) UpdateStatus(ctx context.Context, tenantID, memberID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE members SET status = $3, updated_at = NOW() WHERE tenant_id = $1 AND member_id = $2`,
		tenantID, memberID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update member status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresMembersRepository) SetBlocked(ctx context.Context, tenantID, memberID string, blocked bool, reason string) error {
	var reasonArg any
	if reason != "" {
		reasonArg = reason
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE members SET blocked = $3, blocked_reason = $4, updated_at = NOW()
		 WHERE tenant_id = $1 AND member_id = $2`,
		tenantID, memberID, blocked, reasonArg,
	)
	if err != nil {
		return fmt.Errorf("failed to set blocked flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresMembersRepository) DeleteMember(ctx context.Context, tenantID, memberID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Dependent rows first; FKs are not declared ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM member_consents WHERE tenant_id = $1 AND member_id = $2`, tenantID, memberID); err != nil {
		return fmt.Errorf("failed to delete member consents: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM property_units WHERE tenant_id = $1 AND member_id = $2`, tenantID, memberID); err != nil {
		return fmt.Errorf("failed to delete property units: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM members WHERE tenant_id = $1 AND member_id = $2`, tenantID, memberID)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (r *PostgresMembersRepository) FindByNameAndParcel(ctx context.Context, tenantID, name, parcelCode, excludeMemberID string) ([]*domain.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members
		 WHERE tenant_id = $1 AND name = $2 AND resident_parcel_code = $3 AND member_id::text <> $4
		 ORDER BY created_at`,
		tenantID, name, parcelCode, excludeMemberID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicate candidates: %w", err)
	}
	defer rows.Close()

	out := []*domain.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresMembersRepository) FindExactMatch(ctx context.Context, tenantID, name, phone, address string) (*domain.Member, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT DISTINCT `+memberColumns+` FROM members m
		 WHERE m.tenant_id = $1 AND m.name = $2 AND m.phone = $3
		   AND EXISTS (
		       SELECT 1 FROM property_units pu
		       JOIN land_lots ll ON ll.tenant_id = pu.tenant_id AND ll.parcel_code = pu.parcel_code
		       WHERE pu.tenant_id = m.tenant_id AND pu.member_id = m.member_id AND ll.address = $4
		   )
		 LIMIT 1`,
		tenantID, name, phone, address,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find exact match: %w", err)
	}
	return m, nil
}

func (r *PostgresMembersRepository) ListPropertyUnits(ctx context.Context, tenantID, memberID string) ([]*domain.PropertyUnit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT property_unit_id::text, tenant_id::text, member_id::text, parcel_code, dong, ho, is_primary, ownership_type, created_at
		 FROM property_units
		 WHERE tenant_id = $1 AND member_id = $2
		 ORDER BY is_primary DESC, created_at`,
		tenantID, memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list property units: %w", err)
	}
	defer rows.Close()

	out := []*domain.PropertyUnit{}
	for rows.Next() {
		var u domain.PropertyUnit
		if err := rows.Scan(&u.PropertyUnitID, &u.TenantID, &u.MemberID, &u.ParcelCode, &u.Dong, &u.Ho, &u.IsPrimary, &u.OwnershipType, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan property unit: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (r *PostgresMembersRepository) SetPrimaryUnit(ctx context.Context, tenantID, memberID, propertyUnitID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE property_units SET is_primary = FALSE WHERE tenant_id = $1 AND member_id = $2`,
		tenantID, memberID); err != nil {
		return fmt.Errorf("failed to clear primary flags: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE property_units SET is_primary = TRUE
		 WHERE tenant_id = $1 AND member_id = $2 AND property_unit_id = $3`,
		tenantID, memberID, propertyUnitID)
	if err != nil {
		return fmt.Errorf("failed to set primary flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
