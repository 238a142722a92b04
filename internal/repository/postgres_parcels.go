package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"union-data/internal/domain"
)

type PostgresParcelsRepository struct {
	db *sql.DB
}

func NewPostgresParcelsRepository(db *sql.DB) *PostgresParcelsRepository {
	return &PostgresParcelsRepository{db: db}
}

const landLotColumns = `tenant_id::text, parcel_code, address, area, official_price, land_category, boundary, created_at, updated_at`

func scanLandLot(row interface{ Scan(...any) error }) (*domain.LandLot, error) {
	var l domain.LandLot
	if err := row.Scan(&l.TenantID, &l.ParcelCode, &l.Address, &l.Area, &l.OfficialPrice, &l.LandCategory, &l.Boundary, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *PostgresParcelsRepository) ListLandLots(ctx context.Context, tenantID, search string, page, size int) ([]*domain.LandLot, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 500 {
		size = 50
	}

	where := "tenant_id = $1"
	args := []any{tenantID}
	argIdx := 2
	if search != "" {
		where += " AND (parcel_code LIKE $" + strconv.Itoa(argIdx) + " OR address ILIKE $" + strconv.Itoa(argIdx) + ")"
		args = append(args, "%"+search+"%")
		argIdx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM land_lots WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count land lots: %w", err)
	}

	q := `SELECT ` + landLotColumns + ` FROM land_lots WHERE ` + where +
		` ORDER BY parcel_code LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list land lots: %w", err)
	}
	defer rows.Close()

	out := []*domain.LandLot{}
	for rows.Next() {
		l, err := scanLandLot(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan land lot: %w", err)
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (r *PostgresParcelsRepository) GetLandLot(ctx context.Context, tenantID, parcelCode string) (*domain.LandLot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+landLotColumns+` FROM land_lots WHERE tenant_id = $1 AND parcel_code = $2`,
		tenantID, parcelCode)
	l, err := scanLandLot(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get land lot: %w", err)
	}
	return l, nil
}

func (r *PostgresParcelsRepository) UpsertLandLot(ctx context.Context, tenantID string, lot *domain.LandLot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO land_lots (tenant_id, parcel_code, address, area, official_price, land_category, boundary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (tenant_id, parcel_code)
		 DO UPDATE SET address = EXCLUDED.address,
		               area = EXCLUDED.area,
		               official_price = EXCLUDED.official_price,
		               land_category = EXCLUDED.land_category,
		               boundary = EXCLUDED.boundary,
		               updated_at = NOW()`,
		tenantID, lot.ParcelCode, lot.Address, lot.Area, lot.OfficialPrice, lot.LandCategory, lot.Boundary,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert land lot: %w", err)
	}
	return nil
}

func (r *PostgresParcelsRepository) UpdateLandLot(ctx context.Context, tenantID, parcelCode string, lot *domain.LandLot) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE land_lots
		 SET address = $3, area = $4, official_price = $5, land_category = $6, boundary = $7, updated_at = NOW()
		 WHERE tenant_id = $1 AND parcel_code = $2`,
		tenantID, parcelCode, lot.Address, lot.Area, lot.OfficialPrice, lot.LandCategory, lot.Boundary,
	)
	if err != nil {
		return fmt.Errorf("failed to update land lot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// OwnersByParcel: distinct approved members with a property unit on the
// parcel. Single join; blocked members stay counted (blocking is an access
// control, not an ownership change).
func (r *PostgresParcelsRepository) OwnersByParcel(ctx context.Context, tenantID, parcelCode string) ([]*domain.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT m.member_id::text, m.tenant_id::text, m.name, m.phone, m.birth_date, m.status, m.role,
		        m.blocked, m.blocked_reason, m.resident_address, m.resident_parcel_code, m.auth_provider, m.auth_subject,
		        m.created_at, m.updated_at
		 FROM members m
		 JOIN property_units pu ON pu.tenant_id = m.tenant_id AND pu.member_id = m.member_id
		 WHERE m.tenant_id = $1
		   AND pu.parcel_code = $2
		   AND m.status = 'approved'
		 ORDER BY m.name`,
		tenantID, parcelCode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list parcel owners: %w", err)
	}
	defer rows.Close()

	out := []*domain.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
