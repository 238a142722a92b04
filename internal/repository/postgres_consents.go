package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"union-data/internal/domain"
)

type PostgresConsentsRepository struct {
	db *sql.DB
}

func NewPostgresConsentsRepository(db *sql.DB) *PostgresConsentsRepository {
	return &PostgresConsentsRepository{db: db}
}

const stageColumns = `stage_id::text, tenant_id::text, business_type, stage_name, required_rate, sort_order, created_at`

func (r *PostgresConsentsRepository) ListStages(ctx context.Context, tenantID string) ([]*domain.ConsentStage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stageColumns+` FROM consent_stages WHERE tenant_id = $1 ORDER BY sort_order, stage_name`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	out := []*domain.ConsentStage{}
	for rows.Next() {
		var s domain.ConsentStage
		if err := rows.Scan(&s.StageID, &s.TenantID, &s.BusinessType, &s.StageName, &s.RequiredRate, &s.SortOrder, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *PostgresConsentsRepository) GetStage(ctx context.Context, tenantID, stageID string) (*domain.ConsentStage, error) {
	var s domain.ConsentStage
	err := r.db.QueryRowContext(ctx,
		`SELECT `+stageColumns+` FROM consent_stages WHERE tenant_id = $1 AND stage_id = $2`,
		tenantID, stageID,
	).Scan(&s.StageID, &s.TenantID, &s.BusinessType, &s.StageName, &s.RequiredRate, &s.SortOrder, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stage: %w", err)
	}
	return &s, nil
}

func (r *PostgresConsentsRepository) CreateStage(ctx context.Context, tenantID string, s *domain.ConsentStage) (string, error) {
	stageID := s.StageID
	if stageID == "" {
		stageID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO consent_stages (stage_id, tenant_id, business_type, stage_name, required_rate, sort_order)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		stageID, tenantID, s.BusinessType, s.StageName, s.RequiredRate, s.SortOrder,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create stage: %w", err)
	}
	return stageID, nil
}

func (r *PostgresConsentsRepository) UpsertConsent(ctx context.Context, tenantID string, c *domain.MemberConsent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO member_consents (tenant_id, member_id, stage_id, status, consent_date)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (member_id, stage_id)
		 DO UPDATE SET status = EXCLUDED.status, consent_date = EXCLUDED.consent_date`,
		tenantID, c.MemberID, c.StageID, c.Status, c.ConsentDate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert consent: %w", err)
	}
	return nil
}

// ParcelConsentCounts: one join over members/property_units/member_consents.
// Predicates match the list views: approved members only, non-null parcel.
func (r *PostgresConsentsRepository) ParcelConsentCounts(ctx context.Context, tenantID, parcelCode, stageID string) (ConsentCounts, error) {
	var c ConsentCounts
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT m.member_id),
		        COUNT(DISTINCT m.member_id) FILTER (WHERE mc.status = 'agreed')
		 FROM members m
		 JOIN property_units pu ON pu.tenant_id = m.tenant_id AND pu.member_id = m.member_id
		 LEFT JOIN member_consents mc ON mc.tenant_id = m.tenant_id AND mc.member_id = m.member_id AND mc.stage_id = $3
		 WHERE m.tenant_id = $1
		   AND pu.parcel_code = $2
		   AND m.status = 'approved'`,
		tenantID, parcelCode, stageID,
	).Scan(&c.TotalOwners, &c.AgreedOwners)
	if err != nil {
		return ConsentCounts{}, fmt.Errorf("failed to count parcel consents: %w", err)
	}
	return c, nil
}

func (r *PostgresConsentsRepository) TenantAgreedCount(ctx context.Context, tenantID, stageID string) (int, error) {
	var agreed int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT mc.member_id)
		 FROM member_consents mc
		 JOIN members m ON m.tenant_id = mc.tenant_id AND m.member_id = mc.member_id
		 WHERE mc.tenant_id = $1 AND mc.stage_id = $2 AND mc.status = 'agreed'
		   AND m.status = 'approved'`,
		tenantID, stageID,
	).Scan(&agreed)
	if err != nil {
		return 0, fmt.Errorf("failed to count agreed members: %w", err)
	}
	return agreed, nil
}

// AreaCounts sums each owner-held parcel's area exactly once: the inner
// query collapses the owner join to one row per parcel, so a parcel with
// several approved owners does not inflate either sum. A parcel counts as
// agreed when any of its approved owners agreed to the stage.
func (r *PostgresConsentsRepository) AreaCounts(ctx context.Context, tenantID, stageID string) (float64, float64, error) {
	var agreedArea, totalArea sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(p.area) FILTER (WHERE p.any_agreed), 0),
		        COALESCE(SUM(p.area), 0)
		 FROM (
		     SELECT ll.parcel_code,
		            MAX(ll.area) AS area,
		            bool_or(agreed.member_id IS NOT NULL) AS any_agreed
		     FROM land_lots ll
		     JOIN property_units pu ON pu.tenant_id = ll.tenant_id AND pu.parcel_code = ll.parcel_code
		     JOIN members m ON m.tenant_id = pu.tenant_id AND m.member_id = pu.member_id AND m.status = 'approved'
		     LEFT JOIN member_consents agreed
		       ON agreed.tenant_id = m.tenant_id AND agreed.member_id = m.member_id
		      AND agreed.stage_id = $2 AND agreed.status = 'agreed'
		     WHERE ll.tenant_id = $1
		     GROUP BY ll.parcel_code
		 ) p`,
		tenantID, stageID,
	).Scan(&agreedArea, &totalArea)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum consent areas: %w", err)
	}
	return agreedArea.Float64, totalArea.Float64, nil
}

// ParcelStatusRows tallies every parcel that has at least one property unit
// with a non-null parcel code, including parcels with zero approved owners
// (those surface as NOT_SUBMITTED).
func (r *PostgresConsentsRepository) ParcelStatusRows(ctx context.Context, tenantID, stageID string) ([]ParcelStatusRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ll.parcel_code,
		        COUNT(DISTINCT m.member_id) FILTER (WHERE m.status = 'approved'),
		        COUNT(DISTINCT m.member_id) FILTER (WHERE m.status = 'approved' AND mc.status = 'agreed')
		 FROM land_lots ll
		 LEFT JOIN property_units pu ON pu.tenant_id = ll.tenant_id AND pu.parcel_code = ll.parcel_code
		 LEFT JOIN members m ON m.tenant_id = pu.tenant_id AND m.member_id = pu.member_id
		 LEFT JOIN member_consents mc ON mc.tenant_id = m.tenant_id AND mc.member_id = m.member_id AND mc.stage_id = $2
		 WHERE ll.tenant_id = $1
		 GROUP BY ll.parcel_code
		 ORDER BY ll.parcel_code`,
		tenantID, stageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query parcel statuses: %w", err)
	}
	defer rows.Close()

	out := []ParcelStatusRow{}
	for rows.Next() {
		var p ParcelStatusRow
		if err := rows.Scan(&p.ParcelCode, &p.TotalOwners, &p.AgreedOwners); err != nil {
			return nil, fmt.Errorf("failed to scan parcel status: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
