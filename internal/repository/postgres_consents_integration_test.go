// +build integration

package repository

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"union-data/internal/database"
	"union-data/internal/domain"
)

func getTestDBForConsents(t *testing.T) *sql.DB {
	cfg := &database.Config{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOrInt("TEST_DB_PORT", 5432),
		User:     envOr("TEST_DB_USER", "postgres"),
		Password: envOr("TEST_DB_PASSWORD", "postgres"),
		Database: envOr("TEST_DB_NAME", "uniondata"),
		SSLMode:  envOr("TEST_DB_SSLMODE", "disable"),
	}
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil
	}
	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil
	}
	return db
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func seedConsentFixture(t *testing.T, db *sql.DB) (tenantID, stageID, parcel string, memberIDs []string) {
	ctx := context.Background()
	tenantID = uuid.New().String()
	_, err := db.Exec(
		`INSERT INTO tenants (tenant_id, slug, tenant_name, business_type, member_count, status)
		 VALUES ($1, $2, $3, 'redevelopment', 4, 'active')`,
		tenantID, "consent-"+tenantID[:8], "Consent Test Union",
	)
	require.NoError(t, err)

	parcel = "1111010100100010000"
	_, err = db.Exec(
		`INSERT INTO land_lots (tenant_id, parcel_code, address, area) VALUES ($1, $2, $3, 400)`,
		tenantID, parcel, "서울특별시 종로구 청운동 1",
	)
	require.NoError(t, err)

	stagesRepo := NewPostgresConsentsRepository(db)
	stageID, err = stagesRepo.CreateStage(ctx, tenantID, &domain.ConsentStage{
		BusinessType: domain.BusinessTypeRedevelopment,
		StageName:    "조합설립인가",
		RequiredRate: 75,
		SortOrder:    1,
	})
	require.NoError(t, err)

	membersRepo := NewPostgresMembersRepository(db)
	for i := 0; i < 4; i++ {
		memberID, err := membersRepo.CreateMember(ctx, tenantID,
			&domain.Member{
				Name:   "소유자" + strconv.Itoa(i+1),
				Phone:  "010-0000-000" + strconv.Itoa(i),
				Status: domain.MemberStatusApproved,
				Role:   domain.RoleUser,
			},
			[]*domain.PropertyUnit{
				{ParcelCode: sql.NullString{String: parcel, Valid: true}, IsPrimary: true, OwnershipType: domain.OwnershipOwner},
			},
		)
		require.NoError(t, err)
		memberIDs = append(memberIDs, memberID)
	}
	return tenantID, stageID, parcel, memberIDs
}

func cleanupConsentFixture(t *testing.T, db *sql.DB, tenantID string) {
	for _, stmt := range []string{
		`DELETE FROM member_consents WHERE tenant_id = $1`,
		`DELETE FROM property_units WHERE tenant_id = $1`,
		`DELETE FROM members WHERE tenant_id = $1`,
		`DELETE FROM consent_stages WHERE tenant_id = $1`,
		`DELETE FROM land_lots WHERE tenant_id = $1`,
		`DELETE FROM tenants WHERE tenant_id = $1`,
	} {
		_, _ = db.Exec(stmt, tenantID)
	}
}

func TestParcelConsentCounts(t *testing.T) {
	db := getTestDBForConsents(t)
	if db == nil {
		return
	}
	defer db.Close()

	tenantID, stageID, parcel, memberIDs := seedConsentFixture(t, db)
	defer cleanupConsentFixture(t, db, tenantID)

	repo := NewPostgresConsentsRepository(db)
	ctx := context.Background()

	// 3 of 4 owners agree.
	for _, memberID := range memberIDs[:3] {
		require.NoError(t, repo.UpsertConsent(ctx, tenantID, &domain.MemberConsent{
			MemberID: memberID,
			StageID:  stageID,
			Status:   domain.ConsentAgreed,
		}))
	}

	counts, err := repo.ParcelConsentCounts(ctx, tenantID, parcel, stageID)
	require.NoError(t, err)
	require.Equal(t, 4, counts.TotalOwners)
	require.Equal(t, 3, counts.AgreedOwners)

	agreed, err := repo.TenantAgreedCount(ctx, tenantID, stageID)
	require.NoError(t, err)
	require.Equal(t, 3, agreed)
}

func TestUpsertConsent_OverwritesAnswer(t *testing.T) {
	db := getTestDBForConsents(t)
	if db == nil {
		return
	}
	defer db.Close()

	tenantID, stageID, parcel, memberIDs := seedConsentFixture(t, db)
	defer cleanupConsentFixture(t, db, tenantID)

	repo := NewPostgresConsentsRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertConsent(ctx, tenantID, &domain.MemberConsent{
		MemberID: memberIDs[0], StageID: stageID, Status: domain.ConsentAgreed,
	}))
	require.NoError(t, repo.UpsertConsent(ctx, tenantID, &domain.MemberConsent{
		MemberID: memberIDs[0], StageID: stageID, Status: domain.ConsentDisagreed,
	}))

	counts, err := repo.ParcelConsentCounts(ctx, tenantID, parcel, stageID)
	require.NoError(t, err)
	require.Equal(t, 0, counts.AgreedOwners)
}

func TestParcelStatusRows_IncludesZeroOwnerParcels(t *testing.T) {
	db := getTestDBForConsents(t)
	if db == nil {
		return
	}
	defer db.Close()

	tenantID, stageID, _, _ := seedConsentFixture(t, db)
	defer cleanupConsentFixture(t, db, tenantID)

	// A parcel with no owners at all.
	const emptyParcel = "1111010100100099000"
	_, err := db.Exec(
		`INSERT INTO land_lots (tenant_id, parcel_code, address) VALUES ($1, $2, $3)`,
		tenantID, emptyParcel, "빈 필지",
	)
	require.NoError(t, err)

	repo := NewPostgresConsentsRepository(db)
	rows, err := repo.ParcelStatusRows(context.Background(), tenantID, stageID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byParcel := map[string]ParcelStatusRow{}
	for _, row := range rows {
		byParcel[row.ParcelCode] = row
	}
	require.Equal(t, 0, byParcel[emptyParcel].TotalOwners)
	require.Equal(t, 4, byParcel["1111010100100010000"].TotalOwners)
}

func TestAreaCounts(t *testing.T) {
	db := getTestDBForConsents(t)
	if db == nil {
		return
	}
	defer db.Close()

	tenantID, stageID, _, memberIDs := seedConsentFixture(t, db)
	defer cleanupConsentFixture(t, db, tenantID)

	repo := NewPostgresConsentsRepository(db)
	ctx := context.Background()

	// A second parcel held by a non-agreeing owner only.
	const otherParcel = "1111010100100020000"
	_, err := db.Exec(
		`INSERT INTO land_lots (tenant_id, parcel_code, address, area) VALUES ($1, $2, $3, 250)`,
		tenantID, otherParcel, "서울특별시 종로구 청운동 2",
	)
	require.NoError(t, err)
	_, err = db.Exec(
		`INSERT INTO property_units (property_unit_id, tenant_id, member_id, parcel_code, is_primary, ownership_type)
		 VALUES ($1, $2, $3, $4, FALSE, 'owner')`,
		uuid.NewString(), tenantID, memberIDs[1], otherParcel,
	)
	require.NoError(t, err)

	require.NoError(t, repo.UpsertConsent(ctx, tenantID, &domain.MemberConsent{
		MemberID: memberIDs[0], StageID: stageID, Status: domain.ConsentAgreed,
	}))

	// The fixture parcel (area 400) has four approved owners; it must enter
	// each sum once, not four times, and it is agreed because one of its
	// owners agreed. The second parcel (area 250) has no agreement.
	agreedArea, totalArea, err := repo.AreaCounts(ctx, tenantID, stageID)
	require.NoError(t, err)
	require.Equal(t, 650.0, totalArea)
	require.Equal(t, 400.0, agreedArea)
}
