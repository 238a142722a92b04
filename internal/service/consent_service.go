package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"union-data/internal/domain"
	"union-data/internal/repository"
	"union-data/internal/store"
)

// ConsentService computes agreement rates per parcel and per tenant, serves
// the per-parcel map overview (cached), and records consent answers.
type ConsentService interface {
	ParcelConsent(ctx context.Context, tenantID, parcelCode, stageID string) (*ParcelConsentSummary, error)
	TenantConsent(ctx context.Context, tenantID, stageID string) (*TenantConsentSummary, error)
	MapOverview(ctx context.Context, tenantID, stageID string) ([]ParcelConsentSummary, error)
	SetConsent(ctx context.Context, tenantID, memberID, stageID, status string, consentDate *time.Time) error
}

// ParcelConsentSummary consent state of one parcel for one stage.
type ParcelConsentSummary struct {
	ParcelCode    string `json:"parcel_code"`
	StageID       string `json:"stage_id"`
	TotalOwners   int    `json:"total_owners"`
	AgreedOwners  int    `json:"agreed_owners"`
	ConsentRate   int    `json:"consent_rate"` // round(agreed/total*100), 0 when no owners
	DisplayStatus string `json:"display_status"`
	IsCompleted   bool   `json:"is_completed"`
}

// TenantConsentSummary the headline rate. The denominator is the tenant's
// admin-configured member_count, not a derivation from parcel data; the
// area-weighted rate is computed separately.
type TenantConsentSummary struct {
	StageID       string  `json:"stage_id"`
	StageName     string  `json:"stage_name"`
	AgreedMembers int     `json:"agreed_members"`
	MemberCount   int     `json:"member_count"`
	ConsentRate   float64 `json:"consent_rate"`
	AreaRate      float64 `json:"area_rate"`
	RequiredRate  float64 `json:"required_rate"`
	IsCompleted   bool    `json:"is_completed"`
}

const mapOverviewTTL = 60 * time.Second

func mapOverviewKey(tenantID, stageID string) string {
	return fmt.Sprintf("consent:map:%s:%s", tenantID, stageID)
}

// consentRate is round(agreed/total*100); zero owners means zero, never a
// division error.
func consentRate(agreed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(agreed) / float64(total) * 100))
}

// displayStatus distinguishes a parcel nobody owns (NOT_SUBMITTED) from a
// parcel whose owners simply have not agreed (NONE_AGREED).
func displayStatus(totalOwners, rate int) string {
	switch {
	case totalOwners == 0:
		return domain.DisplayNotSubmitted
	case rate >= 100:
		return domain.DisplayFullAgreed
	case rate == 0:
		return domain.DisplayNoneAgreed
	default:
		return domain.DisplayPartialAgreed
	}
}

// tenantRate is agreed/member_count*100 rounded to one decimal; a zero
// member_count yields 0, never NaN.
func tenantRate(agreed, memberCount int) float64 {
	if memberCount <= 0 {
		return 0
	}
	return math.Round(float64(agreed)/float64(memberCount)*1000) / 10
}

func areaRate(agreedArea, totalArea float64) float64 {
	if totalArea <= 0 {
		return 0
	}
	return math.Round(agreedArea/totalArea*1000) / 10
}

type consentService struct {
	consentsRepo repository.ConsentsRepository
	tenantsRepo  repository.TenantsRepository
	kv           store.KV
	logger       *zap.Logger
}

func NewConsentService(consentsRepo repository.ConsentsRepository, tenantsRepo repository.TenantsRepository, kv store.KV, logger *zap.Logger) ConsentService {
	return &consentService{
		consentsRepo: consentsRepo,
		tenantsRepo:  tenantsRepo,
		kv:           kv,
		logger:       logger,
	}
}

func (s *consentService) ParcelConsent(ctx context.Context, tenantID, parcelCode, stageID string) (*ParcelConsentSummary, error) {
	stage, err := s.consentsRepo.GetStage(ctx, tenantID, stageID)
	if err != nil {
		return nil, err
	}
	counts, err := s.consentsRepo.ParcelConsentCounts(ctx, tenantID, parcelCode, stageID)
	if err != nil {
		return nil, err
	}
	rate := consentRate(counts.AgreedOwners, counts.TotalOwners)
	return &ParcelConsentSummary{
		ParcelCode:    parcelCode,
		StageID:       stageID,
		TotalOwners:   counts.TotalOwners,
		AgreedOwners:  counts.AgreedOwners,
		ConsentRate:   rate,
		DisplayStatus: displayStatus(counts.TotalOwners, rate),
		IsCompleted:   counts.TotalOwners > 0 && float64(rate) >= stage.RequiredRate,
	}, nil
}

func (s *consentService) TenantConsent(ctx context.Context, tenantID, stageID string) (*TenantConsentSummary, error) {
	stage, err := s.consentsRepo.GetStage(ctx, tenantID, stageID)
	if err != nil {
		return nil, err
	}
	tenant, err := s.tenantsRepo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	agreed, err := s.consentsRepo.TenantAgreedCount(ctx, tenantID, stageID)
	if err != nil {
		return nil, err
	}
	agreedArea, totalArea, err := s.consentsRepo.AreaCounts(ctx, tenantID, stageID)
	if err != nil {
		return nil, err
	}
	rate := tenantRate(agreed, tenant.MemberCount)
	return &TenantConsentSummary{
		StageID:       stageID,
		StageName:     stage.StageName,
		AgreedMembers: agreed,
		MemberCount:   tenant.MemberCount,
		ConsentRate:   rate,
		AreaRate:      areaRate(agreedArea, totalArea),
		RequiredRate:  stage.RequiredRate,
		IsCompleted:   rate >= stage.RequiredRate,
	}, nil
}

// MapOverview returns per-parcel display statuses for map rendering. The
// result is cached; consent writes invalidate the tenant's keys.
func (s *consentService) MapOverview(ctx context.Context, tenantID, stageID string) ([]ParcelConsentSummary, error) {
	key := mapOverviewKey(tenantID, stageID)
	if cached, err := s.kv.Get(ctx, key); err == nil {
		var out []ParcelConsentSummary
		if err := json.Unmarshal([]byte(cached), &out); err == nil {
			return out, nil
		}
		// Corrupt cache entry: fall through and rebuild.
	} else if err != store.ErrMiss {
		s.logger.Warn("map overview cache read failed", zap.Error(err))
	}

	stage, err := s.consentsRepo.GetStage(ctx, tenantID, stageID)
	if err != nil {
		return nil, err
	}
	statusRows, err := s.consentsRepo.ParcelStatusRows(ctx, tenantID, stageID)
	if err != nil {
		return nil, err
	}

	out := make([]ParcelConsentSummary, 0, len(statusRows))
	for _, row := range statusRows {
		rate := consentRate(row.AgreedOwners, row.TotalOwners)
		out = append(out, ParcelConsentSummary{
			ParcelCode:    row.ParcelCode,
			StageID:       stageID,
			TotalOwners:   row.TotalOwners,
			AgreedOwners:  row.AgreedOwners,
			ConsentRate:   rate,
			DisplayStatus: displayStatus(row.TotalOwners, rate),
			IsCompleted:   row.TotalOwners > 0 && float64(rate) >= stage.RequiredRate,
		})
	}

	if payload, err := json.Marshal(out); err == nil {
		if err := s.kv.Set(ctx, key, string(payload), mapOverviewTTL); err != nil {
			s.logger.Warn("map overview cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

func (s *consentService) SetConsent(ctx context.Context, tenantID, memberID, stageID, status string, consentDate *time.Time) error {
	switch status {
	case domain.ConsentAgreed, domain.ConsentDisagreed, domain.ConsentPending:
	default:
		return fmt.Errorf("invalid consent status: %s", status)
	}

	stage, err := s.consentsRepo.GetStage(ctx, tenantID, stageID)
	if err != nil {
		return err
	}
	tenant, err := s.tenantsRepo.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	// Stages are defined per business type; a mismatch means the stage id
	// belongs to the other track.
	if stage.BusinessType != tenant.BusinessType {
		return fmt.Errorf("stage %s does not apply to business type %s", stageID, tenant.BusinessType)
	}

	c := &domain.MemberConsent{
		MemberID: memberID,
		StageID:  stageID,
		Status:   status,
	}
	if consentDate != nil {
		c.ConsentDate.Time = *consentDate
		c.ConsentDate.Valid = true
	}
	if err := s.consentsRepo.UpsertConsent(ctx, tenantID, c); err != nil {
		return err
	}

	s.invalidateOverview(ctx, tenantID)
	return nil
}

func (s *consentService) invalidateOverview(ctx context.Context, tenantID string) {
	keys, err := s.kv.ScanKeys(ctx, fmt.Sprintf("consent:map:%s:*", tenantID))
	if err != nil {
		s.logger.Warn("map overview cache scan failed", zap.Error(err))
		return
	}
	if err := s.kv.Del(ctx, keys...); err != nil {
		s.logger.Warn("map overview cache invalidation failed", zap.Error(err))
	}
}
