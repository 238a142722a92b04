package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"union-data/internal/domain"
	"union-data/internal/metrics"
	"union-data/internal/repository"
)

// RegistrationService creates member rows from self-service registration and
// keeps one row per physical person: an exact-match precheck before insert
// (operator confirmation, never automatic) and a best-effort merge pass
// after insert.
type RegistrationService interface {
	PrecheckDuplicate(ctx context.Context, tenantID, name, phone, address string) (*DuplicateCandidate, error)
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	LinkAuthIdentity(ctx context.Context, tenantID, memberID, provider, subject string) error
}

// RegisterRequest registration form payload.
type RegisterRequest struct {
	TenantID           string
	Name               string
	Phone              string
	BirthDate          *time.Time
	ResidentAddress    string
	ResidentParcelCode string
	AuthProvider       string
	AuthSubject        string
	Units              []PropertyUnitInput
	// PropertyAddress feeds the exact-match precheck.
	PropertyAddress string
	// AllowDuplicate is set after the operator explicitly chose to create a
	// new row despite a precheck hit.
	AllowDuplicate bool
}

// PropertyUnitInput one property unit on the form.
type PropertyUnitInput struct {
	ParcelCode    string
	Dong          string
	Ho            string
	IsPrimary     bool
	OwnershipType string
}

// DuplicateCandidate an existing member the new registration may belong to.
type DuplicateCandidate struct {
	MemberID    string `json:"member_id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	HasAuthLink bool   `json:"has_auth_link"`
}

// RegisterResult reports each step independently: the insert, the dedup
// pass, and whether the flow paused on a duplicate confirmation.
type RegisterResult struct {
	Registered    bool                `json:"registered"`
	MemberID      string              `json:"member_id,omitempty"`
	Duplicate     *DuplicateCandidate `json:"duplicate,omitempty"`
	Deduped       bool                `json:"deduped"`
	MergedMembers int                 `json:"merged_members"`
	DedupError    string              `json:"dedup_error,omitempty"`
}

type registrationService struct {
	membersRepo repository.MembersRepository
	db          *sql.DB // dedup merge runs its own transaction
	logger      *zap.Logger
}

func NewRegistrationService(membersRepo repository.MembersRepository, db *sql.DB, logger *zap.Logger) RegistrationService {
	return &registrationService{membersRepo: membersRepo, db: db, logger: logger}
}

// PrecheckDuplicate looks for an exact name + phone + property-address match.
// Only a match that already carries an auth identity pauses registration;
// anything else falls through to the post-insert merge pass.
func (s *registrationService) PrecheckDuplicate(ctx context.Context, tenantID, name, phone, address string) (*DuplicateCandidate, error) {
	if name == "" || phone == "" || address == "" {
		return nil, nil
	}
	m, err := s.membersRepo.FindExactMatch(ctx, tenantID, name, phone, address)
	if err == repository.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to precheck duplicates: %w", err)
	}
	if !m.HasAuthLink() {
		return nil, nil
	}
	return &DuplicateCandidate{
		MemberID:    m.MemberID,
		Name:        m.Name,
		Phone:       m.Phone,
		HasAuthLink: true,
	}, nil
}

func (s *registrationService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if req.TenantID == "" || req.Name == "" || req.Phone == "" {
		return nil, fmt.Errorf("tenant_id, name and phone are required")
	}

	if !req.AllowDuplicate {
		candidate, err := s.PrecheckDuplicate(ctx, req.TenantID, req.Name, req.Phone, req.PropertyAddress)
		if err != nil {
			return nil, err
		}
		if candidate != nil {
			// Confirmation prompt, not a failure: the operator decides
			// between linking the new credential and creating a new row.
			return &RegisterResult{Registered: false, Duplicate: candidate}, nil
		}
	}

	m := &domain.Member{
		Name:   req.Name,
		Phone:  req.Phone,
		Status: domain.MemberStatusPending,
		Role:   domain.RoleApplicant,
	}
	if req.BirthDate != nil {
		m.BirthDate = sql.NullTime{Time: *req.BirthDate, Valid: true}
	}
	if req.ResidentAddress != "" {
		m.ResidentAddress = sql.NullString{String: req.ResidentAddress, Valid: true}
	}
	if req.ResidentParcelCode != "" {
		m.ResidentParcelCode = sql.NullString{String: req.ResidentParcelCode, Valid: true}
	}
	if req.AuthProvider != "" {
		m.AuthProvider = sql.NullString{String: req.AuthProvider, Valid: true}
		m.AuthSubject = sql.NullString{String: req.AuthSubject, Valid: true}
	}

	units := make([]*domain.PropertyUnit, 0, len(req.Units))
	for _, u := range req.Units {
		pu := &domain.PropertyUnit{
			IsPrimary:     u.IsPrimary,
			OwnershipType: u.OwnershipType,
		}
		if u.ParcelCode != "" {
			pu.ParcelCode = sql.NullString{String: u.ParcelCode, Valid: true}
		}
		if u.Dong != "" {
			pu.Dong = sql.NullString{String: u.Dong, Valid: true}
		}
		if u.Ho != "" {
			pu.Ho = sql.NullString{String: u.Ho, Valid: true}
		}
		units = append(units, pu)
	}

	memberID, err := s.membersRepo.CreateMember(ctx, req.TenantID, m, units)
	if err != nil {
		return nil, fmt.Errorf("failed to register member: %w", err)
	}
	metrics.RegistrationsTotal.Inc()

	result := &RegisterResult{Registered: true, MemberID: memberID}

	// Best-effort dedup: same tenant, same name, same resident parcel code.
	// A failure here never fails the registration; the new row stands alone.
	if req.ResidentParcelCode != "" {
		merged, err := s.dedupInto(ctx, req.TenantID, memberID, req.Name, req.ResidentParcelCode)
		if err != nil {
			s.logger.Warn("dedup pass failed",
				zap.String("tenant_id", req.TenantID),
				zap.String("member_id", memberID),
				zap.Error(err),
			)
			result.DedupError = err.Error()
		} else {
			result.Deduped = merged > 0
			result.MergedMembers = merged
		}
	}
	return result, nil
}

// dedupInto merges every duplicate candidate into the keeper, one
// transaction per duplicate. Tie-break policy: the keeper's existing primary
// property unit wins; units arriving from a duplicate lose their primary
// flag, and a primary is promoted only when the keeper ends up with none.
func (s *registrationService) dedupInto(ctx context.Context, tenantID, keeperID, name, parcelCode string) (int, error) {
	dups, err := s.membersRepo.FindByNameAndParcel(ctx, tenantID, name, parcelCode, keeperID)
	if err != nil {
		return 0, err
	}
	merged := 0
	for _, dup := range dups {
		if err := s.mergeMember(ctx, tenantID, keeperID, dup); err != nil {
			return merged, fmt.Errorf("failed to merge member %s: %w", dup.MemberID, err)
		}
		merged++
		metrics.DedupMergesTotal.Inc()
		s.logger.Info("duplicate member merged",
			zap.String("tenant_id", tenantID),
			zap.String("keeper_id", keeperID),
			zap.String("merged_id", dup.MemberID),
		)
	}
	return merged, nil
}

func (s *registrationService) mergeMember(ctx context.Context, tenantID, keeperID string, dup *domain.Member) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Property units move over without their primary flag.
	if _, err := tx.ExecContext(ctx,
		`UPDATE property_units SET member_id = $3, is_primary = FALSE
		 WHERE tenant_id = $1 AND member_id = $2`,
		tenantID, dup.MemberID, keeperID); err != nil {
		return fmt.Errorf("failed to move property units: %w", err)
	}

	// Consents move unless the keeper already answered the stage.
	if _, err := tx.ExecContext(ctx,
		`UPDATE member_consents mc SET member_id = $3
		 WHERE mc.tenant_id = $1 AND mc.member_id = $2
		   AND NOT EXISTS (
		       SELECT 1 FROM member_consents k
		       WHERE k.tenant_id = $1 AND k.member_id = $3 AND k.stage_id = mc.stage_id
		   )`,
		tenantID, dup.MemberID, keeperID); err != nil {
		return fmt.Errorf("failed to move consents: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM member_consents WHERE tenant_id = $1 AND member_id = $2`,
		tenantID, dup.MemberID); err != nil {
		return fmt.Errorf("failed to drop shadowed consents: %w", err)
	}

	// Auth link carries over only when the keeper has none.
	if dup.HasAuthLink() {
		if _, err := tx.ExecContext(ctx,
			`UPDATE members SET auth_provider = $3, auth_subject = $4, updated_at = NOW()
			 WHERE tenant_id = $1 AND member_id = $2 AND auth_provider IS NULL`,
			tenantID, keeperID, dup.AuthProvider.String, dup.AuthSubject.String); err != nil {
			return fmt.Errorf("failed to carry auth link: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM members WHERE tenant_id = $1 AND member_id = $2`,
		tenantID, dup.MemberID); err != nil {
		return fmt.Errorf("failed to delete duplicate member: %w", err)
	}

	// Restore the exactly-one-primary invariant for the keeper.
	if _, err := tx.ExecContext(ctx,
		`UPDATE property_units SET is_primary = TRUE
		 WHERE property_unit_id = (
		     SELECT property_unit_id FROM property_units
		     WHERE tenant_id = $1 AND member_id = $2
		     ORDER BY created_at, property_unit_id LIMIT 1
		 )
		 AND NOT EXISTS (
		     SELECT 1 FROM property_units
		     WHERE tenant_id = $1 AND member_id = $2 AND is_primary
		 )`,
		tenantID, keeperID); err != nil {
		return fmt.Errorf("failed to restore primary flag: %w", err)
	}

	return tx.Commit()
}

func (s *registrationService) LinkAuthIdentity(ctx context.Context, tenantID, memberID, provider, subject string) error {
	if provider == "" || subject == "" {
		return fmt.Errorf("provider and subject are required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET auth_provider = $3, auth_subject = $4, updated_at = NOW()
		 WHERE tenant_id = $1 AND member_id = $2`,
		tenantID, memberID, provider, subject,
	)
	if err != nil {
		return fmt.Errorf("failed to link auth identity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
