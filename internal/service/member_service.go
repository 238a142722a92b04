package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"union-data/internal/domain"
	"union-data/internal/repository"
)

// MemberService admin actions on the member registry. State changes commit
// first; the follow-up notification is an external collaborator whose
// failure is folded into the result, never rolled back.
type MemberService interface {
	ListMembers(ctx context.Context, tenantID string, filters repository.MemberFilters, page, size int) ([]*domain.Member, int, error)
	GetMember(ctx context.Context, tenantID, memberID string) (*domain.Member, []*domain.PropertyUnit, error)
	UpdateMember(ctx context.Context, tenantID, memberID string, m *domain.Member) error
	Approve(ctx context.Context, tenantID, memberID string) (*ActionResult, error)
	Reject(ctx context.Context, tenantID, memberID, reason string) (*ActionResult, error)
	Block(ctx context.Context, tenantID, memberID, reason string) error
	Unblock(ctx context.Context, tenantID, memberID string) error
	// ForceWithdraw blocks the member; rows are never hard-deleted here.
	ForceWithdraw(ctx context.Context, tenantID, memberID, reason string) error
	// Delete removes the member and its dependent rows entirely. For the
	// workflow state change use ForceWithdraw; Delete is for rows created
	// by mistake (typo registrations, duplicate imports).
	Delete(ctx context.Context, tenantID, memberID string) error
	SetPrimaryUnit(ctx context.Context, tenantID, memberID, propertyUnitID string) error
}

// ActionResult reports the state change and the notification outcome
// independently.
type ActionResult struct {
	MemberID         string `json:"member_id"`
	Status           string `json:"status"`
	NotificationSent bool   `json:"notification_sent"`
	NotificationErr  string `json:"notification_error,omitempty"`
}

type memberService struct {
	membersRepo repository.MembersRepository
	notifier    Notifier
	logger      *zap.Logger
}

func NewMemberService(membersRepo repository.MembersRepository, notifier Notifier, logger *zap.Logger) MemberService {
	return &memberService{membersRepo: membersRepo, notifier: notifier, logger: logger}
}

func (s *memberService) ListMembers(ctx context.Context, tenantID string, filters repository.MemberFilters, page, size int) ([]*domain.Member, int, error) {
	return s.membersRepo.ListMembers(ctx, tenantID, filters, page, size)
}

func (s *memberService) GetMember(ctx context.Context, tenantID, memberID string) (*domain.Member, []*domain.PropertyUnit, error) {
	m, err := s.membersRepo.GetMember(ctx, tenantID, memberID)
	if err != nil {
		return nil, nil, err
	}
	units, err := s.membersRepo.ListPropertyUnits(ctx, tenantID, memberID)
	if err != nil {
		return nil, nil, err
	}
	return m, units, nil
}

func (s *memberService) UpdateMember(ctx context.Context, tenantID, memberID string, m *domain.Member) error {
	return s.membersRepo.UpdateMember(ctx, tenantID, memberID, m)
}

func (s *memberService) transition(ctx context.Context, tenantID, memberID, status, template string, vars map[string]string) (*ActionResult, error) {
	m, err := s.membersRepo.GetMember(ctx, tenantID, memberID)
	if err != nil {
		return nil, err
	}
	if err := s.membersRepo.UpdateStatus(ctx, tenantID, memberID, status); err != nil {
		return nil, err
	}

	result := &ActionResult{MemberID: memberID, Status: status}
	if err := s.notifier.SendTemplate(ctx, template, m.Phone, vars); err != nil {
		result.NotificationErr = err.Error()
		s.logger.Warn("post-transition notification failed",
			zap.String("tenant_id", tenantID),
			zap.String("member_id", memberID),
			zap.String("template", template),
			zap.Error(err),
		)
	} else {
		result.NotificationSent = true
	}
	return result, nil
}

func (s *memberService) Approve(ctx context.Context, tenantID, memberID string) (*ActionResult, error) {
	return s.transition(ctx, tenantID, memberID, domain.MemberStatusApproved, TemplateApproved, nil)
}

func (s *memberService) Reject(ctx context.Context, tenantID, memberID, reason string) (*ActionResult, error) {
	vars := map[string]string{}
	if reason != "" {
		vars["reason"] = reason
	}
	return s.transition(ctx, tenantID, memberID, domain.MemberStatusRejected, TemplateRejected, vars)
}

func (s *memberService) Block(ctx context.Context, tenantID, memberID, reason string) error {
	if reason == "" {
		return fmt.Errorf("block reason is required")
	}
	return s.membersRepo.SetBlocked(ctx, tenantID, memberID, true, reason)
}

func (s *memberService) Unblock(ctx context.Context, tenantID, memberID string) error {
	return s.membersRepo.SetBlocked(ctx, tenantID, memberID, false, "")
}

func (s *memberService) ForceWithdraw(ctx context.Context, tenantID, memberID, reason string) error {
	if reason == "" {
		reason = "force withdraw"
	}
	return s.membersRepo.SetBlocked(ctx, tenantID, memberID, true, reason)
}

func (s *memberService) Delete(ctx context.Context, tenantID, memberID string) error {
	if err := s.membersRepo.DeleteMember(ctx, tenantID, memberID); err != nil {
		return err
	}
	s.logger.Info("member deleted",
		zap.String("tenant_id", tenantID),
		zap.String("member_id", memberID),
	)
	return nil
}

func (s *memberService) SetPrimaryUnit(ctx context.Context, tenantID, memberID, propertyUnitID string) error {
	if propertyUnitID == "" {
		return fmt.Errorf("property_unit_id is required")
	}
	return s.membersRepo.SetPrimaryUnit(ctx, tenantID, memberID, propertyUnitID)
}
