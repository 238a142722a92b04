package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"union-data/internal/domain"
	"union-data/internal/repository"
)

// InviteService admin-issued invitations: single, bulk via spreadsheet, and
// revocation (which cascades to the preregistered member row). Notification
// outcomes are reported per invite and never fail the invite itself.
type InviteService interface {
	ListInvites(ctx context.Context, tenantID, status string) ([]*domain.MemberInvite, error)
	CreateInvite(ctx context.Context, tenantID, name, phone string) (*InviteResult, error)
	BulkInvite(ctx context.Context, tenantID string, xlsx []byte) (*BulkInviteResult, error)
	// RedeemInvite consumes a pending invite token: the preregistered
	// member moves to incomplete (profile still to fill in) and the invite
	// is marked used.
	RedeemInvite(ctx context.Context, token string) (*RedeemResult, error)
	RevokeInvite(ctx context.Context, tenantID, inviteID string) error
	ExportRoster(ctx context.Context, tenantID string) ([]byte, error)
}

// RedeemResult the member behind a redeemed invite token.
type RedeemResult struct {
	InviteID string `json:"invite_id"`
	TenantID string `json:"tenant_id"`
	MemberID string `json:"member_id,omitempty"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// InviteResult one invite plus its notification outcome.
type InviteResult struct {
	InviteID         string `json:"invite_id"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	NotificationSent bool   `json:"notification_sent"`
	NotificationErr  string `json:"notification_error,omitempty"`
}

// BulkInviteResult per-row outcomes of a spreadsheet import. Rows that fail
// validation are collected, not fatal to the rest of the batch.
type BulkInviteResult struct {
	Invited     []InviteResult `json:"invited"`
	FailedRows  []FailedRow    `json:"failed_rows"`
	TotalRows   int            `json:"total_rows"`
}

// FailedRow a spreadsheet row that could not be turned into an invite.
type FailedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Spreadsheet column layout for bulk invites.
var inviteImportHeader = []string{"Name", "Phone"}

// Roster export columns.
var rosterExportHeader = []string{"Name", "Phone", "Status", "Role", "Blocked", "Resident Address", "Resident Parcel Code"}

type inviteService struct {
	invitesRepo repository.InvitesRepository
	membersRepo repository.MembersRepository
	notifier    Notifier
	logger      *zap.Logger
}

func NewInviteService(invitesRepo repository.InvitesRepository, membersRepo repository.MembersRepository, notifier Notifier, logger *zap.Logger) InviteService {
	return &inviteService{
		invitesRepo: invitesRepo,
		membersRepo: membersRepo,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *inviteService) ListInvites(ctx context.Context, tenantID, status string) ([]*domain.MemberInvite, error) {
	return s.invitesRepo.ListInvites(ctx, tenantID, status)
}

func (s *inviteService) CreateInvite(ctx context.Context, tenantID, name, phone string) (*InviteResult, error) {
	if name == "" || phone == "" {
		return nil, fmt.Errorf("name and phone are required")
	}

	inviteID, err := s.invitesRepo.CreateInvite(ctx, tenantID,
		&domain.MemberInvite{Name: name, Phone: phone},
		&domain.Member{Name: name, Phone: phone},
	)
	if err != nil {
		return nil, err
	}

	result := &InviteResult{InviteID: inviteID, Name: name, Phone: phone}
	if err := s.notifier.SendTemplate(ctx, TemplateInvite, phone, map[string]string{"name": name}); err != nil {
		result.NotificationErr = err.Error()
		s.logger.Warn("invite notification failed",
			zap.String("tenant_id", tenantID),
			zap.String("invite_id", inviteID),
			zap.Error(err),
		)
	} else {
		result.NotificationSent = true
	}
	return result, nil
}

// parseInviteRows reads the first sheet. The header row must carry the
// expected column names (case-insensitive); only the first two columns
// (name, phone) are read, and the template's formatting is irrelevant here.
func parseInviteRows(xlsx []byte) ([][2]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(xlsx))
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("spreadsheet is empty")
	}
	for i, want := range inviteImportHeader {
		got := ""
		if i < len(rows[0]) {
			got = strings.TrimSpace(rows[0][i])
		}
		if !strings.EqualFold(got, want) {
			return nil, fmt.Errorf("unexpected header in column %d: got %q, want %q", i+1, got, want)
		}
	}

	out := [][2]string{}
	for _, row := range rows[1:] {
		var name, phone string
		if len(row) > 0 {
			name = strings.TrimSpace(row[0])
		}
		if len(row) > 1 {
			phone = strings.TrimSpace(row[1])
		}
		out = append(out, [2]string{name, phone})
	}
	return out, nil
}

func (s *inviteService) BulkInvite(ctx context.Context, tenantID string, xlsx []byte) (*BulkInviteResult, error) {
	rows, err := parseInviteRows(xlsx)
	if err != nil {
		return nil, err
	}

	result := &BulkInviteResult{
		Invited:    []InviteResult{},
		FailedRows: []FailedRow{},
		TotalRows:  len(rows),
	}
	for i, row := range rows {
		rowNo := i + 2 // 1-based, after the header
		name, phone := row[0], row[1]
		if name == "" && phone == "" {
			result.TotalRows--
			continue // trailing blank rows
		}
		if name == "" || phone == "" {
			result.FailedRows = append(result.FailedRows, FailedRow{Row: rowNo, Reason: "name and phone are required"})
			continue
		}
		inv, err := s.CreateInvite(ctx, tenantID, name, phone)
		if err != nil {
			result.FailedRows = append(result.FailedRows, FailedRow{Row: rowNo, Reason: err.Error()})
			continue
		}
		result.Invited = append(result.Invited, *inv)
	}
	return result, nil
}

func (s *inviteService) RedeemInvite(ctx context.Context, token string) (*RedeemResult, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}
	inv, err := s.invitesRepo.GetInviteByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InviteStatusPending {
		return nil, fmt.Errorf("invite is %s", inv.Status)
	}

	result := &RedeemResult{
		InviteID: inv.InviteID,
		TenantID: inv.TenantID,
		Name:     inv.Name,
		Phone:    inv.Phone,
	}
	if inv.MemberID.Valid {
		result.MemberID = inv.MemberID.String
		if err := s.membersRepo.UpdateStatus(ctx, inv.TenantID, inv.MemberID.String, domain.MemberStatusIncomplete); err != nil {
			return nil, err
		}
	}
	if err := s.invitesRepo.MarkUsed(ctx, inv.TenantID, inv.InviteID); err != nil {
		return nil, err
	}

	s.logger.Info("invite redeemed",
		zap.String("tenant_id", inv.TenantID),
		zap.String("invite_id", inv.InviteID),
	)
	return result, nil
}

func (s *inviteService) RevokeInvite(ctx context.Context, tenantID, inviteID string) error {
	return s.invitesRepo.RevokeInvite(ctx, tenantID, inviteID)
}

// ExportRoster renders the tenant's member roster as an xlsx file.
func (s *inviteService) ExportRoster(ctx context.Context, tenantID string) ([]byte, error) {
	const pageSize = 500
	var members []*domain.Member
	for page := 1; ; page++ {
		batch, _, err := s.membersRepo.ListMembers(ctx, tenantID, repository.MemberFilters{}, page, pageSize)
		if err != nil {
			return nil, err
		}
		members = append(members, batch...)
		if len(batch) < pageSize {
			break
		}
	}

	f := excelize.NewFile()
	sheetName := "Members"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for col, h := range rosterExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	for i, m := range members {
		values := []any{
			m.Name, m.Phone, m.Status, m.Role, m.Blocked,
			m.ResidentAddress.String, m.ResidentParcelCode.String,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to render spreadsheet: %w", err)
	}
	f.Close()
	return buf.Bytes(), nil
}
