package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"union-data/internal/domain"
	"union-data/internal/repository"
)

func makeInviteSheet(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetList()[0]
	_ = f.SetCellValue(sheet, "A1", "Name")
	_ = f.SetCellValue(sheet, "B1", "Phone")
	for i, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to render test sheet: %v", err)
	}
	return buf.Bytes()
}

func TestParseInviteRows(t *testing.T) {
	data := makeInviteSheet(t, [][]string{
		{"김철수", "010-1234-5678"},
		{"이영희", "010-8765-4321"},
	})
	rows, err := parseInviteRows(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "김철수" || rows[0][1] != "010-1234-5678" {
		t.Errorf("unexpected first row: %v", rows[0])
	}
}

func TestParseInviteRows_NotASpreadsheet(t *testing.T) {
	if _, err := parseInviteRows([]byte("not an xlsx")); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestParseInviteRows_RejectsWrongHeader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetList()[0]
	_ = f.SetCellValue(sheet, "A1", "이름")
	_ = f.SetCellValue(sheet, "B1", "전화번호")
	_ = f.SetCellValue(sheet, "A2", "김철수")
	_ = f.SetCellValue(sheet, "B2", "010-1234-5678")
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to render test sheet: %v", err)
	}

	if _, err := parseInviteRows(buf.Bytes()); err == nil {
		t.Fatal("expected error for a sheet with the wrong header row")
	}
}

func TestParseInviteRows_HeaderIsCaseInsensitive(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetList()[0]
	_ = f.SetCellValue(sheet, "A1", "NAME")
	_ = f.SetCellValue(sheet, "B1", "phone")
	_ = f.SetCellValue(sheet, "A2", "김철수")
	_ = f.SetCellValue(sheet, "B2", "010-1234-5678")
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to render test sheet: %v", err)
	}

	rows, err := parseInviteRows(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}

type fakeInvitesRepo struct {
	created []string
	fail    map[string]bool
	byToken map[string]*domain.MemberInvite
	used    []string
}

func (f *fakeInvitesRepo) ListInvites(ctx context.Context, tenantID, status string) ([]*domain.MemberInvite, error) {
	return nil, nil
}

func (f *fakeInvitesRepo) GetInvite(ctx context.Context, tenantID, inviteID string) (*domain.MemberInvite, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeInvitesRepo) GetInviteByToken(ctx context.Context, token string) (*domain.MemberInvite, error) {
	if inv, ok := f.byToken[token]; ok {
		return inv, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeInvitesRepo) CreateInvite(ctx context.Context, tenantID string, inv *domain.MemberInvite, provisional *domain.Member) (string, error) {
	if f.fail[inv.Phone] {
		return "", fmt.Errorf("duplicate phone")
	}
	id := fmt.Sprintf("inv-%d", len(f.created)+1)
	f.created = append(f.created, inv.Name)
	return id, nil
}

func (f *fakeInvitesRepo) MarkUsed(ctx context.Context, tenantID, inviteID string) error {
	f.used = append(f.used, inviteID)
	return nil
}

func (f *fakeInvitesRepo) RevokeInvite(ctx context.Context, tenantID, inviteID string) error {
	return nil
}

// fakeInviteMembersRepo records status transitions; everything else is inert.
type fakeInviteMembersRepo struct {
	statuses map[string]string
}

func (f *fakeInviteMembersRepo) ListMembers(ctx context.Context, tenantID string, filters repository.MemberFilters, page, size int) ([]*domain.Member, int, error) {
	return nil, 0, nil
}

func (f *fakeInviteMembersRepo) GetMember(ctx context.Context, tenantID, memberID string) (*domain.Member, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeInviteMembersRepo) CreateMember(ctx context.Context, tenantID string, m *domain.Member, units []*domain.PropertyUnit) (string, error) {
	return "", nil
}

func (f *fakeInviteMembersRepo) UpdateMember(ctx context.Context, tenantID, memberID string, m *domain.Member) error {
	return nil
}

func (f *fakeInviteMembersRepo) UpdateStatus(ctx context.Context, tenantID, memberID, status string) error {
	if f.statuses == nil {
		f.statuses = map[string]string{}
	}
	f.statuses[memberID] = status
	return nil
}

func (f *fakeInviteMembersRepo) SetBlocked(ctx context.Context, tenantID, memberID string, blocked bool, reason string) error {
	return nil
}

func (f *fakeInviteMembersRepo) DeleteMember(ctx context.Context, tenantID, memberID string) error {
	return nil
}

func (f *fakeInviteMembersRepo) FindByNameAndParcel(ctx context.Context, tenantID, name, parcelCode, excludeMemberID string) ([]*domain.Member, error) {
	return nil, nil
}

func (f *fakeInviteMembersRepo) FindExactMatch(ctx context.Context, tenantID, name, phone, address string) (*domain.Member, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeInviteMembersRepo) ListPropertyUnits(ctx context.Context, tenantID, memberID string) ([]*domain.PropertyUnit, error) {
	return nil, nil
}

func (f *fakeInviteMembersRepo) SetPrimaryUnit(ctx context.Context, tenantID, memberID, propertyUnitID string) error {
	return nil
}

type fakeNotifier struct {
	sent   []string
	refuse bool
}

func (f *fakeNotifier) SendTemplate(ctx context.Context, template, phone string, params map[string]string) error {
	if f.refuse {
		return fmt.Errorf("gateway unavailable")
	}
	f.sent = append(f.sent, phone)
	return nil
}

func TestBulkInvite(t *testing.T) {
	data := makeInviteSheet(t, [][]string{
		{"김철수", "010-1234-5678"},
		{"", "010-0000-0000"}, // missing name
		{"이영희", "010-8765-4321"},
		{"", ""}, // trailing blank row, skipped entirely
	})

	invitesRepo := &fakeInvitesRepo{}
	notifier := &fakeNotifier{}
	svc := NewInviteService(invitesRepo, nil, notifier, zap.NewNop())

	result, err := svc.BulkInvite(context.Background(), "t-1", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalRows != 3 {
		t.Errorf("expected 3 counted rows, got %d", result.TotalRows)
	}
	if len(result.Invited) != 2 {
		t.Errorf("expected 2 invited, got %d", len(result.Invited))
	}
	if len(result.FailedRows) != 1 {
		t.Fatalf("expected 1 failed row, got %d", len(result.FailedRows))
	}
	if result.FailedRows[0].Row != 3 {
		t.Errorf("expected failure on sheet row 3, got %d", result.FailedRows[0].Row)
	}
	if len(notifier.sent) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(notifier.sent))
	}
}

func TestRedeemInvite(t *testing.T) {
	invitesRepo := &fakeInvitesRepo{
		byToken: map[string]*domain.MemberInvite{
			"tok-1": {
				InviteID: "inv-1",
				TenantID: "t-1",
				Name:     "김철수",
				Phone:    "010-1234-5678",
				Status:   domain.InviteStatusPending,
				Token:    "tok-1",
				MemberID: sql.NullString{String: "m-1", Valid: true},
			},
		},
	}
	membersRepo := &fakeInviteMembersRepo{}
	svc := NewInviteService(invitesRepo, membersRepo, &fakeNotifier{}, zap.NewNop())

	result, err := svc.RedeemInvite(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TenantID != "t-1" || result.MemberID != "m-1" {
		t.Errorf("unexpected result: %+v", result)
	}
	if got := membersRepo.statuses["m-1"]; got != domain.MemberStatusIncomplete {
		t.Errorf("member status = %q, want %q", got, domain.MemberStatusIncomplete)
	}
	if len(invitesRepo.used) != 1 || invitesRepo.used[0] != "inv-1" {
		t.Errorf("expected invite inv-1 marked used, got %v", invitesRepo.used)
	}
}

func TestRedeemInvite_UsedTokenRejected(t *testing.T) {
	invitesRepo := &fakeInvitesRepo{
		byToken: map[string]*domain.MemberInvite{
			"tok-1": {InviteID: "inv-1", TenantID: "t-1", Status: domain.InviteStatusUsed, Token: "tok-1"},
		},
	}
	svc := NewInviteService(invitesRepo, &fakeInviteMembersRepo{}, &fakeNotifier{}, zap.NewNop())

	if _, err := svc.RedeemInvite(context.Background(), "tok-1"); err == nil {
		t.Fatal("expected error for an already used token")
	}
	if len(invitesRepo.used) != 0 {
		t.Errorf("used invite must not be marked again, got %v", invitesRepo.used)
	}
}

func TestRedeemInvite_UnknownTokenIsNotFound(t *testing.T) {
	svc := NewInviteService(&fakeInvitesRepo{}, &fakeInviteMembersRepo{}, &fakeNotifier{}, zap.NewNop())
	_, err := svc.RedeemInvite(context.Background(), "nope")
	if err != repository.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateInvite_NotificationFailureIsNotFatal(t *testing.T) {
	invitesRepo := &fakeInvitesRepo{}
	notifier := &fakeNotifier{refuse: true}
	svc := NewInviteService(invitesRepo, nil, notifier, zap.NewNop())

	result, err := svc.CreateInvite(context.Background(), "t-1", "김철수", "010-1234-5678")
	if err != nil {
		t.Fatalf("invite should succeed despite notification failure: %v", err)
	}
	if result.NotificationSent {
		t.Error("notification should be reported as failed")
	}
	if result.NotificationErr == "" {
		t.Error("expected notification error message")
	}
	if len(invitesRepo.created) != 1 {
		t.Errorf("expected 1 invite created, got %d", len(invitesRepo.created))
	}
}
