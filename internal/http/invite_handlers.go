package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"union-data/internal/domain"
	"union-data/internal/repository"
	"union-data/internal/service"
)

const maxInviteUpload = 8 << 20

// InviteHandler admin invite management: single and bulk (xlsx) invites,
// revocation, roster export.
type InviteHandler struct {
	invites  service.InviteService
	resolver repository.TenantResolver
	logger   *zap.Logger
}

func NewInviteHandler(invites service.InviteService, resolver repository.TenantResolver, logger *zap.Logger) *InviteHandler {
	return &InviteHandler{invites: invites, resolver: resolver, logger: logger}
}

type inviteDTO struct {
	InviteID  string `json:"invite_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Status    string `json:"status"`
	MemberID  string `json:"member_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toInviteDTO(inv *domain.MemberInvite) inviteDTO {
	dto := inviteDTO{
		InviteID: inv.InviteID,
		Name:     inv.Name,
		Phone:    inv.Phone,
		Status:   inv.Status,
	}
	if inv.MemberID.Valid {
		dto.MemberID = inv.MemberID.String
	}
	if inv.CreatedAt.Valid {
		dto.CreatedAt = inv.CreatedAt.Time.Format(time.RFC3339)
	}
	return dto
}

// Invites GET/POST /admin/api/v1/invites
func (h *InviteHandler) Invites(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		invites, err := h.invites.ListInvites(r.Context(), tenantID, r.URL.Query().Get("status"))
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		items := make([]inviteDTO, 0, len(invites))
		for _, inv := range invites {
			items = append(items, toInviteDTO(inv))
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"items": items, "total": len(items)}))
	case http.MethodPost:
		var body struct {
			Name  string `json:"name"`
			Phone string `json:"phone"`
		}
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if body.Name == "" || body.Phone == "" {
			writeJSON(w, http.StatusBadRequest, Fail("name and phone are required"))
			return
		}
		result, err := h.invites.CreateInvite(r.Context(), tenantID, body.Name, body.Phone)
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		if !result.NotificationSent {
			writeJSON(w, http.StatusOK, Warn("invite created, notification failed", result))
			return
		}
		writeJSON(w, http.StatusOK, Ok(result))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// BulkInvite POST /admin/api/v1/invites/bulk — multipart xlsx upload.
func (h *InviteHandler) BulkInvite(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxInviteUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid multipart form"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("file field is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxInviteUpload))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Fail("failed to read upload"))
		return
	}
	result, err := h.invites.BulkInvite(r.Context(), tenantID, data)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	if len(result.FailedRows) > 0 {
		writeJSON(w, http.StatusOK, Warn(fmt.Sprintf("%d rows failed", len(result.FailedRows)), result))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// Redeem POST /auth/api/v1/invites/redeem — the invited person opened
// their link; no token auth, the invite token is the credential.
func (h *InviteHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if body.Token == "" {
		writeJSON(w, http.StatusBadRequest, Fail("token is required"))
		return
	}
	result, err := h.invites.RedeemInvite(r.Context(), body.Token)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// Revoke DELETE /admin/api/v1/invites/{id}
func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	inviteID, ok := pathTail(r.URL.Path, "/admin/api/v1/invites/")
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("invite id is required"))
		return
	}
	if err := h.invites.RevokeInvite(r.Context(), tenantID, inviteID); err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"invite_id": inviteID, "revoked": true}))
}

// ExportRoster GET /admin/api/v1/members/export — xlsx download.
func (h *InviteHandler) ExportRoster(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	data, err := h.invites.ExportRoster(r.Context(), tenantID)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="members.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
