package httpapi

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"union-data/internal/domain"
	"union-data/internal/repository"
	"union-data/internal/service"
)

// MemberHandler member registry admin endpoints and the registration flow.
type MemberHandler struct {
	members      service.MemberService
	registration service.RegistrationService
	resolver     repository.TenantResolver
	logger       *zap.Logger
}

func NewMemberHandler(members service.MemberService, registration service.RegistrationService, resolver repository.TenantResolver, logger *zap.Logger) *MemberHandler {
	return &MemberHandler{members: members, registration: registration, resolver: resolver, logger: logger}
}

// memberDTO flattens nullable columns for the front end.
type memberDTO struct {
	MemberID           string `json:"member_id"`
	Name               string `json:"name"`
	Phone              string `json:"phone"`
	BirthDate          string `json:"birth_date,omitempty"`
	Status             string `json:"status"`
	Role               string `json:"role"`
	Blocked            bool   `json:"blocked"`
	BlockedReason      string `json:"blocked_reason,omitempty"`
	ResidentAddress    string `json:"resident_address,omitempty"`
	ResidentParcelCode string `json:"resident_parcel_code,omitempty"`
	HasAuthLink        bool   `json:"has_auth_link"`
}

func toMemberDTO(m *domain.Member) memberDTO {
	dto := memberDTO{
		MemberID:    m.MemberID,
		Name:        m.Name,
		Phone:       m.Phone,
		Status:      m.Status,
		Role:        m.Role,
		Blocked:     m.Blocked,
		HasAuthLink: m.HasAuthLink(),
	}
	if m.BirthDate.Valid {
		dto.BirthDate = m.BirthDate.Time.Format("2006-01-02")
	}
	if m.BlockedReason.Valid {
		dto.BlockedReason = m.BlockedReason.String
	}
	if m.ResidentAddress.Valid {
		dto.ResidentAddress = m.ResidentAddress.String
	}
	if m.ResidentParcelCode.Valid {
		dto.ResidentParcelCode = m.ResidentParcelCode.String
	}
	return dto
}

type propertyUnitDTO struct {
	PropertyUnitID string `json:"property_unit_id"`
	ParcelCode     string `json:"parcel_code,omitempty"`
	Dong           string `json:"dong,omitempty"`
	Ho             string `json:"ho,omitempty"`
	IsPrimary      bool   `json:"is_primary"`
	OwnershipType  string `json:"ownership_type"`
}

func toPropertyUnitDTO(u *domain.PropertyUnit) propertyUnitDTO {
	dto := propertyUnitDTO{
		PropertyUnitID: u.PropertyUnitID,
		IsPrimary:      u.IsPrimary,
		OwnershipType:  u.OwnershipType,
	}
	if u.ParcelCode.Valid {
		dto.ParcelCode = u.ParcelCode.String
	}
	if u.Dong.Valid {
		dto.Dong = u.Dong.String
	}
	if u.Ho.Valid {
		dto.Ho = u.Ho.String
	}
	return dto
}

// List GET /admin/api/v1/members
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	filters := repository.MemberFilters{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Status: r.URL.Query().Get("status"),
		Role:   r.URL.Query().Get("role"),
	}
	if v := r.URL.Query().Get("blocked"); v != "" {
		blocked := v == "true"
		filters.Blocked = &blocked
	}
	page, size := pageParams(r)

	members, total, err := h.members.ListMembers(r.Context(), tenantID, filters, page, size)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	items := make([]memberDTO, 0, len(members))
	for _, m := range members {
		items = append(items, toMemberDTO(m))
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	}))
}

// ByID GET/PUT/DELETE /admin/api/v1/members/{id} and the action subroutes.
func (h *MemberHandler) ByID(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}

	tail := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/members/")
	parts := strings.SplitN(tail, "/", 2)
	memberID := parts[0]
	if memberID == "" {
		writeJSON(w, http.StatusNotFound, Fail("member id is required"))
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		h.action(w, r, tenantID, memberID, parts[1])
		return
	}

	switch r.Method {
	case http.MethodGet:
		m, units, err := h.members.GetMember(r.Context(), tenantID, memberID)
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		unitDTOs := make([]propertyUnitDTO, 0, len(units))
		for _, u := range units {
			unitDTOs = append(unitDTOs, toPropertyUnitDTO(u))
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{
			"member":         toMemberDTO(m),
			"property_units": unitDTOs,
		}))
	case http.MethodPut:
		var body struct {
			Name               string `json:"name"`
			Phone              string `json:"phone"`
			BirthDate          string `json:"birth_date"`
			ResidentAddress    string `json:"resident_address"`
			ResidentParcelCode string `json:"resident_parcel_code"`
		}
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if body.Name == "" || body.Phone == "" {
			writeJSON(w, http.StatusBadRequest, Fail("name and phone are required"))
			return
		}
		m := &domain.Member{Name: body.Name, Phone: body.Phone}
		if body.BirthDate != "" {
			t, err := time.Parse("2006-01-02", body.BirthDate)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, Fail("invalid birth_date"))
				return
			}
			m.BirthDate = sql.NullTime{Time: t, Valid: true}
		}
		if body.ResidentAddress != "" {
			m.ResidentAddress = sql.NullString{String: body.ResidentAddress, Valid: true}
		}
		if body.ResidentParcelCode != "" {
			m.ResidentParcelCode = sql.NullString{String: body.ResidentParcelCode, Valid: true}
		}
		if err := h.members.UpdateMember(r.Context(), tenantID, memberID, m); err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"member_id": memberID}))
	case http.MethodDelete:
		if err := h.members.Delete(r.Context(), tenantID, memberID); err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"member_id": memberID, "deleted": true}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *MemberHandler) action(w http.ResponseWriter, r *http.Request, tenantID, memberID, action string) {
	var body struct {
		Reason         string `json:"reason"`
		PropertyUnitID string `json:"property_unit_id"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	switch action {
	case "approve":
		res, err := h.members.Approve(r.Context(), tenantID, memberID)
		h.writeActionResult(w, res, err)
	case "reject":
		res, err := h.members.Reject(r.Context(), tenantID, memberID, body.Reason)
		h.writeActionResult(w, res, err)
	case "block":
		if err := h.members.Block(r.Context(), tenantID, memberID, body.Reason); err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"member_id": memberID, "blocked": true}))
	case "unblock":
		if err := h.members.Unblock(r.Context(), tenantID, memberID); err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"member_id": memberID, "blocked": false}))
	case "force-withdraw":
		if err := h.members.ForceWithdraw(r.Context(), tenantID, memberID, body.Reason); err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"member_id": memberID, "withdrawn": true}))
	case "primary-unit":
		if body.PropertyUnitID == "" {
			writeJSON(w, http.StatusBadRequest, Fail("property_unit_id is required"))
			return
		}
		if err := h.members.SetPrimaryUnit(r.Context(), tenantID, memberID, body.PropertyUnitID); err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"member_id": memberID, "primary_unit_id": body.PropertyUnitID}))
	default:
		writeJSON(w, http.StatusNotFound, Fail("unknown action: "+action))
	}
}

func (h *MemberHandler) writeActionResult(w http.ResponseWriter, res *service.ActionResult, err error) {
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	if !res.NotificationSent {
		writeJSON(w, http.StatusOK, Warn("state changed, notification failed", res))
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

type registerBody struct {
	Name               string `json:"name"`
	Phone              string `json:"phone"`
	BirthDate          string `json:"birth_date"`
	ResidentAddress    string `json:"resident_address"`
	ResidentParcelCode string `json:"resident_parcel_code"`
	PropertyAddress    string `json:"property_address"`
	AuthProvider       string `json:"auth_provider"`
	AuthSubject        string `json:"auth_subject"`
	AllowDuplicate     bool   `json:"allow_duplicate"`
	Units              []struct {
		ParcelCode    string `json:"parcel_code"`
		Dong          string `json:"dong"`
		Ho            string `json:"ho"`
		IsPrimary     bool   `json:"is_primary"`
		OwnershipType string `json:"ownership_type"`
	} `json:"property_units"`
}

// Register POST /auth/api/v1/register
func (h *MemberHandler) Register(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	var body registerBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if body.Name == "" || body.Phone == "" {
		writeJSON(w, http.StatusBadRequest, Fail("name and phone are required"))
		return
	}

	req := service.RegisterRequest{
		TenantID:           tenantID,
		Name:               body.Name,
		Phone:              body.Phone,
		ResidentAddress:    body.ResidentAddress,
		ResidentParcelCode: body.ResidentParcelCode,
		PropertyAddress:    body.PropertyAddress,
		AuthProvider:       body.AuthProvider,
		AuthSubject:        body.AuthSubject,
		AllowDuplicate:     body.AllowDuplicate,
	}
	if body.BirthDate != "" {
		t, err := time.Parse("2006-01-02", body.BirthDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid birth_date"))
			return
		}
		req.BirthDate = &t
	}
	for _, u := range body.Units {
		req.Units = append(req.Units, service.PropertyUnitInput{
			ParcelCode:    u.ParcelCode,
			Dong:          u.Dong,
			Ho:            u.Ho,
			IsPrimary:     u.IsPrimary,
			OwnershipType: u.OwnershipType,
		})
	}

	result, err := h.registration.Register(r.Context(), req)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	if !result.Registered {
		// Duplicate confirmation prompt; HTTP 409 signals the front end to
		// render the link-or-create choice.
		writeJSON(w, http.StatusConflict, Warn("possible duplicate member", result))
		return
	}
	if result.DedupError != "" {
		writeJSON(w, http.StatusOK, Warn("registered, dedup pass failed", result))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// Precheck POST /auth/api/v1/register/precheck — dry-run duplicate lookup
// so the form can warn before submission.
func (h *MemberHandler) Precheck(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	var body struct {
		Name            string `json:"name"`
		Phone           string `json:"phone"`
		PropertyAddress string `json:"property_address"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if body.Name == "" || body.Phone == "" {
		writeJSON(w, http.StatusBadRequest, Fail("name and phone are required"))
		return
	}
	candidate, err := h.registration.PrecheckDuplicate(r.Context(), tenantID, body.Name, body.Phone, body.PropertyAddress)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"duplicate": candidate,
		"found":     candidate != nil,
	}))
}

// LinkAuth POST /auth/api/v1/register/link — the operator chose to attach
// the new credential to an existing member instead of creating a row.
func (h *MemberHandler) LinkAuth(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	var body struct {
		MemberID     string `json:"member_id"`
		AuthProvider string `json:"auth_provider"`
		AuthSubject  string `json:"auth_subject"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if body.MemberID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("member_id is required"))
		return
	}
	if err := h.registration.LinkAuthIdentity(r.Context(), tenantID, body.MemberID, body.AuthProvider, body.AuthSubject); err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"member_id": body.MemberID, "linked": true}))
}
