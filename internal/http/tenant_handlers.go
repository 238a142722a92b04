package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"union-data/internal/domain"
	"union-data/internal/repository"
)

// TenantHandler union (tenant) administration and public slug resolution.
type TenantHandler struct {
	tenants repository.TenantsRepository
	logger  *zap.Logger
}

func NewTenantHandler(tenants repository.TenantsRepository, logger *zap.Logger) *TenantHandler {
	return &TenantHandler{tenants: tenants, logger: logger}
}

type tenantDTO struct {
	TenantID     string `json:"tenant_id"`
	Slug         string `json:"slug"`
	TenantName   string `json:"tenant_name"`
	BusinessType string `json:"business_type"`
	MemberCount  int    `json:"member_count"`
	Status       string `json:"status"`
}

func toTenantDTO(t *domain.Tenant) tenantDTO {
	return tenantDTO{
		TenantID:     t.TenantID,
		Slug:         t.Slug,
		TenantName:   t.TenantName,
		BusinessType: t.BusinessType,
		MemberCount:  t.MemberCount,
		Status:       t.Status,
	}
}

// Tenants GET/POST /admin/api/v1/tenants
func (h *TenantHandler) Tenants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tenants, err := h.tenants.ListTenants(r.Context(), r.URL.Query().Get("search"))
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		items := make([]tenantDTO, 0, len(tenants))
		for _, t := range tenants {
			items = append(items, toTenantDTO(t))
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"items": items, "total": len(items)}))
	case http.MethodPost:
		var body tenantDTO
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if body.TenantName == "" || !slugRe.MatchString(body.Slug) {
			writeJSON(w, http.StatusBadRequest, Fail("tenant_name and a valid slug are required"))
			return
		}
		// Stored slugs are canonically lowercase.
		body.Slug = strings.ToLower(body.Slug)
		switch body.BusinessType {
		case domain.BusinessTypeRedevelopment, domain.BusinessTypeReconstruction:
		default:
			writeJSON(w, http.StatusBadRequest, Fail("invalid business_type"))
			return
		}
		id, err := h.tenants.CreateTenant(r.Context(), &domain.Tenant{
			Slug:         body.Slug,
			TenantName:   body.TenantName,
			BusinessType: body.BusinessType,
			MemberCount:  body.MemberCount,
			Status:       "active",
		})
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"tenant_id": id}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ByID GET/PUT /admin/api/v1/tenants/{id} and PUT .../{id}/member-count
func (h *TenantHandler) ByID(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/tenants/")
	parts := strings.SplitN(tail, "/", 2)
	tenantID := parts[0]
	if tenantID == "" {
		writeJSON(w, http.StatusNotFound, Fail("tenant id is required"))
		return
	}

	if len(parts) == 2 && parts[1] == "member-count" && r.Method == http.MethodPut {
		var body struct {
			MemberCount int `json:"member_count"`
		}
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if body.MemberCount < 0 {
			writeJSON(w, http.StatusBadRequest, Fail("member_count must be non-negative"))
			return
		}
		if err := h.tenants.UpdateMemberCount(r.Context(), tenantID, body.MemberCount); err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"tenant_id": tenantID, "member_count": body.MemberCount}))
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, err := h.tenants.GetTenant(r.Context(), tenantID)
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(toTenantDTO(t)))
	case http.MethodPut:
		var body tenantDTO
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if body.TenantName == "" {
			writeJSON(w, http.StatusBadRequest, Fail("tenant_name is required"))
			return
		}
		if err := h.tenants.UpdateTenant(r.Context(), tenantID, &domain.Tenant{
			TenantName:  body.TenantName,
			MemberCount: body.MemberCount,
			Status:      body.Status,
		}); err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"tenant_id": tenantID}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Resolve GET /public/api/v1/unions/{slug} — slug to tenant for the front
// end bootstrap.
func (h *TenantHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	slug, ok := pathTail(r.URL.Path, "/public/api/v1/unions/")
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("slug is required"))
		return
	}
	if !slugRe.MatchString(slug) {
		writeJSON(w, http.StatusBadRequest, Fail("invalid_slug"))
		return
	}
	t, err := h.tenants.GetTenantBySlug(r.Context(), strings.ToLower(slug))
	if err != nil {
		if err == repository.ErrNotFound {
			writeJSON(w, http.StatusNotFound, Fail("union not found"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(toTenantDTO(t)))
}
