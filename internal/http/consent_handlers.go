package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"union-data/internal/domain"
	"union-data/internal/repository"
	"union-data/internal/service"
)

// ConsentHandler stage definitions, consent submission and the aggregated
// views (per parcel, per tenant, map overview).
type ConsentHandler struct {
	consents     service.ConsentService
	consentsRepo repository.ConsentsRepository
	resolver     repository.TenantResolver
	logger       *zap.Logger
}

func NewConsentHandler(consents service.ConsentService, consentsRepo repository.ConsentsRepository, resolver repository.TenantResolver, logger *zap.Logger) *ConsentHandler {
	return &ConsentHandler{consents: consents, consentsRepo: consentsRepo, resolver: resolver, logger: logger}
}

type stageDTO struct {
	StageID      string  `json:"stage_id"`
	BusinessType string  `json:"business_type"`
	StageName    string  `json:"stage_name"`
	RequiredRate float64 `json:"required_rate"`
	SortOrder    int     `json:"sort_order"`
}

func toStageDTO(s *domain.ConsentStage) stageDTO {
	return stageDTO{
		StageID:      s.StageID,
		BusinessType: s.BusinessType,
		StageName:    s.StageName,
		RequiredRate: s.RequiredRate,
		SortOrder:    s.SortOrder,
	}
}

// Stages GET/POST /consent/api/v1/stages
func (h *ConsentHandler) Stages(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		stages, err := h.consentsRepo.ListStages(r.Context(), tenantID)
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		items := make([]stageDTO, 0, len(stages))
		for _, s := range stages {
			items = append(items, toStageDTO(s))
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"items": items, "total": len(items)}))
	case http.MethodPost:
		var body stageDTO
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if body.StageName == "" || body.RequiredRate <= 0 {
			writeJSON(w, http.StatusBadRequest, Fail("stage_name and required_rate are required"))
			return
		}
		switch body.BusinessType {
		case domain.BusinessTypeRedevelopment, domain.BusinessTypeReconstruction:
		default:
			writeJSON(w, http.StatusBadRequest, Fail("invalid business_type"))
			return
		}
		id, err := h.consentsRepo.CreateStage(r.Context(), tenantID, &domain.ConsentStage{
			BusinessType: body.BusinessType,
			StageName:    body.StageName,
			RequiredRate: body.RequiredRate,
			SortOrder:    body.SortOrder,
		})
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"stage_id": id}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SetConsent POST /consent/api/v1/consents
func (h *ConsentHandler) SetConsent(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	var body struct {
		MemberID    string `json:"member_id"`
		StageID     string `json:"stage_id"`
		Status      string `json:"status"`
		ConsentDate string `json:"consent_date"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if body.MemberID == "" || body.StageID == "" || body.Status == "" {
		writeJSON(w, http.StatusBadRequest, Fail("member_id, stage_id and status are required"))
		return
	}
	var consentDate *time.Time
	if body.ConsentDate != "" {
		t, err := time.Parse("2006-01-02", body.ConsentDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid consent_date"))
			return
		}
		consentDate = &t
	}
	if err := h.consents.SetConsent(r.Context(), tenantID, body.MemberID, body.StageID, body.Status, consentDate); err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"member_id": body.MemberID, "stage_id": body.StageID, "status": body.Status}))
}

// ParcelSummary GET /consent/api/v1/parcels/{pnu}?stage_id=...
func (h *ConsentHandler) ParcelSummary(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	parcelCode, ok := pathTail(r.URL.Path, "/consent/api/v1/parcels/")
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("parcel code is required"))
		return
	}
	stageID := r.URL.Query().Get("stage_id")
	if stageID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("stage_id is required"))
		return
	}
	summary, err := h.consents.ParcelConsent(r.Context(), tenantID, parcelCode, stageID)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(summary))
}

// TenantSummary GET /consent/api/v1/summary?stage_id=...
func (h *ConsentHandler) TenantSummary(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	stageID := r.URL.Query().Get("stage_id")
	if stageID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("stage_id is required"))
		return
	}
	summary, err := h.consents.TenantConsent(r.Context(), tenantID, stageID)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(summary))
}

// MapOverview GET /consent/api/v1/map-overview?stage_id=...
func (h *ConsentHandler) MapOverview(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	stageID := r.URL.Query().Get("stage_id")
	if stageID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("stage_id is required"))
		return
	}
	parcels, err := h.consents.MapOverview(r.Context(), tenantID, stageID)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"items": parcels, "total": len(parcels)}))
}
