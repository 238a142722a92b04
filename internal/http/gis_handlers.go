package httpapi

import (
	"database/sql"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"union-data/internal/domain"
	"union-data/internal/repository"
	"union-data/internal/service"
)

// GISHandler land lot / building registry and the parcel-building
// matching operations.
type GISHandler struct {
	parcels   repository.ParcelsRepository
	buildings repository.BuildingsRepository
	matching  service.MatchingService
	geocode   service.Geocoder
	resolver  repository.TenantResolver
	logger    *zap.Logger
}

func NewGISHandler(parcels repository.ParcelsRepository, buildings repository.BuildingsRepository, matching service.MatchingService, geocode service.Geocoder, resolver repository.TenantResolver, logger *zap.Logger) *GISHandler {
	return &GISHandler{parcels: parcels, buildings: buildings, matching: matching, geocode: geocode, resolver: resolver, logger: logger}
}

type landLotDTO struct {
	ParcelCode    string  `json:"parcel_code"`
	Address       string  `json:"address"`
	Area          float64 `json:"area,omitempty"`
	OfficialPrice int64   `json:"official_price,omitempty"`
	LandCategory  string  `json:"land_category,omitempty"`
	Boundary      string  `json:"boundary,omitempty"`
}

func toLandLotDTO(l *domain.LandLot) landLotDTO {
	dto := landLotDTO{ParcelCode: l.ParcelCode, Address: l.Address}
	if l.Area.Valid {
		dto.Area = l.Area.Float64
	}
	if l.OfficialPrice.Valid {
		dto.OfficialPrice = l.OfficialPrice.Int64
	}
	if l.LandCategory.Valid {
		dto.LandCategory = l.LandCategory.String
	}
	if l.Boundary.Valid {
		dto.Boundary = l.Boundary.String
	}
	return dto
}

type buildingDTO struct {
	BuildingID     string `json:"building_id"`
	BuildingName   string `json:"building_name"`
	BuildingType   string `json:"building_type,omitempty"`
	FloorCount     int64  `json:"floor_count,omitempty"`
	TotalUnitCount int64  `json:"total_unit_count,omitempty"`
}

func toBuildingDTO(b *domain.Building) buildingDTO {
	dto := buildingDTO{BuildingID: b.BuildingID, BuildingName: b.BuildingName}
	if b.BuildingType.Valid {
		dto.BuildingType = b.BuildingType.String
	}
	if b.FloorCount.Valid {
		dto.FloorCount = b.FloorCount.Int64
	}
	if b.TotalUnitCount.Valid {
		dto.TotalUnitCount = b.TotalUnitCount.Int64
	}
	return dto
}

type mappingDTO struct {
	ParcelCode         string `json:"parcel_code"`
	BuildingID         string `json:"building_id"`
	PreviousBuildingID string `json:"previous_building_id,omitempty"`
}

func toMappingDTO(m *domain.ParcelBuildingMapping) mappingDTO {
	dto := mappingDTO{ParcelCode: m.ParcelCode, BuildingID: m.BuildingID}
	if m.PreviousBuildingID.Valid {
		dto.PreviousBuildingID = m.PreviousBuildingID.String
	}
	return dto
}

// LandLots GET/POST /admin/api/v1/land-lots
func (h *GISHandler) LandLots(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		page, size := pageParams(r)
		lots, total, err := h.parcels.ListLandLots(r.Context(), tenantID, r.URL.Query().Get("search"), page, size)
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		items := make([]landLotDTO, 0, len(lots))
		for _, l := range lots {
			items = append(items, toLandLotDTO(l))
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"items": items, "total": total, "page": page, "size": size}))
	case http.MethodPost:
		var body landLotDTO
		if err := readBodyJSON(r, 4<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if !service.ValidParcelCode(body.ParcelCode) {
			writeJSON(w, http.StatusBadRequest, Fail("parcel_code must be a 19-digit PNU"))
			return
		}
		lot := &domain.LandLot{ParcelCode: body.ParcelCode, Address: body.Address}
		if body.Area > 0 {
			lot.Area = sql.NullFloat64{Float64: body.Area, Valid: true}
		}
		if body.OfficialPrice > 0 {
			lot.OfficialPrice = sql.NullInt64{Int64: body.OfficialPrice, Valid: true}
		}
		if body.LandCategory != "" {
			lot.LandCategory = sql.NullString{String: body.LandCategory, Valid: true}
		}
		if body.Boundary != "" {
			lot.Boundary = sql.NullString{String: body.Boundary, Valid: true}
		}
		if err := h.parcels.UpsertLandLot(r.Context(), tenantID, lot); err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"parcel_code": body.ParcelCode}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// LandLotByCode GET /admin/api/v1/land-lots/{pnu} — the lot plus its
// approved owners.
func (h *GISHandler) LandLotByCode(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	parcelCode, ok := pathTail(r.URL.Path, "/admin/api/v1/land-lots/")
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("parcel code is required"))
		return
	}
	lot, err := h.parcels.GetLandLot(r.Context(), tenantID, parcelCode)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	owners, err := h.parcels.OwnersByParcel(r.Context(), tenantID, parcelCode)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	ownerDTOs := make([]memberDTO, 0, len(owners))
	for _, o := range owners {
		ownerDTOs = append(ownerDTOs, toMemberDTO(o))
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"land_lot": toLandLotDTO(lot),
		"owners":   ownerDTOs,
	}))
}

// Buildings GET/POST /admin/api/v1/buildings
func (h *GISHandler) Buildings(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		buildings, err := h.buildings.ListBuildings(r.Context(), tenantID, r.URL.Query().Get("search"))
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		items := make([]buildingDTO, 0, len(buildings))
		for _, b := range buildings {
			items = append(items, toBuildingDTO(b))
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"items": items, "total": len(items)}))
	case http.MethodPost:
		var body buildingDTO
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if body.BuildingName == "" {
			writeJSON(w, http.StatusBadRequest, Fail("building_name is required"))
			return
		}
		b := &domain.Building{BuildingName: body.BuildingName}
		if body.BuildingType != "" {
			b.BuildingType = sql.NullString{String: body.BuildingType, Valid: true}
		}
		if body.FloorCount > 0 {
			b.FloorCount = sql.NullInt64{Int64: body.FloorCount, Valid: true}
		}
		if body.TotalUnitCount > 0 {
			b.TotalUnitCount = sql.NullInt64{Int64: body.TotalUnitCount, Valid: true}
		}
		id, err := h.buildings.CreateBuilding(r.Context(), tenantID, b)
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"building_id": id}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// BuildingByID GET /admin/api/v1/buildings/{id} and GET .../{id}/units
func (h *GISHandler) BuildingByID(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	tail := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/buildings/")
	parts := strings.SplitN(tail, "/", 2)
	buildingID := parts[0]
	if buildingID == "" {
		writeJSON(w, http.StatusNotFound, Fail("building id is required"))
		return
	}

	if len(parts) == 2 && parts[1] == "units" {
		units, err := h.buildings.ListBuildingUnits(r.Context(), tenantID, buildingID)
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"items": units, "total": len(units)}))
		return
	}
	if len(parts) == 2 && parts[1] == "mappings" {
		mappings, err := h.buildings.ListMappingsByBuilding(r.Context(), tenantID, buildingID)
		if err != nil {
			writeJSON(w, failStatus(err), Fail(err.Error()))
			return
		}
		items := make([]mappingDTO, 0, len(mappings))
		for _, m := range mappings {
			items = append(items, toMappingDTO(m))
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"items": items, "total": len(items)}))
		return
	}

	b, err := h.buildings.GetBuilding(r.Context(), tenantID, buildingID)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(toBuildingDTO(b)))
}

// Mapping GET /gis/api/v1/mappings/{pnu}
func (h *GISHandler) Mapping(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	parcelCode, ok := pathTail(r.URL.Path, "/gis/api/v1/mappings/")
	if !ok {
		writeJSON(w, http.StatusNotFound, Fail("parcel code is required"))
		return
	}
	m, err := h.buildings.GetMapping(r.Context(), tenantID, parcelCode)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(toMappingDTO(m)))
}

// Match POST /gis/api/v1/match — point a parcel at a different building.
func (h *GISHandler) Match(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	var body struct {
		ParcelCode string `json:"parcel_code"`
		BuildingID string `json:"building_id"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if body.ParcelCode == "" || body.BuildingID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("parcel_code and building_id are required"))
		return
	}
	mapping, err := h.matching.UpdateBuildingMatch(r.Context(), tenantID, body.ParcelCode, body.BuildingID)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(toMappingDTO(mapping)))
}

// Merge POST /gis/api/v1/merge — fold a duplicate building into the one
// currently mapped to the parcel.
func (h *GISHandler) Merge(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	var body struct {
		ParcelCode       string `json:"parcel_code"`
		SourceBuildingID string `json:"source_building_id"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if body.ParcelCode == "" || body.SourceBuildingID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("parcel_code and source_building_id are required"))
		return
	}
	result, err := h.matching.MergeBuildingIntoParcel(r.Context(), tenantID, body.ParcelCode, body.SourceBuildingID)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// UndoMerge POST /gis/api/v1/merge/undo
func (h *GISHandler) UndoMerge(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	var body struct {
		ParcelCode string `json:"parcel_code"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if body.ParcelCode == "" {
		writeJSON(w, http.StatusBadRequest, Fail("parcel_code is required"))
		return
	}
	result, err := h.matching.UndoMerge(r.Context(), tenantID, body.ParcelCode)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// BatchMerge POST /gis/api/v1/merge/batch — merge several parcels'
// buildings into the target parcel's building. Stops at the first failure
// and reports what completed.
func (h *GISHandler) BatchMerge(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := resolveTenant(w, r, h.resolver)
	if !ok {
		return
	}
	var body struct {
		TargetParcelCode  string   `json:"target_parcel_code"`
		SourceParcelCodes []string `json:"source_parcel_codes"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if body.TargetParcelCode == "" || len(body.SourceParcelCodes) == 0 {
		writeJSON(w, http.StatusBadRequest, Fail("target_parcel_code and source_parcel_codes are required"))
		return
	}
	result, err := h.matching.MergeMultipleParcels(r.Context(), tenantID, body.TargetParcelCode, body.SourceParcelCodes)
	if err != nil {
		if result != nil {
			writeJSON(w, http.StatusOK, Warn(err.Error(), result))
			return
		}
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// Geocode GET /gis/api/v1/geocode?address=... — resolve an address to a
// PNU via the external service, falling back to local derivation.
func (h *GISHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	if _, ok := resolveTenant(w, r, h.resolver); !ok {
		return
	}
	q := r.URL.Query()
	address := strings.TrimSpace(q.Get("address"))
	if address == "" {
		writeJSON(w, http.StatusBadRequest, Fail("address is required"))
		return
	}
	var parts *service.AddressParts
	if code := q.Get("legal_dong_code"); code != "" {
		parts = &service.AddressParts{
			LegalDongCode: code,
			Mountain:      q.Get("mountain") == "true",
			MainNo:        parseInt(q.Get("main_no"), 0),
			SubNo:         parseInt(q.Get("sub_no"), 0),
		}
	}
	result, err := h.geocode.ResolveParcelCode(r.Context(), address, parts)
	if err != nil {
		writeJSON(w, failStatus(err), Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}
