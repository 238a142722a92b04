package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"union-data/internal/domain"
	"union-data/internal/metrics"
	"union-data/internal/repository"
)

// MatchingService maintains the parcel->building association and the merge
// operations used when two building rows turn out to be the same physical
// building. Every mutation runs in a single transaction and takes a
// SELECT ... FOR UPDATE on the contended mapping row before writing.
type MatchingService interface {
	UpdateBuildingMatch(ctx context.Context, tenantID, parcelCode, newBuildingID string) (*domain.ParcelBuildingMapping, error)
	MergeBuildingIntoParcel(ctx context.Context, tenantID, parcelCode, sourceBuildingID string) (*MergeResult, error)
	UndoMerge(ctx context.Context, tenantID, parcelCode string) (*UndoResult, error)
	MergeMultipleParcels(ctx context.Context, tenantID, targetParcelCode string, sourceParcelCodes []string) (*MultiMergeResult, error)
}

// MergeResult outcome of a single building merge.
type MergeResult struct {
	TargetBuildingID string `json:"target_building_id"`
	SourceBuildingID string `json:"source_building_id"`
	MovedUnits       int    `json:"moved_units_count"`
	UpdatedMappings  int    `json:"updated_mappings_count"`
}

// UndoResult outcome of an undo. RestoredMappings is zero when no mapping
// on the parcel's building recorded a previous building.
type UndoResult struct {
	RestoredBuildingID string `json:"restored_building_id,omitempty"`
	RestoredMappings   int    `json:"restored_mappings_count"`
}

// MultiMergeResult per-item outcome of a batch merge. The batch is not
// atomic: when FailedParcel is set, everything in MergedParcels has already
// been committed and stays committed.
type MultiMergeResult struct {
	TargetBuildingID string   `json:"target_building_id"`
	MergedParcels    []string `json:"merged_pnus"`
	SkippedParcels   []string `json:"skipped_pnus"`
	MovedUnits       int      `json:"moved_units_count"`
	UpdatedMappings  int      `json:"updated_mappings_count"`
	FailedParcel     string   `json:"failed_pnu,omitempty"`
	FailureReason    string   `json:"failure_reason,omitempty"`
}

type matchingService struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMatchingService(db *sql.DB, logger *zap.Logger) MatchingService {
	return &matchingService{db: db, logger: logger}
}

// lockMapping reads the mapping row for update. Returns ErrNotFound when the
// parcel has no mapping yet.
func lockMapping(ctx context.Context, tx *sql.Tx, tenantID, parcelCode string) (*domain.ParcelBuildingMapping, error) {
	var m domain.ParcelBuildingMapping
	err := tx.QueryRowContext(ctx,
		`SELECT tenant_id::text, parcel_code, building_id::text, previous_building_id::text, updated_at
		 FROM parcel_building_mappings
		 WHERE tenant_id = $1 AND parcel_code = $2
		 FOR UPDATE`,
		tenantID, parcelCode,
	).Scan(&m.TenantID, &m.ParcelCode, &m.BuildingID, &m.PreviousBuildingID, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock mapping: %w", err)
	}
	return &m, nil
}

func buildingExists(ctx context.Context, tx *sql.Tx, tenantID, buildingID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM buildings WHERE tenant_id = $1 AND building_id = $2`,
		tenantID, buildingID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check building: %w", err)
	}
	return true, nil
}

// UpdateBuildingMatch sets or replaces the parcel's building. The replaced
// building id is retained as previous_building_id, except when the new id
// equals the current one, in which case the previous reference is cleared
// (a no-op re-match needs no undo history). One row per parcel at all
// times; at most one retained previous reference.
func (s *matchingService) UpdateBuildingMatch(ctx context.Context, tenantID, parcelCode, newBuildingID string) (*domain.ParcelBuildingMapping, error) {
	if tenantID == "" || parcelCode == "" || newBuildingID == "" {
		return nil, fmt.Errorf("tenant_id, parcel_code and building_id are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := buildingExists(ctx, tx, tenantID, newBuildingID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("building %s: %w", newBuildingID, repository.ErrNotFound)
	}

	var previousArg any
	current, err := lockMapping(ctx, tx, tenantID, parcelCode)
	if err != nil && err != repository.ErrNotFound {
		return nil, err
	}
	if current != nil && current.BuildingID != newBuildingID {
		previousArg = current.BuildingID
	}

	var out domain.ParcelBuildingMapping
	err = tx.QueryRowContext(ctx,
		`INSERT INTO parcel_building_mappings (tenant_id, parcel_code, building_id, previous_building_id, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (tenant_id, parcel_code)
		 DO UPDATE SET building_id = EXCLUDED.building_id,
		               previous_building_id = EXCLUDED.previous_building_id,
		               updated_at = NOW()
		 RETURNING tenant_id::text, parcel_code, building_id::text, previous_building_id::text, updated_at`,
		tenantID, parcelCode, newBuildingID, previousArg,
	).Scan(&out.TenantID, &out.ParcelCode, &out.BuildingID, &out.PreviousBuildingID, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert mapping: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match update: %w", err)
	}

	metrics.MergeOperationsTotal.WithLabelValues("match", "ok").Inc()
	s.logger.Info("building match updated",
		zap.String("tenant_id", tenantID),
		zap.String("parcel_code", parcelCode),
		zap.String("building_id", newBuildingID),
	)
	return &out, nil
}

// MergeBuildingIntoParcel merges sourceBuildingID into the building the
// target parcel currently maps to. Idempotent: when the source already is
// the target's building, the call succeeds with zero counts and no writes.
// The source building row is left orphaned; deleting it is out of scope.
func (s *matchingService) MergeBuildingIntoParcel(ctx context.Context, tenantID, parcelCode, sourceBuildingID string) (*MergeResult, error) {
	if tenantID == "" || parcelCode == "" || sourceBuildingID == "" {
		return nil, fmt.Errorf("tenant_id, parcel_code and source building_id are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	target, err := lockMapping(ctx, tx, tenantID, parcelCode)
	if err == repository.ErrNotFound {
		return nil, fmt.Errorf("parcel %s has no building match: %w", parcelCode, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	result := &MergeResult{
		TargetBuildingID: target.BuildingID,
		SourceBuildingID: sourceBuildingID,
	}
	if sourceBuildingID == target.BuildingID {
		metrics.MergeOperationsTotal.WithLabelValues("merge", "noop").Inc()
		return result, nil
	}

	exists, err := buildingExists(ctx, tx, tenantID, sourceBuildingID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("building %s: %w", sourceBuildingID, repository.ErrNotFound)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE building_units SET building_id = $3
		 WHERE tenant_id = $1 AND building_id = $2`,
		tenantID, sourceBuildingID, target.BuildingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to move building units: %w", err)
	}
	moved, _ := res.RowsAffected()
	result.MovedUnits = int(moved)

	res, err = tx.ExecContext(ctx,
		`UPDATE parcel_building_mappings
		 SET building_id = $3, previous_building_id = $2, updated_at = NOW()
		 WHERE tenant_id = $1 AND building_id = $2`,
		tenantID, sourceBuildingID, target.BuildingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update mappings: %w", err)
	}
	updated, _ := res.RowsAffected()
	result.UpdatedMappings = int(updated)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit merge: %w", err)
	}

	metrics.MergeOperationsTotal.WithLabelValues("merge", "ok").Inc()
	s.logger.Info("building merged",
		zap.String("tenant_id", tenantID),
		zap.String("parcel_code", parcelCode),
		zap.String("source_building_id", sourceBuildingID),
		zap.String("target_building_id", target.BuildingID),
		zap.Int("moved_units", result.MovedUnits),
		zap.Int("updated_mappings", result.UpdatedMappings),
	)
	return result, nil
}

// UndoMerge reverses the merge recorded against the parcel's current
// building. The merge writes its provenance on the repointed mappings, not
// on the parcel's own row, so the undo scans for every mapping now pointing
// at that building with a retained previous_building_id and sends each back
// to its previous building, clearing the reference. A no-op when no mapping
// recorded a previous. Building-unit moves are not reversed; unit
// provenance is not recorded.
func (s *matchingService) UndoMerge(ctx context.Context, tenantID, parcelCode string) (*UndoResult, error) {
	if tenantID == "" || parcelCode == "" {
		return nil, fmt.Errorf("tenant_id and parcel_code are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	target, err := lockMapping(ctx, tx, tenantID, parcelCode)
	if err == repository.ErrNotFound {
		return nil, fmt.Errorf("parcel %s has no building match: %w", parcelCode, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	// The building merged away most recently; reported as the restored id.
	var previous string
	err = tx.QueryRowContext(ctx,
		`SELECT previous_building_id::text
		 FROM parcel_building_mappings
		 WHERE tenant_id = $1 AND building_id = $2 AND previous_building_id IS NOT NULL
		 ORDER BY updated_at DESC
		 LIMIT 1
		 FOR UPDATE`,
		tenantID, target.BuildingID,
	).Scan(&previous)
	if err == sql.ErrNoRows {
		metrics.MergeOperationsTotal.WithLabelValues("undo", "noop").Inc()
		return &UndoResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find merged building: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE parcel_building_mappings
		 SET building_id = previous_building_id, previous_building_id = NULL, updated_at = NOW()
		 WHERE tenant_id = $1 AND building_id = $2 AND previous_building_id IS NOT NULL`,
		tenantID, target.BuildingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to restore mappings: %w", err)
	}
	restored, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit undo: %w", err)
	}

	metrics.MergeOperationsTotal.WithLabelValues("undo", "ok").Inc()
	s.logger.Info("merge undone",
		zap.String("tenant_id", tenantID),
		zap.String("parcel_code", parcelCode),
		zap.String("restored_building_id", previous),
		zap.Int64("restored_mappings", restored),
	)
	return &UndoResult{RestoredBuildingID: previous, RestoredMappings: int(restored)}, nil
}

// MergeMultipleParcels merges each source parcel's building into the target
// parcel's building, one transaction per source. Sources already on the
// target building land in SkippedParcels. The batch stops at the first
// failure and returns the partial result together with the error; merges
// committed before the failure are not rolled back.
func (s *matchingService) MergeMultipleParcels(ctx context.Context, tenantID, targetParcelCode string, sourceParcelCodes []string) (*MultiMergeResult, error) {
	if tenantID == "" || targetParcelCode == "" {
		return nil, fmt.Errorf("tenant_id and target parcel_code are required")
	}

	var targetBuildingID string
	err := s.db.QueryRowContext(ctx,
		`SELECT building_id::text FROM parcel_building_mappings
		 WHERE tenant_id = $1 AND parcel_code = $2`,
		tenantID, targetParcelCode,
	).Scan(&targetBuildingID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("parcel %s has no building match: %w", targetParcelCode, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target mapping: %w", err)
	}

	result := &MultiMergeResult{
		TargetBuildingID: targetBuildingID,
		MergedParcels:    []string{},
		SkippedParcels:   []string{},
	}

	for _, source := range sourceParcelCodes {
		if source == targetParcelCode {
			result.SkippedParcels = append(result.SkippedParcels, source)
			continue
		}

		var sourceBuildingID string
		err := s.db.QueryRowContext(ctx,
			`SELECT building_id::text FROM parcel_building_mappings
			 WHERE tenant_id = $1 AND parcel_code = $2`,
			tenantID, source,
		).Scan(&sourceBuildingID)
		if err == sql.ErrNoRows {
			result.FailedParcel = source
			result.FailureReason = "no building match"
			return result, fmt.Errorf("parcel %s has no building match: %w", source, repository.ErrNotFound)
		}
		if err != nil {
			result.FailedParcel = source
			result.FailureReason = err.Error()
			return result, fmt.Errorf("failed to resolve mapping for %s: %w", source, err)
		}

		if sourceBuildingID == targetBuildingID {
			result.SkippedParcels = append(result.SkippedParcels, source)
			continue
		}

		merge, err := s.MergeBuildingIntoParcel(ctx, tenantID, targetParcelCode, sourceBuildingID)
		if err != nil {
			result.FailedParcel = source
			result.FailureReason = err.Error()
			return result, fmt.Errorf("failed to merge parcel %s: %w", source, err)
		}
		result.MergedParcels = append(result.MergedParcels, source)
		result.MovedUnits += merge.MovedUnits
		result.UpdatedMappings += merge.UpdatedMappings
	}
	return result, nil
}
