package app

import (
	"context"
	"strings"

	"github.com/hylla/ewtrail/internal/domain"
)

// GetLot returns a lot with its links, latest dispatch and recycler intake.
func (s *Service) GetLot(ctx context.Context, id string) (LotDetail, error) {
	id = strings.TrimSpace(id)
	lot, err := s.store.GetLot(ctx, id)
	if err != nil {
		return LotDetail{}, missing(err, "LOT_NOT_FOUND", "lot", id)
	}
	links, err := s.store.ListLotPickups(ctx, lot.ID)
	if err != nil {
		return LotDetail{}, err
	}
	detail := LotDetail{Lot: lot, Pickups: links}
	dispatch, err := s.store.LatestLotDispatch(ctx, lot.ID)
	switch {
	case err == nil:
		detail.Dispatch = &dispatch
	case !isNotFound(err):
		return LotDetail{}, err
	}
	intake, err := s.store.GetRecyclerIntakeByLot(ctx, lot.ID)
	switch {
	case err == nil:
		detail.RecyclerIntake = &intake
	case !isNotFound(err):
		return LotDetail{}, err
	}
	return detail, nil
}

// ListLots lists lots newest first.
func (s *Service) ListLots(ctx context.Context, filter LotFilter) ([]domain.Lot, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalidInput(domain.ErrInvalidStatus)
	}
	filter.Limit = clampLimit(filter.Limit, 50, 200)
	return s.store.ListLots(ctx, filter)
}

// ListAvailableHubIntakes lists a hub's intake records not yet in any lot.
func (s *Service) ListAvailableHubIntakes(ctx context.Context, hubID string) ([]domain.HubIntakeRecord, error) {
	hubID = strings.TrimSpace(hubID)
	if _, err := s.store.GetHub(ctx, hubID); err != nil {
		return nil, missing(err, "HUB_NOT_FOUND", "hub", hubID)
	}
	return s.store.ListAvailableHubIntakes(ctx, hubID)
}

// ListAnomalies lists anomalies newest first. Limit is clamped to [1, 200]
// and defaults to 50.
func (s *Service) ListAnomalies(ctx context.Context, filter AnomalyFilter) ([]domain.Anomaly, error) {
	if filter.Severity != "" && !filter.Severity.Valid() {
		return nil, invalidInput(domain.ErrInvalidSeverity)
	}
	filter.Limit = clampLimit(filter.Limit, 50, 200)
	return s.store.ListAnomalies(ctx, filter)
}

// ListAuditEntries returns an entity's chain oldest first.
func (s *Service) ListAuditEntries(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.AuditEntry, error) {
	entityType, err := domain.ParseEntityType(string(entityType))
	if err != nil {
		return nil, invalidInput(err)
	}
	return s.store.ListAuditEntries(ctx, entityType, strings.TrimSpace(entityID))
}

// VerifyChain re-derives an entity's chain. A broken chain is a result, not
// an error; use ChainVerification.Err to escalate it.
func (s *Service) VerifyChain(ctx context.Context, entityType domain.EntityType, entityID string) (ChainVerification, error) {
	entityType, err := domain.ParseEntityType(string(entityType))
	if err != nil {
		return ChainVerification{}, invalidInput(err)
	}
	out, err := s.Ledger().VerifyChain(ctx, entityType, strings.TrimSpace(entityID))
	if err != nil {
		return ChainVerification{}, err
	}
	s.observer.ChainVerified(entityType, out.OK)
	if !out.OK {
		s.logger.Warn("audit chain integrity violation",
			"entity_type", string(entityType),
			"entity_id", out.EntityID,
			"broken_at", out.BrokenAtEntryID,
		)
	}
	return out, nil
}
