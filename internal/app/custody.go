package app

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/hylla/ewtrail/internal/domain"
	"github.com/shopspring/decimal"
)

// RecordHubIntakeInput holds input values for hub intake operations.
type RecordHubIntakeInput struct {
	PickupID           string
	HubID              string
	FieldCaptainID     string
	MaterialCategoryID string
	KabadiID           string
	WeightKg           decimal.Decimal
	PhotoRef           string
	GeoPoint           string
	Remarks            string
	WeighedAt          time.Time
}

// RecordHubIntake weighs a pickup at its hub, moving it AT_HUB -> WEIGHED.
func (s *Service) RecordHubIntake(ctx context.Context, in RecordHubIntakeInput) (domain.HubIntakeRecord, error) {
	now := s.clock()
	record, err := domain.NewHubIntakeRecord(domain.HubIntakeInput{
		ID:                 s.idGen(),
		PickupID:           in.PickupID,
		HubID:              in.HubID,
		FieldCaptainID:     in.FieldCaptainID,
		MaterialCategoryID: in.MaterialCategoryID,
		KabadiID:           in.KabadiID,
		WeightKg:           in.WeightKg,
		PhotoRef:           in.PhotoRef,
		GeoPoint:           in.GeoPoint,
		Remarks:            in.Remarks,
		WeighedAt:          in.WeighedAt,
	}, now)
	if err != nil {
		return domain.HubIntakeRecord{}, invalidInput(err)
	}

	var pickup domain.Pickup
	err = s.run(ctx, OpRecordHubIntake, func(ctx context.Context, repo Repository) error {
		var err error
		pickup, err = repo.GetPickup(ctx, record.PickupID)
		if err != nil {
			return missing(err, "PICKUP_NOT_FOUND", "pickup", record.PickupID)
		}
		if _, err := repo.GetHub(ctx, record.HubID); err != nil {
			return missing(err, "HUB_NOT_FOUND", "hub", record.HubID)
		}
		if _, err := repo.GetUser(ctx, record.FieldCaptainID); err != nil {
			return missing(err, "FIELD_CAPTAIN_NOT_FOUND", "field captain", record.FieldCaptainID)
		}
		if _, err := repo.GetMaterialCategory(ctx, record.MaterialCategoryID); err != nil {
			return missing(err, "MATERIAL_CATEGORY_NOT_FOUND", "material category", record.MaterialCategoryID)
		}
		if pickup.HubID != record.HubID {
			return newError(ErrMismatch, "PICKUP_HUB_MISMATCH", "pickup does not belong to hub", map[string]any{
				"pickupId":      pickup.ID,
				"expectedHubId": pickup.HubID,
				"actualHubId":   record.HubID,
			})
		}
		from := pickup.Status
		if err := pickup.TransitionTo(domain.PickupStatusWeighed, now); err != nil {
			return transitionFailed(pickup.ID, err)
		}
		if err := repo.UpdatePickup(ctx, pickup); err != nil {
			return err
		}
		if err := repo.CreateHubIntake(ctx, record); err != nil {
			return err
		}
		return s.appendPickupEvent(ctx, repo, pickup.ID, record.FieldCaptainID, domain.AuditActionHubIntakeRecorded, from, pickup.Status, map[string]any{
			"hubIntakeId":        record.ID,
			"hubId":              record.HubID,
			"materialCategoryId": record.MaterialCategoryID,
			"weightKg":           domain.FormatWeightKg(record.WeightKg),
			"photoRef":           record.PhotoRef,
			"weighedAt":          domain.AuditTimestamp(record.WeighedAt),
		})
	})
	if err != nil {
		return domain.HubIntakeRecord{}, err
	}
	s.mirrorPickups(ctx, OpRecordHubIntake, pickup)
	return record, nil
}

// CreateLotInput holds input values for lot creation.
type CreateLotInput struct {
	HubID              string
	RecyclerID         string
	MaterialCategoryID string
	HubIntakeRecordIDs []string
	ActorID            string
}

// LotDetail is a lot with its links and latest transport facts.
type LotDetail struct {
	Lot            domain.Lot
	Pickups        []domain.LotPickup
	Dispatch       *domain.LotDispatch
	RecyclerIntake *domain.RecyclerIntake
}

// CreateLot aggregates weighed intake records into a new lot, moving each
// pickup WEIGHED -> IN_LOT.
func (s *Service) CreateLot(ctx context.Context, in CreateLotInput) (LotDetail, error) {
	in.HubID = strings.TrimSpace(in.HubID)
	in.RecyclerID = strings.TrimSpace(in.RecyclerID)
	in.MaterialCategoryID = strings.TrimSpace(in.MaterialCategoryID)
	intakeIDs := trimIDs(in.HubIntakeRecordIDs)
	if len(intakeIDs) == 0 {
		return LotDetail{}, newError(ErrInvalidInput, "INVALID_INPUT", "at least one hub intake record is required", nil)
	}
	sorted := slices.Clone(intakeIDs)
	slices.Sort(sorted)
	if len(slices.Compact(sorted)) != len(intakeIDs) {
		return LotDetail{}, newError(ErrInvalidInput, "INVALID_INPUT", "duplicate hub intake record id", map[string]any{"hubIntakeIds": intakeIDs})
	}

	now := s.clock()
	var (
		detail  LotDetail
		pickups []domain.Pickup
	)
	err := s.run(ctx, OpCreateLot, func(ctx context.Context, repo Repository) error {
		if _, err := repo.GetHub(ctx, in.HubID); err != nil {
			return missing(err, "HUB_NOT_FOUND", "hub", in.HubID)
		}
		if _, err := repo.GetRecycler(ctx, in.RecyclerID); err != nil {
			return missing(err, "RECYCLER_NOT_FOUND", "recycler", in.RecyclerID)
		}
		if _, err := repo.GetMaterialCategory(ctx, in.MaterialCategoryID); err != nil {
			return missing(err, "MATERIAL_CATEGORY_NOT_FOUND", "material category", in.MaterialCategoryID)
		}

		records := make([]domain.HubIntakeRecord, 0, len(intakeIDs))
		for _, id := range intakeIDs {
			rec, err := repo.GetHubIntake(ctx, id)
			if err != nil {
				return missing(err, "HUB_INTAKE_NOT_FOUND", "hub intake record", id)
			}
			if rec.HubID != in.HubID {
				return newError(ErrMismatch, "HUB_INTAKE_HUB_MISMATCH", "hub intake record belongs to another hub", map[string]any{
					"hubIntakeId":   rec.ID,
					"expectedHubId": in.HubID,
					"actualHubId":   rec.HubID,
				})
			}
			if rec.MaterialCategoryID != in.MaterialCategoryID {
				return newError(ErrMismatch, "HUB_INTAKE_CATEGORY_MISMATCH", "hub intake record has another material category", map[string]any{
					"hubIntakeId":        rec.ID,
					"expectedCategoryId": in.MaterialCategoryID,
					"actualCategoryId":   rec.MaterialCategoryID,
				})
			}
			link, err := repo.GetLotPickupByIntake(ctx, rec.ID)
			switch {
			case err == nil:
				return newError(ErrPreconditionFailed, "HUB_INTAKE_ALREADY_IN_LOT", "hub intake record is already linked to a lot", map[string]any{
					"hubIntakeId": rec.ID,
					"lotId":       link.LotID,
				})
			case !isNotFound(err):
				return err
			}
			records = append(records, rec)
		}

		code := domain.LotCode(in.MaterialCategoryID, now.UTC().Year(), s.codes(5))
		lot, err := domain.NewLot(s.idGen(), code, in.HubID, in.RecyclerID, in.MaterialCategoryID, now)
		if err != nil {
			return invalidInput(err)
		}
		if err := repo.CreateLot(ctx, lot); err != nil {
			return err
		}

		links := make([]domain.LotPickup, 0, len(records))
		pickupIDs := make([]string, 0, len(records))
		pickups = pickups[:0]
		for _, rec := range records {
			pickup, err := repo.GetPickup(ctx, rec.PickupID)
			if err != nil {
				return missing(err, "PICKUP_NOT_FOUND", "pickup", rec.PickupID)
			}
			from := pickup.Status
			if err := pickup.TransitionTo(domain.PickupStatusInLot, now); err != nil {
				return transitionFailed(pickup.ID, err)
			}
			if err := repo.UpdatePickup(ctx, pickup); err != nil {
				return err
			}
			link := domain.LotPickup{
				ID:                s.idGen(),
				LotID:             lot.ID,
				HubIntakeRecordID: rec.ID,
				PickupID:          pickup.ID,
				CreatedAt:         now.UTC(),
			}
			if err := repo.CreateLotPickup(ctx, link); err != nil {
				return err
			}
			if err := s.appendPickupEvent(ctx, repo, pickup.ID, in.ActorID, domain.AuditActionPickupLinkedToLot, from, pickup.Status, map[string]any{
				"lotId":       lot.ID,
				"lotCode":     lot.Code,
				"hubIntakeId": rec.ID,
			}); err != nil {
				return err
			}
			links = append(links, link)
			pickupIDs = append(pickupIDs, pickup.ID)
			pickups = append(pickups, pickup)
		}

		if err := s.appendLotEvent(ctx, repo, lot.ID, in.ActorID, domain.AuditActionLotCreated, map[string]any{
			"lotCode":            lot.Code,
			"hubId":              lot.HubID,
			"recyclerId":         lot.RecyclerID,
			"materialCategoryId": lot.MaterialCategoryID,
			"hubIntakeIds":       intakeIDs,
			"pickupIds":          pickupIDs,
		}); err != nil {
			return err
		}
		detail = LotDetail{Lot: lot, Pickups: links}
		return nil
	})
	if err != nil {
		return LotDetail{}, err
	}
	s.mirrorPickups(ctx, OpCreateLot, pickups...)
	return detail, nil
}

// DispatchLotInput holds input values for lot dispatch.
type DispatchLotInput struct {
	LotID            string
	VehicleNumber    string
	DriverName       string
	DispatchWeightKg decimal.Decimal
	DispatchedAt     time.Time
	DocsRef          string
	ActorID          string
}

// DispatchLot puts a lot in transit, moving each pickup IN_LOT -> LOT_DISPATCHED.
func (s *Service) DispatchLot(ctx context.Context, in DispatchLotInput) (LotDetail, error) {
	now := s.clock()
	dispatch, err := domain.NewLotDispatch(s.idGen(), in.LotID, in.VehicleNumber, in.DriverName, in.DispatchWeightKg, in.DispatchedAt, in.DocsRef, in.ActorID, now)
	if err != nil {
		return LotDetail{}, invalidInput(err)
	}

	var (
		detail  LotDetail
		pickups []domain.Pickup
	)
	err = s.run(ctx, OpDispatchLot, func(ctx context.Context, repo Repository) error {
		lot, err := repo.GetLot(ctx, dispatch.LotID)
		if err != nil {
			return missing(err, "LOT_NOT_FOUND", "lot", dispatch.LotID)
		}
		if err := lot.Dispatch(now); err != nil {
			return newError(ErrPreconditionFailed, "LOT_NOT_DISPATCHABLE", "lot cannot be dispatched from status "+string(lot.Status), map[string]any{
				"lotId":  lot.ID,
				"status": string(lot.Status),
			})
		}
		if err := repo.UpdateLot(ctx, lot); err != nil {
			return err
		}
		if err := repo.CreateLotDispatch(ctx, dispatch); err != nil {
			return err
		}
		links, err := repo.ListLotPickups(ctx, lot.ID)
		if err != nil {
			return err
		}
		pickups = pickups[:0]
		pickupIDs := make([]string, 0, len(links))
		for _, link := range links {
			pickup, err := repo.GetPickup(ctx, link.PickupID)
			if err != nil {
				return missing(err, "PICKUP_NOT_FOUND", "pickup", link.PickupID)
			}
			from := pickup.Status
			if err := pickup.TransitionTo(domain.PickupStatusLotDispatched, now); err != nil {
				return transitionFailed(pickup.ID, err)
			}
			if err := repo.UpdatePickup(ctx, pickup); err != nil {
				return err
			}
			if err := s.appendPickupEvent(ctx, repo, pickup.ID, in.ActorID, domain.AuditActionPickupLotDispatched, from, pickup.Status, map[string]any{
				"lotId":         lot.ID,
				"lotCode":       lot.Code,
				"dispatchId":    dispatch.ID,
				"vehicleNumber": dispatch.VehicleNumber,
			}); err != nil {
				return err
			}
			pickups = append(pickups, pickup)
			pickupIDs = append(pickupIDs, pickup.ID)
		}
		if err := s.appendLotEvent(ctx, repo, lot.ID, in.ActorID, domain.AuditActionLotDispatched, map[string]any{
			"dispatchId":       dispatch.ID,
			"vehicleNumber":    dispatch.VehicleNumber,
			"driverName":       dispatch.DriverName,
			"dispatchWeightKg": domain.FormatWeightKg(dispatch.WeightKg),
			"dispatchedAt":     domain.AuditTimestamp(dispatch.DispatchedAt),
			"docsRef":          dispatch.DocsRef,
			"pickupIds":        pickupIDs,
		}); err != nil {
			return err
		}
		detail = LotDetail{Lot: lot, Pickups: links, Dispatch: &dispatch}
		return nil
	})
	if err != nil {
		return LotDetail{}, err
	}
	s.mirrorPickups(ctx, OpDispatchLot, pickups...)
	return detail, nil
}

// ConfirmRecyclerIntakeInput holds input values for recycler intake confirmation.
type ConfirmRecyclerIntakeInput struct {
	LotID            string
	RecyclerID       string
	ReceivedWeightKg decimal.Decimal
	ReceivedAt       time.Time
	VarianceReason   domain.VarianceReason
	ConfirmedBy      string
	AssayRef         string
}

// RecyclerIntakeResult reports a confirmed arrival and any anomaly it raised.
type RecyclerIntakeResult struct {
	Lot      domain.Lot
	Intake   domain.RecyclerIntake
	Dispatch domain.LotDispatch
	Variance domain.VarianceAssessment
	Anomaly  *domain.Anomaly
}

// ConfirmRecyclerIntake records arrival at the recycler against the latest
// dispatch, moving each pickup LOT_DISPATCHED -> RECYCLED and flagging weight
// variance above the configured threshold.
func (s *Service) ConfirmRecyclerIntake(ctx context.Context, in ConfirmRecyclerIntakeInput) (RecyclerIntakeResult, error) {
	in.LotID = strings.TrimSpace(in.LotID)
	in.RecyclerID = strings.TrimSpace(in.RecyclerID)
	in.ConfirmedBy = strings.TrimSpace(in.ConfirmedBy)
	reason, err := domain.NormalizeVarianceReason(in.VarianceReason)
	if err != nil {
		return RecyclerIntakeResult{}, invalidInput(err)
	}
	if in.ReceivedWeightKg.IsNegative() {
		return RecyclerIntakeResult{}, invalidInput(domain.ErrInvalidWeight)
	}

	now := s.clock()
	var (
		result  RecyclerIntakeResult
		pickups []domain.Pickup
	)
	err = s.run(ctx, OpConfirmRecyclerIntake, func(ctx context.Context, repo Repository) error {
		lot, err := repo.GetLot(ctx, in.LotID)
		if err != nil {
			return missing(err, "LOT_NOT_FOUND", "lot", in.LotID)
		}
		if _, err := repo.GetRecycler(ctx, in.RecyclerID); err != nil {
			return missing(err, "RECYCLER_NOT_FOUND", "recycler", in.RecyclerID)
		}
		if _, err := repo.GetUser(ctx, in.ConfirmedBy); err != nil {
			return missing(err, "USER_NOT_FOUND", "user", in.ConfirmedBy)
		}
		if lot.RecyclerID != in.RecyclerID {
			return newError(ErrMismatch, "LOT_RECYCLER_MISMATCH", "lot is assigned to another recycler", map[string]any{
				"lotId":              lot.ID,
				"expectedRecyclerId": lot.RecyclerID,
				"actualRecyclerId":   in.RecyclerID,
			})
		}
		dispatch, err := repo.LatestLotDispatch(ctx, lot.ID)
		if err != nil {
			if isNotFound(err) {
				return newError(ErrPreconditionFailed, "LOT_NOT_DISPATCHED", "lot has no dispatch record", map[string]any{"lotId": lot.ID})
			}
			return err
		}
		if err := lot.MarkReceived(now); err != nil {
			return newError(ErrPreconditionFailed, "LOT_NOT_IN_TRANSIT", "lot cannot be received from status "+string(lot.Status), map[string]any{
				"lotId":  lot.ID,
				"status": string(lot.Status),
			})
		}

		variance := domain.EvaluateWeightVariance(dispatch.WeightKg, in.ReceivedWeightKg, s.threshold)
		intake, err := domain.NewRecyclerIntake(s.idGen(), lot.ID, in.RecyclerID, in.ReceivedWeightKg, in.ReceivedAt, variance.VarianceKg, reason, in.AssayRef, in.ConfirmedBy, now)
		if err != nil {
			return invalidInput(err)
		}
		if err := repo.CreateRecyclerIntake(ctx, intake); err != nil {
			return err
		}
		if err := repo.UpdateLot(ctx, lot); err != nil {
			return err
		}

		links, err := repo.ListLotPickups(ctx, lot.ID)
		if err != nil {
			return err
		}
		pickups = pickups[:0]
		for _, link := range links {
			pickup, err := repo.GetPickup(ctx, link.PickupID)
			if err != nil {
				return missing(err, "PICKUP_NOT_FOUND", "pickup", link.PickupID)
			}
			from := pickup.Status
			if err := pickup.TransitionTo(domain.PickupStatusRecycled, now); err != nil {
				return transitionFailed(pickup.ID, err)
			}
			if err := repo.UpdatePickup(ctx, pickup); err != nil {
				return err
			}
			if err := s.appendPickupEvent(ctx, repo, pickup.ID, in.ConfirmedBy, domain.AuditActionPickupRecycled, from, pickup.Status, map[string]any{
				"lotId":            lot.ID,
				"lotCode":          lot.Code,
				"recyclerIntakeId": intake.ID,
			}); err != nil {
				return err
			}
			pickups = append(pickups, pickup)
		}

		if err := s.appendLotEvent(ctx, repo, lot.ID, in.ConfirmedBy, domain.AuditActionRecyclerIntakeConfirmed, map[string]any{
			"intakeId":          intake.ID,
			"recyclerId":        intake.RecyclerID,
			"dispatchId":        dispatch.ID,
			"dispatchWeightKg":  domain.FormatWeightKg(dispatch.WeightKg),
			"receivedWeightKg":  domain.FormatWeightKg(intake.ReceivedWeightKg),
			"weightVarianceKg":  domain.FormatWeightKg(variance.VarianceKg),
			"weightVariancePct": percentNumber(variance.VariancePct),
			"varianceReason":    string(intake.VarianceReason),
			"assayRef":          intake.AssayRef,
		}); err != nil {
			return err
		}

		result = RecyclerIntakeResult{Lot: lot, Intake: intake, Dispatch: dispatch, Variance: variance}
		if !variance.Flagged() {
			return nil
		}
		anomaly := domain.Anomaly{
			ID:         s.idGen(),
			EntityType: domain.EntityTypeLot,
			EntityID:   lot.ID,
			Type:       domain.AnomalyTypeWeightVariance,
			Severity:   variance.Severity,
			Payload: map[string]any{
				"lotId":            lot.ID,
				"lotCode":          lot.Code,
				"dispatchWeightKg": domain.FormatWeightKg(dispatch.WeightKg),
				"receivedWeightKg": domain.FormatWeightKg(intake.ReceivedWeightKg),
				"varianceKg":       domain.FormatWeightKg(variance.VarianceKg),
				"variancePct":      percentNumber(variance.VariancePct),
				"thresholdPct":     percentNumber(variance.ThresholdPct),
				"varianceReason":   string(intake.VarianceReason),
				"recyclerId":       intake.RecyclerID,
			},
			CreatedAt: now.UTC(),
		}
		if err := repo.CreateAnomaly(ctx, anomaly); err != nil {
			return err
		}
		if err := s.appendLotEvent(ctx, repo, lot.ID, in.ConfirmedBy, domain.AuditActionWeightAnomalyFlagged, map[string]any{
			"anomalyId":    anomaly.ID,
			"severity":     string(anomaly.Severity),
			"varianceKg":   domain.FormatWeightKg(variance.VarianceKg),
			"variancePct":  percentNumber(variance.VariancePct),
			"thresholdPct": percentNumber(variance.ThresholdPct),
		}); err != nil {
			return err
		}
		result.Anomaly = &anomaly
		return nil
	})
	if err != nil {
		return RecyclerIntakeResult{}, err
	}
	if result.Anomaly != nil {
		s.observer.AnomalyFlagged(result.Anomaly.Severity)
		s.logger.Warn("weight variance anomaly flagged",
			"lot_id", result.Lot.ID,
			"severity", string(result.Anomaly.Severity),
			"variance_kg", domain.FormatWeightKg(result.Variance.VarianceKg),
		)
	}
	s.mirrorPickups(ctx, OpConfirmRecyclerIntake, pickups...)
	return result, nil
}

// percentNumber renders a fraction as a JSON number in percent with two decimals.
func percentNumber(fraction decimal.Decimal) json.Number {
	return json.Number(fraction.Mul(decimal.NewFromInt(100)).Round(2).String())
}
