package app

import (
	"context"
	"slices"
	"strings"

	"github.com/hylla/ewtrail/internal/domain"
)

// manualPickupStatuses are the targets an operator may set directly. Every
// later stage is owned by a custody operation that records its own facts.
var manualPickupStatuses = []domain.PickupStatus{
	domain.PickupStatusScheduled,
	domain.PickupStatusAssigned,
	domain.PickupStatusInCollection,
	domain.PickupStatusAtHub,
	domain.PickupStatusCancelled,
}

// CreatePickupInput holds input values for pickup creation.
type CreatePickupInput struct {
	CitizenID         string
	HubID             string
	PrimaryCategoryID string
	SourceChannel     domain.SourceChannel
	Notes             string
	ActorID           string
}

// CreatePickup registers a pickup in the NEW status.
func (s *Service) CreatePickup(ctx context.Context, in CreatePickupInput) (domain.Pickup, error) {
	now := s.clock()
	pickup, err := domain.NewPickup(domain.PickupInput{
		ID:                s.idGen(),
		Code:              domain.PickupCode(now.UTC().Year(), s.codes(6)),
		CitizenID:         in.CitizenID,
		HubID:             in.HubID,
		PrimaryCategoryID: in.PrimaryCategoryID,
		SourceChannel:     in.SourceChannel,
		Notes:             in.Notes,
	}, now)
	if err != nil {
		return domain.Pickup{}, invalidInput(err)
	}
	err = s.run(ctx, OpCreatePickup, func(ctx context.Context, repo Repository) error {
		if err := s.createPickup(ctx, repo, pickup); err != nil {
			return err
		}
		return s.appendPickupEvent(ctx, repo, pickup.ID, in.ActorID, domain.AuditActionPickupCreated, "", pickup.Status, map[string]any{
			"code":          pickup.Code,
			"hubId":         pickup.HubID,
			"citizenId":     pickup.CitizenID,
			"categoryId":    pickup.PrimaryCategoryID,
			"sourceChannel": string(pickup.SourceChannel),
		})
	})
	if err != nil {
		return domain.Pickup{}, err
	}
	return pickup, nil
}

func (s *Service) createPickup(ctx context.Context, repo Repository, pickup domain.Pickup) error {
	if _, err := repo.GetHub(ctx, pickup.HubID); err != nil {
		return missing(err, "HUB_NOT_FOUND", "hub", pickup.HubID)
	}
	if _, err := repo.GetMaterialCategory(ctx, pickup.PrimaryCategoryID); err != nil {
		return missing(err, "MATERIAL_CATEGORY_NOT_FOUND", "material category", pickup.PrimaryCategoryID)
	}
	return repo.CreatePickup(ctx, pickup)
}

// OpenSellRequestInput holds input values for a citizen sell request.
type OpenSellRequestInput struct {
	CitizenID string
	Notes     string
}

// OpenSellRequest records a citizen's request to sell e-waste.
func (s *Service) OpenSellRequest(ctx context.Context, in OpenSellRequestInput) (domain.SellRequest, error) {
	req, err := domain.NewSellRequest(s.idGen(), in.CitizenID, in.Notes, s.clock())
	if err != nil {
		return domain.SellRequest{}, invalidInput(err)
	}
	if err := s.store.CreateSellRequest(ctx, req); err != nil {
		return domain.SellRequest{}, err
	}
	return req, nil
}

// CreatePickupFromSellRequestInput holds input values for converting a sell request.
type CreatePickupFromSellRequestInput struct {
	SellRequestID     string
	HubID             string
	PrimaryCategoryID string
	ActorID           string
}

// CreatePickupFromSellRequest schedules a pickup for an OPEN sell request.
func (s *Service) CreatePickupFromSellRequest(ctx context.Context, in CreatePickupFromSellRequestInput) (domain.Pickup, error) {
	now := s.clock()
	id := strings.TrimSpace(in.SellRequestID)
	var pickup domain.Pickup
	err := s.run(ctx, OpCreatePickupFromSellRequest, func(ctx context.Context, repo Repository) error {
		req, err := repo.GetSellRequest(ctx, id)
		if err != nil {
			return missing(err, "SELL_REQUEST_NOT_FOUND", "sell request", id)
		}
		if req.Status != domain.SellRequestStatusOpen || req.PickupID != "" {
			return newError(ErrPreconditionFailed, "SELL_REQUEST_NOT_OPEN", "sell request is not open", map[string]any{
				"sellRequestId": req.ID,
				"status":        string(req.Status),
			})
		}
		pickup, err = domain.NewPickup(domain.PickupInput{
			ID:                s.idGen(),
			Code:              domain.PickupCode(now.UTC().Year(), s.codes(6)),
			CitizenID:         req.CitizenID,
			HubID:             in.HubID,
			PrimaryCategoryID: in.PrimaryCategoryID,
			SourceChannel:     domain.SourceChannelWeb,
			Notes:             req.Notes,
		}, now)
		if err != nil {
			return invalidInput(err)
		}
		if err := pickup.TransitionTo(domain.PickupStatusScheduled, now); err != nil {
			return transitionFailed(pickup.ID, err)
		}
		if err := s.createPickup(ctx, repo, pickup); err != nil {
			return err
		}
		req.PickupID = pickup.ID
		req.Status = domain.SellRequestStatusPickupScheduled
		req.UpdatedAt = now.UTC()
		if err := repo.UpdateSellRequest(ctx, req); err != nil {
			return err
		}
		return s.appendPickupEvent(ctx, repo, pickup.ID, in.ActorID, domain.AuditActionPickupCreated, "", pickup.Status, map[string]any{
			"code":          pickup.Code,
			"hubId":         pickup.HubID,
			"citizenId":     pickup.CitizenID,
			"categoryId":    pickup.PrimaryCategoryID,
			"sourceChannel": string(pickup.SourceChannel),
			"sellRequestId": req.ID,
		})
	})
	if err != nil {
		return domain.Pickup{}, err
	}
	return pickup, nil
}

// UpdatePickupStatusInput holds input values for manual status changes.
type UpdatePickupStatusInput struct {
	PickupID string
	Status   domain.PickupStatus
	ActorID  string
	Reason   string
}

// UpdatePickupStatus applies an operator-driven transition up to AT_HUB, or
// a cancellation.
func (s *Service) UpdatePickupStatus(ctx context.Context, in UpdatePickupStatusInput) (domain.Pickup, error) {
	to, err := domain.ParsePickupStatus(string(in.Status))
	if err != nil {
		return domain.Pickup{}, invalidInput(err)
	}
	if !slices.Contains(manualPickupStatuses, to) {
		return domain.Pickup{}, newError(ErrPreconditionFailed, "PICKUP_STATUS_WORKFLOW_OWNED", "status "+string(to)+" is set by custody operations only", map[string]any{
			"pickupId": in.PickupID,
			"to":       string(to),
		})
	}
	now := s.clock()
	id := strings.TrimSpace(in.PickupID)
	var pickup domain.Pickup
	err = s.run(ctx, OpUpdatePickupStatus, func(ctx context.Context, repo Repository) error {
		var err error
		pickup, err = repo.GetPickup(ctx, id)
		if err != nil {
			return missing(err, "PICKUP_NOT_FOUND", "pickup", id)
		}
		from := pickup.Status
		if err := pickup.TransitionTo(to, now); err != nil {
			return transitionFailed(pickup.ID, err)
		}
		if err := repo.UpdatePickup(ctx, pickup); err != nil {
			return err
		}
		extra := map[string]any{}
		if reason := strings.TrimSpace(in.Reason); reason != "" {
			extra["reason"] = reason
		}
		return s.appendPickupEvent(ctx, repo, pickup.ID, in.ActorID, domain.AuditActionPickupStatusUpdated, from, pickup.Status, extra)
	})
	if err != nil {
		return domain.Pickup{}, err
	}
	s.mirrorPickups(ctx, OpUpdatePickupStatus, pickup)
	return pickup, nil
}

// GetPickup returns one pickup.
func (s *Service) GetPickup(ctx context.Context, id string) (domain.Pickup, error) {
	id = strings.TrimSpace(id)
	pickup, err := s.store.GetPickup(ctx, id)
	if err != nil {
		return domain.Pickup{}, missing(err, "PICKUP_NOT_FOUND", "pickup", id)
	}
	return pickup, nil
}

// ListPickups lists pickups newest first.
func (s *Service) ListPickups(ctx context.Context, filter PickupFilter) ([]domain.Pickup, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalidInput(domain.ErrInvalidStatus)
	}
	filter.Limit = clampLimit(filter.Limit, 50, 200)
	return s.store.ListPickups(ctx, filter)
}
