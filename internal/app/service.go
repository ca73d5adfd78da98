package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/hylla/ewtrail/internal/domain"
	"github.com/shopspring/decimal"
)

// Operation names reported to the Observer.
const (
	OpCreatePickup                = "create_pickup"
	OpCreatePickupFromSellRequest = "create_pickup_from_sell_request"
	OpUpdatePickupStatus          = "update_pickup_status"
	OpRecordHubIntake             = "record_hub_intake"
	OpCreateLot                   = "create_lot"
	OpDispatchLot                 = "dispatch_lot"
	OpConfirmRecyclerIntake       = "confirm_recycler_intake"
	OpGenerateEprCredit           = "generate_epr_credit"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	// WeightVarianceThreshold is the tolerated fraction of dispatch weight.
	// Zero selects domain.DefaultWeightVarianceThreshold.
	WeightVarianceThreshold decimal.Decimal
	Codes                   CodeGenerator
	Observer                Observer
	Logger                  Logger
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// CodeGenerator returns a zero-padded numeric suffix with the given digit count.
type CodeGenerator func(digits int) string

// RandomDigits is the default CodeGenerator.
func RandomDigits(digits int) string {
	if digits <= 0 {
		return ""
	}
	limit := 1
	for range digits {
		limit *= 10
	}
	return fmt.Sprintf("%0*d", digits, rand.IntN(limit))
}

// Service sequences custody operations over a transactional store.
type Service struct {
	store     Store
	idGen     IDGenerator
	clock     Clock
	codes     CodeGenerator
	threshold decimal.Decimal
	observer  Observer
	logger    Logger
}

// NewService constructs a new value for this package.
func NewService(store Store, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Codes == nil {
		cfg.Codes = RandomDigits
	}
	if !cfg.WeightVarianceThreshold.IsPositive() {
		cfg.WeightVarianceThreshold = domain.DefaultWeightVarianceThreshold
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &Service{
		store:     store,
		idGen:     idGen,
		clock:     clock,
		codes:     cfg.Codes,
		threshold: cfg.WeightVarianceThreshold,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
	}
}

// WeightVarianceThreshold returns the configured tolerance fraction.
func (s *Service) WeightVarianceThreshold() decimal.Decimal {
	return s.threshold
}

// Ledger returns a ledger reading and writing outside any unit of work.
func (s *Service) Ledger() *Ledger {
	return s.ledger(s.store)
}

func (s *Service) ledger(store AuditStore) *Ledger {
	return NewLedger(store, s.idGen, s.clock)
}

// run executes fn as one unit of work and reports its outcome.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, repo Repository) error) error {
	err := s.store.WithinTx(ctx, fn)
	s.observer.OperationCompleted(op, err)
	return err
}

// mirrorPickups updates sell requests after a committed custody change. The
// mirror is reporting-only, so failures are logged and counted, not returned.
func (s *Service) mirrorPickups(ctx context.Context, op string, pickups ...domain.Pickup) {
	for _, p := range pickups {
		if err := s.mirrorPickup(ctx, p); err != nil {
			s.observer.MirrorSyncFailed(op)
			s.logger.Warn("sell request mirror update failed", "operation", op, "pickup_id", p.ID, "err", err)
		}
	}
}

func (s *Service) mirrorPickup(ctx context.Context, p domain.Pickup) error {
	status, ok := domain.MirrorStatus(p.Status)
	if !ok {
		return nil
	}
	req, err := s.store.GetSellRequestByPickup(ctx, p.ID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if req.Status == status {
		return nil
	}
	req.Status = status
	req.UpdatedAt = s.clock().UTC()
	return s.store.UpdateSellRequest(ctx, req)
}

// appendPickupEvent appends one pickup-scoped entry describing a status change.
func (s *Service) appendPickupEvent(ctx context.Context, repo Repository, pickupID, actorID string, action domain.AuditAction, from, to domain.PickupStatus, extra map[string]any) error {
	payload := map[string]any{
		"action":     string(action),
		"fromStatus": string(from),
		"toStatus":   string(to),
	}
	for k, v := range extra {
		payload[k] = v
	}
	_, err := s.ledger(repo).Append(ctx, AuditAppend{
		EntityType: domain.EntityTypePickup,
		EntityID:   pickupID,
		ActorID:    actorID,
		Payload:    payload,
	})
	return err
}

func (s *Service) appendLotEvent(ctx context.Context, repo Repository, lotID, actorID string, action domain.AuditAction, extra map[string]any) error {
	payload := map[string]any{"action": string(action)}
	for k, v := range extra {
		payload[k] = v
	}
	_, err := s.ledger(repo).Append(ctx, AuditAppend{
		EntityType: domain.EntityTypeLot,
		EntityID:   lotID,
		ActorID:    actorID,
		Payload:    payload,
	})
	return err
}

func clampLimit(limit, fallback, ceiling int) int {
	switch {
	case limit <= 0:
		return fallback
	case limit > ceiling:
		return ceiling
	default:
		return limit
	}
}

func trimIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
