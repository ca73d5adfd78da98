package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HubIntakeRecord is the immutable fact of one weigh-in at a hub.
type HubIntakeRecord struct {
	ID                 string
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
	CreatedAt          time.Time
}

// HubIntakeInput holds values used to construct a hub intake record.
type HubIntakeInput struct {
	ID                 string
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

// NewHubIntakeRecord validates and constructs a hub intake record.
func NewHubIntakeRecord(in HubIntakeInput, now time.Time) (HubIntakeRecord, error) {
	for _, id := range []string{in.ID, in.PickupID, in.HubID, in.FieldCaptainID, in.MaterialCategoryID} {
		if strings.TrimSpace(id) == "" {
			return HubIntakeRecord{}, ErrInvalidID
		}
	}
	weight, err := requirePositiveWeight(in.WeightKg)
	if err != nil {
		return HubIntakeRecord{}, err
	}
	photo := strings.TrimSpace(in.PhotoRef)
	if photo == "" {
		return HubIntakeRecord{}, ErrInvalidPhotoRef
	}
	weighedAt := in.WeighedAt
	if weighedAt.IsZero() {
		weighedAt = now
	}
	return HubIntakeRecord{
		ID:                 strings.TrimSpace(in.ID),
		PickupID:           strings.TrimSpace(in.PickupID),
		HubID:              strings.TrimSpace(in.HubID),
		FieldCaptainID:     strings.TrimSpace(in.FieldCaptainID),
		MaterialCategoryID: strings.TrimSpace(in.MaterialCategoryID),
		KabadiID:           strings.TrimSpace(in.KabadiID),
		WeightKg:           weight,
		PhotoRef:           photo,
		GeoPoint:           strings.TrimSpace(in.GeoPoint),
		Remarks:            strings.TrimSpace(in.Remarks),
		WeighedAt:          weighedAt.UTC(),
		CreatedAt:          now.UTC(),
	}, nil
}

// LotStatus is the transport lifecycle state of a lot.
type LotStatus string

// LotStatus values.
const (
	LotStatusCreated            LotStatus = "CREATED"
	LotStatusReadyForDispatch   LotStatus = "READY_FOR_DISPATCH"
	LotStatusInTransit          LotStatus = "IN_TRANSIT"
	LotStatusReceivedAtRecycler LotStatus = "RECEIVED_AT_RECYCLER"
	LotStatusClosed             LotStatus = "CLOSED"
)

var validLotStatuses = []LotStatus{
	LotStatusCreated,
	LotStatusReadyForDispatch,
	LotStatusInTransit,
	LotStatusReceivedAtRecycler,
	LotStatusClosed,
}

// Valid reports whether the lot status is declared.
func (s LotStatus) Valid() bool {
	return slices.Contains(validLotStatuses, s)
}

// Lot aggregates hub intake records bound for one recycler.
type Lot struct {
	ID                 string
	Code               string
	HubID              string
	RecyclerID         string
	MaterialCategoryID string
	Status             LotStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewLot constructs a lot in the CREATED status.
func NewLot(id, code, hubID, recyclerID, categoryID string, now time.Time) (Lot, error) {
	for _, v := range []string{id, code, hubID, recyclerID, categoryID} {
		if strings.TrimSpace(v) == "" {
			return Lot{}, ErrInvalidID
		}
	}
	return Lot{
		ID:                 strings.TrimSpace(id),
		Code:               strings.TrimSpace(code),
		HubID:              strings.TrimSpace(hubID),
		RecyclerID:         strings.TrimSpace(recyclerID),
		MaterialCategoryID: strings.TrimSpace(categoryID),
		Status:             LotStatusCreated,
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}, nil
}

// Dispatchable reports whether a dispatch may be recorded for the lot.
func (l Lot) Dispatchable() bool {
	return l.Status == LotStatusCreated || l.Status == LotStatusReadyForDispatch
}

// Dispatch moves the lot into transit.
func (l *Lot) Dispatch(now time.Time) error {
	if !l.Dispatchable() {
		return ErrLotNotDispatchable
	}
	l.Status = LotStatusInTransit
	l.UpdatedAt = now.UTC()
	return nil
}

// MarkReceived records arrival at the recycler.
func (l *Lot) MarkReceived(now time.Time) error {
	if l.Status != LotStatusInTransit {
		return ErrLotNotInTransit
	}
	l.Status = LotStatusReceivedAtRecycler
	l.UpdatedAt = now.UTC()
	return nil
}

// LotPickup links one hub intake record, and its pickup, to a lot.
type LotPickup struct {
	ID                string
	LotID             string
	HubIntakeRecordID string
	PickupID          string
	CreatedAt         time.Time
}

// LotDispatch records a lot leaving its hub.
type LotDispatch struct {
	ID            string
	LotID         string
	VehicleNumber string
	DriverName    string
	WeightKg      decimal.Decimal
	DispatchedAt  time.Time
	DocsRef       string
	DispatchedBy  string
	CreatedAt     time.Time
}

// NewLotDispatch validates and constructs a dispatch record.
func NewLotDispatch(id, lotID, vehicle, driver string, weight decimal.Decimal, dispatchedAt time.Time, docsRef, dispatchedBy string, now time.Time) (LotDispatch, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(lotID) == "" {
		return LotDispatch{}, ErrInvalidID
	}
	vehicle, driver = strings.TrimSpace(vehicle), strings.TrimSpace(driver)
	if vehicle == "" || driver == "" {
		return LotDispatch{}, ErrInvalidVehicle
	}
	w, err := requirePositiveWeight(weight)
	if err != nil {
		return LotDispatch{}, err
	}
	if dispatchedAt.IsZero() {
		dispatchedAt = now
	}
	return LotDispatch{
		ID:            strings.TrimSpace(id),
		LotID:         strings.TrimSpace(lotID),
		VehicleNumber: vehicle,
		DriverName:    driver,
		WeightKg:      w,
		DispatchedAt:  dispatchedAt.UTC(),
		DocsRef:       strings.TrimSpace(docsRef),
		DispatchedBy:  strings.TrimSpace(dispatchedBy),
		CreatedAt:     now.UTC(),
	}, nil
}

// VarianceReason explains a recorded weight difference.
type VarianceReason string

// VarianceReason values.
const (
	VarianceReasonNormalLoss     VarianceReason = "NORMAL_LOSS"
	VarianceReasonScaleDiff      VarianceReason = "SCALE_DIFF"
	VarianceReasonSuspectedFraud VarianceReason = "SUSPECTED_FRAUD"
	VarianceReasonOther          VarianceReason = "OTHER"
)

var validVarianceReasons = []VarianceReason{
	VarianceReasonNormalLoss,
	VarianceReasonScaleDiff,
	VarianceReasonSuspectedFraud,
	VarianceReasonOther,
}

// NormalizeVarianceReason defaults an empty reason to NORMAL_LOSS and rejects unknown values.
func NormalizeVarianceReason(r VarianceReason) (VarianceReason, error) {
	r = VarianceReason(strings.ToUpper(strings.TrimSpace(string(r))))
	if r == "" {
		return VarianceReasonNormalLoss, nil
	}
	if !slices.Contains(validVarianceReasons, r) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVarianceReason, r)
	}
	return r, nil
}

// RecyclerIntake records a recycler confirming receipt of a lot.
type RecyclerIntake struct {
	ID               string
	LotID            string
	RecyclerID       string
	ReceivedWeightKg decimal.Decimal
	ReceivedAt       time.Time
	VarianceKg       decimal.Decimal
	VarianceReason   VarianceReason
	AssayRef         string
	ConfirmedBy      string
	CreatedAt        time.Time
}

// NewRecyclerIntake validates and constructs a recycler intake.
func NewRecyclerIntake(id, lotID, recyclerID string, received decimal.Decimal, receivedAt time.Time, variance decimal.Decimal, reason VarianceReason, assayRef, confirmedBy string, now time.Time) (RecyclerIntake, error) {
	for _, v := range []string{id, lotID, recyclerID, confirmedBy} {
		if strings.TrimSpace(v) == "" {
			return RecyclerIntake{}, ErrInvalidID
		}
	}
	if received.IsNegative() {
		return RecyclerIntake{}, ErrInvalidWeight
	}
	reason, err := NormalizeVarianceReason(reason)
	if err != nil {
		return RecyclerIntake{}, err
	}
	if receivedAt.IsZero() {
		receivedAt = now
	}
	return RecyclerIntake{
		ID:               strings.TrimSpace(id),
		LotID:            strings.TrimSpace(lotID),
		RecyclerID:       strings.TrimSpace(recyclerID),
		ReceivedWeightKg: received.Round(WeightScale),
		ReceivedAt:       receivedAt.UTC(),
		VarianceKg:       variance.Round(WeightScale),
		VarianceReason:   reason,
		AssayRef:         strings.TrimSpace(assayRef),
		ConfirmedBy:      strings.TrimSpace(confirmedBy),
		CreatedAt:        now.UTC(),
	}, nil
}

// PickupCode renders a pickup code like EW-2026-004211.
func PickupCode(year int, suffix string) string {
	return fmt.Sprintf("EW-%d-%s", year, suffix)
}

// LotCode renders a lot code like LOT-LAPT-2026-00042 from the category id.
func LotCode(categoryID string, year int, suffix string) string {
	prefix := strings.TrimSpace(categoryID)
	if r := []rune(prefix); len(r) > 4 {
		prefix = string(r[:4])
	}
	return fmt.Sprintf("LOT-%s-%d-%s", strings.ToUpper(prefix), year, suffix)
}
