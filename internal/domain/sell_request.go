package domain

import (
	"strings"
	"time"
)

// SellRequestStatus is the citizen-facing summary of a pickup.
type SellRequestStatus string

// SellRequestStatus values.
const (
	SellRequestStatusOpen            SellRequestStatus = "OPEN"
	SellRequestStatusPickupScheduled SellRequestStatus = "PICKUP_SCHEDULED"
	SellRequestStatusCollected       SellRequestStatus = "COLLECTED"
	SellRequestStatusAtHub           SellRequestStatus = "AT_HUB"
	SellRequestStatusWeighed         SellRequestStatus = "WEIGHED"
	SellRequestStatusInLot           SellRequestStatus = "IN_LOT"
	SellRequestStatusRecycled        SellRequestStatus = "RECYCLED"
	SellRequestStatusCancelled       SellRequestStatus = "CANCELLED"
)

// SellRequest is a reporting-only mirror of a pickup's progress.
type SellRequest struct {
	ID        string
	CitizenID string
	PickupID  string
	Status    SellRequestStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSellRequest constructs an OPEN sell request.
func NewSellRequest(id, citizenID, notes string, now time.Time) (SellRequest, error) {
	id, citizenID = strings.TrimSpace(id), strings.TrimSpace(citizenID)
	if id == "" || citizenID == "" {
		return SellRequest{}, ErrInvalidID
	}
	return SellRequest{
		ID:        id,
		CitizenID: citizenID,
		Status:    SellRequestStatusOpen,
		Notes:     strings.TrimSpace(notes),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// MirrorStatus maps a pickup status onto the sell request summary. The second
// result is false for pickup states with no citizen-facing counterpart.
func MirrorStatus(status PickupStatus) (SellRequestStatus, bool) {
	switch status {
	case PickupStatusScheduled, PickupStatusAssigned:
		return SellRequestStatusPickupScheduled, true
	case PickupStatusInCollection:
		return SellRequestStatusCollected, true
	case PickupStatusAtHub:
		return SellRequestStatusAtHub, true
	case PickupStatusWeighed:
		return SellRequestStatusWeighed, true
	case PickupStatusInLot, PickupStatusLotDispatched:
		return SellRequestStatusInLot, true
	case PickupStatusRecycled:
		return SellRequestStatusRecycled, true
	case PickupStatusCancelled:
		return SellRequestStatusCancelled, true
	default:
		return "", false
	}
}
