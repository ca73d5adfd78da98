package domain

import (
	"fmt"
	"slices"
)

// PickupStatus is the custody lifecycle state of a pickup.
type PickupStatus string

// PickupStatus values, in custody order.
const (
	PickupStatusNew           PickupStatus = "NEW"
	PickupStatusScheduled     PickupStatus = "SCHEDULED"
	PickupStatusAssigned      PickupStatus = "ASSIGNED"
	PickupStatusInCollection  PickupStatus = "IN_COLLECTION"
	PickupStatusAtHub         PickupStatus = "AT_HUB"
	PickupStatusWeighed       PickupStatus = "WEIGHED"
	PickupStatusInLot         PickupStatus = "IN_LOT"
	PickupStatusLotDispatched PickupStatus = "LOT_DISPATCHED"
	PickupStatusRecycled      PickupStatus = "RECYCLED"
	PickupStatusCancelled     PickupStatus = "CANCELLED"
)

// pickupTransitions is the complete adjacency table. Every status has a row;
// terminal statuses map to nil. Past AT_HUB the pipeline is linear and a
// weighed pickup can no longer be cancelled.
var pickupTransitions = map[PickupStatus][]PickupStatus{
	PickupStatusNew:           {PickupStatusScheduled, PickupStatusCancelled},
	PickupStatusScheduled:     {PickupStatusAssigned, PickupStatusCancelled},
	PickupStatusAssigned:      {PickupStatusInCollection, PickupStatusCancelled},
	PickupStatusInCollection:  {PickupStatusAtHub, PickupStatusCancelled},
	PickupStatusAtHub:         {PickupStatusWeighed},
	PickupStatusWeighed:       {PickupStatusInLot},
	PickupStatusInLot:         {PickupStatusLotDispatched},
	PickupStatusLotDispatched: {PickupStatusRecycled},
	PickupStatusRecycled:      nil,
	PickupStatusCancelled:     nil,
}

// PickupStatuses returns every declared status in custody order.
func PickupStatuses() []PickupStatus {
	return []PickupStatus{
		PickupStatusNew,
		PickupStatusScheduled,
		PickupStatusAssigned,
		PickupStatusInCollection,
		PickupStatusAtHub,
		PickupStatusWeighed,
		PickupStatusInLot,
		PickupStatusLotDispatched,
		PickupStatusRecycled,
		PickupStatusCancelled,
	}
}

// Valid reports whether the status is one of the declared values.
func (s PickupStatus) Valid() bool {
	_, ok := pickupTransitions[s]
	return ok
}

// Terminal reports whether the status has no outgoing edges.
func (s PickupStatus) Terminal() bool {
	next, ok := pickupTransitions[s]
	return ok && len(next) == 0
}

// NextStatuses returns the statuses reachable in one step from s.
func (s PickupStatus) NextStatuses() []PickupStatus {
	return slices.Clone(pickupTransitions[s])
}

// ParsePickupStatus validates a raw status value.
func ParsePickupStatus(raw string) (PickupStatus, error) {
	status := PickupStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// TransitionError reports a rejected pickup status change.
type TransitionError struct {
	From PickupStatus
	To   PickupStatus
}

// Error implements error.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid pickup transition %s -> %s", e.From, e.To)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// CanTransition reports whether from -> to is a permitted edge.
func CanTransition(from, to PickupStatus) bool {
	return slices.Contains(pickupTransitions[from], to)
}

// AssertTransition returns a *TransitionError unless from -> to is permitted.
func AssertTransition(from, to PickupStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
