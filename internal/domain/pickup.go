package domain

import (
	"slices"
	"strings"
	"time"
)

// SourceChannel identifies how a pickup request reached the system.
type SourceChannel string

// SourceChannel values.
const (
	SourceChannelWeb      SourceChannel = "WEB"
	SourceChannelWhatsApp SourceChannel = "WHATSAPP"
	SourceChannelField    SourceChannel = "FIELD"
)

var validSourceChannels = []SourceChannel{SourceChannelWeb, SourceChannelWhatsApp, SourceChannelField}

// Pickup is the custody item tracked from collection to recycling.
type Pickup struct {
	ID                string
	Code              string
	CitizenID         string
	HubID             string
	PrimaryCategoryID string
	SourceChannel     SourceChannel
	Status            PickupStatus
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PickupInput holds values used to construct a pickup.
type PickupInput struct {
	ID                string
	Code              string
	CitizenID         string
	HubID             string
	PrimaryCategoryID string
	SourceChannel     SourceChannel
	Notes             string
}

// NewPickup constructs a pickup in the NEW status.
func NewPickup(in PickupInput, now time.Time) (Pickup, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Code = strings.TrimSpace(in.Code)
	in.HubID = strings.TrimSpace(in.HubID)
	in.PrimaryCategoryID = strings.TrimSpace(in.PrimaryCategoryID)
	if in.ID == "" || in.Code == "" || in.HubID == "" || in.PrimaryCategoryID == "" {
		return Pickup{}, ErrInvalidID
	}
	if in.SourceChannel == "" {
		in.SourceChannel = SourceChannelWeb
	}
	if !slices.Contains(validSourceChannels, in.SourceChannel) {
		return Pickup{}, ErrInvalidSourceChannel
	}
	return Pickup{
		ID:                in.ID,
		Code:              in.Code,
		CitizenID:         strings.TrimSpace(in.CitizenID),
		HubID:             in.HubID,
		PrimaryCategoryID: in.PrimaryCategoryID,
		SourceChannel:     in.SourceChannel,
		Status:            PickupStatusNew,
		Notes:             strings.TrimSpace(in.Notes),
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}, nil
}

// TransitionTo moves the pickup along one validator edge.
func (p *Pickup) TransitionTo(to PickupStatus, now time.Time) error {
	if err := AssertTransition(p.Status, to); err != nil {
		return err
	}
	p.Status = to
	p.UpdatedAt = now.UTC()
	return nil
}
