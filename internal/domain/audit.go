package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// EntityType names the kind of entity an audit chain belongs to.
type EntityType string

// EntityType values written by the custody workflow.
const (
	EntityTypePickup EntityType = "pickup"
	EntityTypeLot    EntityType = "lot"
)

// AuditAction names the event described by an audit payload.
type AuditAction string

// AuditAction values.
const (
	AuditActionPickupCreated           AuditAction = "PICKUP_CREATED"
	AuditActionPickupStatusUpdated     AuditAction = "PICKUP_STATUS_UPDATED"
	AuditActionHubIntakeRecorded       AuditAction = "HUB_INTAKE_RECORDED"
	AuditActionPickupLinkedToLot       AuditAction = "PICKUP_LINKED_TO_LOT"
	AuditActionLotCreated              AuditAction = "LOT_CREATED"
	AuditActionPickupLotDispatched     AuditAction = "PICKUP_LOT_DISPATCHED"
	AuditActionLotDispatched           AuditAction = "LOT_DISPATCHED"
	AuditActionPickupRecycled          AuditAction = "PICKUP_RECYCLED"
	AuditActionRecyclerIntakeConfirmed AuditAction = "RECYCLER_INTAKE_CONFIRMED"
	AuditActionWeightAnomalyFlagged    AuditAction = "WEIGHT_ANOMALY_FLAGGED"
	AuditActionEprCreditGenerated      AuditAction = "EPR_CREDIT_GENERATED"
)

// SystemActor stands in for a missing actor in the hash input.
const SystemActor = "SYSTEM"

// auditTimeLayout matches ISO-8601 with millisecond precision in UTC.
const auditTimeLayout = "2006-01-02T15:04:05.000Z"

// AuditEntry is one link of an entity-scoped hash chain.
type AuditEntry struct {
	ID         string
	Seq        int64
	EntityType EntityType
	EntityID   string
	PrevHash   string
	Hash       string
	Payload    map[string]any
	// RawPayload is the payload text as stored. It is empty for entries
	// built in memory, and Payload is nil when the text does not decode.
	RawPayload string
	ActorID    string
	CreatedAt  time.Time
}

// ParseEntityType validates a raw entity type.
func ParseEntityType(raw string) (EntityType, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "|") {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntityType, raw)
	}
	return EntityType(raw), nil
}

// GenesisHash returns the prev hash used by the first entry of a chain.
func GenesisHash(entityType EntityType) string {
	return "GENESIS:" + string(entityType)
}

// AuditTime normalizes a timestamp to the precision the chain hashes.
func AuditTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// AuditTimestamp renders the hashed timestamp.
func AuditTimestamp(t time.Time) string {
	return AuditTime(t).Format(auditTimeLayout)
}

// CanonicalPayload serializes a payload with sorted keys at every depth and
// no insignificant whitespace. Numbers keep their textual form.
func CanonicalPayload(payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode audit payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var normalized any
	if err := dec.Decode(&normalized); err != nil {
		return "", fmt.Errorf("normalize audit payload: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return "", fmt.Errorf("encode audit payload: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ComputeAuditHash derives the hex SHA-256 of one chain link.
func ComputeAuditHash(prevHash, canonicalPayload string, at time.Time, entityType EntityType, entityID, actorID string) string {
	actor := strings.TrimSpace(actorID)
	if actor == "" {
		actor = SystemActor
	}
	input := strings.Join([]string{
		prevHash,
		canonicalPayload,
		AuditTimestamp(at),
		string(entityType),
		entityID,
		actor,
	}, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// DecodeAuditPayload parses a stored payload preserving number text, so a
// reloaded payload canonicalizes exactly like the one that was hashed.
func DecodeAuditPayload(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	out := map[string]any{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode audit payload: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("decode audit payload: %w", ErrTrailingPayloadData)
	}
	return out, nil
}
