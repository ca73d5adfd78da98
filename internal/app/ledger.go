package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/ewtrail/internal/domain"
)

// Ledger appends and verifies entity-scoped audit hash chains. There is no
// ordering guarantee across entities; each chain is verified on its own.
type Ledger struct {
	store AuditStore
	idGen IDGenerator
	clock Clock
}

// NewLedger constructs a ledger over store.
func NewLedger(store AuditStore, idGen IDGenerator, clock Clock) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{store: store, idGen: idGen, clock: clock}
}

// AuditAppend holds input values for one ledger append.
type AuditAppend struct {
	EntityType domain.EntityType
	EntityID   string
	ActorID    string
	Payload    map[string]any
	At         time.Time
}

// Append links a new entry onto the entity's chain. A timestamp earlier than
// the previous entry is raised to it so chain order and time order agree.
func (l *Ledger) Append(ctx context.Context, in AuditAppend) (domain.AuditEntry, error) {
	entityType, err := domain.ParseEntityType(string(in.EntityType))
	if err != nil {
		return domain.AuditEntry{}, invalidInput(err)
	}
	entityID := strings.TrimSpace(in.EntityID)
	if entityID == "" {
		return domain.AuditEntry{}, invalidInput(domain.ErrInvalidID)
	}
	at := in.At
	if at.IsZero() {
		at = l.clock()
	}
	at = domain.AuditTime(at)

	prevHash := domain.GenesisHash(entityType)
	prev, err := l.store.LatestAuditEntry(ctx, entityType, entityID)
	switch {
	case err == nil:
		prevHash = prev.Hash
		if at.Before(prev.CreatedAt) {
			at = domain.AuditTime(prev.CreatedAt)
		}
	case errors.Is(err, ErrNotFound):
	default:
		return domain.AuditEntry{}, fmt.Errorf("load previous audit entry: %w", err)
	}

	canonical, err := domain.CanonicalPayload(in.Payload)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	payload, err := domain.DecodeAuditPayload([]byte(canonical))
	if err != nil {
		return domain.AuditEntry{}, err
	}
	actor := strings.TrimSpace(in.ActorID)
	entry := domain.AuditEntry{
		ID:         l.idGen(),
		EntityType: entityType,
		EntityID:   entityID,
		PrevHash:   prevHash,
		Hash:       domain.ComputeAuditHash(prevHash, canonical, at, entityType, entityID, actor),
		Payload:    payload,
		ActorID:    actor,
		CreatedAt:  at,
	}
	stored, err := l.store.CreateAuditEntry(ctx, entry)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("append audit entry: %w", err)
	}
	return stored, nil
}

// ChainVerification reports the outcome of re-deriving one chain.
type ChainVerification struct {
	EntityType       domain.EntityType
	EntityID         string
	OK               bool
	Entries          int
	BrokenAtEntryID  string
	ExpectedHash     string
	ActualHash       string
	ExpectedPrevHash string
	ActualPrevHash   string
}

// Err returns an ErrIntegrityViolation error when the chain is broken.
func (v ChainVerification) Err() error {
	if v.OK {
		return nil
	}
	return newError(ErrIntegrityViolation, "AUDIT_CHAIN_BROKEN", "audit chain diverges at entry "+v.BrokenAtEntryID, map[string]any{
		"entityType":       string(v.EntityType),
		"entityId":         v.EntityID,
		"brokenAtEntryId":  v.BrokenAtEntryID,
		"expectedHash":     v.ExpectedHash,
		"actualHash":       v.ActualHash,
		"expectedPrevHash": v.ExpectedPrevHash,
		"actualPrevHash":   v.ActualPrevHash,
	})
}

// VerifyChain walks the entity's entries oldest first and stops at the first
// entry whose stored prev hash or hash differs from the re-derived value.
func (l *Ledger) VerifyChain(ctx context.Context, entityType domain.EntityType, entityID string) (ChainVerification, error) {
	entries, err := l.store.ListAuditEntries(ctx, entityType, entityID)
	if err != nil {
		return ChainVerification{}, fmt.Errorf("list audit entries: %w", err)
	}
	out := ChainVerification{EntityType: entityType, EntityID: entityID, OK: true, Entries: len(entries)}
	running := domain.GenesisHash(entityType)
	for _, entry := range entries {
		canonical, err := chainPayload(entry)
		if err != nil {
			return ChainVerification{}, err
		}
		expected := domain.ComputeAuditHash(running, canonical, entry.CreatedAt, entry.EntityType, entry.EntityID, entry.ActorID)
		if entry.PrevHash != running || entry.Hash != expected {
			out.OK = false
			out.BrokenAtEntryID = entry.ID
			out.ExpectedHash = expected
			out.ActualHash = entry.Hash
			out.ExpectedPrevHash = running
			out.ActualPrevHash = entry.PrevHash
			return out, nil
		}
		running = entry.Hash
	}
	return out, nil
}

// chainPayload returns the payload text an entry's hash covers. Stored text
// is hashed verbatim so rewritten or undecodable payloads surface as a
// hash mismatch at that entry.
func chainPayload(entry domain.AuditEntry) (string, error) {
	if entry.RawPayload != "" {
		return entry.RawPayload, nil
	}
	return domain.CanonicalPayload(entry.Payload)
}
