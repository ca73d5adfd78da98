package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hylla/ewtrail/internal/app"
	"github.com/hylla/ewtrail/internal/domain"
)

const auditColumns = `seq, id, entity_type, entity_id, prev_hash, hash, payload_json, actor_id, created_at`

// CreateAuditEntry appends an audit entry and returns it with the assigned seq.
// The payload is stored in canonical form so re-reads hash identically.
func (r *Repository) CreateAuditEntry(ctx context.Context, e domain.AuditEntry) (domain.AuditEntry, error) {
	payload, err := domain.CanonicalPayload(e.Payload)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	var seq int64
	err = r.queryRow(ctx, `
		INSERT INTO audit_log(id, entity_type, entity_id, prev_hash, hash, payload_json, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq
	`,
		e.ID, string(e.EntityType), e.EntityID, e.PrevHash, e.Hash, payload, nullable(e.ActorID), ts(e.CreatedAt),
	).Scan(&seq)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("insert audit entry: %w", err)
	}
	e.Seq = seq
	e.RawPayload = payload
	return e, nil
}

// LatestAuditEntry loads the chain head of an entity. On postgres inside a
// transaction it first takes a per-chain advisory lock, held until commit, so
// concurrent appends to one chain serialize instead of forking it.
func (r *Repository) LatestAuditEntry(ctx context.Context, entityType domain.EntityType, entityID string) (domain.AuditEntry, error) {
	if err := r.lockChain(ctx, entityType, entityID); err != nil {
		return domain.AuditEntry{}, err
	}
	e, err := scanAuditEntry(r.queryRow(ctx, `
		SELECT `+auditColumns+`
		FROM audit_log
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`, string(entityType), entityID))
	if err != nil {
		return domain.AuditEntry{}, noRows(err)
	}
	return e, nil
}

// lockChain is a no-op on sqlite, where one connection serializes writers,
// and outside a transaction.
func (r *Repository) lockChain(ctx context.Context, entityType domain.EntityType, entityID string) error {
	if r.dialect != DialectPostgres || r.db != nil {
		return nil
	}
	if _, err := r.exec(ctx, `SELECT pg_advisory_xact_lock(hashtext(?))`, chainLockKey(entityType, entityID)); err != nil {
		return fmt.Errorf("lock audit chain: %w", err)
	}
	return nil
}

func chainLockKey(entityType domain.EntityType, entityID string) string {
	return "audit:" + string(entityType) + "|" + entityID
}

// ListAuditEntries lists the chain of an entity oldest first.
func (r *Repository) ListAuditEntries(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.AuditEntry, error) {
	rows, err := r.query(ctx, `
		SELECT `+auditColumns+`
		FROM audit_log
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at ASC, seq ASC
	`, string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return scanList(rows, scanAuditEntry)
}

// CreateAnomaly inserts a flagged anomaly.
func (r *Repository) CreateAnomaly(ctx context.Context, a domain.Anomaly) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("encode anomaly payload: %w", err)
	}
	_, err = r.exec(ctx, `
		INSERT INTO anomalies(id, entity_type, entity_id, type, severity, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, string(a.EntityType), a.EntityID, string(a.Type), string(a.Severity), string(payload), ts(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert anomaly: %w", err)
	}
	return nil
}

// ListAnomalies lists anomalies newest first.
func (r *Repository) ListAnomalies(ctx context.Context, f app.AnomalyFilter) ([]domain.Anomaly, error) {
	var (
		conds []string
		args  []any
	)
	if f.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, string(f.EntityType))
	}
	if f.EntityID != "" {
		conds = append(conds, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, string(f.Severity))
	}
	query := `SELECT id, entity_type, entity_id, type, severity, payload_json, created_at FROM anomalies` +
		where(conds) + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	return scanList(rows, scanAnomaly)
}

func scanAuditEntry(s scanner) (domain.AuditEntry, error) {
	var (
		e          domain.AuditEntry
		entityType string
		payload    string
		actor      sql.NullString
		createdAt  string
	)
	if err := s.Scan(&e.Seq, &e.ID, &entityType, &e.EntityID, &e.PrevHash, &e.Hash, &payload, &actor, &createdAt); err != nil {
		return domain.AuditEntry{}, err
	}
	e.EntityType = domain.EntityType(entityType)
	e.ActorID = actor.String
	e.RawPayload = payload
	// Undecodable text is left for chain verification to report.
	e.Payload, _ = domain.DecodeAuditPayload([]byte(payload))
	var err error
	if e.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.AuditEntry{}, err
	}
	return e, nil
}

func scanAnomaly(s scanner) (domain.Anomaly, error) {
	var (
		a                         domain.Anomaly
		entityType, typ, severity string
		payload, createdAt        string
	)
	if err := s.Scan(&a.ID, &entityType, &a.EntityID, &typ, &severity, &payload, &createdAt); err != nil {
		return domain.Anomaly{}, err
	}
	a.EntityType = domain.EntityType(entityType)
	a.Type = domain.AnomalyType(typ)
	a.Severity = domain.AnomalySeverity(severity)
	var err error
	if a.Payload, err = domain.DecodeAuditPayload([]byte(payload)); err != nil {
		return domain.Anomaly{}, err
	}
	if a.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.Anomaly{}, err
	}
	return a, nil
}
