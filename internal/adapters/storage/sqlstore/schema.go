package sqlstore

import (
	"context"
	"fmt"
	"strings"
)

// migrate creates tables and indexes when missing.
func (r *Repository) migrate(ctx context.Context) error {
	seq := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	stmts := []string{}
	if r.dialect == DialectPostgres {
		seq = "seq BIGSERIAL PRIMARY KEY"
	} else {
		stmts = append(stmts, `PRAGMA foreign_keys = ON;`)
	}
	stmts = append(stmts,
		`CREATE TABLE IF NOT EXISTS hubs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			city TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS recyclers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			license_number TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS material_categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pickups (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			citizen_id TEXT NOT NULL DEFAULT '',
			hub_id TEXT NOT NULL REFERENCES hubs(id),
			primary_category_id TEXT NOT NULL REFERENCES material_categories(id),
			source_channel TEXT NOT NULL,
			status TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS hub_intake_records (
			id TEXT PRIMARY KEY,
			pickup_id TEXT NOT NULL REFERENCES pickups(id),
			hub_id TEXT NOT NULL REFERENCES hubs(id),
			field_captain_id TEXT NOT NULL REFERENCES users(id),
			material_category_id TEXT NOT NULL REFERENCES material_categories(id),
			kabadi_id TEXT NOT NULL DEFAULT '',
			weight_kg TEXT NOT NULL,
			photo_ref TEXT NOT NULL,
			geo_point TEXT NOT NULL DEFAULT '',
			remarks TEXT NOT NULL DEFAULT '',
			weighed_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS lots (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			hub_id TEXT NOT NULL REFERENCES hubs(id),
			recycler_id TEXT NOT NULL REFERENCES recyclers(id),
			material_category_id TEXT NOT NULL REFERENCES material_categories(id),
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS lot_pickups (
			id TEXT PRIMARY KEY,
			lot_id TEXT NOT NULL REFERENCES lots(id),
			hub_intake_record_id TEXT NOT NULL UNIQUE REFERENCES hub_intake_records(id),
			pickup_id TEXT NOT NULL REFERENCES pickups(id),
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS lot_dispatches (
			id TEXT PRIMARY KEY,
			lot_id TEXT NOT NULL REFERENCES lots(id),
			vehicle_number TEXT NOT NULL,
			driver_name TEXT NOT NULL,
			weight_kg TEXT NOT NULL,
			dispatched_at TEXT NOT NULL,
			docs_ref TEXT NOT NULL DEFAULT '',
			dispatched_by TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS recycler_intakes (
			id TEXT PRIMARY KEY,
			lot_id TEXT NOT NULL UNIQUE REFERENCES lots(id),
			recycler_id TEXT NOT NULL REFERENCES recyclers(id),
			received_weight_kg TEXT NOT NULL,
			received_at TEXT NOT NULL,
			variance_kg TEXT NOT NULL,
			variance_reason TEXT NOT NULL,
			assay_ref TEXT NOT NULL DEFAULT '',
			confirmed_by TEXT NOT NULL REFERENCES users(id),
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			`+seq+`,
			id TEXT NOT NULL UNIQUE,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			prev_hash TEXT NOT NULL,
			hash TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			actor_id TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS anomalies (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			payload_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sell_requests (
			id TEXT PRIMARY KEY,
			citizen_id TEXT NOT NULL,
			pickup_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS brands (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			epr_registration_number TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS epr_credits (
			id TEXT PRIMARY KEY,
			brand_id TEXT NOT NULL REFERENCES brands(id),
			lot_id TEXT NOT NULL REFERENCES lots(id),
			material_category_id TEXT NOT NULL REFERENCES material_categories(id),
			weight_kg TEXT NOT NULL,
			reporting_period TEXT NOT NULL,
			generated_at TEXT NOT NULL,
			UNIQUE (lot_id, brand_id, reporting_period)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pickups_hub_status ON pickups(hub_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_hub_intakes_hub ON hub_intake_records(hub_id, weighed_at);`,
		`CREATE INDEX IF NOT EXISTS idx_lot_pickups_lot ON lot_pickups(lot_id);`,
		`CREATE INDEX IF NOT EXISTS idx_lot_dispatches_lot ON lot_dispatches(lot_id, dispatched_at);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_type, entity_id, created_at, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_anomalies_created ON anomalies(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sell_requests_pickup ON sell_requests(pickup_id);`,
		`CREATE INDEX IF NOT EXISTS idx_epr_credits_brand_period ON epr_credits(brand_id, reporting_period);`,
	)
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", r.dialect, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint failure on either engine.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key value")
}
