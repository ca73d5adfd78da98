package sqlstore

import (
	"context"
	"fmt"

	"github.com/hylla/ewtrail/internal/app"
	"github.com/hylla/ewtrail/internal/domain"
)

const pickupColumns = `id, code, citizen_id, hub_id, primary_category_id, source_channel, status, notes, created_at, updated_at`

const hubIntakeColumns = `id, pickup_id, hub_id, field_captain_id, material_category_id, kabadi_id, weight_kg, photo_ref, geo_point, remarks, weighed_at, created_at`

// CreatePickup inserts a pickup.
func (r *Repository) CreatePickup(ctx context.Context, p domain.Pickup) error {
	_, err := r.exec(ctx, `
		INSERT INTO pickups(`+pickupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.Code, p.CitizenID, p.HubID, p.PrimaryCategoryID,
		string(p.SourceChannel), string(p.Status), p.Notes, ts(p.CreatedAt), ts(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert pickup: %w", err)
	}
	return nil
}

// UpdatePickup rewrites the mutable columns of a pickup.
func (r *Repository) UpdatePickup(ctx context.Context, p domain.Pickup) error {
	res, err := r.exec(ctx, `
		UPDATE pickups
		SET hub_id = ?, primary_category_id = ?, status = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, p.HubID, p.PrimaryCategoryID, string(p.Status), p.Notes, ts(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("update pickup: %w", err)
	}
	return translateNoRows(res)
}

// GetPickup loads a pickup by id.
func (r *Repository) GetPickup(ctx context.Context, id string) (domain.Pickup, error) {
	row := r.queryRow(ctx, `SELECT `+pickupColumns+` FROM pickups WHERE id = ?`, id)
	p, err := scanPickup(row)
	if err != nil {
		return domain.Pickup{}, noRows(err)
	}
	return p, nil
}

// ListPickups lists pickups newest first.
func (r *Repository) ListPickups(ctx context.Context, f app.PickupFilter) ([]domain.Pickup, error) {
	var (
		conds []string
		args  []any
	)
	if f.HubID != "" {
		conds = append(conds, "hub_id = ?")
		args = append(args, f.HubID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	query := `SELECT ` + pickupColumns + ` FROM pickups` + where(conds) + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pickups: %w", err)
	}
	return scanList(rows, scanPickup)
}

// CreateHubIntake inserts a hub intake record.
func (r *Repository) CreateHubIntake(ctx context.Context, h domain.HubIntakeRecord) error {
	_, err := r.exec(ctx, `
		INSERT INTO hub_intake_records(`+hubIntakeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		h.ID, h.PickupID, h.HubID, h.FieldCaptainID, h.MaterialCategoryID, h.KabadiID,
		domain.FormatWeightKg(h.WeightKg), h.PhotoRef, h.GeoPoint, h.Remarks, ts(h.WeighedAt), ts(h.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert hub intake: %w", err)
	}
	return nil
}

// GetHubIntake loads a hub intake record by id.
func (r *Repository) GetHubIntake(ctx context.Context, id string) (domain.HubIntakeRecord, error) {
	row := r.queryRow(ctx, `SELECT `+hubIntakeColumns+` FROM hub_intake_records WHERE id = ?`, id)
	h, err := scanHubIntake(row)
	if err != nil {
		return domain.HubIntakeRecord{}, noRows(err)
	}
	return h, nil
}

// ListAvailableHubIntakes lists a hub's intake records not yet linked to any lot.
func (r *Repository) ListAvailableHubIntakes(ctx context.Context, hubID string) ([]domain.HubIntakeRecord, error) {
	rows, err := r.query(ctx, `
		SELECT `+hubIntakeColumns+`
		FROM hub_intake_records h
		WHERE h.hub_id = ?
		  AND NOT EXISTS (SELECT 1 FROM lot_pickups lp WHERE lp.hub_intake_record_id = h.id)
		ORDER BY h.weighed_at DESC, h.id ASC
	`, hubID)
	if err != nil {
		return nil, fmt.Errorf("list available hub intakes: %w", err)
	}
	return scanList(rows, scanHubIntake)
}

// CreateSellRequest inserts a sell request.
func (r *Repository) CreateSellRequest(ctx context.Context, s domain.SellRequest) error {
	_, err := r.exec(ctx, `
		INSERT INTO sell_requests(id, citizen_id, pickup_id, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.CitizenID, s.PickupID, string(s.Status), s.Notes, ts(s.CreatedAt), ts(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert sell request: %w", err)
	}
	return nil
}

// UpdateSellRequest rewrites the link and status of a sell request.
func (r *Repository) UpdateSellRequest(ctx context.Context, s domain.SellRequest) error {
	res, err := r.exec(ctx, `
		UPDATE sell_requests
		SET pickup_id = ?, status = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, s.PickupID, string(s.Status), s.Notes, ts(s.UpdatedAt), s.ID)
	if err != nil {
		return fmt.Errorf("update sell request: %w", err)
	}
	return translateNoRows(res)
}

// GetSellRequest loads a sell request by id.
func (r *Repository) GetSellRequest(ctx context.Context, id string) (domain.SellRequest, error) {
	row := r.queryRow(ctx, `
		SELECT id, citizen_id, pickup_id, status, notes, created_at, updated_at
		FROM sell_requests WHERE id = ?
	`, id)
	s, err := scanSellRequest(row)
	if err != nil {
		return domain.SellRequest{}, noRows(err)
	}
	return s, nil
}

// GetSellRequestByPickup loads the sell request linked to a pickup.
func (r *Repository) GetSellRequestByPickup(ctx context.Context, pickupID string) (domain.SellRequest, error) {
	row := r.queryRow(ctx, `
		SELECT id, citizen_id, pickup_id, status, notes, created_at, updated_at
		FROM sell_requests WHERE pickup_id = ?
		ORDER BY created_at ASC
		LIMIT 1
	`, pickupID)
	s, err := scanSellRequest(row)
	if err != nil {
		return domain.SellRequest{}, noRows(err)
	}
	return s, nil
}

func scanPickup(s scanner) (domain.Pickup, error) {
	var (
		p                    domain.Pickup
		channel, status      string
		createdAt, updatedAt string
	)
	if err := s.Scan(
		&p.ID, &p.Code, &p.CitizenID, &p.HubID, &p.PrimaryCategoryID,
		&channel, &status, &p.Notes, &createdAt, &updatedAt,
	); err != nil {
		return domain.Pickup{}, err
	}
	p.SourceChannel = domain.SourceChannel(channel)
	p.Status = domain.PickupStatus(status)
	var err error
	if p.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.Pickup{}, err
	}
	if p.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return domain.Pickup{}, err
	}
	return p, nil
}

func scanHubIntake(s scanner) (domain.HubIntakeRecord, error) {
	var (
		h                    domain.HubIntakeRecord
		weight               string
		weighedAt, createdAt string
	)
	if err := s.Scan(
		&h.ID, &h.PickupID, &h.HubID, &h.FieldCaptainID, &h.MaterialCategoryID, &h.KabadiID,
		&weight, &h.PhotoRef, &h.GeoPoint, &h.Remarks, &weighedAt, &createdAt,
	); err != nil {
		return domain.HubIntakeRecord{}, err
	}
	var err error
	if h.WeightKg, err = parseDecimal(weight); err != nil {
		return domain.HubIntakeRecord{}, err
	}
	if h.WeighedAt, err = parseTS(weighedAt); err != nil {
		return domain.HubIntakeRecord{}, err
	}
	if h.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.HubIntakeRecord{}, err
	}
	return h, nil
}

func scanSellRequest(s scanner) (domain.SellRequest, error) {
	var (
		sr                   domain.SellRequest
		status               string
		createdAt, updatedAt string
	)
	if err := s.Scan(&sr.ID, &sr.CitizenID, &sr.PickupID, &status, &sr.Notes, &createdAt, &updatedAt); err != nil {
		return domain.SellRequest{}, err
	}
	sr.Status = domain.SellRequestStatus(status)
	var err error
	if sr.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.SellRequest{}, err
	}
	if sr.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return domain.SellRequest{}, err
	}
	return sr, nil
}
