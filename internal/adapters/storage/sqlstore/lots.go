package sqlstore

import (
	"context"
	"fmt"

	"github.com/hylla/ewtrail/internal/app"
	"github.com/hylla/ewtrail/internal/domain"
)

const lotColumns = `id, code, hub_id, recycler_id, material_category_id, status, created_at, updated_at`

const dispatchColumns = `id, lot_id, vehicle_number, driver_name, weight_kg, dispatched_at, docs_ref, dispatched_by, created_at`

const recyclerIntakeColumns = `id, lot_id, recycler_id, received_weight_kg, received_at, variance_kg, variance_reason, assay_ref, confirmed_by, created_at`

// CreateLot inserts a lot.
func (r *Repository) CreateLot(ctx context.Context, l domain.Lot) error {
	_, err := r.exec(ctx, `
		INSERT INTO lots(`+lotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.Code, l.HubID, l.RecyclerID, l.MaterialCategoryID, string(l.Status), ts(l.CreatedAt), ts(l.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert lot: %w", err)
	}
	return nil
}

// UpdateLot rewrites the status of a lot.
func (r *Repository) UpdateLot(ctx context.Context, l domain.Lot) error {
	res, err := r.exec(ctx, `
		UPDATE lots SET recycler_id = ?, status = ?, updated_at = ? WHERE id = ?
	`, l.RecyclerID, string(l.Status), ts(l.UpdatedAt), l.ID)
	if err != nil {
		return fmt.Errorf("update lot: %w", err)
	}
	return translateNoRows(res)
}

// GetLot loads a lot by id.
func (r *Repository) GetLot(ctx context.Context, id string) (domain.Lot, error) {
	l, err := scanLot(r.queryRow(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = ?`, id))
	if err != nil {
		return domain.Lot{}, noRows(err)
	}
	return l, nil
}

// ListLots lists lots newest first.
func (r *Repository) ListLots(ctx context.Context, f app.LotFilter) ([]domain.Lot, error) {
	var (
		conds []string
		args  []any
	)
	if f.HubID != "" {
		conds = append(conds, "hub_id = ?")
		args = append(args, f.HubID)
	}
	if f.RecyclerID != "" {
		conds = append(conds, "recycler_id = ?")
		args = append(args, f.RecyclerID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	query := `SELECT ` + lotColumns + ` FROM lots` + where(conds) + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return scanList(rows, scanLot)
}

// CreateLotPickup links a hub intake record to a lot. A second link for the
// same intake record fails with app.ErrPreconditionFailed.
func (r *Repository) CreateLotPickup(ctx context.Context, lp domain.LotPickup) error {
	_, err := r.exec(ctx, `
		INSERT INTO lot_pickups(id, lot_id, hub_intake_record_id, pickup_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, lp.ID, lp.LotID, lp.HubIntakeRecordID, lp.PickupID, ts(lp.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: hub intake %s is already linked to a lot", app.ErrPreconditionFailed, lp.HubIntakeRecordID)
	}
	if err != nil {
		return fmt.Errorf("insert lot pickup: %w", err)
	}
	return nil
}

// ListLotPickups lists the link rows of one lot in insertion order.
func (r *Repository) ListLotPickups(ctx context.Context, lotID string) ([]domain.LotPickup, error) {
	rows, err := r.query(ctx, `
		SELECT id, lot_id, hub_intake_record_id, pickup_id, created_at
		FROM lot_pickups WHERE lot_id = ?
		ORDER BY created_at ASC, id ASC
	`, lotID)
	if err != nil {
		return nil, fmt.Errorf("list lot pickups: %w", err)
	}
	return scanList(rows, scanLotPickup)
}

// GetLotPickupByIntake loads the link row for a hub intake record.
func (r *Repository) GetLotPickupByIntake(ctx context.Context, intakeID string) (domain.LotPickup, error) {
	lp, err := scanLotPickup(r.queryRow(ctx, `
		SELECT id, lot_id, hub_intake_record_id, pickup_id, created_at
		FROM lot_pickups WHERE hub_intake_record_id = ?
	`, intakeID))
	if err != nil {
		return domain.LotPickup{}, noRows(err)
	}
	return lp, nil
}

// CreateLotDispatch inserts a dispatch record.
func (r *Repository) CreateLotDispatch(ctx context.Context, d domain.LotDispatch) error {
	_, err := r.exec(ctx, `
		INSERT INTO lot_dispatches(`+dispatchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID, d.LotID, d.VehicleNumber, d.DriverName, domain.FormatWeightKg(d.WeightKg),
		ts(d.DispatchedAt), d.DocsRef, d.DispatchedBy, ts(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert lot dispatch: %w", err)
	}
	return nil
}

// LatestLotDispatch loads the most recent dispatch of a lot.
func (r *Repository) LatestLotDispatch(ctx context.Context, lotID string) (domain.LotDispatch, error) {
	d, err := scanDispatch(r.queryRow(ctx, `
		SELECT `+dispatchColumns+`
		FROM lot_dispatches WHERE lot_id = ?
		ORDER BY dispatched_at DESC, created_at DESC
		LIMIT 1
	`, lotID))
	if err != nil {
		return domain.LotDispatch{}, noRows(err)
	}
	return d, nil
}

// CreateRecyclerIntake inserts the recycler confirmation for a lot.
func (r *Repository) CreateRecyclerIntake(ctx context.Context, ri domain.RecyclerIntake) error {
	_, err := r.exec(ctx, `
		INSERT INTO recycler_intakes(`+recyclerIntakeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ri.ID, ri.LotID, ri.RecyclerID, domain.FormatWeightKg(ri.ReceivedWeightKg), ts(ri.ReceivedAt),
		domain.FormatWeightKg(ri.VarianceKg), string(ri.VarianceReason), ri.AssayRef, ri.ConfirmedBy, ts(ri.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: lot %s already has a recycler intake", app.ErrPreconditionFailed, ri.LotID)
	}
	if err != nil {
		return fmt.Errorf("insert recycler intake: %w", err)
	}
	return nil
}

// GetRecyclerIntakeByLot loads the recycler confirmation for a lot.
func (r *Repository) GetRecyclerIntakeByLot(ctx context.Context, lotID string) (domain.RecyclerIntake, error) {
	ri, err := scanRecyclerIntake(r.queryRow(ctx, `
		SELECT `+recyclerIntakeColumns+` FROM recycler_intakes WHERE lot_id = ?
	`, lotID))
	if err != nil {
		return domain.RecyclerIntake{}, noRows(err)
	}
	return ri, nil
}

func scanLot(s scanner) (domain.Lot, error) {
	var (
		l                    domain.Lot
		status               string
		createdAt, updatedAt string
	)
	if err := s.Scan(&l.ID, &l.Code, &l.HubID, &l.RecyclerID, &l.MaterialCategoryID, &status, &createdAt, &updatedAt); err != nil {
		return domain.Lot{}, err
	}
	l.Status = domain.LotStatus(status)
	var err error
	if l.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.Lot{}, err
	}
	if l.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return domain.Lot{}, err
	}
	return l, nil
}

func scanLotPickup(s scanner) (domain.LotPickup, error) {
	var (
		lp        domain.LotPickup
		createdAt string
	)
	if err := s.Scan(&lp.ID, &lp.LotID, &lp.HubIntakeRecordID, &lp.PickupID, &createdAt); err != nil {
		return domain.LotPickup{}, err
	}
	var err error
	if lp.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.LotPickup{}, err
	}
	return lp, nil
}

func scanDispatch(s scanner) (domain.LotDispatch, error) {
	var (
		d                       domain.LotDispatch
		weight                  string
		dispatchedAt, createdAt string
	)
	if err := s.Scan(
		&d.ID, &d.LotID, &d.VehicleNumber, &d.DriverName, &weight,
		&dispatchedAt, &d.DocsRef, &d.DispatchedBy, &createdAt,
	); err != nil {
		return domain.LotDispatch{}, err
	}
	var err error
	if d.WeightKg, err = parseDecimal(weight); err != nil {
		return domain.LotDispatch{}, err
	}
	if d.DispatchedAt, err = parseTS(dispatchedAt); err != nil {
		return domain.LotDispatch{}, err
	}
	if d.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.LotDispatch{}, err
	}
	return d, nil
}

func scanRecyclerIntake(s scanner) (domain.RecyclerIntake, error) {
	var (
		ri                    domain.RecyclerIntake
		received, variance    string
		reason                string
		receivedAt, createdAt string
	)
	if err := s.Scan(
		&ri.ID, &ri.LotID, &ri.RecyclerID, &received, &receivedAt,
		&variance, &reason, &ri.AssayRef, &ri.ConfirmedBy, &createdAt,
	); err != nil {
		return domain.RecyclerIntake{}, err
	}
	ri.VarianceReason = domain.VarianceReason(reason)
	var err error
	if ri.ReceivedWeightKg, err = parseDecimal(received); err != nil {
		return domain.RecyclerIntake{}, err
	}
	if ri.VarianceKg, err = parseDecimal(variance); err != nil {
		return domain.RecyclerIntake{}, err
	}
	if ri.ReceivedAt, err = parseTS(receivedAt); err != nil {
		return domain.RecyclerIntake{}, err
	}
	if ri.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.RecyclerIntake{}, err
	}
	return ri, nil
}
