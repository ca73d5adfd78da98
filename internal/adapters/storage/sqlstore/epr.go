package sqlstore

import (
	"context"
	"fmt"

	"github.com/hylla/ewtrail/internal/app"
	"github.com/hylla/ewtrail/internal/domain"
)

const eprCreditColumns = `id, brand_id, lot_id, material_category_id, weight_kg, reporting_period, generated_at`

// CreateBrand inserts a brand.
func (r *Repository) CreateBrand(ctx context.Context, b domain.Brand) error {
	_, err := r.exec(ctx, `
		INSERT INTO brands(id, name, epr_registration_number, created_at)
		VALUES (?, ?, ?, ?)
	`, b.ID, b.Name, b.EprRegistrationNumber, ts(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert brand: %w", err)
	}
	return nil
}

// GetBrand loads a brand by id.
func (r *Repository) GetBrand(ctx context.Context, id string) (domain.Brand, error) {
	var (
		b         domain.Brand
		createdAt string
	)
	err := r.queryRow(ctx, `SELECT id, name, epr_registration_number, created_at FROM brands WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.EprRegistrationNumber, &createdAt)
	if err != nil {
		return domain.Brand{}, noRows(err)
	}
	if b.CreatedAt, err = parseTS(createdAt); err != nil {
		return domain.Brand{}, err
	}
	return b, nil
}

// CreateEprCredit inserts a credit. A second credit for the same lot, brand
// and reporting period fails with app.ErrPreconditionFailed.
func (r *Repository) CreateEprCredit(ctx context.Context, c domain.EprCredit) error {
	_, err := r.exec(ctx, `
		INSERT INTO epr_credits(`+eprCreditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.BrandID, c.LotID, c.MaterialCategoryID, domain.FormatWeightKg(c.WeightKg), c.ReportingPeriod, ts(c.GeneratedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: lot %s is already credited to brand %s for %s", app.ErrPreconditionFailed, c.LotID, c.BrandID, c.ReportingPeriod)
	}
	if err != nil {
		return fmt.Errorf("insert epr credit: %w", err)
	}
	return nil
}

// ListEprCredits lists credits newest first.
func (r *Repository) ListEprCredits(ctx context.Context, f app.EprCreditFilter) ([]domain.EprCredit, error) {
	var (
		conds []string
		args  []any
	)
	if f.BrandID != "" {
		conds = append(conds, "brand_id = ?")
		args = append(args, f.BrandID)
	}
	if f.LotID != "" {
		conds = append(conds, "lot_id = ?")
		args = append(args, f.LotID)
	}
	if f.ReportingPeriod != "" {
		conds = append(conds, "reporting_period = ?")
		args = append(args, f.ReportingPeriod)
	}
	query := `SELECT ` + eprCreditColumns + ` FROM epr_credits` + where(conds) + ` ORDER BY generated_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list epr credits: %w", err)
	}
	return scanList(rows, scanEprCredit)
}

func scanEprCredit(s scanner) (domain.EprCredit, error) {
	var (
		c                   domain.EprCredit
		weight, generatedAt string
	)
	if err := s.Scan(&c.ID, &c.BrandID, &c.LotID, &c.MaterialCategoryID, &weight, &c.ReportingPeriod, &generatedAt); err != nil {
		return domain.EprCredit{}, err
	}
	var err error
	if c.WeightKg, err = parseDecimal(weight); err != nil {
		return domain.EprCredit{}, err
	}
	if c.GeneratedAt, err = parseTS(generatedAt); err != nil {
		return domain.EprCredit{}, err
	}
	return c, nil
}
