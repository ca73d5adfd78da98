package app

import (
	"context"
	"strings"

	"github.com/hylla/ewtrail/internal/domain"
)

// GenerateEprCreditInput holds input values for EPR credit generation.
type GenerateEprCreditInput struct {
	LotID           string
	BrandID         string
	ReportingPeriod string
	ActorID         string
}

// GenerateEprCredits credits a brand with the weight the recycler received
// for a lot. The lot must have a confirmed recycler intake, and a lot is
// credited at most once per brand and reporting period. The credit is
// recorded on the lot's audit chain in the same unit of work.
func (s *Service) GenerateEprCredits(ctx context.Context, in GenerateEprCreditInput) (domain.EprCredit, error) {
	in.LotID = strings.TrimSpace(in.LotID)
	in.BrandID = strings.TrimSpace(in.BrandID)
	in.ActorID = strings.TrimSpace(in.ActorID)
	period, err := domain.ParseReportingPeriod(in.ReportingPeriod)
	if err != nil {
		return domain.EprCredit{}, invalidInput(err)
	}

	now := s.clock()
	var credit domain.EprCredit
	err = s.run(ctx, OpGenerateEprCredit, func(ctx context.Context, repo Repository) error {
		lot, err := repo.GetLot(ctx, in.LotID)
		if err != nil {
			return missing(err, "LOT_NOT_FOUND", "lot", in.LotID)
		}
		if _, err := repo.GetBrand(ctx, in.BrandID); err != nil {
			return missing(err, "BRAND_NOT_FOUND", "brand", in.BrandID)
		}
		intake, err := repo.GetRecyclerIntakeByLot(ctx, lot.ID)
		if err != nil {
			if isNotFound(err) {
				return newError(ErrPreconditionFailed, "LOT_NO_INTAKE", "lot has no recycler intake", map[string]any{"lotId": lot.ID})
			}
			return err
		}
		existing, err := repo.ListEprCredits(ctx, EprCreditFilter{BrandID: in.BrandID, LotID: lot.ID, ReportingPeriod: period, Limit: 1})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return newError(ErrPreconditionFailed, "EPR_CREDIT_EXISTS", "lot is already credited to this brand for the period", map[string]any{
				"lotId":           lot.ID,
				"brandId":         in.BrandID,
				"reportingPeriod": period,
				"creditId":        existing[0].ID,
			})
		}

		credit, err = domain.NewEprCredit(s.idGen(), in.BrandID, lot, intake, period, now)
		if err != nil {
			return invalidInput(err)
		}
		if err := repo.CreateEprCredit(ctx, credit); err != nil {
			return err
		}
		return s.appendLotEvent(ctx, repo, lot.ID, in.ActorID, domain.AuditActionEprCreditGenerated, map[string]any{
			"creditId":           credit.ID,
			"brandId":            credit.BrandID,
			"recyclerIntakeId":   intake.ID,
			"materialCategoryId": credit.MaterialCategoryID,
			"weightKg":           domain.FormatWeightKg(credit.WeightKg),
			"reportingPeriod":    credit.ReportingPeriod,
		})
	})
	if err != nil {
		return domain.EprCredit{}, err
	}
	s.logger.Info("epr credit generated",
		"lot_id", credit.LotID,
		"brand_id", credit.BrandID,
		"weight_kg", domain.FormatWeightKg(credit.WeightKg),
	)
	return credit, nil
}

// ListEprCredits lists credits newest first. Limit is clamped to [1, 200]
// and defaults to 50.
func (s *Service) ListEprCredits(ctx context.Context, filter EprCreditFilter) ([]domain.EprCredit, error) {
	filter.BrandID = strings.TrimSpace(filter.BrandID)
	filter.LotID = strings.TrimSpace(filter.LotID)
	if filter.ReportingPeriod != "" {
		period, err := domain.ParseReportingPeriod(filter.ReportingPeriod)
		if err != nil {
			return nil, invalidInput(err)
		}
		filter.ReportingPeriod = period
	}
	filter.Limit = clampLimit(filter.Limit, 50, 200)
	return s.store.ListEprCredits(ctx, filter)
}
