package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Reporting period length bounds, in characters.
const (
	minReportingPeriodLen = 4
	maxReportingPeriodLen = 20
)

// Brand is a producer that offsets its extended producer responsibility
// obligation with recycled weight.
type Brand struct {
	ID                    string
	Name                  string
	EprRegistrationNumber string
	CreatedAt             time.Time
}

// NewBrand constructs a brand.
func NewBrand(id, name, eprRegistrationNumber string, now time.Time) (Brand, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		return Brand{}, ErrInvalidID
	}
	if name == "" {
		return Brand{}, ErrInvalidName
	}
	return Brand{
		ID:                    id,
		Name:                  name,
		EprRegistrationNumber: strings.TrimSpace(eprRegistrationNumber),
		CreatedAt:             now.UTC(),
	}, nil
}

// EprCredit attributes the weight a recycler received for a lot to a brand
// for one reporting period.
type EprCredit struct {
	ID                 string
	BrandID            string
	LotID              string
	MaterialCategoryID string
	WeightKg           decimal.Decimal
	ReportingPeriod    string
	GeneratedAt        time.Time
}

// ParseReportingPeriod validates a reporting period label such as "2026-Q1".
func ParseReportingPeriod(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(raw); n < minReportingPeriodLen || n > maxReportingPeriodLen || strings.ContainsAny(raw, "|\n") {
		return "", ErrInvalidReportingPeriod
	}
	return raw, nil
}

// NewEprCredit constructs a credit from a lot's recycler intake.
func NewEprCredit(id, brandID string, lot Lot, intake RecyclerIntake, period string, now time.Time) (EprCredit, error) {
	id, brandID = strings.TrimSpace(id), strings.TrimSpace(brandID)
	if id == "" || brandID == "" || lot.ID == "" {
		return EprCredit{}, ErrInvalidID
	}
	if intake.LotID != lot.ID {
		return EprCredit{}, ErrInvalidID
	}
	if intake.ReceivedWeightKg.IsNegative() {
		return EprCredit{}, ErrInvalidWeight
	}
	period, err := ParseReportingPeriod(period)
	if err != nil {
		return EprCredit{}, err
	}
	return EprCredit{
		ID:                 id,
		BrandID:            brandID,
		LotID:              lot.ID,
		MaterialCategoryID: lot.MaterialCategoryID,
		WeightKg:           intake.ReceivedWeightKg.Round(WeightScale),
		ReportingPeriod:    period,
		GeneratedAt:        now.UTC(),
	}, nil
}
