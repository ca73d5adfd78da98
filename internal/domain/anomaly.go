package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// AnomalyType classifies what an anomaly flags.
type AnomalyType string

// AnomalyTypeWeightVariance is raised on dispatched/received weight drift.
const AnomalyTypeWeightVariance AnomalyType = "WEIGHT_VARIANCE"

// AnomalySeverity ranks an anomaly.
type AnomalySeverity string

// AnomalySeverity values.
const (
	AnomalySeverityLow    AnomalySeverity = "LOW"
	AnomalySeverityMedium AnomalySeverity = "MEDIUM"
	AnomalySeverityHigh   AnomalySeverity = "HIGH"
)

var validSeverities = []AnomalySeverity{AnomalySeverityLow, AnomalySeverityMedium, AnomalySeverityHigh}

// Valid reports whether the severity is declared.
func (s AnomalySeverity) Valid() bool {
	return slices.Contains(validSeverities, s)
}

// Anomaly is a flagged discrepancy with its numeric evidence.
type Anomaly struct {
	ID         string
	EntityType EntityType
	EntityID   string
	Type       AnomalyType
	Severity   AnomalySeverity
	Payload    map[string]any
	CreatedAt  time.Time
}

// DefaultWeightVarianceThreshold is the tolerated fraction of dispatch weight.
var DefaultWeightVarianceThreshold = decimal.RequireFromString("0.05")

// VarianceAssessment is the outcome of comparing dispatched and received weights.
type VarianceAssessment struct {
	DispatchedKg decimal.Decimal
	ReceivedKg   decimal.Decimal
	VarianceKg   decimal.Decimal
	VariancePct  decimal.Decimal
	ThresholdPct decimal.Decimal
	Severity     AnomalySeverity
}

// Flagged reports whether the variance crossed the threshold.
func (v VarianceAssessment) Flagged() bool {
	return v.Severity != ""
}

// VariancePercent returns the variance as a percentage rounded to two places.
func (v VarianceAssessment) VariancePercent() decimal.Decimal {
	return v.VariancePct.Mul(decimal.NewFromInt(100)).Round(2)
}

// EvaluateWeightVariance classifies received against dispatched weight.
// A zero dispatch weight yields a zero percentage and never flags.
func EvaluateWeightVariance(dispatchedKg, receivedKg, thresholdPct decimal.Decimal) VarianceAssessment {
	out := VarianceAssessment{
		DispatchedKg: dispatchedKg,
		ReceivedKg:   receivedKg,
		VarianceKg:   receivedKg.Sub(dispatchedKg),
		VariancePct:  decimal.Zero,
		ThresholdPct: thresholdPct,
	}
	if dispatchedKg.IsZero() {
		return out
	}
	out.VariancePct = out.VarianceKg.Abs().Div(dispatchedKg)
	switch {
	case out.VariancePct.GreaterThan(thresholdPct.Mul(decimal.NewFromInt(2))):
		out.Severity = AnomalySeverityHigh
	case out.VariancePct.GreaterThan(thresholdPct):
		out.Severity = AnomalySeverityMedium
	}
	return out
}
