package ml

import (
	"context"

	"github.com/mandiworks/tradecore-go/internal/domain/risk"
)

// Confidence reported by the rule-based fallback. Deliberately below
// the advisory floor so its output always surfaces as low-confidence.
const (
	fallbackConfidence = 0.5
	thinHistoryCutoff  = 5
)

// RuleBasedPredictor is the default-risk fallback used when no model
// service is wired. It derives a probability from the same behavioural
// features a model would consume, with transparent linear weights.
type RuleBasedPredictor struct{}

// NewRuleBasedPredictor creates the fallback predictor
func NewRuleBasedPredictor() *RuleBasedPredictor {
	return &RuleBasedPredictor{}
}

// PredictDefault computes the rule-based default probability
func (p *RuleBasedPredictor) PredictDefault(_ context.Context, _ string, f risk.PredictionFeatures) (*risk.DefaultPrediction, error) {
	utilisation := clamp01(f.CreditUtilisation)
	ratingGap := clamp01(1.0 - f.Rating/5.0)
	paymentGap := clamp01(1.0 - f.PaymentPerformance/100.0)
	disputes := clamp01(f.DisputeRate)

	probability := clamp01(0.40*utilisation + 0.25*ratingGap + 0.25*paymentGap + 0.10*disputes)

	confidence := fallbackConfidence
	if f.TradeHistoryCount < thinHistoryCutoff {
		confidence = 0.3
	}

	return &risk.DefaultPrediction{
		Probability: probability,
		Level:       levelFor(probability),
		Confidence:  confidence,
		Factors: map[string]float64{
			"credit_utilisation":  utilisation,
			"rating_gap":          ratingGap,
			"payment_gap":         paymentGap,
			"dispute_rate":        disputes,
			"trade_history_count": float64(f.TradeHistoryCount),
		},
	}, nil
}

func levelFor(probability float64) risk.RiskLevel {
	switch {
	case probability < 0.20:
		return risk.LevelLow
	case probability < 0.45:
		return risk.LevelMedium
	case probability < 0.70:
		return risk.LevelHigh
	default:
		return risk.LevelCritical
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
