package risk

import "context"

// RiskLevel is the qualitative default-risk classification
type RiskLevel string

const (
	LevelLow      RiskLevel = "LOW"
	LevelMedium   RiskLevel = "MEDIUM"
	LevelHigh     RiskLevel = "HIGH"
	LevelCritical RiskLevel = "CRITICAL"
)

// PredictionFeatures are the model inputs for default prediction
type PredictionFeatures struct {
	CreditUtilisation  float64
	Rating             float64
	PaymentPerformance float64
	TradeHistoryCount  int
	DisputeRate        float64
	AvgPaymentDelay    float64
	AvgTradeValue      float64
}

// DefaultPrediction is the output of the default-risk path. When no
// trained model is available the rule-based fallback derives the level
// from the partner score and declares low confidence.
type DefaultPrediction struct {
	Probability float64 // 0..1
	Level       RiskLevel
	Confidence  float64
	Factors     map[string]float64
}

// DefaultPredictor produces a default-risk prediction for a partner.
// Implementations: external model service, or the rule-based fallback.
type DefaultPredictor interface {
	PredictDefault(ctx context.Context, partnerID string, features PredictionFeatures) (*DefaultPrediction, error)
}

// HistoryProvider supplies the behavioural features of a partner that
// are not stored on the partner record itself.
type HistoryProvider interface {
	TradeHistory(ctx context.Context, partnerID string) (count int, disputeRate, avgDelayDays, avgTradeValue float64, err error)
}
