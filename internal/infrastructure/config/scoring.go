package config

// ScoreWeights are the sub-score weights of the composite match score.
// They should sum to 1.0; validation tolerates small drift.
type ScoreWeights struct {
	Quality  float64 `mapstructure:"quality" validate:"min=0,max=1"`
	Price    float64 `mapstructure:"price" validate:"min=0,max=1"`
	Delivery float64 `mapstructure:"delivery" validate:"min=0,max=1"`
	Risk     float64 `mapstructure:"risk" validate:"min=0,max=1"`
}

// CommodityScoring is the per-commodity scoring profile. Zero-valued
// fields inherit from the default profile.
type CommodityScoring struct {
	Weights  ScoreWeights `mapstructure:"weights"`
	MinScore float64      `mapstructure:"min_score" validate:"min=0,max=1"`
}

// ScoringConfig keys scoring profiles by commodity id with inheritance
// from Default. Changes never retroactively rescore existing matches.
type ScoringConfig struct {
	Default     CommodityScoring            `mapstructure:"default"`
	Commodities map[string]CommodityScoring `mapstructure:"commodities"`

	// WarnPenalty multiplies the composite when any risk check is WARN
	WarnPenalty float64 `mapstructure:"warn_penalty" validate:"min=0,max=1"`

	// AIBoost multiplies the composite for advisory-recommended sellers
	AIBoost float64 `mapstructure:"ai_boost" validate:"min=1"`
}

// ProfileFor resolves the scoring profile for a commodity, filling
// unset fields from the default profile.
func (c ScoringConfig) ProfileFor(commodityID string) CommodityScoring {
	profile, ok := c.Commodities[commodityID]
	if !ok {
		return c.Default
	}
	if profile.Weights == (ScoreWeights{}) {
		profile.Weights = c.Default.Weights
	}
	if profile.MinScore == 0 {
		profile.MinScore = c.Default.MinScore
	}
	return profile
}
