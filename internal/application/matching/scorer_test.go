package matching_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiworks/tradecore-go/internal/application/matching"
	"github.com/mandiworks/tradecore-go/internal/domain/commodity"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
)

var scoreNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func scoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Default: config.CommodityScoring{
			Weights: config.ScoreWeights{
				Quality:  0.40,
				Price:    0.30,
				Delivery: 0.15,
				Risk:     0.15,
			},
			MinScore: 0.5,
		},
		WarnPenalty: 0.9,
		AIBoost:     1.05,
	}
}

func scoringPair(t *testing.T) (*order.Requirement, *order.Availability) {
	t.Helper()
	req, err := order.NewRequirement(
		"REQ-1", "BP-BUYER", "COM-WHEAT",
		shared.QuantityFromFloat(100), "MT",
		shared.MoneyFromFloat(25_000, "INR"),
		[]order.DeliveryLocation{{LocationID: "LOC-1"}},
		time.Time{}, scoreNow,
	)
	require.NoError(t, err)
	req.AcceptedQuality = map[string]commodity.QualityRange{
		"grade":    {Min: 5, Max: 10},
		"moisture": {Min: 0, Max: 14},
	}

	a, err := order.NewAvailability(
		"AVL-1", "BP-SELLER", "COM-WHEAT",
		shared.QuantityFromFloat(100),
		shared.MoneyFromFloat(25_000, "INR"),
		"LOC-1", nil, time.Time{}, scoreNow,
	)
	require.NoError(t, err)
	a.QualityParams = map[string]float64{"grade": 7, "moisture": 12}
	return req, a
}

func TestScorer_PerfectPairScoresOne(t *testing.T) {
	scorer := matching.NewScorer(scoringConfig(), 50)
	req, a := scoringPair(t)

	score, breakdown := scorer.Score(req, a, false)

	assert.InDelta(t, 1.0, score, 1e-9)
	assert.InDelta(t, 1.0, breakdown.Quality, 1e-9)
	assert.InDelta(t, 1.0, breakdown.Price, 1e-9)
	assert.InDelta(t, 1.0, breakdown.Delivery, 1e-9)
	assert.False(t, breakdown.WarnPenalty)
	assert.False(t, breakdown.AIBoost)
}

func TestScorer_QualityIsFractionOfSatisfiedParams(t *testing.T) {
	scorer := matching.NewScorer(scoringConfig(), 50)
	req, a := scoringPair(t)

	// One of two parameters out of band
	a.QualityParams["moisture"] = 16

	_, breakdown := scorer.Score(req, a, false)
	assert.InDelta(t, 0.5, breakdown.Quality, 1e-9)

	// Missing parameter counts as unsatisfied
	delete(a.QualityParams, "grade")
	_, breakdown = scorer.Score(req, a, false)
	assert.InDelta(t, 0.0, breakdown.Quality, 1e-9)
}

func TestScorer_PriceDecaysAboveTarget(t *testing.T) {
	scorer := matching.NewScorer(scoringConfig(), 50)
	req, a := scoringPair(t)

	// 10% over target loses 10% of the price score
	a.BasePrice = shared.MoneyFromFloat(27_500, "INR")
	_, breakdown := scorer.Score(req, a, false)
	assert.InDelta(t, 0.9, breakdown.Price, 1e-9)

	// Below target stays capped at 1.0
	a.BasePrice = shared.MoneyFromFloat(20_000, "INR")
	_, breakdown = scorer.Score(req, a, false)
	assert.InDelta(t, 1.0, breakdown.Price, 1e-9)

	// Double the target bottoms out at zero
	a.BasePrice = shared.MoneyFromFloat(50_001, "INR")
	_, breakdown = scorer.Score(req, a, false)
	assert.InDelta(t, 0.0, breakdown.Price, 1e-9)
}

func TestScorer_DeliveryDecaysWithDistance(t *testing.T) {
	scorer := matching.NewScorer(scoringConfig(), 50)
	req, a := scoringPair(t)

	// Ad-hoc delivery point ~0km from the listing's point
	point := shared.GeoPoint{Lat: 28.61, Lng: 77.20}
	req.DeliveryLocations = []order.DeliveryLocation{{Point: point, RadiusKm: 40}}
	a.LocationID = ""
	a.AdHoc = &order.AdHocLocation{Address: "Yard", Point: point}

	_, breakdown := scorer.Score(req, a, false)
	assert.InDelta(t, 1.0, breakdown.Delivery, 1e-6)

	// Registered location mismatch with no ad-hoc fallback scores zero
	req.DeliveryLocations = []order.DeliveryLocation{{LocationID: "LOC-OTHER"}}
	_, breakdown = scorer.Score(req, a, false)
	assert.InDelta(t, 0.0, breakdown.Delivery, 1e-9)
}

func TestScorer_WarnPenaltyApplies(t *testing.T) {
	scorer := matching.NewScorer(scoringConfig(), 50)
	req, a := scoringPair(t)

	score, breakdown := scorer.Score(req, a, true)

	// Risk sub-score halves and the whole composite takes the penalty:
	// (0.85 + 0.15*0.5) * 0.9
	assert.True(t, breakdown.WarnPenalty)
	assert.InDelta(t, 0.5, breakdown.Risk, 1e-9)
	assert.InDelta(t, 0.925*0.9, score, 1e-9)
}

func TestScorer_AIBoostCapsAtOne(t *testing.T) {
	scorer := matching.NewScorer(scoringConfig(), 50)
	req, a := scoringPair(t)
	a.AIRecommendedFor = []string{req.BuyerID}

	score, breakdown := scorer.Score(req, a, false)

	assert.True(t, breakdown.AIBoost)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestScorer_PerCommodityProfileOverridesDefault(t *testing.T) {
	cfg := scoringConfig()
	cfg.Commodities = map[string]config.CommodityScoring{
		"COM-WHEAT": {MinScore: 0.8},
	}
	scorer := matching.NewScorer(cfg, 50)

	assert.InDelta(t, 0.8, scorer.MinScoreFor("COM-WHEAT"), 1e-9)
	assert.InDelta(t, 0.5, scorer.MinScoreFor("COM-RICE"), 1e-9)
}
