package matching

import (
	"math"

	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/trade"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
)

// Scorer produces the composite match score in [0,1] from the four
// weighted sub-scores, then applies the WARN penalty and the AI boost.
// Profiles are resolved per commodity; a profile change never rescores
// existing matches because the breakdown is persisted on the match.
type Scorer struct {
	cfg   config.ScoringConfig
	maxKm float64
}

// NewScorer creates a scorer with the given profiles
func NewScorer(cfg config.ScoringConfig, maxKm float64) *Scorer {
	return &Scorer{cfg: cfg, maxKm: maxKm}
}

// Score computes the composite score of a candidate pair. riskWarn
// applies the global WARN penalty; callers must short-circuit FAIL
// before scoring.
func (s *Scorer) Score(req *order.Requirement, a *order.Availability, riskWarn bool) (float64, trade.ScoreBreakdown) {
	profile := s.cfg.ProfileFor(req.CommodityID)

	breakdown := trade.ScoreBreakdown{
		Quality:  qualityScore(req, a),
		Price:    priceScore(req, a),
		Delivery: s.deliveryScore(req, a),
		Risk:     1.0,
	}
	if riskWarn {
		breakdown.Risk = 0.5
	}

	composite := profile.Weights.Quality*breakdown.Quality +
		profile.Weights.Price*breakdown.Price +
		profile.Weights.Delivery*breakdown.Delivery +
		profile.Weights.Risk*breakdown.Risk

	if riskWarn {
		composite *= s.cfg.WarnPenalty
		breakdown.WarnPenalty = true
	}
	if a.RecommendedFor(req.BuyerID) {
		composite *= s.cfg.AIBoost
		breakdown.AIBoost = true
	}
	if composite > 1.0 {
		composite = 1.0
	}
	if composite < 0 {
		composite = 0
	}
	return composite, breakdown
}

// MinScoreFor returns the proposal gate for a commodity
func (s *Scorer) MinScoreFor(commodityID string) float64 {
	return s.cfg.ProfileFor(commodityID).MinScore
}

// qualityScore is the fraction of required quality parameters the
// listing satisfies. Out-of-range and missing parameters contribute 0;
// no requirements means a full score.
func qualityScore(req *order.Requirement, a *order.Availability) float64 {
	if len(req.AcceptedQuality) == 0 {
		return 1.0
	}
	satisfied := 0
	for param, rng := range req.AcceptedQuality {
		value, ok := a.QualityParams[param]
		if ok && rng.Contains(value) {
			satisfied++
		}
	}
	return float64(satisfied) / float64(len(req.AcceptedQuality))
}

// priceScore rewards listings at or below the target price, decaying
// linearly as the premium over target grows.
func priceScore(req *order.Requirement, a *order.Availability) float64 {
	target, _ := req.TargetPrice.Amount.Float64()
	base, _ := a.BasePrice.Amount.Float64()
	if target <= 0 {
		return 0
	}
	score := 1.0 - (base-target)/target
	if score > 1.0 {
		return 1.0
	}
	if score < 0 {
		return 0
	}
	return score
}

// deliveryScore is 1.0 for a registered-location hit and decays
// linearly with distance for ad-hoc points, reaching 0 at the effective
// radius. The best-scoring delivery set element wins.
func (s *Scorer) deliveryScore(req *order.Requirement, a *order.Availability) float64 {
	best := 0.0
	for _, loc := range req.DeliveryLocations {
		if loc.IsRegistered() {
			if a.LocationID != "" && a.LocationID == loc.LocationID {
				return 1.0
			}
			continue
		}
		if a.AdHoc == nil {
			continue
		}
		radius := loc.RadiusKm
		if radius <= 0 || radius > s.maxKm {
			radius = s.maxKm
		}
		if radius <= 0 {
			continue
		}
		distance := loc.Point.DistanceKm(a.AdHoc.Point)
		score := 1.0 - distance/radius
		best = math.Max(best, math.Max(0, score))
	}
	return best
}
