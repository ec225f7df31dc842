package risk

import (
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// Score band boundaries for partner assessments
const (
	passThreshold = 80.0
	warnThreshold = 60.0
)

// Component weights of the partner risk score
const (
	CreditWeight      = 40.0
	RatingWeight      = 30.0
	PerformanceWeight = 30.0
)

// PartnerAssessment is the weighted risk score of one partner for one
// prospective trade value.
type PartnerAssessment struct {
	PartnerID        string
	Score            float64 // 0..100
	CreditComponent  float64 // 0..40
	RatingComponent  float64 // 0..30
	PerformanceScore float64 // 0..30
	Decision         shared.Decision
}

// StatusForScore maps a 0..100 risk score onto the decision bands:
// >=80 PASS, 60..79 WARN, <60 FAIL.
func StatusForScore(score float64) shared.DecisionStatus {
	switch {
	case score >= passThreshold:
		return shared.DecisionPass
	case score >= warnThreshold:
		return shared.DecisionWarn
	default:
		return shared.DecisionFail
	}
}

// TradeAssessment combines both partner assessments, party links and the
// corporate-structure check into one decision for a candidate pair.
type TradeAssessment struct {
	Buyer      PartnerAssessment
	Seller     PartnerAssessment
	PartyLinks shared.Decision
	Structure  shared.Decision
	Overall    shared.Decision
}

// HasWarning reports whether any contributor carries a WARN; the match
// score penalty keys off this.
func (t TradeAssessment) HasWarning() bool {
	return t.Overall.Status == shared.DecisionWarn ||
		t.Buyer.Decision.Status == shared.DecisionWarn ||
		t.Seller.Decision.Status == shared.DecisionWarn ||
		t.PartyLinks.Status == shared.DecisionWarn
}

// ExposureZone classifies credit-limit utilisation
type ExposureZone string

const (
	ExposureGreen  ExposureZone = "GREEN"  // <60%
	ExposureYellow ExposureZone = "YELLOW" // 60-85%
	ExposureRed    ExposureZone = "RED"    // >85%
)

// ZoneForUtilisation maps a utilisation fraction onto an exposure zone
func ZoneForUtilisation(utilisation float64) ExposureZone {
	switch {
	case utilisation > 0.85:
		return ExposureRed
	case utilisation >= 0.60:
		return ExposureYellow
	default:
		return ExposureGreen
	}
}
