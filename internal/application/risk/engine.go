package risk

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/risk"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
)

// Machine-readable risk codes
const (
	CodeRoleViolation    = "ROLE_VIOLATION"
	CodePartnerInactive  = "PARTNER_INACTIVE"
	CodeCircularTrading  = "CIRCULAR_TRADING"
	CodeDuplicateOrder   = "DUPLICATE_ORDER"
	CodeLowPartnerScore  = "LOW_PARTNER_SCORE"
	CodeSamePAN          = "SAME_PAN"
	CodeSameGST          = "SAME_GST"
	CodeSameMobile       = "SAME_MOBILE"
	CodeSameEmailDomain  = "SAME_EMAIL_DOMAIN"
	CodeInternalBranch   = "INTERNAL_BRANCH"
	CodeSameGroup        = "SAME_CORPORATE_GROUP"
	CodeSelfTrade        = "SELF_TRADE"
	CodeCurrencyMismatch = "CURRENCY_NOT_SUPPORTED"
	CodePhytosanitary    = "PHYTOSANITARY_ADVISORY"
	CodeQualityStandard  = "QUALITY_STANDARD_ADVISORY"
	CodePaymentTerms     = "PAYMENT_TERMS_ADVISORY"
)

// Engine runs the partner and trade risk checks. Every operation
// returns a structured decision; FAIL is authoritative and only a
// privileged manual override can unblock it.
type Engine struct {
	partners       partner.Repository
	documents      partner.DocumentProvider
	requirements   order.RequirementRepository
	availabilities order.AvailabilityRepository
	sanctions      partner.SanctionsList
	predictor      risk.DefaultPredictor
	history        risk.HistoryProvider
	cfg            config.RiskConfig
	clock          shared.Clock
	logger         zerolog.Logger
}

// NewEngine creates a risk engine
func NewEngine(
	partners partner.Repository,
	documents partner.DocumentProvider,
	requirements order.RequirementRepository,
	availabilities order.AvailabilityRepository,
	sanctions partner.SanctionsList,
	predictor risk.DefaultPredictor,
	history risk.HistoryProvider,
	cfg config.RiskConfig,
	clock shared.Clock,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		partners:       partners,
		documents:      documents,
		requirements:   requirements,
		availabilities: availabilities,
		sanctions:      sanctions,
		predictor:      predictor,
		history:        history,
		cfg:            cfg,
		clock:          clock,
		logger:         logger.With().Str("component", "risk").Logger(),
	}
}

// ValidateRole checks partner status and whether the partner type may
// hold the order side. TRADER and BROKER pass both sides here; same-day
// flips are CheckCircularTrading's job.
func (e *Engine) ValidateRole(p *partner.Partner, side partner.TradeSide) shared.Decision {
	if !p.IsActive() {
		return shared.Fail(CodePartnerInactive, "partner is not active").
			WithDetail("status", string(p.Status))
	}
	if !p.MayHoldSide(side) {
		return shared.Fail(CodeRoleViolation, string(p.Type)+" partners cannot hold "+string(side)+" orders").
			WithDetail("how_to_fix", "apply for a partner type that permits this trade side")
	}
	return shared.Pass()
}

// CheckCircularTrading fails when the partner holds an open
// opposite-side order on the same commodity created the same calendar
// day. Cross-day flips are allowed.
func (e *Engine) CheckCircularTrading(ctx context.Context, partnerID, commodityID string, side partner.TradeSide) (shared.Decision, error) {
	day := e.clock.Now()

	var count int64
	var err error
	switch side.Opposite() {
	case partner.SideBuy:
		count, err = e.requirements.CountOpenSameDay(ctx, partnerID, commodityID, day)
	default:
		count, err = e.availabilities.CountOpenSameDay(ctx, partnerID, commodityID, day)
	}
	if err != nil {
		return shared.Decision{}, fmt.Errorf("circular trading check: %w", err)
	}
	if count > 0 {
		return shared.Fail(CodeCircularTrading, "partner holds an open opposite-side order on this commodity today").
			WithDetail("open_orders", fmt.Sprintf("%d", count)), nil
	}
	return shared.Pass(), nil
}

// CheckDuplicateRequirement is the pre-flight duplicate guard. The
// authoritative enforcement is the unique index hit at write time.
func (e *Engine) CheckDuplicateRequirement(ctx context.Context, r *order.Requirement) (shared.Decision, error) {
	existing, err := e.requirements.FindActiveByDedupKey(ctx, r.DedupKey())
	if err != nil {
		return shared.Decision{}, fmt.Errorf("duplicate check: %w", err)
	}
	if existing != "" && existing != r.ID {
		return shared.Fail(CodeDuplicateOrder, "an identical open requirement already exists").
			WithDetail("existing_order_id", existing), nil
	}
	return shared.Pass(), nil
}

// CheckDuplicateAvailability mirrors CheckDuplicateRequirement for the
// sell side.
func (e *Engine) CheckDuplicateAvailability(ctx context.Context, a *order.Availability) (shared.Decision, error) {
	existing, err := e.availabilities.FindActiveByDedupKey(ctx, a.DedupKey())
	if err != nil {
		return shared.Decision{}, fmt.Errorf("duplicate check: %w", err)
	}
	if existing != "" && existing != a.ID {
		return shared.Fail(CodeDuplicateOrder, "an identical open availability already exists").
			WithDetail("existing_order_id", existing), nil
	}
	return shared.Pass(), nil
}

// AssessBuyer scores a buyer for a prospective trade value using the
// payment-performance dimension.
func (e *Engine) AssessBuyer(p *partner.Partner, tradeValue decimal.Decimal) risk.PartnerAssessment {
	return e.assessPartner(p, tradeValue, p.PaymentPerformance)
}

// AssessSeller scores a seller using the delivery-performance dimension
func (e *Engine) AssessSeller(p *partner.Partner, tradeValue decimal.Decimal) risk.PartnerAssessment {
	return e.assessPartner(p, tradeValue, p.DeliveryPerformance)
}

// assessPartner computes the weighted 0..100 partner score: credit 40
// (utilisation, shrunk when headroom cannot cover the trade value),
// rating 30 (rating x 6), performance 30 (dimension x 0.3).
func (e *Engine) assessPartner(p *partner.Partner, tradeValue decimal.Decimal, performance float64) risk.PartnerAssessment {
	credit := (1.0 - p.CreditUtilisation()) * risk.CreditWeight
	if tradeValue.IsPositive() {
		headroom := p.CreditHeadroom()
		if headroom.LessThan(tradeValue) {
			coverage, _ := headroom.Div(tradeValue).Float64()
			credit *= coverage
		}
	}
	if credit < 0 {
		credit = 0
	}

	rating := p.Rating * 6.0
	if rating > risk.RatingWeight {
		rating = risk.RatingWeight
	}
	perf := performance * 0.3
	if perf > risk.PerformanceWeight {
		perf = risk.PerformanceWeight
	}

	score := credit + rating + perf
	status := risk.StatusForScore(score)

	decision := shared.Decision{Status: status}
	if status != shared.DecisionPass {
		decision.Code = CodeLowPartnerScore
		decision.Reason = fmt.Sprintf("partner risk score %.1f", score)
		decision = decision.WithDetail("score", fmt.Sprintf("%.1f", score))
	}
	return risk.PartnerAssessment{
		PartnerID:        p.ID,
		Score:            score,
		CreditComponent:  credit,
		RatingComponent:  rating,
		PerformanceScore: perf,
		Decision:         decision,
	}
}

// CheckPartyLinks applies the fixed severities: FAIL on shared national
// or tax id, WARN on shared mobile or corporate email domain.
func (e *Engine) CheckPartyLinks(buyer, seller *partner.Partner) shared.Decision {
	if buyer.NationalID != "" && buyer.NationalID == seller.NationalID {
		return shared.Fail(CodeSamePAN, "buyer and seller share a national id")
	}
	if buyer.TaxID != "" && buyer.TaxID == seller.TaxID {
		return shared.Fail(CodeSameGST, "buyer and seller share a tax id")
	}
	if buyer.Mobile != "" && buyer.Mobile == seller.Mobile {
		return shared.Warn(CodeSameMobile, "buyer and seller share a mobile number")
	}
	if d := buyer.EmailDomain(); d != "" && d == seller.EmailDomain() {
		return shared.Warn(CodeSameEmailDomain, "buyer and seller share a corporate email domain").
			WithDetail("domain", d)
	}
	return shared.Pass()
}

// checkStructure blocks trades inside one controlled entity
func (e *Engine) checkStructure(buyer, seller *partner.Partner) shared.Decision {
	if buyer.ID == seller.ID {
		return shared.Fail(CodeSelfTrade, "buyer and seller are the same partner")
	}
	if buyer.IsBranchOf(seller) {
		return shared.Fail(CodeInternalBranch, "buyer and seller are parent and branch")
	}
	if buyer.SameCorporateGroup(seller) {
		return shared.Fail(CodeSameGroup, "buyer and seller belong to one corporate group")
	}
	return shared.Pass()
}

// AssessTradeRisk combines both partner assessments, party links and
// the corporate-structure check. The overall status is the worst
// contributor; a FAIL anywhere is final.
func (e *Engine) AssessTradeRisk(ctx context.Context, buyerID, sellerID string, tradeValue decimal.Decimal) (risk.TradeAssessment, error) {
	buyer, err := e.partners.FindByID(ctx, buyerID)
	if err != nil {
		return risk.TradeAssessment{}, err
	}
	seller, err := e.partners.FindByID(ctx, sellerID)
	if err != nil {
		return risk.TradeAssessment{}, err
	}

	assessment := risk.TradeAssessment{
		Buyer:      e.AssessBuyer(buyer, tradeValue),
		Seller:     e.AssessSeller(seller, tradeValue),
		PartyLinks: e.CheckPartyLinks(buyer, seller),
		Structure:  e.checkStructure(buyer, seller),
	}

	assessment.Overall = worstDecision(
		assessment.Buyer.Decision,
		assessment.Seller.Decision,
		assessment.PartyLinks,
		assessment.Structure,
	)

	if assessment.Overall.Status == shared.DecisionFail {
		e.logger.Info().
			Str("buyer_id", buyerID).
			Str("seller_id", sellerID).
			Str("code", assessment.Overall.Code).
			Msg("trade risk blocked")
	}
	return assessment, nil
}

// PredictDefault runs the default-risk path. The injected predictor may
// be an external model or the rule-based fallback.
func (e *Engine) PredictDefault(ctx context.Context, p *partner.Partner) (*risk.DefaultPrediction, error) {
	count, disputeRate, avgDelay, avgValue, err := e.history.TradeHistory(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("trade history: %w", err)
	}
	features := risk.PredictionFeatures{
		CreditUtilisation:  p.CreditUtilisation(),
		Rating:             p.Rating,
		PaymentPerformance: p.PaymentPerformance,
		TradeHistoryCount:  count,
		DisputeRate:        disputeRate,
		AvgPaymentDelay:    avgDelay,
		AvgTradeValue:      avgValue,
	}
	return e.predictor.PredictDefault(ctx, p.ID, features)
}

// MonitorExposure classifies the partner's credit-limit utilisation
func (e *Engine) MonitorExposure(p *partner.Partner) risk.ExposureZone {
	return risk.ZoneForUtilisation(p.CreditUtilisation())
}

// worstDecision returns the most severe decision, keeping its code and
// reason. Ties keep the earliest argument, so contributor order encodes
// precedence.
func worstDecision(decisions ...shared.Decision) shared.Decision {
	worst := shared.Pass()
	for _, d := range decisions {
		if shared.WorstOf(worst.Status, d.Status) == d.Status && d.Status != worst.Status {
			worst = d
		}
	}
	return worst
}
