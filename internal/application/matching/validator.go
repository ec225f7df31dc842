package matching

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mandiworks/tradecore-go/internal/application/capability"
	apprisk "github.com/mandiworks/tradecore-go/internal/application/risk"
	"github.com/mandiworks/tradecore-go/internal/domain/commodity"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/risk"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
)

// Validation rejection and warning codes
const (
	CodeCommodityMismatch   = "COMMODITY_MISMATCH"
	CodeOrderNotOpen        = "ORDER_NOT_OPEN"
	CodeOrderExpired        = "ORDER_EXPIRED"
	CodeNoRemainingQuantity = "NO_REMAINING_QUANTITY"
	CodePriceAboveMax       = "PRICE_ABOVE_MAX"
	CodeAIBudgetFlag        = "AI_BUDGET_FLAG"
	CodeAIPriceAboveSuggest = "AI_PRICE_ABOVE_SUGGESTED"
	CodeAILowConfidence     = "AI_LOW_CONFIDENCE"
)

// aiPriceTolerance is how far above the AI-suggested maximum the base
// price may sit before the advisory warning attaches.
var aiPriceTolerance = decimal.NewFromFloat(1.10)

// ValidationResult is the outcome of the candidate validator. A single
// blocking reason invalidates the pair; warnings ride along on the match.
type ValidationResult struct {
	Valid           bool
	Reasons         []shared.Decision
	Warnings        []shared.Decision
	CapabilityCodes []string
	Risk            shared.Decision
	Assessment      risk.TradeAssessment
	// RiskBlocked marks rejections from the capability, risk or
	// compliance checks, as opposed to plain order incompatibility.
	// These are surfaced as RiskBlock events and audited.
	RiskBlocked bool
}

// RiskWarn reports whether any risk dimension carries a WARN; the score
// penalty keys off this.
func (v ValidationResult) RiskWarn() bool {
	if v.Assessment.HasWarning() {
		return true
	}
	for _, w := range v.Warnings {
		if w.Status == shared.DecisionWarn {
			return true
		}
	}
	return false
}

// Validator runs the candidate checks in order, fail-fast: hard
// requirements, capability on both sides, bilateral risk (insider,
// party links, partner scores), international compliance, then the
// non-blocking AI advisories.
type Validator struct {
	resolver   *capability.Resolver
	riskEngine *apprisk.Engine
	compliance *apprisk.Compliance
	cfg        config.RiskConfig
	clock      shared.Clock
	logger     zerolog.Logger
}

// NewValidator creates a match validator
func NewValidator(resolver *capability.Resolver, riskEngine *apprisk.Engine, compliance *apprisk.Compliance, cfg config.RiskConfig, clock shared.Clock, logger zerolog.Logger) *Validator {
	return &Validator{
		resolver:   resolver,
		riskEngine: riskEngine,
		compliance: compliance,
		cfg:        cfg,
		clock:      clock,
		logger:     logger.With().Str("component", "validator").Logger(),
	}
}

// Validate checks one candidate pair. Loaded parties and commodity are
// passed in; the orchestrator caches them across candidates.
func (v *Validator) Validate(ctx context.Context, req *order.Requirement, a *order.Availability, buyer, seller *partner.Partner, com *commodity.Commodity) (ValidationResult, error) {
	result := ValidationResult{}

	if reason := v.hardRequirements(req, a); reason != nil {
		result.Reasons = append(result.Reasons, *reason)
		return result, nil
	}

	sellerCap := v.resolver.Resolve(ctx, seller, partner.SideSell, buyer.PrimaryCountry, com)
	if sellerCap.Code != "" {
		result.CapabilityCodes = append(result.CapabilityCodes, sellerCap.Code)
	}
	if sellerCap.IsBlocking() {
		result.Reasons = append(result.Reasons, sellerCap)
		result.RiskBlocked = true
		return result, nil
	}
	buyerCap := v.resolver.Resolve(ctx, buyer, partner.SideBuy, seller.PrimaryCountry, com)
	if buyerCap.Code != "" {
		result.CapabilityCodes = append(result.CapabilityCodes, buyerCap.Code)
	}
	if buyerCap.IsBlocking() {
		result.Reasons = append(result.Reasons, buyerCap)
		result.RiskBlocked = true
		return result, nil
	}

	tradeValue := tradeValueOf(req, a)
	assessment, err := v.riskEngine.AssessTradeRisk(ctx, buyer.ID, seller.ID, tradeValue)
	if err != nil {
		return result, err
	}
	result.Assessment = assessment
	result.Risk = assessment.Overall
	if assessment.Overall.IsBlocking() {
		result.Reasons = append(result.Reasons, assessment.Overall)
		result.RiskBlocked = true
		return result, nil
	}

	blocking, advisories := v.compliance.CheckInternational(ctx, buyer, seller, com, a, tradeValue)
	if blocking.IsBlocking() {
		result.Reasons = append(result.Reasons, blocking)
		result.RiskBlocked = true
		return result, nil
	}
	result.Warnings = append(result.Warnings, advisories...)

	result.Warnings = append(result.Warnings, v.aiAdvisories(req, a)...)

	result.Valid = true
	return result, nil
}

// hardRequirements returns the first blocking reason, or nil
func (v *Validator) hardRequirements(req *order.Requirement, a *order.Availability) *shared.Decision {
	now := v.clock.Now()

	if req.CommodityID != a.CommodityID {
		d := shared.Fail(CodeCommodityMismatch, "orders reference different commodities")
		return &d
	}
	if !req.IsOpen() || !a.IsOpen() {
		d := shared.Fail(CodeOrderNotOpen, "both orders must be open")
		return &d
	}
	if req.IsExpiredAt(now) || a.IsExpiredAt(now) {
		d := shared.Fail(CodeOrderExpired, "an order's validity has lapsed")
		return &d
	}
	if !req.RemainingQuantity().IsPositive() || !a.RemainingQuantity.IsPositive() {
		d := shared.Fail(CodeNoRemainingQuantity, "no remaining quantity to allocate")
		return &d
	}
	if req.MaxPrice != nil && a.BasePrice.Amount.GreaterThan(req.MaxPrice.Amount) {
		d := shared.Fail(CodePriceAboveMax, "base price exceeds the buyer's maximum").
			WithDetail("base_price", a.BasePrice.Amount.String()).
			WithDetail("max_price", req.MaxPrice.Amount.String())
		return &d
	}
	return nil
}

// aiAdvisories attaches the non-blocking advisory warnings
func (v *Validator) aiAdvisories(req *order.Requirement, a *order.Availability) []shared.Decision {
	var warnings []shared.Decision
	if req.AIBudgetFlag {
		warnings = append(warnings, shared.Warn(CodeAIBudgetFlag, "buyer budget flagged as unrealistic by the advisory signal"))
	}
	if a.AISuggestedMaxPrice != nil {
		ceiling := a.AISuggestedMaxPrice.Amount.Mul(aiPriceTolerance)
		if a.BasePrice.Amount.GreaterThan(ceiling) {
			warnings = append(warnings, shared.Warn(CodeAIPriceAboveSuggest, "base price is well above the advisory suggestion").
				WithDetail("suggested_max", a.AISuggestedMaxPrice.Amount.String()))
		}
	}
	if a.AIAdvisoryConfidence > 0 && a.AIAdvisoryConfidence < v.cfg.AdvisoryConfidenceFloor {
		warnings = append(warnings, shared.Warn(CodeAILowConfidence, "advisory signal confidence is below the floor"))
	}
	return warnings
}

// tradeValueOf estimates the candidate's value: base price times the
// allocatable quantity.
func tradeValueOf(req *order.Requirement, a *order.Availability) decimal.Decimal {
	qty := req.RemainingQuantity().Min(a.RemainingQuantity)
	return a.BasePrice.Amount.Mul(qty.Value)
}
