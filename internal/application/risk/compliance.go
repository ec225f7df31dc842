package risk

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mandiworks/tradecore-go/internal/application/capability"
	"github.com/mandiworks/tradecore-go/internal/domain/commodity"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
)

// Compliance runs the international trade chain in fixed order:
// sanctions, export/import license, currency, then the non-blocking
// advisories (phytosanitary, quality standard, payment terms). The
// first FAIL short-circuits; advisories accumulate.
type Compliance struct {
	resolver  *capability.Resolver
	documents partner.DocumentProvider
	sanctions partner.SanctionsList
	cfg       config.RiskConfig
	clock     shared.Clock
	logger    zerolog.Logger
}

// NewCompliance creates the international compliance checker
func NewCompliance(resolver *capability.Resolver, documents partner.DocumentProvider, sanctions partner.SanctionsList, cfg config.RiskConfig, clock shared.Clock, logger zerolog.Logger) *Compliance {
	return &Compliance{
		resolver:  resolver,
		documents: documents,
		sanctions: sanctions,
		cfg:       cfg,
		clock:     clock,
		logger:    logger.With().Str("component", "compliance").Logger(),
	}
}

// CheckInternational evaluates the chain for a candidate pair. Domestic
// pairs pass immediately. The returned decision is the blocking verdict;
// advisories carry the accumulated warnings.
func (c *Compliance) CheckInternational(ctx context.Context, buyer, seller *partner.Partner, com *commodity.Commodity, a *order.Availability, tradeValue decimal.Decimal) (shared.Decision, []shared.Decision) {
	if buyer.PrimaryCountry == seller.PrimaryCountry {
		return shared.Pass(), nil
	}

	if c.sanctions.IsSanctioned(buyer.PrimaryCountry) {
		return shared.Fail(capability.CodeSanctionedCountry, "buyer country is sanctioned").
			WithDetail("country", buyer.PrimaryCountry), nil
	}
	if c.sanctions.IsSanctioned(seller.PrimaryCountry) {
		return shared.Fail(capability.CodeSanctionedCountry, "seller country is sanctioned").
			WithDetail("country", seller.PrimaryCountry), nil
	}

	if d := c.resolver.Resolve(ctx, seller, partner.SideSell, buyer.PrimaryCountry, com); d.IsBlocking() {
		return d, nil
	}
	if d := c.resolver.Resolve(ctx, buyer, partner.SideBuy, seller.PrimaryCountry, com); d.IsBlocking() {
		return d, nil
	}

	if !com.SupportsCurrency(a.BasePrice.Currency) {
		return shared.Fail(CodeCurrencyMismatch, "currency "+a.BasePrice.Currency+" is not supported for this commodity").
			WithDetail("commodity_id", com.ID), nil
	}

	var advisories []shared.Decision

	if com.ExportRegulations.PhytosanitaryRequired {
		docs, err := c.documents.VerifiedDocuments(ctx, seller.ID)
		if err != nil {
			c.logger.Error().Err(err).Str("partner_id", seller.ID).Msg("document lookup failed")
		}
		if err != nil || !docs.HasUsable(partner.DocPhytosanitary, c.clock.Now()) {
			advisories = append(advisories, shared.Warn(CodePhytosanitary,
				"phytosanitary certificate recommended for this export"))
		}
	}

	if warn := qualityStandardAdvisory(com, a); warn != nil {
		advisories = append(advisories, *warn)
	}

	if c.cfg.HighValueThreshold > 0 {
		threshold := decimal.NewFromFloat(c.cfg.HighValueThreshold)
		if tradeValue.GreaterThan(threshold) {
			advisories = append(advisories, shared.Warn(CodePaymentTerms,
				"high-value international trade; letter of credit recommended").
				WithDetail("trade_value", tradeValue.String()))
		}
	}

	return shared.Pass(), advisories
}

// qualityStandardAdvisory warns when the listing omits or misses a
// declared quality standard of the commodity.
func qualityStandardAdvisory(com *commodity.Commodity, a *order.Availability) *shared.Decision {
	for param, rng := range com.QualityStandards {
		value, ok := a.QualityParams[param]
		if !ok {
			d := shared.Warn(CodeQualityStandard, "listing omits quality parameter "+param)
			return &d
		}
		if !rng.Contains(value) {
			d := shared.Warn(CodeQualityStandard,
				fmt.Sprintf("quality parameter %s=%.2f is outside the standard range", param, value))
			return &d
		}
	}
	return nil
}
