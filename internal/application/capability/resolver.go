package capability

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/domain/commodity"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// Machine-readable capability denial codes
const (
	CodeSanctionedCountry     = "SANCTIONED_COUNTRY"
	CodeRestrictedDestination = "RESTRICTED_DESTINATION"
	CodeServiceProvider       = "SERVICE_PROVIDER_BLOCKED"
	CodeForeignDomestic       = "FOREIGN_ENTITY_DOMESTIC"
	CodeGSTMissing            = "GST_MISSING"
	CodeGSTExpired            = "GST_EXPIRED"
	CodePANMissing            = "PAN_MISSING"
	CodePANExpired            = "PAN_EXPIRED"
	CodeIECMissing            = "IEC_MISSING"
	CodeIECExpired            = "IEC_EXPIRED"
	CodeExportLicenseMissing  = "EXPORT_LICENSE_MISSING"
	CodeExportLicenseExpired  = "EXPORT_LICENSE_EXPIRED"
	CodeImportLicenseMissing  = "IMPORT_LICENSE_MISSING"
	CodeImportLicenseExpired  = "IMPORT_LICENSE_EXPIRED"
	CodeDestinationNotCovered = "DESTINATION_NOT_COVERED"
	CodeDocumentsUnavailable  = "DOCUMENTS_UNAVAILABLE"
)

// homeCountry anchors the domestic regulator rule set. Domestic trades
// inside it require GST+PAN; its residents need IEC for cross-border,
// and foreign entities cannot trade domestically inside it.
const homeCountry = "IN"

// Resolver answers whether a partner may conduct a trade side against a
// given country, from their verified documents and partner-type rules.
// The answer is a three-state decision: PASS (allowed), WARN, or FAIL
// (denied) with a machine code and a human reason kept for audit.
type Resolver struct {
	documents partner.DocumentProvider
	sanctions partner.SanctionsList
	clock     shared.Clock
	logger    zerolog.Logger
}

// NewResolver creates a capability resolver
func NewResolver(documents partner.DocumentProvider, sanctions partner.SanctionsList, clock shared.Clock, logger zerolog.Logger) *Resolver {
	return &Resolver{
		documents: documents,
		sanctions: sanctions,
		clock:     clock,
		logger:    logger.With().Str("component", "capability").Logger(),
	}
}

// Resolve evaluates the rule chain in fixed precedence order: sanctions,
// restricted destination, partner type, then document rules. The first
// denial wins; later rules never soften an earlier one.
func (r *Resolver) Resolve(ctx context.Context, p *partner.Partner, side partner.TradeSide, tradeCountry string, c *commodity.Commodity) shared.Decision {
	decision := r.resolve(ctx, p, side, tradeCountry, c)
	if decision.Status != shared.DecisionPass {
		r.logger.Debug().
			Str("partner_id", p.ID).
			Str("side", string(side)).
			Str("trade_country", tradeCountry).
			Str("status", string(decision.Status)).
			Str("code", decision.Code).
			Msg("capability restricted")
	}
	return decision
}

func (r *Resolver) resolve(ctx context.Context, p *partner.Partner, side partner.TradeSide, tradeCountry string, c *commodity.Commodity) shared.Decision {
	if r.sanctions.IsSanctioned(tradeCountry) {
		return shared.Fail(CodeSanctionedCountry, "trades with "+tradeCountry+" are blocked by the sanctions list")
	}

	if c != nil {
		regs := c.ImportRegulations
		if side == partner.SideSell {
			regs = c.ExportRegulations
		}
		if regs.IsRestricted(tradeCountry) {
			return shared.Fail(CodeRestrictedDestination, "commodity trade with "+tradeCountry+" is restricted").
				WithDetail("commodity_id", c.ID)
		}
	}

	if p.Type == partner.TypeServiceProvider {
		return shared.Fail(CodeServiceProvider, "service providers cannot hold trade orders")
	}

	docs, err := r.documents.VerifiedDocuments(ctx, p.ID)
	if err != nil {
		r.logger.Error().Err(err).Str("partner_id", p.ID).Msg("document lookup failed")
		return shared.Fail(CodeDocumentsUnavailable, "could not load partner documents")
	}
	now := r.clock.Now()

	if p.PrimaryCountry == tradeCountry {
		return r.resolveDomestic(p, tradeCountry, docs, now)
	}
	return r.resolveCrossBorder(p, side, tradeCountry, c, docs, now)
}

// resolveDomestic applies the regulator rule set of the trade country.
// Only the home country's rules are modelled; other domestic markets
// pass with no document demands.
func (r *Resolver) resolveDomestic(p *partner.Partner, tradeCountry string, docs *partner.DocumentSet, now time.Time) shared.Decision {
	if tradeCountry != homeCountry {
		return shared.Pass()
	}
	if d := requireDocument(docs, partner.DocGST, now, CodeGSTMissing, CodeGSTExpired); d != nil {
		return *d
	}
	if d := requireDocument(docs, partner.DocPAN, now, CodePANMissing, CodePANExpired); d != nil {
		return *d
	}
	return shared.Pass()
}

// resolveCrossBorder applies the license rules for international trades
func (r *Resolver) resolveCrossBorder(p *partner.Partner, side partner.TradeSide, tradeCountry string, c *commodity.Commodity, docs *partner.DocumentSet, now time.Time) shared.Decision {
	// Foreign entities never trade domestically inside the home market;
	// a foreign partner facing a home-country counterparty is the
	// cross-border case and falls through to the license rules.
	if p.PrimaryCountry != homeCountry && tradeCountry != homeCountry {
		return shared.Fail(CodeForeignDomestic, "foreign entities may only trade cross-border with "+homeCountry)
	}

	if p.PrimaryCountry == homeCountry {
		if d := requireDocument(docs, partner.DocIEC, now, CodeIECMissing, CodeIECExpired); d != nil {
			return *d
		}
	}

	licenseType := partner.DocForeignImportLicense
	missingCode, expiredCode := CodeImportLicenseMissing, CodeImportLicenseExpired
	if side == partner.SideSell {
		licenseType = partner.DocForeignExportLicense
		missingCode, expiredCode = CodeExportLicenseMissing, CodeExportLicenseExpired
	}

	licenseRequired := p.PrimaryCountry != homeCountry
	if c != nil {
		regs := c.ImportRegulations
		if side == partner.SideSell {
			regs = c.ExportRegulations
		}
		licenseRequired = licenseRequired || regs.LicenseRequired
	}
	if !licenseRequired {
		return shared.Pass()
	}

	license := docs.UsableOfType(licenseType, now)
	if license == nil {
		if docs.HasExpiredOnly(licenseType, now) {
			return shared.Fail(expiredCode, "the "+string(licenseType)+" document has expired").
				WithDetail("how_to_fix", "renew the license and get it verified")
		}
		return shared.Fail(missingCode, "a verified "+string(licenseType)+" document is required").
			WithDetail("how_to_fix", "upload the license and get it verified")
	}
	if !license.CoversCountry(tradeCountry) {
		return shared.Fail(CodeDestinationNotCovered, "the license does not cover "+tradeCountry).
			WithDetail("document_id", license.ID)
	}
	return shared.Pass()
}

// requireDocument returns a denial when no usable document of the type
// exists, distinguishing expired from missing, or nil when satisfied.
func requireDocument(docs *partner.DocumentSet, docType partner.DocumentType, now time.Time, missingCode, expiredCode string) *shared.Decision {
	if docs.HasUsable(docType, now) {
		return nil
	}
	var d shared.Decision
	if docs.HasExpiredOnly(docType, now) {
		d = shared.Fail(expiredCode, "the "+string(docType)+" document has expired").
			WithDetail("how_to_fix", "renew the "+string(docType)+" document and get it verified")
	} else {
		d = shared.Fail(missingCode, "a verified "+string(docType)+" document is required").
			WithDetail("how_to_fix", "upload the "+string(docType)+" document and get it verified")
	}
	return &d
}
