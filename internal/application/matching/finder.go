package matching

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/domain/audit"
	"github.com/mandiworks/tradecore-go/internal/domain/commodity"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/domain/trade"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
)

// Candidate is one validated, scored counterpart of a driving order
type Candidate struct {
	Requirement  *order.Requirement
	Availability *order.Availability
	Score        float64
	Breakdown    trade.ScoreBreakdown
	Validation   ValidationResult
}

// Finder resolves the counter-side candidate set of a driving order:
// location prefilter, validation, scoring, min-score gate, then a
// stable ranking by score descending and age ascending.
type Finder struct {
	requirements   order.RequirementRepository
	availabilities order.AvailabilityRepository
	partners       partner.Repository
	commodities    commodity.Repository
	validator      *Validator
	scorer         *Scorer
	events         outbox.Repository
	auditLog       audit.Repository
	cfg            config.MatchingConfig
	clock          shared.Clock
	logger         zerolog.Logger
}

// NewFinder creates a candidate finder
func NewFinder(
	requirements order.RequirementRepository,
	availabilities order.AvailabilityRepository,
	partners partner.Repository,
	commodities commodity.Repository,
	validator *Validator,
	scorer *Scorer,
	events outbox.Repository,
	auditLog audit.Repository,
	cfg config.MatchingConfig,
	clock shared.Clock,
	logger zerolog.Logger,
) *Finder {
	return &Finder{
		requirements:   requirements,
		availabilities: availabilities,
		partners:       partners,
		commodities:    commodities,
		validator:      validator,
		scorer:         scorer,
		events:         events,
		auditLog:       auditLog,
		cfg:            cfg,
		clock:          clock,
		logger:         logger.With().Str("component", "finder").Logger(),
	}
}

// CandidatesForRequirement returns the ranked sell-side candidates of a
// buy order.
func (f *Finder) CandidatesForRequirement(ctx context.Context, req *order.Requirement) ([]Candidate, error) {
	buyer, err := f.partners.FindByID(ctx, req.BuyerID)
	if err != nil {
		return nil, err
	}
	com, err := f.commodities.FindByID(ctx, req.CommodityID)
	if err != nil {
		return nil, err
	}

	listings, err := f.availabilities.FindByLocationAndCommodity(ctx, req.CommodityID, req.DeliveryLocations, f.cfg.MaxDeliveryKm)
	if err != nil {
		return nil, fmt.Errorf("location prefilter: %w", err)
	}

	partnersSeen := map[string]*partner.Partner{buyer.ID: buyer}
	candidates := make([]Candidate, 0, len(listings))
	for _, a := range listings {
		seller, err := f.partnerCached(ctx, partnersSeen, a.SellerID)
		if err != nil {
			return nil, err
		}
		c, ok, err := f.evaluate(ctx, req, a, buyer, seller, com)
		if err != nil {
			return nil, err
		}
		if ok {
			candidates = append(candidates, c)
		}
	}
	rank(candidates)
	return candidates, nil
}

// CandidatesForAvailability returns the ranked buy-side candidates of a
// sell order. Each surviving candidate pairs the found requirement with
// the driving availability.
func (f *Finder) CandidatesForAvailability(ctx context.Context, a *order.Availability) ([]Candidate, error) {
	seller, err := f.partners.FindByID(ctx, a.SellerID)
	if err != nil {
		return nil, err
	}
	com, err := f.commodities.FindByID(ctx, a.CommodityID)
	if err != nil {
		return nil, err
	}

	reqs, err := f.requirements.FindAcceptingLocation(ctx, a.CommodityID, a.LocationID, a.AdHoc, f.cfg.MaxDeliveryKm)
	if err != nil {
		return nil, fmt.Errorf("location prefilter: %w", err)
	}

	partnersSeen := map[string]*partner.Partner{seller.ID: seller}
	candidates := make([]Candidate, 0, len(reqs))
	for _, req := range reqs {
		buyer, err := f.partnerCached(ctx, partnersSeen, req.BuyerID)
		if err != nil {
			return nil, err
		}
		c, ok, err := f.evaluate(ctx, req, a, buyer, seller, com)
		if err != nil {
			return nil, err
		}
		if ok {
			candidates = append(candidates, c)
		}
	}
	rank(candidates)
	return candidates, nil
}

// evaluate validates and scores one pair; ok is false for invalid or
// below-threshold candidates.
func (f *Finder) evaluate(ctx context.Context, req *order.Requirement, a *order.Availability, buyer, seller *partner.Partner, com *commodity.Commodity) (Candidate, bool, error) {
	validation, err := f.validator.Validate(ctx, req, a, buyer, seller, com)
	if err != nil {
		return Candidate{}, false, err
	}
	if !validation.Valid {
		f.logger.Debug().
			Str("requirement_id", req.ID).
			Str("availability_id", a.ID).
			Str("code", firstCode(validation.Reasons)).
			Msg("candidate rejected")
		if validation.RiskBlocked {
			if err := f.recordRiskBlock(ctx, req, a, validation.Reasons); err != nil {
				return Candidate{}, false, err
			}
		}
		return Candidate{}, false, nil
	}

	score, breakdown := f.scorer.Score(req, a, validation.RiskWarn())
	if score < f.scorer.MinScoreFor(req.CommodityID) {
		f.logger.Debug().
			Str("requirement_id", req.ID).
			Str("availability_id", a.ID).
			Float64("score", score).
			Msg("candidate below min score")
		return Candidate{}, false, nil
	}

	return Candidate{
		Requirement:  req,
		Availability: a,
		Score:        score,
		Breakdown:    breakdown,
		Validation:   validation,
	}, true, nil
}

// recordRiskBlock publishes the blocked pairing and leaves an audit
// trail. Plain incompatibilities never reach here; only capability,
// risk and compliance denials do.
func (f *Finder) recordRiskBlock(ctx context.Context, req *order.Requirement, a *order.Availability, reasons []shared.Decision) error {
	now := f.clock.Now()
	block := reasons[len(reasons)-1]
	record, err := outbox.NewRecord(outbox.AggregateRequirement, req.ID, outbox.EventRiskBlock, outbox.RiskEventPayload{
		RequirementID:  req.ID,
		AvailabilityID: a.ID,
		BuyerID:        req.BuyerID,
		SellerID:       a.SellerID,
		Code:           block.Code,
		Reason:         block.Reason,
	}, now)
	if err != nil {
		return err
	}
	if err := f.events.Append(ctx, record); err != nil {
		return fmt.Errorf("record risk block: %w", err)
	}
	return f.auditLog.Add(ctx, audit.New("", audit.ActionRiskBlocked, "requirement", req.ID, nil,
		map[string]any{"availability_id": a.ID, "code": block.Code, "reason": block.Reason}, now))
}

func (f *Finder) partnerCached(ctx context.Context, cache map[string]*partner.Partner, id string) (*partner.Partner, error) {
	if p, ok := cache[id]; ok {
		return p, nil
	}
	p, err := f.partners.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = p
	return p, nil
}

// rank sorts by score descending with the availability's age as a
// stable tie-break.
func rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Availability.CreatedAt.Before(candidates[j].Availability.CreatedAt)
	})
}

func firstCode(decisions []shared.Decision) string {
	if len(decisions) == 0 {
		return ""
	}
	return decisions[0].Code
}
