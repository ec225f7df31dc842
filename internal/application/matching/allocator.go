package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/adapters/metrics"
	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/domain/audit"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/domain/trade"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
	"github.com/mandiworks/tradecore-go/pkg/utils"
)

// errCandidateSkipped aborts a candidate's transaction without failing
// the whole allocation pass.
var errCandidateSkipped = errors.New("candidate skipped")

// Allocator attempts atomic allocation on the ranked top-N candidates.
// Each allocation is one transaction: re-read the availability under a
// row lock, decrement stock, advance the requirement, persist the match
// and enqueue MatchProposed. Partial fills are first-class; one
// requirement may accrue matches across several availabilities.
type Allocator struct {
	tx             common.Tx
	requirements   order.RequirementRepository
	availabilities order.AvailabilityRepository
	matches        trade.MatchRepository
	events         outbox.Repository
	auditLog       audit.Repository
	cfg            config.MatchingConfig
	clock          shared.Clock
	logger         zerolog.Logger
}

// NewAllocator creates an allocator
func NewAllocator(
	tx common.Tx,
	requirements order.RequirementRepository,
	availabilities order.AvailabilityRepository,
	matches trade.MatchRepository,
	events outbox.Repository,
	auditLog audit.Repository,
	cfg config.MatchingConfig,
	clock shared.Clock,
	logger zerolog.Logger,
) *Allocator {
	return &Allocator{
		tx:             tx,
		requirements:   requirements,
		availabilities: availabilities,
		matches:        matches,
		events:         events,
		auditLog:       auditLog,
		cfg:            cfg,
		clock:          clock,
		logger:         logger.With().Str("component", "allocator").Logger(),
	}
}

// AllocateTopN walks the ranked candidates and allocates until TopN
// matches were created, the requirement filled up, or candidates ran
// out. Version conflicts retry with exponential backoff; exhausted
// candidates are skipped, never retried across passes.
func (al *Allocator) AllocateTopN(ctx context.Context, candidates []Candidate) ([]*trade.Match, error) {
	created := make([]*trade.Match, 0, al.cfg.TopN)
	for _, candidate := range candidates {
		if len(created) >= al.cfg.TopN {
			break
		}

		suppressed, err := al.suppressed(ctx, candidate)
		if err != nil {
			return created, err
		}
		if suppressed {
			continue
		}

		m, err := al.allocateWithRetry(ctx, candidate)
		if err != nil {
			return created, err
		}
		if m != nil {
			created = append(created, m)
		}
	}
	return created, nil
}

// suppressed applies the duplicate-match window: a recent match for the
// same (requirement, buyer, seller) triple with near-identical score
// blocks a new proposal.
func (al *Allocator) suppressed(ctx context.Context, c Candidate) (bool, error) {
	since := al.clock.Now().Add(-al.cfg.SuppressionWindow)
	recent, err := al.matches.FindRecentByParties(ctx, c.Requirement.ID, c.Requirement.BuyerID, c.Availability.SellerID, since)
	if err != nil {
		return false, fmt.Errorf("suppression lookup: %w", err)
	}
	tolerance := 1.0 - al.cfg.SuppressionSimilarity
	for _, m := range recent {
		if math.Abs(m.Score-c.Score) <= tolerance {
			al.logger.Debug().
				Str("requirement_id", c.Requirement.ID).
				Str("prior_match_id", m.ID).
				Msg("duplicate match suppressed")
			if err := al.auditLog.Add(ctx, audit.New("", audit.ActionMatchSuppressed, "match", m.ID,
				nil, map[string]any{
					"requirement_id": c.Requirement.ID,
					"seller_id":      c.Availability.SellerID,
					"score":          c.Score,
				}, al.clock.Now())); err != nil {
				al.logger.Error().Err(err).Str("prior_match_id", m.ID).Msg("failed to audit suppressed match")
			}
			return true, nil
		}
	}
	return false, nil
}

func (al *Allocator) allocateWithRetry(ctx context.Context, c Candidate) (*trade.Match, error) {
	var lastErr error
	attempts := al.cfg.AllocationRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := al.cfg.AllocationBackoffBase * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		m, err := al.allocateOnce(ctx, c)
		if err == nil {
			return m, nil
		}
		if errors.Is(err, errCandidateSkipped) {
			return nil, nil
		}
		var conflict *shared.ConflictError
		if !errors.As(err, &conflict) {
			return nil, err
		}
		metrics.RecordAllocationConflict()
		lastErr = err
	}

	al.logger.Warn().
		Str("requirement_id", c.Requirement.ID).
		Str("availability_id", c.Availability.ID).
		Err(lastErr).
		Msg("allocation retries exhausted; skipping candidate")
	return nil, nil
}

// allocateOnce runs one allocation transaction for a candidate
func (al *Allocator) allocateOnce(ctx context.Context, c Candidate) (*trade.Match, error) {
	var created *trade.Match

	err := al.tx.InTx(ctx, func(txCtx context.Context) error {
		// Fresh requirement state; the candidate snapshot may be stale.
		req, err := al.requirements.FindByID(txCtx, c.Requirement.ID)
		if err != nil {
			return err
		}
		if !req.IsOpen() || !req.RemainingQuantity().IsPositive() {
			return errCandidateSkipped
		}

		if existing, err := al.matches.FindActiveByPair(txCtx, req.ID, c.Availability.ID); err != nil {
			return err
		} else if existing != nil {
			return errCandidateSkipped
		}

		now := al.clock.Now()
		var quantity shared.Quantity
		availBefore := int64(0)

		a, err := al.availabilities.UpdateLocked(txCtx, c.Availability.ID, func(a *order.Availability) error {
			if !a.IsOpen() || !a.RemainingQuantity.IsPositive() {
				return errCandidateSkipped
			}
			availBefore = a.Version
			quantity = req.RemainingQuantity().Min(a.RemainingQuantity)
			return a.Allocate(quantity)
		})
		if err != nil {
			return err
		}

		reqBefore := req.Version
		if err := req.ApplyAllocation(quantity); err != nil {
			return err
		}
		if err := al.requirements.Update(txCtx, req); err != nil {
			return err
		}

		m, err := trade.NewMatch(utils.GenerateEntityID("MTC"), req.ID, a.ID, req.BuyerID, a.SellerID,
			quantity, c.Score, c.Breakdown, c.Validation.Risk, now)
		if err != nil {
			return err
		}
		m.CapabilityCodes = c.Validation.CapabilityCodes
		for _, w := range c.Validation.Warnings {
			m.Advisories = append(m.Advisories, w.Code)
		}
		if err := al.matches.Add(txCtx, m); err != nil {
			var conflict *shared.ConflictError
			if errors.As(err, &conflict) {
				// Another pass won the pair; not an error.
				return errCandidateSkipped
			}
			return err
		}

		payload := outbox.MatchEventPayload{
			MatchID:           m.ID,
			RequirementID:     m.RequirementID,
			AvailabilityID:    m.AvailabilityID,
			BuyerID:           m.BuyerID,
			SellerID:          m.SellerID,
			CommodityID:       req.CommodityID,
			AllocatedQuantity: m.AllocatedQuantity.String(),
			Score:             m.Score,
			RiskStatus:        string(m.RiskDecision),
			Warnings:          m.Advisories,
		}
		record, err := outbox.NewRecord(outbox.AggregateMatch, m.ID, outbox.EventMatchProposed, payload, now)
		if err != nil {
			return err
		}
		if err := al.events.Append(txCtx, record); err != nil {
			return err
		}

		if err := al.auditLog.Add(txCtx, audit.New("", audit.ActionMatchAllocated, "match", m.ID,
			map[string]any{
				"requirement_version":  reqBefore,
				"availability_version": availBefore,
			},
			map[string]any{
				"requirement_version":  req.Version,
				"availability_version": a.Version,
				"allocated_quantity":   quantity.String(),
				"score":                m.Score,
			}, now)); err != nil {
			return err
		}

		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	al.logger.Info().
		Str("match_id", created.ID).
		Str("requirement_id", created.RequirementID).
		Str("availability_id", created.AvailabilityID).
		Float64("score", created.Score).
		Str("quantity", created.AllocatedQuantity.String()).
		Msg("match allocated")
	metrics.RecordMatchCreated(string(created.RiskDecision), created.Score)
	return created, nil
}
