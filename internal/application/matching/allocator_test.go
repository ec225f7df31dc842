package matching_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiworks/tradecore-go/internal/adapters/persistence"
	"github.com/mandiworks/tradecore-go/internal/application/matching"
	"github.com/mandiworks/tradecore-go/internal/domain/audit"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/domain/trade"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/logging"
	"github.com/mandiworks/tradecore-go/test/helpers"
)

type allocatorFixture struct {
	clock          *shared.MockClock
	requirements   *persistence.GormRequirementRepository
	availabilities *persistence.GormAvailabilityRepository
	matches        *persistence.GormMatchRepository
	allocator      *matching.Allocator
}

func newAllocatorFixture(t *testing.T, cfg config.MatchingConfig) *allocatorFixture {
	t.Helper()
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(helpers.FixedTime)
	requirements := persistence.NewGormRequirementRepository(db)
	availabilities := persistence.NewGormAvailabilityRepository(db)
	matches := persistence.NewGormMatchRepository(db)
	allocator := matching.NewAllocator(
		persistence.NewTxRunner(db),
		requirements,
		availabilities,
		matches,
		persistence.NewGormOutboxRepository(db, clock),
		persistence.NewGormAuditRepository(db),
		cfg,
		clock,
		logging.Nop(),
	)
	return &allocatorFixture{
		clock:          clock,
		requirements:   requirements,
		availabilities: availabilities,
		matches:        matches,
		allocator:      allocator,
	}
}

func allocatorConfig() config.MatchingConfig {
	return config.MatchingConfig{
		TopN:                  3,
		AllocationRetries:     2,
		AllocationBackoffBase: time.Millisecond,
		SuppressionWindow:     time.Hour,
		SuppressionSimilarity: 0.95,
	}
}

func (f *allocatorFixture) candidate(t *testing.T, req *order.Requirement, avail *order.Availability, score float64) matching.Candidate {
	t.Helper()
	return matching.Candidate{
		Requirement:  req,
		Availability: avail,
		Score:        score,
		Breakdown:    trade.ScoreBreakdown{Quality: score, Price: score, Delivery: score, Risk: score},
		Validation:   matching.ValidationResult{Valid: true, Risk: shared.Pass()},
	}
}

func TestAllocator_PartialFillsAcrossAvailabilities(t *testing.T) {
	f := newAllocatorFixture(t, allocatorConfig())
	ctx := context.Background()

	req := helpers.ActiveRequirement(t, "REQ-1", "BP-B", "COM-WHEAT", 100)
	require.NoError(t, f.requirements.Add(ctx, req))
	availA := helpers.OpenAvailability(t, "AVL-A", "BP-S1", "COM-WHEAT", 60)
	require.NoError(t, f.availabilities.Add(ctx, availA))
	availB := helpers.OpenAvailability(t, "AVL-B", "BP-S2", "COM-WHEAT", 50)
	require.NoError(t, f.availabilities.Add(ctx, availB))

	created, err := f.allocator.AllocateTopN(ctx, []matching.Candidate{
		f.candidate(t, req, availA, 0.9),
		f.candidate(t, req, availB, 0.8),
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	// The first candidate drains its availability, the second tops up
	// the remainder only.
	assert.Equal(t, "60", created[0].AllocatedQuantity.String())
	assert.Equal(t, "40", created[1].AllocatedQuantity.String())

	stored, err := f.requirements.FindByID(ctx, "REQ-1")
	require.NoError(t, err)
	assert.Equal(t, order.RequirementFulfilled, stored.Status)
	assert.False(t, stored.RemainingQuantity().IsPositive())

	// No quantity is invented: the second availability keeps its leftover
	b, err := f.availabilities.FindByID(ctx, "AVL-B")
	require.NoError(t, err)
	assert.Equal(t, "10", b.RemainingQuantity.String())

	sum, err := f.matches.SumAllocatedByAvailability(ctx, "AVL-B")
	require.NoError(t, err)
	assert.Equal(t, "40", sum)
}

func TestAllocator_TopNCapsAllocations(t *testing.T) {
	cfg := allocatorConfig()
	cfg.TopN = 1
	f := newAllocatorFixture(t, cfg)
	ctx := context.Background()

	req := helpers.ActiveRequirement(t, "REQ-1", "BP-B", "COM-WHEAT", 100)
	require.NoError(t, f.requirements.Add(ctx, req))
	availA := helpers.OpenAvailability(t, "AVL-A", "BP-S1", "COM-WHEAT", 30)
	require.NoError(t, f.availabilities.Add(ctx, availA))
	availB := helpers.OpenAvailability(t, "AVL-B", "BP-S2", "COM-WHEAT", 30)
	require.NoError(t, f.availabilities.Add(ctx, availB))

	created, err := f.allocator.AllocateTopN(ctx, []matching.Candidate{
		f.candidate(t, req, availA, 0.9),
		f.candidate(t, req, availB, 0.8),
	})
	require.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Equal(t, "AVL-A", created[0].AvailabilityID)
}

func TestAllocator_SkipsExhaustedAndClosedOrders(t *testing.T) {
	f := newAllocatorFixture(t, allocatorConfig())
	ctx := context.Background()

	req := helpers.ActiveRequirement(t, "REQ-1", "BP-B", "COM-WHEAT", 100)
	require.NoError(t, f.requirements.Add(ctx, req))

	// A drained availability is skipped without error
	drained := helpers.OpenAvailability(t, "AVL-A", "BP-S1", "COM-WHEAT", 40)
	require.NoError(t, drained.Allocate(shared.QuantityFromFloat(40)))
	require.NoError(t, f.availabilities.Add(ctx, drained))

	created, err := f.allocator.AllocateTopN(ctx, []matching.Candidate{
		f.candidate(t, req, drained, 0.9),
	})
	require.NoError(t, err)
	assert.Empty(t, created)

	// A cancelled requirement is skipped even against live stock
	require.NoError(t, req.Cancel())
	require.NoError(t, f.requirements.Update(ctx, req))
	live := helpers.OpenAvailability(t, "AVL-B", "BP-S2", "COM-WHEAT", 40)
	require.NoError(t, f.availabilities.Add(ctx, live))

	created, err = f.allocator.AllocateTopN(ctx, []matching.Candidate{
		f.candidate(t, req, live, 0.9),
	})
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestAllocator_SuppressesNearDuplicateProposals(t *testing.T) {
	f := newAllocatorFixture(t, allocatorConfig())
	ctx := context.Background()

	req := helpers.ActiveRequirement(t, "REQ-1", "BP-B", "COM-WHEAT", 100)
	require.NoError(t, f.requirements.Add(ctx, req))
	availA := helpers.OpenAvailability(t, "AVL-A", "BP-S1", "COM-WHEAT", 20)
	require.NoError(t, f.availabilities.Add(ctx, availA))
	// A different quantity keeps the second listing clear of content dedup
	availB := helpers.OpenAvailability(t, "AVL-B", "BP-S1", "COM-WHEAT", 25)
	require.NoError(t, f.availabilities.Add(ctx, availB))

	// Seed a fresh match against the same (requirement, buyer, seller)
	prior, err := trade.NewMatch("MTC-PRIOR", req.ID, availA.ID, "BP-B", "BP-S1",
		shared.QuantityFromFloat(20), 0.80, trade.ScoreBreakdown{}, shared.Pass(), f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.matches.Add(ctx, prior))

	// A near-identical score within the window is suppressed
	created, err := f.allocator.AllocateTopN(ctx, []matching.Candidate{
		f.candidate(t, req, availB, 0.82),
	})
	require.NoError(t, err)
	assert.Empty(t, created)

	// A materially different score passes the similarity gate
	created, err = f.allocator.AllocateTopN(ctx, []matching.Candidate{
		f.candidate(t, req, availB, 0.60),
	})
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestAllocator_SuppressionLapsesWithTheWindow(t *testing.T) {
	f := newAllocatorFixture(t, allocatorConfig())
	ctx := context.Background()

	req := helpers.ActiveRequirement(t, "REQ-1", "BP-B", "COM-WHEAT", 100)
	require.NoError(t, f.requirements.Add(ctx, req))
	availA := helpers.OpenAvailability(t, "AVL-A", "BP-S1", "COM-WHEAT", 20)
	require.NoError(t, f.availabilities.Add(ctx, availA))
	availB := helpers.OpenAvailability(t, "AVL-B", "BP-S1", "COM-WHEAT", 25)
	require.NoError(t, f.availabilities.Add(ctx, availB))

	prior, err := trade.NewMatch("MTC-PRIOR", req.ID, availA.ID, "BP-B", "BP-S1",
		shared.QuantityFromFloat(20), 0.80, trade.ScoreBreakdown{}, shared.Pass(), f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.matches.Add(ctx, prior))

	f.clock.Advance(2 * time.Hour)

	created, err := f.allocator.AllocateTopN(ctx, []matching.Candidate{
		f.candidate(t, req, availB, 0.80),
	})
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

// failingAuditLog rejects every write
type failingAuditLog struct{}

func (failingAuditLog) Add(context.Context, *audit.Entry) error {
	return errors.New("audit store unavailable")
}

func (failingAuditLog) FindByTarget(context.Context, string, string) ([]*audit.Entry, error) {
	return nil, nil
}

func TestAllocator_SuppressionSurvivesAuditFailure(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(helpers.FixedTime)
	requirements := persistence.NewGormRequirementRepository(db)
	availabilities := persistence.NewGormAvailabilityRepository(db)
	matches := persistence.NewGormMatchRepository(db)
	allocator := matching.NewAllocator(
		persistence.NewTxRunner(db),
		requirements,
		availabilities,
		matches,
		persistence.NewGormOutboxRepository(db, clock),
		failingAuditLog{},
		allocatorConfig(),
		clock,
		logging.Nop(),
	)
	ctx := context.Background()

	req := helpers.ActiveRequirement(t, "REQ-1", "BP-B", "COM-WHEAT", 100)
	require.NoError(t, requirements.Add(ctx, req))
	availA := helpers.OpenAvailability(t, "AVL-A", "BP-S1", "COM-WHEAT", 20)
	require.NoError(t, availabilities.Add(ctx, availA))
	availB := helpers.OpenAvailability(t, "AVL-B", "BP-S1", "COM-WHEAT", 25)
	require.NoError(t, availabilities.Add(ctx, availB))

	prior, err := trade.NewMatch("MTC-PRIOR", req.ID, availA.ID, "BP-B", "BP-S1",
		shared.QuantityFromFloat(20), 0.80, trade.ScoreBreakdown{}, shared.Pass(), clock.Now())
	require.NoError(t, err)
	require.NoError(t, matches.Add(ctx, prior))

	// An unavailable audit store is logged, not surfaced; the duplicate
	// stays suppressed.
	created, err := allocator.AllocateTopN(ctx, []matching.Candidate{
		{
			Requirement:  req,
			Availability: availB,
			Score:        0.82,
			Breakdown:    trade.ScoreBreakdown{Quality: 0.82, Price: 0.82, Delivery: 0.82, Risk: 0.82},
			Validation:   matching.ValidationResult{Valid: true, Risk: shared.Pass()},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestAllocator_ExistingActivePairIsNotDuplicated(t *testing.T) {
	cfg := allocatorConfig()
	cfg.SuppressionWindow = 0 // isolate the pair gate from suppression
	f := newAllocatorFixture(t, cfg)
	ctx := context.Background()

	req := helpers.ActiveRequirement(t, "REQ-1", "BP-B", "COM-WHEAT", 100)
	require.NoError(t, f.requirements.Add(ctx, req))
	avail := helpers.OpenAvailability(t, "AVL-A", "BP-S1", "COM-WHEAT", 50)
	require.NoError(t, f.availabilities.Add(ctx, avail))

	prior, err := trade.NewMatch("MTC-PRIOR", req.ID, avail.ID, "BP-B", "BP-S1",
		shared.QuantityFromFloat(20), 0.80, trade.ScoreBreakdown{}, shared.Pass(), f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.matches.Add(ctx, prior))

	created, err := f.allocator.AllocateTopN(ctx, []matching.Candidate{
		f.candidate(t, req, avail, 0.40),
	})
	require.NoError(t, err)
	assert.Empty(t, created)
}
