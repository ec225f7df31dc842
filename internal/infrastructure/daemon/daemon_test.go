package daemon_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiworks/tradecore-go/internal/adapters/persistence"
	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/application/negotiating"
	"github.com/mandiworks/tradecore-go/internal/application/orders"
	"github.com/mandiworks/tradecore-go/internal/domain/negotiation"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/trade"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/daemon"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/logging"
	"github.com/mandiworks/tradecore-go/test/helpers"
)

// engineHarness runs the full engine over an in-memory database with
// timings tightened for tests.
type engineHarness struct {
	mediator common.Mediator
	cancel   context.CancelFunc
	done     chan error
}

func startEngine(t *testing.T) *engineHarness {
	t.Helper()
	db := helpers.NewTestDB(t)
	ctx := context.Background()

	cfg := &config.Config{}
	config.SetDefaults(cfg)
	cfg.Matching.CoalesceDelay = 5 * time.Millisecond
	cfg.Matching.SweeperInterval = time.Hour
	cfg.Negotiation.ExpiryInterval = time.Hour
	cfg.Outbox.PollInterval = 10 * time.Millisecond
	cfg.Notification.RatePerMinute = 600
	cfg.Notification.Burst = 100
	cfg.Metrics.Enabled = false

	d, err := daemon.New(cfg, db, nil, logging.Nop())
	require.NoError(t, err)

	// Seed the reference data the command pipeline demands
	partners := persistence.NewGormPartnerRepository(db)
	documents := persistence.NewGormDocumentRepository(db)
	commodities := persistence.NewGormCommodityRepository(db)
	require.NoError(t, commodities.Save(ctx, helpers.GradedCommodity("COM-WHEAT")))
	for id, partnerType := range map[string]partner.PartnerType{
		"BP-B": partner.TypeBuyer,
		"BP-S": partner.TypeSeller,
	} {
		require.NoError(t, partners.Save(ctx, helpers.ActivePartner(t, id, partnerType)))
		for _, docType := range []partner.DocumentType{partner.DocGST, partner.DocPAN} {
			require.NoError(t, documents.Add(ctx, &partner.Document{
				ID:        "DOC-" + id + "-" + string(docType),
				PartnerID: id,
				Type:      docType,
				Verified:  true,
			}))
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(runCtx) }()

	h := &engineHarness{mediator: d.Mediator(), cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("engine did not shut down")
		}
	})
	return h
}

func asPartner(partnerID string) context.Context {
	return common.WithActor(context.Background(), common.Actor{
		UserID:    "usr-" + partnerID,
		PartnerID: partnerID,
	})
}

func (h *engineHarness) postRequirement(t *testing.T, key string, quantity float64) string {
	t.Helper()
	resp, err := h.mediator.Send(asPartner("BP-B"), &orders.CreateRequirementCommand{
		IdempotencyKey:    key,
		BuyerID:           "BP-B",
		CommodityID:       "COM-WHEAT",
		Quantity:          quantity,
		Unit:              "MT",
		TargetPrice:       25_000,
		Currency:          "INR",
		DeliveryLocations: []orders.DeliveryLocationInput{{Lat: 28.61, Lng: 77.20, RadiusKm: 50}},
		ValidUntil:        time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return resp.(*orders.CreateRequirementResponse).Requirement.ID
}

func (h *engineHarness) postAvailability(t *testing.T, key string, quantity, basePrice float64) string {
	t.Helper()
	resp, err := h.mediator.Send(asPartner("BP-S"), &orders.CreateAvailabilityCommand{
		IdempotencyKey: key,
		SellerID:       "BP-S",
		CommodityID:    "COM-WHEAT",
		TotalQuantity:  quantity,
		BasePrice:      basePrice,
		Currency:       "INR",
		AdHoc:          &orders.AdHocLocationInput{Address: "Mandi Yard 4", Lat: 28.61, Lng: 77.20},
		QualityParams:  map[string]float64{"grade": 7},
		ValidUntil:     time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return resp.(*orders.CreateAvailabilityResponse).Availability.ID
}

// matchesOf polls the match listing until at least want matches exist
func (h *engineHarness) matchesOf(t *testing.T, requirementID string, want int) []*trade.Match {
	t.Helper()
	var matches []*trade.Match
	require.Eventually(t, func() bool {
		resp, err := h.mediator.Send(asPartner("BP-B"), &orders.GetMatchesQuery{
			RequirementID: requirementID,
			Page:          trade.Page{Limit: 10},
		})
		if err != nil {
			return false
		}
		matches = resp.(*orders.GetMatchesResponse).Matches
		return len(matches) >= want
	}, 10*time.Second, 20*time.Millisecond, "no match materialised")
	return matches
}

func TestEngine_PostingsProduceAMatch(t *testing.T) {
	h := startEngine(t)

	reqID := h.postRequirement(t, "key-req", 100)
	availID := h.postAvailability(t, "key-avl", 60, 24_000)

	matches := h.matchesOf(t, reqID, 1)
	m := matches[0]
	assert.Equal(t, availID, m.AvailabilityID)
	assert.Equal(t, "BP-B", m.BuyerID)
	assert.Equal(t, "BP-S", m.SellerID)
	assert.Equal(t, "60", m.AllocatedQuantity.String())
	assert.GreaterOrEqual(t, m.Score, 0.5)
}

func TestEngine_MatchFlowsThroughNegotiationToConclusion(t *testing.T) {
	h := startEngine(t)

	reqID := h.postRequirement(t, "key-req", 50)
	availID := h.postAvailability(t, "key-avl", 50, 24_000)
	h.matchesOf(t, reqID, 1)

	resp, err := h.mediator.Send(asPartner("BP-B"), &negotiating.StartNegotiationCommand{
		RequirementID:  reqID,
		AvailabilityID: availID,
		OpeningOffer:   negotiating.OfferInput{Price: 23_500, Currency: "INR", Quantity: 50},
	})
	require.NoError(t, err)
	negID := resp.(*negotiating.StartNegotiationResponse).Negotiation.ID

	_, err = h.mediator.Send(asPartner("BP-S"), &negotiating.OfferCommand{
		NegotiationID: negID,
		Offer:         negotiating.OfferInput{Price: 23_800, Currency: "INR", Quantity: 50},
	})
	require.NoError(t, err)

	resp, err = h.mediator.Send(asPartner("BP-B"), &negotiating.AcceptCommand{NegotiationID: negID})
	require.NoError(t, err)
	closed := resp.(*negotiating.CloseResponse)
	assert.Equal(t, negotiation.StatusAccepted, closed.Negotiation.Status)
	assert.Equal(t, "23800", closed.AgreedOffer.Price.Amount.String())

	matches := h.matchesOf(t, reqID, 1)
	assert.Equal(t, trade.MatchConcluded, matches[0].Status)
}

func TestEngine_ReplayedCommandCreatesNothingNew(t *testing.T) {
	h := startEngine(t)

	first := h.postRequirement(t, "key-req", 100)
	second := h.postRequirement(t, "key-req", 100)
	assert.Equal(t, first, second)
}

func TestEngine_CancelledOrderStopsMatching(t *testing.T) {
	h := startEngine(t)

	reqID := h.postRequirement(t, "key-req", 100)
	_, err := h.mediator.Send(asPartner("BP-B"), &orders.CancelOrderCommand{OrderID: reqID})
	require.NoError(t, err)

	h.postAvailability(t, "key-avl", 60, 24_000)

	// Give the pipeline room to (wrongly) produce a match
	time.Sleep(300 * time.Millisecond)

	resp, err := h.mediator.Send(asPartner("BP-B"), &orders.GetMatchesQuery{
		RequirementID: reqID,
		Page:          trade.Page{Limit: 10},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.(*orders.GetMatchesResponse).Matches)
}
