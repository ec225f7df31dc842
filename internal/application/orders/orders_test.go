package orders_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiworks/tradecore-go/internal/adapters/ml"
	"github.com/mandiworks/tradecore-go/internal/adapters/persistence"
	"github.com/mandiworks/tradecore-go/internal/adapters/sanctions"
	"github.com/mandiworks/tradecore-go/internal/application/capability"
	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/application/orders"
	apprisk "github.com/mandiworks/tradecore-go/internal/application/risk"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/logging"
	"github.com/mandiworks/tradecore-go/test/helpers"
)

type ordersFixture struct {
	clock              *shared.MockClock
	partners           *persistence.GormPartnerRepository
	documents          *persistence.GormDocumentRepository
	commodities        *persistence.GormCommodityRepository
	requirements       *persistence.GormRequirementRepository
	availabilities     *persistence.GormAvailabilityRepository
	outbox             *persistence.GormOutboxRepository
	auditLog           *persistence.GormAuditRepository
	idempotency        *persistence.GormIdempotencyStore
	tx                 *persistence.TxRunner
	resolver           *capability.Resolver
	engine             *apprisk.Engine
	advisor            *ml.RuleBasedAdvisor
	createRequirement  *orders.CreateRequirementHandler
	createAvailability *orders.CreateAvailabilityHandler
	cancel             *orders.CancelOrderHandler
}

func newOrdersFixture(t *testing.T) *ordersFixture {
	t.Helper()
	db := helpers.NewTestDB(t)
	ctx := context.Background()
	clock := shared.NewMockClock(helpers.FixedTime)
	tx := persistence.NewTxRunner(db)
	partners := persistence.NewGormPartnerRepository(db)
	commodities := persistence.NewGormCommodityRepository(db)
	documents := persistence.NewGormDocumentRepository(db)
	requirements := persistence.NewGormRequirementRepository(db)
	availabilities := persistence.NewGormAvailabilityRepository(db)
	events := persistence.NewGormOutboxRepository(db, clock)
	auditLog := persistence.NewGormAuditRepository(db)
	idempotency := persistence.NewGormIdempotencyStore(db)
	resolver := capability.NewResolver(documents, sanctions.NewStaticList(nil), clock, logging.Nop())
	engine := apprisk.NewEngine(
		partners, documents, requirements, availabilities,
		sanctions.NewStaticList(nil), ml.NewRuleBasedPredictor(),
		persistence.NewGormHistoryProvider(db),
		config.RiskConfig{HighValueThreshold: 1_000_000, AdvisoryConfidenceFloor: 0.6},
		clock, logging.Nop(),
	)
	advisor := ml.NewRuleBasedAdvisor(clock)

	require.NoError(t, commodities.Save(ctx, helpers.GradedCommodity("COM-WHEAT")))

	f := &ordersFixture{
		clock:          clock,
		partners:       partners,
		documents:      documents,
		commodities:    commodities,
		requirements:   requirements,
		availabilities: availabilities,
		outbox:         events,
		auditLog:       auditLog,
		idempotency:    idempotency,
		tx:             tx,
		resolver:       resolver,
		engine:         engine,
		advisor:        advisor,
		createRequirement: orders.NewCreateRequirementHandler(partners, commodities, requirements,
			resolver, engine, advisor, tx, idempotency, events, auditLog, clock, logging.Nop()),
		createAvailability: orders.NewCreateAvailabilityHandler(partners, commodities, availabilities,
			resolver, engine, advisor, tx, idempotency, events, auditLog, clock, logging.Nop()),
		cancel: orders.NewCancelOrderHandler(requirements, availabilities,
			tx, events, auditLog, clock, logging.Nop()),
	}
	f.seedPartner(t, "BP-B", partner.TypeBuyer)
	f.seedPartner(t, "BP-S", partner.TypeSeller)
	f.seedPartner(t, "BP-T", partner.TypeTrader)
	return f
}

// seedPartner registers an active partner with the GST and PAN documents
// the domestic capability rules demand.
func (f *ordersFixture) seedPartner(t *testing.T, id string, partnerType partner.PartnerType) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.partners.Save(ctx, helpers.ActivePartner(t, id, partnerType)))
	for _, docType := range []partner.DocumentType{partner.DocGST, partner.DocPAN} {
		require.NoError(t, f.documents.Add(ctx, &partner.Document{
			ID:        "DOC-" + id + "-" + string(docType),
			PartnerID: id,
			Type:      docType,
			Verified:  true,
		}))
	}
}

func (f *ordersFixture) requirementCommand(key string) *orders.CreateRequirementCommand {
	return &orders.CreateRequirementCommand{
		IdempotencyKey:    key,
		BuyerID:           "BP-B",
		CommodityID:       "COM-WHEAT",
		Quantity:          100,
		Unit:              "MT",
		TargetPrice:       25_000,
		Currency:          "INR",
		DeliveryLocations: []orders.DeliveryLocationInput{{LocationID: "LOC-1"}},
		ValidUntil:        helpers.FixedTime.Add(30 * 24 * time.Hour),
	}
}

func (f *ordersFixture) availabilityCommand(key, sellerID string) *orders.CreateAvailabilityCommand {
	return &orders.CreateAvailabilityCommand{
		IdempotencyKey: key,
		SellerID:       sellerID,
		CommodityID:    "COM-WHEAT",
		TotalQuantity:  50,
		BasePrice:      24_000,
		Currency:       "INR",
		AdHoc: &orders.AdHocLocationInput{
			Address: "Mandi Yard 4",
			Lat:     28.61,
			Lng:     77.20,
		},
		ValidUntil: helpers.FixedTime.Add(30 * 24 * time.Hour),
	}
}

func asPartner(partnerID string) context.Context {
	return common.WithActor(context.Background(), common.Actor{
		UserID:    "usr-" + partnerID,
		PartnerID: partnerID,
	})
}

func TestCreateRequirement_CreatesAndReplays(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := asPartner("BP-B")

	resp, err := f.createRequirement.Handle(ctx, f.requirementCommand("key-1"))
	require.NoError(t, err)
	created := resp.(*orders.CreateRequirementResponse)
	assert.False(t, created.Replayed)
	assert.Equal(t, order.RequirementActive, created.Requirement.Status)
	assert.Equal(t, "BP-B", created.Requirement.BuyerID)

	pending, err := f.outbox.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	// The same key replays the original result without a second write
	resp, err = f.createRequirement.Handle(ctx, f.requirementCommand("key-1"))
	require.NoError(t, err)
	replayed := resp.(*orders.CreateRequirementResponse)
	assert.True(t, replayed.Replayed)
	assert.Equal(t, created.Requirement.ID, replayed.Requirement.ID)

	pending, err = f.outbox.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

// blindIdempotencyStore misses every lookup, recreating the window where
// a concurrent execution lands the key between the entry check and the
// transactional save.
type blindIdempotencyStore struct {
	common.IdempotencyStore
}

func (s *blindIdempotencyStore) Find(ctx context.Context, key string) (*common.IdempotencyRecord, error) {
	return nil, nil
}

func TestCreateRequirement_LosingTheKeyRaceReplaysAndRollsBack(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := asPartner("BP-B")

	resp, err := f.createRequirement.Handle(ctx, f.requirementCommand("key-1"))
	require.NoError(t, err)
	winner := resp.(*orders.CreateRequirementResponse).Requirement

	// A handler that cannot see the registered key only discovers the
	// loss inside the transaction, which must roll its insert back.
	racing := orders.NewCreateRequirementHandler(f.partners, f.commodities, f.requirements,
		f.resolver, f.engine, f.advisor, f.tx, &blindIdempotencyStore{IdempotencyStore: f.idempotency},
		f.outbox, f.auditLog, f.clock, logging.Nop())

	changed := f.requirementCommand("key-1")
	changed.Quantity = 120
	resp, err = racing.Handle(ctx, changed)
	require.NoError(t, err)
	replayed := resp.(*orders.CreateRequirementResponse)

	assert.True(t, replayed.Replayed)
	assert.Equal(t, winner.ID, replayed.Requirement.ID)
	assert.Equal(t, winner.Quantity.String(), replayed.Requirement.Quantity.String())

	pending, err := f.outbox.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending, "the losing insert must not commit")
}

func TestCreateRequirement_RejectsActingForAnotherPartner(t *testing.T) {
	f := newOrdersFixture(t)

	_, err := f.createRequirement.Handle(asPartner("BP-S"), f.requirementCommand("key-1"))

	var unauthorized *shared.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
}

func TestCreateRequirement_RequiresIdempotencyKey(t *testing.T) {
	f := newOrdersFixture(t)

	_, err := f.createRequirement.Handle(asPartner("BP-B"), f.requirementCommand(""))

	var validation *shared.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestCreateRequirement_BlocksContentDuplicates(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := asPartner("BP-B")

	_, err := f.createRequirement.Handle(ctx, f.requirementCommand("key-1"))
	require.NoError(t, err)

	// Same content under a fresh key is a duplicate, not a replay
	_, err = f.createRequirement.Handle(ctx, f.requirementCommand("key-2"))
	var duplicate *shared.DuplicateOrderError
	require.ErrorAs(t, err, &duplicate)

	// Changing the quantity makes it a distinct order
	changed := f.requirementCommand("key-3")
	changed.Quantity = 120
	_, err = f.createRequirement.Handle(ctx, changed)
	require.NoError(t, err)
}

func TestCreateRequirement_RejectsSellSidePartner(t *testing.T) {
	f := newOrdersFixture(t)

	cmd := f.requirementCommand("key-1")
	cmd.BuyerID = "BP-S"
	_, err := f.createRequirement.Handle(asPartner("BP-S"), cmd)

	var rejected *shared.RejectionError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, apprisk.CodeRoleViolation, rejected.Code)
}

func TestCreateRequirement_StretchedCreditLineRaisesRiskWarning(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()

	buyer, err := f.partners.FindByID(ctx, "BP-B")
	require.NoError(t, err)
	buyer.CreditUsed = buyer.CreditLimit.Mul(decimal.NewFromFloat(0.7))
	require.NoError(t, f.partners.Update(ctx, buyer))

	resp, err := f.createRequirement.Handle(asPartner("BP-B"), f.requirementCommand("key-1"))
	require.NoError(t, err)
	created := resp.(*orders.CreateRequirementResponse).Requirement

	records, err := f.outbox.FindByAggregate(ctx, "BP-B")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, outbox.EventRiskWarning, records[0].EventType)

	var p outbox.RiskEventPayload
	require.NoError(t, json.Unmarshal(records[0].Payload, &p))
	assert.Equal(t, "CREDIT_EXPOSURE_YELLOW", p.Code)
	assert.Equal(t, created.ID, p.RequirementID)
	assert.Equal(t, "BP-B", p.PartnerID)
}

func TestCreateRequirement_HealthyCreditLineStaysQuiet(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()

	_, err := f.createRequirement.Handle(asPartner("BP-B"), f.requirementCommand("key-1"))
	require.NoError(t, err)

	records, err := f.outbox.FindByAggregate(ctx, "BP-B")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCreateAvailability_AttachesListingAdvisory(t *testing.T) {
	f := newOrdersFixture(t)

	resp, err := f.createAvailability.Handle(asPartner("BP-S"), f.availabilityCommand("key-1", "BP-S"))
	require.NoError(t, err)
	created := resp.(*orders.CreateAvailabilityResponse)

	assert.Equal(t, order.AvailabilityAvailable, created.Availability.Status)
	require.NotNil(t, created.Availability.AISuggestedMaxPrice)
	assert.Equal(t, "26400", created.Availability.AISuggestedMaxPrice.Amount.String(), "ten percent over base")
}

func TestCreateAvailability_BlocksSameDayFlip(t *testing.T) {
	f := newOrdersFixture(t)

	// A trader with an open wheat requirement cannot list wheat today
	reqCmd := f.requirementCommand("key-1")
	reqCmd.BuyerID = "BP-T"
	_, err := f.createRequirement.Handle(asPartner("BP-T"), reqCmd)
	require.NoError(t, err)

	_, err = f.createAvailability.Handle(asPartner("BP-T"), f.availabilityCommand("key-2", "BP-T"))
	var rejected *shared.RejectionError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, apprisk.CodeCircularTrading, rejected.Code)

	// The next day the listing goes through
	f.clock.Advance(24 * time.Hour)
	_, err = f.createAvailability.Handle(asPartner("BP-T"), f.availabilityCommand("key-3", "BP-T"))
	require.NoError(t, err)
}

func TestCancelOrder_ResolvesEitherSide(t *testing.T) {
	f := newOrdersFixture(t)

	resp, err := f.createRequirement.Handle(asPartner("BP-B"), f.requirementCommand("key-1"))
	require.NoError(t, err)
	reqID := resp.(*orders.CreateRequirementResponse).Requirement.ID

	resp, err = f.createAvailability.Handle(asPartner("BP-S"), f.availabilityCommand("key-2", "BP-S"))
	require.NoError(t, err)
	availID := resp.(*orders.CreateAvailabilityResponse).Availability.ID

	// Only the owner may cancel
	_, err = f.cancel.Handle(asPartner("BP-S"), &orders.CancelOrderCommand{OrderID: reqID})
	var unauthorized *shared.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)

	cancelled, err := f.cancel.Handle(asPartner("BP-B"), &orders.CancelOrderCommand{OrderID: reqID})
	require.NoError(t, err)
	assert.Equal(t, string(order.RequirementCancelled), cancelled.(*orders.CancelOrderResponse).Status)

	cancelled, err = f.cancel.Handle(asPartner("BP-S"), &orders.CancelOrderCommand{OrderID: availID})
	require.NoError(t, err)
	assert.Equal(t, string(order.AvailabilityCancelled), cancelled.(*orders.CancelOrderResponse).Status)

	// Cancelling twice hits the terminal guard
	_, err = f.cancel.Handle(asPartner("BP-B"), &orders.CancelOrderCommand{OrderID: reqID})
	var terminal *shared.TerminalStateError
	require.ErrorAs(t, err, &terminal)
}
