package negotiating

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/domain/negotiation"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/domain/trade"
	"github.com/mandiworks/tradecore-go/pkg/utils"
)

// OfferInput carries one priced proposal at the command boundary
type OfferInput struct {
	Price         float64
	Currency      string
	Quantity      float64
	DeliveryTerms string
	PaymentTerms  string
	QualityTerms  string
}

// StartNegotiationCommand opens a negotiation on a pair with the
// initiator's opening offer.
type StartNegotiationCommand struct {
	RequirementID  string
	AvailabilityID string
	OpeningOffer   OfferInput
}

// StartNegotiationResponse carries the opened negotiation
type StartNegotiationResponse struct {
	Negotiation *negotiation.Negotiation
	Offer       *negotiation.Offer
}

// StartNegotiationHandler validates the pair, opens the negotiation and
// appends the opening offer in one transaction. A match rooted at the
// pair moves to IN_NEGOTIATION.
type StartNegotiationHandler struct {
	negotiations negotiation.Repository
	requirements order.RequirementRepository
	listings     order.AvailabilityRepository
	matches      trade.MatchRepository
	tx           common.Tx
	events       outbox.Repository
	clock        shared.Clock
	logger       zerolog.Logger
}

// NewStartNegotiationHandler creates the handler
func NewStartNegotiationHandler(
	negotiations negotiation.Repository,
	requirements order.RequirementRepository,
	listings order.AvailabilityRepository,
	matches trade.MatchRepository,
	tx common.Tx,
	events outbox.Repository,
	clock shared.Clock,
	logger zerolog.Logger,
) *StartNegotiationHandler {
	return &StartNegotiationHandler{
		negotiations: negotiations,
		requirements: requirements,
		listings:     listings,
		matches:      matches,
		tx:           tx,
		events:       events,
		clock:        clock,
		logger:       logger.With().Str("component", "negotiation").Logger(),
	}
}

// Handle executes the start negotiation command
func (h *StartNegotiationHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*StartNegotiationCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	req, err := h.requirements.FindByID(ctx, cmd.RequirementID)
	if err != nil {
		return nil, err
	}
	a, err := h.listings.FindByID(ctx, cmd.AvailabilityID)
	if err != nil {
		return nil, err
	}

	if req.CommodityID != a.CommodityID {
		return nil, negotiation.NewInvalidPairError(req.ID, a.ID, "commodity mismatch")
	}
	if req.BuyerID == a.SellerID {
		return nil, negotiation.NewInvalidPairError(req.ID, a.ID, "buyer and seller are the same partner")
	}

	actor := common.ActorFromContext(ctx)
	var initiator negotiation.Actor
	switch actor.PartnerID {
	case req.BuyerID:
		initiator = negotiation.ActorBuyer
	case a.SellerID:
		initiator = negotiation.ActorSeller
	default:
		return nil, shared.NewUnauthorizedError(actor.UserID, "start negotiation on pair "+req.ID+"/"+a.ID)
	}

	m, err := h.matches.FindActiveByPair(ctx, req.ID, a.ID)
	if err != nil {
		return nil, err
	}
	matchID := ""
	if m != nil {
		matchID = m.ID
	}

	now := h.clock.Now()
	n, err := negotiation.New(utils.GenerateEntityID("NEG"), req.ID, a.ID, matchID, req.BuyerID, a.SellerID, initiator, now)
	if err != nil {
		return nil, err
	}
	opening, err := negotiation.NewOffer(utils.GenerateEntityID("OFR"), n.ID, n.CurrentRound, initiator,
		shared.MoneyFromFloat(cmd.OpeningOffer.Price, cmd.OpeningOffer.Currency),
		shared.QuantityFromFloat(cmd.OpeningOffer.Quantity), now)
	if err != nil {
		return nil, err
	}
	opening.DeliveryTerms = cmd.OpeningOffer.DeliveryTerms
	opening.PaymentTerms = cmd.OpeningOffer.PaymentTerms
	opening.QualityTerms = cmd.OpeningOffer.QualityTerms

	err = h.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := h.negotiations.Add(txCtx, n); err != nil {
			return err
		}
		if err := h.negotiations.AddOffer(txCtx, opening); err != nil {
			return err
		}
		if m != nil {
			if err := m.EnterNegotiation(); err != nil {
				return err
			}
			if err := h.matches.Update(txCtx, m); err != nil {
				return err
			}
		}
		record, err := outbox.NewRecord(outbox.AggregateNegotiation, n.ID, outbox.EventNegotiationStarted, outbox.NegotiationEventPayload{
			NegotiationID: n.ID,
			BuyerID:       n.BuyerID,
			SellerID:      n.SellerID,
			Round:         n.CurrentRound,
			Status:        string(n.Status),
		}, now)
		if err != nil {
			return err
		}
		return h.events.Append(txCtx, record)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("negotiation_id", n.ID).
		Str("requirement_id", req.ID).
		Str("availability_id", a.ID).
		Str("initiator", string(initiator)).
		Msg("negotiation started")
	return &StartNegotiationResponse{Negotiation: n, Offer: opening}, nil
}
