package negotiating

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/domain/negotiation"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/config"
	"github.com/mandiworks/tradecore-go/pkg/utils"
)

// offerRetryBudget is the version-conflict retry allowance for one
// offer submission. Interleaved rounds surface as SelfBidding instead.
const offerRetryBudget = 1

// OfferCommand places a counter-offer on an active negotiation
type OfferCommand struct {
	NegotiationID string
	Offer         OfferInput
}

// OfferResponse carries the accepted offer and, when the advisor ran,
// its non-binding counter suggestion.
type OfferResponse struct {
	Negotiation *negotiation.Negotiation
	Offer       *negotiation.Offer
	Advisory    *negotiation.Offer
	Warnings    []shared.Decision
}

// OfferHandler advances the round under the alternation rule. The round
// bump rides on the negotiation's version check, so concurrent offers
// serialise; the loser retries once against fresh state.
type OfferHandler struct {
	negotiations negotiation.Repository
	advisor      negotiation.CounterOfferAdvisor
	tx           common.Tx
	events       outbox.Repository
	riskCfg      config.RiskConfig
	clock        shared.Clock
	logger       zerolog.Logger
}

// NewOfferHandler creates the handler. advisor may be nil.
func NewOfferHandler(
	negotiations negotiation.Repository,
	advisor negotiation.CounterOfferAdvisor,
	tx common.Tx,
	events outbox.Repository,
	riskCfg config.RiskConfig,
	clock shared.Clock,
	logger zerolog.Logger,
) *OfferHandler {
	return &OfferHandler{
		negotiations: negotiations,
		advisor:      advisor,
		tx:           tx,
		events:       events,
		riskCfg:      riskCfg,
		clock:        clock,
		logger:       logger.With().Str("component", "negotiation").Logger(),
	}
}

// Handle executes the offer command
func (h *OfferHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*OfferCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	var resp *OfferResponse
	var err error
	for attempt := 0; attempt <= offerRetryBudget; attempt++ {
		resp, err = h.placeOffer(ctx, cmd)
		var conflict *shared.ConflictError
		if err == nil || !errors.As(err, &conflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	h.attachAdvisory(ctx, resp)
	return resp, nil
}

func (h *OfferHandler) placeOffer(ctx context.Context, cmd *OfferCommand) (*OfferResponse, error) {
	n, err := h.negotiations.FindByID(ctx, cmd.NegotiationID)
	if err != nil {
		return nil, err
	}

	actor := common.ActorFromContext(ctx)
	role := n.ActorOf(actor.PartnerID)
	if role == "" {
		return nil, shared.NewUnauthorizedError(actor.UserID, "offer on negotiation "+n.ID)
	}

	if err := n.AdvanceRound(role); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	offer, err := negotiation.NewOffer(utils.GenerateEntityID("OFR"), n.ID, n.CurrentRound, role,
		shared.MoneyFromFloat(cmd.Offer.Price, cmd.Offer.Currency),
		shared.QuantityFromFloat(cmd.Offer.Quantity), now)
	if err != nil {
		return nil, err
	}
	offer.DeliveryTerms = cmd.Offer.DeliveryTerms
	offer.PaymentTerms = cmd.Offer.PaymentTerms
	offer.QualityTerms = cmd.Offer.QualityTerms

	err = h.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := h.negotiations.Update(txCtx, n); err != nil {
			return err
		}
		if err := h.negotiations.AddOffer(txCtx, offer); err != nil {
			return err
		}
		record, err := outbox.NewRecord(outbox.AggregateNegotiation, n.ID, outbox.EventOfferMade, outbox.NegotiationEventPayload{
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
		Int("round", n.CurrentRound).
		Str("actor", string(role)).
		Msg("offer placed")
	return &OfferResponse{Negotiation: n, Offer: offer}, nil
}

// attachAdvisory runs the counter-offer advisor after the binding offer
// committed. Advisory offers never advance the round; failures and low
// confidence degrade to warnings.
func (h *OfferHandler) attachAdvisory(ctx context.Context, resp *OfferResponse) {
	if h.advisor == nil {
		return
	}
	history, err := h.negotiations.FindOffers(ctx, resp.Negotiation.ID)
	if err != nil {
		h.logger.Warn().Err(err).Str("negotiation_id", resp.Negotiation.ID).Msg("offer history unavailable for advisory")
		return
	}
	advisory, err := h.advisor.SuggestCounter(ctx, resp.Negotiation, history)
	if err != nil {
		h.logger.Warn().Err(err).Str("negotiation_id", resp.Negotiation.ID).Msg("counter advisory unavailable")
		return
	}
	if advisory == nil {
		return
	}
	if err := h.negotiations.AddOffer(ctx, advisory); err != nil {
		h.logger.Warn().Err(err).Str("negotiation_id", resp.Negotiation.ID).Msg("advisory offer not recorded")
		return
	}
	resp.Advisory = advisory
	if advisory.Confidence < h.riskCfg.AdvisoryConfidenceFloor {
		resp.Warnings = append(resp.Warnings, shared.Warn("AI_LOW_CONFIDENCE",
			fmt.Sprintf("counter advisory confidence %.2f below floor", advisory.Confidence)))
	}
}
