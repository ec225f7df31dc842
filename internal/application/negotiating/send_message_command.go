package negotiating

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/domain/negotiation"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/pkg/utils"
)

// SendMessageCommand appends a chat message to a negotiation
type SendMessageCommand struct {
	NegotiationID string
	Body          string
}

// SendMessageResponse carries the stored message
type SendMessageResponse struct {
	Message *negotiation.Message
}

// SendMessageHandler appends chat without touching negotiation state.
// Messages are allowed on terminal negotiations; parties often settle
// logistics after acceptance.
type SendMessageHandler struct {
	negotiations negotiation.Repository
	tx           common.Tx
	events       outbox.Repository
	clock        shared.Clock
	logger       zerolog.Logger
}

// NewSendMessageHandler creates the handler
func NewSendMessageHandler(
	negotiations negotiation.Repository,
	tx common.Tx,
	events outbox.Repository,
	clock shared.Clock,
	logger zerolog.Logger,
) *SendMessageHandler {
	return &SendMessageHandler{
		negotiations: negotiations,
		tx:           tx,
		events:       events,
		clock:        clock,
		logger:       logger.With().Str("component", "negotiation").Logger(),
	}
}

// Handle executes the send message command
func (h *SendMessageHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	cmd, ok := request.(*SendMessageCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	n, err := h.negotiations.FindByID(ctx, cmd.NegotiationID)
	if err != nil {
		return nil, err
	}

	actor := common.ActorFromContext(ctx)
	var sender negotiation.SenderRole
	switch n.ActorOf(actor.PartnerID) {
	case negotiation.ActorBuyer:
		sender = negotiation.SenderBuyer
	case negotiation.ActorSeller:
		sender = negotiation.SenderSeller
	default:
		if !actor.IsBackOffice() {
			return nil, shared.NewUnauthorizedError(actor.UserID, "message on negotiation "+n.ID)
		}
		sender = negotiation.SenderSystem
	}

	now := h.clock.Now()
	msg, err := negotiation.NewMessage(utils.GenerateEntityID("MSG"), n.ID, sender, cmd.Body, now)
	if err != nil {
		return nil, err
	}

	err = h.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := h.negotiations.AddMessage(txCtx, msg); err != nil {
			return err
		}
		record, err := outbox.NewRecord(outbox.AggregateNegotiation, n.ID, outbox.EventMessageSent, outbox.NegotiationEventPayload{
			NegotiationID: n.ID,
			BuyerID:       n.BuyerID,
			SellerID:      n.SellerID,
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

	return &SendMessageResponse{Message: msg}, nil
}
