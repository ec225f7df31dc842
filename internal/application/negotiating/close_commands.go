package negotiating

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/domain/audit"
	"github.com/mandiworks/tradecore-go/internal/domain/negotiation"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/domain/trade"
)

// AcceptCommand closes a negotiation on its last offer
type AcceptCommand struct {
	NegotiationID string
}

// RejectCommand terminates a negotiation without agreement
type RejectCommand struct {
	NegotiationID string
}

// WithdrawCommand terminates a negotiation at a party's own request
type WithdrawCommand struct {
	NegotiationID string
}

// CloseResponse carries the terminal negotiation and, on acceptance,
// the agreed offer.
type CloseResponse struct {
	Negotiation *negotiation.Negotiation
	AgreedOffer *negotiation.Offer
}

// CloseHandler serves the three terminal transitions. One handler backs
// all three commands; the transition differs, the plumbing does not.
type CloseHandler struct {
	negotiations negotiation.Repository
	matches      trade.MatchRepository
	tx           common.Tx
	events       outbox.Repository
	auditLog     audit.Repository
	clock        shared.Clock
	logger       zerolog.Logger
}

// NewCloseHandler creates the handler
func NewCloseHandler(
	negotiations negotiation.Repository,
	matches trade.MatchRepository,
	tx common.Tx,
	events outbox.Repository,
	auditLog audit.Repository,
	clock shared.Clock,
	logger zerolog.Logger,
) *CloseHandler {
	return &CloseHandler{
		negotiations: negotiations,
		matches:      matches,
		tx:           tx,
		events:       events,
		auditLog:     auditLog,
		clock:        clock,
		logger:       logger.With().Str("component", "negotiation").Logger(),
	}
}

// Handle executes an accept, reject or withdraw command
func (h *CloseHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	switch cmd := request.(type) {
	case *AcceptCommand:
		return h.close(ctx, cmd.NegotiationID, negotiation.StatusAccepted)
	case *RejectCommand:
		return h.close(ctx, cmd.NegotiationID, negotiation.StatusRejected)
	case *WithdrawCommand:
		return h.close(ctx, cmd.NegotiationID, negotiation.StatusWithdrawn)
	default:
		return nil, fmt.Errorf("invalid request type")
	}
}

func (h *CloseHandler) close(ctx context.Context, negotiationID string, target negotiation.Status) (common.Response, error) {
	n, err := h.negotiations.FindByID(ctx, negotiationID)
	if err != nil {
		return nil, err
	}

	// Back-office access to negotiations is read-only; only the two
	// parties may move one to a terminal state.
	actor := common.ActorFromContext(ctx)
	role := n.ActorOf(actor.PartnerID)
	if role == "" {
		return nil, shared.NewUnauthorizedError(actor.UserID, "close negotiation "+n.ID)
	}

	now := h.clock.Now()
	var agreed *negotiation.Offer
	switch target {
	case negotiation.StatusAccepted:
		if err := n.Accept(role, now); err != nil {
			return nil, err
		}
		agreed, err = h.negotiations.LastOffer(ctx, n.ID)
		if err != nil {
			return nil, err
		}
	case negotiation.StatusRejected:
		if err := n.Reject(role, now); err != nil {
			return nil, err
		}
	case negotiation.StatusWithdrawn:
		if err := n.Withdraw(role, now); err != nil {
			return nil, err
		}
	}

	eventType := closeEventType(target)
	err = h.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := h.negotiations.Update(txCtx, n); err != nil {
			return err
		}
		if err := h.closeMatch(txCtx, n, target); err != nil {
			return err
		}
		record, err := outbox.NewRecord(outbox.AggregateNegotiation, n.ID, eventType, outbox.NegotiationEventPayload{
			NegotiationID: n.ID,
			BuyerID:       n.BuyerID,
			SellerID:      n.SellerID,
			Round:         n.CurrentRound,
			Status:        string(n.Status),
		}, now)
		if err != nil {
			return err
		}
		if err := h.events.Append(txCtx, record); err != nil {
			return err
		}
		return h.auditLog.Add(txCtx, audit.New(actor.UserID, audit.ActionNegotiationClosed, "negotiation", n.ID,
			nil, map[string]any{"status": string(n.Status), "round": n.CurrentRound}, now))
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("negotiation_id", n.ID).
		Str("status", string(n.Status)).
		Msg("negotiation closed")
	return &CloseResponse{Negotiation: n, AgreedOffer: agreed}, nil
}

// closeMatch moves the rooted match along with the negotiation outcome
func (h *CloseHandler) closeMatch(ctx context.Context, n *negotiation.Negotiation, target negotiation.Status) error {
	if n.MatchID == "" {
		return nil
	}
	m, err := h.matches.FindByID(ctx, n.MatchID)
	if err != nil {
		return err
	}
	if m.IsTerminal() {
		return nil
	}
	switch target {
	case negotiation.StatusAccepted:
		if err := m.Conclude(); err != nil {
			return err
		}
	case negotiation.StatusRejected, negotiation.StatusWithdrawn:
		if err := m.Reject(); err != nil {
			return err
		}
	}
	return h.matches.Update(ctx, m)
}

// closeEventType maps the terminal status onto its event. Withdrawals
// publish as rejections; the distinction lives on the negotiation row.
func closeEventType(target negotiation.Status) outbox.EventType {
	if target == negotiation.StatusAccepted {
		return outbox.EventNegotiationAccepted
	}
	return outbox.EventNegotiationRejected
}
