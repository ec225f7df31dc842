package ml

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mandiworks/tradecore-go/internal/domain/negotiation"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/pkg/utils"
)

// Price headroom the listing advisory suggests above the base price
var suggestedMaxFactor = decimal.NewFromFloat(1.10)

// RuleBasedAdvisor is the advisory fallback used when no model service
// is wired. Signals are derived from data already on hand; everything
// it emits carries the fallback confidence.
type RuleBasedAdvisor struct {
	clock shared.Clock
}

// NewRuleBasedAdvisor creates the fallback advisor
func NewRuleBasedAdvisor(clock shared.Clock) *RuleBasedAdvisor {
	return &RuleBasedAdvisor{clock: clock}
}

// AdviseRequirement flags a requirement whose order value exceeds the
// buyer's remaining credit headroom.
func (a *RuleBasedAdvisor) AdviseRequirement(_ context.Context, r *order.Requirement, buyer *partner.Partner) (bool, error) {
	orderValue := r.TargetPrice.Amount.Mul(r.Quantity.Value)
	return orderValue.GreaterThan(buyer.CreditHeadroom()), nil
}

// AdviseAvailability suggests a price ceiling ten percent above base.
// The fallback has no cross-partner signal, so it recommends nobody.
func (a *RuleBasedAdvisor) AdviseAvailability(_ context.Context, listing *order.Availability, _ *partner.Partner) (*shared.Money, []string, float64, error) {
	suggested := listing.BasePrice.Mul(suggestedMaxFactor)
	return &suggested, nil, fallbackConfidence, nil
}

// SuggestCounter proposes the midpoint of the last two binding offers.
// Fewer than two rounds give the advisor nothing to interpolate.
func (a *RuleBasedAdvisor) SuggestCounter(_ context.Context, n *negotiation.Negotiation, history []*negotiation.Offer) (*negotiation.Offer, error) {
	binding := make([]*negotiation.Offer, 0, len(history))
	for _, o := range history {
		if !o.IsAdvisory() {
			binding = append(binding, o)
		}
	}
	if len(binding) < 2 {
		return nil, nil
	}

	last := binding[len(binding)-1]
	previous := binding[len(binding)-2]
	midpoint := last.Price.Amount.Add(previous.Price.Amount).Div(decimal.NewFromInt(2))

	return &negotiation.Offer{
		ID:            utils.GenerateEntityID("OFR"),
		NegotiationID: n.ID,
		Round:         n.CurrentRound,
		Actor:         negotiation.ActorAIAdvisory,
		Price:         shared.NewMoney(midpoint, last.Price.Currency),
		Quantity:      last.Quantity,
		Confidence:    fallbackConfidence,
		CreatedAt:     a.clock.Now(),
	}, nil
}
