package negotiation

import (
	"time"

	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// Offer is one priced proposal within a negotiation round. AI advisory
// offers carry a confidence and never advance the round counter.
type Offer struct {
	ID            string
	NegotiationID string
	Round         int
	Actor         Actor
	Price         shared.Money
	Quantity      shared.Quantity
	DeliveryTerms string
	PaymentTerms  string
	QualityTerms  string
	Confidence    float64
	CreatedAt     time.Time
}

// NewOffer validates and builds an offer for a round
func NewOffer(id, negotiationID string, round int, actor Actor, price shared.Money, quantity shared.Quantity, now time.Time) (*Offer, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "must not be empty")
	}
	if negotiationID == "" {
		return nil, shared.NewValidationError("negotiation_id", "must not be empty")
	}
	if round < 1 {
		return nil, shared.NewValidationError("round", "must be at least 1")
	}
	if !price.IsPositive() {
		return nil, shared.NewValidationError("price", "must be positive")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewValidationError("quantity", "must be positive")
	}
	return &Offer{
		ID:            id,
		NegotiationID: negotiationID,
		Round:         round,
		Actor:         actor,
		Price:         price,
		Quantity:      quantity,
		CreatedAt:     now,
	}, nil
}

// IsAdvisory reports whether the offer is a non-binding AI suggestion
func (o *Offer) IsAdvisory() bool {
	return o.Actor == ActorAIAdvisory
}

// SenderRole identifies the author of a chat message
type SenderRole string

const (
	SenderBuyer  SenderRole = "BUYER"
	SenderSeller SenderRole = "SELLER"
	SenderAI     SenderRole = "AI"
	SenderSystem SenderRole = "SYSTEM"
)

// Message is an append-only chat entry within a negotiation. Messages
// never affect negotiation state.
type Message struct {
	ID            string
	NegotiationID string
	SenderRole    SenderRole
	Body          string
	ReadAt        *time.Time
	CreatedAt     time.Time
}

// NewMessage validates and builds a chat message
func NewMessage(id, negotiationID string, sender SenderRole, body string, now time.Time) (*Message, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "must not be empty")
	}
	if negotiationID == "" {
		return nil, shared.NewValidationError("negotiation_id", "must not be empty")
	}
	if body == "" {
		return nil, shared.NewValidationError("body", "must not be empty")
	}
	return &Message{
		ID:            id,
		NegotiationID: negotiationID,
		SenderRole:    sender,
		Body:          body,
		CreatedAt:     now,
	}, nil
}

// MarkRead stamps the read time once; later calls keep the first stamp
func (m *Message) MarkRead(now time.Time) {
	if m.ReadAt == nil {
		t := now
		m.ReadAt = &t
	}
}
