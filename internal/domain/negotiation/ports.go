package negotiation

import (
	"context"
	"time"
)

// Repository provides typed persistence for negotiations and the offers
// and messages they own.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Negotiation, error)
	Add(ctx context.Context, n *Negotiation) error

	// Update persists mutations with an optimistic version check;
	// returns shared.ConflictError on a stale version. Offer inserts
	// ride on the same version bump, serialising rounds.
	Update(ctx context.Context, n *Negotiation) error

	AddOffer(ctx context.Context, o *Offer) error
	FindOffers(ctx context.Context, negotiationID string) ([]*Offer, error)

	// LastOffer returns the newest non-advisory offer, or nil
	LastOffer(ctx context.Context, negotiationID string) (*Offer, error)

	AddMessage(ctx context.Context, m *Message) error
	FindMessages(ctx context.Context, negotiationID string) ([]*Message, error)

	// FindActiveOlderThan returns active negotiations created before the
	// cutoff; the expiry tick terminates them.
	FindActiveOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*Negotiation, error)
}

// CounterOfferAdvisor produces a non-binding counter-offer suggestion
// with a confidence score. It never transitions negotiation state.
type CounterOfferAdvisor interface {
	SuggestCounter(ctx context.Context, n *Negotiation, history []*Offer) (*Offer, error)
}
