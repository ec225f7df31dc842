package negotiation

import (
	"time"

	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// Status is the lifecycle state of a negotiation
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusExpired   Status = "EXPIRED"
	StatusWithdrawn Status = "WITHDRAWN"
)

// Actor identifies who acts in a negotiation round
type Actor string

const (
	ActorBuyer      Actor = "BUYER"
	ActorSeller     Actor = "SELLER"
	ActorAIAdvisory Actor = "AI_ADVISORY"
)

// Negotiation is a bounded offer/counter-offer sequence between the
// buyer and seller of a (requirement, availability) pair. It may be
// rooted at a match or created directly; either way offers are
// exclusively owned by the negotiation.
type Negotiation struct {
	ID             string
	RequirementID  string
	AvailabilityID string
	MatchID        string
	BuyerID        string
	SellerID       string
	CurrentRound   int
	LastActor      Actor
	Status         Status
	CreatedAt      time.Time
	TerminatedAt   *time.Time
	Version        int64
}

// New opens a negotiation at round 1 owned by the initiating actor.
// The opening offer is appended by the command handler in the same
// transaction.
func New(id, requirementID, availabilityID, matchID, buyerID, sellerID string, initiator Actor, now time.Time) (*Negotiation, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "must not be empty")
	}
	if buyerID == "" || sellerID == "" {
		return nil, shared.NewValidationError("parties", "buyer and seller required")
	}
	if buyerID == sellerID {
		return nil, shared.NewValidationError("parties", "buyer and seller must differ")
	}
	if initiator != ActorBuyer && initiator != ActorSeller {
		return nil, shared.NewValidationError("initiator", "must be buyer or seller")
	}
	return &Negotiation{
		ID:             id,
		RequirementID:  requirementID,
		AvailabilityID: availabilityID,
		MatchID:        matchID,
		BuyerID:        buyerID,
		SellerID:       sellerID,
		CurrentRound:   1,
		LastActor:      initiator,
		Status:         StatusActive,
		CreatedAt:      now,
		Version:        1,
	}, nil
}

// IsActive reports whether further rounds are possible
func (n *Negotiation) IsActive() bool {
	return n.Status == StatusActive
}

// ActorOf maps a partner id to its negotiation role, or empty when the
// partner is not a party.
func (n *Negotiation) ActorOf(partnerID string) Actor {
	switch partnerID {
	case n.BuyerID:
		return ActorBuyer
	case n.SellerID:
		return ActorSeller
	}
	return ""
}

// CanAccess reports whether the partner may read this negotiation.
// Back-office access is decided by the caller from the actor's roles.
func (n *Negotiation) CanAccess(partnerID string) bool {
	return n.ActorOf(partnerID) != ""
}

// AdvanceRound validates the alternation rule and moves to the next
// round for the given actor. The actor of round N+1 must differ from
// the actor of round N.
func (n *Negotiation) AdvanceRound(actor Actor) error {
	if !n.IsActive() {
		return NewNotActiveError(n.ID, n.Status)
	}
	if actor != ActorBuyer && actor != ActorSeller {
		return shared.NewValidationError("actor", "must be buyer or seller")
	}
	if actor == n.LastActor {
		return NewSelfBiddingError(n.ID, actor)
	}
	n.CurrentRound++
	n.LastActor = actor
	return nil
}

// Accept closes the negotiation on the last offer. Only the actor who
// did not make the last offer may accept.
func (n *Negotiation) Accept(actor Actor, now time.Time) error {
	if !n.IsActive() {
		return NewNotActiveError(n.ID, n.Status)
	}
	if actor != ActorBuyer && actor != ActorSeller {
		return shared.NewValidationError("actor", "must be buyer or seller")
	}
	if actor == n.LastActor {
		return NewSelfBiddingError(n.ID, actor)
	}
	n.terminate(StatusAccepted, now)
	return nil
}

// Reject terminates the negotiation without agreement
func (n *Negotiation) Reject(actor Actor, now time.Time) error {
	if !n.IsActive() {
		return NewNotActiveError(n.ID, n.Status)
	}
	if actor != ActorBuyer && actor != ActorSeller {
		return shared.NewValidationError("actor", "must be buyer or seller")
	}
	n.terminate(StatusRejected, now)
	return nil
}

// Withdraw terminates the negotiation at the initiator's request
func (n *Negotiation) Withdraw(actor Actor, now time.Time) error {
	if !n.IsActive() {
		return NewNotActiveError(n.ID, n.Status)
	}
	if actor != ActorBuyer && actor != ActorSeller {
		return shared.NewValidationError("actor", "must be buyer or seller")
	}
	n.terminate(StatusWithdrawn, now)
	return nil
}

// ExpireIfDue moves an overdue negotiation to EXPIRED. Returns true
// when the transition happened.
func (n *Negotiation) ExpireIfDue(now time.Time, ttl time.Duration) bool {
	if !n.IsActive() {
		return false
	}
	if now.Before(n.CreatedAt.Add(ttl)) {
		return false
	}
	n.terminate(StatusExpired, now)
	return true
}

func (n *Negotiation) terminate(status Status, now time.Time) {
	n.Status = status
	t := now
	n.TerminatedAt = &t
}
