package negotiation

import (
	"fmt"

	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// NotActiveError reports an operation against a negotiation that has
// already reached a terminal state. Terminal transitions are idempotent
// for callers that treat this as a 409-class result.
type NotActiveError struct {
	*shared.DomainError
	NegotiationID string
	Status        Status
}

func NewNotActiveError(negotiationID string, status Status) *NotActiveError {
	return &NotActiveError{
		DomainError:   shared.NewDomainError(fmt.Sprintf("negotiation %s is not active (%s)", negotiationID, status)),
		NegotiationID: negotiationID,
		Status:        status,
	}
}

// SelfBiddingError reports two consecutive rounds by the same actor
type SelfBiddingError struct {
	*shared.DomainError
	NegotiationID string
	Actor         Actor
}

func NewSelfBiddingError(negotiationID string, actor Actor) *SelfBiddingError {
	return &SelfBiddingError{
		DomainError:   shared.NewDomainError(fmt.Sprintf("actor %s made the previous offer on negotiation %s", actor, negotiationID)),
		NegotiationID: negotiationID,
		Actor:         actor,
	}
}

// InvalidPairError reports a negotiation start against orders that do
// not form a valid buyer/seller pair.
type InvalidPairError struct {
	*shared.DomainError
	RequirementID  string
	AvailabilityID string
}

func NewInvalidPairError(requirementID, availabilityID string, reason string) *InvalidPairError {
	return &InvalidPairError{
		DomainError:    shared.NewDomainError(fmt.Sprintf("invalid pair (%s, %s): %s", requirementID, availabilityID, reason)),
		RequirementID:  requirementID,
		AvailabilityID: availabilityID,
	}
}
