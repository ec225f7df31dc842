package outbox

// AggregateType names the aggregate an event belongs to. Events of the
// same aggregate are serialised; across aggregates no ordering holds.
type AggregateType string

const (
	AggregateRequirement  AggregateType = "requirement"
	AggregateAvailability AggregateType = "availability"
	AggregatePartner      AggregateType = "partner"
	AggregateMatch        AggregateType = "match"
	AggregateNegotiation  AggregateType = "negotiation"
)

// EventType names a domain event published through the outbox
type EventType string

const (
	EventRequirementCreated        EventType = "RequirementCreated"
	EventRequirementUpdated        EventType = "RequirementUpdated"
	EventRequirementCancelled      EventType = "RequirementCancelled"
	EventRequirementStatusChanged  EventType = "RequirementStatusChanged"
	EventAvailabilityCreated       EventType = "AvailabilityCreated"
	EventAvailabilityUpdated       EventType = "AvailabilityUpdated"
	EventAvailabilityCancelled     EventType = "AvailabilityCancelled"
	EventAvailabilityStatusChanged EventType = "AvailabilityStatusChanged"
	EventPartnerStatusChanged      EventType = "PartnerStatusChanged"
	EventMatchProposed             EventType = "MatchProposed"
	EventMatchNotified             EventType = "MatchNotified"
	EventMatchRejected             EventType = "MatchRejected"
	EventMatchExpired              EventType = "MatchExpired"
	EventNegotiationStarted        EventType = "NegotiationStarted"
	EventOfferMade                 EventType = "OfferMade"
	EventNegotiationAccepted       EventType = "NegotiationAccepted"
	EventNegotiationRejected       EventType = "NegotiationRejected"
	EventNegotiationExpired        EventType = "NegotiationExpired"
	EventMessageSent               EventType = "MessageSent"
	EventMatchingRetry             EventType = "MatchingRetryScheduled"
	EventRiskWarning               EventType = "RiskWarning"
	EventRiskBlock                 EventType = "RiskBlock"
	EventOperatorAlert             EventType = "OperatorAlert"
)
