package outbox

// OrderEventPayload accompanies requirement and availability lifecycle
// events.
type OrderEventPayload struct {
	OrderID     string `json:"order_id"`
	PartnerID   string `json:"partner_id"`
	CommodityID string `json:"commodity_id"`
	Side        string `json:"side"`
	Status      string `json:"status"`
	Quantity    string `json:"quantity,omitempty"`
}

// MatchEventPayload accompanies match lifecycle events. Recipients only
// ever see the redacted slice the notification router builds for them.
type MatchEventPayload struct {
	MatchID           string   `json:"match_id"`
	RequirementID     string   `json:"requirement_id"`
	AvailabilityID    string   `json:"availability_id"`
	BuyerID           string   `json:"buyer_id"`
	SellerID          string   `json:"seller_id"`
	CommodityID       string   `json:"commodity_id"`
	AllocatedQuantity string   `json:"allocated_quantity"`
	Score             float64  `json:"score"`
	RiskStatus        string   `json:"risk_status"`
	Warnings          []string `json:"warnings,omitempty"`
}

// NegotiationEventPayload accompanies negotiation lifecycle events
type NegotiationEventPayload struct {
	NegotiationID string `json:"negotiation_id"`
	BuyerID       string `json:"buyer_id"`
	SellerID      string `json:"seller_id"`
	Round         int    `json:"round,omitempty"`
	Status        string `json:"status"`
}

// RiskEventPayload accompanies RiskBlock and RiskWarning events. Code
// carries the machine-readable decision code the consumers key off.
type RiskEventPayload struct {
	RequirementID  string `json:"requirement_id,omitempty"`
	AvailabilityID string `json:"availability_id,omitempty"`
	BuyerID        string `json:"buyer_id,omitempty"`
	SellerID       string `json:"seller_id,omitempty"`
	PartnerID      string `json:"partner_id,omitempty"`
	Code           string `json:"code"`
	Reason         string `json:"reason,omitempty"`
}

// MatchingRetryPayload re-arms a failed matching pass. The record's
// NextRetryAt carries the backoff; the payload carries the attempt
// count so the next failure climbs the ladder.
type MatchingRetryPayload struct {
	Attempt int    `json:"attempt"`
	Cause   string `json:"cause,omitempty"`
}

// PartnerEventPayload accompanies partner status changes
type PartnerEventPayload struct {
	PartnerID string `json:"partner_id"`
	Status    string `json:"status"`
}

// OperatorAlertPayload accompanies alerts that need human attention,
// e.g. a dead outbox record.
type OperatorAlertPayload struct {
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
	RefID   string `json:"ref_id,omitempty"`
}
