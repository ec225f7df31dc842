package trade

import (
	"time"

	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// MatchStatus is the lifecycle state of a proposed pairing
type MatchStatus string

const (
	MatchProposed        MatchStatus = "PROPOSED"
	MatchNotified        MatchStatus = "NOTIFIED"
	MatchAcceptedByBuyer MatchStatus = "ACCEPTED_BY_BUYER"
	MatchInNegotiation   MatchStatus = "IN_NEGOTIATION"
	MatchConcluded       MatchStatus = "CONCLUDED"
	MatchRejected        MatchStatus = "REJECTED"
	MatchExpired         MatchStatus = "EXPIRED"
)

// ScoreBreakdown retains the sub-scores and adjustments behind a match
// score so every proposal stays explainable after the fact.
type ScoreBreakdown struct {
	Quality     float64
	Price       float64
	Delivery    float64
	Risk        float64
	WarnPenalty bool
	AIBoost     bool
}

// Match pairs one requirement with one availability and an allocated
// quantity. Orders are referenced by id only; destroying a match never
// touches the orders.
type Match struct {
	ID                string
	RequirementID     string
	AvailabilityID    string
	BuyerID           string
	SellerID          string
	AllocatedQuantity shared.Quantity
	Score             float64
	Breakdown         ScoreBreakdown
	RiskDecision      shared.DecisionStatus
	RiskCode          string
	RiskDetails       map[string]string
	CapabilityCodes   []string
	Advisories        []string
	Status            MatchStatus
	CreatedAt         time.Time
	Version           int64
}

// NewMatch builds a PROPOSED match. The risk decision must not be FAIL;
// failing pairs never reach match creation.
func NewMatch(id, requirementID, availabilityID, buyerID, sellerID string, allocated shared.Quantity, score float64, breakdown ScoreBreakdown, risk shared.Decision, now time.Time) (*Match, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "must not be empty")
	}
	if buyerID == sellerID {
		return nil, shared.NewValidationError("seller_id", "buyer and seller must differ")
	}
	if !allocated.IsPositive() {
		return nil, shared.NewValidationError("allocated_quantity", "must be positive")
	}
	if risk.Status == shared.DecisionFail {
		return nil, shared.NewValidationError("risk_decision", "failed pairs cannot form a match")
	}
	return &Match{
		ID:                id,
		RequirementID:     requirementID,
		AvailabilityID:    availabilityID,
		BuyerID:           buyerID,
		SellerID:          sellerID,
		AllocatedQuantity: allocated,
		Score:             score,
		Breakdown:         breakdown,
		RiskDecision:      risk.Status,
		RiskCode:          risk.Code,
		RiskDetails:       risk.Details,
		Status:            MatchProposed,
		CreatedAt:         now,
		Version:           1,
	}, nil
}

// IsActive reports whether the match still blocks a new proposal for the
// same (requirement, availability) pair.
func (m *Match) IsActive() bool {
	switch m.Status {
	case MatchProposed, MatchNotified, MatchAcceptedByBuyer, MatchInNegotiation:
		return true
	}
	return false
}

// IsTerminal reports whether the match lifecycle has ended
func (m *Match) IsTerminal() bool {
	switch m.Status {
	case MatchConcluded, MatchRejected, MatchExpired:
		return true
	}
	return false
}

// MarkNotified records successful fan-out of the proposal
func (m *Match) MarkNotified() error {
	if m.Status != MatchProposed {
		return shared.NewTerminalStateError("match", m.ID, string(m.Status))
	}
	m.Status = MatchNotified
	return nil
}

// AcceptByBuyer records the buyer's interest in the proposal
func (m *Match) AcceptByBuyer() error {
	if m.Status != MatchProposed && m.Status != MatchNotified {
		return shared.NewTerminalStateError("match", m.ID, string(m.Status))
	}
	m.Status = MatchAcceptedByBuyer
	return nil
}

// EnterNegotiation links the match to an opened negotiation
func (m *Match) EnterNegotiation() error {
	if m.IsTerminal() {
		return shared.NewTerminalStateError("match", m.ID, string(m.Status))
	}
	m.Status = MatchInNegotiation
	return nil
}

// Conclude records a formed trade
func (m *Match) Conclude() error {
	if m.IsTerminal() {
		return shared.NewTerminalStateError("match", m.ID, string(m.Status))
	}
	m.Status = MatchConcluded
	return nil
}

// Reject terminates the proposal
func (m *Match) Reject() error {
	if m.IsTerminal() {
		return shared.NewTerminalStateError("match", m.ID, string(m.Status))
	}
	m.Status = MatchRejected
	return nil
}

// Expire terminates a stale proposal. No-op when already terminal.
func (m *Match) Expire() {
	if !m.IsTerminal() {
		m.Status = MatchExpired
	}
}
