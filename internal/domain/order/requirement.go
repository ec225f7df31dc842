package order

import (
	"time"

	"github.com/mandiworks/tradecore-go/internal/domain/commodity"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// RequirementStatus is the lifecycle state of a buy-side order
type RequirementStatus string

const (
	RequirementDraft              RequirementStatus = "DRAFT"
	RequirementActive             RequirementStatus = "ACTIVE"
	RequirementPartiallyFulfilled RequirementStatus = "PARTIALLY_FULFILLED"
	RequirementFulfilled          RequirementStatus = "FULFILLED"
	RequirementCancelled          RequirementStatus = "CANCELLED"
	RequirementExpired            RequirementStatus = "EXPIRED"
)

// Requirement is an active buy-side order
type Requirement struct {
	ID                 string
	BuyerID            string
	CommodityID        string
	Quantity           shared.Quantity
	FulfilledQuantity  shared.Quantity
	Unit               string
	TargetPrice        shared.Money
	MaxPrice           *shared.Money
	DeliveryLocations  []DeliveryLocation
	AcceptedQuality    map[string]commodity.QualityRange
	ValidUntil         time.Time
	Status             RequirementStatus
	RiskPrecheckStatus shared.DecisionStatus
	AIBudgetFlag       bool
	CreatedAt          time.Time
	Version            int64
}

// NewRequirement validates inputs and builds an ACTIVE requirement
func NewRequirement(id, buyerID, commodityID string, quantity shared.Quantity, unit string, targetPrice shared.Money, locations []DeliveryLocation, validUntil time.Time, now time.Time) (*Requirement, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "must not be empty")
	}
	if buyerID == "" {
		return nil, shared.NewValidationError("buyer_id", "must not be empty")
	}
	if commodityID == "" {
		return nil, shared.NewValidationError("commodity_id", "must not be empty")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewValidationError("quantity", "must be positive")
	}
	if !targetPrice.IsPositive() {
		return nil, shared.NewValidationError("target_price", "must be positive")
	}
	if len(locations) == 0 {
		return nil, shared.NewValidationError("delivery_locations", "at least one delivery location required")
	}
	if !validUntil.IsZero() && validUntil.Before(now) {
		return nil, shared.NewValidationError("valid_until", "must be in the future")
	}
	return &Requirement{
		ID:                 id,
		BuyerID:            buyerID,
		CommodityID:        commodityID,
		Quantity:           quantity,
		FulfilledQuantity:  shared.ZeroQuantity(),
		Unit:               unit,
		TargetPrice:        targetPrice,
		DeliveryLocations:  locations,
		ValidUntil:         validUntil,
		Status:             RequirementActive,
		RiskPrecheckStatus: shared.DecisionPass,
		CreatedAt:          now,
		Version:            1,
	}, nil
}

// RemainingQuantity returns the unfulfilled part of the order
func (r *Requirement) RemainingQuantity() shared.Quantity {
	return r.Quantity.Sub(r.FulfilledQuantity)
}

// IsOpen reports whether the requirement can still be matched
func (r *Requirement) IsOpen() bool {
	return r.Status == RequirementActive || r.Status == RequirementPartiallyFulfilled
}

// IsTerminal reports whether the lifecycle has ended
func (r *Requirement) IsTerminal() bool {
	switch r.Status {
	case RequirementFulfilled, RequirementCancelled, RequirementExpired:
		return true
	}
	return false
}

// IsExpiredAt reports whether validity lapsed at the given time
func (r *Requirement) IsExpiredAt(now time.Time) bool {
	return !r.ValidUntil.IsZero() && now.After(r.ValidUntil)
}

// ApplyAllocation records a fulfilled quantity and moves the status to
// PARTIALLY_FULFILLED or FULFILLED. The allocator calls this inside the
// allocation transaction only.
func (r *Requirement) ApplyAllocation(allocated shared.Quantity) error {
	if !r.IsOpen() {
		return shared.NewTerminalStateError("requirement", r.ID, string(r.Status))
	}
	if !allocated.IsPositive() {
		return shared.NewValidationError("allocated_quantity", "must be positive")
	}
	if allocated.Cmp(r.RemainingQuantity()) > 0 {
		return shared.NewValidationError("allocated_quantity", "exceeds remaining quantity")
	}
	r.FulfilledQuantity = r.FulfilledQuantity.Add(allocated)
	if r.RemainingQuantity().IsZero() {
		r.Status = RequirementFulfilled
	} else {
		r.Status = RequirementPartiallyFulfilled
	}
	return nil
}

// Cancel terminates the order. Idempotent rejection on terminal states.
func (r *Requirement) Cancel() error {
	if r.IsTerminal() {
		return shared.NewTerminalStateError("requirement", r.ID, string(r.Status))
	}
	r.Status = RequirementCancelled
	return nil
}

// Expire marks a lapsed order. No-op when already terminal.
func (r *Requirement) Expire() {
	if !r.IsTerminal() {
		r.Status = RequirementExpired
	}
}
