package order

import (
	"time"

	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// AvailabilityStatus is the lifecycle state of a sell-side order
type AvailabilityStatus string

const (
	AvailabilityAvailable     AvailabilityStatus = "AVAILABLE"
	AvailabilityPartiallySold AvailabilityStatus = "PARTIALLY_SOLD"
	AvailabilitySoldOut       AvailabilityStatus = "SOLD_OUT"
	AvailabilityCancelled     AvailabilityStatus = "CANCELLED"
	AvailabilityExpired       AvailabilityStatus = "EXPIRED"
)

// Availability is an active sell-side order. LocationID empty means the
// stock sits at an ad-hoc point carried inline.
type Availability struct {
	ID                  string
	SellerID            string
	CommodityID         string
	TotalQuantity       shared.Quantity
	RemainingQuantity   shared.Quantity
	BasePrice           shared.Money
	LocationID          string
	AdHoc               *AdHocLocation
	QualityParams       map[string]float64
	ValidUntil          time.Time
	Status              AvailabilityStatus
	AISuggestedMaxPrice *shared.Money
	AIRecommendedFor    []string
	// AIAdvisoryConfidence is the confidence of the advisory signal
	// behind the AI fields; zero when no advisory ran.
	AIAdvisoryConfidence float64
	CreatedAt            time.Time
	Version              int64
}

// NewAvailability validates inputs and builds an AVAILABLE listing.
// Exactly one of locationID / adHoc must be provided.
func NewAvailability(id, sellerID, commodityID string, totalQuantity shared.Quantity, basePrice shared.Money, locationID string, adHoc *AdHocLocation, validUntil time.Time, now time.Time) (*Availability, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "must not be empty")
	}
	if sellerID == "" {
		return nil, shared.NewValidationError("seller_id", "must not be empty")
	}
	if commodityID == "" {
		return nil, shared.NewValidationError("commodity_id", "must not be empty")
	}
	if !totalQuantity.IsPositive() {
		return nil, shared.NewValidationError("total_quantity", "must be positive")
	}
	if !basePrice.IsPositive() {
		return nil, shared.NewValidationError("base_price", "must be positive")
	}
	if locationID == "" {
		if adHoc == nil {
			return nil, shared.NewValidationError("location", "registered location id or ad-hoc location required")
		}
		if err := adHoc.Validate(); err != nil {
			return nil, err
		}
	}
	if !validUntil.IsZero() && validUntil.Before(now) {
		return nil, shared.NewValidationError("valid_until", "must be in the future")
	}
	return &Availability{
		ID:                id,
		SellerID:          sellerID,
		CommodityID:       commodityID,
		TotalQuantity:     totalQuantity,
		RemainingQuantity: totalQuantity,
		BasePrice:         basePrice,
		LocationID:        locationID,
		AdHoc:             adHoc,
		Status:            AvailabilityAvailable,
		CreatedAt:         now,
		Version:           1,
	}, nil
}

// IsOpen reports whether stock can still be allocated
func (a *Availability) IsOpen() bool {
	return a.Status == AvailabilityAvailable || a.Status == AvailabilityPartiallySold
}

// IsTerminal reports whether the lifecycle has ended
func (a *Availability) IsTerminal() bool {
	switch a.Status {
	case AvailabilitySoldOut, AvailabilityCancelled, AvailabilityExpired:
		return true
	}
	return false
}

// IsExpiredAt reports whether validity lapsed at the given time
func (a *Availability) IsExpiredAt(now time.Time) bool {
	return !a.ValidUntil.IsZero() && now.After(a.ValidUntil)
}

// Allocate removes quantity from the remaining stock and moves the
// status forward. Must only run inside the row-locked allocation
// transaction; remaining never drops below zero.
func (a *Availability) Allocate(quantity shared.Quantity) error {
	if !a.IsOpen() {
		return shared.NewTerminalStateError("availability", a.ID, string(a.Status))
	}
	if !quantity.IsPositive() {
		return shared.NewValidationError("quantity", "must be positive")
	}
	if quantity.Cmp(a.RemainingQuantity) > 0 {
		return shared.NewValidationError("quantity", "exceeds remaining quantity")
	}
	a.RemainingQuantity = a.RemainingQuantity.Sub(quantity)
	if a.RemainingQuantity.IsZero() {
		a.Status = AvailabilitySoldOut
	} else {
		a.Status = AvailabilityPartiallySold
	}
	return nil
}

// Release returns quantity from a cancelled match to the remaining stock
func (a *Availability) Release(quantity shared.Quantity) error {
	if !quantity.IsPositive() {
		return shared.NewValidationError("quantity", "must be positive")
	}
	restored := a.RemainingQuantity.Add(quantity)
	if restored.Cmp(a.TotalQuantity) > 0 {
		return shared.NewValidationError("quantity", "release exceeds total quantity")
	}
	a.RemainingQuantity = restored
	if a.Status == AvailabilitySoldOut || a.Status == AvailabilityPartiallySold {
		if a.RemainingQuantity.Cmp(a.TotalQuantity) == 0 {
			a.Status = AvailabilityAvailable
		} else {
			a.Status = AvailabilityPartiallySold
		}
	}
	return nil
}

// Cancel terminates the listing. Idempotent rejection on terminal states.
func (a *Availability) Cancel() error {
	if a.IsTerminal() {
		return shared.NewTerminalStateError("availability", a.ID, string(a.Status))
	}
	a.Status = AvailabilityCancelled
	return nil
}

// Expire marks a lapsed listing. No-op when already terminal.
func (a *Availability) Expire() {
	if !a.IsTerminal() {
		a.Status = AvailabilityExpired
	}
}

// RecommendedFor reports whether the advisory signal recommends this
// seller to the given buyer. Drives the AI score boost.
func (a *Availability) RecommendedFor(buyerID string) bool {
	for _, id := range a.AIRecommendedFor {
		if id == buyerID {
			return true
		}
	}
	return false
}
