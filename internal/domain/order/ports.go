package order

import (
	"context"
	"time"

	"github.com/mandiworks/tradecore-go/internal/domain/partner"
)

// RequirementRepository provides typed persistence for buy-side orders
type RequirementRepository interface {
	FindByID(ctx context.Context, id string) (*Requirement, error)
	Add(ctx context.Context, r *Requirement) error

	// Update persists mutations with an optimistic version check;
	// returns shared.ConflictError on a stale version.
	Update(ctx context.Context, r *Requirement) error

	// FindActiveByDedupKey returns the id of an open requirement with
	// the same dedup key, or empty when none exists.
	FindActiveByDedupKey(ctx context.Context, key string) (string, error)

	// FindOpenByBuyer returns open requirements of a partner
	FindOpenByBuyer(ctx context.Context, buyerID string) ([]*Requirement, error)

	// CountOpenSameDay counts open requirements of the partner for the
	// commodity created on the given calendar day (circular-trade guard).
	CountOpenSameDay(ctx context.Context, partnerID, commodityID string, day time.Time) (int64, error)

	// FindAcceptingLocation returns open requirements whose delivery set
	// accepts the registered location or a point within their radius.
	FindAcceptingLocation(ctx context.Context, commodityID, locationID string, point *AdHocLocation, maxKm float64) ([]*Requirement, error)

	// FindStaleActive returns open requirements not touched by the
	// scheduler since the cutoff; the sweeper re-scans them.
	FindStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]*Requirement, error)

	// MarkScanned stamps sweeper bookkeeping without bumping the version
	MarkScanned(ctx context.Context, id string, at time.Time) error
}

// AvailabilityRepository provides typed persistence for sell-side orders
type AvailabilityRepository interface {
	FindByID(ctx context.Context, id string) (*Availability, error)
	Add(ctx context.Context, a *Availability) error
	Update(ctx context.Context, a *Availability) error

	// UpdateLocked re-reads the row under a row-level lock inside the
	// ambient transaction, applies mutate and writes back with a version
	// check. This is the only legal write path for RemainingQuantity.
	UpdateLocked(ctx context.Context, id string, mutate func(*Availability) error) (*Availability, error)

	FindActiveByDedupKey(ctx context.Context, key string) (string, error)
	FindOpenBySeller(ctx context.Context, sellerID string) ([]*Availability, error)
	CountOpenSameDay(ctx context.Context, partnerID, commodityID string, day time.Time) (int64, error)

	// FindByLocationAndCommodity is the C4 prefilter: open availabilities
	// of a commodity whose registered location is in the set OR whose
	// ad-hoc point lies within maxKm of any point in the set.
	FindByLocationAndCommodity(ctx context.Context, commodityID string, locations []DeliveryLocation, maxKm float64) ([]*Availability, error)

	FindStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]*Availability, error)

	MarkScanned(ctx context.Context, id string, at time.Time) error
}

// SideOf reports the trade side an order type occupies
func SideOf(isRequirement bool) partner.TradeSide {
	if isRequirement {
		return partner.SideBuy
	}
	return partner.SideSell
}
