package orders

import (
	"context"
	"errors"

	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// errLostIdempotencyRace rolls a posting transaction back when another
// execution registered the key first; the caller replays that result.
var errLostIdempotencyRace = errors.New("idempotency key already registered")

// DeliveryLocationInput is one element of a requirement's delivery set
// as given at the command boundary.
type DeliveryLocationInput struct {
	LocationID string
	Lat        float64
	Lng        float64
	RadiusKm   float64
}

// AdHocLocationInput carries an ad-hoc stock location for an availability
type AdHocLocationInput struct {
	Address string
	Lat     float64
	Lng     float64
	Pincode string
	Region  string
}

// ListingAdvisor supplies the optional advisory signals attached to new
// orders. Implementations may call an external model; advisory failures
// never block posting.
type ListingAdvisor interface {
	// AdviseRequirement flags a requirement whose target price looks
	// inconsistent with the buyer's budget profile.
	AdviseRequirement(ctx context.Context, r *order.Requirement, buyer *partner.Partner) (budgetFlag bool, err error)

	// AdviseAvailability suggests a price ceiling and a recommended
	// buyer set for a new listing, with a confidence in [0,1].
	AdviseAvailability(ctx context.Context, a *order.Availability, seller *partner.Partner) (suggestedMax *shared.Money, recommendedFor []string, confidence float64, err error)
}

// toDeliveryLocations converts boundary inputs into domain values
func toDeliveryLocations(inputs []DeliveryLocationInput) []order.DeliveryLocation {
	locations := make([]order.DeliveryLocation, 0, len(inputs))
	for _, in := range inputs {
		locations = append(locations, order.DeliveryLocation{
			LocationID: in.LocationID,
			Point:      shared.GeoPoint{Lat: in.Lat, Lng: in.Lng},
			RadiusKm:   in.RadiusKm,
		})
	}
	return locations
}

// rejection converts a blocking decision into the rejection error
// surfaced to the caller, carrying code, reason and remediation hint.
func rejection(d shared.Decision) error {
	return shared.NewRejectionError(d.Code, d.Reason, d.Details["how_to_fix"])
}
