package order

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// AdHocLocation is a delivery point given directly by coordinates instead
// of a registered location id.
type AdHocLocation struct {
	Address string
	Point   shared.GeoPoint
	Pincode string
	Region  string
}

// Validate checks the minimum fields an ad-hoc location must carry
func (l AdHocLocation) Validate() error {
	if l.Point.IsZero() {
		return shared.NewValidationError("location", "ad-hoc location requires coordinates")
	}
	if l.Address == "" {
		return shared.NewValidationError("location.address", "must not be empty")
	}
	return nil
}

// DeliveryLocation is one element of a requirement's delivery set:
// either a registered location id or an ad-hoc point with a radius.
type DeliveryLocation struct {
	LocationID string
	Point      shared.GeoPoint
	RadiusKm   float64
}

// IsRegistered reports whether the element references a registered location
func (l DeliveryLocation) IsRegistered() bool {
	return l.LocationID != ""
}

// key is the canonical form used in the dedup hash
func (l DeliveryLocation) key() string {
	if l.IsRegistered() {
		return "loc:" + l.LocationID
	}
	return fmt.Sprintf("geo:%.5f,%.5f,%.1f", l.Point.Lat, l.Point.Lng, l.RadiusKm)
}

// DeliveryHash produces an order-independent canonical string for a
// delivery location set. Equal sets hash equal regardless of ordering.
func DeliveryHash(locations []DeliveryLocation) string {
	keys := make([]string, 0, len(locations))
	for _, l := range locations {
		keys = append(keys, l.key())
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}
