package helpers

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandiworks/tradecore-go/internal/domain/commodity"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// FixedTime is the reference instant fixture entities are created at.
// Tests that care about expiry build ValidUntil relative to it.
var FixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// ActivePartner builds an ACTIVE partner with sane rating and credit
// figures. Callers mutate the returned struct for scenario specifics.
func ActivePartner(t *testing.T, id string, partnerType partner.PartnerType) *partner.Partner {
	t.Helper()
	p, err := partner.NewPartner(id, "Fixture "+id, partnerType, "IN")
	if err != nil {
		t.Fatalf("failed to build partner fixture: %v", err)
	}
	p.Activate()
	p.Rating = 4.0
	p.PaymentPerformance = 90
	p.DeliveryPerformance = 90
	p.CreditLimit = decimal.NewFromInt(10_000_000)
	// Every fixture partner gets its own email domain; shared domains
	// read as party links to the risk engine.
	p.Email = "ops@" + strings.ToLower(id) + ".example"
	return p
}

// GradedCommodity is a commodity with one quality standard ("grade") so
// quality band checks have something to bite on.
func GradedCommodity(id string) *commodity.Commodity {
	return &commodity.Commodity{
		ID:       id,
		Name:     "Fixture " + id,
		Category: "GRAIN",
		QualityStandards: map[string]commodity.QualityRange{
			"grade": {Min: 0, Max: 10},
		},
		SupportedCurrencies: []string{"INR"},
	}
}

// ActiveRequirement builds an open buy-side order for the commodity with
// a single registered delivery location.
func ActiveRequirement(t *testing.T, id, buyerID, commodityID string, quantity float64) *order.Requirement {
	t.Helper()
	req, err := order.NewRequirement(
		id, buyerID, commodityID,
		shared.QuantityFromFloat(quantity), "MT",
		shared.MoneyFromFloat(25_000, "INR"),
		[]order.DeliveryLocation{{LocationID: "LOC-1"}},
		FixedTime.Add(30*24*time.Hour),
		FixedTime,
	)
	if err != nil {
		t.Fatalf("failed to build requirement fixture: %v", err)
	}
	return req
}

// OpenAvailability builds an open sell-side listing at an ad-hoc point.
func OpenAvailability(t *testing.T, id, sellerID, commodityID string, quantity float64) *order.Availability {
	t.Helper()
	a, err := order.NewAvailability(
		id, sellerID, commodityID,
		shared.QuantityFromFloat(quantity),
		shared.MoneyFromFloat(24_000, "INR"),
		"", &order.AdHocLocation{
			Address: "Mandi Yard 4",
			Point:   shared.GeoPoint{Lat: 28.61, Lng: 77.20},
		},
		FixedTime.Add(30*24*time.Hour),
		FixedTime,
	)
	if err != nil {
		t.Fatalf("failed to build availability fixture: %v", err)
	}
	a.QualityParams = map[string]float64{"grade": 7}
	return a
}
