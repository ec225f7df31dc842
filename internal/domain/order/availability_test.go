package order_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

func newAvailability(t *testing.T, quantity float64) *order.Availability {
	t.Helper()
	a, err := order.NewAvailability(
		"AVL-1", "BP-SELLER", "COM-WHEAT",
		shared.QuantityFromFloat(quantity),
		shared.MoneyFromFloat(24_000, "INR"),
		"LOC-1", nil,
		testNow.Add(24*time.Hour),
		testNow,
	)
	require.NoError(t, err)
	return a
}

func TestNewAvailability_RequiresALocation(t *testing.T) {
	_, err := order.NewAvailability(
		"AVL-1", "BP-1", "COM-1",
		shared.QuantityFromFloat(10),
		shared.MoneyFromFloat(100, "INR"),
		"", nil, time.Time{}, testNow,
	)
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestNewAvailability_AdHocNeedsCoordinatesAndAddress(t *testing.T) {
	_, err := order.NewAvailability(
		"AVL-1", "BP-1", "COM-1",
		shared.QuantityFromFloat(10),
		shared.MoneyFromFloat(100, "INR"),
		"", &order.AdHocLocation{Address: "Mandi Yard"},
		time.Time{}, testNow,
	)
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)

	a, err := order.NewAvailability(
		"AVL-1", "BP-1", "COM-1",
		shared.QuantityFromFloat(10),
		shared.MoneyFromFloat(100, "INR"),
		"", &order.AdHocLocation{
			Address: "Mandi Yard",
			Point:   shared.GeoPoint{Lat: 28.6, Lng: 77.2},
		},
		time.Time{}, testNow,
	)
	require.NoError(t, err)
	assert.Equal(t, order.AvailabilityAvailable, a.Status)
}

func TestAvailability_Allocate_DrainsStock(t *testing.T) {
	a := newAvailability(t, 100)

	require.NoError(t, a.Allocate(shared.QuantityFromFloat(30)))
	assert.Equal(t, order.AvailabilityPartiallySold, a.Status)
	assert.Equal(t, "70", a.RemainingQuantity.String())

	require.NoError(t, a.Allocate(shared.QuantityFromFloat(70)))
	assert.Equal(t, order.AvailabilitySoldOut, a.Status)
	assert.False(t, a.IsOpen())
}

func TestAvailability_Allocate_NeverGoesNegative(t *testing.T) {
	a := newAvailability(t, 50)

	err := a.Allocate(shared.QuantityFromFloat(51))

	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "50", a.RemainingQuantity.String())
}

func TestAvailability_Release_RestoresStock(t *testing.T) {
	a := newAvailability(t, 100)
	require.NoError(t, a.Allocate(shared.QuantityFromFloat(100)))
	require.Equal(t, order.AvailabilitySoldOut, a.Status)

	// Releasing part of the allocation reopens the listing
	require.NoError(t, a.Release(shared.QuantityFromFloat(40)))
	assert.Equal(t, order.AvailabilityPartiallySold, a.Status)
	assert.Equal(t, "40", a.RemainingQuantity.String())

	// Releasing the rest restores the full stock
	require.NoError(t, a.Release(shared.QuantityFromFloat(60)))
	assert.Equal(t, order.AvailabilityAvailable, a.Status)
	assert.Equal(t, "100", a.RemainingQuantity.String())
}

func TestAvailability_Release_RejectsOverTotal(t *testing.T) {
	a := newAvailability(t, 100)
	require.NoError(t, a.Allocate(shared.QuantityFromFloat(10)))

	err := a.Release(shared.QuantityFromFloat(20))

	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestAvailability_RecommendedFor(t *testing.T) {
	a := newAvailability(t, 100)
	a.AIRecommendedFor = []string{"BP-A", "BP-B"}

	assert.True(t, a.RecommendedFor("BP-A"))
	assert.False(t, a.RecommendedFor("BP-C"))
}
