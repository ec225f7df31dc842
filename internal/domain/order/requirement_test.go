package order_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newRequirement(t *testing.T, quantity float64) *order.Requirement {
	t.Helper()
	req, err := order.NewRequirement(
		"REQ-1", "BP-BUYER", "COM-WHEAT",
		shared.QuantityFromFloat(quantity), "MT",
		shared.MoneyFromFloat(25_000, "INR"),
		[]order.DeliveryLocation{{LocationID: "LOC-1"}},
		testNow.Add(24*time.Hour),
		testNow,
	)
	require.NoError(t, err)
	return req
}

func TestNewRequirement_Validation(t *testing.T) {
	locations := []order.DeliveryLocation{{LocationID: "LOC-1"}}

	tests := []struct {
		name     string
		id       string
		buyer    string
		quantity float64
		price    float64
		locs     []order.DeliveryLocation
	}{
		{"empty id", "", "BP-1", 10, 100, locations},
		{"empty buyer", "REQ-1", "", 10, 100, locations},
		{"zero quantity", "REQ-1", "BP-1", 0, 100, locations},
		{"negative quantity", "REQ-1", "BP-1", -5, 100, locations},
		{"zero price", "REQ-1", "BP-1", 10, 0, locations},
		{"no delivery locations", "REQ-1", "BP-1", 10, 100, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := order.NewRequirement(
				tt.id, tt.buyer, "COM-1",
				shared.QuantityFromFloat(tt.quantity), "MT",
				shared.MoneyFromFloat(tt.price, "INR"),
				tt.locs, time.Time{}, testNow,
			)
			var validationErr *shared.ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestNewRequirement_RejectsPastValidity(t *testing.T) {
	_, err := order.NewRequirement(
		"REQ-1", "BP-1", "COM-1",
		shared.QuantityFromFloat(10), "MT",
		shared.MoneyFromFloat(100, "INR"),
		[]order.DeliveryLocation{{LocationID: "LOC-1"}},
		testNow.Add(-time.Hour),
		testNow,
	)
	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestRequirement_ApplyAllocation_PartialThenFull(t *testing.T) {
	req := newRequirement(t, 100)

	// Partial fill keeps the order open
	require.NoError(t, req.ApplyAllocation(shared.QuantityFromFloat(40)))
	assert.Equal(t, order.RequirementPartiallyFulfilled, req.Status)
	assert.True(t, req.IsOpen())
	assert.Equal(t, "60", req.RemainingQuantity().String())

	// Filling the remainder closes it
	require.NoError(t, req.ApplyAllocation(shared.QuantityFromFloat(60)))
	assert.Equal(t, order.RequirementFulfilled, req.Status)
	assert.False(t, req.IsOpen())
	assert.True(t, req.RemainingQuantity().IsZero())
}

func TestRequirement_ApplyAllocation_RejectsOverfill(t *testing.T) {
	req := newRequirement(t, 100)

	err := req.ApplyAllocation(shared.QuantityFromFloat(101))

	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "100", req.RemainingQuantity().String())
}

func TestRequirement_ApplyAllocation_RejectsTerminal(t *testing.T) {
	req := newRequirement(t, 100)
	require.NoError(t, req.Cancel())

	err := req.ApplyAllocation(shared.QuantityFromFloat(10))

	var terminalErr *shared.TerminalStateError
	require.ErrorAs(t, err, &terminalErr)
}

func TestRequirement_Cancel_IsNotIdempotent(t *testing.T) {
	req := newRequirement(t, 100)

	require.NoError(t, req.Cancel())
	assert.Equal(t, order.RequirementCancelled, req.Status)

	err := req.Cancel()
	var terminalErr *shared.TerminalStateError
	require.ErrorAs(t, err, &terminalErr)
}

func TestRequirement_Expire(t *testing.T) {
	req := newRequirement(t, 100)
	assert.False(t, req.IsExpiredAt(testNow))
	assert.True(t, req.IsExpiredAt(testNow.Add(25*time.Hour)))

	req.Expire()
	assert.Equal(t, order.RequirementExpired, req.Status)

	// Terminal states are never overwritten
	fulfilled := newRequirement(t, 10)
	require.NoError(t, fulfilled.ApplyAllocation(shared.QuantityFromFloat(10)))
	fulfilled.Expire()
	assert.Equal(t, order.RequirementFulfilled, fulfilled.Status)
}
