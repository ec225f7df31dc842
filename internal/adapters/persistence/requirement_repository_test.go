package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiworks/tradecore-go/internal/adapters/persistence"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/test/helpers"
)

func TestRequirementRepository_AddAndFind(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormRequirementRepository(db)

	req := helpers.ActiveRequirement(t, "REQ-1", "BP-BUYER", "COM-WHEAT", 100)
	req.AcceptedQuality = helpers.GradedCommodity("COM-WHEAT").QualityStandards

	require.NoError(t, repo.Add(context.Background(), req))

	found, err := repo.FindByID(context.Background(), "REQ-1")
	require.NoError(t, err)
	assert.Equal(t, req.BuyerID, found.BuyerID)
	assert.Equal(t, req.CommodityID, found.CommodityID)
	assert.Equal(t, "100", found.Quantity.String())
	assert.Equal(t, req.TargetPrice.Amount.String(), found.TargetPrice.Amount.String())
	assert.Equal(t, req.TargetPrice.Currency, found.TargetPrice.Currency)
	assert.Len(t, found.DeliveryLocations, 1)
	assert.Equal(t, "LOC-1", found.DeliveryLocations[0].LocationID)
	assert.Equal(t, order.RequirementActive, found.Status)
	assert.Equal(t, int64(1), found.Version)
}

func TestRequirementRepository_FindByID_NotFound(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormRequirementRepository(db)

	_, err := repo.FindByID(context.Background(), "REQ-MISSING")

	var notFound *shared.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRequirementRepository_Add_RejectsDuplicateDedupKey(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormRequirementRepository(db)

	first := helpers.ActiveRequirement(t, "REQ-1", "BP-BUYER", "COM-WHEAT", 100)
	require.NoError(t, repo.Add(context.Background(), first))

	// Identical commercial terms under a different id collide
	duplicate := helpers.ActiveRequirement(t, "REQ-2", "BP-BUYER", "COM-WHEAT", 100)
	err := repo.Add(context.Background(), duplicate)

	var dup *shared.DuplicateOrderError
	require.ErrorAs(t, err, &dup)

	// Cancelling the original frees the key
	require.NoError(t, first.Cancel())
	require.NoError(t, repo.Update(context.Background(), first))
	require.NoError(t, repo.Add(context.Background(), duplicate))
}

func TestRequirementRepository_Update_VersionConflict(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormRequirementRepository(db)

	req := helpers.ActiveRequirement(t, "REQ-1", "BP-BUYER", "COM-WHEAT", 100)
	require.NoError(t, repo.Add(context.Background(), req))

	// First writer wins
	require.NoError(t, req.ApplyAllocation(shared.QuantityFromFloat(10)))
	require.NoError(t, repo.Update(context.Background(), req))
	assert.Equal(t, int64(2), req.Version)

	// A stale copy loses and keeps its original version
	stale := helpers.ActiveRequirement(t, "REQ-1", "BP-BUYER", "COM-WHEAT", 100)
	err := repo.Update(context.Background(), stale)

	var conflict *shared.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), stale.Version)
}

func TestRequirementRepository_CountOpenSameDay(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormRequirementRepository(db)

	day := helpers.FixedTime
	req := helpers.ActiveRequirement(t, "REQ-1", "BP-BUYER", "COM-WHEAT", 100)
	require.NoError(t, repo.Add(context.Background(), req))

	other := helpers.ActiveRequirement(t, "REQ-2", "BP-BUYER", "COM-RICE", 100)
	require.NoError(t, repo.Add(context.Background(), other))

	count, err := repo.CountOpenSameDay(context.Background(), "BP-BUYER", "COM-WHEAT", day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountOpenSameDay(context.Background(), "BP-BUYER", "COM-WHEAT", day.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRequirementRepository_FindAcceptingLocation(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormRequirementRepository(db)

	registered := helpers.ActiveRequirement(t, "REQ-1", "BP-A", "COM-WHEAT", 100)
	require.NoError(t, repo.Add(context.Background(), registered))

	geo := helpers.ActiveRequirement(t, "REQ-2", "BP-B", "COM-WHEAT", 100)
	geo.DeliveryLocations = []order.DeliveryLocation{
		{Point: shared.GeoPoint{Lat: 28.61, Lng: 77.20}, RadiusKm: 30},
	}
	require.NoError(t, repo.Add(context.Background(), geo))

	// Registered-location lookup hits only the registered requirement
	reqs, err := repo.FindAcceptingLocation(context.Background(), "COM-WHEAT", "LOC-1", nil, 50)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "REQ-1", reqs[0].ID)

	// A nearby ad-hoc point hits only the geo requirement
	point := &order.AdHocLocation{
		Address: "Yard",
		Point:   shared.GeoPoint{Lat: 28.62, Lng: 77.21},
	}
	reqs, err = repo.FindAcceptingLocation(context.Background(), "COM-WHEAT", "", point, 50)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "REQ-2", reqs[0].ID)

	// A far point hits nothing
	far := &order.AdHocLocation{
		Address: "Far Yard",
		Point:   shared.GeoPoint{Lat: 13.08, Lng: 80.27},
	}
	reqs, err = repo.FindAcceptingLocation(context.Background(), "COM-WHEAT", "", far, 50)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestRequirementRepository_StaleScanBookkeeping(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormRequirementRepository(db)

	req := helpers.ActiveRequirement(t, "REQ-1", "BP-BUYER", "COM-WHEAT", 100)
	require.NoError(t, repo.Add(context.Background(), req))

	cutoff := helpers.FixedTime.Add(time.Hour)

	stale, err := repo.FindStaleActive(context.Background(), cutoff, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	require.NoError(t, repo.MarkScanned(context.Background(), "REQ-1", cutoff.Add(time.Minute)))

	stale, err = repo.FindStaleActive(context.Background(), cutoff, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	// MarkScanned must not bump the aggregate version
	found, err := repo.FindByID(context.Background(), "REQ-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Version)
}
