package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiworks/tradecore-go/internal/adapters/persistence"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/test/helpers"
)

func appendRecord(t *testing.T, repo *persistence.GormOutboxRepository, aggregateID string, at time.Time) *outbox.Record {
	t.Helper()
	rec, err := outbox.NewRecord(outbox.AggregateRequirement, aggregateID,
		outbox.EventRequirementCreated, map[string]string{"id": aggregateID}, at)
	require.NoError(t, err)
	require.NoError(t, repo.Append(context.Background(), rec))
	return rec
}

func TestOutboxRepository_ClaimDue_LeasesRecords(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(helpers.FixedTime)
	repo := persistence.NewGormOutboxRepository(db, clock)

	appendRecord(t, repo, "REQ-1", clock.Now().Add(-2*time.Second))
	appendRecord(t, repo, "REQ-2", clock.Now().Add(-time.Second))

	claimed, err := repo.ClaimDue(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "REQ-1", claimed[0].AggregateID, "oldest first")

	// While the lease holds, a second dispatcher sees nothing
	again, err := repo.ClaimDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	// After the lease lapses the records come back
	clock.Advance(time.Minute)
	again, err = repo.ClaimDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestOutboxRepository_Update_ReleasesClaimAndStampsDispatch(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(helpers.FixedTime)
	repo := persistence.NewGormOutboxRepository(db, clock)

	rec := appendRecord(t, repo, "REQ-1", clock.Now().Add(-time.Second))

	claimed, err := repo.ClaimDue(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	rec.MarkDispatched(clock.Now())
	require.NoError(t, repo.Update(context.Background(), rec))

	pending, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)

	clock.Advance(time.Minute)
	claimed, err = repo.ClaimDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, claimed, "dispatched records never come back")
}

func TestOutboxRepository_RetrySchedulingAndDeadLetter(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(helpers.FixedTime)
	repo := persistence.NewGormOutboxRepository(db, clock)

	rec := appendRecord(t, repo, "REQ-1", clock.Now().Add(-time.Second))

	// First failure schedules a retry in the future
	rec.MarkFailed(clock.Now())
	require.NoError(t, repo.Update(context.Background(), rec))

	clock.Advance(31 * time.Second) // past the lease, before nothing
	claimed, err := repo.ClaimDue(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1, "backoff of 10s has passed")
	assert.Equal(t, 1, claimed[0].Attempts)

	// Exhaust the attempt budget
	for !rec.Dead {
		rec.MarkFailed(clock.Now())
	}
	require.NoError(t, repo.Update(context.Background(), rec))

	pending, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending, "dead records are not pending")

	clock.Advance(time.Hour)
	claimed, err = repo.ClaimDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, claimed, "dead records are never claimed")
}

func TestOutboxRepository_FindByAggregate_CreationOrder(t *testing.T) {
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(helpers.FixedTime)
	repo := persistence.NewGormOutboxRepository(db, clock)

	appendRecord(t, repo, "REQ-1", clock.Now())
	appendRecord(t, repo, "REQ-1", clock.Now().Add(time.Second))
	appendRecord(t, repo, "REQ-OTHER", clock.Now())

	records, err := repo.FindByAggregate(context.Background(), "REQ-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].CreatedAt.Before(records[1].CreatedAt))
}
