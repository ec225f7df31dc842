package matching_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiworks/tradecore-go/internal/application/matching"
	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
)

func event(id string, priority matching.Priority) *matching.Event {
	return &matching.Event{
		EventID:       id,
		Type:          outbox.EventRequirementCreated,
		AggregateType: outbox.AggregateRequirement,
		AggregateID:   "REQ-" + id,
		Priority:      priority,
	}
}

func TestEventQueue_PopsByPriorityThenArrival(t *testing.T) {
	q := matching.NewEventQueue()

	q.Push(event("low-1", matching.PriorityLow))
	q.Push(event("high-1", matching.PriorityHigh))
	q.Push(event("medium-1", matching.PriorityMedium))
	q.Push(event("high-2", matching.PriorityHigh))

	assert.Equal(t, 4, q.Len())
	assert.Equal(t, "high-1", q.Pop().EventID)
	assert.Equal(t, "high-2", q.Pop().EventID)
	assert.Equal(t, "medium-1", q.Pop().EventID)
	assert.Equal(t, "low-1", q.Pop().EventID)
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_PopBlocksUntilPush(t *testing.T) {
	q := matching.NewEventQueue()

	done := make(chan *matching.Event, 1)
	go func() {
		done <- q.Pop()
	}()

	// The consumer must still be blocked with nothing queued
	select {
	case <-done:
		t.Fatal("Pop returned before any event was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(event("late", matching.PriorityHigh))

	select {
	case e := <-done:
		require.NotNil(t, e)
		assert.Equal(t, "late", e.EventID)
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after push")
	}
}

func TestEventQueue_CloseDrainsThenReturnsNil(t *testing.T) {
	q := matching.NewEventQueue()
	q.Push(event("pending", matching.PriorityLow))

	q.Close()

	require.NotNil(t, q.Pop())
	assert.Nil(t, q.Pop())

	// Pushes after close are dropped
	q.Push(event("ignored", matching.PriorityHigh))
	assert.Nil(t, q.Pop())
}

func TestEventQueue_ConcurrentProducersAndConsumers(t *testing.T) {
	q := matching.NewEventQueue()
	const producers = 4
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(event("e", matching.Priority(i%3)))
			}
		}()
	}
	wg.Wait()

	seen := 0
	for q.Len() > 0 {
		require.NotNil(t, q.Pop())
		seen++
	}
	assert.Equal(t, producers*perProducer, seen)
}

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "high", matching.PriorityHigh.String())
	assert.Equal(t, "medium", matching.PriorityMedium.String())
	assert.Equal(t, "low", matching.PriorityLow.String())
	assert.Equal(t, "unknown", matching.Priority(9).String())
}
