package matching

import (
	"container/heap"
	"sync"
	"time"

	"github.com/mandiworks/tradecore-go/internal/domain/outbox"
)

// Priority orders matching events. HIGH for user-initiated posts and
// acceptances, MEDIUM for risk-status changes, LOW for the sweeper.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Event is one unit of matching work: something happened to an order
// and its counter-side should be (re)scanned.
type Event struct {
	EventID       string
	Type          outbox.EventType
	AggregateType outbox.AggregateType
	AggregateID   string
	Priority      Priority
	EnqueuedAt    time.Time

	// Attempts counts failed passes for this aggregate's event chain;
	// zero for first deliveries.
	Attempts int

	seq uint64
}

// eventHeap orders by priority, then arrival sequence within a priority
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// EventQueue is a thread-safe priority queue of matching events. Pop
// blocks until an event is available or the queue is closed.
type EventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	heap   eventHeap
	seq    uint64
	closed bool
}

// NewEventQueue creates an empty event queue
func NewEventQueue() *EventQueue {
	q := &EventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues an event
func (q *EventQueue) Push(e *Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.seq++
	e.seq = q.seq
	heap.Push(&q.heap, e)
	q.cond.Signal()
}

// Pop dequeues the highest-priority event, blocking until one exists.
// Returns nil after Close once the queue drains.
func (q *EventQueue) Pop() *Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.heap) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.heap) == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*Event)
}

// Len returns the current queue depth
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Close wakes all blocked consumers; pending events stay poppable
func (q *EventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
