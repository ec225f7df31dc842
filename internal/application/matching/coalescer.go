package matching

import (
	"sync"
	"time"
)

// Coalescer micro-batches events touching the same aggregate: the first
// event of a burst opens a window, later ones merge into it, and the
// merged event emits once when the window closes. Bursts of updates to
// one order cost a single matching pass.
type Coalescer struct {
	delay time.Duration
	emit  func(*Event)

	mu      sync.Mutex
	pending map[string]*Event
	stopped bool
}

// NewCoalescer creates a coalescer emitting merged events through emit
func NewCoalescer(delay time.Duration, emit func(*Event)) *Coalescer {
	return &Coalescer{
		delay:   delay,
		emit:    emit,
		pending: make(map[string]*Event),
	}
}

// Add folds an event into the open window of its aggregate, opening one
// when none exists. A zero delay emits immediately.
func (c *Coalescer) Add(e *Event) {
	if c.delay <= 0 {
		c.emit(e)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	key := string(e.AggregateType) + ":" + e.AggregateID
	if held, ok := c.pending[key]; ok {
		// Keep the strongest priority and the newest event identity.
		if e.Priority < held.Priority {
			held.Priority = e.Priority
		}
		held.EventID = e.EventID
		held.Type = e.Type
		return
	}

	c.pending[key] = e
	time.AfterFunc(c.delay, func() {
		c.flush(key)
	})
}

func (c *Coalescer) flush(key string) {
	c.mu.Lock()
	e, ok := c.pending[key]
	delete(c.pending, key)
	stopped := c.stopped
	c.mu.Unlock()

	if ok && !stopped {
		c.emit(e)
	}
}

// Stop drops all open windows; nothing emits afterwards
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.pending = make(map[string]*Event)
}
