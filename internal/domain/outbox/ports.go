package outbox

import "context"

// Repository is the transactional store of pending domain events
type Repository interface {
	// Append writes a record inside the ambient transaction. Callers
	// must run inside the same transaction as the state change.
	Append(ctx context.Context, r *Record) error

	// ClaimDue locks and returns up to limit undispatched due records.
	// Claimed records are invisible to concurrent dispatchers.
	ClaimDue(ctx context.Context, limit int) ([]*Record, error)

	// Update persists dispatch bookkeeping (dispatched_at, attempts,
	// next_retry_at, dead).
	Update(ctx context.Context, r *Record) error

	// CountPending returns the number of undispatched live records
	CountPending(ctx context.Context) (int64, error)

	// FindByAggregate returns records of one aggregate in creation order
	FindByAggregate(ctx context.Context, aggregateID string) ([]*Record, error)
}

// Publisher delivers envelopes to the external bus topic of their
// aggregate type. Transient failures are retried by the dispatcher.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Handler is an in-process subscriber to dispatched envelopes
type Handler func(ctx context.Context, env Envelope) error
