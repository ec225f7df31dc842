package common

import (
	"context"
	"time"
)

// Tx runs a closure inside one database transaction. Repository calls
// made with the closure's context join that transaction, so a state
// change and its outbox records always commit together.
type Tx interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// IdempotencyRecord is the stored outcome of a keyed command. Replays
// with the same key return the original result instead of re-executing.
type IdempotencyRecord struct {
	Key         string
	CommandType string
	ResultType  string
	ResultID    string
	CreatedAt   time.Time
}

// IdempotencyStore persists command idempotency keys. Reserve must be
// atomic: exactly one of two concurrent calls with the same key wins.
type IdempotencyStore interface {
	// Find returns the stored record for a key, or nil
	Find(ctx context.Context, key string) (*IdempotencyRecord, error)

	// Save stores the outcome of the first execution. Returns the
	// already-stored record and false when another execution won the race.
	Save(ctx context.Context, rec *IdempotencyRecord) (*IdempotencyRecord, bool, error)
}

// ProcessedEventStore tracks consumed event ids per consumer so
// at-least-once delivery never applies an event twice within the
// retention window.
type ProcessedEventStore interface {
	// Seen reports whether the event was already marked for the consumer
	Seen(ctx context.Context, eventID, consumer string) (bool, error)

	// MarkProcessed records the event for the consumer. Returns false
	// when the event was already processed.
	MarkProcessed(ctx context.Context, eventID, consumer string, at time.Time) (bool, error)

	// PurgeOlderThan drops dedup rows past the retention window
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
