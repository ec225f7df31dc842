package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// Backoff schedule for dispatch retries. After the last step the record
// is marked dead and left to operator intervention.
var RetryBackoff = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	90 * time.Second,
	300 * time.Second,
	600 * time.Second,
}

// MaxAttempts is the dispatch retry budget before dead-lettering
const MaxAttempts = 5

// Envelope is the wire form of a domain event as consumed by internal
// subscribers and published to the external bus.
type Envelope struct {
	EventID       string          `json:"event_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	AggregateType AggregateType   `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

// Record is one transactional outbox row. Every state change appends a
// record in the same transaction; the dispatcher delivers at least once.
type Record struct {
	ID            string
	AggregateType AggregateType
	AggregateID   string
	EventType     EventType
	Payload       []byte
	CreatedAt     time.Time
	DispatchedAt  *time.Time
	Attempts      int
	NextRetryAt   *time.Time
	Dead          bool
}

// NewRecord builds an outbox record, marshalling the payload to JSON
func NewRecord(aggregateType AggregateType, aggregateID string, eventType EventType, payload any, now time.Time) (*Record, error) {
	if aggregateID == "" {
		return nil, shared.NewValidationError("aggregate_id", "must not be empty")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, shared.NewValidationError("payload", "not serialisable: "+err.Error())
	}
	return &Record{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
		CreatedAt:     now,
	}, nil
}

// Envelope converts the record into its wire form
func (r *Record) Envelope() Envelope {
	return Envelope{
		EventID:       r.ID,
		OccurredAt:    r.CreatedAt,
		AggregateType: r.AggregateType,
		AggregateID:   r.AggregateID,
		EventType:     r.EventType,
		Payload:       r.Payload,
	}
}

// MarkDispatched stamps successful delivery
func (r *Record) MarkDispatched(now time.Time) {
	t := now
	r.DispatchedAt = &t
}

// MarkFailed counts a delivery failure and schedules the next retry.
// After MaxAttempts the record goes dead.
func (r *Record) MarkFailed(now time.Time) {
	r.Attempts++
	if r.Attempts >= MaxAttempts {
		r.Dead = true
		r.NextRetryAt = nil
		return
	}
	backoff := RetryBackoff[len(RetryBackoff)-1]
	if r.Attempts-1 < len(RetryBackoff) {
		backoff = RetryBackoff[r.Attempts-1]
	}
	next := now.Add(backoff)
	r.NextRetryAt = &next
}

// IsDue reports whether the record should be claimed for dispatch
func (r *Record) IsDue(now time.Time) bool {
	if r.Dead || r.DispatchedAt != nil {
		return false
	}
	return r.NextRetryAt == nil || !now.Before(*r.NextRetryAt)
}
