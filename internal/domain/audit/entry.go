package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is one immutable audit record. ActorID is empty for decisions
// made by the engine itself.
type Entry struct {
	ID         string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Before     []byte
	After      []byte
	CreatedAt  time.Time
}

// Well-known audit actions
const (
	ActionOrderCreated      = "order.created"
	ActionOrderCancelled    = "order.cancelled"
	ActionRiskBlocked       = "risk.blocked"
	ActionRiskOverride      = "risk.manual_override"
	ActionMatchAllocated    = "match.allocated"
	ActionMatchSuppressed   = "match.suppressed"
	ActionDeferredToSweeper = "matching.deferred_to_sweeper"
	ActionMatchingAbandoned = "matching.abandoned"
	ActionNegotiationClosed = "negotiation.closed"
)

// New builds an audit entry, marshalling snapshots to JSON. Snapshot
// marshal failures degrade to nil rather than blocking the audited
// operation.
func New(actorID, action, targetType, targetID string, before, after any, now time.Time) *Entry {
	var b, a []byte
	if before != nil {
		b, _ = json.Marshal(before)
	}
	if after != nil {
		a, _ = json.Marshal(after)
	}
	return &Entry{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Before:     b,
		After:      a,
		CreatedAt:  now,
	}
}

// Repository persists audit entries
type Repository interface {
	Add(ctx context.Context, e *Entry) error
	FindByTarget(ctx context.Context, targetType, targetID string) ([]*Entry, error)
}
