package shared

import "fmt"

// DomainError is the base error type for all domain errors
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) *DomainError {
	return &DomainError{Message: message}
}

// ValidationError reports a malformed or missing command input.
// Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a missing entity by type and id
type NotFoundError struct {
	*DomainError
	EntityType string
	EntityID   string
}

func NewNotFoundError(entityType, entityID string) *NotFoundError {
	return &NotFoundError{
		DomainError: &DomainError{Message: fmt.Sprintf("%s not found: %s", entityType, entityID)},
		EntityType:  entityType,
		EntityID:    entityID,
	}
}

// ConflictError reports an optimistic-concurrency version mismatch.
// Retryable up to the calling component's retry budget.
type ConflictError struct {
	*DomainError
	EntityType      string
	EntityID        string
	ExpectedVersion int64
}

func NewConflictError(entityType, entityID string, expectedVersion int64) *ConflictError {
	return &ConflictError{
		DomainError: &DomainError{
			Message: fmt.Sprintf("version conflict on %s %s (expected version %d)", entityType, entityID, expectedVersion),
		},
		EntityType:      entityType,
		EntityID:        entityID,
		ExpectedVersion: expectedVersion,
	}
}

// UnauthorizedError reports an actor attempting an operation on an
// aggregate it does not own. Never retried; always audited.
type UnauthorizedError struct {
	*DomainError
	ActorID string
	Action  string
}

func NewUnauthorizedError(actorID, action string) *UnauthorizedError {
	return &UnauthorizedError{
		DomainError: &DomainError{Message: fmt.Sprintf("actor %s is not authorised to %s", actorID, action)},
		ActorID:     actorID,
		Action:      action,
	}
}

// RejectionError is a deterministic domain rejection (capability denied,
// role violation, circular trading, duplicate, sanctions). It carries a
// machine-readable code, a human reason and a remediation hint. Never
// retried.
type RejectionError struct {
	*DomainError
	Code     string
	Reason   string
	HowToFix string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func NewRejectionError(code, reason, howToFix string) *RejectionError {
	return &RejectionError{
		DomainError: &DomainError{Message: reason},
		Code:        code,
		Reason:      reason,
		HowToFix:    howToFix,
	}
}

// DuplicateOrderError is raised when an order collides with the dedup key
// of an existing active order from the same partner.
type DuplicateOrderError struct {
	*RejectionError
	ExistingOrderID string
}

func NewDuplicateOrderError(existingOrderID string) *DuplicateOrderError {
	return &DuplicateOrderError{
		RejectionError: NewRejectionError(
			"DUPLICATE_ORDER",
			fmt.Sprintf("an identical active order already exists: %s", existingOrderID),
			"Cancel or amend the existing order before posting a new one",
		),
		ExistingOrderID: existingOrderID,
	}
}

// TerminalStateError reports an operation against an aggregate that has
// already reached a terminal status. Idempotent callers treat it as a
// 409-class no-op.
type TerminalStateError struct {
	*DomainError
	EntityType string
	EntityID   string
	Status     string
}

func NewTerminalStateError(entityType, entityID, status string) *TerminalStateError {
	return &TerminalStateError{
		DomainError: &DomainError{
			Message: fmt.Sprintf("%s %s is already terminal (%s)", entityType, entityID, status),
		},
		EntityType: entityType,
		EntityID:   entityID,
		Status:     status,
	}
}
