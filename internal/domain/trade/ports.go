package trade

import (
	"context"
	"time"
)

// Page is a simple offset/limit pagination request
type Page struct {
	Offset int
	Limit  int
}

// MatchRepository provides typed persistence for matches
type MatchRepository interface {
	FindByID(ctx context.Context, id string) (*Match, error)
	Add(ctx context.Context, m *Match) error
	Update(ctx context.Context, m *Match) error

	// FindActiveByPair returns the active match for a (requirement,
	// availability) pair, or nil. At most one may exist.
	FindActiveByPair(ctx context.Context, requirementID, availabilityID string) (*Match, error)

	// FindRecentByParties returns matches between the parties created
	// after the cutoff; drives duplicate-match suppression.
	FindRecentByParties(ctx context.Context, requirementID, buyerID, sellerID string, since time.Time) ([]*Match, error)

	FindByRequirement(ctx context.Context, requirementID string, page Page) ([]*Match, error)
	FindByAvailability(ctx context.Context, availabilityID string, page Page) ([]*Match, error)

	// SumAllocatedByAvailability sums allocated quantity over all
	// non-cancelled matches of an availability (conservation invariant).
	SumAllocatedByAvailability(ctx context.Context, availabilityID string) (string, error)
}
