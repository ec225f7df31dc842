package partner

import "context"

// Repository provides typed persistence for partners
type Repository interface {
	FindByID(ctx context.Context, partnerID string) (*Partner, error)
	Save(ctx context.Context, p *Partner) error

	// Update persists mutations with an optimistic version check.
	// Returns shared.ConflictError when the stored version moved on.
	Update(ctx context.Context, p *Partner) error

	// FindLinked returns partners sharing any of the identity fields
	// (tax id, national id, mobile) with the given partner, excluding it.
	FindLinked(ctx context.Context, p *Partner) ([]*Partner, error)
}

// DocumentProvider exposes the verified documents of a partner.
// Backed by the document service collaborator; the engine never writes.
type DocumentProvider interface {
	VerifiedDocuments(ctx context.Context, partnerID string) (*DocumentSet, error)
}

// SanctionsList answers whether a country is under sanctions.
// Refresh cadence of the underlying list is opaque to the engine.
type SanctionsList interface {
	IsSanctioned(countryCode string) bool
}
