package common

import "context"

// Back-office roles that may read any negotiation and override risk
// decisions. Partner users only ever see their own data.
const (
	RoleAdmin      = "ADMIN"
	RoleOperations = "OPERATIONS"
	RoleCompliance = "COMPLIANCE"
)

// Actor identifies who issued a request. PartnerID is empty for
// back-office users acting outside any partner.
type Actor struct {
	UserID    string
	PartnerID string
	Roles     []string
}

// HasRole reports whether the actor carries the role
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsBackOffice reports whether the actor may access data across partners
func (a Actor) IsBackOffice() bool {
	return a.HasRole(RoleAdmin) || a.HasRole(RoleOperations) || a.HasRole(RoleCompliance)
}

// CanOverrideRisk reports whether the actor may override a risk decision
func (a Actor) CanOverrideRisk() bool {
	return a.HasRole(RoleAdmin) || a.HasRole(RoleCompliance)
}

type actorKey struct{}

// WithActor stores the acting user in the context
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting user, or a zero actor when absent
func ActorFromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return Actor{}
}
