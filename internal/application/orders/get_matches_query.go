package orders

import (
	"context"
	"fmt"

	"github.com/mandiworks/tradecore-go/internal/application/common"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/domain/trade"
)

// GetMatchesQuery lists the matches of one order. Exactly one of
// RequirementID / AvailabilityID must be set.
type GetMatchesQuery struct {
	RequirementID  string
	AvailabilityID string
	Page           trade.Page
}

// GetMatchesResponse carries the match page
type GetMatchesResponse struct {
	Matches []*trade.Match
}

// GetMatchesHandler serves the match listing with ownership checks:
// partner users only see matches of their own orders.
type GetMatchesHandler struct {
	requirements   order.RequirementRepository
	availabilities order.AvailabilityRepository
	matches        trade.MatchRepository
}

// NewGetMatchesHandler creates the handler
func NewGetMatchesHandler(
	requirements order.RequirementRepository,
	availabilities order.AvailabilityRepository,
	matches trade.MatchRepository,
) *GetMatchesHandler {
	return &GetMatchesHandler{
		requirements:   requirements,
		availabilities: availabilities,
		matches:        matches,
	}
}

// Handle executes the get matches query
func (h *GetMatchesHandler) Handle(ctx context.Context, request common.Request) (common.Response, error) {
	q, ok := request.(*GetMatchesQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}
	if (q.RequirementID == "") == (q.AvailabilityID == "") {
		return nil, shared.NewValidationError("order_id", "exactly one of requirement_id / availability_id required")
	}

	actor := common.ActorFromContext(ctx)

	if q.RequirementID != "" {
		req, err := h.requirements.FindByID(ctx, q.RequirementID)
		if err != nil {
			return nil, err
		}
		if actor.PartnerID != req.BuyerID && !actor.IsBackOffice() {
			return nil, shared.NewUnauthorizedError(actor.UserID, "read matches of requirement "+req.ID)
		}
		matches, err := h.matches.FindByRequirement(ctx, req.ID, q.Page)
		if err != nil {
			return nil, err
		}
		return &GetMatchesResponse{Matches: matches}, nil
	}

	a, err := h.availabilities.FindByID(ctx, q.AvailabilityID)
	if err != nil {
		return nil, err
	}
	if actor.PartnerID != a.SellerID && !actor.IsBackOffice() {
		return nil, shared.NewUnauthorizedError(actor.UserID, "read matches of availability "+a.ID)
	}
	matches, err := h.matches.FindByAvailability(ctx, a.ID, q.Page)
	if err != nil {
		return nil, err
	}
	return &GetMatchesResponse{Matches: matches}, nil
}
