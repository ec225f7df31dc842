package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/domain/trade"
)

var activeMatchStatuses = []string{
	string(trade.MatchProposed),
	string(trade.MatchNotified),
	string(trade.MatchAcceptedByBuyer),
	string(trade.MatchInNegotiation),
}

// GormMatchRepository implements trade.MatchRepository
type GormMatchRepository struct {
	db *gorm.DB
}

// NewGormMatchRepository creates a new GORM match repository
func NewGormMatchRepository(db *gorm.DB) *GormMatchRepository {
	return &GormMatchRepository{db: db}
}

var _ trade.MatchRepository = (*GormMatchRepository)(nil)

// scoreBreakdownJSON is the persisted shape of trade.ScoreBreakdown
type scoreBreakdownJSON struct {
	Quality     float64 `json:"quality"`
	Price       float64 `json:"price"`
	Delivery    float64 `json:"delivery"`
	Risk        float64 `json:"risk"`
	WarnPenalty bool    `json:"warn_penalty"`
	AIBoost     bool    `json:"ai_boost"`
}

// FindByID retrieves a match by id
func (r *GormMatchRepository) FindByID(ctx context.Context, id string) (*trade.Match, error) {
	var model MatchModel
	result := dbFrom(ctx, r.db).Where("id = ?", id).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("match", id)
		}
		return nil, fmt.Errorf("failed to find match: %w", result.Error)
	}
	return matchModelToEntity(&model)
}

// Add inserts a match. The active pair key's unique index rejects a
// second active match for the same (requirement, availability) pair, so
// the at-most-one invariant holds even across racing allocators.
func (r *GormMatchRepository) Add(ctx context.Context, m *trade.Match) error {
	model, err := matchEntityToModel(m)
	if err != nil {
		return err
	}
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return shared.NewConflictError("match", pairKey(m.RequirementID, m.AvailabilityID), 0)
		}
		return fmt.Errorf("failed to add match: %w", err)
	}
	return nil
}

// Update persists mutations with an optimistic version check
func (r *GormMatchRepository) Update(ctx context.Context, m *trade.Match) error {
	expected := m.Version
	m.Version++
	model, err := matchEntityToModel(m)
	if err != nil {
		m.Version = expected
		return err
	}

	result := dbFrom(ctx, r.db).Model(&MatchModel{}).
		Where("id = ? AND version = ?", m.ID, expected).
		Select("*").Omit("id", "created_at").Updates(model)
	if result.Error != nil {
		m.Version = expected
		return fmt.Errorf("failed to update match: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		m.Version = expected
		return shared.NewConflictError("match", m.ID, expected)
	}
	return nil
}

// FindActiveByPair returns the active match for a pair, or nil
func (r *GormMatchRepository) FindActiveByPair(ctx context.Context, requirementID, availabilityID string) (*trade.Match, error) {
	var model MatchModel
	result := dbFrom(ctx, r.db).
		Where("active_pair_key = ?", pairKey(requirementID, availabilityID)).
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active match: %w", result.Error)
	}
	return matchModelToEntity(&model)
}

// FindRecentByParties returns matches between the parties created after
// the cutoff; drives duplicate-match suppression.
func (r *GormMatchRepository) FindRecentByParties(ctx context.Context, requirementID, buyerID, sellerID string, since time.Time) ([]*trade.Match, error) {
	var models []MatchModel
	result := dbFrom(ctx, r.db).
		Where("requirement_id = ? AND buyer_id = ? AND seller_id = ? AND created_at >= ?",
			requirementID, buyerID, sellerID, since).
		Order("created_at desc").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find recent matches: %w", result.Error)
	}
	return matchModelsToEntities(models)
}

// FindByRequirement returns matches of a requirement, newest first
func (r *GormMatchRepository) FindByRequirement(ctx context.Context, requirementID string, page trade.Page) ([]*trade.Match, error) {
	return r.findBy(ctx, "requirement_id = ?", requirementID, page)
}

// FindByAvailability returns matches of an availability, newest first
func (r *GormMatchRepository) FindByAvailability(ctx context.Context, availabilityID string, page trade.Page) ([]*trade.Match, error) {
	return r.findBy(ctx, "availability_id = ?", availabilityID, page)
}

func (r *GormMatchRepository) findBy(ctx context.Context, where string, arg interface{}, page trade.Page) ([]*trade.Match, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	var models []MatchModel
	result := dbFrom(ctx, r.db).
		Where(where, arg).
		Order("created_at desc").
		Offset(page.Offset).
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list matches: %w", result.Error)
	}
	return matchModelsToEntities(models)
}

// SumAllocatedByAvailability sums allocated quantity over non-terminal
// and concluded matches of an availability. Summed in Go because the
// quantity column stores exact decimals as strings.
func (r *GormMatchRepository) SumAllocatedByAvailability(ctx context.Context, availabilityID string) (string, error) {
	var models []MatchModel
	result := dbFrom(ctx, r.db).
		Select("allocated_quantity").
		Where("availability_id = ? AND status NOT IN ?", availabilityID,
			[]string{string(trade.MatchRejected), string(trade.MatchExpired)}).
		Find(&models)
	if result.Error != nil {
		return "", fmt.Errorf("failed to sum allocations: %w", result.Error)
	}

	total := decimal.Zero
	for _, m := range models {
		q, err := decimal.NewFromString(m.AllocatedQuantity)
		if err != nil {
			return "", fmt.Errorf("corrupt allocated_quantity: %w", err)
		}
		total = total.Add(q)
	}
	return total.String(), nil
}

func pairKey(requirementID, availabilityID string) string {
	return requirementID + "|" + availabilityID
}

func matchModelsToEntities(models []MatchModel) ([]*trade.Match, error) {
	matches := make([]*trade.Match, 0, len(models))
	for i := range models {
		entity, err := matchModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		matches = append(matches, entity)
	}
	return matches, nil
}

func matchModelToEntity(m *MatchModel) (*trade.Match, error) {
	allocated, err := decimal.NewFromString(m.AllocatedQuantity)
	if err != nil {
		return nil, fmt.Errorf("corrupt allocated_quantity for match %s: %w", m.ID, err)
	}

	var breakdown scoreBreakdownJSON
	if m.Breakdown != "" {
		if err := json.Unmarshal([]byte(m.Breakdown), &breakdown); err != nil {
			return nil, fmt.Errorf("corrupt score_breakdown for match %s: %w", m.ID, err)
		}
	}
	details := map[string]string{}
	if m.RiskDetails != "" {
		if err := json.Unmarshal([]byte(m.RiskDetails), &details); err != nil {
			return nil, fmt.Errorf("corrupt risk_details for match %s: %w", m.ID, err)
		}
	}
	var capabilityCodes []string
	if m.CapabilityCodes != "" {
		if err := json.Unmarshal([]byte(m.CapabilityCodes), &capabilityCodes); err != nil {
			return nil, fmt.Errorf("corrupt capability_codes for match %s: %w", m.ID, err)
		}
	}
	var advisories []string
	if m.Advisories != "" {
		if err := json.Unmarshal([]byte(m.Advisories), &advisories); err != nil {
			return nil, fmt.Errorf("corrupt advisories for match %s: %w", m.ID, err)
		}
	}

	return &trade.Match{
		ID:                m.ID,
		RequirementID:     m.RequirementID,
		AvailabilityID:    m.AvailabilityID,
		BuyerID:           m.BuyerID,
		SellerID:          m.SellerID,
		AllocatedQuantity: shared.NewQuantity(allocated),
		Score:             m.Score,
		Breakdown: trade.ScoreBreakdown{
			Quality:     breakdown.Quality,
			Price:       breakdown.Price,
			Delivery:    breakdown.Delivery,
			Risk:        breakdown.Risk,
			WarnPenalty: breakdown.WarnPenalty,
			AIBoost:     breakdown.AIBoost,
		},
		RiskDecision:    shared.DecisionStatus(m.RiskDecision),
		RiskCode:        m.RiskCode,
		RiskDetails:     details,
		CapabilityCodes: capabilityCodes,
		Advisories:      advisories,
		Status:          trade.MatchStatus(m.Status),
		CreatedAt:       m.CreatedAt,
		Version:         m.Version,
	}, nil
}

func matchEntityToModel(m *trade.Match) (*MatchModel, error) {
	breakdown, err := json.Marshal(scoreBreakdownJSON{
		Quality:     m.Breakdown.Quality,
		Price:       m.Breakdown.Price,
		Delivery:    m.Breakdown.Delivery,
		Risk:        m.Breakdown.Risk,
		WarnPenalty: m.Breakdown.WarnPenalty,
		AIBoost:     m.Breakdown.AIBoost,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score breakdown: %w", err)
	}
	details, err := json.Marshal(m.RiskDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal risk details: %w", err)
	}
	capabilityCodes, err := json.Marshal(m.CapabilityCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal capability codes: %w", err)
	}
	advisories, err := json.Marshal(m.Advisories)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal advisories: %w", err)
	}

	model := &MatchModel{
		ID:                m.ID,
		RequirementID:     m.RequirementID,
		AvailabilityID:    m.AvailabilityID,
		BuyerID:           m.BuyerID,
		SellerID:          m.SellerID,
		AllocatedQuantity: m.AllocatedQuantity.String(),
		Score:             m.Score,
		Breakdown:         string(breakdown),
		RiskDecision:      string(m.RiskDecision),
		RiskCode:          m.RiskCode,
		RiskDetails:       string(details),
		CapabilityCodes:   string(capabilityCodes),
		Advisories:        string(advisories),
		Status:            string(m.Status),
		CreatedAt:         m.CreatedAt,
		Version:           m.Version,
	}
	if m.IsActive() {
		key := pairKey(m.RequirementID, m.AvailabilityID)
		model.ActivePairKey = &key
	}
	return model, nil
}
