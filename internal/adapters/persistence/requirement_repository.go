package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiworks/tradecore-go/internal/domain/commodity"
	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// open statuses per side, used by dedup and same-day queries
var openRequirementStatuses = []string{
	string(order.RequirementActive),
	string(order.RequirementPartiallyFulfilled),
}

// GormRequirementRepository implements order.RequirementRepository
type GormRequirementRepository struct {
	db *gorm.DB
}

// NewGormRequirementRepository creates a new GORM requirement repository
func NewGormRequirementRepository(db *gorm.DB) *GormRequirementRepository {
	return &GormRequirementRepository{db: db}
}

var _ order.RequirementRepository = (*GormRequirementRepository)(nil)

// deliveryLocationJSON is the persisted shape of one delivery set element
type deliveryLocationJSON struct {
	LocationID string  `json:"location_id,omitempty"`
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
	RadiusKm   float64 `json:"radius_km,omitempty"`
}

// FindByID retrieves a requirement by id
func (r *GormRequirementRepository) FindByID(ctx context.Context, id string) (*order.Requirement, error) {
	var model RequirementModel
	result := dbFrom(ctx, r.db).Where("id = ?", id).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("requirement", id)
		}
		return nil, fmt.Errorf("failed to find requirement: %w", result.Error)
	}
	return requirementModelToEntity(&model)
}

// Add inserts a requirement. A unique-index violation on the active
// dedup key surfaces as DuplicateOrderError, making the duplicate guard
// atomic with the write.
func (r *GormRequirementRepository) Add(ctx context.Context, req *order.Requirement) error {
	model, err := requirementEntityToModel(req)
	if err != nil {
		return err
	}
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return shared.NewDuplicateOrderError("")
		}
		return fmt.Errorf("failed to add requirement: %w", err)
	}
	return nil
}

// Update persists mutations with an optimistic version check
func (r *GormRequirementRepository) Update(ctx context.Context, req *order.Requirement) error {
	expected := req.Version
	req.Version++
	model, err := requirementEntityToModel(req)
	if err != nil {
		req.Version = expected
		return err
	}

	result := dbFrom(ctx, r.db).Model(&RequirementModel{}).
		Where("id = ? AND version = ?", req.ID, expected).
		Select("*").Omit("id", "created_at").Updates(model)
	if result.Error != nil {
		req.Version = expected
		return fmt.Errorf("failed to update requirement: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		req.Version = expected
		return shared.NewConflictError("requirement", req.ID, expected)
	}
	return nil
}

// FindActiveByDedupKey returns the id of an open requirement holding the key
func (r *GormRequirementRepository) FindActiveByDedupKey(ctx context.Context, key string) (string, error) {
	var model RequirementModel
	result := dbFrom(ctx, r.db).
		Select("id").
		Where("active_dedup_key = ?", key).
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to query dedup key: %w", result.Error)
	}
	return model.ID, nil
}

// FindOpenByBuyer returns open requirements of a partner
func (r *GormRequirementRepository) FindOpenByBuyer(ctx context.Context, buyerID string) ([]*order.Requirement, error) {
	var models []RequirementModel
	result := dbFrom(ctx, r.db).
		Where("buyer_id = ? AND status IN ?", buyerID, openRequirementStatuses).
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find open requirements: %w", result.Error)
	}
	return requirementModelsToEntities(models)
}

// CountOpenSameDay counts open requirements for the circular-trade guard
func (r *GormRequirementRepository) CountOpenSameDay(ctx context.Context, partnerID, commodityID string, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var count int64
	result := dbFrom(ctx, r.db).Model(&RequirementModel{}).
		Where("buyer_id = ? AND commodity_id = ? AND status IN ? AND created_at >= ? AND created_at < ?",
			partnerID, commodityID, openRequirementStatuses, start, end).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count same-day requirements: %w", result.Error)
	}
	return count, nil
}

// FindAcceptingLocation returns open requirements whose delivery set
// accepts the given availability location. Commodity and status narrow
// the scan in SQL; the geo refinement runs over the parsed delivery set.
func (r *GormRequirementRepository) FindAcceptingLocation(ctx context.Context, commodityID, locationID string, point *order.AdHocLocation, maxKm float64) ([]*order.Requirement, error) {
	var models []RequirementModel
	result := dbFrom(ctx, r.db).
		Where("commodity_id = ? AND status IN ?", commodityID, openRequirementStatuses).
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find requirements: %w", result.Error)
	}

	reqs, err := requirementModelsToEntities(models)
	if err != nil {
		return nil, err
	}

	accepted := make([]*order.Requirement, 0, len(reqs))
	for _, req := range reqs {
		if requirementAcceptsLocation(req, locationID, point, maxKm) {
			accepted = append(accepted, req)
		}
	}
	return accepted, nil
}

// FindStaleActive returns open requirements the scheduler has not
// touched since the cutoff.
func (r *GormRequirementRepository) FindStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]*order.Requirement, error) {
	var models []RequirementModel
	result := dbFrom(ctx, r.db).
		Where("status IN ? AND (last_scanned_at IS NULL OR last_scanned_at < ?)", openRequirementStatuses, cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find stale requirements: %w", result.Error)
	}
	return requirementModelsToEntities(models)
}

// MarkScanned stamps the sweeper bookkeeping column without touching the
// aggregate version.
func (r *GormRequirementRepository) MarkScanned(ctx context.Context, id string, at time.Time) error {
	result := dbFrom(ctx, r.db).Model(&RequirementModel{}).
		Where("id = ?", id).
		Update("last_scanned_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark requirement scanned: %w", result.Error)
	}
	return nil
}

func requirementAcceptsLocation(req *order.Requirement, locationID string, point *order.AdHocLocation, maxKm float64) bool {
	for _, loc := range req.DeliveryLocations {
		if loc.IsRegistered() {
			if locationID != "" && loc.LocationID == locationID {
				return true
			}
			continue
		}
		if point == nil {
			continue
		}
		radius := loc.RadiusKm
		if radius <= 0 || radius > maxKm {
			radius = maxKm
		}
		if loc.Point.DistanceKm(point.Point) <= radius {
			return true
		}
	}
	return false
}

func requirementModelsToEntities(models []RequirementModel) ([]*order.Requirement, error) {
	reqs := make([]*order.Requirement, 0, len(models))
	for i := range models {
		entity, err := requirementModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, entity)
	}
	return reqs, nil
}

func requirementModelToEntity(m *RequirementModel) (*order.Requirement, error) {
	quantity, err := decimal.NewFromString(m.Quantity)
	if err != nil {
		return nil, fmt.Errorf("corrupt quantity for requirement %s: %w", m.ID, err)
	}
	fulfilled, err := decimal.NewFromString(m.FulfilledQuantity)
	if err != nil {
		return nil, fmt.Errorf("corrupt fulfilled_quantity for requirement %s: %w", m.ID, err)
	}
	target, err := decimal.NewFromString(m.TargetPrice)
	if err != nil {
		return nil, fmt.Errorf("corrupt target_price for requirement %s: %w", m.ID, err)
	}

	var locJSON []deliveryLocationJSON
	if err := json.Unmarshal([]byte(m.DeliveryLocations), &locJSON); err != nil {
		return nil, fmt.Errorf("corrupt delivery_locations for requirement %s: %w", m.ID, err)
	}
	locations := make([]order.DeliveryLocation, 0, len(locJSON))
	for _, l := range locJSON {
		locations = append(locations, order.DeliveryLocation{
			LocationID: l.LocationID,
			Point:      shared.GeoPoint{Lat: l.Lat, Lng: l.Lng},
			RadiusKm:   l.RadiusKm,
		})
	}

	quality := map[string]commodity.QualityRange{}
	if m.AcceptedQuality != "" {
		if err := json.Unmarshal([]byte(m.AcceptedQuality), &quality); err != nil {
			return nil, fmt.Errorf("corrupt accepted_quality for requirement %s: %w", m.ID, err)
		}
	}

	req := &order.Requirement{
		ID:                 m.ID,
		BuyerID:            m.BuyerID,
		CommodityID:        m.CommodityID,
		Quantity:           shared.NewQuantity(quantity),
		FulfilledQuantity:  shared.NewQuantity(fulfilled),
		Unit:               m.Unit,
		TargetPrice:        shared.NewMoney(target, m.Currency),
		DeliveryLocations:  locations,
		AcceptedQuality:    quality,
		Status:             order.RequirementStatus(m.Status),
		RiskPrecheckStatus: shared.DecisionStatus(m.RiskPrecheckStatus),
		AIBudgetFlag:       m.AIBudgetFlag,
		CreatedAt:          m.CreatedAt,
		Version:            m.Version,
	}
	if m.MaxPrice != nil {
		maxPrice, err := decimal.NewFromString(*m.MaxPrice)
		if err != nil {
			return nil, fmt.Errorf("corrupt max_price for requirement %s: %w", m.ID, err)
		}
		mp := shared.NewMoney(maxPrice, m.Currency)
		req.MaxPrice = &mp
	}
	if m.ValidUntil != nil {
		req.ValidUntil = *m.ValidUntil
	}
	return req, nil
}

func requirementEntityToModel(req *order.Requirement) (*RequirementModel, error) {
	locJSON := make([]deliveryLocationJSON, 0, len(req.DeliveryLocations))
	for _, l := range req.DeliveryLocations {
		locJSON = append(locJSON, deliveryLocationJSON{
			LocationID: l.LocationID,
			Lat:        l.Point.Lat,
			Lng:        l.Point.Lng,
			RadiusKm:   l.RadiusKm,
		})
	}
	locations, err := json.Marshal(locJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal delivery locations: %w", err)
	}
	quality, err := json.Marshal(req.AcceptedQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal accepted quality: %w", err)
	}

	model := &RequirementModel{
		ID:                 req.ID,
		BuyerID:            req.BuyerID,
		CommodityID:        req.CommodityID,
		Quantity:           req.Quantity.String(),
		FulfilledQuantity:  req.FulfilledQuantity.String(),
		Unit:               req.Unit,
		TargetPrice:        req.TargetPrice.Amount.String(),
		Currency:           req.TargetPrice.Currency,
		DeliveryLocations:  string(locations),
		DeliveryHash:       order.DeliveryHash(req.DeliveryLocations),
		AcceptedQuality:    string(quality),
		Status:             string(req.Status),
		RiskPrecheckStatus: string(req.RiskPrecheckStatus),
		AIBudgetFlag:       req.AIBudgetFlag,
		CreatedAt:          req.CreatedAt,
		Version:            req.Version,
	}
	if req.MaxPrice != nil {
		mp := req.MaxPrice.Amount.String()
		model.MaxPrice = &mp
	}
	if !req.ValidUntil.IsZero() {
		t := req.ValidUntil
		model.ValidUntil = &t
	}
	if req.IsOpen() {
		key := req.DedupKey()
		model.ActiveDedupKey = &key
	}
	return model, nil
}
