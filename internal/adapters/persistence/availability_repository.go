package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mandiworks/tradecore-go/internal/domain/order"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

var openAvailabilityStatuses = []string{
	string(order.AvailabilityAvailable),
	string(order.AvailabilityPartiallySold),
}

// GormAvailabilityRepository implements order.AvailabilityRepository
type GormAvailabilityRepository struct {
	db *gorm.DB
}

// NewGormAvailabilityRepository creates a new GORM availability repository
func NewGormAvailabilityRepository(db *gorm.DB) *GormAvailabilityRepository {
	return &GormAvailabilityRepository{db: db}
}

var _ order.AvailabilityRepository = (*GormAvailabilityRepository)(nil)

// FindByID retrieves an availability by id
func (r *GormAvailabilityRepository) FindByID(ctx context.Context, id string) (*order.Availability, error) {
	var model AvailabilityModel
	result := dbFrom(ctx, r.db).Where("id = ?", id).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("availability", id)
		}
		return nil, fmt.Errorf("failed to find availability: %w", result.Error)
	}
	return availabilityModelToEntity(&model)
}

// Add inserts an availability. The active dedup key's unique index turns
// a racing duplicate insert into DuplicateOrderError.
func (r *GormAvailabilityRepository) Add(ctx context.Context, a *order.Availability) error {
	model, err := availabilityEntityToModel(a)
	if err != nil {
		return err
	}
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return shared.NewDuplicateOrderError("")
		}
		return fmt.Errorf("failed to add availability: %w", err)
	}
	return nil
}

// Update persists mutations with an optimistic version check
func (r *GormAvailabilityRepository) Update(ctx context.Context, a *order.Availability) error {
	expected := a.Version
	a.Version++
	model, err := availabilityEntityToModel(a)
	if err != nil {
		a.Version = expected
		return err
	}

	result := dbFrom(ctx, r.db).Model(&AvailabilityModel{}).
		Where("id = ? AND version = ?", a.ID, expected).
		Select("*").Omit("id", "created_at").Updates(model)
	if result.Error != nil {
		a.Version = expected
		return fmt.Errorf("failed to update availability: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		a.Version = expected
		return shared.NewConflictError("availability", a.ID, expected)
	}
	return nil
}

// UpdateLocked re-reads the row FOR UPDATE inside the ambient
// transaction, applies mutate and writes back with a version check. All
// RemainingQuantity changes go through here so concurrent allocations
// serialise on the row lock and can never oversell.
func (r *GormAvailabilityRepository) UpdateLocked(ctx context.Context, id string, mutate func(*order.Availability) error) (*order.Availability, error) {
	db := dbFrom(ctx, r.db)

	var model AvailabilityModel
	result := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("availability", id)
		}
		return nil, fmt.Errorf("failed to lock availability: %w", result.Error)
	}

	entity, err := availabilityModelToEntity(&model)
	if err != nil {
		return nil, err
	}
	if err := mutate(entity); err != nil {
		return nil, err
	}

	expected := entity.Version
	entity.Version++
	updated, err := availabilityEntityToModel(entity)
	if err != nil {
		entity.Version = expected
		return nil, err
	}

	write := db.Model(&AvailabilityModel{}).
		Where("id = ? AND version = ?", id, expected).
		Select("*").Omit("id", "created_at").Updates(updated)
	if write.Error != nil {
		entity.Version = expected
		return nil, fmt.Errorf("failed to write locked availability: %w", write.Error)
	}
	if write.RowsAffected == 0 {
		// Should not happen under the row lock; kept as a hard guard.
		entity.Version = expected
		return nil, shared.NewConflictError("availability", id, expected)
	}
	return entity, nil
}

// FindActiveByDedupKey returns the id of an open availability holding the key
func (r *GormAvailabilityRepository) FindActiveByDedupKey(ctx context.Context, key string) (string, error) {
	var model AvailabilityModel
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

// FindOpenBySeller returns open availabilities of a partner
func (r *GormAvailabilityRepository) FindOpenBySeller(ctx context.Context, sellerID string) ([]*order.Availability, error) {
	var models []AvailabilityModel
	result := dbFrom(ctx, r.db).
		Where("seller_id = ? AND status IN ?", sellerID, openAvailabilityStatuses).
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find open availabilities: %w", result.Error)
	}
	return availabilityModelsToEntities(models)
}

// CountOpenSameDay counts open availabilities for the circular-trade guard
func (r *GormAvailabilityRepository) CountOpenSameDay(ctx context.Context, partnerID, commodityID string, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var count int64
	result := dbFrom(ctx, r.db).Model(&AvailabilityModel{}).
		Where("seller_id = ? AND commodity_id = ? AND status IN ? AND created_at >= ? AND created_at < ?",
			partnerID, commodityID, openAvailabilityStatuses, start, end).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count same-day availabilities: %w", result.Error)
	}
	return count, nil
}

// FindByLocationAndCommodity is the matching prefilter. Registered
// location ids narrow in SQL; ad-hoc rows come back bounding-boxed and
// get the exact haversine check in memory.
func (r *GormAvailabilityRepository) FindByLocationAndCommodity(ctx context.Context, commodityID string, locations []order.DeliveryLocation, maxKm float64) ([]*order.Availability, error) {
	registeredIDs := make([]string, 0, len(locations))
	points := make([]order.DeliveryLocation, 0, len(locations))
	for _, l := range locations {
		if l.IsRegistered() {
			registeredIDs = append(registeredIDs, l.LocationID)
		} else {
			points = append(points, l)
		}
	}

	db := dbFrom(ctx, r.db).
		Where("commodity_id = ? AND status IN ?", commodityID, openAvailabilityStatuses)

	var models []AvailabilityModel
	if len(points) == 0 {
		if len(registeredIDs) == 0 {
			return nil, nil
		}
		if err := db.Where("location_id IN ?", registeredIDs).Find(&models).Error; err != nil {
			return nil, fmt.Errorf("failed to prefilter availabilities: %w", err)
		}
	} else {
		minLat, maxLat, minLng, maxLng := boundingBox(points, maxKm)
		geo := "(adhoc_lat BETWEEN ? AND ? AND adhoc_lng BETWEEN ? AND ?)"
		args := []interface{}{minLat, maxLat, minLng, maxLng}
		if len(registeredIDs) > 0 {
			geo = "location_id IN ? OR " + geo
			args = append([]interface{}{registeredIDs}, args...)
		}
		if err := db.Where(geo, args...).Find(&models).Error; err != nil {
			return nil, fmt.Errorf("failed to prefilter availabilities: %w", err)
		}
	}

	entities, err := availabilityModelsToEntities(models)
	if err != nil {
		return nil, err
	}

	matched := make([]*order.Availability, 0, len(entities))
	for _, a := range entities {
		if availabilityWithinSet(a, registeredIDs, points, maxKm) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

// FindStaleActive returns open availabilities not scanned since the cutoff
func (r *GormAvailabilityRepository) FindStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]*order.Availability, error) {
	var models []AvailabilityModel
	result := dbFrom(ctx, r.db).
		Where("status IN ? AND (last_scanned_at IS NULL OR last_scanned_at < ?)", openAvailabilityStatuses, cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find stale availabilities: %w", result.Error)
	}
	return availabilityModelsToEntities(models)
}

// MarkScanned stamps the sweeper bookkeeping column
func (r *GormAvailabilityRepository) MarkScanned(ctx context.Context, id string, at time.Time) error {
	result := dbFrom(ctx, r.db).Model(&AvailabilityModel{}).
		Where("id = ?", id).
		Update("last_scanned_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark availability scanned: %w", result.Error)
	}
	return nil
}

// boundingBox returns a lat/lng envelope covering every point plus its
// effective radius. One degree of latitude is ~111km; longitude degrees
// shrink with latitude, approximated at the envelope edge.
func boundingBox(points []order.DeliveryLocation, maxKm float64) (minLat, maxLat, minLng, maxLng float64) {
	minLat, minLng = 91, 181
	maxLat, maxLng = -91, -181
	for _, p := range points {
		radius := p.RadiusKm
		if radius <= 0 || radius > maxKm {
			radius = maxKm
		}
		latPad := radius / 111.0
		lngPad := radius / 85.0 // conservative below ~40 degrees latitude
		if p.Point.Lat-latPad < minLat {
			minLat = p.Point.Lat - latPad
		}
		if p.Point.Lat+latPad > maxLat {
			maxLat = p.Point.Lat + latPad
		}
		if p.Point.Lng-lngPad < minLng {
			minLng = p.Point.Lng - lngPad
		}
		if p.Point.Lng+lngPad > maxLng {
			maxLng = p.Point.Lng + lngPad
		}
	}
	return minLat, maxLat, minLng, maxLng
}

func availabilityWithinSet(a *order.Availability, registeredIDs []string, points []order.DeliveryLocation, maxKm float64) bool {
	if a.LocationID != "" {
		for _, id := range registeredIDs {
			if id == a.LocationID {
				return true
			}
		}
		return false
	}
	if a.AdHoc == nil {
		return false
	}
	for _, p := range points {
		radius := p.RadiusKm
		if radius <= 0 || radius > maxKm {
			radius = maxKm
		}
		if p.Point.DistanceKm(a.AdHoc.Point) <= radius {
			return true
		}
	}
	return false
}

func availabilityModelsToEntities(models []AvailabilityModel) ([]*order.Availability, error) {
	list := make([]*order.Availability, 0, len(models))
	for i := range models {
		entity, err := availabilityModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		list = append(list, entity)
	}
	return list, nil
}

func availabilityModelToEntity(m *AvailabilityModel) (*order.Availability, error) {
	total, err := decimal.NewFromString(m.TotalQuantity)
	if err != nil {
		return nil, fmt.Errorf("corrupt total_quantity for availability %s: %w", m.ID, err)
	}
	remaining, err := decimal.NewFromString(m.RemainingQuantity)
	if err != nil {
		return nil, fmt.Errorf("corrupt remaining_quantity for availability %s: %w", m.ID, err)
	}
	base, err := decimal.NewFromString(m.BasePrice)
	if err != nil {
		return nil, fmt.Errorf("corrupt base_price for availability %s: %w", m.ID, err)
	}

	quality := map[string]float64{}
	if m.QualityParams != "" {
		if err := json.Unmarshal([]byte(m.QualityParams), &quality); err != nil {
			return nil, fmt.Errorf("corrupt quality_params for availability %s: %w", m.ID, err)
		}
	}
	var recommended []string
	if m.AIRecommendedFor != "" {
		if err := json.Unmarshal([]byte(m.AIRecommendedFor), &recommended); err != nil {
			return nil, fmt.Errorf("corrupt ai_recommended_for for availability %s: %w", m.ID, err)
		}
	}

	a := &order.Availability{
		ID:                   m.ID,
		SellerID:             m.SellerID,
		CommodityID:          m.CommodityID,
		TotalQuantity:        shared.NewQuantity(total),
		RemainingQuantity:    shared.NewQuantity(remaining),
		BasePrice:            shared.NewMoney(base, m.Currency),
		QualityParams:        quality,
		Status:               order.AvailabilityStatus(m.Status),
		AIRecommendedFor:     recommended,
		AIAdvisoryConfidence: m.AIAdvisoryConfidence,
		CreatedAt:            m.CreatedAt,
		Version:              m.Version,
	}
	if m.LocationID != nil {
		a.LocationID = *m.LocationID
	}
	if a.LocationID == "" && m.AdHocLat != nil && m.AdHocLng != nil {
		a.AdHoc = &order.AdHocLocation{
			Address: m.AdHocAddress,
			Point:   shared.GeoPoint{Lat: *m.AdHocLat, Lng: *m.AdHocLng},
			Pincode: m.AdHocPincode,
			Region:  m.AdHocRegion,
		}
	}
	if m.ValidUntil != nil {
		a.ValidUntil = *m.ValidUntil
	}
	if m.AISuggestedMaxPrice != nil {
		maxPrice, err := decimal.NewFromString(*m.AISuggestedMaxPrice)
		if err != nil {
			return nil, fmt.Errorf("corrupt ai_suggested_max_price for availability %s: %w", m.ID, err)
		}
		mp := shared.NewMoney(maxPrice, m.Currency)
		a.AISuggestedMaxPrice = &mp
	}
	return a, nil
}

func availabilityEntityToModel(a *order.Availability) (*AvailabilityModel, error) {
	quality, err := json.Marshal(a.QualityParams)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quality params: %w", err)
	}
	recommended, err := json.Marshal(a.AIRecommendedFor)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	model := &AvailabilityModel{
		ID:                   a.ID,
		SellerID:             a.SellerID,
		CommodityID:          a.CommodityID,
		TotalQuantity:        a.TotalQuantity.String(),
		RemainingQuantity:    a.RemainingQuantity.String(),
		BasePrice:            a.BasePrice.Amount.String(),
		Currency:             a.BasePrice.Currency,
		QualityParams:        string(quality),
		Status:               string(a.Status),
		AIRecommendedFor:     string(recommended),
		AIAdvisoryConfidence: a.AIAdvisoryConfidence,
		CreatedAt:            a.CreatedAt,
		Version:              a.Version,
	}
	if a.LocationID != "" {
		loc := a.LocationID
		model.LocationID = &loc
	} else if a.AdHoc != nil {
		lat, lng := a.AdHoc.Point.Lat, a.AdHoc.Point.Lng
		model.AdHocLat = &lat
		model.AdHocLng = &lng
		model.AdHocAddress = a.AdHoc.Address
		model.AdHocPincode = a.AdHoc.Pincode
		model.AdHocRegion = a.AdHoc.Region
	}
	if !a.ValidUntil.IsZero() {
		t := a.ValidUntil
		model.ValidUntil = &t
	}
	if a.AISuggestedMaxPrice != nil {
		mp := a.AISuggestedMaxPrice.Amount.String()
		model.AISuggestedMaxPrice = &mp
	}
	if a.IsOpen() {
		key := a.DedupKey()
		model.ActiveDedupKey = &key
	}
	return model, nil
}
