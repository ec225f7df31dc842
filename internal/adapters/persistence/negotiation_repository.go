package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiworks/tradecore-go/internal/domain/negotiation"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// GormNegotiationRepository implements negotiation.Repository
type GormNegotiationRepository struct {
	db *gorm.DB
}

// NewGormNegotiationRepository creates a new GORM negotiation repository
func NewGormNegotiationRepository(db *gorm.DB) *GormNegotiationRepository {
	return &GormNegotiationRepository{db: db}
}

var _ negotiation.Repository = (*GormNegotiationRepository)(nil)

// FindByID retrieves a negotiation by id
func (r *GormNegotiationRepository) FindByID(ctx context.Context, id string) (*negotiation.Negotiation, error) {
	var model NegotiationModel
	result := dbFrom(ctx, r.db).Where("id = ?", id).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("negotiation", id)
		}
		return nil, fmt.Errorf("failed to find negotiation: %w", result.Error)
	}
	return negotiationModelToEntity(&model), nil
}

// Add inserts a negotiation
func (r *GormNegotiationRepository) Add(ctx context.Context, n *negotiation.Negotiation) error {
	if err := dbFrom(ctx, r.db).Create(negotiationEntityToModel(n)).Error; err != nil {
		return fmt.Errorf("failed to add negotiation: %w", err)
	}
	return nil
}

// Update persists mutations with an optimistic version check. Offer
// inserts ride on the same version bump, so concurrent rounds against
// one negotiation serialise here.
func (r *GormNegotiationRepository) Update(ctx context.Context, n *negotiation.Negotiation) error {
	expected := n.Version
	n.Version++
	model := negotiationEntityToModel(n)

	result := dbFrom(ctx, r.db).Model(&NegotiationModel{}).
		Where("id = ? AND version = ?", n.ID, expected).
		Select("*").Omit("id", "created_at").Updates(model)
	if result.Error != nil {
		n.Version = expected
		return fmt.Errorf("failed to update negotiation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		n.Version = expected
		return shared.NewConflictError("negotiation", n.ID, expected)
	}
	return nil
}

// AddOffer appends an offer
func (r *GormNegotiationRepository) AddOffer(ctx context.Context, o *negotiation.Offer) error {
	if err := dbFrom(ctx, r.db).Create(offerEntityToModel(o)).Error; err != nil {
		return fmt.Errorf("failed to add offer: %w", err)
	}
	return nil
}

// FindOffers returns all offers of a negotiation in round order
func (r *GormNegotiationRepository) FindOffers(ctx context.Context, negotiationID string) ([]*negotiation.Offer, error) {
	var models []OfferModel
	result := dbFrom(ctx, r.db).
		Where("negotiation_id = ?", negotiationID).
		Order("round asc, created_at asc").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find offers: %w", result.Error)
	}

	offers := make([]*negotiation.Offer, 0, len(models))
	for i := range models {
		offer, err := offerModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// LastOffer returns the newest non-advisory offer, or nil
func (r *GormNegotiationRepository) LastOffer(ctx context.Context, negotiationID string) (*negotiation.Offer, error) {
	var model OfferModel
	result := dbFrom(ctx, r.db).
		Where("negotiation_id = ? AND actor <> ?", negotiationID, string(negotiation.ActorAIAdvisory)).
		Order("round desc, created_at desc").
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find last offer: %w", result.Error)
	}
	return offerModelToEntity(&model)
}

// AddMessage appends a chat message
func (r *GormNegotiationRepository) AddMessage(ctx context.Context, m *negotiation.Message) error {
	if err := dbFrom(ctx, r.db).Create(messageEntityToModel(m)).Error; err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}
	return nil
}

// FindMessages returns all messages of a negotiation, oldest first
func (r *GormNegotiationRepository) FindMessages(ctx context.Context, negotiationID string) ([]*negotiation.Message, error) {
	var models []MessageModel
	result := dbFrom(ctx, r.db).
		Where("negotiation_id = ?", negotiationID).
		Order("created_at asc").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find messages: %w", result.Error)
	}

	messages := make([]*negotiation.Message, 0, len(models))
	for i := range models {
		messages = append(messages, messageModelToEntity(&models[i]))
	}
	return messages, nil
}

// FindActiveOlderThan returns active negotiations created before the cutoff
func (r *GormNegotiationRepository) FindActiveOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*negotiation.Negotiation, error) {
	var models []NegotiationModel
	result := dbFrom(ctx, r.db).
		Where("status = ? AND created_at < ?", string(negotiation.StatusActive), cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find overdue negotiations: %w", result.Error)
	}

	list := make([]*negotiation.Negotiation, 0, len(models))
	for i := range models {
		list = append(list, negotiationModelToEntity(&models[i]))
	}
	return list, nil
}

func negotiationModelToEntity(m *NegotiationModel) *negotiation.Negotiation {
	return &negotiation.Negotiation{
		ID:             m.ID,
		RequirementID:  m.RequirementID,
		AvailabilityID: m.AvailabilityID,
		MatchID:        m.MatchID,
		BuyerID:        m.BuyerID,
		SellerID:       m.SellerID,
		CurrentRound:   m.CurrentRound,
		LastActor:      negotiation.Actor(m.LastActor),
		Status:         negotiation.Status(m.Status),
		CreatedAt:      m.CreatedAt,
		TerminatedAt:   m.TerminatedAt,
		Version:        m.Version,
	}
}

func negotiationEntityToModel(n *negotiation.Negotiation) *NegotiationModel {
	return &NegotiationModel{
		ID:             n.ID,
		RequirementID:  n.RequirementID,
		AvailabilityID: n.AvailabilityID,
		MatchID:        n.MatchID,
		BuyerID:        n.BuyerID,
		SellerID:       n.SellerID,
		CurrentRound:   n.CurrentRound,
		LastActor:      string(n.LastActor),
		Status:         string(n.Status),
		CreatedAt:      n.CreatedAt,
		TerminatedAt:   n.TerminatedAt,
		Version:        n.Version,
	}
}

func offerModelToEntity(m *OfferModel) (*negotiation.Offer, error) {
	price, err := decimal.NewFromString(m.Price)
	if err != nil {
		return nil, fmt.Errorf("corrupt price for offer %s: %w", m.ID, err)
	}
	quantity, err := decimal.NewFromString(m.Quantity)
	if err != nil {
		return nil, fmt.Errorf("corrupt quantity for offer %s: %w", m.ID, err)
	}
	return &negotiation.Offer{
		ID:            m.ID,
		NegotiationID: m.NegotiationID,
		Round:         m.Round,
		Actor:         negotiation.Actor(m.Actor),
		Price:         shared.NewMoney(price, m.Currency),
		Quantity:      shared.NewQuantity(quantity),
		DeliveryTerms: m.DeliveryTerms,
		PaymentTerms:  m.PaymentTerms,
		QualityTerms:  m.QualityTerms,
		Confidence:    m.Confidence,
		CreatedAt:     m.CreatedAt,
	}, nil
}

func offerEntityToModel(o *negotiation.Offer) *OfferModel {
	return &OfferModel{
		ID:            o.ID,
		NegotiationID: o.NegotiationID,
		Round:         o.Round,
		Actor:         string(o.Actor),
		Price:         o.Price.Amount.String(),
		Currency:      o.Price.Currency,
		Quantity:      o.Quantity.String(),
		DeliveryTerms: o.DeliveryTerms,
		PaymentTerms:  o.PaymentTerms,
		QualityTerms:  o.QualityTerms,
		Confidence:    o.Confidence,
		CreatedAt:     o.CreatedAt,
	}
}

func messageEntityToModel(m *negotiation.Message) *MessageModel {
	return &MessageModel{
		ID:            m.ID,
		NegotiationID: m.NegotiationID,
		SenderRole:    string(m.SenderRole),
		Body:          m.Body,
		ReadAt:        m.ReadAt,
		CreatedAt:     m.CreatedAt,
	}
}

func messageModelToEntity(m *MessageModel) *negotiation.Message {
	return &negotiation.Message{
		ID:            m.ID,
		NegotiationID: m.NegotiationID,
		SenderRole:    negotiation.SenderRole(m.SenderRole),
		Body:          m.Body,
		ReadAt:        m.ReadAt,
		CreatedAt:     m.CreatedAt,
	}
}
