package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// GormPartnerRepository implements partner.Repository using GORM
type GormPartnerRepository struct {
	db *gorm.DB
}

// NewGormPartnerRepository creates a new GORM partner repository
func NewGormPartnerRepository(db *gorm.DB) *GormPartnerRepository {
	return &GormPartnerRepository{db: db}
}

var _ partner.Repository = (*GormPartnerRepository)(nil)

// FindByID retrieves a partner by id
func (r *GormPartnerRepository) FindByID(ctx context.Context, partnerID string) (*partner.Partner, error) {
	var model PartnerModel
	result := dbFrom(ctx, r.db).Where("id = ?", partnerID).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("partner", partnerID)
		}
		return nil, fmt.Errorf("failed to find partner: %w", result.Error)
	}
	return partnerModelToEntity(&model)
}

// Save inserts a partner
func (r *GormPartnerRepository) Save(ctx context.Context, p *partner.Partner) error {
	model := partnerEntityToModel(p)
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save partner: %w", err)
	}
	return nil
}

// Update persists mutations with an optimistic version check
func (r *GormPartnerRepository) Update(ctx context.Context, p *partner.Partner) error {
	expected := p.Version
	p.Version++
	model := partnerEntityToModel(p)

	// Select("*") forces zero-valued fields (cleared flags, "0" amounts)
	// to be written as well.
	result := dbFrom(ctx, r.db).Model(&PartnerModel{}).
		Where("id = ? AND version = ?", p.ID, expected).
		Select("*").Omit("id", "created_at").Updates(model)
	if result.Error != nil {
		p.Version = expected
		return fmt.Errorf("failed to update partner: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		p.Version = expected
		return shared.NewConflictError("partner", p.ID, expected)
	}
	return nil
}

// FindLinked returns partners sharing identity fields with p
func (r *GormPartnerRepository) FindLinked(ctx context.Context, p *partner.Partner) ([]*partner.Partner, error) {
	var models []PartnerModel
	q := dbFrom(ctx, r.db).Where("id <> ?", p.ID)

	var clauses []string
	var args []interface{}
	if p.NationalID != "" {
		clauses = append(clauses, "national_id = ?")
		args = append(args, p.NationalID)
	}
	if p.TaxID != "" {
		clauses = append(clauses, "tax_id = ?")
		args = append(args, p.TaxID)
	}
	if p.Mobile != "" {
		clauses = append(clauses, "mobile = ?")
		args = append(args, p.Mobile)
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	where := clauses[0]
	for _, c := range clauses[1:] {
		where += " OR " + c
	}
	if err := q.Where(where, args...).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find linked partners: %w", err)
	}

	partners := make([]*partner.Partner, 0, len(models))
	for i := range models {
		entity, err := partnerModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		partners = append(partners, entity)
	}
	return partners, nil
}

func partnerModelToEntity(m *PartnerModel) (*partner.Partner, error) {
	limit, err := decimal.NewFromString(m.CreditLimit)
	if err != nil {
		return nil, fmt.Errorf("corrupt credit_limit for partner %s: %w", m.ID, err)
	}
	used, err := decimal.NewFromString(m.CreditUsed)
	if err != nil {
		return nil, fmt.Errorf("corrupt credit_used for partner %s: %w", m.ID, err)
	}
	return &partner.Partner{
		ID:                  m.ID,
		LegalName:           m.LegalName,
		Type:                partner.PartnerType(m.PartnerType),
		PrimaryCountry:      m.PrimaryCountry,
		TaxID:               m.TaxID,
		NationalID:          m.NationalID,
		Mobile:              m.Mobile,
		Email:               m.Email,
		Rating:              m.Rating,
		PaymentPerformance:  m.PaymentPerformance,
		DeliveryPerformance: m.DeliveryPerformance,
		CreditLimit:         limit,
		CreditUsed:          used,
		CorporateGroupID:    m.CorporateGroupID,
		ParentPartnerID:     m.ParentPartnerID,
		Status:              partner.Status(m.Status),
		Version:             m.Version,
		CreatedAt:           m.CreatedAt,
	}, nil
}

func partnerEntityToModel(p *partner.Partner) *PartnerModel {
	return &PartnerModel{
		ID:                  p.ID,
		LegalName:           p.LegalName,
		PartnerType:         string(p.Type),
		PrimaryCountry:      p.PrimaryCountry,
		TaxID:               p.TaxID,
		NationalID:          p.NationalID,
		Mobile:              p.Mobile,
		Email:               p.Email,
		Rating:              p.Rating,
		PaymentPerformance:  p.PaymentPerformance,
		DeliveryPerformance: p.DeliveryPerformance,
		CreditLimit:         p.CreditLimit.String(),
		CreditUsed:          p.CreditUsed.String(),
		CorporateGroupID:    p.CorporateGroupID,
		ParentPartnerID:     p.ParentPartnerID,
		Status:              string(p.Status),
		Version:             p.Version,
		CreatedAt:           p.CreatedAt,
	}
}
