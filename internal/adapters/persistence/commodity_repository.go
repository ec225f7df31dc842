package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiworks/tradecore-go/internal/domain/commodity"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// GormCommodityRepository implements commodity.Repository using GORM
type GormCommodityRepository struct {
	db *gorm.DB
}

// NewGormCommodityRepository creates a new GORM commodity repository
func NewGormCommodityRepository(db *gorm.DB) *GormCommodityRepository {
	return &GormCommodityRepository{db: db}
}

var _ commodity.Repository = (*GormCommodityRepository)(nil)

// regulationsJSON is the persisted shape of TradeRegulations
type regulationsJSON struct {
	LicenseRequired       bool     `json:"license_required"`
	AcceptedLicenseTypes  []string `json:"accepted_license_types,omitempty"`
	RestrictedCountries   []string `json:"restricted_countries,omitempty"`
	MinimumTradeValue     string   `json:"minimum_trade_value,omitempty"`
	PhytosanitaryRequired bool     `json:"phytosanitary_required"`
}

// FindByID retrieves a commodity by id
func (r *GormCommodityRepository) FindByID(ctx context.Context, commodityID string) (*commodity.Commodity, error) {
	var model CommodityModel
	result := dbFrom(ctx, r.db).Where("id = ?", commodityID).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("commodity", commodityID)
		}
		return nil, fmt.Errorf("failed to find commodity: %w", result.Error)
	}
	return commodityModelToEntity(&model)
}

// Save upserts a commodity catalogue entry
func (r *GormCommodityRepository) Save(ctx context.Context, c *commodity.Commodity) error {
	model, err := commodityEntityToModel(c)
	if err != nil {
		return err
	}
	if err := dbFrom(ctx, r.db).Save(model).Error; err != nil {
		return fmt.Errorf("failed to save commodity: %w", err)
	}
	return nil
}

func marshalRegulations(reg commodity.TradeRegulations) (string, error) {
	raw, err := json.Marshal(regulationsJSON{
		LicenseRequired:       reg.LicenseRequired,
		AcceptedLicenseTypes:  reg.AcceptedLicenseTypes,
		RestrictedCountries:   reg.RestrictedCountries,
		MinimumTradeValue:     reg.MinimumTradeValue.String(),
		PhytosanitaryRequired: reg.PhytosanitaryRequired,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal regulations: %w", err)
	}
	return string(raw), nil
}

func unmarshalRegulations(raw string) (commodity.TradeRegulations, error) {
	if raw == "" {
		return commodity.TradeRegulations{MinimumTradeValue: decimal.Zero}, nil
	}
	var j regulationsJSON
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return commodity.TradeRegulations{}, fmt.Errorf("corrupt regulations payload: %w", err)
	}
	minValue := decimal.Zero
	if j.MinimumTradeValue != "" {
		v, err := decimal.NewFromString(j.MinimumTradeValue)
		if err != nil {
			return commodity.TradeRegulations{}, fmt.Errorf("corrupt minimum_trade_value: %w", err)
		}
		minValue = v
	}
	return commodity.TradeRegulations{
		LicenseRequired:       j.LicenseRequired,
		AcceptedLicenseTypes:  j.AcceptedLicenseTypes,
		RestrictedCountries:   j.RestrictedCountries,
		MinimumTradeValue:     minValue,
		PhytosanitaryRequired: j.PhytosanitaryRequired,
	}, nil
}

func commodityModelToEntity(m *CommodityModel) (*commodity.Commodity, error) {
	exportReg, err := unmarshalRegulations(m.ExportRegulations)
	if err != nil {
		return nil, fmt.Errorf("commodity %s export regulations: %w", m.ID, err)
	}
	importReg, err := unmarshalRegulations(m.ImportRegulations)
	if err != nil {
		return nil, fmt.Errorf("commodity %s import regulations: %w", m.ID, err)
	}

	var currencies []string
	if m.SupportedCurrencies != "" {
		if err := json.Unmarshal([]byte(m.SupportedCurrencies), &currencies); err != nil {
			return nil, fmt.Errorf("commodity %s currencies: %w", m.ID, err)
		}
	}

	standards := map[string]commodity.QualityRange{}
	if m.QualityStandards != "" {
		if err := json.Unmarshal([]byte(m.QualityStandards), &standards); err != nil {
			return nil, fmt.Errorf("commodity %s quality standards: %w", m.ID, err)
		}
	}

	return &commodity.Commodity{
		ID:                  m.ID,
		Name:                m.Name,
		Category:            m.Category,
		ExportRegulations:   exportReg,
		ImportRegulations:   importReg,
		SupportedCurrencies: currencies,
		QualityStandards:    standards,
		Seasonal:            m.Seasonal,
		HarvestSeason:       m.HarvestSeason,
		ShelfLifeDays:       m.ShelfLifeDays,
	}, nil
}

func commodityEntityToModel(c *commodity.Commodity) (*CommodityModel, error) {
	exportReg, err := marshalRegulations(c.ExportRegulations)
	if err != nil {
		return nil, err
	}
	importReg, err := marshalRegulations(c.ImportRegulations)
	if err != nil {
		return nil, err
	}
	currencies, err := json.Marshal(c.SupportedCurrencies)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal currencies: %w", err)
	}
	standards, err := json.Marshal(c.QualityStandards)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quality standards: %w", err)
	}
	return &CommodityModel{
		ID:                  c.ID,
		Name:                c.Name,
		Category:            c.Category,
		ExportRegulations:   exportReg,
		ImportRegulations:   importReg,
		SupportedCurrencies: string(currencies),
		QualityStandards:    string(standards),
		Seasonal:            c.Seasonal,
		HarvestSeason:       c.HarvestSeason,
		ShelfLifeDays:       c.ShelfLifeDays,
	}, nil
}
