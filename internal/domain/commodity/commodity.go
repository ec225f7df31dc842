package commodity

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TradeRegulations captures the regulatory envelope for one direction of
// cross-border trade in a commodity.
type TradeRegulations struct {
	LicenseRequired       bool
	AcceptedLicenseTypes  []string
	RestrictedCountries   []string
	MinimumTradeValue     decimal.Decimal
	PhytosanitaryRequired bool
}

// IsRestricted reports whether the country is on the restricted list
func (r TradeRegulations) IsRestricted(country string) bool {
	for _, c := range r.RestrictedCountries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// QualityRange is the accepted band for one quality parameter
type QualityRange struct {
	Min float64
	Max float64
}

// Contains reports whether the value sits inside the band (inclusive)
func (r QualityRange) Contains(value float64) bool {
	return value >= r.Min && value <= r.Max
}

// Commodity describes a tradeable good and its regulatory profile
type Commodity struct {
	ID                  string
	Name                string
	Category            string
	ExportRegulations   TradeRegulations
	ImportRegulations   TradeRegulations
	SupportedCurrencies []string
	QualityStandards    map[string]QualityRange
	Seasonal            bool
	HarvestSeason       string
	ShelfLifeDays       int
}

// SupportsCurrency reports whether settlement in the currency is allowed.
// An empty supported list places no restriction.
func (c *Commodity) SupportsCurrency(currency string) bool {
	if len(c.SupportedCurrencies) == 0 {
		return true
	}
	for _, cur := range c.SupportedCurrencies {
		if strings.EqualFold(cur, currency) {
			return true
		}
	}
	return false
}
