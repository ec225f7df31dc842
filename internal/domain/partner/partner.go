package partner

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// PartnerType classifies what a legal entity is allowed to do on the platform
type PartnerType string

const (
	TypeBuyer           PartnerType = "BUYER"
	TypeSeller          PartnerType = "SELLER"
	TypeTrader          PartnerType = "TRADER"
	TypeBroker          PartnerType = "BROKER"
	TypeTransporter     PartnerType = "TRANSPORTER"
	TypeServiceProvider PartnerType = "SERVICE_PROVIDER"
	TypeInternal        PartnerType = "INTERNAL"
)

// Status is the onboarding / operational state of a partner
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

// TradeSide distinguishes the buy and sell legs of a trade
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Opposite returns the other side of the trade
func (s TradeSide) Opposite() TradeSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Partner is a legal trading entity. Credit figures are exact decimals;
// rating and performance stay as floats because they only feed score math.
type Partner struct {
	ID                  string
	LegalName           string
	Type                PartnerType
	PrimaryCountry      string
	TaxID               string
	NationalID          string
	Mobile              string
	Email               string
	Rating              float64 // 0..5
	PaymentPerformance  float64 // 0..100, buyer dimension
	DeliveryPerformance float64 // 0..100, seller dimension
	CreditLimit         decimal.Decimal
	CreditUsed          decimal.Decimal
	CorporateGroupID    string
	ParentPartnerID     string
	Status              Status
	Version             int64
	CreatedAt           time.Time
}

// NewPartner creates a partner in PENDING state with validation of the
// identity fields the risk engine depends on.
func NewPartner(id, legalName string, partnerType PartnerType, country string) (*Partner, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "must not be empty")
	}
	if legalName == "" {
		return nil, shared.NewValidationError("legal_name", "must not be empty")
	}
	if country == "" {
		return nil, shared.NewValidationError("primary_country", "must not be empty")
	}
	switch partnerType {
	case TypeBuyer, TypeSeller, TypeTrader, TypeBroker, TypeTransporter, TypeServiceProvider, TypeInternal:
	default:
		return nil, shared.NewValidationError("partner_type", "unknown partner type")
	}
	return &Partner{
		ID:             id,
		LegalName:      legalName,
		Type:           partnerType,
		PrimaryCountry: country,
		Status:         StatusPending,
		CreditLimit:    decimal.Zero,
		CreditUsed:     decimal.Zero,
		Version:        1,
	}, nil
}

// IsActive reports whether the partner may trade at all
func (p *Partner) IsActive() bool {
	return p.Status == StatusActive
}

// MayHoldSide reports whether the partner's type permits the given order
// side. TRADER and BROKER hold both; the same-day circular guard is a
// separate risk check.
func (p *Partner) MayHoldSide(side TradeSide) bool {
	switch p.Type {
	case TypeBuyer:
		return side == SideBuy
	case TypeSeller:
		return side == SideSell
	case TypeTrader, TypeBroker, TypeInternal:
		return true
	default:
		return false
	}
}

// CreditUtilisation returns used/limit as a fraction in [0,1].
// A zero limit counts as fully utilised.
func (p *Partner) CreditUtilisation() float64 {
	if !p.CreditLimit.IsPositive() {
		return 1.0
	}
	util, _ := p.CreditUsed.Div(p.CreditLimit).Float64()
	if util < 0 {
		return 0
	}
	return util
}

// CreditHeadroom returns the unused part of the credit limit
func (p *Partner) CreditHeadroom() decimal.Decimal {
	headroom := p.CreditLimit.Sub(p.CreditUsed)
	if headroom.IsNegative() {
		return decimal.Zero
	}
	return headroom
}

// EmailDomain returns the lower-cased domain part of the contact email,
// or empty when no usable email is present.
func (p *Partner) EmailDomain() string {
	at := strings.LastIndex(p.Email, "@")
	if at < 0 || at == len(p.Email)-1 {
		return ""
	}
	return strings.ToLower(p.Email[at+1:])
}

// SameCorporateGroup reports whether two partners share a corporate group
func (p *Partner) SameCorporateGroup(other *Partner) bool {
	return p.CorporateGroupID != "" && p.CorporateGroupID == other.CorporateGroupID
}

// IsBranchOf reports whether either partner is the parent of the other
func (p *Partner) IsBranchOf(other *Partner) bool {
	return (p.ParentPartnerID != "" && p.ParentPartnerID == other.ID) ||
		(other.ParentPartnerID != "" && other.ParentPartnerID == p.ID)
}

// Suspend moves the partner to SUSPENDED; open orders are cancelled by
// the PartnerStatusChanged consumer, not here.
func (p *Partner) Suspend() {
	p.Status = StatusSuspended
}

// Activate moves the partner to ACTIVE
func (p *Partner) Activate() {
	p.Status = StatusActive
}
