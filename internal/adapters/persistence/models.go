package persistence

import (
	"time"
)

// PartnerModel represents the partners table
type PartnerModel struct {
	ID                  string     `gorm:"column:id;primaryKey"`
	LegalName           string     `gorm:"column:legal_name;not null"`
	PartnerType         string     `gorm:"column:partner_type;not null"`
	PrimaryCountry      string     `gorm:"column:primary_country;not null"`
	TaxID               string     `gorm:"column:tax_id;index"`
	NationalID          string     `gorm:"column:national_id;index"`
	Mobile              string     `gorm:"column:mobile;index"`
	Email               string     `gorm:"column:email"`
	Rating              float64    `gorm:"column:rating;not null;default:0"`
	PaymentPerformance  float64    `gorm:"column:payment_performance;not null;default:0"`
	DeliveryPerformance float64    `gorm:"column:delivery_performance;not null;default:0"`
	CreditLimit         string     `gorm:"column:credit_limit;not null;default:'0'"` // decimal as string
	CreditUsed          string     `gorm:"column:credit_used;not null;default:'0'"`  // decimal as string
	CorporateGroupID    string     `gorm:"column:corporate_group_id;index"`
	ParentPartnerID     string     `gorm:"column:parent_partner_id"`
	Status              string     `gorm:"column:status;not null"`
	Version             int64      `gorm:"column:version;not null;default:1"`
	CreatedAt           time.Time  `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt           *time.Time `gorm:"column:updated_at"`
}

func (PartnerModel) TableName() string {
	return "partners"
}

// PartnerDocumentModel represents the partner_documents table
type PartnerDocumentModel struct {
	ID           string        `gorm:"column:id;primaryKey"`
	PartnerID    string        `gorm:"column:partner_id;index;not null"`
	Partner      *PartnerModel `gorm:"foreignKey:PartnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	DocumentType string        `gorm:"column:document_type;not null"`
	OCRData      string        `gorm:"column:ocr_data;type:text"` // JSON map as text
	IssueDate    *time.Time    `gorm:"column:issue_date"`
	ExpiryDate   *time.Time    `gorm:"column:expiry_date"`
	Verified     bool          `gorm:"column:verified;not null;default:false"`
}

func (PartnerDocumentModel) TableName() string {
	return "partner_documents"
}

// CommodityModel represents the commodities table
type CommodityModel struct {
	ID                  string `gorm:"column:id;primaryKey"`
	Name                string `gorm:"column:name;not null"`
	Category            string `gorm:"column:category"`
	ExportRegulations   string `gorm:"column:export_regulations;type:text"`   // JSON as text
	ImportRegulations   string `gorm:"column:import_regulations;type:text"`   // JSON as text
	SupportedCurrencies string `gorm:"column:supported_currencies;type:text"` // JSON array as text
	QualityStandards    string `gorm:"column:quality_standards;type:text"`    // JSON map as text
	Seasonal            bool   `gorm:"column:seasonal;not null;default:false"`
	HarvestSeason       string `gorm:"column:harvest_season"`
	ShelfLifeDays       int    `gorm:"column:shelf_life_days"`
}

func (CommodityModel) TableName() string {
	return "commodities"
}

// RequirementModel represents the requirements table.
// ActiveDedupKey carries the dedup hash while the order is open and NULL
// once terminal, so the unique index only guards active orders.
type RequirementModel struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	BuyerID            string     `gorm:"column:buyer_id;index;not null"`
	CommodityID        string     `gorm:"column:commodity_id;index:idx_req_commodity_status;not null"`
	Quantity           string     `gorm:"column:quantity;not null"`           // decimal as string
	FulfilledQuantity  string     `gorm:"column:fulfilled_quantity;not null"` // decimal as string
	Unit               string     `gorm:"column:unit"`
	TargetPrice        string     `gorm:"column:target_price;not null"` // decimal as string
	MaxPrice           *string    `gorm:"column:max_price"`
	Currency           string     `gorm:"column:currency;not null;default:'INR'"`
	DeliveryLocations  string     `gorm:"column:delivery_locations;type:text;not null"` // JSON array as text
	DeliveryHash       string     `gorm:"column:delivery_hash;not null"`
	AcceptedQuality    string     `gorm:"column:accepted_quality;type:text"` // JSON map as text
	ValidUntil         *time.Time `gorm:"column:valid_until"`
	Status             string     `gorm:"column:status;index:idx_req_commodity_status;not null"`
	RiskPrecheckStatus string     `gorm:"column:risk_precheck_status;not null;default:'PASS'"`
	AIBudgetFlag       bool       `gorm:"column:ai_budget_flag;not null;default:false"`
	ActiveDedupKey     *string    `gorm:"column:active_dedup_key;uniqueIndex"`
	LastScannedAt      *time.Time `gorm:"column:last_scanned_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
	Version            int64      `gorm:"column:version;not null;default:1"`
}

func (RequirementModel) TableName() string {
	return "requirements"
}

// AvailabilityModel represents the availabilities table
type AvailabilityModel struct {
	ID                   string     `gorm:"column:id;primaryKey"`
	SellerID             string     `gorm:"column:seller_id;index;not null"`
	CommodityID          string     `gorm:"column:commodity_id;index:idx_av_commodity_status;not null"`
	TotalQuantity        string     `gorm:"column:total_quantity;not null"`     // decimal as string
	RemainingQuantity    string     `gorm:"column:remaining_quantity;not null"` // decimal as string
	BasePrice            string     `gorm:"column:base_price;not null"`         // decimal as string
	Currency             string     `gorm:"column:currency;not null;default:'INR'"`
	LocationID           *string    `gorm:"column:location_id;index"` // NULL means ad-hoc
	AdHocAddress         string     `gorm:"column:adhoc_address"`
	AdHocLat             *float64   `gorm:"column:adhoc_lat;index"`
	AdHocLng             *float64   `gorm:"column:adhoc_lng;index"`
	AdHocPincode         string     `gorm:"column:adhoc_pincode"`
	AdHocRegion          string     `gorm:"column:adhoc_region"`
	QualityParams        string     `gorm:"column:quality_params;type:text"` // JSON map as text
	ValidUntil           *time.Time `gorm:"column:valid_until"`
	Status               string     `gorm:"column:status;index:idx_av_commodity_status;not null"`
	AISuggestedMaxPrice  *string    `gorm:"column:ai_suggested_max_price"`
	AIRecommendedFor     string     `gorm:"column:ai_recommended_for;type:text"` // JSON array as text
	AIAdvisoryConfidence float64    `gorm:"column:ai_advisory_confidence;not null;default:0"`
	ActiveDedupKey       *string    `gorm:"column:active_dedup_key;uniqueIndex"`
	LastScannedAt        *time.Time `gorm:"column:last_scanned_at"`
	CreatedAt            time.Time  `gorm:"column:created_at;not null"`
	Version              int64      `gorm:"column:version;not null;default:1"`
}

func (AvailabilityModel) TableName() string {
	return "availabilities"
}

// MatchModel represents the matches table.
// ActivePairKey is "<requirement_id>|<availability_id>" while the match
// is active and NULL once terminal; the unique index enforces at most
// one active match per pair.
type MatchModel struct {
	ID                string    `gorm:"column:id;primaryKey"`
	RequirementID     string    `gorm:"column:requirement_id;index;not null"`
	AvailabilityID    string    `gorm:"column:availability_id;index;not null"`
	BuyerID           string    `gorm:"column:buyer_id;index;not null"`
	SellerID          string    `gorm:"column:seller_id;index;not null"`
	AllocatedQuantity string    `gorm:"column:allocated_quantity;not null"` // decimal as string
	Score             float64   `gorm:"column:score;not null"`
	Breakdown         string    `gorm:"column:score_breakdown;type:text"` // JSON as text
	RiskDecision      string    `gorm:"column:risk_decision;not null"`
	RiskCode          string    `gorm:"column:risk_code"`
	RiskDetails       string    `gorm:"column:risk_details;type:text"`     // JSON map as text
	CapabilityCodes   string    `gorm:"column:capability_codes;type:text"` // JSON array as text
	Advisories        string    `gorm:"column:advisories;type:text"`       // JSON array as text
	Status            string    `gorm:"column:status;index;not null"`
	ActivePairKey     *string   `gorm:"column:active_pair_key;uniqueIndex"`
	CreatedAt         time.Time `gorm:"column:created_at;index;not null"`
	Version           int64     `gorm:"column:version;not null;default:1"`
}

func (MatchModel) TableName() string {
	return "matches"
}

// NegotiationModel represents the negotiations table
type NegotiationModel struct {
	ID             string     `gorm:"column:id;primaryKey"`
	RequirementID  string     `gorm:"column:requirement_id;index;not null"`
	AvailabilityID string     `gorm:"column:availability_id;index;not null"`
	MatchID        string     `gorm:"column:match_id;index"`
	BuyerID        string     `gorm:"column:buyer_id;index;not null"`
	SellerID       string     `gorm:"column:seller_id;index;not null"`
	CurrentRound   int        `gorm:"column:current_round;not null;default:1"`
	LastActor      string     `gorm:"column:last_actor;not null"`
	Status         string     `gorm:"column:status;index;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;index;not null"`
	TerminatedAt   *time.Time `gorm:"column:terminated_at"`
	Version        int64      `gorm:"column:version;not null;default:1"`
}

func (NegotiationModel) TableName() string {
	return "negotiations"
}

// OfferModel represents the offers table
type OfferModel struct {
	ID            string            `gorm:"column:id;primaryKey"`
	NegotiationID string            `gorm:"column:negotiation_id;index;not null"`
	Negotiation   *NegotiationModel `gorm:"foreignKey:NegotiationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Round         int               `gorm:"column:round;not null"`
	Actor         string            `gorm:"column:actor;not null"`
	Price         string            `gorm:"column:price;not null"` // decimal as string
	Currency      string            `gorm:"column:currency;not null;default:'INR'"`
	Quantity      string            `gorm:"column:quantity;not null"` // decimal as string
	DeliveryTerms string            `gorm:"column:delivery_terms"`
	PaymentTerms  string            `gorm:"column:payment_terms"`
	QualityTerms  string            `gorm:"column:quality_terms"`
	Confidence    float64           `gorm:"column:confidence"`
	CreatedAt     time.Time         `gorm:"column:created_at;not null"`
}

func (OfferModel) TableName() string {
	return "offers"
}

// MessageModel represents the negotiation_messages table
type MessageModel struct {
	ID            string            `gorm:"column:id;primaryKey"`
	NegotiationID string            `gorm:"column:negotiation_id;index;not null"`
	Negotiation   *NegotiationModel `gorm:"foreignKey:NegotiationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	SenderRole    string            `gorm:"column:sender_role;not null"`
	Body          string            `gorm:"column:body;type:text;not null"`
	ReadAt        *time.Time        `gorm:"column:read_at"`
	CreatedAt     time.Time         `gorm:"column:created_at;not null"`
}

func (MessageModel) TableName() string {
	return "negotiation_messages"
}

// OutboxRecordModel represents the outbox table
type OutboxRecordModel struct {
	ID            string     `gorm:"column:id;primaryKey"`
	AggregateType string     `gorm:"column:aggregate_type;not null"`
	AggregateID   string     `gorm:"column:aggregate_id;index:idx_outbox_aggregate,priority:1;not null"`
	EventType     string     `gorm:"column:event_type;not null"`
	Payload       string     `gorm:"column:payload;type:text;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;index:idx_outbox_aggregate,priority:2;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at;index"`
	Attempts      int        `gorm:"column:attempts;not null;default:0"`
	NextRetryAt   *time.Time `gorm:"column:next_retry_at"`
	ClaimedUntil  *time.Time `gorm:"column:claimed_until"`
	Dead          bool       `gorm:"column:dead;not null;default:false"`
}

func (OutboxRecordModel) TableName() string {
	return "outbox"
}

// AuditEntryModel represents the audit_entries table
type AuditEntryModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ActorID    string    `gorm:"column:actor_id;index"`
	Action     string    `gorm:"column:action;index;not null"`
	TargetType string    `gorm:"column:target_type;index:idx_audit_target,priority:1;not null"`
	TargetID   string    `gorm:"column:target_id;index:idx_audit_target,priority:2;not null"`
	Before     string    `gorm:"column:before_snapshot;type:text"`
	After      string    `gorm:"column:after_snapshot;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

// IdempotencyKeyModel represents the idempotency_keys table.
// Stores the first result for a key so replays return it unchanged.
type IdempotencyKeyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	CommandType string    `gorm:"column:command_type;not null"`
	ResultType  string    `gorm:"column:result_type;not null"`
	ResultID    string    `gorm:"column:result_id;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (IdempotencyKeyModel) TableName() string {
	return "idempotency_keys"
}

// ProcessedEventModel represents the processed_events table used for
// at-least-once consumer dedup (24h window).
type ProcessedEventModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	Consumer    string    `gorm:"column:consumer;primaryKey"`
	ProcessedAt time.Time `gorm:"column:processed_at;index;not null"`
}

func (ProcessedEventModel) TableName() string {
	return "processed_events"
}

// NotificationModel represents the notifications table backing the
// IN_APP channel.
type NotificationModel struct {
	ID        string     `gorm:"column:id;primaryKey"`
	UserID    string     `gorm:"column:user_id;index;not null"`
	EventType string     `gorm:"column:event_type;not null"`
	Channel   string     `gorm:"column:channel;not null"`
	Subject   string     `gorm:"column:subject"`
	Body      string     `gorm:"column:body;type:text"`
	Fields    string     `gorm:"column:fields;type:text"` // JSON map as text
	ReadAt    *time.Time `gorm:"column:read_at"`
	CreatedAt time.Time  `gorm:"column:created_at;index;not null"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}
