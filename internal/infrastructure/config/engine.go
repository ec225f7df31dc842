package config

import "time"

// MatchingConfig tunes the matching scheduler (C7)
type MatchingConfig struct {
	// MaxInFlight bounds concurrent match evaluations
	MaxInFlight int `mapstructure:"max_in_flight" validate:"min=1"`

	// TopN is how many ranked candidates the allocator attempts per event
	TopN int `mapstructure:"top_n" validate:"min=1"`

	// CoalesceDelay is the micro-batching window per aggregate
	CoalesceDelay time.Duration `mapstructure:"coalesce_delay"`

	// SweeperInterval is the LOW-priority safety-net cadence
	SweeperInterval time.Duration `mapstructure:"sweeper_interval"`

	// SweeperStaleAfter marks ACTIVE orders as stale for the sweeper
	SweeperStaleAfter time.Duration `mapstructure:"sweeper_stale_after"`

	// QueueDepthLimit triggers backpressure; LOW events beyond it are
	// dropped with a DeferredToSweeper audit entry
	QueueDepthLimit int `mapstructure:"queue_depth_limit" validate:"min=1"`

	// AllocationRetries is the version-conflict retry budget per candidate
	AllocationRetries int `mapstructure:"allocation_retries" validate:"min=0"`

	// AllocationBackoffBase seeds the exponential allocation backoff
	AllocationBackoffBase time.Duration `mapstructure:"allocation_backoff_base"`

	// SuppressionWindow is the duplicate-match suppression window
	SuppressionWindow time.Duration `mapstructure:"suppression_window"`

	// SuppressionSimilarity is the score similarity threshold (0..1)
	SuppressionSimilarity float64 `mapstructure:"suppression_similarity" validate:"min=0,max=1"`

	// EventDedupTTL is how long processed event ids are remembered
	EventDedupTTL time.Duration `mapstructure:"event_dedup_ttl"`

	// MaxDeliveryKm is the ad-hoc location radius cap for the prefilter
	MaxDeliveryKm float64 `mapstructure:"max_delivery_km" validate:"min=0"`
}

// RiskConfig tunes the risk engine (C3)
type RiskConfig struct {
	// SanctionedCountries is the configured sanctions list
	SanctionedCountries []string `mapstructure:"sanctioned_countries"`

	// HighValueThreshold marks international trades that get the
	// letter-of-credit payment-terms advisory
	HighValueThreshold float64 `mapstructure:"high_value_threshold" validate:"min=0"`

	// AdvisoryConfidenceFloor below which AI advisories attach a warning
	AdvisoryConfidenceFloor float64 `mapstructure:"advisory_confidence_floor" validate:"min=0,max=1"`
}

// NegotiationConfig tunes the negotiation state machine (C9)
type NegotiationConfig struct {
	// TTL is the default negotiation lifetime before expiry
	TTL time.Duration `mapstructure:"ttl"`

	// CommodityTTL overrides the TTL per commodity id
	CommodityTTL map[string]time.Duration `mapstructure:"commodity_ttl"`

	// ExpiryInterval is the tick cadence for expiring negotiations
	ExpiryInterval time.Duration `mapstructure:"expiry_interval"`
}

// TTLFor returns the negotiation TTL for a commodity
func (c NegotiationConfig) TTLFor(commodityID string) time.Duration {
	if ttl, ok := c.CommodityTTL[commodityID]; ok {
		return ttl
	}
	return c.TTL
}

// NotificationConfig tunes the notification router (C8)
type NotificationConfig struct {
	// DebounceWindow is the per-(user, event type) suppression window
	DebounceWindow time.Duration `mapstructure:"debounce_window"`

	// TopNWindow is the accounting window of the per-user top-N cap on
	// match proposals, independent of the debounce.
	TopNWindow time.Duration `mapstructure:"top_n_window"`

	// RatePerMinute and Burst shape the per-user token bucket
	RatePerMinute float64 `mapstructure:"rate_per_minute" validate:"min=0"`
	Burst         int     `mapstructure:"burst" validate:"min=1"`

	// FanoutTimeout bounds one notification fan-out
	FanoutTimeout time.Duration `mapstructure:"fanout_timeout"`
}

// OutboxConfig tunes the outbox dispatcher (C10)
type OutboxConfig struct {
	// PollInterval is the dispatcher polling cadence
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// BatchSize is how many records one poll claims
	BatchSize int `mapstructure:"batch_size" validate:"min=1"`

	// PublishTimeout bounds one external publish call
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}
